package observe_test

import (
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/Jas0nOW/Vox-Voice/internal/observe"
)

func TestNewMetricsCreatesAllInstruments(t *testing.T) {
	mp := sdkmetric.NewMeterProvider()
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	if m.StageDuration == nil {
		t.Error("StageDuration nil")
	}
	if m.SessionDuration == nil {
		t.Error("SessionDuration nil")
	}
	if m.EventsPublished == nil {
		t.Error("EventsPublished nil")
	}
	if m.EventsDropped == nil {
		t.Error("EventsDropped nil")
	}
	if m.CommandsHandled == nil {
		t.Error("CommandsHandled nil")
	}
	if m.AdapterErrors == nil {
		t.Error("AdapterErrors nil")
	}
	if m.ActiveSessions == nil {
		t.Error("ActiveSessions nil")
	}
	if m.BusSubscribers == nil {
		t.Error("BusSubscribers nil")
	}
}

func TestDefaultMetricsIsSingleton(t *testing.T) {
	a := observe.DefaultMetrics()
	b := observe.DefaultMetrics()
	if a != b {
		t.Fatal("DefaultMetrics returned different instances")
	}
}
