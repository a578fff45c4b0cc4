package llm

import (
	"context"
	"testing"
)

func TestCancelsTrackAndCancel(t *testing.T) {
	c := NewCancels()
	ctx, cancel := context.WithCancel(context.Background())
	c.Track("s1", cancel)

	c.Cancel("s1")
	if ctx.Err() == nil {
		t.Error("tracked context not cancelled")
	}
	// Second cancel and unknown ids are no-ops.
	c.Cancel("s1")
	c.Cancel("nope")
}

func TestTrackReplacesPreviousStream(t *testing.T) {
	c := NewCancels()
	first, cancelFirst := context.WithCancel(context.Background())
	c.Track("s1", cancelFirst)

	_, cancelSecond := context.WithCancel(context.Background())
	c.Track("s1", cancelSecond)

	if first.Err() == nil {
		t.Error("replaced stream was not cancelled")
	}
}

func TestReleaseWithoutCancel(t *testing.T) {
	c := NewCancels()
	ctx, cancel := context.WithCancel(context.Background())
	c.Track("s1", cancel)
	c.Release("s1")

	c.Cancel("s1")
	if ctx.Err() != nil {
		t.Error("released stream was cancelled")
	}
}
