package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Snapshot is the frozen configuration a session ran with, captured at
// session start. Runtime commands mutate the live Config; sessions already
// in flight keep their snapshot, so the archived config artifact always
// matches what the pipeline actually used.
type Snapshot struct {
	data   []byte
	sha256 string
}

// NewSnapshot serializes cfg to canonical JSON and fingerprints it.
// encoding/json sorts map keys, so equal configurations always produce the
// same bytes and the same digest.
func NewSnapshot(cfg *Config) (*Snapshot, error) {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("config: snapshot: %w", err)
	}
	sum := sha256.Sum256(data)
	return &Snapshot{data: data, sha256: hex.EncodeToString(sum[:])}, nil
}

// JSON returns the serialized configuration.
func (s *Snapshot) JSON() []byte {
	out := make([]byte, len(s.data))
	copy(out, s.data)
	return out
}

// SHA256 returns the hex digest of the serialized configuration.
func (s *Snapshot) SHA256() string { return s.sha256 }

// MarshalJSON lets a Snapshot embed directly into manifests and events.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	return s.JSON(), nil
}
