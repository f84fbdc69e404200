package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"sync"
)

// JSONLSink writes one JSON object per line. Each line carries a "type" of
// "generation" or "shake" next to the record fields.
type JSONLSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONLSink returns a sink writing to w.
func NewJSONLSink(w io.Writer) *JSONLSink {
	return &JSONLSink{enc: json.NewEncoder(w)}
}

type generationLine struct {
	Type string `json:"type"`
	GenerationRecord
}

type shakeLine struct {
	Type string `json:"type"`
	ShakeRecord
}

func (s *JSONLSink) OnGeneration(_ context.Context, rec GenerationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(generationLine{Type: "generation", GenerationRecord: rec})
}

func (s *JSONLSink) OnShake(_ context.Context, rec ShakeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(shakeLine{Type: "shake", ShakeRecord: rec})
}
