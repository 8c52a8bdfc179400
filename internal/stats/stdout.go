package stats

import (
	"encoding/json"
	"io"
	"os"
	"sync"

	"worldclear/internal/telemetry"
)

// StdoutSink prints each row as a JSON record line.
type StdoutSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewStdoutSink writes to STDOUT.
func NewStdoutSink() *StdoutSink { return NewWriterSink(os.Stdout) }

// NewWriterSink writes to w.
func NewWriterSink(w io.Writer) *StdoutSink {
	return &StdoutSink{enc: json.NewEncoder(w)}
}

func (s *StdoutSink) write(rec telemetry.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(rec)
}

func (s *StdoutSink) WriteSweep(r telemetry.SweepRow) error {
	return s.write(telemetry.Record{Kind: telemetry.KindSweep, Sweep: &r})
}

func (s *StdoutSink) WriteSnapshot(r telemetry.SnapshotRow) error {
	return s.write(telemetry.Record{Kind: telemetry.KindSnapshot, Snapshot: &r})
}

func (s *StdoutSink) WriteConfig(r telemetry.ConfigRow) error {
	return s.write(telemetry.Record{Kind: telemetry.KindConfig, Config: &r})
}
