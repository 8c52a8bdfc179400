// Package stats persists sweep results, metric snapshots and published
// configuration to one or more sinks.
package stats

import (
	"errors"

	"worldclear/internal/telemetry"
)

// Sink stores stats rows.
type Sink interface {
	WriteSweep(telemetry.SweepRow) error
	WriteSnapshot(telemetry.SnapshotRow) error
	WriteConfig(telemetry.ConfigRow) error
}

// MultiSink fans rows out to several sinks.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink creates a MultiSink over sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Len returns the number of wrapped sinks.
func (m *MultiSink) Len() int { return len(m.sinks) }

// WriteSweep writes to every sink and joins their errors.
func (m *MultiSink) WriteSweep(r telemetry.SweepRow) error {
	var errs []error
	for _, s := range m.sinks {
		errs = append(errs, s.WriteSweep(r))
	}
	return errors.Join(errs...)
}

// WriteSnapshot writes to every sink and joins their errors.
func (m *MultiSink) WriteSnapshot(r telemetry.SnapshotRow) error {
	var errs []error
	for _, s := range m.sinks {
		errs = append(errs, s.WriteSnapshot(r))
	}
	return errors.Join(errs...)
}

// WriteConfig writes to every sink and joins their errors.
func (m *MultiSink) WriteConfig(r telemetry.ConfigRow) error {
	var errs []error
	for _, s := range m.sinks {
		errs = append(errs, s.WriteConfig(r))
	}
	return errors.Join(errs...)
}

// Discard is a Sink that drops every row.
type Discard struct{}

func (Discard) WriteSweep(telemetry.SweepRow) error       { return nil }
func (Discard) WriteSnapshot(telemetry.SnapshotRow) error { return nil }
func (Discard) WriteConfig(telemetry.ConfigRow) error     { return nil }
