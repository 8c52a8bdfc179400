package stats

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"worldclear/internal/telemetry"
)

// ReplayLog replays stats records from r into sink. A speed >0 reproduces
// the original spacing, accelerated by speed. If speed <= 0, no artificial
// delay is inserted. It returns the number of records replayed.
func ReplayLog(r io.Reader, sink Sink, speed float64) (int, error) {
	dec := json.NewDecoder(r)
	var prev time.Time
	n := 0
	for {
		var rec telemetry.Record
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				return n, nil
			}
			return n, err
		}
		ts, err := recordTime(rec)
		if err != nil {
			return n, err
		}
		if !prev.IsZero() && speed > 0 {
			diff := time.Duration(float64(ts.Sub(prev)) / speed)
			if diff > 0 {
				time.Sleep(diff)
			}
		}
		if err := writeRecord(sink, rec); err != nil {
			return n, err
		}
		prev = ts
		n++
	}
}

func recordTime(rec telemetry.Record) (time.Time, error) {
	switch {
	case rec.Kind == telemetry.KindSweep && rec.Sweep != nil:
		return rec.Sweep.Timestamp, nil
	case rec.Kind == telemetry.KindSnapshot && rec.Snapshot != nil:
		return rec.Snapshot.Timestamp, nil
	case rec.Kind == telemetry.KindConfig && rec.Config != nil:
		return rec.Config.Timestamp, nil
	default:
		return time.Time{}, fmt.Errorf("malformed stats record of kind %q", rec.Kind)
	}
}

func writeRecord(sink Sink, rec telemetry.Record) error {
	switch rec.Kind {
	case telemetry.KindSweep:
		return sink.WriteSweep(*rec.Sweep)
	case telemetry.KindSnapshot:
		return sink.WriteSnapshot(*rec.Snapshot)
	default:
		return sink.WriteConfig(*rec.Config)
	}
}

// ReplayLogFile opens a file and replays its records.
func ReplayLogFile(path string, sink Sink, speed float64) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return ReplayLog(f, sink, speed)
}
