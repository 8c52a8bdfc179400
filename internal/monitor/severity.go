package monitor

// Severity classifies the instantaneous throughput.
type Severity int

const (
	Normal Severity = iota
	Warning
	Critical
)

func (s Severity) String() string {
	switch s {
	case Warning:
		return "warning"
	case Critical:
		return "critical"
	default:
		return "normal"
	}
}

// MarshalText renders the severity by name.
func (s Severity) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Classify maps a metric onto a severity. Values equal to a threshold fall
// into the healthier band.
func Classify(metric, warning, critical float64) Severity {
	switch {
	case metric < critical:
		return Critical
	case metric < warning:
		return Warning
	default:
		return Normal
	}
}

// Band is a display colour for a metric value.
type Band string

const (
	Green  Band = "green"
	Yellow Band = "yellow"
	Orange Band = "orange"
	Red    Band = "red"
)

// BandFor returns the display band of metric.
func BandFor(metric float64) Band {
	switch {
	case metric >= 19:
		return Green
	case metric >= 17:
		return Yellow
	case metric >= 15:
		return Orange
	default:
		return Red
	}
}
