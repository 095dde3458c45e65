package lazy

import (
	"fmt"
	"strconv"
	"strings"
)

// Threshold expands the viewport window by an absolute distance or by a
// percentage of the viewport height.
type Threshold struct {
	Value   float64
	Percent bool
}

// Pixels returns an absolute threshold.
func Pixels(v float64) Threshold {
	return Threshold{Value: v}
}

// Percent returns a threshold relative to the viewport height.
func Percent(v float64) Threshold {
	return Threshold{Value: v, Percent: true}
}

// ParseThreshold parses "200", "200px" or "10%".
func ParseThreshold(s string) (Threshold, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return Threshold{}, fmt.Errorf("empty threshold")
	}
	percent := false
	num := raw
	switch {
	case strings.HasSuffix(num, "%"):
		percent = true
		num = strings.TrimSuffix(num, "%")
	case strings.HasSuffix(strings.ToLower(num), "px"):
		num = num[:len(num)-2]
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid threshold %q: %w", s, err)
	}
	return Threshold{Value: v, Percent: percent}, nil
}

// Resolve returns the distance in pixels for the given viewport height.
// Percentages are resolved on every call so resizes take effect.
func (t Threshold) Resolve(viewportHeight float64) float64 {
	if t.Percent {
		return viewportHeight * t.Value / 100
	}
	return t.Value
}

func (t Threshold) String() string {
	v := strconv.FormatFloat(t.Value, 'f', -1, 64)
	if t.Percent {
		return v + "%"
	}
	return v
}

// MarshalText lets thresholds appear in YAML and JSON as "200" or "10%".
func (t Threshold) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Threshold) UnmarshalText(b []byte) error {
	parsed, err := ParseThreshold(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
