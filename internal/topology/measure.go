package topology

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Unidades admitidas. Cada setting restringe a un subconjunto.
var (
	TimeUnits   = []string{"ms", "s", "m", "h"}
	MemoryUnits = []string{"B", "KB", "MB", "GB", "TB", "PB"}
)

// Measure es una cantidad entera no negativa con unidad obligatoria.
type Measure struct {
	Quantity uint64
	Unit     string
}

func (m Measure) String() string {
	return strconv.FormatUint(m.Quantity, 10) + m.Unit
}

// ParseMeasure parsea "<quantity><unit>". La unidad es obligatoria incluso
// cuando la cantidad es 0 y debe pertenecer a allowed.
func ParseMeasure(s string, allowed []string) (Measure, error) {
	s = strings.TrimSpace(s)
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return Measure{}, fmt.Errorf("<quantity> is missing or not a valid non-negative integer. Measure should be specified in <quantity><unit> format")
	}
	q, err := strconv.ParseUint(s[:i], 10, 64)
	if err != nil {
		return Measure{}, fmt.Errorf("<quantity> is out of range. Measure should be specified in <quantity><unit> format")
	}
	unit := s[i:]
	if unit == "" {
		return Measure{}, fmt.Errorf("<unit> is missing. Measure should be specified in <quantity><unit> format")
	}
	for _, u := range allowed {
		if u == unit {
			return Measure{Quantity: q, Unit: unit}, nil
		}
	}
	return Measure{}, fmt.Errorf("<unit> must be one of %s", formatList(allowed))
}

// MustMeasure es para defaults estáticos.
func MustMeasure(s string, allowed []string) Measure {
	m, err := ParseMeasure(s, allowed)
	if err != nil {
		panic(err)
	}
	return m
}

// Duration convierte una medida de tiempo.
func (m Measure) Duration() (time.Duration, bool) {
	var base time.Duration
	switch m.Unit {
	case "ms":
		base = time.Millisecond
	case "s":
		base = time.Second
	case "m":
		base = time.Minute
	case "h":
		base = time.Hour
	default:
		return 0, false
	}
	return time.Duration(m.Quantity) * base, true
}

// Bytes convierte una medida de memoria.
func (m Measure) Bytes() (uint64, bool) {
	for i, u := range MemoryUnits {
		if u == m.Unit {
			b := m.Quantity
			for j := 0; j < i; j++ {
				b *= 1024
			}
			return b, true
		}
	}
	return 0, false
}

func (m Measure) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Measure) UnmarshalText(b []byte) error {
	all := append(append([]string{}, TimeUnits...), MemoryUnits...)
	v, err := ParseMeasure(string(b), all)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

func formatList(items []string) string {
	return "[" + strings.Join(items, ", ") + "]"
}
