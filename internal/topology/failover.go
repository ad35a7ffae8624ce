package topology

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	FailoverAvailability = "availability"
	FailoverConsistency  = "consistency"
)

// FailoverPriority: "availability", "consistency" o "consistency:<voters>".
type FailoverPriority struct {
	Type   string
	Voters int
}

func Availability() FailoverPriority { return FailoverPriority{Type: FailoverAvailability} }

func Consistency(voters int) FailoverPriority {
	return FailoverPriority{Type: FailoverConsistency, Voters: voters}
}

func (f FailoverPriority) IsConsistency() bool { return f.Type == FailoverConsistency }

func (f FailoverPriority) String() string {
	if f.Type == FailoverConsistency && f.Voters > 0 {
		return FailoverConsistency + ":" + strconv.Itoa(f.Voters)
	}
	return f.Type
}

func ParseFailoverPriority(s string) (FailoverPriority, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == FailoverAvailability:
		return Availability(), nil
	case s == FailoverConsistency:
		return Consistency(0), nil
	case strings.HasPrefix(s, FailoverConsistency+":"):
		n, err := strconv.Atoi(s[len(FailoverConsistency)+1:])
		if err != nil || n <= 0 {
			return FailoverPriority{}, fmt.Errorf("expected voter count to be a positive integer, but found: '%s'", s[len(FailoverConsistency)+1:])
		}
		return Consistency(n), nil
	default:
		return FailoverPriority{}, fmt.Errorf("expected one of: [availability, consistency, consistency:<voters>], but found: '%s'", s)
	}
}

func (f FailoverPriority) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

func (f *FailoverPriority) UnmarshalText(b []byte) error {
	v, err := ParseFailoverPriority(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}
