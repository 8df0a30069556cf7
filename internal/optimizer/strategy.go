package optimizer

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownStrategy = errors.New("unknown strategy")

// Strategy selects how gaps are matched.
type Strategy int

const (
	// LeastTransfer looks for exact subset matches before falling back to
	// the greedy sweep, which usually yields fewer transfers.
	LeastTransfer Strategy = iota
	// Lazy runs only the greedy sweep.
	Lazy
)

func (s Strategy) String() string {
	switch s {
	case LeastTransfer:
		return "least-transfer"
	case Lazy:
		return "lazy"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// ParseStrategy accepts "least-transfer" / "least_transfer" / "least" and "lazy".
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "least-transfer", "least_transfer", "least", "":
		return LeastTransfer, nil
	case "lazy", "greedy":
		return Lazy, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
}
