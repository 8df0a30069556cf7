package expense

import (
	"fmt"
	"strings"
)

// CommitKind tells what kind of change a Commit recorded.
type CommitKind int

const (
	WeightChange CommitKind = iota
	AddParticipant
	RemoveParticipant
)

func (k CommitKind) String() string {
	switch k {
	case WeightChange:
		return "weight changes"
	case AddParticipant:
		return "add participant"
	case RemoveParticipant:
		return "remove participant"
	default:
		return "undefined commit"
	}
}

// Diff is one participant's weight before and after a change. A weight of
// 0 means the participant was absent.
type Diff struct {
	Name   string
	Before int
	After  int
}

// Commit is one reversible batch of changes.
type Commit struct {
	Kind  CommitKind
	Diffs []Diff
}

func (c Commit) String() string {
	parts := make([]string, 0, len(c.Diffs))
	for _, d := range c.Diffs {
		if c.Kind == WeightChange {
			parts = append(parts, fmt.Sprintf("%s(%d -> %d)", d.Name, d.Before, d.After))
		} else {
			parts = append(parts, d.Name)
		}
	}
	return c.Kind.String() + ": " + strings.Join(parts, ", ")
}

func (c Commit) clone() Commit {
	diffs := make([]Diff, len(c.Diffs))
	copy(diffs, c.Diffs)
	return Commit{Kind: c.Kind, Diffs: diffs}
}
