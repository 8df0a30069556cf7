// Package ledger keeps pairwise net debts between people. For any pair at
// most one direction is stored and stored amounts are always positive:
// opposing debts cancel each other as they are folded in.
package ledger

import (
	"errors"
	"fmt"
	"sort"

	"github.com/susu3304/warikan/internal/money"
)

var ErrInvalidDebt = errors.New("invalid debt")

// Debt states that Debtor owes Creditor Amount. A negative Amount is
// allowed when folding and reduces (or reverses) the existing edge.
type Debt struct {
	Creditor string
	Debtor   string
	Amount   float64
}

func (d Debt) String() string {
	return fmt.Sprintf("%s owes %s %s", d.Debtor, d.Creditor, money.Format(d.Amount))
}

func (d Debt) validate() error {
	if d.Creditor == "" || d.Debtor == "" {
		return fmt.Errorf("%w: empty name in %q -> %q", ErrInvalidDebt, d.Debtor, d.Creditor)
	}
	if !money.Valid(d.Amount) {
		return fmt.Errorf("%w: amount %v for %s -> %s", ErrInvalidDebt, d.Amount, d.Debtor, d.Creditor)
	}
	return nil
}

// Ledger maps debtor -> creditor -> amount.
type Ledger struct {
	debts map[string]map[string]float64
	folks map[string]struct{}
}

func New() *Ledger {
	return &Ledger{
		debts: make(map[string]map[string]float64),
		folks: make(map[string]struct{}),
	}
}

// AddDebt folds d into the ledger. The signed balance between the pair is
// recomputed and stored in whichever direction is positive; a balance
// within money.Epsilon of zero removes the edge entirely.
func (l *Ledger) AddDebt(d Debt) error {
	if err := d.validate(); err != nil {
		return err
	}
	l.folks[d.Debtor] = struct{}{}
	l.folks[d.Creditor] = struct{}{}
	if d.Debtor == d.Creditor {
		return nil
	}

	// positive: debtor currently owes creditor
	balance := l.get(d.Debtor, d.Creditor) - l.get(d.Creditor, d.Debtor)
	balance += d.Amount

	switch {
	case money.IsZero(balance):
		l.remove(d.Debtor, d.Creditor)
		l.remove(d.Creditor, d.Debtor)
	case balance > 0:
		l.set(d.Debtor, d.Creditor, balance)
		l.remove(d.Creditor, d.Debtor)
	default:
		l.set(d.Creditor, d.Debtor, -balance)
		l.remove(d.Debtor, d.Creditor)
	}
	return nil
}

// AddDebts validates every debt first and then folds them in order. When a
// debt is invalid nothing is applied.
func (l *Ledger) AddDebts(debts []Debt) error {
	for _, d := range debts {
		if err := d.validate(); err != nil {
			return err
		}
	}
	for _, d := range debts {
		if err := l.AddDebt(d); err != nil {
			return err
		}
	}
	return nil
}

// Debt returns how much debtor owes creditor, or 0 when no edge is stored
// in that direction.
func (l *Ledger) Debt(debtor, creditor string) float64 {
	return l.get(debtor, creditor)
}

// AllDebts returns a copy of everything person owes, keyed by creditor.
// ok is false when person owes nobody.
func (l *Ledger) AllDebts(person string) (debts map[string]float64, ok bool) {
	inner := l.debts[person]
	if len(inner) == 0 {
		return nil, false
	}
	out := make(map[string]float64, len(inner))
	for creditor, amount := range inner {
		out[creditor] = amount
	}
	return out, true
}

// Net returns what others owe person minus what person owes others.
func (l *Ledger) Net(person string) float64 {
	var net float64
	for debtor, inner := range l.debts {
		if debtor == person {
			for _, amount := range inner {
				net -= amount
			}
			continue
		}
		net += inner[person]
	}
	return money.Snap(net)
}

// Participants returns every name seen since the last Clear, sorted.
func (l *Ledger) Participants() []string {
	out := make([]string, 0, len(l.folks))
	for name := range l.folks {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Edges lists every stored debt ordered by debtor, then creditor.
func (l *Ledger) Edges() []Debt {
	var out []Debt
	for debtor, inner := range l.debts {
		for creditor, amount := range inner {
			out = append(out, Debt{Creditor: creditor, Debtor: debtor, Amount: amount})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Debtor != out[j].Debtor {
			return out[i].Debtor < out[j].Debtor
		}
		return out[i].Creditor < out[j].Creditor
	})
	return out
}

// Len returns the number of stored edges.
func (l *Ledger) Len() int {
	n := 0
	for _, inner := range l.debts {
		n += len(inner)
	}
	return n
}

func (l *Ledger) Clear() {
	l.debts = make(map[string]map[string]float64)
	l.folks = make(map[string]struct{})
}

func (l *Ledger) get(debtor, creditor string) float64 {
	return l.debts[debtor][creditor]
}

func (l *Ledger) set(debtor, creditor string, amount float64) {
	inner, ok := l.debts[debtor]
	if !ok {
		inner = make(map[string]float64)
		l.debts[debtor] = inner
	}
	inner[creditor] = amount
}

func (l *Ledger) remove(debtor, creditor string) {
	inner, ok := l.debts[debtor]
	if !ok {
		return
	}
	delete(inner, creditor)
	if len(inner) == 0 {
		delete(l.debts, debtor)
	}
}
