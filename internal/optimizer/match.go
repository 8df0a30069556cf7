package optimizer

import (
	"math"
	"sort"

	"github.com/susu3304/warikan/internal/money"
)

type gap struct {
	name   string
	amount float64
}

// sortGaps orders gaps by amount, ascending. Equal amounts keep their
// incoming order.
func sortGaps(gs []gap) {
	sort.SliceStable(gs, func(i, j int) bool { return gs[i].amount < gs[j].amount })
}

// matcher pairs creditor gaps with debtor gaps and reports every transfer
// through emit(creditor, debtor, amount).
type matcher struct {
	limit     int
	nodes     int
	exhausted bool
	exact     int
	emit      func(creditor, debtor string, amount float64)
}

// exactMatch settles each target gap against a subset of pool whose amounts sum
// to it. Targets and pool must be sorted ascending.
func (m *matcher) exactMatch(targets, pool []gap, targetIsCreditor bool) {
	for i := range targets {
		if money.IsZero(targets[i].amount) {
			continue
		}
		picked := m.subsetSum(pool, targets[i].amount)
		if picked == nil {
			continue
		}
		for _, j := range picked {
			if targetIsCreditor {
				m.emit(targets[i].name, pool[j].name, pool[j].amount)
			} else {
				m.emit(pool[j].name, targets[i].name, pool[j].amount)
			}
			pool[j].amount = 0
		}
		targets[i].amount = 0
		m.exact++
	}
}

// subsetSum returns indexes into pool whose amounts sum to target, or nil.
// Zeroed entries are skipped; since pool is ascending, the search stops
// descending as soon as a candidate exceeds what is left of the target.
// The search gives up once limit nodes have been visited for this target.
func (m *matcher) subsetSum(pool []gap, target float64) []int {
	m.nodes = 0
	var picked []int
	var search func(start int, remaining float64) bool
	search = func(start int, remaining float64) bool {
		if money.IsZero(remaining) {
			return len(picked) > 0
		}
		prev := math.NaN()
		for i := start; i < len(pool); i++ {
			amount := pool[i].amount
			if money.IsZero(amount) {
				continue
			}
			if money.Greater(amount, remaining) {
				break
			}
			// an equal amount at the same depth leads to the same subtree
			if !math.IsNaN(prev) && money.Equal(amount, prev) {
				continue
			}
			prev = amount
			if m.limit > 0 && m.nodes >= m.limit {
				m.exhausted = true
				return false
			}
			m.nodes++
			picked = append(picked, i)
			if search(i+1, remaining-amount) {
				return true
			}
			picked = picked[:len(picked)-1]
		}
		return false
	}
	if search(0, target) {
		return picked
	}
	return nil
}

// greedy sweeps the non-zero creditor and debtor gaps with two pointers,
// settling the smaller of the two current gaps in full each step.
func (m *matcher) greedy(creditors, debtors []gap) {
	cs := nonZero(creditors)
	ds := nonZero(debtors)
	i, j := 0, 0
	for i < len(cs) && j < len(ds) {
		amount := math.Min(cs[i].amount, ds[j].amount)
		m.emit(cs[i].name, ds[j].name, amount)
		cs[i].amount -= amount
		ds[j].amount -= amount
		if money.IsZero(cs[i].amount) {
			i++
		}
		if money.IsZero(ds[j].amount) {
			j++
		}
	}
}

func nonZero(gs []gap) []gap {
	out := make([]gap, 0, len(gs))
	for _, g := range gs {
		if !money.IsZero(g.amount) {
			out = append(out, g)
		}
	}
	return out
}
