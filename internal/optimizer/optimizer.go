// Package optimizer turns a batch of expense records into per-participant
// net gaps and a small set of transfers that settles all of them.
//
// Aggregation is exact; matching first looks for subsets of debtors that pay
// off a creditor exactly (and the reverse), then sweeps whatever is left
// greedily. The subset search is exponential in the worst case, so it runs
// under a per-target node budget and is skipped entirely for large groups;
// in both cases the greedy sweep still settles every gap.
package optimizer

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/susu3304/warikan/internal/expense"
	"github.com/susu3304/warikan/internal/money"
)

const (
	DefaultSearchLimit  = 100000
	DefaultExactMaxGaps = 40
)

var (
	ErrNameNotFound  = errors.New("name not found")
	ErrOutOfTime     = errors.New("optimization is out of time")
	ErrNoResult      = errors.New("no optimization has been run")
	ErrEmptyExpense  = errors.New("expense has no participants")
	ErrInvalidAmount = errors.New("invalid amount")
)

// Stats describes how the last optimization went.
type Stats struct {
	Strategy     Strategy
	Participants int
	Transfers    int
	ExactMatches int
	// BudgetExhausted is set when at least one subset search hit the node
	// budget and the gap was left to the greedy sweep.
	BudgetExhausted bool
	// FellBackToLazy is set when the exact phase was skipped because there
	// were more than ExactMaxGaps non-zero gaps.
	FellBackToLazy bool
}

type result struct {
	book        *expense.Book
	timestamp   uint64
	accounts    map[string]*account
	names       []string
	settlements []Settlement
	stats       Stats
}

// Optimizer keeps the result of the last Optimize call. Queries are
// read-only and may run concurrently once Optimize has returned; Optimize
// itself must not run concurrently with anything else.
type Optimizer struct {
	logger       *zap.Logger
	searchLimit  int
	exactMaxGaps int

	last *result
}

type Option func(*Optimizer)

func WithLogger(logger *zap.Logger) Option {
	return func(o *Optimizer) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithSearchLimit caps the nodes visited by one subset search. 0 disables
// the cap.
func WithSearchLimit(n int) Option {
	return func(o *Optimizer) { o.searchLimit = n }
}

// WithExactMaxGaps sets how many non-zero gaps the exact phase accepts
// before falling back to Lazy. 0 disables the fallback.
func WithExactMaxGaps(n int) Option {
	return func(o *Optimizer) { o.exactMaxGaps = n }
}

func New(opts ...Option) *Optimizer {
	o := &Optimizer{
		logger:       zap.NewNop(),
		searchLimit:  DefaultSearchLimit,
		exactMaxGaps: DefaultExactMaxGaps,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Optimize aggregates the records behind ids and computes the transfers.
// Every id must be alive in book. On error the previous result is kept.
func (o *Optimizer) Optimize(book *expense.Book, ids []expense.ID, strategy Strategy) error {
	if strategy != LeastTransfer && strategy != Lazy {
		return fmt.Errorf("%w: %d", ErrUnknownStrategy, int(strategy))
	}

	res := &result{
		book:      book,
		timestamp: book.Version(),
		accounts:  make(map[string]*account),
	}
	if err := res.aggregate(ids); err != nil {
		return err
	}

	res.stats = Stats{Strategy: strategy, Participants: len(res.names)}
	res.match(strategy, o.searchLimit, o.exactMaxGaps)

	if res.stats.BudgetExhausted {
		o.logger.Warn("subset search budget exhausted, greedy sweep used for the rest",
			zap.Int("search_limit", o.searchLimit))
	}
	if res.stats.FellBackToLazy {
		o.logger.Warn("too many gaps for exact matching, fell back to lazy",
			zap.Int("exact_max_gaps", o.exactMaxGaps))
	}
	o.logger.Debug("expenses optimized",
		zap.Stringer("strategy", strategy),
		zap.Int("expenses", len(ids)),
		zap.Int("participants", res.stats.Participants),
		zap.Int("transfers", res.stats.Transfers),
		zap.Int("exact_matches", res.stats.ExactMatches),
	)

	o.last = res
	return nil
}

func (r *result) account(name string) *account {
	a, ok := r.accounts[name]
	if !ok {
		a = &account{name: name}
		r.accounts[name] = a
		r.names = append(r.names, name)
	}
	return a
}

// aggregate folds every listed expense into the accounts. Repeated IDs are
// counted once.
func (r *result) aggregate(ids []expense.ID) error {
	seen := make(map[expense.ID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		rec, ok := r.book.Get(id)
		if !ok {
			return fmt.Errorf("%w: expense %s no longer exists", ErrOutOfTime, id)
		}
		total := rec.TotalWeight()
		if total <= 0 {
			return fmt.Errorf("%w: %s", ErrEmptyExpense, rec)
		}
		for _, s := range rec.Shares() {
			share := float64(s.Weight) / float64(total)
			if err := r.account(s.Name).accrueExpense(id, rec.Amount()*share); err != nil {
				return err
			}
		}
		if err := r.account(rec.Creditor()).accruePayment(id, rec.Amount()); err != nil {
			return err
		}
	}
	sort.Strings(r.names)
	return nil
}

func (r *result) match(strategy Strategy, limit, maxGaps int) {
	var creditors, debtors []gap
	for _, name := range r.names {
		g := r.accounts[name].gap()
		switch {
		case money.IsZero(g):
		case g > 0:
			creditors = append(creditors, gap{name: name, amount: g})
		default:
			debtors = append(debtors, gap{name: name, amount: -g})
		}
	}
	sortGaps(creditors)
	sortGaps(debtors)

	m := &matcher{limit: limit, emit: r.emit}
	if strategy == LeastTransfer {
		if maxGaps > 0 && len(creditors)+len(debtors) > maxGaps {
			r.stats.FellBackToLazy = true
		} else {
			m.exactMatch(creditors, debtors, true)
			m.exactMatch(debtors, creditors, false)
		}
	}
	m.greedy(creditors, debtors)

	r.stats.ExactMatches = m.exact
	r.stats.BudgetExhausted = m.exhausted
	r.stats.Transfers = len(r.settlements)
}

func (r *result) emit(creditor, debtor string, amount float64) {
	r.accounts[creditor].settle(debtor, amount)
	r.accounts[debtor].settle(creditor, -amount)
	r.settlements = append(r.settlements, Settlement{From: debtor, To: creditor, Amount: amount})
}

// IsUpToTime reports whether the last result was computed at or after the
// given book version. Pass expense.Book.Version().
func (o *Optimizer) IsUpToTime(timestamp uint64) bool {
	return o.last != nil && o.last.timestamp >= timestamp
}

// Timestamp returns the book version the last result was computed at.
func (o *Optimizer) Timestamp() (uint64, bool) {
	if o.last == nil {
		return 0, false
	}
	return o.last.timestamp, true
}

// Stats returns statistics of the last run.
func (o *Optimizer) Stats() (Stats, error) {
	if o.last == nil {
		return Stats{}, ErrNoResult
	}
	return o.last.stats, nil
}

// Participants lists every name of the last result, sorted.
func (o *Optimizer) Participants() []string {
	if o.last == nil {
		return nil
	}
	out := make([]string, len(o.last.names))
	copy(out, o.last.names)
	return out
}

// Settlements lists every transfer of the last result in payer -> payee
// form, in the order they were produced.
func (o *Optimizer) Settlements() ([]Settlement, error) {
	if o.last == nil {
		return nil, ErrNoResult
	}
	for _, name := range o.last.names {
		if err := o.last.checkAlive(o.last.accounts[name]); err != nil {
			return nil, err
		}
	}
	out := make([]Settlement, len(o.last.settlements))
	copy(out, o.last.settlements)
	return out, nil
}

// Summary returns everything derived for name.
func (o *Optimizer) Summary(name string) (Summary, error) {
	a, err := o.lookup(name)
	if err != nil {
		return Summary{}, err
	}
	return a.summary(), nil
}

// Transfers returns name's transfers.
func (o *Optimizer) Transfers(name string) ([]Transfer, error) {
	s, err := o.Summary(name)
	if err != nil {
		return nil, err
	}
	return s.Transfers, nil
}

// Expenses resolves the records name shares in.
func (o *Optimizer) Expenses(name string) ([]*expense.Record, error) {
	a, err := o.lookup(name)
	if err != nil {
		return nil, err
	}
	return o.last.resolve(a.expenses)
}

// Payments resolves the records name paid for.
func (o *Optimizer) Payments(name string) ([]*expense.Record, error) {
	a, err := o.lookup(name)
	if err != nil {
		return nil, err
	}
	return o.last.resolve(a.payments)
}

func (o *Optimizer) lookup(name string) (*account, error) {
	if o.last == nil {
		return nil, ErrNoResult
	}
	a, ok := o.last.accounts[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNameNotFound, name)
	}
	if err := o.last.checkAlive(a); err != nil {
		return nil, err
	}
	return a, nil
}

func (r *result) checkAlive(a *account) error {
	for _, ids := range [][]expense.ID{a.expenses, a.payments} {
		for _, id := range ids {
			if !r.book.Alive(id) {
				return fmt.Errorf("%w: expense %s referenced by %s was removed", ErrOutOfTime, id, a.name)
			}
		}
	}
	return nil
}

func (r *result) resolve(ids []expense.ID) ([]*expense.Record, error) {
	out := make([]*expense.Record, 0, len(ids))
	for _, id := range ids {
		rec, ok := r.book.Get(id)
		if !ok {
			return nil, fmt.Errorf("%w: expense %s was removed", ErrOutOfTime, id)
		}
		out = append(out, rec)
	}
	return out, nil
}
