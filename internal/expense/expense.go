// Package expense models a single shared cost: who paid, how much, and how
// the cost is split by integer weights. Every change to the split is a
// reversible commit, and every mutator either fully applies or leaves the
// record untouched.
package expense

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/susu3304/warikan/internal/ledger"
	"github.com/susu3304/warikan/internal/money"
)

const (
	MinWeight = 0
	MaxWeight = 999

	DefaultNote = "no notes"
)

var (
	ErrEmptyCreditor      = errors.New("creditor is required")
	ErrNegativeAmount     = errors.New("amount must not be negative")
	ErrWeightOutOfRange   = errors.New("weight out of range")
	ErrUnknownParticipant = errors.New("unknown participant")
	ErrLastParticipant    = errors.New("at least one participant has to remain")
	ErrNoHistory          = errors.New("already at the initial commit")
	ErrNoParticipants     = errors.New("expense has no participants")
)

// Share is a participant and their weight.
type Share struct {
	Name   string
	Weight int
}

// WeightChangeRequest asks for Name's weight to become Weight.
type WeightChangeRequest struct {
	Name   string
	Weight int
}

// Record is one shared-cost event.
type Record struct {
	creditor    string
	amount      float64
	note        string
	weights     map[string]int
	totalWeight int
	history     []Commit

	clock  *uint64
	logger *zap.Logger
}

type Option func(*Record)

func WithNote(note string) Option {
	return func(r *Record) {
		if note != "" {
			r.note = note
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(r *Record) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a record paid by creditor. It starts with no participants.
func New(creditor string, amount float64, opts ...Option) (*Record, error) {
	if creditor == "" {
		return nil, ErrEmptyCreditor
	}
	if err := checkAmount(amount); err != nil {
		return nil, err
	}
	r := &Record{
		creditor: creditor,
		amount:   amount,
		note:     DefaultNote,
		weights:  make(map[string]int),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func checkAmount(amount float64) error {
	if !money.Valid(amount) || amount < 0 {
		return fmt.Errorf("%w: %v", ErrNegativeAmount, amount)
	}
	return nil
}

func (r *Record) Creditor() string { return r.creditor }
func (r *Record) Amount() float64  { return r.amount }
func (r *Record) Note() string     { return r.note }
func (r *Record) TotalWeight() int { return r.totalWeight }

func (r *Record) NumParticipants() int { return len(r.weights) }

func (r *Record) HasParticipant(name string) bool {
	_, ok := r.weights[name]
	return ok
}

// Weight returns name's weight and whether name participates.
func (r *Record) Weight(name string) (int, bool) {
	w, ok := r.weights[name]
	return w, ok
}

// Shares returns the participants ordered by name.
func (r *Record) Shares() []Share {
	out := make([]Share, 0, len(r.weights))
	for name, w := range r.weights {
		out = append(out, Share{Name: name, Weight: w})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Participants returns participant names ordered by name.
func (r *Record) Participants() []string {
	shares := r.Shares()
	out := make([]string, len(shares))
	for i, s := range shares {
		out[i] = s.Name
	}
	return out
}

// History returns a copy of the commit log, oldest first.
func (r *Record) History() []Commit {
	out := make([]Commit, len(r.history))
	for i, c := range r.history {
		out[i] = c.clone()
	}
	return out
}

func (r *Record) SetNote(note string) {
	if note == "" {
		note = DefaultNote
	}
	r.note = note
	r.touch()
}

func (r *Record) SetAmount(amount float64) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	r.amount = amount
	r.touch()
	return nil
}

// AddParticipants gives every new name weight 1. Names already present are
// skipped and returned. The call is always recorded as one commit, even when
// every name was skipped, so RollBack undoes exactly this call.
func (r *Record) AddParticipants(names ...string) (skipped []string) {
	commit := Commit{Kind: AddParticipant}
	for _, name := range names {
		if name == "" {
			r.logger.Warn("empty participant name, ignored", zap.String("creditor", r.creditor))
			skipped = append(skipped, name)
			continue
		}
		if _, ok := r.weights[name]; ok {
			r.logger.Warn("participant already present, ignored",
				zap.String("creditor", r.creditor), zap.String("name", name))
			skipped = append(skipped, name)
			continue
		}
		r.weights[name] = 1
		r.totalWeight++
		commit.Diffs = append(commit.Diffs, Diff{Name: name, Before: 0, After: 1})
	}
	r.history = append(r.history, commit)
	r.touch()
	return skipped
}

// RemoveParticipants drops every present name and returns the absent ones.
// If the batch would leave no participant the whole call is reverted and
// ErrLastParticipant is returned.
func (r *Record) RemoveParticipants(names ...string) (skipped []string, err error) {
	commit := Commit{Kind: RemoveParticipant}
	for _, name := range names {
		w, ok := r.weights[name]
		if !ok {
			r.logger.Warn("participant not present, ignored",
				zap.String("creditor", r.creditor), zap.String("name", name))
			skipped = append(skipped, name)
			continue
		}
		commit.Diffs = append(commit.Diffs, Diff{Name: name, Before: w, After: 0})
		delete(r.weights, name)
		r.totalWeight -= w
	}
	r.history = append(r.history, commit)

	if len(r.weights) == 0 {
		r.logger.Warn("removal would leave no participant, rolled back",
			zap.String("creditor", r.creditor), zap.Strings("names", names))
		r.history = r.history[:len(r.history)-1]
		r.revert(commit)
		return nil, ErrLastParticipant
	}
	r.touch()
	return skipped, nil
}

// ChangeWeights applies the requests in order. The first invalid request
// (weight outside [MinWeight, MaxWeight] or unknown name) reverts the
// changes already made by this call and skips the rest. Weight 0 removes the
// participant; a call that would remove every participant is reverted.
func (r *Record) ChangeWeights(changes ...WeightChangeRequest) error {
	commit := Commit{Kind: WeightChange}
	for _, c := range changes {
		before, ok := r.weights[c.Name]
		if !ok && !r.inCommit(commit, c.Name) {
			r.revert(commit)
			return fmt.Errorf("%w: %s", ErrUnknownParticipant, c.Name)
		}
		if c.Weight < MinWeight || c.Weight > MaxWeight {
			r.revert(commit)
			return fmt.Errorf("%w: %s's weight %d is outside [%d, %d]",
				ErrWeightOutOfRange, c.Name, c.Weight, MinWeight, MaxWeight)
		}
		commit.Diffs = append(commit.Diffs, Diff{Name: c.Name, Before: before, After: c.Weight})
		r.setWeight(c.Name, c.Weight)
		r.totalWeight += c.Weight - before
	}
	if len(r.weights) == 0 && len(commit.Diffs) > 0 {
		r.revert(commit)
		return ErrLastParticipant
	}
	r.history = append(r.history, commit)
	r.touch()
	return nil
}

// inCommit reports whether name was zeroed earlier in the same call, which
// keeps "A 0, A 2" in a single request valid.
func (r *Record) inCommit(c Commit, name string) bool {
	for _, d := range c.Diffs {
		if d.Name == name {
			return true
		}
	}
	return false
}

// RollBack pops the latest commit and reverts it.
func (r *Record) RollBack() error {
	if len(r.history) == 0 {
		return ErrNoHistory
	}
	last := r.history[len(r.history)-1]
	r.history = r.history[:len(r.history)-1]
	r.revert(last)
	r.touch()
	return nil
}

// RollBackNonEmpty is RollBack for records that must keep at least one
// participant, such as committed expenses. When popping the latest commit
// would empty a non-empty record nothing changes and ErrLastParticipant is
// returned.
func (r *Record) RollBackNonEmpty() error {
	if len(r.history) == 0 {
		return ErrNoHistory
	}
	if len(r.weights) > 0 && r.participantsAfterRevert(r.history[len(r.history)-1]) == 0 {
		return ErrLastParticipant
	}
	return r.RollBack()
}

func (r *Record) participantsAfterRevert(c Commit) int {
	weights := make(map[string]int, len(r.weights))
	for name, w := range r.weights {
		weights[name] = w
	}
	for i := len(c.Diffs) - 1; i >= 0; i-- {
		d := c.Diffs[i]
		if d.Before > 0 {
			weights[d.Name] = d.Before
		} else {
			delete(weights, d.Name)
		}
	}
	return len(weights)
}

// State is a saved copy of a record's participants and history.
type State struct {
	weights     map[string]int
	totalWeight int
	history     []Commit
}

// Save captures the participants and history so a caller can restore them
// when a later step of a larger operation fails.
func (r *Record) Save() State {
	st := State{
		weights:     make(map[string]int, len(r.weights)),
		totalWeight: r.totalWeight,
		history:     r.History(),
	}
	for name, w := range r.weights {
		st.weights[name] = w
	}
	return st
}

// Restore puts back a state returned by Save.
func (r *Record) Restore(st State) {
	r.weights = make(map[string]int, len(st.weights))
	for name, w := range st.weights {
		r.weights[name] = w
	}
	r.totalWeight = st.totalWeight
	r.history = make([]Commit, len(st.history))
	for i, c := range st.history {
		r.history[i] = c.clone()
	}
	r.touch()
}

// Revert undoes c's diffs without touching the history. It is used to undo
// a partially applied change that was never pushed.
func (r *Record) Revert(c Commit) {
	r.revert(c)
	r.touch()
}

func (r *Record) revert(c Commit) {
	for i := len(c.Diffs) - 1; i >= 0; i-- {
		d := c.Diffs[i]
		r.setWeight(d.Name, d.Before)
		r.totalWeight -= d.After - d.Before
	}
}

func (r *Record) setWeight(name string, w int) {
	if w > 0 {
		r.weights[name] = w
		return
	}
	delete(r.weights, name)
}

// ToDebts splits the amount by weight: every participant, the creditor
// included, owes the creditor weight/total of the amount. With reverse the
// signs are flipped so folding the result undoes an earlier fold.
func (r *Record) ToDebts(reverse bool) ([]ledger.Debt, error) {
	total := 0
	for _, w := range r.weights {
		total += w
	}
	if total == 0 {
		return nil, ErrNoParticipants
	}
	sign := 1.0
	if reverse {
		sign = -1
	}
	shares := r.Shares()
	debts := make([]ledger.Debt, 0, len(shares))
	for _, s := range shares {
		share := float64(s.Weight) / float64(total)
		debts = append(debts, ledger.Debt{
			Creditor: r.creditor,
			Debtor:   s.Name,
			Amount:   sign * share * r.amount,
		})
	}
	return debts, nil
}

func (r *Record) String() string {
	return fmt.Sprintf("%s paid %s shared by %d participants (%s)",
		r.creditor, money.Format(r.amount), len(r.weights), r.note)
}

func (r *Record) touch() {
	if r.clock != nil {
		*r.clock++
	}
}
