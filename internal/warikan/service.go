package warikan

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/susu3304/warikan/internal/expense"
	"github.com/susu3304/warikan/internal/ledger"
	"github.com/susu3304/warikan/internal/money"
	"github.com/susu3304/warikan/internal/optimizer"
)

var (
	ErrNoSession      = errors.New("session has not been started")
	ErrUnknownMember  = errors.New("unknown member")
	ErrMemberInUse    = errors.New("member is referenced by an expense")
	ErrNoDraft        = errors.New("draft not found")
	ErrNoExpenses     = errors.New("no expenses recorded")
	ErrUnknownExpense = errors.New("expense not found")
	ErrNoTask         = errors.New("no pending settlement between the two")
	ErrTooFewMembers  = errors.New("at least two members are required")
	ErrEmptyName      = errors.New("empty member name")
)

const DefaultReminderInterval = time.Minute

type Service struct {
	mu       sync.Mutex
	store    map[string]*Group
	logger   *zap.Logger
	strategy optimizer.Strategy
	optOpts  []optimizer.Option
}

type Option func(*Service)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDefaultStrategy sets the strategy used by Optimize callers that do not
// pick one.
func WithDefaultStrategy(st optimizer.Strategy) Option {
	return func(s *Service) { s.strategy = st }
}

// WithOptimizerOptions is passed to every group's optimizer.
func WithOptimizerOptions(opts ...optimizer.Option) Option {
	return func(s *Service) { s.optOpts = append(s.optOpts, opts...) }
}

func NewService(opts ...Option) *Service {
	s := &Service{
		store:    make(map[string]*Group),
		logger:   zap.NewNop(),
		strategy: optimizer.LeastTransfer,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) DefaultStrategy() optimizer.Strategy { return s.strategy }

func (s *Service) StartSession(groupID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.store[groupID]; ok {
		g.Active = true
		return nil
	}
	opts := append([]optimizer.Option{optimizer.WithLogger(s.logger.Named("optimizer"))}, s.optOpts...)
	s.store[groupID] = &Group{
		ID:        groupID,
		Active:    true,
		members:   make(map[string]struct{}),
		ledger:    ledger.New(),
		book:      expense.NewBook(),
		drafts:    make(map[string]*draft),
		optimizer: optimizer.New(opts...),
		reminder:  reminder{interval: DefaultReminderInterval},
	}
	s.logger.Info("session started", zap.String("group", groupID))
	return nil
}

func (s *Service) StopSession(groupID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.store[groupID]; !ok {
		return ErrNoSession
	}
	delete(s.store, groupID)
	s.logger.Info("session stopped", zap.String("group", groupID))
	return nil
}

func (s *Service) group(groupID string) (*Group, error) {
	g, ok := s.store[groupID]
	if !ok || !g.Active {
		return nil, ErrNoSession
	}
	return g, nil
}

// AddMembers puts names into the member pool and returns the ones that were
// not there yet.
func (s *Service) AddMembers(groupID string, names ...string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.group(groupID)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		if name == "" {
			return nil, ErrEmptyName
		}
	}
	var added []string
	for _, name := range names {
		if _, ok := g.members[name]; ok {
			continue
		}
		g.members[name] = struct{}{}
		added = append(added, name)
	}
	return added, nil
}

// RemoveMembers drops names from the pool. Nothing is removed when any name
// is unknown or still referenced by a committed expense or an open draft.
func (s *Service) RemoveMembers(groupID string, names ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.group(groupID)
	if err != nil {
		return err
	}
	for _, name := range names {
		if _, ok := g.members[name]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownMember, name)
		}
		if g.referenced(name) {
			return fmt.Errorf("%w: %s", ErrMemberInUse, name)
		}
	}
	for _, name := range names {
		delete(g.members, name)
	}
	return nil
}

func (g *Group) referenced(name string) bool {
	uses := func(r *expense.Record) bool {
		return r.Creditor() == name || r.HasParticipant(name)
	}
	for _, id := range g.book.IDs() {
		if r, ok := g.book.Get(id); ok && uses(r) {
			return true
		}
	}
	for _, d := range g.drafts {
		if uses(d.record) {
			return true
		}
	}
	return false
}

func (s *Service) Members(groupID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.group(groupID)
	if err != nil {
		return nil, err
	}
	return g.memberList(), nil
}

func (g *Group) memberList() []string {
	out := make([]string, 0, len(g.members))
	for name := range g.members {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (g *Group) checkMembers(names ...string) error {
	for _, name := range names {
		if _, ok := g.members[name]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownMember, name)
		}
	}
	return nil
}

// newRecord builds an uncommitted record. With no participants every member
// shares it; otherwise the creditor is added to the given list.
func (s *Service) newRecord(g *Group, creditor string, amount float64, note string, participants []string) (*expense.Record, error) {
	if err := g.checkMembers(creditor); err != nil {
		return nil, err
	}
	if err := g.checkMembers(participants...); err != nil {
		return nil, err
	}
	opts := []expense.Option{expense.WithLogger(s.logger.Named("expense"))}
	if note != "" {
		opts = append(opts, expense.WithNote(note))
	}
	r, err := expense.New(creditor, amount, opts...)
	if err != nil {
		return nil, err
	}
	if len(participants) == 0 {
		r.AddParticipants(g.memberList()...)
	} else {
		names := make([]string, 0, len(participants)+1)
		names = append(names, participants...)
		r.AddParticipants(append(names, creditor)...)
	}
	return r, nil
}

// OpenDraft starts an expense that can be edited until it is committed.
func (s *Service) OpenDraft(groupID, owner, creditor string, amount float64, note string, participants []string) (ExpenseView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.group(groupID)
	if err != nil {
		return ExpenseView{}, err
	}
	r, err := s.newRecord(g, creditor, amount, note, participants)
	if err != nil {
		return ExpenseView{}, err
	}
	d := &draft{id: uuid.NewString(), owner: owner, record: r}
	g.drafts[d.id] = d
	return viewOf(d.id, r), nil
}

func (g *Group) draft(id string) (*draft, error) {
	d, ok := g.drafts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoDraft, id)
	}
	return d, nil
}

// editDraft runs fn against the draft's record under the lock and returns
// the updated view.
func (s *Service) editDraft(groupID, draftID string, fn func(g *Group, r *expense.Record) error) (ExpenseView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.group(groupID)
	if err != nil {
		return ExpenseView{}, err
	}
	d, err := g.draft(draftID)
	if err != nil {
		return ExpenseView{}, err
	}
	if err := fn(g, d.record); err != nil {
		return ExpenseView{}, err
	}
	return viewOf(d.id, d.record), nil
}

func (s *Service) Draft(groupID, draftID string) (ExpenseView, error) {
	return s.editDraft(groupID, draftID, func(*Group, *expense.Record) error { return nil })
}

// Drafts lists the open drafts of owner, or every draft when owner is empty.
func (s *Service) Drafts(groupID, owner string) ([]ExpenseView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.group(groupID)
	if err != nil {
		return nil, err
	}
	var out []ExpenseView
	for _, d := range g.drafts {
		if owner == "" || d.owner == owner {
			out = append(out, viewOf(d.id, d.record))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DraftAddParticipants adds members to a draft. Names already present are
// returned as skipped; any non-member aborts the whole call.
func (s *Service) DraftAddParticipants(groupID, draftID string, names ...string) (skipped []string, view ExpenseView, err error) {
	view, err = s.editDraft(groupID, draftID, func(g *Group, r *expense.Record) error {
		if err := g.checkMembers(names...); err != nil {
			return err
		}
		skipped = r.AddParticipants(names...)
		return nil
	})
	return skipped, view, err
}

func (s *Service) DraftRemoveParticipants(groupID, draftID string, names ...string) (skipped []string, view ExpenseView, err error) {
	view, err = s.editDraft(groupID, draftID, func(_ *Group, r *expense.Record) error {
		var err error
		skipped, err = r.RemoveParticipants(names...)
		return err
	})
	return skipped, view, err
}

func (s *Service) DraftChangeWeights(groupID, draftID string, changes ...expense.WeightChangeRequest) (ExpenseView, error) {
	return s.editDraft(groupID, draftID, func(_ *Group, r *expense.Record) error {
		return r.ChangeWeights(changes...)
	})
}

func (s *Service) DraftRollBack(groupID, draftID string) (ExpenseView, error) {
	return s.editDraft(groupID, draftID, func(_ *Group, r *expense.Record) error {
		return r.RollBack()
	})
}

func (s *Service) DraftSetNote(groupID, draftID, note string) (ExpenseView, error) {
	return s.editDraft(groupID, draftID, func(_ *Group, r *expense.Record) error {
		r.SetNote(note)
		return nil
	})
}

func (s *Service) DraftSetAmount(groupID, draftID string, amount float64) (ExpenseView, error) {
	return s.editDraft(groupID, draftID, func(_ *Group, r *expense.Record) error {
		return r.SetAmount(amount)
	})
}

func (s *Service) DiscardDraft(groupID, draftID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.group(groupID)
	if err != nil {
		return err
	}
	if _, err := g.draft(draftID); err != nil {
		return err
	}
	delete(g.drafts, draftID)
	return nil
}

// CommitDraft moves the draft into the book and folds its debts into the
// ledger.
func (s *Service) CommitDraft(groupID, draftID string) (ExpenseView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.group(groupID)
	if err != nil {
		return ExpenseView{}, err
	}
	d, err := g.draft(draftID)
	if err != nil {
		return ExpenseView{}, err
	}
	view, err := s.commit(g, d.record)
	if err != nil {
		return ExpenseView{}, err
	}
	delete(g.drafts, draftID)
	return view, nil
}

// AddExpense records an expense in one step. weights are applied after the
// participants are set; an invalid request leaves nothing behind.
func (s *Service) AddExpense(groupID, creditor string, amount float64, note string, participants []string, weights []expense.WeightChangeRequest) (ExpenseView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.group(groupID)
	if err != nil {
		return ExpenseView{}, err
	}
	r, err := s.newRecord(g, creditor, amount, note, participants)
	if err != nil {
		return ExpenseView{}, err
	}
	if len(weights) > 0 {
		if err := r.ChangeWeights(weights...); err != nil {
			return ExpenseView{}, err
		}
	}
	return s.commit(g, r)
}

func (s *Service) commit(g *Group, r *expense.Record) (ExpenseView, error) {
	debts, err := r.ToDebts(false)
	if err != nil {
		return ExpenseView{}, err
	}
	if err := g.ledger.AddDebts(debts); err != nil {
		return ExpenseView{}, err
	}
	id := g.book.Add(r)
	s.logger.Info("expense committed",
		zap.String("group", g.ID),
		zap.Stringer("id", id),
		zap.String("creditor", r.Creditor()),
		zap.Float64("amount", r.Amount()),
		zap.Int("participants", r.NumParticipants()),
	)
	return viewOf(id.String(), r), nil
}

func (s *Service) Expenses(groupID string) ([]ExpenseView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.group(groupID)
	if err != nil {
		return nil, err
	}
	ids := g.book.IDs()
	out := make([]ExpenseView, 0, len(ids))
	for _, id := range ids {
		r, _ := g.book.Get(id)
		out = append(out, viewOf(id.String(), r))
	}
	return out, nil
}

func (g *Group) expense(id string) (expense.ID, *expense.Record, error) {
	eid, err := expense.ParseID(id)
	if err != nil {
		return expense.ID{}, nil, err
	}
	r, ok := g.book.Get(eid)
	if !ok {
		return expense.ID{}, nil, fmt.Errorf("%w: %s", ErrUnknownExpense, id)
	}
	return eid, r, nil
}

// UndoExpense removes the most recently committed expense.
func (s *Service) UndoExpense(groupID string) (ExpenseView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.group(groupID)
	if err != nil {
		return ExpenseView{}, err
	}
	id, _, ok := g.book.Last()
	if !ok {
		return ExpenseView{}, ErrNoExpenses
	}
	return s.remove(g, id)
}

func (s *Service) RemoveExpense(groupID, id string) (ExpenseView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.group(groupID)
	if err != nil {
		return ExpenseView{}, err
	}
	eid, _, err := g.expense(id)
	if err != nil {
		return ExpenseView{}, err
	}
	return s.remove(g, eid)
}

func (s *Service) remove(g *Group, id expense.ID) (ExpenseView, error) {
	r, _ := g.book.Get(id)
	debts, err := r.ToDebts(true)
	if err != nil {
		return ExpenseView{}, err
	}
	if err := g.ledger.AddDebts(debts); err != nil {
		return ExpenseView{}, err
	}
	g.book.Remove(id)
	s.logger.Info("expense removed", zap.String("group", g.ID), zap.Stringer("id", id))
	return viewOf(id.String(), r), nil
}

// amend applies fn to a committed record and refolds its debts. The ledger
// is left untouched when fn fails.
func (s *Service) amend(groupID, id string, fn func(r *expense.Record) error) (ExpenseView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.group(groupID)
	if err != nil {
		return ExpenseView{}, err
	}
	_, r, err := g.expense(id)
	if err != nil {
		return ExpenseView{}, err
	}
	undo, err := r.ToDebts(true)
	if err != nil {
		return ExpenseView{}, err
	}
	saved := r.Save()
	if err := fn(r); err != nil {
		return ExpenseView{}, err
	}
	redo, err := r.ToDebts(false)
	if err == nil {
		err = g.ledger.AddDebts(append(undo, redo...))
	}
	if err != nil {
		r.Restore(saved)
		s.logger.Warn("amend failed, expense restored",
			zap.String("group", groupID), zap.String("expense", id), zap.Error(err))
		return ExpenseView{}, err
	}
	return viewOf(id, r), nil
}

// ReweightExpense changes weights of a committed expense.
func (s *Service) ReweightExpense(groupID, id string, changes ...expense.WeightChangeRequest) (ExpenseView, error) {
	return s.amend(groupID, id, func(r *expense.Record) error {
		return r.ChangeWeights(changes...)
	})
}

// RollBackExpense reverts the latest participant change of a committed
// expense. A rollback that would leave the expense without participants is
// refused with expense.ErrLastParticipant.
func (s *Service) RollBackExpense(groupID, id string) (ExpenseView, error) {
	return s.amend(groupID, id, func(r *expense.Record) error {
		return r.RollBackNonEmpty()
	})
}

// Balances returns every outstanding ledger edge.
func (s *Service) Balances(groupID string) ([]ledger.Debt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.group(groupID)
	if err != nil {
		return nil, err
	}
	return g.ledger.Edges(), nil
}

// Optimize computes a settlement plan over every committed expense and
// replaces the pending tasks with it.
func (s *Service) Optimize(groupID string, strategy optimizer.Strategy) (Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.group(groupID)
	if err != nil {
		return Plan{}, err
	}
	if len(g.members) < 2 {
		return Plan{}, ErrTooFewMembers
	}
	ids := g.book.IDs()
	if len(ids) == 0 {
		return Plan{}, ErrNoExpenses
	}
	if err := g.optimizer.Optimize(g.book, ids, strategy); err != nil {
		return Plan{}, err
	}
	settlements, err := g.optimizer.Settlements()
	if err != nil {
		return Plan{}, err
	}
	stats, err := g.optimizer.Stats()
	if err != nil {
		return Plan{}, err
	}

	g.tasks = g.tasks[:0]
	for _, st := range settlements {
		g.tasks = append(g.tasks, SettlementTask{PayerID: st.From, PayeeID: st.To, Amount: st.Amount})
	}
	if g.reminder.enabled {
		g.reminder.nextDueAt = time.Now().Add(g.reminder.interval)
	}
	s.logger.Info("settlement planned",
		zap.String("group", g.ID),
		zap.Stringer("strategy", strategy),
		zap.Int("transfers", len(settlements)),
	)
	return Plan{Settlements: settlements, Stats: stats}, nil
}

// Statement reports name's share of the last plan. It fails with
// optimizer.ErrOutOfTime when expenses changed after the plan was made.
func (s *Service) Statement(groupID, name string) (Statement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.group(groupID)
	if err != nil {
		return Statement{}, err
	}
	sum, err := g.optimizer.Summary(name)
	if err != nil {
		return Statement{}, err
	}
	if !g.optimizer.IsUpToTime(g.book.Version()) {
		return Statement{}, fmt.Errorf("%w: expenses changed since the last plan", optimizer.ErrOutOfTime)
	}
	st := Statement{Summary: sum}
	for _, id := range sum.Expenses {
		if r, ok := g.book.Get(id); ok {
			st.Expenses = append(st.Expenses, viewOf(id.String(), r))
		}
	}
	for _, id := range sum.Payments {
		if r, ok := g.book.Get(id); ok {
			st.Payments = append(st.Payments, viewOf(id.String(), r))
		}
	}
	return st, nil
}

// CompleteTransfer marks the first pending task between actor and other, in
// either direction, as done.
func (s *Service) CompleteTransfer(groupID, actorID, otherID string) (SettlementTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.group(groupID)
	if err != nil {
		return SettlementTask{}, err
	}
	for i := range g.tasks {
		t := &g.tasks[i]
		if t.Completed {
			continue
		}
		if (t.PayerID == actorID && t.PayeeID == otherID) || (t.PayerID == otherID && t.PayeeID == actorID) {
			t.Completed = true
			return *t, nil
		}
	}
	return SettlementTask{}, ErrNoTask
}

func (s *Service) PendingTasks(groupID string) ([]SettlementTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.group(groupID)
	if err != nil {
		return nil, err
	}
	return g.pending(), nil
}

func (g *Group) pending() []SettlementTask {
	var out []SettlementTask
	for _, t := range g.tasks {
		if !t.Completed && !money.IsZero(t.Amount) {
			out = append(out, t)
		}
	}
	return out
}

// SetReminder enables periodic reminders of pending tasks, posted to
// channelID. A non-positive interval keeps the current one.
func (s *Service) SetReminder(groupID, channelID string, interval time.Duration, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.group(groupID)
	if err != nil {
		return err
	}
	if interval > 0 {
		g.reminder.interval = interval
	}
	g.reminder.enabled = true
	g.reminder.channelID = channelID
	g.reminder.nextDueAt = now.Add(g.reminder.interval)
	return nil
}

func (s *Service) DisableReminder(groupID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.group(groupID)
	if err != nil {
		return err
	}
	g.reminder.enabled = false
	return nil
}

// DueReminders returns the groups whose reminder is due at now and that
// still have pending tasks.
func (s *Service) DueReminders(now time.Time) []ReminderTarget {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ReminderTarget
	for id, g := range s.store {
		rem := g.reminder
		if !g.Active || !rem.enabled || now.Before(rem.nextDueAt) || len(g.pending()) == 0 {
			continue
		}
		out = append(out, ReminderTarget{GroupID: id, ChannelID: rem.channelID, Interval: rem.interval})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GroupID < out[j].GroupID })
	return out
}

// MarkReminded schedules the next reminder of the group at next.
func (s *Service) MarkReminded(groupID string, next time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.store[groupID]; ok {
		g.reminder.nextDueAt = next
	}
}
