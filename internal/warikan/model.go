package warikan

import (
	"time"

	"github.com/susu3304/warikan/internal/expense"
	"github.com/susu3304/warikan/internal/ledger"
	"github.com/susu3304/warikan/internal/optimizer"
)

// Group is everything one channel tracks: the member pool, committed
// expenses, the pairwise ledger they fold into, open drafts and the last
// optimization.
type Group struct {
	ID        string
	Active    bool
	members   map[string]struct{}
	ledger    *ledger.Ledger
	book      *expense.Book
	drafts    map[string]*draft
	optimizer *optimizer.Optimizer
	tasks     []SettlementTask
	reminder  reminder
}

type draft struct {
	id     string
	owner  string
	record *expense.Record
}

type reminder struct {
	enabled   bool
	channelID string
	interval  time.Duration
	nextDueAt time.Time
}

// ExpenseView is a read-only copy of a record.
type ExpenseView struct {
	ID       string
	Creditor string
	Amount   float64
	Note     string
	Shares   []expense.Share
	History  []expense.Commit
}

// SettlementTask is one transfer of the last plan that someone still has to
// make.
type SettlementTask struct {
	PayerID   string
	PayeeID   string
	Amount    float64
	Completed bool
}

// Plan is the outcome of an optimization.
type Plan struct {
	Settlements []optimizer.Settlement
	Stats       optimizer.Stats
}

// Statement is one participant's view of the last plan.
type Statement struct {
	Summary  optimizer.Summary
	Expenses []ExpenseView
	Payments []ExpenseView
}

// ReminderTarget is a group whose reminder is due.
type ReminderTarget struct {
	GroupID   string
	ChannelID string
	Interval  time.Duration
}

func viewOf(id string, r *expense.Record) ExpenseView {
	return ExpenseView{
		ID:       id,
		Creditor: r.Creditor(),
		Amount:   r.Amount(),
		Note:     r.Note(),
		Shares:   r.Shares(),
		History:  r.History(),
	}
}
