package api

import (
	"github.com/susu3304/warikan/internal/expense"
	"github.com/susu3304/warikan/internal/money"
	"github.com/susu3304/warikan/internal/warikan"
)

type errorJSON struct {
	Error string `json:"error"`
}

type weightJSON struct {
	Name   string `json:"name"`
	Weight int    `json:"weight"`
}

type expenseJSON struct {
	ID       string       `json:"id"`
	Creditor string       `json:"creditor"`
	Amount   float64      `json:"amount"`
	Note     string       `json:"note"`
	Shares   []weightJSON `json:"shares"`
	History  []string     `json:"history"`
}

type debtJSON struct {
	Debtor   string  `json:"debtor"`
	Creditor string  `json:"creditor"`
	Amount   float64 `json:"amount"`
}

type settlementJSON struct {
	From    string  `json:"from"`
	To      string  `json:"to"`
	Amount  float64 `json:"amount"`
	Display string  `json:"display"`
}

type planJSON struct {
	Strategy        string           `json:"strategy"`
	Settlements     []settlementJSON `json:"settlements"`
	Participants    int              `json:"participants"`
	ExactMatches    int              `json:"exact_matches"`
	BudgetExhausted bool             `json:"budget_exhausted"`
	FellBackToLazy  bool             `json:"fell_back_to_lazy"`
}

type transferJSON struct {
	Counterparty string  `json:"counterparty"`
	Amount       float64 `json:"amount"`
}

type summaryJSON struct {
	Name             string         `json:"name"`
	TotalPaymentMade float64        `json:"total_payment_made"`
	TotalExpenseOwed float64        `json:"total_expense_owed"`
	Gap              float64        `json:"gap"`
	Transfers        []transferJSON `json:"transfers"`
	Expenses         []expenseJSON  `json:"expenses"`
	Payments         []expenseJSON  `json:"payments"`
}

type taskJSON struct {
	Payer     string  `json:"payer"`
	Payee     string  `json:"payee"`
	Amount    float64 `json:"amount"`
	Completed bool    `json:"completed"`
}

func expenseJSONOf(v warikan.ExpenseView) expenseJSON {
	out := expenseJSON{
		ID:       v.ID,
		Creditor: v.Creditor,
		Amount:   v.Amount,
		Note:     v.Note,
		Shares:   make([]weightJSON, len(v.Shares)),
		History:  make([]string, len(v.History)),
	}
	for i, s := range v.Shares {
		out.Shares[i] = weightJSON{Name: s.Name, Weight: s.Weight}
	}
	for i, c := range v.History {
		out.History[i] = c.String()
	}
	return out
}

func expensesJSON(list []warikan.ExpenseView) []expenseJSON {
	out := make([]expenseJSON, len(list))
	for i, v := range list {
		out[i] = expenseJSONOf(v)
	}
	return out
}

func changesOf(ws []weightJSON) []expense.WeightChangeRequest {
	out := make([]expense.WeightChangeRequest, len(ws))
	for i, w := range ws {
		out[i] = expense.WeightChangeRequest{Name: w.Name, Weight: w.Weight}
	}
	return out
}

func planJSONOf(p warikan.Plan) planJSON {
	out := planJSON{
		Strategy:        p.Stats.Strategy.String(),
		Settlements:     make([]settlementJSON, len(p.Settlements)),
		Participants:    p.Stats.Participants,
		ExactMatches:    p.Stats.ExactMatches,
		BudgetExhausted: p.Stats.BudgetExhausted,
		FellBackToLazy:  p.Stats.FellBackToLazy,
	}
	for i, s := range p.Settlements {
		out.Settlements[i] = settlementJSON{From: s.From, To: s.To, Amount: s.Amount, Display: money.Format(s.Amount)}
	}
	return out
}

func summaryJSONOf(st warikan.Statement) summaryJSON {
	s := st.Summary
	out := summaryJSON{
		Name:             s.Name,
		TotalPaymentMade: s.TotalPaymentMade,
		TotalExpenseOwed: s.TotalExpenseOwed,
		Gap:              s.Gap(),
		Transfers:        make([]transferJSON, len(s.Transfers)),
		Expenses:         expensesJSON(st.Expenses),
		Payments:         expensesJSON(st.Payments),
	}
	for i, t := range s.Transfers {
		out.Transfers[i] = transferJSON{Counterparty: t.Counterparty, Amount: t.Amount}
	}
	return out
}

func taskJSONOf(t warikan.SettlementTask) taskJSON {
	return taskJSON{Payer: t.PayerID, Payee: t.PayeeID, Amount: t.Amount, Completed: t.Completed}
}
