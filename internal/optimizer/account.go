package optimizer

import (
	"fmt"

	"github.com/susu3304/warikan/internal/expense"
	"github.com/susu3304/warikan/internal/money"
)

// Transfer is one settling payment seen from a participant. A positive
// Amount means Counterparty owes this participant; a negative one means
// this participant pays Counterparty.
type Transfer struct {
	Counterparty string
	Amount       float64
}

// Settlement is a transfer in payer -> payee form.
type Settlement struct {
	From   string
	To     string
	Amount float64
}

func (s Settlement) String() string {
	return fmt.Sprintf("%s -> %s: %s", s.From, s.To, money.Format(s.Amount))
}

// Summary is what the last optimization derived for one participant.
// Expenses and Payments hold handles, not records: resolve them through the
// book and expect them to be dead once the record is removed.
type Summary struct {
	Name             string
	TotalExpenseOwed float64
	TotalPaymentMade float64
	Expenses         []expense.ID
	Payments         []expense.ID
	Transfers        []Transfer
}

// Gap is payments made minus expenses owed: positive for a net creditor.
func (s Summary) Gap() float64 {
	return money.Snap(s.TotalPaymentMade - s.TotalExpenseOwed)
}

// account accumulates a participant's totals during aggregation.
type account struct {
	name      string
	owed      float64
	paid      float64
	expenses  []expense.ID
	payments  []expense.ID
	transfers []Transfer
}

func (a *account) accrueExpense(id expense.ID, amount float64) error {
	if !money.Valid(amount) || money.Less(amount, 0) {
		return fmt.Errorf("%w: %s owes %v", ErrInvalidAmount, a.name, amount)
	}
	a.owed += amount
	a.expenses = append(a.expenses, id)
	return nil
}

func (a *account) accruePayment(id expense.ID, amount float64) error {
	if !money.Valid(amount) || money.Less(amount, 0) {
		return fmt.Errorf("%w: %s paid %v", ErrInvalidAmount, a.name, amount)
	}
	a.paid += amount
	a.payments = append(a.payments, id)
	return nil
}

func (a *account) gap() float64 {
	return money.Snap(a.paid - a.owed)
}

func (a *account) settle(counterparty string, amount float64) {
	a.transfers = append(a.transfers, Transfer{Counterparty: counterparty, Amount: amount})
}

func (a *account) summary() Summary {
	s := Summary{
		Name:             a.name,
		TotalExpenseOwed: a.owed,
		TotalPaymentMade: a.paid,
		Expenses:         make([]expense.ID, len(a.expenses)),
		Payments:         make([]expense.ID, len(a.payments)),
		Transfers:        make([]Transfer, len(a.transfers)),
	}
	copy(s.Expenses, a.expenses)
	copy(s.Payments, a.payments)
	copy(s.Transfers, a.transfers)
	return s
}
