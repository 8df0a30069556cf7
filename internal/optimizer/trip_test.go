package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/susu3304/warikan/internal/expense"
)

// skiTrip is a three day trip for eleven people with weighted splits.
func skiTrip(t *testing.T) (*expense.Book, []expense.ID, []string, float64) {
	t.Helper()
	const (
		yj  = "You_Jie"
		lym = "Lu_YiMing"
		nm  = "Ni_Min"
		lq  = "Li_Qiao"
		op  = "Sun_HaoChen"
		zcj = "Zheng_ChengJian"
		my  = "MingYan"
		yzq = "Yang_ZheQin"
		gj  = "Gao_Jian"
		hys = "Hao_YingShuai"
		jt  = "Jian_Tong"
	)
	everyone := []string{yj, lym, nm, lq, op, zcj, my, yzq, gj, hys, jt}
	skiDays := []expense.WeightChangeRequest{
		{Name: yj, Weight: 2}, {Name: lym, Weight: 3}, {Name: nm, Weight: 3}, {Name: lq, Weight: 1},
		{Name: op, Weight: 2}, {Name: zcj, Weight: 3}, {Name: my, Weight: 3}, {Name: hys, Weight: 2},
		{Name: jt, Weight: 2},
	}
	stays := []expense.WeightChangeRequest{
		{Name: yj, Weight: 3}, {Name: lym, Weight: 3}, {Name: nm, Weight: 3}, {Name: lq, Weight: 3},
		{Name: op, Weight: 3}, {Name: zcj, Weight: 2}, {Name: my, Weight: 2}, {Name: yzq, Weight: 3},
		{Name: gj, Weight: 1}, {Name: hys, Weight: 2}, {Name: jt, Weight: 2},
	}

	entries := []paid{
		{creditor: nm, amount: 346, names: []string{yj, lym, nm, lq, op, zcj, my, yzq, gj}},
		{creditor: nm, amount: 346, names: []string{yj, lym, nm, lq, op, zcj, my, yzq, hys, jt}},
		{creditor: nm, amount: 346, names: []string{yj, lym, nm, lq, op, yzq, hys, jt}},
		{creditor: lym, amount: 475, names: []string{yj, lym, nm, lq, op, zcj, my}},
		{creditor: lym, amount: 95, names: []string{lym, nm, zcj, my, hys, jt}},
		{creditor: lym, amount: 182, names: []string{lym, nm, zcj, my, hys, jt, op, yj}},
		{creditor: yzq, amount: 180, names: []string{yj, lym, nm, lq, op, zcj, my, hys, jt}, weights: skiDays},
		{creditor: yzq, amount: 652.72, names: []string{yzq, lym, nm, op, yj, lq}},
		{creditor: yzq, amount: 45.46 + 52.66, names: []string{yzq, lym, nm, op, yj, lq}},
		{creditor: lym, amount: 9.28, names: []string{yj, lym, nm, lq, op, zcj, my, hys, jt}, weights: skiDays},
		{creditor: lym, amount: 32, names: []string{yj, lym, nm, lq, op, yzq, hys, jt}},
		{creditor: zcj, amount: 129.85, names: everyone, weights: stays},
		{creditor: hys, amount: 3.79, names: everyone, weights: stays},
		{creditor: lym, amount: 290.18 + 19.79, names: everyone, weights: stays},
		{creditor: yj, amount: 61.90, names: everyone, weights: stays},
	}
	var total float64
	for _, e := range entries {
		total += e.amount
	}
	book, ids := buildBook(t, entries...)
	return book, ids, everyone, total
}

func TestSkiTrip(t *testing.T) {
	for _, strategy := range []Strategy{LeastTransfer, Lazy} {
		t.Run(strategy.String(), func(t *testing.T) {
			book, ids, everyone, total := skiTrip(t)
			o := New()
			require.NoError(t, o.Optimize(book, ids, strategy))
			assert.ElementsMatch(t, everyone, o.Participants())

			var paidSum, owedSum, gapSum float64
			for _, name := range everyone {
				s, err := o.Summary(name)
				require.NoError(t, err)
				paidSum += s.TotalPaymentMade
				owedSum += s.TotalExpenseOwed
				gapSum += s.Gap()
			}
			assert.InDelta(t, total, paidSum, 1e-6)
			assert.InDelta(t, total, owedSum, 1e-6)
			assert.InDelta(t, 0, gapSum, 1e-6)

			settlements, err := o.Settlements()
			require.NoError(t, err)
			assert.LessOrEqual(t, len(settlements), len(everyone)-1)
			for _, s := range settlements {
				assert.Greater(t, s.Amount, 0.0)
				assert.NotEqual(t, s.From, s.To)
			}
			requireSettled(t, o)
		})
	}
}
