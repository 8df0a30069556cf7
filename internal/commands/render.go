package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/susu3304/warikan/internal/expense"
	"github.com/susu3304/warikan/internal/ledger"
	"github.com/susu3304/warikan/internal/money"
	"github.com/susu3304/warikan/internal/optimizer"
	"github.com/susu3304/warikan/internal/warikan"
)

// Discord rejects messages longer than this.
const maxMessageLen = 2000

func mention(id string) string {
	return fmt.Sprintf("<@%s>", id)
}

func mentions(ids []string) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = mention(id)
	}
	return strings.Join(parts, ", ")
}

func yen(v float64) string {
	return money.Format(v) + " 円"
}

func renderMembers(ids []string) string {
	if len(ids) == 0 {
		return "参加者がいません"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "参加者 (%d名):\n", len(ids))
	for _, id := range ids {
		fmt.Fprintf(&b, "・%s\n", mention(id))
	}
	return b.String()
}

func renderShares(shares []expense.Share) string {
	parts := make([]string, len(shares))
	for i, s := range shares {
		parts[i] = fmt.Sprintf("%s×%d", mention(s.Name), s.Weight)
	}
	return strings.Join(parts, " ")
}

func renderExpense(v warikan.ExpenseView) string {
	return fmt.Sprintf("[%s] %s が %s を支払い (%s)\n  負担: %s",
		v.ID, mention(v.Creditor), yen(v.Amount), v.Note, renderShares(v.Shares))
}

func renderExpenses(list []warikan.ExpenseView) string {
	if len(list) == 0 {
		return "記録された支払いはありません"
	}
	var b strings.Builder
	var total float64
	for _, v := range list {
		b.WriteString(renderExpense(v))
		b.WriteString("\n")
		total += v.Amount
	}
	fmt.Fprintf(&b, "総支出: %s", yen(total))
	return b.String()
}

// renderHistory prints every commit of an expense, oldest first.
func renderHistory(v warikan.ExpenseView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] の変更履歴:\n", v.ID)
	if len(v.History) == 0 {
		b.WriteString("(なし)")
		return b.String()
	}
	for i, c := range v.History {
		fmt.Fprintf(&b, "%d. %s\n", i+1, c.String())
	}
	return b.String()
}

func renderBalances(edges []ledger.Debt) string {
	if len(edges) == 0 {
		return "貸し借りはありません"
	}
	var b strings.Builder
	b.WriteString("現在の貸し借り:\n")
	for _, d := range edges {
		fmt.Fprintf(&b, "%s → %s: %s\n", mention(d.Debtor), mention(d.Creditor), yen(d.Amount))
	}
	return b.String()
}

func renderPlan(p warikan.Plan) string {
	if len(p.Settlements) == 0 {
		return "精算は不要です"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "支払タスク (%s, %d件):\n", p.Stats.Strategy, len(p.Settlements))
	for _, s := range p.Settlements {
		fmt.Fprintf(&b, "%s → %s: %s\n", mention(s.From), mention(s.To), yen(s.Amount))
	}
	return b.String()
}

func renderTasks(tasks []warikan.SettlementTask) string {
	if len(tasks) == 0 {
		return "未完了の支払タスクはありません"
	}
	var b strings.Builder
	b.WriteString("未完了の支払タスク:\n")
	for _, t := range tasks {
		fmt.Fprintf(&b, "%s → %s: %s\n", mention(t.PayerID), mention(t.PayeeID), yen(t.Amount))
	}
	return b.String()
}

// RenderReminder is the periodic message for unpaid tasks. It is empty when
// nothing is left.
func RenderReminder(tasks []warikan.SettlementTask) string {
	if len(tasks) == 0 {
		return ""
	}
	return "【リマインド】" + renderTasks(tasks)
}

func renderStatement(id string, st warikan.Statement) string {
	sum := st.Summary
	var b strings.Builder
	fmt.Fprintf(&b, "%s の明細:\n", mention(id))
	fmt.Fprintf(&b, "支払った額: %s\n", yen(sum.TotalPaymentMade))
	fmt.Fprintf(&b, "負担する額: %s\n", yen(sum.TotalExpenseOwed))
	gap := sum.Gap()
	switch {
	case money.IsZero(gap):
		b.WriteString("差額はありません\n")
	case gap > 0:
		fmt.Fprintf(&b, "受け取る額: %s\n", yen(gap))
	default:
		fmt.Fprintf(&b, "支払う額: %s\n", yen(-gap))
	}
	for _, t := range sum.Transfers {
		if t.Amount > 0 {
			fmt.Fprintf(&b, "  ← %s から %s\n", mention(t.Counterparty), yen(t.Amount))
		} else {
			fmt.Fprintf(&b, "  → %s へ %s\n", mention(t.Counterparty), yen(-t.Amount))
		}
	}
	if len(st.Payments) > 0 {
		b.WriteString("立て替えた支払い:\n")
		for _, v := range st.Payments {
			fmt.Fprintf(&b, "  [%s] %s (%s)\n", v.ID, yen(v.Amount), v.Note)
		}
	}
	if len(st.Expenses) > 0 {
		b.WriteString("負担している支払い:\n")
		for _, v := range st.Expenses {
			fmt.Fprintf(&b, "  [%s] %s が %s (%s)\n", v.ID, mention(v.Creditor), yen(v.Amount), v.Note)
		}
	}
	return b.String()
}

// errorMessage turns a service error into a reply.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, warikan.ErrNoSession):
		return "セッションが開始されていません"
	case errors.Is(err, warikan.ErrUnknownMember):
		return "参加者ではないユーザーが含まれています"
	case errors.Is(err, warikan.ErrMemberInUse):
		return "支払いに含まれているユーザーは外せません"
	case errors.Is(err, warikan.ErrNoExpenses):
		return "記録された支払いはありません"
	case errors.Is(err, warikan.ErrUnknownExpense), errors.Is(err, expense.ErrInvalidID):
		return "指定された支払いが見つかりません"
	case errors.Is(err, warikan.ErrNoTask):
		return "対象のタスクが見つかりません"
	case errors.Is(err, warikan.ErrTooFewMembers):
		return "参加者が2人以上必要です"
	case errors.Is(err, expense.ErrNegativeAmount):
		return "金額は0以上で指定してください"
	case errors.Is(err, expense.ErrWeightOutOfRange):
		return fmt.Sprintf("比率は %d から %d の整数で指定してください", expense.MinWeight, expense.MaxWeight)
	case errors.Is(err, expense.ErrUnknownParticipant):
		return "支払いに含まれていないユーザーが指定されました"
	case errors.Is(err, expense.ErrLastParticipant):
		return "負担者が1人もいなくなる変更はできません"
	case errors.Is(err, expense.ErrNoHistory):
		return "取り消せる変更はありません"
	case errors.Is(err, optimizer.ErrNoResult):
		return "まだ精算が計算されていません。/warikan settle を実行してください"
	case errors.Is(err, optimizer.ErrOutOfTime):
		return "精算の計算後に支払いが変更されました。/warikan settle を再実行してください"
	case errors.Is(err, optimizer.ErrNameNotFound):
		return "このユーザーは精算に含まれていません"
	case errors.Is(err, optimizer.ErrUnknownStrategy):
		return "未知の精算方法です (least-transfer / lazy)"
	}
	return "エラーが発生しました: " + err.Error()
}

// splitMessage breaks text into chunks that fit a single message, cutting
// at line boundaries.
func splitMessage(text string) []string {
	var chunks []string
	var buf strings.Builder
	for _, line := range strings.SplitAfter(text, "\n") {
		if buf.Len()+len(line) > maxMessageLen && buf.Len() > 0 {
			chunks = append(chunks, buf.String())
			buf.Reset()
		}
		for len(line) > maxMessageLen {
			chunks = append(chunks, line[:maxMessageLen])
			line = line[maxMessageLen:]
		}
		buf.WriteString(line)
	}
	if buf.Len() > 0 {
		chunks = append(chunks, buf.String())
	}
	return chunks
}
