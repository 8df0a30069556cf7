package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/susu3304/warikan/internal/expense"
	"github.com/susu3304/warikan/internal/optimizer"
	"github.com/susu3304/warikan/internal/warikan"
)

type request struct {
	channelID string
	userID    string
	sub       *discordgo.ApplicationCommandInteractionDataOption
	now       time.Time
}

func HandleWarikan(s *discordgo.Session, i *discordgo.InteractionCreate, svc *warikan.Service, logger *zap.Logger) {
	data := i.ApplicationCommandData()
	if len(data.Options) == 0 {
		respondText(s, i, "サブコマンドが指定されていません")
		return
	}
	req := request{
		channelID: i.ChannelID,
		userID:    interactionUserID(i),
		sub:       data.Options[0],
		now:       time.Now(),
	}
	reply := runWarikan(svc, req)
	logger.Debug("warikan command",
		zap.String("channel", req.channelID),
		zap.String("user", req.userID),
		zap.String("sub", req.sub.Name),
	)

	chunks := splitMessage(reply)
	if len(chunks) == 0 {
		chunks = []string{"(空の応答)"}
	}
	respondText(s, i, chunks[0])
	for _, c := range chunks[1:] {
		if _, err := s.ChannelMessageSend(i.ChannelID, c); err != nil {
			logger.Warn("failed to send follow-up message", zap.String("channel", i.ChannelID), zap.Error(err))
		}
	}
}

func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func respondText(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content},
	})
}

// runWarikan executes one subcommand and returns the reply text.
func runWarikan(svc *warikan.Service, req request) string {
	opts := req.sub.Options
	ch := req.channelID

	switch req.sub.Name {
	case "start":
		if err := svc.StartSession(ch); err != nil {
			return errorMessage(err)
		}
		if _, err := svc.AddMembers(ch, req.userID); err != nil {
			return errorMessage(err)
		}
		return "このチャンネルで割り勘セッションを開始しました"

	case "stop":
		if err := svc.StopSession(ch); err != nil {
			return errorMessage(err)
		}
		return "セッションを終了しました"

	case "join":
		if _, err := svc.AddMembers(ch, req.userID); err != nil {
			return errorMessage(err)
		}
		return "参加者として登録しました"

	case "member":
		ids := parseMentionIDs(stringOr(opts, "users", ""))
		if uid := getUserID(opts, "user"); uid != "" {
			ids = unique(append([]string{uid}, ids...))
		}
		if len(ids) == 0 {
			return "ユーザーが指定されていません"
		}
		added, err := svc.AddMembers(ch, ids...)
		if err != nil {
			return errorMessage(err)
		}
		if len(added) == 0 {
			return "全員すでに参加者です"
		}
		return fmt.Sprintf("%s を参加者に追加しました", mentions(added))

	case "leave":
		uid := getUserID(opts, "user")
		if uid == "" {
			uid = req.userID
		}
		if err := svc.RemoveMembers(ch, uid); err != nil {
			return errorMessage(err)
		}
		return fmt.Sprintf("%s を参加者から外しました", mention(uid))

	case "members":
		ids, err := svc.Members(ch)
		if err != nil {
			return errorMessage(err)
		}
		return renderMembers(ids)

	case "pay":
		return runPay(svc, req)

	case "weight":
		val := getIntOption(opts, "value")
		ids := parseMentionIDs(stringOr(opts, "users", ""))
		if val == nil || len(ids) == 0 {
			return "users と value の指定が必要です"
		}
		id, err := expenseOrLatest(svc, ch, opts)
		if err != nil {
			return errorMessage(err)
		}
		changes := make([]expense.WeightChangeRequest, len(ids))
		for k, uid := range ids {
			changes[k] = expense.WeightChangeRequest{Name: uid, Weight: int(*val)}
		}
		v, err := svc.ReweightExpense(ch, id, changes...)
		if err != nil {
			return errorMessage(err)
		}
		return "比率を変更しました\n" + renderExpense(v)

	case "rollback":
		id, err := expenseOrLatest(svc, ch, opts)
		if err != nil {
			return errorMessage(err)
		}
		v, err := svc.RollBackExpense(ch, id)
		if err != nil {
			return errorMessage(err)
		}
		return "直前の変更を取り消しました\n" + renderExpense(v)

	case "history":
		id, err := expenseOrLatest(svc, ch, opts)
		if err != nil {
			return errorMessage(err)
		}
		list, err := svc.Expenses(ch)
		if err != nil {
			return errorMessage(err)
		}
		for _, v := range list {
			if v.ID == id {
				return renderHistory(v)
			}
		}
		return errorMessage(warikan.ErrUnknownExpense)

	case "undo":
		id := stringOr(opts, "expense", "")
		var (
			v   warikan.ExpenseView
			err error
		)
		if id == "" {
			v, err = svc.UndoExpense(ch)
		} else {
			v, err = svc.RemoveExpense(ch, id)
		}
		if err != nil {
			return errorMessage(err)
		}
		return "支払いを取り消しました\n" + renderExpense(v)

	case "list":
		list, err := svc.Expenses(ch)
		if err != nil {
			return errorMessage(err)
		}
		return renderExpenses(list)

	case "balance":
		edges, err := svc.Balances(ch)
		if err != nil {
			return errorMessage(err)
		}
		return renderBalances(edges)

	case "settle":
		strategy := svc.DefaultStrategy()
		if name := stringOr(opts, "strategy", ""); name != "" {
			st, err := optimizer.ParseStrategy(name)
			if err != nil {
				return errorMessage(err)
			}
			strategy = st
		}
		plan, err := svc.Optimize(ch, strategy)
		if err != nil {
			return errorMessage(err)
		}
		return renderPlan(plan)

	case "summary":
		uid := getUserID(opts, "user")
		if uid == "" {
			uid = req.userID
		}
		st, err := svc.Statement(ch, uid)
		if err != nil {
			return errorMessage(err)
		}
		return renderStatement(uid, st)

	case "done":
		uid := getUserID(opts, "user")
		if uid == "" {
			return "相手の指定が必要です"
		}
		t, err := svc.CompleteTransfer(ch, req.userID, uid)
		if err != nil {
			return errorMessage(err)
		}
		return fmt.Sprintf("完了しました: %s → %s %s", mention(t.PayerID), mention(t.PayeeID), yen(t.Amount))

	case "status":
		tasks, err := svc.PendingTasks(ch)
		if err != nil {
			return errorMessage(err)
		}
		return renderTasks(tasks)

	case "remind":
		enabled := getBoolOption(opts, "enabled")
		if enabled != nil && !*enabled {
			if err := svc.DisableReminder(ch); err != nil {
				return errorMessage(err)
			}
			return "リマインドを停止しました"
		}
		var interval time.Duration
		if m := getIntOption(opts, "minutes"); m != nil {
			if *m <= 0 {
				return "間隔は1分以上で指定してください"
			}
			interval = time.Duration(*m) * time.Minute
		}
		if err := svc.SetReminder(ch, ch, interval, req.now); err != nil {
			return errorMessage(err)
		}
		return "未完了の支払タスクを定期的にリマインドします"
	}
	return "未知のサブコマンドです"
}

func runPay(svc *warikan.Service, req request) string {
	opts := req.sub.Options
	amount := getNumberOption(opts, "amount")
	if amount == nil {
		return "金額の指定が必要です"
	}
	payer := getUserID(opts, "payer")
	if payer == "" {
		payer = req.userID
	}
	var weights []expense.WeightChangeRequest
	if w := stringOr(opts, "weights", ""); w != "" {
		var err error
		weights, err = parseWeights(w)
		if err != nil {
			return "weights を解釈できませんでした: " + err.Error()
		}
	}
	participants := parseMentionIDs(stringOr(opts, "users", ""))

	v, err := svc.AddExpense(req.channelID, payer, *amount, stringOr(opts, "memo", ""), participants, weights)
	if err != nil {
		return errorMessage(err)
	}
	return fmt.Sprintf("%s を記録しました\n%s", yen(v.Amount), renderExpense(v))
}

// expenseOrLatest returns the "expense" option or the ID of the most recent
// expense.
func expenseOrLatest(svc *warikan.Service, ch string, opts []*discordgo.ApplicationCommandInteractionDataOption) (string, error) {
	if id := strings.TrimSpace(stringOr(opts, "expense", "")); id != "" {
		return id, nil
	}
	list, err := svc.Expenses(ch)
	if err != nil {
		return "", err
	}
	if len(list) == 0 {
		return "", warikan.ErrNoExpenses
	}
	return list[len(list)-1].ID, nil
}

func stringOr(opts []*discordgo.ApplicationCommandInteractionDataOption, name, def string) string {
	if v := getStringOption(opts, name); v != nil {
		return *v
	}
	return def
}
