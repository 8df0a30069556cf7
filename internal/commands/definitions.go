package commands

import (
	"github.com/bwmarrin/discordgo"

	"github.com/susu3304/warikan/internal/expense"
)

func GetCommands() []*discordgo.ApplicationCommand {
	minWeight := float64(expense.MinWeight)
	minAmount := 0.0
	minMinutes := 1.0

	userOpt := func(name, desc string, required bool) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionUser,
			Name:        name,
			Description: desc,
			Required:    required,
		}
	}
	stringOpt := func(name, desc string, required bool) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        name,
			Description: desc,
			Required:    required,
		}
	}
	sub := func(name, desc string, opts ...*discordgo.ApplicationCommandOption) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        name,
			Description: desc,
			Options:     opts,
		}
	}
	expenseOpt := stringOpt("expense", "支払いID (省略時は最新)", false)

	return []*discordgo.ApplicationCommand{
		{
			Name:         "warikan",
			Description:  "割り勘の記録と精算",
			DMPermission: boolPtr(false),
			Options: []*discordgo.ApplicationCommandOption{
				sub("start", "このチャンネルでセッションを開始します"),
				sub("stop", "セッションを終了し記録を破棄します"),
				sub("join", "自分を参加者に登録します"),
				sub("member", "参加者を追加します",
					userOpt("user", "追加するユーザー", false),
					stringOpt("users", "追加するユーザー (メンションを複数)", false),
				),
				sub("leave", "参加者から外します",
					userOpt("user", "外すユーザー (省略時は自分)", false),
				),
				sub("members", "参加者一覧を表示します"),
				sub("pay", "支払いを記録します",
					&discordgo.ApplicationCommandOption{
						Type:        discordgo.ApplicationCommandOptionNumber,
						Name:        "amount",
						Description: "金額",
						Required:    true,
						MinValue:    &minAmount,
					},
					stringOpt("memo", "メモ", false),
					stringOpt("users", "負担するユーザー (省略時は全員)", false),
					stringOpt("weights", "比率 (例: @a:2 @b:0)", false),
					userOpt("payer", "立て替えた人 (省略時は自分)", false),
				),
				sub("weight", "支払いの負担比率を変更します",
					stringOpt("users", "対象ユーザー (メンションを複数)", true),
					&discordgo.ApplicationCommandOption{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "value",
						Description: "比率 (0で除外)",
						Required:    true,
						MinValue:    &minWeight,
						MaxValue:    float64(expense.MaxWeight),
					},
					expenseOpt,
				),
				sub("rollback", "支払いの直前の変更を取り消します", expenseOpt),
				sub("history", "支払いの変更履歴を表示します", expenseOpt),
				sub("undo", "支払いを取り消します", expenseOpt),
				sub("list", "支払い一覧を表示します"),
				sub("balance", "現在の貸し借りを表示します"),
				sub("settle", "精算方法を計算します",
					&discordgo.ApplicationCommandOption{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "strategy",
						Description: "精算方法",
						Choices: []*discordgo.ApplicationCommandOptionChoice{
							{Name: "送金回数を少なく", Value: "least-transfer"},
							{Name: "単純な貪欲法", Value: "lazy"},
						},
					},
				),
				sub("summary", "精算の明細を表示します",
					userOpt("user", "対象ユーザー (省略時は自分)", false),
				),
				sub("done", "相手との支払いを完了にします",
					userOpt("user", "相手", true),
				),
				sub("status", "未完了の支払タスクを表示します"),
				sub("remind", "未完了タスクのリマインド設定",
					&discordgo.ApplicationCommandOption{
						Type:        discordgo.ApplicationCommandOptionBoolean,
						Name:        "enabled",
						Description: "有効にするか",
					},
					&discordgo.ApplicationCommandOption{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "minutes",
						Description: "間隔 (分)",
						MinValue:    &minMinutes,
					},
				),
			},
		},
	}
}

func boolPtr(b bool) *bool {
	return &b
}
