package commands

import (
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/susu3304/warikan/internal/warikan"
)

type opt = *discordgo.ApplicationCommandInteractionDataOption

func str(name, v string) opt {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionString, Value: v}
}

func num(name string, v float64) opt {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionNumber, Value: v}
}

func integer(name string, v int64) opt {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionInteger, Value: float64(v)}
}

func user(name, id string) opt {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionUser, Value: id}
}

func boolean(name string, v bool) opt {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionBoolean, Value: v}
}

func run(svc *warikan.Service, userID, name string, opts ...opt) string {
	return runWarikan(svc, request{
		channelID: "c1",
		userID:    userID,
		sub:       &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionSubCommand, Options: opts},
		now:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
}

func TestWarikanCommandFlow(t *testing.T) {
	svc := warikan.NewService()

	assert.Equal(t, "セッションが開始されていません", run(svc, "1", "members"))

	run(svc, "1", "start")
	assert.Contains(t, run(svc, "1", "member", str("users", "<@2> <@3>")), "<@2>, <@3>")
	assert.Contains(t, run(svc, "1", "members"), "参加者 (3名)")

	reply := run(svc, "1", "pay", num("amount", 90), str("memo", "dinner"))
	assert.Contains(t, reply, "90.00 円")
	assert.Contains(t, reply, "dinner")

	reply = run(svc, "1", "balance")
	assert.Contains(t, reply, "<@2> → <@1>: 30.00 円")
	assert.Contains(t, reply, "<@3> → <@1>: 30.00 円")

	reply = run(svc, "1", "weight", str("users", "<@2>"), integer("value", 2))
	assert.Contains(t, reply, "<@2>×2")
	assert.Contains(t, run(svc, "1", "history"), "weight changes: 2(1 -> 2)")
	assert.Contains(t, run(svc, "1", "rollback"), "<@2>×1")

	assert.Contains(t, run(svc, "1", "summary"), "まだ精算が計算されていません")

	reply = run(svc, "1", "settle", str("strategy", "lazy"))
	assert.Contains(t, reply, "lazy, 2件")

	reply = run(svc, "2", "summary")
	assert.Contains(t, reply, "支払う額: 30.00 円")
	assert.Contains(t, reply, "→ <@1> へ 30.00 円")

	assert.Contains(t, run(svc, "1", "done", user("user", "2")), "<@2> → <@1> 30.00 円")
	assert.Equal(t, "対象のタスクが見つかりません", run(svc, "1", "done", user("user", "2")))

	reply = run(svc, "1", "status")
	assert.Contains(t, reply, "<@3> → <@1>")
	assert.NotContains(t, reply, "<@2>")

	assert.Equal(t, "支払いに含まれているユーザーは外せません", run(svc, "3", "leave"))
	assert.Contains(t, run(svc, "1", "undo"), "支払いを取り消しました")
	assert.Equal(t, "貸し借りはありません", run(svc, "1", "balance"))
	assert.Contains(t, run(svc, "3", "leave"), "<@3> を参加者から外しました")

	assert.Equal(t, "セッションを終了しました", run(svc, "1", "stop"))
	assert.Equal(t, "セッションが開始されていません", run(svc, "1", "stop"))
}

func TestPayOptions(t *testing.T) {
	svc := warikan.NewService()
	run(svc, "1", "start")
	run(svc, "1", "member", str("users", "<@2> <@3>"))

	tests := []struct {
		name string
		opts []opt
		want string
	}{
		{"missing amount", nil, "金額の指定が必要です"},
		{"negative", []opt{num("amount", -5)}, "金額は0以上で指定してください"},
		{"bad weights", []opt{num("amount", 5), str("weights", "nope")}, "weights を解釈できませんでした"},
		{"weight of outsider", []opt{num("amount", 5), str("users", "<@2>"), str("weights", "<@3>:2")}, "支払いに含まれていないユーザーが指定されました"},
		{"stranger", []opt{num("amount", 5), str("users", "<@9>")}, "参加者ではないユーザーが含まれています"},
		{"on behalf", []opt{num("amount", 40), user("payer", "2"), str("users", "<@3>")}, "<@2> が 40.00 円"},
		{"weighted", []opt{num("amount", 30), str("weights", "<@2>:0")}, "<@1>×1 <@3>×1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, run(svc, "1", "pay", tt.opts...), tt.want)
		})
	}

	list, err := svc.Expenses("c1")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestRollbackCommand(t *testing.T) {
	svc := warikan.NewService()
	run(svc, "1", "start")
	run(svc, "1", "member", str("users", "<@2>"))
	require.Contains(t, run(svc, "1", "pay", num("amount", 20)), "20.00 円 を記録しました")

	assert.Equal(t, "負担者が1人もいなくなる変更はできません", run(svc, "1", "rollback"))
	assert.Contains(t, run(svc, "1", "balance"), "<@2> → <@1>: 10.00 円")

	assert.Contains(t, run(svc, "1", "weight", str("users", "<@2>"), integer("value", 3)), "<@1>×1 <@2>×3")
	assert.Contains(t, run(svc, "1", "rollback"), "<@1>×1 <@2>×1")
	assert.Contains(t, run(svc, "1", "settle"), "<@2> → <@1>: 10.00 円")
}

func TestRemindCommand(t *testing.T) {
	svc := warikan.NewService()
	run(svc, "1", "start")

	assert.Equal(t, "間隔は1分以上で指定してください", run(svc, "1", "remind", integer("minutes", 0)))
	assert.Contains(t, run(svc, "1", "remind", integer("minutes", 5)), "リマインドします")
	assert.Equal(t, "リマインドを停止しました", run(svc, "1", "remind", boolean("enabled", false)))
}

func TestUnknownSubcommand(t *testing.T) {
	assert.Equal(t, "未知のサブコマンドです", run(warikan.NewService(), "1", "dance"))
}
