package commands

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/susu3304/warikan/internal/expense"
)

var mentionRe = regexp.MustCompile(`<@!?([0-9]+)>`)

func getNumberOption(opts []*discordgo.ApplicationCommandInteractionDataOption, name string) *float64 {
	for _, o := range opts {
		if o.Name == name {
			v := o.FloatValue()
			return &v
		}
	}
	return nil
}

func getIntOption(opts []*discordgo.ApplicationCommandInteractionDataOption, name string) *int64 {
	for _, o := range opts {
		if o.Name == name {
			v := o.IntValue()
			return &v
		}
	}
	return nil
}

func getStringOption(opts []*discordgo.ApplicationCommandInteractionDataOption, name string) *string {
	for _, o := range opts {
		if o.Name == name {
			v := o.StringValue()
			return &v
		}
	}
	return nil
}

func getBoolOption(opts []*discordgo.ApplicationCommandInteractionDataOption, name string) *bool {
	for _, o := range opts {
		if o.Name == name {
			v := o.BoolValue()
			return &v
		}
	}
	return nil
}

// getUserID reads a user option. Discord sends the raw snowflake as the
// option value.
func getUserID(opts []*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	for _, o := range opts {
		if o.Name != name {
			continue
		}
		if id, ok := o.Value.(string); ok {
			return id
		}
	}
	return ""
}

// parseMentionIDs supports <@123>, <@!123> and raw IDs separated by spaces.
func parseMentionIDs(text string) []string {
	var ids []string
	for _, m := range mentionRe.FindAllStringSubmatch(text, -1) {
		ids = append(ids, m[1])
	}
	for _, tok := range strings.Fields(text) {
		if allDigits(tok) {
			ids = append(ids, tok)
		}
	}
	return unique(ids)
}

// parseWeights reads "<@1>:2 <@2>=0" style pairs. Pairs may be separated by
// spaces or commas.
func parseWeights(text string) ([]expense.WeightChangeRequest, error) {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\n' || r == '\t'
	})
	out := make([]expense.WeightChangeRequest, 0, len(fields))
	for _, f := range fields {
		who, val, ok := strings.Cut(f, ":")
		if !ok {
			who, val, ok = strings.Cut(f, "=")
		}
		if !ok {
			return nil, fmt.Errorf("weight pair %q needs user:weight", f)
		}
		id := who
		if m := mentionRe.FindStringSubmatch(who); m != nil {
			id = m[1]
		}
		if !allDigits(id) {
			return nil, fmt.Errorf("unrecognized user %q", who)
		}
		w, err := strconv.Atoi(val)
		if err != nil {
			return nil, fmt.Errorf("weight %q is not an integer", val)
		}
		out = append(out, expense.WeightChangeRequest{Name: id, Weight: w})
	}
	return out, nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

func unique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
