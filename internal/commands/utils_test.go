package commands

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/susu3304/warikan/internal/expense"
)

func TestParseMentionIDs(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", []string{}},
		{"<@1> <@!2>", []string{"1", "2"}},
		{"<@1> 1 3 abc", []string{"1", "3"}},
		{"<@10><@20>", []string{"10", "20"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseMentionIDs(tt.in), tt.in)
	}
}

func TestParseWeights(t *testing.T) {
	got, err := parseWeights("<@1>:2, <@!2>=0 3:10")
	require.NoError(t, err)
	assert.Equal(t, []expense.WeightChangeRequest{
		{Name: "1", Weight: 2},
		{Name: "2", Weight: 0},
		{Name: "3", Weight: 10},
	}, got)

	for _, bad := range []string{"<@1>", "alice:2", "<@1>:x"} {
		_, err := parseWeights(bad)
		assert.Error(t, err, bad)
	}
}

func TestSplitMessage(t *testing.T) {
	assert.Empty(t, splitMessage(""))
	assert.Equal(t, []string{"a\nb"}, splitMessage("a\nb"))

	line := strings.Repeat("x", 999) + "\n"
	chunks := splitMessage(strings.Repeat(line, 5))
	require.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), maxMessageLen)
	}
	assert.Equal(t, strings.Repeat(line, 5), strings.Join(chunks, ""))

	long := strings.Repeat("y", maxMessageLen*2+5)
	chunks = splitMessage(long)
	require.Len(t, chunks, 3)
	assert.Equal(t, long, strings.Join(chunks, ""))
}
