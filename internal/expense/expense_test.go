package expense

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newRecord(t *testing.T, creditor string, amount float64, names ...string) *Record {
	t.Helper()
	r, err := New(creditor, amount)
	require.NoError(t, err)
	if len(names) > 0 {
		require.Empty(t, r.AddParticipants(names...))
	}
	return r
}

func snapshot(r *Record) (map[string]int, int) {
	weights := make(map[string]int)
	for _, s := range r.Shares() {
		weights[s.Name] = s.Weight
	}
	return weights, r.TotalWeight()
}

func TestNew(t *testing.T) {
	_, err := New("", 10)
	require.ErrorIs(t, err, ErrEmptyCreditor)

	_, err = New("A", -1)
	require.ErrorIs(t, err, ErrNegativeAmount)

	r, err := New("A", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultNote, r.Note())
	assert.Zero(t, r.NumParticipants())

	r, err = New("A", 12.5, WithNote("dinner"))
	require.NoError(t, err)
	assert.Equal(t, "dinner", r.Note())
	assert.Equal(t, 12.5, r.Amount())
	assert.Equal(t, "A", r.Creditor())
}

func TestAddParticipants(t *testing.T) {
	r := newRecord(t, "A", 30, "A", "B")

	skipped := r.AddParticipants("B", "C")
	assert.Equal(t, []string{"B"}, skipped)
	assert.Equal(t, []string{"A", "B", "C"}, r.Participants())
	assert.Equal(t, 3, r.TotalWeight())

	hist := r.History()
	require.Len(t, hist, 2)
	assert.Equal(t, AddParticipant, hist[1].Kind)
	assert.Equal(t, []Diff{{Name: "C", Before: 0, After: 1}}, hist[1].Diffs)
}

func TestAddParticipantsWarnings(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	r, err := New("A", 10, WithLogger(zap.New(core)))
	require.NoError(t, err)

	skipped := r.AddParticipants("A", "", "A")
	assert.Equal(t, []string{"", "A"}, skipped)
	assert.Equal(t, []string{"A"}, r.Participants())

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, "empty participant name, ignored", entries[0].Message)
	assert.Equal(t, "participant already present, ignored", entries[1].Message)
	assert.Equal(t, "A", entries[1].ContextMap()["name"])
}

func TestRemoveParticipants(t *testing.T) {
	r := newRecord(t, "A", 30, "A", "B", "C")
	require.NoError(t, r.ChangeWeights(WeightChangeRequest{Name: "B", Weight: 4}))

	skipped, err := r.RemoveParticipants("B", "Z")
	require.NoError(t, err)
	assert.Equal(t, []string{"Z"}, skipped)
	assert.Equal(t, []string{"A", "C"}, r.Participants())
	assert.Equal(t, 2, r.TotalWeight())

	last := r.History()[len(r.History())-1]
	assert.Equal(t, RemoveParticipant, last.Kind)
	assert.Equal(t, []Diff{{Name: "B", Before: 4, After: 0}}, last.Diffs)
}

func TestRemoveAllParticipantsIsNoOp(t *testing.T) {
	r := newRecord(t, "A", 30, "A", "B", "C")
	require.NoError(t, r.ChangeWeights(WeightChangeRequest{Name: "C", Weight: 3}))
	before, beforeTotal := snapshot(r)
	histLen := len(r.History())

	_, err := r.RemoveParticipants(r.Participants()...)
	require.ErrorIs(t, err, ErrLastParticipant)

	after, afterTotal := snapshot(r)
	assert.Equal(t, before, after)
	assert.Equal(t, beforeTotal, afterTotal)
	assert.Len(t, r.History(), histLen)
}

func TestChangeWeights(t *testing.T) {
	r := newRecord(t, "A", 30, "A", "B", "C")

	require.NoError(t, r.ChangeWeights(
		WeightChangeRequest{Name: "A", Weight: 2},
		WeightChangeRequest{Name: "C", Weight: 0},
	))
	assert.Equal(t, []Share{{Name: "A", Weight: 2}, {Name: "B", Weight: 1}}, r.Shares())
	assert.Equal(t, 3, r.TotalWeight())

	last := r.History()[len(r.History())-1]
	assert.Equal(t, WeightChange, last.Kind, "weight 0 is logged as a weight change")
	assert.Equal(t, Diff{Name: "C", Before: 1, After: 0}, last.Diffs[1])
}

func TestChangeWeightsStopsAtFirstInvalid(t *testing.T) {
	tests := []struct {
		name    string
		changes []WeightChangeRequest
		wantErr error
	}{
		{
			name: "weight above range",
			changes: []WeightChangeRequest{
				{Name: "A", Weight: 5},
				{Name: "B", Weight: 1000},
				{Name: "C", Weight: 7},
			},
			wantErr: ErrWeightOutOfRange,
		},
		{
			name: "negative weight",
			changes: []WeightChangeRequest{
				{Name: "A", Weight: 5},
				{Name: "B", Weight: -1},
			},
			wantErr: ErrWeightOutOfRange,
		},
		{
			name: "unknown participant",
			changes: []WeightChangeRequest{
				{Name: "A", Weight: 5},
				{Name: "Z", Weight: 2},
			},
			wantErr: ErrUnknownParticipant,
		},
		{
			name: "every participant zeroed",
			changes: []WeightChangeRequest{
				{Name: "A", Weight: 0},
				{Name: "B", Weight: 0},
				{Name: "C", Weight: 0},
			},
			wantErr: ErrLastParticipant,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRecord(t, "A", 30, "A", "B", "C")
			before, beforeTotal := snapshot(r)
			histLen := len(r.History())

			require.ErrorIs(t, r.ChangeWeights(tt.changes...), tt.wantErr)

			after, afterTotal := snapshot(r)
			assert.Equal(t, before, after)
			assert.Equal(t, beforeTotal, afterTotal)
			assert.Len(t, r.History(), histLen)
		})
	}
}

func TestRollBackRestoresState(t *testing.T) {
	mutators := []struct {
		name string
		run  func(r *Record)
	}{
		{name: "add", run: func(r *Record) { r.AddParticipants("D", "A") }},
		{name: "add nothing new", run: func(r *Record) { r.AddParticipants("A") }},
		{name: "remove", run: func(r *Record) { _, _ = r.RemoveParticipants("B") }},
		{name: "change weights", run: func(r *Record) {
			_ = r.ChangeWeights(WeightChangeRequest{Name: "A", Weight: 9}, WeightChangeRequest{Name: "B", Weight: 0})
		}},
		{name: "same name twice", run: func(r *Record) {
			_ = r.ChangeWeights(WeightChangeRequest{Name: "C", Weight: 0}, WeightChangeRequest{Name: "C", Weight: 6})
		}},
	}

	for _, m := range mutators {
		t.Run(m.name, func(t *testing.T) {
			r := newRecord(t, "A", 30, "A", "B", "C")
			require.NoError(t, r.ChangeWeights(WeightChangeRequest{Name: "C", Weight: 2}))
			before, beforeTotal := snapshot(r)

			m.run(r)
			require.NoError(t, r.RollBack())

			after, afterTotal := snapshot(r)
			assert.Equal(t, before, after)
			assert.Equal(t, beforeTotal, afterTotal)
		})
	}
}

func TestRollBackEmptyHistory(t *testing.T) {
	r := newRecord(t, "A", 10)
	require.ErrorIs(t, r.RollBack(), ErrNoHistory)

	r.AddParticipants("A", "B")
	require.NoError(t, r.RollBack())
	assert.Zero(t, r.NumParticipants())
	assert.Zero(t, r.TotalWeight())
	require.ErrorIs(t, r.RollBack(), ErrNoHistory)
}

func TestRollBackNonEmpty(t *testing.T) {
	t.Run("refuses to empty a record", func(t *testing.T) {
		book := NewBook()
		r := newRecord(t, "A", 30, "A", "B")
		book.Add(r)
		version := book.Version()

		require.ErrorIs(t, r.RollBackNonEmpty(), ErrLastParticipant)
		assert.Equal(t, []Share{{Name: "A", Weight: 1}, {Name: "B", Weight: 1}}, r.Shares())
		assert.Equal(t, 2, r.TotalWeight())
		assert.Len(t, r.History(), 1)
		assert.Equal(t, version, book.Version())
	})

	t.Run("pops when participants remain", func(t *testing.T) {
		r := newRecord(t, "A", 30, "A", "B")
		r.AddParticipants("C")
		require.NoError(t, r.ChangeWeights(WeightChangeRequest{Name: "A", Weight: 0}))

		require.NoError(t, r.RollBackNonEmpty())
		assert.Equal(t, []string{"A", "B", "C"}, r.Participants())
		require.NoError(t, r.RollBackNonEmpty())
		assert.Equal(t, []string{"A", "B"}, r.Participants())
		require.ErrorIs(t, r.RollBackNonEmpty(), ErrLastParticipant)
	})

	t.Run("empty history", func(t *testing.T) {
		r := newRecord(t, "A", 10)
		require.ErrorIs(t, r.RollBackNonEmpty(), ErrNoHistory)
	})

	t.Run("empty record may pop", func(t *testing.T) {
		r := newRecord(t, "A", 10)
		r.AddParticipants()
		require.NoError(t, r.RollBackNonEmpty())
		assert.Empty(t, r.History())
	})
}

func TestSaveRestore(t *testing.T) {
	r := newRecord(t, "A", 30, "A", "B")
	saved := r.Save()
	before, beforeTotal := snapshot(r)

	require.NoError(t, r.ChangeWeights(WeightChangeRequest{Name: "B", Weight: 4}))
	r.AddParticipants("C")
	r.Restore(saved)

	after, afterTotal := snapshot(r)
	assert.Equal(t, before, after)
	assert.Equal(t, beforeTotal, afterTotal)
	assert.Len(t, r.History(), 1)

	r.AddParticipants("D")
	r.Restore(saved)
	assert.Equal(t, []string{"A", "B"}, r.Participants(), "saved state is not aliased by the record")
}

func TestRevertSpecificCommit(t *testing.T) {
	r := newRecord(t, "A", 30, "A", "B")
	require.NoError(t, r.ChangeWeights(WeightChangeRequest{Name: "B", Weight: 3}))
	r.AddParticipants("C", "D")
	latest := r.History()[2]

	r.Revert(latest)
	assert.Equal(t, []Share{{Name: "A", Weight: 1}, {Name: "B", Weight: 3}}, r.Shares())
	assert.Equal(t, 4, r.TotalWeight())
	assert.Len(t, r.History(), 3, "revert leaves the log alone")
}

func TestToDebts(t *testing.T) {
	tests := []struct {
		name    string
		amount  float64
		weights []WeightChangeRequest
		want    map[string]float64
	}{
		{
			name:   "equal split",
			amount: 90,
			want:   map[string]float64{"A": 30, "B": 30, "C": 30},
		},
		{
			name:    "weighted split",
			amount:  100,
			weights: []WeightChangeRequest{{Name: "A", Weight: 2}, {Name: "B", Weight: 1}, {Name: "C", Weight: 1}},
			want:    map[string]float64{"A": 50, "B": 25, "C": 25},
		},
		{
			name:    "zero weight drops participant",
			amount:  90,
			weights: []WeightChangeRequest{{Name: "C", Weight: 0}},
			want:    map[string]float64{"A": 45, "B": 45},
		},
		{
			name:    "uneven thirds still sum to amount",
			amount:  100,
			weights: []WeightChangeRequest{{Name: "A", Weight: 7}, {Name: "B", Weight: 13}, {Name: "C", Weight: 999}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRecord(t, "A", tt.amount, "A", "B", "C")
			if len(tt.weights) > 0 {
				require.NoError(t, r.ChangeWeights(tt.weights...))
			}

			debts, err := r.ToDebts(false)
			require.NoError(t, err)
			var sum float64
			for _, d := range debts {
				assert.Equal(t, "A", d.Creditor)
				sum += d.Amount
				if tt.want != nil {
					assert.InDelta(t, tt.want[d.Debtor], d.Amount, 1e-9, d.Debtor)
				}
			}
			assert.InDelta(t, tt.amount, sum, 1e-7)
			if tt.want != nil {
				assert.Len(t, debts, len(tt.want))
			}

			reversed, err := r.ToDebts(true)
			require.NoError(t, err)
			for i := range debts {
				assert.Equal(t, -debts[i].Amount, reversed[i].Amount)
			}
		})
	}
}

func TestToDebtsWithoutParticipants(t *testing.T) {
	r := newRecord(t, "A", 10)
	_, err := r.ToDebts(false)
	require.ErrorIs(t, err, ErrNoParticipants)
}

func TestSetAmountAndNote(t *testing.T) {
	r := newRecord(t, "A", 10, "A")
	require.ErrorIs(t, r.SetAmount(-3), ErrNegativeAmount)
	assert.Equal(t, 10.0, r.Amount())
	require.NoError(t, r.SetAmount(25))
	assert.Equal(t, 25.0, r.Amount())

	r.SetNote("")
	assert.Equal(t, DefaultNote, r.Note())
	r.SetNote("taxi")
	assert.Equal(t, "taxi", r.Note())
}

func TestCommitString(t *testing.T) {
	c := Commit{Kind: WeightChange, Diffs: []Diff{{Name: "A", Before: 1, After: 3}}}
	assert.Equal(t, "weight changes: A(1 -> 3)", c.String())

	c = Commit{Kind: AddParticipant, Diffs: []Diff{{Name: "A", After: 1}, {Name: "B", After: 1}}}
	assert.Equal(t, "add participant: A, B", c.String())
}
