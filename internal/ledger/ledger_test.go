package ledger

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddDebt(t *testing.T) {
	tests := []struct {
		name  string
		debts []Debt
		// expected stored edges, debtor -> creditor -> amount
		want map[string]map[string]float64
	}{
		{
			name:  "single debt",
			debts: []Debt{{Creditor: "A", Debtor: "B", Amount: 10}},
			want:  map[string]map[string]float64{"B": {"A": 10}},
		},
		{
			name: "same direction accumulates",
			debts: []Debt{
				{Creditor: "A", Debtor: "B", Amount: 10},
				{Creditor: "A", Debtor: "B", Amount: 5},
			},
			want: map[string]map[string]float64{"B": {"A": 15}},
		},
		{
			name: "opposite debt reduces",
			debts: []Debt{
				{Creditor: "A", Debtor: "B", Amount: 10},
				{Creditor: "B", Debtor: "A", Amount: 4},
			},
			want: map[string]map[string]float64{"B": {"A": 6}},
		},
		{
			name: "opposite debt flips direction",
			debts: []Debt{
				{Creditor: "A", Debtor: "B", Amount: 10},
				{Creditor: "B", Debtor: "A", Amount: 25},
			},
			want: map[string]map[string]float64{"A": {"B": 15}},
		},
		{
			name: "exact cancellation removes both directions",
			debts: []Debt{
				{Creditor: "A", Debtor: "B", Amount: 10},
				{Creditor: "B", Debtor: "A", Amount: 10},
			},
			want: map[string]map[string]float64{},
		},
		{
			name: "float noise cancels",
			debts: []Debt{
				{Creditor: "A", Debtor: "B", Amount: 0.1},
				{Creditor: "A", Debtor: "B", Amount: 0.2},
				{Creditor: "B", Debtor: "A", Amount: 0.3},
			},
			want: map[string]map[string]float64{},
		},
		{
			name:  "negative amount reverses",
			debts: []Debt{{Creditor: "A", Debtor: "B", Amount: -7}},
			want:  map[string]map[string]float64{"A": {"B": 7}},
		},
		{
			name:  "self debt is ignored",
			debts: []Debt{{Creditor: "A", Debtor: "A", Amount: 7}},
			want:  map[string]map[string]float64{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New()
			require.NoError(t, l.AddDebts(tt.debts))
			require.Equal(t, countEdges(tt.want), l.Len())
			for debtor, inner := range tt.want {
				for creditor, amount := range inner {
					assert.InDelta(t, amount, l.Debt(debtor, creditor), 1e-9)
					assert.Zero(t, l.Debt(creditor, debtor))
				}
			}
		})
	}
}

func TestAddDebtRejectsInvalid(t *testing.T) {
	l := New()
	require.NoError(t, l.AddDebt(Debt{Creditor: "A", Debtor: "B", Amount: 3}))

	err := l.AddDebts([]Debt{
		{Creditor: "A", Debtor: "C", Amount: 1},
		{Creditor: "", Debtor: "C", Amount: 1},
	})
	require.ErrorIs(t, err, ErrInvalidDebt)
	assert.Zero(t, l.Debt("C", "A"), "nothing applied when a debt in the batch is invalid")

	require.ErrorIs(t, l.AddDebt(Debt{Creditor: "A", Debtor: "B", Amount: math.NaN()}), ErrInvalidDebt)
	assert.Equal(t, 3.0, l.Debt("B", "A"))
}

func TestNetMatchesAlgebraicSum(t *testing.T) {
	people := []string{"A", "B", "C", "D"}
	rng := rand.New(rand.NewSource(7))
	l := New()
	// pairwise signed sums, positive when first owes second
	sums := map[[2]string]float64{}

	for i := 0; i < 500; i++ {
		debtor := people[rng.Intn(len(people))]
		creditor := people[rng.Intn(len(people))]
		amount := float64(rng.Intn(20000)-5000) / 100
		require.NoError(t, l.AddDebt(Debt{Creditor: creditor, Debtor: debtor, Amount: amount}))
		if debtor != creditor {
			sums[[2]string{debtor, creditor}] += amount
			sums[[2]string{creditor, debtor}] -= amount
		}
	}

	for _, a := range people {
		for _, b := range people {
			if a >= b {
				continue
			}
			forward, backward := l.Debt(a, b), l.Debt(b, a)
			assert.False(t, forward > 0 && backward > 0, "both directions stored for %s/%s", a, b)
			assert.InDelta(t, sums[[2]string{a, b}], forward-backward, 1e-6)
		}
	}
}

func TestAllDebtsAndParticipants(t *testing.T) {
	l := New()
	_, ok := l.AllDebts("B")
	assert.False(t, ok)

	require.NoError(t, l.AddDebts([]Debt{
		{Creditor: "A", Debtor: "B", Amount: 10},
		{Creditor: "C", Debtor: "B", Amount: 2.5},
		{Creditor: "B", Debtor: "D", Amount: 4},
	}))

	debts, ok := l.AllDebts("B")
	require.True(t, ok)
	assert.Equal(t, map[string]float64{"A": 10, "C": 2.5}, debts)

	debts["A"] = 0
	assert.Equal(t, 10.0, l.Debt("B", "A"), "returned map is a copy")

	assert.Equal(t, []string{"A", "B", "C", "D"}, l.Participants())
	assert.InDelta(t, -8.5, l.Net("B"), 1e-9)
	assert.InDelta(t, 10.0, l.Net("A"), 1e-9)

	edges := l.Edges()
	require.Len(t, edges, 3)
	assert.Equal(t, Debt{Creditor: "A", Debtor: "B", Amount: 10}, edges[0])
	assert.Equal(t, "D", edges[2].Debtor)

	l.Clear()
	assert.Zero(t, l.Len())
	assert.Empty(t, l.Participants())
}

func countEdges(m map[string]map[string]float64) int {
	n := 0
	for _, inner := range m {
		n += len(inner)
	}
	return n
}
