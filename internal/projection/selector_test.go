package projection

import (
	"context"
	"errors"
	"math/rand"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/texsynth/internal/engine/camera"
)

func candidates(n int) []camera.Viewpoint {
	return camera.Predefined(n, 1)
}

func TestParseMode(t *testing.T) {
	for _, s := range []string{"sequential", "random", "heuristic"} {
		m, err := ParseMode(s)
		require.NoError(t, err)
		assert.Equal(t, Mode(s), m)
	}
	_, err := ParseMode("greedy")
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestNewSelectorRejects(t *testing.T) {
	_, err := NewSelector(candidates(4), SelectorOptions{Mode: "spiral"}, nil)
	assert.ErrorIs(t, err, ErrUnknownMode)

	_, err = NewSelector(nil, SelectorOptions{Mode: ModeSequential}, nil)
	assert.ErrorIs(t, err, ErrNoCandidates)

	for _, decay := range []float64{-0.5, 1.5} {
		_, err = NewSelector(candidates(4), SelectorOptions{Mode: ModeHeuristic, PunishmentDecay: decay}, nil)
		assert.ErrorContains(t, err, "punishment decay")
	}
}

func TestNewSelectorDefaultDecay(t *testing.T) {
	sel, err := NewSelector(candidates(4), SelectorOptions{Mode: ModeHeuristic}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultPunishmentDecay, sel.opts.PunishmentDecay)
	assert.Equal(t, DefaultPrincipleViews, sel.opts.PrincipleViews)
}

func TestSequentialCycles(t *testing.T) {
	const n = 5
	sel, err := NewSelector(candidates(n), SelectorOptions{Mode: ModeSequential}, nil)
	require.NoError(t, err)

	state := NewViewState(n)
	var got []int
	for step := 0; step < 2*n; step++ {
		s, err := sel.Select(context.Background(), step, state, nil)
		require.NoError(t, err)
		got = append(got, s.View)
		assert.Equal(t, sel.Candidates()[s.View], s.Viewpoint)
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4, 0, 1, 2, 3, 4}, got)
	assert.Equal(t, got, state.History)
	assert.Equal(t, []float64{1, 1, 1, 1, 1}, state.Punishments)
}

func TestRandomSeeded(t *testing.T) {
	const n = 7
	run := func() []int {
		sel, err := NewSelector(candidates(n), SelectorOptions{Mode: ModeRandom}, rand.New(rand.NewSource(42)))
		require.NoError(t, err)
		state := NewViewState(n)
		for step := 0; step < 20; step++ {
			s, err := sel.Select(context.Background(), step, state, nil)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, s.View, 0)
			assert.Less(t, s.View, n)
		}
		return state.History
	}
	assert.Equal(t, run(), run())
}

// fixedScorer returns heats from a table indexed [hit][view].
func fixedScorer(heats [][]float64) ScorerFunc {
	return func(_ context.Context, view, hit int) (float64, error) {
		return heats[hit][view], nil
	}
}

func TestHeuristicPrincipleViews(t *testing.T) {
	const n = 8
	sel, err := NewSelector(candidates(n), SelectorOptions{
		Mode:         ModeHeuristic,
		UsePrinciple: true,
	}, nil)
	require.NoError(t, err)

	var calls atomic.Int32
	scorer := ScorerFunc(func(context.Context, int, int) (float64, error) {
		calls.Add(1)
		return 0, nil
	})

	state := NewViewState(n)
	for step := 0; step < DefaultPrincipleViews; step++ {
		s, err := sel.Select(context.Background(), step, state, scorer)
		require.NoError(t, err)
		assert.Equal(t, step, s.View)
		assert.Equal(t, 0, s.Hit)
		assert.InDelta(t, DefaultPunishmentDecay, state.Punishments[step], 1e-12)
	}
	assert.Equal(t, int32(0), calls.Load())
}

func TestHeuristicPicksMaxAndPunishesOnlyWinner(t *testing.T) {
	const n = 4
	sel, err := NewSelector(candidates(n), SelectorOptions{Mode: ModeHeuristic, PunishmentDecay: 0.25}, nil)
	require.NoError(t, err)

	state := NewViewState(n)
	before := append([]float64(nil), state.Punishments...)
	s, err := sel.Select(context.Background(), 10, state, fixedScorer([][]float64{{0.1, 0.7, 0.3, 0.2}}))
	require.NoError(t, err)

	assert.Equal(t, 1, s.View)
	assert.Equal(t, 0, s.Hit)
	assert.InDelta(t, 0.7, s.Heat, 1e-12)
	assert.Equal(t, []int{1}, state.History)
	for v := range state.Punishments {
		if v == 1 {
			assert.Less(t, state.Punishments[v], before[v])
			assert.InDelta(t, before[v]*0.25, state.Punishments[v], 1e-12)
		} else {
			assert.Equal(t, before[v], state.Punishments[v])
		}
	}

	// The punished winner now loses to the runner-up.
	s, err = sel.Select(context.Background(), 11, state, fixedScorer([][]float64{{0.1, 0.7, 0.3, 0.2}}))
	require.NoError(t, err)
	assert.Equal(t, 2, s.View)
}

func TestHeuristicTieBreakFirstSeen(t *testing.T) {
	const n = 3
	heats := [][]float64{
		{0.2, 0.5, 0.1},
		{0.5, 0.5, 0.5},
	}
	for _, workers := range []int{1, 4} {
		sel, err := NewSelector(candidates(n), SelectorOptions{Mode: ModeHeuristic, Hits: 2, Workers: workers}, nil)
		require.NoError(t, err)
		s, err := sel.Select(context.Background(), 0, NewViewState(n), fixedScorer(heats))
		require.NoError(t, err)
		assert.Equal(t, 1, s.View, "workers=%d", workers)
		assert.Equal(t, 0, s.Hit, "workers=%d", workers)
		assert.Len(t, s.Scores, 6)
	}

	// All zero heats select the first candidate.
	sel, err := NewSelector(candidates(n), SelectorOptions{Mode: ModeHeuristic}, nil)
	require.NoError(t, err)
	s, err := sel.Select(context.Background(), 0, NewViewState(n), fixedScorer([][]float64{{0, 0, 0}}))
	require.NoError(t, err)
	assert.Equal(t, 0, s.View)
}

func TestHeuristicParallelMatchesSequential(t *testing.T) {
	const n = 16
	heats := make([][]float64, 2)
	rng := rand.New(rand.NewSource(7))
	for h := range heats {
		heats[h] = make([]float64, n)
		for v := range heats[h] {
			heats[h][v] = float64(rng.Intn(5)) / 4
		}
	}

	pick := func(workers int) Selection {
		sel, err := NewSelector(candidates(n), SelectorOptions{Mode: ModeHeuristic, Hits: 2, Workers: workers}, nil)
		require.NoError(t, err)
		s, err := sel.Select(context.Background(), 0, NewViewState(n), fixedScorer(heats))
		require.NoError(t, err)
		return s
	}
	seq := pick(1)
	par := pick(8)
	assert.Equal(t, seq.View, par.View)
	assert.Equal(t, seq.Hit, par.Hit)
	assert.Equal(t, seq.Scores, par.Scores)
}

func TestHeuristicScorerError(t *testing.T) {
	boom := errors.New("render failed")
	sel, err := NewSelector(candidates(3), SelectorOptions{Mode: ModeHeuristic}, nil)
	require.NoError(t, err)

	state := NewViewState(3)
	_, err = sel.Select(context.Background(), 0, state, ScorerFunc(func(context.Context, int, int) (float64, error) {
		return 0, boom
	}))
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, state.History)
	assert.Equal(t, []float64{1, 1, 1}, state.Punishments)

	_, err = sel.Select(context.Background(), 0, state, nil)
	assert.Error(t, err)
}
