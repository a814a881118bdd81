package projection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/texsynth/pkg/grid"
)

func maskFrom(w, h int, cells ...int) *grid.Grid {
	g := grid.New(w, h)
	for _, i := range cells {
		g.Pix[i] = 1
	}
	return g
}

func TestComposeQuadMaskDisjoint(t *testing.T) {
	// 4x2 image: cells 0,1 new, 2 update, 3,4,5 old, 6,7 background.
	newMask := maskFrom(4, 2, 0, 1)
	update := maskFrom(4, 2, 2)
	old := maskFrom(4, 2, 3, 4, 5)

	quad, err := ComposeQuadMask(newMask, update, old)
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 3, 2, 1, 1, 1, 0, 0}, quad.Pix)

	w := DefaultWeights()
	want := (2*w.New + 1*w.Update + 3*w.Old + 2*w.Background) / 8
	assert.InDelta(t, want, ViewHeat(quad, w), 1e-12)

	custom := Weights{Background: 0.5, Old: 0, Update: 0, New: 0}
	assert.InDelta(t, 2.0/8*0.5, ViewHeat(quad, custom), 1e-12)
}

func TestComposeQuadMaskPriority(t *testing.T) {
	tests := []struct {
		name         string
		nw, upd, old float32
		want         float32
	}{
		{"new and old", 1, 0, 1, LabelNew},
		{"new and update", 1, 1, 0, LabelNew},
		{"all three", 1, 1, 1, LabelNew},
		{"update and old", 0, 1, 1, LabelUpdate},
		{"old only", 0, 0, 1, LabelOld},
		{"none", 0, 0, 0, LabelBackground},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quad, err := ComposeQuadMask(grid.Filled(1, 1, tt.nw), grid.Filled(1, 1, tt.upd), grid.Filled(1, 1, tt.old))
			require.NoError(t, err)
			assert.Equal(t, tt.want, quad.Pix[0])
		})
	}
}

func TestComposeQuadMaskSizeMismatch(t *testing.T) {
	_, err := ComposeQuadMask(grid.New(2, 2), grid.New(2, 2), grid.New(3, 2))
	assert.ErrorIs(t, err, ErrMaskSize)
}

func TestViewHeatDefaults(t *testing.T) {
	w := DefaultWeights()
	assert.Equal(t, 0.0, w.Background)
	assert.Equal(t, 0.1, w.Old)
	assert.Equal(t, 0.5, w.Update)
	assert.Equal(t, 1.0, w.New)

	all := grid.Filled(4, 4, LabelNew)
	assert.InDelta(t, 1.0, ViewHeat(all, w), 1e-12)
	assert.Equal(t, 0.0, ViewHeat(grid.New(0, 0), w))
}

func TestViewState(t *testing.T) {
	s := NewViewState(3)
	assert.Equal(t, []float64{1, 1, 1}, s.Punishments)

	c := s.Clone()
	s.Record(1)
	s.Punish(1, 0.5)
	assert.Equal(t, []int{1}, s.History)
	assert.Equal(t, 0.5, s.Punishment(1))
	assert.Equal(t, 1.0, s.Punishment(7))

	assert.Empty(t, c.History)
	assert.Equal(t, 1.0, c.Punishment(1))
}
