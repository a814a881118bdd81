package cachestore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/texsynth/internal/engine/camera"
	"github.com/Faultbox/texsynth/pkg/grid"
)

func TestInMemoryRoundTrip(t *testing.T) {
	s, err := InMemory()
	require.NoError(t, err)
	defer s.Close()

	_, ok, err := s.Load("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	g := grid.New(3, 2)
	g.Set(2, 1, 0.75)
	g.Set(0, 0, -1)
	require.NoError(t, s.Save("k", g))

	back, ok, err := s.Load("k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, g, back)
}

func TestPersistentReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Save("k", grid.Filled(2, 2, 0.5)))
	require.NoError(t, s.Close())

	s, err = Open(dir)
	require.NoError(t, err)
	defer s.Close()
	back, ok, err := s.Load("k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []float32{0.5, 0.5, 0.5, 0.5}, back.Pix)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
}

func TestDecodeRejectsBadLength(t *testing.T) {
	buf := encode(grid.New(2, 2))
	_, err := decode(buf[:len(buf)-1])
	assert.Error(t, err)
	_, err = decode([]byte{1})
	assert.Error(t, err)
}

func TestKey(t *testing.T) {
	vp := camera.Viewpoint{Dist: 1, Elev: 0, Azim: 90}
	faceUVs := [][3]int{{0, 1, 2}}

	base := Key("abc", faceUVs, vp, 0, 64, 128)
	assert.Len(t, base, 64)
	assert.Equal(t, base, Key("abc", faceUVs, vp, 0, 64, 128))

	assert.NotEqual(t, base, Key("abd", faceUVs, vp, 0, 64, 128))
	assert.NotEqual(t, base, Key("abc", [][3]int{{0, 2, 1}}, vp, 0, 64, 128))
	assert.NotEqual(t, base, Key("abc", faceUVs, camera.Viewpoint{Dist: 1, Azim: 91}, 0, 64, 128))
	assert.NotEqual(t, base, Key("abc", faceUVs, vp, 1, 64, 128))
	assert.NotEqual(t, base, Key("abc", faceUVs, vp, 0, 32, 128))
	assert.NotEqual(t, base, Key("abc", faceUVs, vp, 0, 64, 256))
}
