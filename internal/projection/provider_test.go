package projection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/texsynth/internal/engine/camera"
	"github.com/Faultbox/texsynth/pkg/math"
	"github.com/Faultbox/texsynth/pkg/mesh"
)

// nestedQuads stacks a small quad at z=0.2 in front of a larger one at
// z=-0.2, so the front view sees both layers in the middle.
func nestedQuads() *mesh.Mesh {
	ms := &mesh.Mesh{
		UVs: []math.Vec2{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}},
	}
	for _, q := range []struct{ half, z float32 }{{0.2, 0.2}, {0.4, -0.2}} {
		base := len(ms.Verts)
		ms.Verts = append(ms.Verts,
			math.Vec3{X: -q.half, Y: -q.half, Z: q.z},
			math.Vec3{X: q.half, Y: -q.half, Z: q.z},
			math.Vec3{X: q.half, Y: q.half, Z: q.z},
			math.Vec3{X: -q.half, Y: q.half, Z: q.z},
		)
		ms.Faces = append(ms.Faces, [3]int{base, base + 1, base + 2}, [3]int{base, base + 2, base + 3})
		ms.FaceUVs = append(ms.FaceUVs, [3]int{0, 1, 2}, [3]int{0, 2, 3})
	}
	return ms
}

func TestSingleMesh(t *testing.T) {
	ms := planeQuad(0.5)
	p := SingleMesh{Mesh: ms}
	assert.Equal(t, 1, p.Hits())

	got, faceUVs, err := p.Resolve(3, 0)
	require.NoError(t, err)
	assert.Same(t, ms, got)
	assert.Equal(t, ms.FaceUVs, faceUVs)

	_, _, err = p.Resolve(0, 1)
	assert.Error(t, err)
}

func TestXRayPeelsLayers(t *testing.T) {
	ms := nestedQuads()
	views := []camera.Viewpoint{{Dist: 2, Elev: 0, Azim: 0}}
	x, err := NewXRay(ms, views, 2, 32)
	require.NoError(t, err)
	assert.Equal(t, 2, x.Hits())

	front, faceUVs, err := x.Resolve(0, 0)
	require.NoError(t, err)
	assert.Len(t, faceUVs, len(front.Faces))
	// Layer 0: the small front quad and the visible rim of the back quad.
	assert.ElementsMatch(t, ms.Faces, front.Faces)

	inner, _, err := x.Resolve(0, 1)
	require.NoError(t, err)
	// Layer 1: only the back quad behind the small one.
	assert.ElementsMatch(t, ms.Faces[2:], inner.Faces)

	_, _, err = x.Resolve(0, 2)
	assert.Error(t, err)
	_, _, err = x.Resolve(1, 0)
	assert.Error(t, err)

	_, err = NewXRay(ms, views, 0, 32)
	assert.Error(t, err)
}
