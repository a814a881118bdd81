package math

import (
	"math"
	"testing"
)

// scaleTranslate returns the affine matrix p*s + t.
func scaleTranslate(s float32, t Vec3) Mat4 {
	return Mat4{
		s, 0, 0, 0,
		0, s, 0, 0,
		0, 0, s, 0,
		t.X, t.Y, t.Z, 1,
	}
}

func TestMulAppliesRightOperandFirst(t *testing.T) {
	scale := scaleTranslate(2, Vec3{})
	move := scaleTranslate(1, Vec3{10, 0, 0})

	got := move.Mul(scale).TransformPoint(Vec3{1, 1, 1})
	if want := (Vec3{12, 2, 2}); got != want {
		t.Errorf("move*scale: got %v, want %v", got, want)
	}
	got = scale.Mul(move).TransformPoint(Vec3{1, 1, 1})
	if want := (Vec3{22, 2, 2}); got != want {
		t.Errorf("scale*move: got %v, want %v", got, want)
	}
}

func TestTransformPointDivides(t *testing.T) {
	m := scaleTranslate(1, Vec3{})
	m[15] = 2
	if got, want := m.TransformPoint(Vec3{2, 4, 6}), (Vec3{1, 2, 3}); got != want {
		t.Errorf("TransformPoint: got %v, want %v", got, want)
	}

	c := m.Project(Vec3{2, 4, 6})
	if c[3] != 2 {
		t.Errorf("Project w = %v, want 2", c[3])
	}
}

func TestPerspectiveDepthRange(t *testing.T) {
	near, far := float32(0.1), float32(100)
	m := Perspective(float32(math.Pi/3), 1, near, far)

	if m[11] != -1 || m[15] != 0 {
		t.Errorf("not a perspective matrix: [11]=%v [15]=%v", m[11], m[15])
	}
	// Points on the near and far planes map to NDC z of -1 and +1.
	zn := m.TransformPoint(Vec3{0, 0, -near}).Z
	zf := m.TransformPoint(Vec3{0, 0, -far}).Z
	if abs(zn+1) > 1e-4 || abs(zf-1) > 1e-3 {
		t.Errorf("depth range: near %f, far %f", zn, zf)
	}
	// The clip w of a point is its view depth.
	if w := m.Project(Vec3{0, 0, -7})[3]; abs(w-7) > 1e-6 {
		t.Errorf("clip w = %v, want 7", w)
	}
}

func TestLookAtMovesEyeToOrigin(t *testing.T) {
	eye := Vec3{0, 0, 5}
	m := LookAt(eye, Vec3{}, Vec3{0, 1, 0})

	got := m.TransformPoint(eye)
	if got.Length() > 1e-5 {
		t.Errorf("eye in view space = %v, want origin", got)
	}

	// The look-at target lies on the -Z axis.
	target := m.TransformPoint(Vec3{})
	if abs(target.X) > 1e-5 || abs(target.Y) > 1e-5 || abs(target.Z+5) > 1e-5 {
		t.Errorf("target in view space = %v, want (0,0,-5)", target)
	}
}
