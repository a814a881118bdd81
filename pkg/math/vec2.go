// Package math provides float32 vector and matrix types used by the
// rasterizer and the UV projection pipeline.
package math

// Vec2 is a 2D vector. Texture coordinates use X as u and Y as v.
type Vec2 struct {
	X, Y float32
}

// Blend3 returns the barycentric combination w0*a + w1*b + w2*c.
func Blend3(a, b, c Vec2, w [3]float32) Vec2 {
	return Vec2{
		a.X*w[0] + b.X*w[1] + c.X*w[2],
		a.Y*w[0] + b.Y*w[1] + c.Y*w[2],
	}
}
