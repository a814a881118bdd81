// Package camera provides the look-at cameras used to render a mesh from a
// fixed set of distance/elevation/azimuth viewpoints.
package camera

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/texsynth/pkg/math"
)

// Default projection parameters.
const (
	DefaultFoV   = 60.0 // degrees, vertical
	DefaultZNear = 0.01
	DefaultZFar  = 100.0

	// maxElevation keeps the look-at basis defined when looking straight
	// down or up.
	maxElevation = 89.9
)

// Camera orbits the origin at a fixed distance and always looks at it.
type Camera struct {
	// Spherical coordinates, angles in degrees
	Dist float32
	Elev float32
	Azim float32

	// Projection
	FoV   float32
	ZNear float32
	ZFar  float32

	ImageSize int
}

// New creates a perspective camera at the given pose for square renders of
// imageSize pixels.
func New(dist, elev, azim float32, imageSize int) *Camera {
	if elev > maxElevation {
		elev = maxElevation
	}
	if elev < -maxElevation {
		elev = -maxElevation
	}
	return &Camera{
		Dist:      dist,
		Elev:      elev,
		Azim:      azim,
		FoV:       DefaultFoV,
		ZNear:     DefaultZNear,
		ZFar:      DefaultZFar,
		ImageSize: imageSize,
	}
}

// FromViewpoint creates a camera for a candidate viewpoint.
func FromViewpoint(vp Viewpoint, imageSize int) *Camera {
	return New(vp.Dist, vp.Elev, vp.Azim, imageSize)
}

// Position returns the camera position in world space.
// Azimuth 0 at elevation 0 sits on +Z; positive azimuth rotates toward +X.
func (c *Camera) Position() math.Vec3 {
	elev := math.Radians(c.Elev)
	azim := math.Radians(c.Azim)
	return math.Vec3{
		X: c.Dist * math32.Cos(elev) * math32.Sin(azim),
		Y: c.Dist * math32.Sin(elev),
		Z: c.Dist * math32.Cos(elev) * math32.Cos(azim),
	}
}

// ViewMatrix returns the view matrix for this camera.
func (c *Camera) ViewMatrix() math.Mat4 {
	up := math.Vec3{X: 0, Y: 1, Z: 0}
	return math.LookAt(c.Position(), math.Vec3{}, up)
}

// ProjectionMatrix returns the perspective projection for a square image.
func (c *Camera) ProjectionMatrix() math.Mat4 {
	return math.Perspective(math.Radians(c.FoV), 1, c.ZNear, c.ZFar)
}

// ViewProjection returns projection * view.
func (c *Camera) ViewProjection() math.Mat4 {
	return c.ProjectionMatrix().Mul(c.ViewMatrix())
}

// WithImageSize returns a copy of the camera rendering at another size.
func (c *Camera) WithImageSize(size int) *Camera {
	cc := *c
	cc.ImageSize = size
	return &cc
}
