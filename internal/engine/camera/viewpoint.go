package camera

import "fmt"

// Sector names used to decorate prompts with the viewing direction.
const (
	SectorFront  = "front"
	SectorBack   = "back"
	SectorSide   = "side"
	SectorTop    = "top"
	SectorBottom = "bottom"
)

// Viewpoint is one candidate camera pose.
type Viewpoint struct {
	Dist   float32 `yaml:"dist"`
	Elev   float32 `yaml:"elev"`
	Azim   float32 `yaml:"azim"`
	Sector string  `yaml:"sector,omitempty"`
}

func (v Viewpoint) String() string {
	return fmt.Sprintf("dist=%.2f elev=%.1f azim=%.1f (%s)", v.Dist, v.Elev, v.Azim, v.Sector)
}

// principle views cover the canonical directions first.
var principle = []Viewpoint{
	{Elev: 0, Azim: 0, Sector: SectorFront},
	{Elev: 0, Azim: 180, Sector: SectorBack},
	{Elev: 0, Azim: 90, Sector: SectorSide},
	{Elev: 0, Azim: 270, Sector: SectorSide},
	{Elev: 90, Azim: 0, Sector: SectorTop},
	{Elev: -90, Azim: 0, Sector: SectorBottom},
}

// ring elevations used after the principle views, alternating so that
// small candidate counts still see above and below the equator.
var ringElevations = []float32{15, -15, 45, -45, 30, -30, 60, -60}

// Predefined returns n candidate viewpoints at distance dist: the six
// principle views followed by rings of eight azimuths at increasing
// elevations.
func Predefined(n int, dist float32) []Viewpoint {
	out := make([]Viewpoint, 0, n)
	for i := 0; i < n && i < len(principle); i++ {
		vp := principle[i]
		vp.Dist = dist
		out = append(out, vp)
	}

	for ring := 0; len(out) < n; ring++ {
		elev := ringElevations[ring%len(ringElevations)]
		// Offset each ring so repeated elevations do not reuse azimuths.
		offset := float32(22.5 * float32(ring/len(ringElevations)+ring%2))
		for k := 0; k < 8 && len(out) < n; k++ {
			azim := offset + float32(k)*45
			for azim >= 360 {
				azim -= 360
			}
			out = append(out, Viewpoint{
				Dist:   dist,
				Elev:   elev,
				Azim:   azim,
				Sector: SectorFor(elev, azim),
			})
		}
	}
	return out
}

// SectorFor classifies a pose as front, back, side, top or bottom.
func SectorFor(elev, azim float32) string {
	switch {
	case elev >= 60:
		return SectorTop
	case elev <= -60:
		return SectorBottom
	}

	a := azim
	for a < 0 {
		a += 360
	}
	for a >= 360 {
		a -= 360
	}
	switch {
	case a <= 45 || a >= 315:
		return SectorFront
	case a >= 135 && a <= 225:
		return SectorBack
	default:
		return SectorSide
	}
}
