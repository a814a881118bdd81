package session

import (
	"image"

	"go.uber.org/zap"

	"github.com/Faultbox/texsynth/internal/engine/debug"
	"github.com/Faultbox/texsynth/internal/projection"
)

// Artifact failures are logged and never abort a session.

func (s *Session) writeCache() {
	if !s.artifacts.Enabled() {
		return
	}
	hits := s.meshes.Hits()
	for slot, tex := range s.cache {
		s.keep(s.artifacts.WriteGrid(debug.KindCache, slot/hits, slot%hits, tex))
	}
}

func (s *Session) writeView(vr *projection.ViewRender) {
	w := s.artifacts
	if !w.Enabled() {
		return
	}
	v, h := vr.View, vr.Hit
	s.keep(w.WriteImage(debug.KindColor, v, h, vr.Render.Color))
	s.keep(w.WriteImage(debug.KindNormal, v, h, vr.Render.Normal))
	s.keep(w.WriteGrid(debug.KindDepth, v, h, vr.Render.Depth))
	s.keep(w.WriteGrid(debug.KindSimilarity, v, h, vr.Render.Similarity))
	s.keep(w.WriteGrid(debug.KindNew, v, h, vr.Masks.New))
	s.keep(w.WriteGrid(debug.KindUpdate, v, h, vr.Masks.Update))
	s.keep(w.WriteGrid(debug.KindOld, v, h, vr.Masks.Old))
	s.keep(w.WriteGrid(debug.KindExist, v, h, vr.Masks.Exist))
	s.keep(w.WriteQuad(v, h, vr.Quad))
}

func (s *Session) writeStep(vr *projection.ViewRender, generated image.Image, proj *projection.Projection) {
	w := s.artifacts
	if !w.Enabled() {
		return
	}
	s.keep(w.WriteImage(debug.KindGenerated, vr.View, vr.Hit, generated))
	s.keep(w.WriteGrid(debug.KindWriteMask, vr.View, vr.Hit, proj.WriteMask))
	s.keep(w.WriteImage(debug.KindAtlas, vr.View, vr.Hit, proj.Atlas))
}

func (s *Session) keep(path string, err error) {
	if err != nil {
		s.log.Warn("failed to write artifact", zap.Error(err))
		return
	}
	if path != "" {
		s.log.Debug("wrote artifact", zap.String("path", path))
	}
}
