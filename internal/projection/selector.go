package projection

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/texsynth/internal/engine/camera"
)

// Mode is a view selection policy.
type Mode string

// Selection modes.
const (
	ModeSequential Mode = "sequential"
	ModeRandom     Mode = "random"
	ModeHeuristic  Mode = "heuristic"
)

var (
	// ErrUnknownMode is returned for selection modes other than the three
	// supported ones.
	ErrUnknownMode = errors.New("unknown view selection mode")
	// ErrNoCandidates is returned when there is nothing to select from.
	ErrNoCandidates = errors.New("no candidate views")
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeSequential, ModeRandom, ModeHeuristic:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Defaults for SelectorOptions.
const (
	DefaultPrincipleViews  = 6
	DefaultPunishmentDecay = 0.01
)

// SelectorOptions configures a Selector. Zero PrincipleViews and
// PunishmentDecay take the defaults above.
type SelectorOptions struct {
	Mode            Mode
	UsePrinciple    bool
	PrincipleViews  int
	PunishmentDecay float64 // in (0,1]
	Hits            int
	Workers         int
}

// Scorer rates a (view, hit) candidate. The selector applies punishments
// on top of the returned heat.
type Scorer interface {
	Score(ctx context.Context, view, hit int) (float64, error)
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(ctx context.Context, view, hit int) (float64, error)

// Score implements Scorer.
func (f ScorerFunc) Score(ctx context.Context, view, hit int) (float64, error) {
	return f(ctx, view, hit)
}

// Selection is the outcome of one Select call.
type Selection struct {
	View      int
	Hit       int
	Viewpoint camera.Viewpoint
	Heat      float64 // punished heat of the winner; 0 outside a heuristic scan
	Scores    []float64
}

// Selector picks the next view of a session.
type Selector struct {
	opts       SelectorOptions
	candidates []camera.Viewpoint
	rng        *rand.Rand
}

// NewSelector validates the options and candidate list.
func NewSelector(candidates []camera.Viewpoint, opts SelectorOptions, rng *rand.Rand) (*Selector, error) {
	if _, err := ParseMode(string(opts.Mode)); err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}
	if opts.Hits < 1 {
		opts.Hits = 1
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.PrincipleViews <= 0 {
		opts.PrincipleViews = DefaultPrincipleViews
	}
	if opts.PunishmentDecay == 0 {
		opts.PunishmentDecay = DefaultPunishmentDecay
	}
	if opts.PunishmentDecay < 0 || opts.PunishmentDecay > 1 {
		return nil, fmt.Errorf("punishment decay must be in (0,1], got %g", opts.PunishmentDecay)
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(0))
	}
	return &Selector{opts: opts, candidates: candidates, rng: rng}, nil
}

// Candidates returns the candidate viewpoints.
func (s *Selector) Candidates() []camera.Viewpoint {
	return s.candidates
}

// Select chooses the view for step and records it in state. Heuristic
// mode also punishes the chosen view. scorer is only used by heuristic
// scans.
func (s *Selector) Select(ctx context.Context, step int, state *ViewState, scorer Scorer) (Selection, error) {
	n := len(s.candidates)
	var sel Selection

	switch s.opts.Mode {
	case ModeSequential:
		sel.View = step % n

	case ModeRandom:
		sel.View = s.rng.Intn(n)

	case ModeHeuristic:
		if s.opts.UsePrinciple && step < s.opts.PrincipleViews && step < n {
			sel.View = step
		} else {
			var err error
			if sel, err = s.scan(ctx, state, scorer); err != nil {
				return Selection{}, err
			}
		}
		state.Punish(sel.View, s.opts.PunishmentDecay)

	default:
		return Selection{}, fmt.Errorf("%w: %q", ErrUnknownMode, s.opts.Mode)
	}

	sel.Viewpoint = s.candidates[sel.View]
	state.Record(sel.View)
	return sel, nil
}

// scan scores every (hit, view) pair, hits outer, and returns the first
// pair with the highest punished heat.
func (s *Selector) scan(ctx context.Context, state *ViewState, scorer Scorer) (Selection, error) {
	if scorer == nil {
		return Selection{}, errors.New("heuristic selection needs a scorer")
	}
	n := len(s.candidates)
	scores := make([]float64, s.opts.Hits*n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for hit := 0; hit < s.opts.Hits; hit++ {
		for view := 0; view < n; view++ {
			hit, view := hit, view
			g.Go(func() error {
				heat, err := scorer.Score(gctx, view, hit)
				if err != nil {
					return fmt.Errorf("scoring view %d hit %d: %w", view, hit, err)
				}
				scores[hit*n+view] = heat * state.Punishment(view)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return Selection{}, err
	}

	best := 0
	for i, h := range scores {
		if h > scores[best] {
			best = i
		}
	}
	return Selection{
		View:   best % n,
		Hit:    best / n,
		Heat:   scores[best],
		Scores: scores,
	}, nil
}
