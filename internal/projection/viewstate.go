package projection

// ViewState is the per-session selection memory: the order in which
// views were picked and a punishment multiplier per candidate view.
type ViewState struct {
	History     []int
	Punishments []float64
}

// NewViewState returns a state for n candidate views with all
// punishments at 1.
func NewViewState(n int) *ViewState {
	p := make([]float64, n)
	for i := range p {
		p[i] = 1
	}
	return &ViewState{Punishments: p}
}

// Record appends a selected view to the history.
func (s *ViewState) Record(view int) {
	s.History = append(s.History, view)
}

// Punish multiplies the view's punishment by decay.
func (s *ViewState) Punish(view int, decay float64) {
	s.Punishments[view] *= decay
}

// Punishment returns the multiplier of a view, 1 for unknown views.
func (s *ViewState) Punishment(view int) float64 {
	if view < 0 || view >= len(s.Punishments) {
		return 1
	}
	return s.Punishments[view]
}

// Clone returns a deep copy.
func (s *ViewState) Clone() *ViewState {
	return &ViewState{
		History:     append([]int(nil), s.History...),
		Punishments: append([]float64(nil), s.Punishments...),
	}
}
