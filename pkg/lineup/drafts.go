package lineup

import "github.com/arnavshah/warplanner-api-go/pkg/models"

// Draft is the in-memory, possibly unsaved grid for one time-variant
type Draft struct {
	Variant  models.TimeVariant `json:"variant"`
	Grid     Grid               `json:"grid"`
	Dirty    bool               `json:"dirty"`
	Revision uint64             `json:"revision"`
}

// DraftStore owns one draft and one baseline per time-variant
type DraftStore struct {
	active    models.TimeVariant
	drafts    map[models.TimeVariant]*Draft
	baselines map[models.TimeVariant]Grid
}

// NewDraftStore returns a store with empty clean drafts, early active
func NewDraftStore() *DraftStore {
	s := &DraftStore{
		active:    models.VariantEarly,
		drafts:    make(map[models.TimeVariant]*Draft, len(models.Variants)),
		baselines: make(map[models.TimeVariant]Grid, len(models.Variants)),
	}
	for _, v := range models.Variants {
		s.baselines[v] = NewGrid()
		s.drafts[v] = &Draft{Variant: v, Grid: NewGrid()}
	}
	return s
}

// Active returns the variant currently being edited
func (s *DraftStore) Active() models.TimeVariant { return s.active }

// Switch changes the active variant. The inactive draft is kept as is.
func (s *DraftStore) Switch(v models.TimeVariant) {
	s.active = v
}

// Draft returns the draft for v. Callers must not retain the pointer across mutations.
func (s *DraftStore) Draft(v models.TimeVariant) *Draft {
	return s.drafts[v]
}

// Snapshot returns a deep copy of the draft for v
func (s *DraftStore) Snapshot(v models.TimeVariant) Draft {
	d := *s.drafts[v]
	d.Grid = d.Grid.Clone()
	return d
}

// Baseline returns a copy of the last loaded or saved grid for v
func (s *DraftStore) Baseline(v models.TimeVariant) Grid {
	return s.baselines[v].Clone()
}

// LoadBaseline records fresh baseline grids. Only clean drafts are rebuilt;
// a dirty draft keeps its in-progress edits. Returns the variants rebuilt.
func (s *DraftStore) LoadBaseline(grids map[models.TimeVariant]Grid) []models.TimeVariant {
	var rebuilt []models.TimeVariant
	for _, v := range models.Variants {
		g, ok := grids[v]
		if !ok {
			continue
		}
		s.baselines[v] = g.Clone()
		d := s.drafts[v]
		if !d.Dirty {
			d.Grid = g.Clone()
			rebuilt = append(rebuilt, v)
		}
	}
	return rebuilt
}

// Commit makes grid the new baseline for v. When the draft was not touched
// after revision was taken it takes grid too and is marked clean.
func (s *DraftStore) Commit(v models.TimeVariant, grid Grid, revision uint64) bool {
	s.baselines[v] = grid.Clone()
	d := s.drafts[v]
	if d.Revision != revision {
		return false
	}
	d.Grid = grid.Clone()
	d.Dirty = false
	return true
}

// replace swaps the active grid and bumps the revision
func (s *DraftStore) replace(g Grid, dirty bool) {
	d := s.drafts[s.active]
	d.Grid = g
	d.Dirty = dirty
	d.Revision++
}

// touch marks the active draft edited
func (s *DraftStore) touch() {
	d := s.drafts[s.active]
	d.Dirty = true
	d.Revision++
}

// AnyDirty reports whether either draft has unsaved edits
func (s *DraftStore) AnyDirty() bool {
	for _, d := range s.drafts {
		if d.Dirty {
			return true
		}
	}
	return false
}
