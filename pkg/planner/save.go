package planner

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/arnavshah/warplanner-api-go/pkg/annotation"
	"github.com/arnavshah/warplanner-api-go/pkg/lineup"
	"github.com/arnavshah/warplanner-api-go/pkg/models"
)

// SaveResult reports a completed save
type SaveResult struct {
	Variant     models.TimeVariant `json:"variant"`
	Assignments int                `json:"assignments"`
	Dropped     []models.MemberID  `json:"dropped,omitempty"`
	Colors      int                `json:"colors"`
	Annotations int                `json:"annotations"`
	Steps       []Step             `json:"steps"`
	SavedAt     time.Time          `json:"saved_at"`
}

// savePlan is everything a save writes, captured under the lock
type savePlan struct {
	variant     models.TimeVariant
	draft       lineup.Draft
	written     lineup.Grid
	payload     models.AssignmentPayload
	dropped     []models.MemberID
	note        string
	noteRev     uint64
	colors      map[models.MemberID]annotation.Token
	annotations map[models.MemberID]string
	groups      []models.GroupRecord
	groupsRev   uint64
	saveGroups  bool
}

func (s *Session) plan() savePlan {
	v := s.drafts.Active()
	p := savePlan{
		variant:     v,
		draft:       s.drafts.Snapshot(v),
		note:        s.note,
		noteRev:     s.noteRev,
		colors:      make(map[models.MemberID]annotation.Token, len(s.colors)),
		annotations: make(map[models.MemberID]string, len(s.annotations)),
		groupsRev:   s.groupsRev,
		saveGroups:  s.groupsRev != s.savedGrps,
	}
	for id, c := range s.colors {
		p.colors[id] = c
	}
	for id, a := range s.annotations {
		p.annotations[id] = a
	}
	if p.saveGroups {
		p.groups = s.groups.Records()
	}

	p.payload = models.AssignmentPayload{
		UnitID:      s.UnitID,
		Variant:     v,
		Assignments: []models.AssignmentRow{},
		TeamLabels:  p.draft.Grid.Labels(),
	}
	for _, row := range p.draft.Grid.Rows() {
		_, known := s.moves.Roster[row.MemberID]
		if !known || s.moves.Eligibility.Blocked(row.MemberID, v) {
			p.dropped = append(p.dropped, row.MemberID)
			continue
		}
		p.payload.Assignments = append(p.payload.Assignments, row)
	}
	p.written = p.draft.Grid.Without(p.dropped...)
	return p
}

func fieldUpdates[T ~string](m map[models.MemberID]T) []models.FieldUpdate {
	out := make([]models.FieldUpdate, 0, len(m))
	for id, v := range m {
		out = append(out, models.FieldUpdate{MemberID: id, Value: string(v)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MemberID < out[j].MemberID })
	return out
}

// Save writes the active draft, note, staged colors, staged annotations and
// edited groups, in that order. The first failing step stops the save and
// leaves the session in PartialFailure; steps already written are not undone.
// A save requested while another is running is refused with ErrSaveInProgress.
func (s *Session) Save(ctx context.Context) (SaveResult, error) {
	s.mu.Lock()
	if s.state == StateSaving {
		s.mu.Unlock()
		return SaveResult{}, ErrSaveInProgress
	}
	p := s.plan()
	s.state = StateSaving
	s.failedStep = ""
	s.mu.Unlock()

	log := s.logger.With(zap.String("variant", string(p.variant)))
	if len(p.dropped) > 0 {
		log.Warn("excluding members on leave or off roster from save", zap.Int("count", len(p.dropped)))
	}

	res := SaveResult{
		Variant:     p.variant,
		Assignments: len(p.payload.Assignments),
		Dropped:     p.dropped,
		Colors:      len(p.colors),
		Annotations: len(p.annotations),
	}

	steps := []struct {
		step Step
		skip bool
		run  func() error
	}{
		{StepAssignments, false, func() error { return s.backend.WriteAssignments(ctx, p.payload) }},
		{StepNote, false, func() error { return s.backend.WriteNote(ctx, s.UnitID, p.note) }},
		{StepColors, len(p.colors) == 0, func() error { return s.backend.WriteColors(ctx, s.UnitID, fieldUpdates(p.colors)) }},
		{StepAnnotations, len(p.annotations) == 0, func() error {
			return s.backend.WriteAnnotations(ctx, s.UnitID, fieldUpdates(p.annotations))
		}},
		{StepGroups, !p.saveGroups, func() error { return s.backend.WriteGroups(ctx, s.UnitID, p.groups) }},
	}

	for _, st := range steps {
		if st.skip {
			continue
		}
		if err := st.run(); err != nil {
			log.Error("save step failed", zap.String("step", string(st.step)), zap.Error(err))
			s.mu.Lock()
			s.state = StatePartialFailure
			s.failedStep = st.step
			s.mu.Unlock()
			return res, &PersistenceError{Step: st.step, Err: err}
		}
		res.Steps = append(res.Steps, st.step)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.finish(p)
	res.SavedAt = s.lastSaved
	log.Info("lineup saved",
		zap.Int("assignments", res.Assignments),
		zap.Int("colors", res.Colors),
		zap.Int("annotations", res.Annotations),
	)
	return res, nil
}

// finish collapses what was written back to clean. Edits made while the save
// was running stay pending.
func (s *Session) finish(p savePlan) {
	s.drafts.Commit(p.variant, p.written, p.draft.Revision)
	if s.noteRev == p.noteRev {
		s.savedNote = p.noteRev
	}
	if p.saveGroups && s.groupsRev == p.groupsRev {
		s.savedGrps = p.groupsRev
	}
	for id, c := range p.colors {
		if cur, ok := s.colors[id]; ok && cur == c {
			delete(s.colors, id)
		}
	}
	for id, a := range p.annotations {
		if cur, ok := s.annotations[id]; ok && cur == a {
			delete(s.annotations, id)
		}
	}
	for id, c := range p.colors {
		if m, ok := s.moves.Roster[id]; ok {
			m.ColorTag = string(c)
		}
	}
	for id, a := range p.annotations {
		if m, ok := s.moves.Roster[id]; ok {
			m.Annotation = a
		}
	}
	s.failedStep = ""
	s.lastSaved = s.opts.Now()
	s.settle()
}
