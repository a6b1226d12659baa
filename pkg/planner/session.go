package planner

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/arnavshah/warplanner-api-go/pkg/annotation"
	"github.com/arnavshah/warplanner-api-go/pkg/groups"
	"github.com/arnavshah/warplanner-api-go/pkg/lineup"
	"github.com/arnavshah/warplanner-api-go/pkg/models"
)

// State is the save coordinator state of a session
type State string

const (
	StateClean          State = "clean"
	StateEditing        State = "editing"
	StateSaving         State = "saving"
	StatePartialFailure State = "partial_failure"
)

// Options configures how a session picks its war date and resolves leave
type Options struct {
	SlotTimes  lineup.SlotTimes
	WarWeekday time.Weekday
	Location   *time.Location
	Now        func() time.Time
}

// DefaultOptions is a Saturday war at 20:00 and 22:00 UTC
func DefaultOptions() Options {
	return Options{
		SlotTimes:  SlotTimes(20*time.Hour, 22*time.Hour),
		WarWeekday: time.Saturday,
		Location:   time.UTC,
		Now:        time.Now,
	}
}

// SlotTimes maps the early and late start offsets onto their variants
func SlotTimes(early, late time.Duration) lineup.SlotTimes {
	return lineup.SlotTimes{
		models.VariantEarly: early,
		models.VariantLate:  late,
	}
}

// NextWarDate returns midnight of the next weekday on or after now, in loc
func NextWarDate(now time.Time, weekday time.Weekday, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	now = now.In(loc)
	ahead := (int(weekday) - int(now.Weekday()) + 7) % 7
	y, m, d := now.Date()
	return time.Date(y, m, d+ahead, 0, 0, 0, 0, loc)
}

// Session is one planner's in-memory editing session for a guild unit.
// All methods are safe for concurrent use; mutations are applied one at a time.
type Session struct {
	ID       uuid.UUID
	UnitID   string
	OpenedAt time.Time

	mu      sync.Mutex
	backend Backend
	logger  *zap.Logger
	opts    Options

	warDate time.Time
	drafts  *lineup.DraftStore
	moves   *lineup.Controller
	groups  *groups.Manager
	members []models.Member
	issues  map[models.TimeVariant][]lineup.BaselineIssue

	note      string
	noteRev   uint64
	savedNote uint64
	groupsRev uint64
	savedGrps uint64

	colors      map[models.MemberID]annotation.Token
	annotations map[models.MemberID]string

	state      State
	failedStep Step
	lastSaved  time.Time
}

// NewSession creates an empty session. Call Refresh to load data.
func NewSession(unitID string, backend Backend, opts Options, logger *zap.Logger) *Session {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	drafts := lineup.NewDraftStore()
	return &Session{
		ID:          uuid.New(),
		UnitID:      unitID,
		OpenedAt:    opts.Now(),
		backend:     backend,
		logger:      logger.With(zap.String("unit", unitID)),
		opts:        opts,
		warDate:     NextWarDate(opts.Now(), opts.WarWeekday, opts.Location),
		drafts:      drafts,
		moves:       lineup.NewController(drafts),
		groups:      groups.NewManager(),
		issues:      make(map[models.TimeVariant][]lineup.BaselineIssue),
		colors:      make(map[models.MemberID]annotation.Token),
		annotations: make(map[models.MemberID]string),
		state:       StateClean,
	}
}

// snapshot of the fetched data applied by Refresh
type fetched struct {
	members []models.Member
	marks   []models.LeaveMark
	layout  models.Layout
}

// Refresh re-reads roster, leave marks and layout. Clean drafts are rebuilt from
// the new baseline; dirty drafts, edited groups and an edited note are kept.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	date := s.warDate
	s.mu.Unlock()

	var f fetched
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		members, err := s.backend.ListEligibleMembers(gctx, s.UnitID)
		if err != nil {
			return fmt.Errorf("list members: %w", err)
		}
		f.members = members
		return nil
	})
	g.Go(func() error {
		marks, err := s.backend.ListLeaveMarks(gctx, s.UnitID, date)
		if err != nil {
			return fmt.Errorf("list leave marks: %w", err)
		}
		f.marks = marks
		return nil
	})
	g.Go(func() error {
		layout, err := s.backend.LoadLayout(gctx, s.UnitID)
		if err != nil {
			return fmt.Errorf("load layout: %w", err)
		}
		f.layout = layout
		return nil
	})
	if err := g.Wait(); err != nil {
		s.logger.Warn("refresh failed", zap.Error(err))
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apply(f)
}

func (s *Session) apply(f fetched) error {
	active := make([]models.Member, 0, len(f.members))
	for _, m := range f.members {
		if m.LifecycleStatus == "" || m.LifecycleStatus == models.StatusActive {
			active = append(active, m)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].ID < active[j].ID })
	s.members = active
	s.moves.SetRoster(active)
	s.moves.Eligibility = lineup.ResolveLeave(f.marks, s.warDate, s.opts.SlotTimes)

	if s.groupsRev == s.savedGrps {
		mgr, issues := groups.Load(f.layout.Groups)
		for _, is := range issues {
			s.logger.Warn("dropped stored group team",
				zap.Int64("group", is.GroupID),
				zap.String("team", is.Team),
				zap.String("reason", is.Reason),
			)
		}
		s.groups = mgr
	}
	if s.noteRev == s.savedNote {
		s.note = f.layout.Note
	}

	grids := make(map[models.TimeVariant]lineup.Grid, len(models.Variants))
	for _, v := range models.Variants {
		grid, issues := lineup.BuildGrid(active, v, f.layout.TeamLabels[v])
		grids[v] = grid
		s.issues[v] = issues
		for _, is := range issues {
			s.logger.Warn("dropped stored placement",
				zap.String("variant", string(v)),
				zap.Int64("member", int64(is.MemberID)),
				zap.Int("team", is.TeamID),
				zap.Int("slot", is.Slot),
				zap.String("reason", is.Reason),
			)
		}
	}
	rebuilt := s.drafts.LoadBaseline(grids)
	s.logger.Debug("refreshed",
		zap.Int("members", len(active)),
		zap.Int("leave_marks", len(f.marks)),
		zap.Int("drafts_rebuilt", len(rebuilt)),
	)
	if s.state != StateSaving && s.state != StatePartialFailure {
		s.settle()
	}
	return nil
}

// pending reports whether anything is waiting to be saved
func (s *Session) pending() bool {
	return s.drafts.AnyDirty() ||
		len(s.colors) > 0 ||
		len(s.annotations) > 0 ||
		s.noteRev != s.savedNote ||
		s.groupsRev != s.savedGrps
}

// settle derives Clean or Editing from what is pending
func (s *Session) settle() {
	if s.pending() {
		s.state = StateEditing
	} else {
		s.state = StateClean
	}
}

// edit runs fn under the session lock and moves the session to Editing on success.
// A refused edit changes nothing.
func (s *Session) edit(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fn(); err != nil {
		return err
	}
	if s.state != StateSaving {
		s.settle()
	}
	return nil
}

// State returns the save state and, after a partial failure, the failed step
func (s *Session) State() (State, Step) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.failedStep
}

// ActiveVariant returns the variant being edited
func (s *Session) ActiveVariant() models.TimeVariant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drafts.Active()
}

// SwitchVariant changes which draft is edited. Neither draft is discarded.
func (s *Session) SwitchVariant(v models.TimeVariant) error {
	if !v.Valid() {
		return fmt.Errorf("unknown time variant %q", v)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts.Switch(v)
	return nil
}

// SetWarDate changes the date leave marks are resolved for. Call Refresh afterwards.
func (s *Session) SetWarDate(date time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	y, m, d := date.Date()
	s.warDate = time.Date(y, m, d, 0, 0, 0, 0, s.opts.Location)
}

// WarDate returns the date leave marks are resolved for
func (s *Session) WarDate() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.warDate
}

// Draft returns a copy of the draft for v
func (s *Session) Draft(v models.TimeVariant) lineup.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drafts.Snapshot(v)
}

// Eligibility returns the current leave snapshot
func (s *Session) Eligibility() *lineup.Eligibility {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.moves.Eligibility
}

// MoveFromRoster places a roster member on the active draft
func (s *Session) MoveFromRoster(id models.MemberID, target lineup.Position) error {
	return s.edit(func() error { return s.moves.MoveFromRoster(id, target) })
}

// MoveSlotToSlot swaps two slots of the active draft
func (s *Session) MoveSlotToSlot(source, target lineup.Position) error {
	return s.edit(func() error { return s.moves.MoveSlotToSlot(source, target) })
}

// Evict clears a slot of the active draft
func (s *Session) Evict(p lineup.Position) error {
	return s.edit(func() error { return s.moves.Evict(p) })
}

// ClearAll empties the active draft
func (s *Session) ClearAll() {
	_ = s.edit(func() error { s.moves.ClearAll(); return nil })
}

// RestoreFromBaseline drops the active draft's unsaved edits
func (s *Session) RestoreFromBaseline() {
	_ = s.edit(func() error { s.moves.RestoreFromBaseline(); return nil })
}

// CopyFromOtherVariant reuses the other variant's lineup on the active draft
func (s *Session) CopyFromOtherVariant() {
	_ = s.edit(func() error { s.moves.CopyFromOtherVariant(); return nil })
}

// AutoFill fills empty slots of the active draft
func (s *Session) AutoFill() (lineup.AutoFillResult, error) {
	var res lineup.AutoFillResult
	err := s.edit(func() error {
		var err error
		res, err = s.moves.AutoFill()
		return err
	})
	return res, err
}

// SetTeamLabel renames a team of the active draft
func (s *Session) SetTeamLabel(teamID int, label string) error {
	label = annotation.Sanitize(label)
	return s.edit(func() error { return s.moves.SetTeamLabel(teamID, label) })
}

func (s *Session) knownMembers(ids []models.MemberID) error {
	for _, id := range ids {
		if _, ok := s.moves.Roster[id]; !ok {
			return &lineup.UnknownMemberError{MemberID: id}
		}
	}
	return nil
}

// StageColor applies one color to every selected member as an unsaved change.
// An empty color stages clearing the color.
func (s *Session) StageColor(ids []models.MemberID, color string) error {
	tok, ok := annotation.ParseToken(color)
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidColor, color)
	}
	return s.edit(func() error {
		if err := s.knownMembers(ids); err != nil {
			return err
		}
		for _, id := range ids {
			s.colors[id] = tok
		}
		return nil
	})
}

// StageAnnotation stages a member's color-prefixed annotation
func (s *Session) StageAnnotation(id models.MemberID, color, text string) error {
	tok, ok := annotation.ParseToken(color)
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidColor, color)
	}
	encoded := annotation.Encode(tok, annotation.Sanitize(text))
	return s.edit(func() error {
		if err := s.knownMembers([]models.MemberID{id}); err != nil {
			return err
		}
		s.annotations[id] = encoded
		return nil
	})
}

// SetNote replaces the unit's war note
func (s *Session) SetNote(lines []annotation.Value) error {
	clean := make([]annotation.Value, len(lines))
	for i, l := range lines {
		tok, ok := annotation.ParseToken(string(l.Color))
		if !ok {
			return fmt.Errorf("%w: %q", ErrInvalidColor, l.Color)
		}
		clean[i] = annotation.Value{Color: tok, Text: annotation.Sanitize(l.Text)}
	}
	note := annotation.EncodeNote(clean)
	return s.edit(func() error {
		s.note = note
		s.noteRev++
		return nil
	})
}

// Note returns the decoded war note
func (s *Session) Note() []annotation.Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	return annotation.DecodeNote(s.note)
}

// CreateGroup adds a display group
func (s *Session) CreateGroup(name, color string, teamIDs []int) (groups.Group, error) {
	var g groups.Group
	err := s.edit(func() error {
		var err error
		if g, err = s.groups.Create(name, color, teamIDs); err == nil {
			s.groupsRev++
		}
		return err
	})
	return g, err
}

// UpdateGroup edits a display group
func (s *Session) UpdateGroup(id int64, name, color string, teamIDs []int) (groups.Group, error) {
	var g groups.Group
	err := s.edit(func() error {
		var err error
		if g, err = s.groups.Update(id, name, color, teamIDs); err == nil {
			s.groupsRev++
		}
		return err
	})
	return g, err
}

// DeleteGroup removes a display group
func (s *Session) DeleteGroup(id int64) error {
	return s.edit(func() error {
		if err := s.groups.Delete(id); err != nil {
			return err
		}
		s.groupsRev++
		return nil
	})
}

// ReorderGroup moves a group one place up or down
func (s *Session) ReorderGroup(id int64, dir groups.Direction) error {
	return s.edit(func() error {
		if err := s.groups.Reorder(id, dir); err != nil {
			return err
		}
		s.groupsRev++
		return nil
	})
}
