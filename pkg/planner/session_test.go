package planner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arnavshah/warplanner-api-go/pkg/annotation"
	"github.com/arnavshah/warplanner-api-go/pkg/groups"
	"github.com/arnavshah/warplanner-api-go/pkg/lineup"
	"github.com/arnavshah/warplanner-api-go/pkg/models"
)

type fakeBackend struct {
	mu      sync.Mutex
	members []models.Member
	marks   []models.LeaveMark
	layout  models.Layout

	calls       []Step
	failAt      Step
	block       chan struct{}
	assignments []models.AssignmentPayload
	notes       []string
	colors      [][]models.FieldUpdate
	annotations [][]models.FieldUpdate
	groups      [][]models.GroupRecord
}

func (f *fakeBackend) ListEligibleMembers(ctx context.Context, unitID string) ([]models.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Member(nil), f.members...), nil
}

func (f *fakeBackend) ListLeaveMarks(ctx context.Context, unitID string, date time.Time) ([]models.LeaveMark, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.LeaveMark(nil), f.marks...), nil
}

func (f *fakeBackend) LoadLayout(ctx context.Context, unitID string) (models.Layout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.layout, nil
}

func (f *fakeBackend) record(step Step) error {
	if f.block != nil && step == StepAssignments {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, step)
	if f.failAt == step {
		return errors.New("boom")
	}
	return nil
}

func (f *fakeBackend) WriteAssignments(ctx context.Context, payload models.AssignmentPayload) error {
	if err := f.record(StepAssignments); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assignments = append(f.assignments, payload)
	return nil
}

func (f *fakeBackend) WriteNote(ctx context.Context, unitID, note string) error {
	if err := f.record(StepNote); err != nil {
		return err
	}
	f.notes = append(f.notes, note)
	return nil
}

func (f *fakeBackend) WriteColors(ctx context.Context, unitID string, updates []models.FieldUpdate) error {
	if err := f.record(StepColors); err != nil {
		return err
	}
	f.colors = append(f.colors, updates)
	return nil
}

func (f *fakeBackend) WriteAnnotations(ctx context.Context, unitID string, updates []models.FieldUpdate) error {
	if err := f.record(StepAnnotations); err != nil {
		return err
	}
	f.annotations = append(f.annotations, updates)
	return nil
}

func (f *fakeBackend) WriteGroups(ctx context.Context, unitID string, records []models.GroupRecord) error {
	if err := f.record(StepGroups); err != nil {
		return err
	}
	f.groups = append(f.groups, records)
	return nil
}

func roster(n int) []models.Member {
	out := make([]models.Member, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, models.Member{ID: models.MemberID(i), DisplayName: "m", Strength: int64(i), LifecycleStatus: models.StatusActive})
	}
	return out
}

func openSession(t *testing.T, f *fakeBackend) *Session {
	t.Helper()
	opts := DefaultOptions()
	opts.Now = func() time.Time { return time.Date(2026, 10, 21, 12, 0, 0, 0, time.UTC) }
	s := NewSession("unit-1", f, opts, zap.NewNop())
	require.NoError(t, s.Refresh(context.Background()))
	return s
}

func at(team, slot int) lineup.Position { return lineup.Position{TeamID: team, SlotIndex: slot} }

func TestNextWarDate(t *testing.T) {
	wed := time.Date(2026, 10, 21, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 10, 24, 0, 0, 0, 0, time.UTC), NextWarDate(wed, time.Saturday, time.UTC))
	sat := time.Date(2026, 10, 24, 1, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 10, 24, 0, 0, 0, 0, time.UTC), NextWarDate(sat, time.Saturday, nil))
}

func TestRefresh_FiltersInactiveAndBuildsBaseline(t *testing.T) {
	members := roster(3)
	members[2].LifecycleStatus = models.StatusLeft
	members[0].Placements = map[models.TimeVariant]models.Placement{models.VariantLate: {TeamID: 4, SlotIndex: 1}}
	f := &fakeBackend{members: members, layout: models.Layout{
		Note:       "[red] hold",
		TeamLabels: map[models.TimeVariant]map[int]string{models.VariantLate: {4: "Strike"}},
	}}
	s := openSession(t, f)

	v := s.View()
	assert.Len(t, v.Members, 2)
	assert.Equal(t, StateClean, v.State)
	assert.Equal(t, []lineup.Position{at(4, 1)}, v.Drafts[models.VariantLate].Grid.Find(1))
	assert.Equal(t, "Strike", v.Drafts[models.VariantLate].Grid.Teams[3].Label)
	assert.Equal(t, []annotation.Value{{Color: "red", Text: "hold"}}, v.Note)
	assert.Equal(t, []models.MemberID{1, 2}, v.Unassigned)
	assert.Equal(t, time.Date(2026, 10, 24, 0, 0, 0, 0, time.UTC), v.WarDate)
}

func TestSave_OrderAndCleanup(t *testing.T) {
	f := &fakeBackend{members: roster(5)}
	s := openSession(t, f)

	require.NoError(t, s.MoveFromRoster(1, at(1, 0)))
	require.NoError(t, s.StageColor([]models.MemberID{2, 3}, "Blue"))
	require.NoError(t, s.StageAnnotation(4, "red", "<b>tank</b>"))
	require.NoError(t, s.SetNote([]annotation.Value{{Color: "green", Text: "go"}}))
	_, err := s.CreateGroup("Front", "#ff0000", []int{1, 2})
	require.NoError(t, err)
	state, _ := s.State()
	assert.Equal(t, StateEditing, state)

	res, err := s.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Step{StepAssignments, StepNote, StepColors, StepAnnotations, StepGroups}, f.calls)
	assert.Equal(t, res.Steps, f.calls)

	require.Len(t, f.assignments, 1)
	assert.Equal(t, models.VariantEarly, f.assignments[0].Variant)
	assert.Equal(t, []models.AssignmentRow{{MemberID: 1, TeamID: 1, SlotIndex: 0}}, f.assignments[0].Assignments)
	assert.Equal(t, "[green] go", f.notes[0])
	assert.Equal(t, []models.FieldUpdate{{MemberID: 2, Value: "blue"}, {MemberID: 3, Value: "blue"}}, f.colors[0])
	assert.Equal(t, []models.FieldUpdate{{MemberID: 4, Value: "[red] tank"}}, f.annotations[0])
	assert.Equal(t, "1,2", f.groups[0][0].TeamIDs)

	v := s.View()
	assert.Equal(t, StateClean, v.State)
	assert.False(t, v.Drafts[models.VariantEarly].Dirty)
	assert.Empty(t, v.StagedColors)
	assert.Empty(t, v.StagedAnnotations)
	assert.Equal(t, "blue", v.Members[1].ColorTag)
	assert.NotNil(t, v.LastSaved)
}

func TestSave_SkipsEmptyOptionalSteps(t *testing.T) {
	f := &fakeBackend{members: roster(2)}
	s := openSession(t, f)
	_, err := s.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Step{StepAssignments, StepNote}, f.calls)
}

func TestSave_PartialFailureKeepsDraftDirty(t *testing.T) {
	f := &fakeBackend{members: roster(3), failAt: StepColors}
	s := openSession(t, f)
	require.NoError(t, s.MoveFromRoster(2, at(3, 3)))
	require.NoError(t, s.StageColor([]models.MemberID{1}, "red"))
	require.NoError(t, s.StageAnnotation(1, "", "later"))

	_, err := s.Save(context.Background())
	require.ErrorIs(t, err, ErrPersistenceFailure)
	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, StepColors, perr.Step)
	assert.Equal(t, []Step{StepAssignments, StepNote, StepColors}, f.calls)

	state, step := s.State()
	assert.Equal(t, StatePartialFailure, state)
	assert.Equal(t, StepColors, step)
	v := s.View()
	assert.True(t, v.Drafts[models.VariantEarly].Dirty)
	assert.Len(t, v.StagedColors, 1)
	assert.Len(t, v.StagedAnnotations, 1)

	f.failAt = ""
	_, err = s.Save(context.Background())
	require.NoError(t, err)
	state, _ = s.State()
	assert.Equal(t, StateClean, state)
}

func TestSave_ExcludesMembersOnLeave(t *testing.T) {
	f := &fakeBackend{members: roster(3)}
	s := openSession(t, f)
	require.NoError(t, s.MoveFromRoster(1, at(1, 0)))
	require.NoError(t, s.MoveFromRoster(2, at(1, 1)))

	f.marks = []models.LeaveMark{{MemberID: 2, Date: s.WarDate()}}
	require.NoError(t, s.Refresh(context.Background()))
	// a dirty draft keeps the stale reference
	assert.Equal(t, []lineup.Position{at(1, 1)}, s.Draft(models.VariantEarly).Grid.Find(2))

	res, err := s.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.MemberID{2}, res.Dropped)
	assert.Equal(t, []models.AssignmentRow{{MemberID: 1, TeamID: 1, SlotIndex: 0}}, f.assignments[0].Assignments)
}

func TestSave_RejectsConcurrentSave(t *testing.T) {
	f := &fakeBackend{members: roster(2), block: make(chan struct{})}
	s := openSession(t, f)
	require.NoError(t, s.MoveFromRoster(1, at(1, 0)))

	done := make(chan error, 1)
	go func() {
		_, err := s.Save(context.Background())
		done <- err
	}()

	require.Eventually(t, func() bool {
		state, _ := s.State()
		return state == StateSaving
	}, time.Second, time.Millisecond)

	_, err := s.Save(context.Background())
	assert.ErrorIs(t, err, ErrSaveInProgress)

	// edits during a save stay pending afterwards
	require.NoError(t, s.MoveFromRoster(2, at(2, 0)))
	close(f.block)
	require.NoError(t, <-done)

	state, _ := s.State()
	assert.Equal(t, StateEditing, state)
	assert.True(t, s.Draft(models.VariantEarly).Dirty)
	assert.Equal(t, 1, len(f.assignments))
}

func TestDirtyPropagation_RefreshAfterSave(t *testing.T) {
	f := &fakeBackend{members: roster(3)}
	s := openSession(t, f)
	require.NoError(t, s.MoveFromRoster(3, at(2, 2)))
	assert.True(t, s.Draft(models.VariantEarly).Dirty)

	_, err := s.Save(context.Background())
	require.NoError(t, err)
	assert.False(t, s.Draft(models.VariantEarly).Dirty)

	// the backend now reports what was saved
	f.members[2].Placements = map[models.TimeVariant]models.Placement{models.VariantEarly: {TeamID: 2, SlotIndex: 2}}
	before := s.Draft(models.VariantEarly).Grid
	require.NoError(t, s.Refresh(context.Background()))
	assert.Equal(t, before, s.Draft(models.VariantEarly).Grid)
}

func TestDirtyPropagation_RefreshAfterFilteredSave(t *testing.T) {
	f := &fakeBackend{members: roster(3)}
	s := openSession(t, f)
	require.NoError(t, s.MoveFromRoster(1, at(1, 0)))
	require.NoError(t, s.MoveFromRoster(2, at(1, 1)))

	f.marks = []models.LeaveMark{{MemberID: 2, Date: s.WarDate()}}
	require.NoError(t, s.Refresh(context.Background()))

	res, err := s.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.MemberID{2}, res.Dropped)

	early := s.Draft(models.VariantEarly)
	assert.False(t, early.Dirty)
	assert.Empty(t, early.Grid.Find(2))
	assert.Equal(t, []lineup.Position{at(1, 0)}, early.Grid.Find(1))

	// the backend now reports exactly what was written
	f.members[0].Placements = map[models.TimeVariant]models.Placement{models.VariantEarly: {TeamID: 1, SlotIndex: 0}}
	before := early.Grid
	require.NoError(t, s.Refresh(context.Background()))
	after := s.Draft(models.VariantEarly)
	assert.False(t, after.Dirty)
	assert.Equal(t, before, after.Grid)
}

func TestRefresh_KeepsDirtyDraftAndEditedLayout(t *testing.T) {
	f := &fakeBackend{members: roster(3), layout: models.Layout{Note: "old"}}
	s := openSession(t, f)
	require.NoError(t, s.MoveFromRoster(1, at(5, 5)))
	require.NoError(t, s.SetNote([]annotation.Value{{Text: "mine"}}))

	f.members[1].Placements = map[models.TimeVariant]models.Placement{
		models.VariantEarly: {TeamID: 9, SlotIndex: 0},
		models.VariantLate:  {TeamID: 9, SlotIndex: 0},
	}
	f.layout = models.Layout{Note: "theirs", Groups: []models.GroupRecord{{ID: 1, Name: "G", Color: "#000000", OrderRank: 1, TeamIDs: "1"}}}
	require.NoError(t, s.Refresh(context.Background()))

	early := s.Draft(models.VariantEarly)
	assert.Equal(t, []lineup.Position{at(5, 5)}, early.Grid.Find(1))
	assert.Empty(t, early.Grid.Find(2))
	assert.Equal(t, []lineup.Position{at(9, 0)}, s.Draft(models.VariantLate).Grid.Find(2))
	assert.Equal(t, []annotation.Value{{Text: "mine"}}, s.Note())
	require.Len(t, s.View().TeamOrder, 2)
}

func TestRefresh_DamagedGroupRecordKeepsOthers(t *testing.T) {
	f := &fakeBackend{members: roster(2), layout: models.Layout{Groups: []models.GroupRecord{
		{ID: 1, Name: "Front", Color: "#112233", OrderRank: 1, TeamIDs: "1,2"},
		{ID: 2, Name: "Bad", Color: "#445566", OrderRank: 2, TeamIDs: "3,11"},
	}}}
	s := openSession(t, f)

	_, err := s.CreateGroup("New", "#778899", []int{5})
	require.NoError(t, err)
	_, err = s.Save(context.Background())
	require.NoError(t, err)

	require.Len(t, f.groups, 1)
	names := make([]string, 0, len(f.groups[0]))
	for _, r := range f.groups[0] {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"Front", "Bad", "New"}, names)
	assert.Equal(t, "3", f.groups[0][1].TeamIDs)
}

func TestSwitchVariant_SavesOnlyActive(t *testing.T) {
	f := &fakeBackend{members: roster(2)}
	s := openSession(t, f)
	require.NoError(t, s.MoveFromRoster(1, at(1, 0)))
	require.NoError(t, s.SwitchVariant(models.VariantLate))
	require.NoError(t, s.MoveFromRoster(2, at(1, 0)))

	res, err := s.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.VariantLate, res.Variant)
	assert.False(t, s.Draft(models.VariantLate).Dirty)
	assert.True(t, s.Draft(models.VariantEarly).Dirty)

	state, _ := s.State()
	assert.Equal(t, StateEditing, state)
	assert.Error(t, s.SwitchVariant("noon"))
}

func TestStaging_Refusals(t *testing.T) {
	f := &fakeBackend{members: roster(2)}
	s := openSession(t, f)

	assert.ErrorIs(t, s.StageColor([]models.MemberID{1}, "chartreuse"), ErrInvalidColor)
	assert.ErrorIs(t, s.StageColor([]models.MemberID{1, 99}, "red"), lineup.ErrUnknownMember)
	assert.ErrorIs(t, s.StageAnnotation(1, "nope", "x"), ErrInvalidColor)
	assert.Empty(t, s.View().StagedColors)
	state, _ := s.State()
	assert.Equal(t, StateClean, state)

	_, err := s.CreateGroup("A", "#ff0000", []int{1})
	require.NoError(t, err)
	_, err = s.CreateGroup("B", "#00ff00", []int{1})
	assert.ErrorIs(t, err, groups.ErrGroupOverlap)
	assert.ErrorIs(t, s.ReorderGroup(42, groups.Up), groups.ErrGroupNotFound)
}

func TestRestoreFromBaseline_ReturnsToClean(t *testing.T) {
	f := &fakeBackend{members: roster(2)}
	s := openSession(t, f)
	require.NoError(t, s.MoveFromRoster(1, at(1, 0)))
	s.RestoreFromBaseline()
	state, _ := s.State()
	assert.Equal(t, StateClean, state)
	assert.Equal(t, 0, s.Draft(models.VariantEarly).Grid.Filled())
}

func TestRegistry(t *testing.T) {
	f := &fakeBackend{members: roster(2)}
	r := NewRegistry(f, DefaultOptions(), zap.NewNop())
	ctx := context.Background()

	s, created, err := r.Open(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, created)
	again, created, err := r.Open(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Same(t, s, again)

	require.NoError(t, r.RefreshUnit(ctx, "u2"))
	assert.True(t, r.Discard("u1"))
	_, err = r.Get("u1")
	assert.ErrorIs(t, err, ErrNoSession)
}
