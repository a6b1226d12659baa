package database

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/arnavshah/warplanner-api-go/pkg/config"
	"github.com/arnavshah/warplanner-api-go/pkg/models"
)

const fixtureYAML = `
unit: guild-1
note: "[red] bring potions"
members:
  - id: 1
    name: Alice
    strength: 900
    early: {team: 1, slot: 1}
  - id: 2
    name: Bob
    strength: 700
    late: {team: 2, slot: 6}
  - id: 3
    name: Carol
    strength: 500
    status: left
leave:
  - member: 2
    date: "2026-10-24"
    variant: early
    reason: travel
  - member: 1
    date: "2026-10-24"
    from: "21:00"
    until: "23:30"
`

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	cfg := config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "test.db")}
	db, err := InitDB(cfg, zap.NewNop())
	require.NoError(t, err)
	return db
}

func seededStore(t *testing.T) *Store {
	t.Helper()
	db := setupTestDB(t)
	f, err := ReadFixture(strings.NewReader(fixtureYAML))
	require.NoError(t, err)
	n, err := Seed(context.Background(), db, f)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	return NewStore(db, zap.NewNop())
}

func TestListEligibleMembers(t *testing.T) {
	s := seededStore(t)
	members, err := s.ListEligibleMembers(context.Background(), "guild-1")
	require.NoError(t, err)
	require.Len(t, members, 2, "members who left are not listed")

	assert.Equal(t, models.Placement{TeamID: 1, SlotIndex: 0}, members[0].Placements[models.VariantEarly])
	_, placedLate := members[0].Placements[models.VariantLate]
	assert.False(t, placedLate)
	assert.Equal(t, models.Placement{TeamID: 2, SlotIndex: 5}, members[1].Placements[models.VariantLate])

	others, err := s.ListEligibleMembers(context.Background(), "guild-2")
	require.NoError(t, err)
	assert.Empty(t, others)
}

func TestListLeaveMarks(t *testing.T) {
	s := seededStore(t)
	date := time.Date(2026, 10, 24, 0, 0, 0, 0, time.UTC)

	marks, err := s.ListLeaveMarks(context.Background(), "guild-1", date)
	require.NoError(t, err)
	require.Len(t, marks, 2)

	require.NotNil(t, marks[0].Variant)
	assert.Equal(t, models.VariantEarly, *marks[0].Variant)
	assert.Equal(t, "travel", marks[0].Reason)

	assert.Nil(t, marks[1].Variant)
	require.NotNil(t, marks[1].From)
	assert.Equal(t, 21, marks[1].From.UTC().Hour())

	none, err := s.ListLeaveMarks(context.Background(), "guild-1", date.AddDate(0, 0, 7))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestWriteAssignments(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()

	err := s.WriteAssignments(ctx, models.AssignmentPayload{
		UnitID:  "guild-1",
		Variant: models.VariantEarly,
		Assignments: []models.AssignmentRow{
			{MemberID: 2, TeamID: 3, SlotIndex: 2},
		},
		TeamLabels: map[int]string{3: "Tanks"},
	})
	require.NoError(t, err)

	members, err := s.ListEligibleMembers(ctx, "guild-1")
	require.NoError(t, err)
	_, alicePlaced := members[0].Placements[models.VariantEarly]
	assert.False(t, alicePlaced, "members missing from the payload are cleared")
	assert.Equal(t, models.Placement{TeamID: 3, SlotIndex: 2}, members[1].Placements[models.VariantEarly])
	assert.Equal(t, models.Placement{TeamID: 2, SlotIndex: 5}, members[1].Placements[models.VariantLate],
		"the other variant is untouched")

	layout, err := s.LoadLayout(ctx, "guild-1")
	require.NoError(t, err)
	assert.Equal(t, "Tanks", layout.TeamLabels[models.VariantEarly][3])

	err = s.WriteAssignments(ctx, models.AssignmentPayload{
		UnitID:      "guild-1",
		Variant:     models.VariantEarly,
		Assignments: []models.AssignmentRow{},
		TeamLabels:  map[int]string{3: "Healers"},
	})
	require.NoError(t, err)
	layout, err = s.LoadLayout(ctx, "guild-1")
	require.NoError(t, err)
	assert.Equal(t, "Healers", layout.TeamLabels[models.VariantEarly][3])
}

func TestWriteAssignmentsUnknownMemberRollsBack(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()

	err := s.WriteAssignments(ctx, models.AssignmentPayload{
		UnitID:  "guild-1",
		Variant: models.VariantEarly,
		Assignments: []models.AssignmentRow{
			{MemberID: 99, TeamID: 1, SlotIndex: 0},
		},
	})
	require.Error(t, err)

	members, err := s.ListEligibleMembers(ctx, "guild-1")
	require.NoError(t, err)
	assert.Equal(t, models.Placement{TeamID: 1, SlotIndex: 0}, members[0].Placements[models.VariantEarly])
}

func TestWriteColorsAndAnnotations(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteColors(ctx, "guild-1", []models.FieldUpdate{
		{MemberID: 1, Value: "red"},
		{MemberID: 2, Value: "blue"},
	}))
	require.NoError(t, s.WriteAnnotations(ctx, "guild-1", []models.FieldUpdate{
		{MemberID: 2, Value: "[green] shot caller"},
	}))
	require.NoError(t, s.WriteColors(ctx, "guild-2", []models.FieldUpdate{
		{MemberID: 1, Value: "pink"},
	}))

	members, err := s.ListEligibleMembers(ctx, "guild-1")
	require.NoError(t, err)
	assert.Equal(t, "red", members[0].ColorTag)
	assert.Equal(t, "blue", members[1].ColorTag)
	assert.Equal(t, "", members[0].Annotation)
	assert.Equal(t, "[green] shot caller", members[1].Annotation)
}

func TestWriteFieldLargeBatch(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	f := &Fixture{Unit: "big"}
	for i := int64(1); i <= maxBatchSize+50; i++ {
		f.Members = append(f.Members, FixtureMember{ID: i, Name: "m"})
	}
	_, err := Seed(ctx, db, f)
	require.NoError(t, err)

	s := NewStore(db, zap.NewNop())
	updates := make([]models.FieldUpdate, 0, len(f.Members))
	for _, m := range f.Members {
		updates = append(updates, models.FieldUpdate{MemberID: models.MemberID(m.ID), Value: "teal"})
	}
	require.NoError(t, s.WriteColors(ctx, "big", updates))

	var count int64
	require.NoError(t, db.Model(&MemberRecord{}).Where("color_tag = ?", "teal").Count(&count).Error)
	assert.Equal(t, int64(len(updates)), count)
}

func TestWriteFieldFallsBackToSingleUpdates(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	f := &Fixture{Unit: "fallback"}
	for i := int64(1); i <= 5; i++ {
		f.Members = append(f.Members, FixtureMember{ID: i, Name: "m"})
	}
	_, err := Seed(ctx, db, f)
	require.NoError(t, err)

	rejected := 0
	err = db.Callback().Update().Before("gorm:update").Register("test:reject_case", func(tx *gorm.DB) {
		dest, ok := tx.Statement.Dest.(map[string]interface{})
		if !ok {
			return
		}
		for _, v := range dest {
			if _, isExpr := v.(clause.Expr); isExpr {
				rejected++
				_ = tx.AddError(assert.AnError)
			}
		}
	})
	require.NoError(t, err)

	core, logs := observer.New(zapcore.WarnLevel)
	s := NewStore(db, zap.New(core))
	updates := make([]models.FieldUpdate, 0, len(f.Members))
	for _, m := range f.Members {
		updates = append(updates, models.FieldUpdate{MemberID: models.MemberID(m.ID), Value: "[gold] scout"})
	}
	require.NoError(t, s.WriteAnnotations(ctx, "fallback", updates))

	assert.Equal(t, 1, rejected)
	assert.Equal(t, 1, logs.FilterMessage("batched update rejected, falling back to single updates").Len())

	var rows []MemberRecord
	require.NoError(t, db.Where("unit_id = ?", "fallback").Order("id").Find(&rows).Error)
	require.Len(t, rows, 5)
	for _, r := range rows {
		assert.Equal(t, "[gold] scout", r.Annotation, "member %d", r.ID)
	}
}

func TestGroupsNoteAndLayout(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()

	layout, err := s.LoadLayout(ctx, "guild-1")
	require.NoError(t, err)
	assert.Equal(t, "[red] bring potions", layout.Note)
	assert.Empty(t, layout.Groups)

	groups := []models.GroupRecord{
		{ID: 1, Name: "Front", Color: "#ff0000", OrderRank: 1, TeamIDs: "1,2"},
		{ID: 4, Name: "Back", Color: "#0000ff", OrderRank: 2, TeamIDs: "9"},
	}
	require.NoError(t, s.WriteGroups(ctx, "guild-1", groups))
	require.NoError(t, s.WriteNote(ctx, "guild-1", "hold the bridge"))

	layout, err = s.LoadLayout(ctx, "guild-1")
	require.NoError(t, err)
	assert.Equal(t, groups, layout.Groups)
	assert.Equal(t, "hold the bridge", layout.Note)

	require.NoError(t, s.WriteGroups(ctx, "guild-1", nil))
	layout, err = s.LoadLayout(ctx, "guild-1")
	require.NoError(t, err)
	assert.Empty(t, layout.Groups)
}

func TestReadFixtureRejectsUnknownFields(t *testing.T) {
	_, err := ReadFixture(strings.NewReader("unit: x\nplayers: []\n"))
	assert.Error(t, err)

	_, err = ReadFixture(strings.NewReader("members: []\n"))
	assert.Error(t, err)
}
