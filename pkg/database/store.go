package database

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/arnavshah/warplanner-api-go/pkg/models"
)

const (
	dateLayout    = "2006-01-02"
	maxBatchSize  = 200
	colorColumn   = "color_tag"
	annotationCol = "annotation"
)

// Store implements the planner's roster, leave, layout and persistence interfaces on gorm
type Store struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewStore wraps db
func NewStore(db *gorm.DB, logger *zap.Logger) *Store {
	return &Store{DB: db, Logger: logger}
}

// ListEligibleMembers returns the unit's active members
func (s *Store) ListEligibleMembers(ctx context.Context, unitID string) ([]models.Member, error) {
	var rows []MemberRecord
	err := s.DB.WithContext(ctx).
		Where("unit_id = ? AND status = ?", unitID, models.StatusActive).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]models.Member, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toMember())
	}
	return out, nil
}

func (r MemberRecord) toMember() models.Member {
	m := models.Member{
		ID:              models.MemberID(r.ID),
		DisplayName:     r.DisplayName,
		Strength:        r.Strength,
		TeamRoleID:      r.TeamRoleID,
		ColorTag:        r.ColorTag,
		Annotation:      r.Annotation,
		LifecycleStatus: r.Status,
		Placements:      make(map[models.TimeVariant]models.Placement),
	}
	if pl, ok := placement(r.EarlyTeam, r.EarlyPosition); ok {
		m.Placements[models.VariantEarly] = pl
	}
	if pl, ok := placement(r.LateTeam, r.LatePosition); ok {
		m.Placements[models.VariantLate] = pl
	}
	return m
}

func placement(team, position *int) (models.Placement, bool) {
	if team == nil || position == nil || *team == 0 || *position == 0 {
		return models.Placement{}, false
	}
	return models.Placement{TeamID: *team, SlotIndex: *position - 1}, true
}

// ListLeaveMarks returns leave marks recorded for date
func (s *Store) ListLeaveMarks(ctx context.Context, unitID string, date time.Time) ([]models.LeaveMark, error) {
	var rows []LeaveRecord
	err := s.DB.WithContext(ctx).
		Where("unit_id = ? AND date = ?", unitID, date.Format(dateLayout)).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]models.LeaveMark, 0, len(rows))
	for _, r := range rows {
		mark := models.LeaveMark{
			MemberID: models.MemberID(r.MemberID),
			Date:     date,
			From:     r.FromTime,
			Until:    r.UntilTime,
			Reason:   r.Reason,
		}
		if r.Variant != nil && *r.Variant != "" {
			v, err := models.ParseVariant(*r.Variant)
			if err != nil {
				s.Logger.Warn("skipping leave record", zap.Uint("id", r.ID), zap.Error(err))
				continue
			}
			mark.Variant = &v
		}
		out = append(out, mark)
	}
	return out, nil
}

// LoadLayout reads the unit's groups, note and team labels
func (s *Store) LoadLayout(ctx context.Context, unitID string) (models.Layout, error) {
	db := s.DB.WithContext(ctx)
	layout := models.Layout{TeamLabels: make(map[models.TimeVariant]map[int]string)}

	var groups []TeamGroupRecord
	if err := db.Where("unit_id = ?", unitID).Order("order_rank, group_id").Find(&groups).Error; err != nil {
		return layout, fmt.Errorf("groups: %w", err)
	}
	for _, g := range groups {
		layout.Groups = append(layout.Groups, models.GroupRecord{
			ID:        g.GroupID,
			Name:      g.Name,
			Color:     g.Color,
			OrderRank: g.OrderRank,
			TeamIDs:   g.TeamIDs,
		})
	}

	var note NoteRecord
	err := db.Where("unit_id = ?", unitID).Limit(1).Find(&note).Error
	if err != nil {
		return layout, fmt.Errorf("note: %w", err)
	}
	layout.Note = note.Body

	var labels []TeamLabelRecord
	if err := db.Where("unit_id = ?", unitID).Find(&labels).Error; err != nil {
		return layout, fmt.Errorf("labels: %w", err)
	}
	for _, l := range labels {
		v := models.TimeVariant(l.Variant)
		if !v.Valid() {
			continue
		}
		if layout.TeamLabels[v] == nil {
			layout.TeamLabels[v] = make(map[int]string)
		}
		layout.TeamLabels[v][l.TeamID] = l.Label
	}
	return layout, nil
}

// WriteAssignments replaces the variant's placements for the whole unit.
// Members missing from the payload are cleared.
func (s *Store) WriteAssignments(ctx context.Context, payload models.AssignmentPayload) error {
	if !payload.Variant.Valid() {
		return fmt.Errorf("unknown time variant %q", payload.Variant)
	}
	teamCol, posCol := variantColumns(payload.Variant)

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&MemberRecord{}).
			Where("unit_id = ?", payload.UnitID).
			Updates(map[string]interface{}{teamCol: nil, posCol: nil}).Error
		if err != nil {
			return fmt.Errorf("clear placements: %w", err)
		}
		for _, a := range payload.Assignments {
			res := tx.Model(&MemberRecord{}).
				Where("unit_id = ? AND id = ?", payload.UnitID, int64(a.MemberID)).
				Updates(map[string]interface{}{teamCol: a.TeamID, posCol: a.SlotIndex + 1})
			if res.Error != nil {
				return fmt.Errorf("place member %d: %w", a.MemberID, res.Error)
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("member %d not found in unit %s", a.MemberID, payload.UnitID)
			}
		}

		if len(payload.TeamLabels) == 0 {
			return nil
		}
		labels := make([]TeamLabelRecord, 0, len(payload.TeamLabels))
		for team, label := range payload.TeamLabels {
			labels = append(labels, TeamLabelRecord{
				UnitID:  payload.UnitID,
				Variant: string(payload.Variant),
				TeamID:  team,
				Label:   label,
			})
		}
		sort.Slice(labels, func(i, j int) bool { return labels[i].TeamID < labels[j].TeamID })
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "unit_id"}, {Name: "variant"}, {Name: "team_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"label"}),
		}).Create(&labels).Error
	})
}

// WriteNote upserts the unit's note
func (s *Store) WriteNote(ctx context.Context, unitID, note string) error {
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "unit_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"body", "updated_at"}),
	}).Create(&NoteRecord{UnitID: unitID, Body: note, UpdatedAt: time.Now()}).Error
}

// WriteColors stores staged member colors
func (s *Store) WriteColors(ctx context.Context, unitID string, updates []models.FieldUpdate) error {
	return s.writeField(ctx, unitID, colorColumn, updates)
}

// WriteAnnotations stores staged member annotations
func (s *Store) WriteAnnotations(ctx context.Context, unitID string, updates []models.FieldUpdate) error {
	return s.writeField(ctx, unitID, annotationCol, updates)
}

// writeField tries one batched CASE update per chunk and falls back to
// one update per member when the database rejects the batched form.
func (s *Store) writeField(ctx context.Context, unitID, column string, updates []models.FieldUpdate) error {
	for start := 0; start < len(updates); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(updates) {
			end = len(updates)
		}
		chunk := updates[start:end]
		if err := s.batchUpdate(ctx, unitID, column, chunk); err != nil {
			s.Logger.Warn("batched update rejected, falling back to single updates",
				zap.String("unit", unitID),
				zap.String("column", column),
				zap.Int("rows", len(chunk)),
				zap.Error(err),
			)
			if err := s.singleUpdates(ctx, unitID, column, chunk); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Store) batchUpdate(ctx context.Context, unitID, column string, updates []models.FieldUpdate) error {
	var expr strings.Builder
	args := make([]interface{}, 0, len(updates)*2)
	ids := make([]int64, 0, len(updates))
	expr.WriteString("CASE id")
	for _, u := range updates {
		expr.WriteString(" WHEN ? THEN ?")
		args = append(args, int64(u.MemberID), u.Value)
		ids = append(ids, int64(u.MemberID))
	}
	expr.WriteString(" ELSE " + column + " END")

	return s.DB.WithContext(ctx).Model(&MemberRecord{}).
		Where("unit_id = ? AND id IN ?", unitID, ids).
		Update(column, gorm.Expr(expr.String(), args...)).Error
}

func (s *Store) singleUpdates(ctx context.Context, unitID, column string, updates []models.FieldUpdate) error {
	for _, u := range updates {
		err := s.DB.WithContext(ctx).Model(&MemberRecord{}).
			Where("unit_id = ? AND id = ?", unitID, int64(u.MemberID)).
			Update(column, u.Value).Error
		if err != nil {
			return fmt.Errorf("update %s of member %d: %w", column, u.MemberID, err)
		}
	}
	return nil
}

// WriteGroups replaces the unit's stored groups
func (s *Store) WriteGroups(ctx context.Context, unitID string, groups []models.GroupRecord) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("unit_id = ?", unitID).Delete(&TeamGroupRecord{}).Error; err != nil {
			return err
		}
		if len(groups) == 0 {
			return nil
		}
		rows := make([]TeamGroupRecord, 0, len(groups))
		for _, g := range groups {
			rows = append(rows, TeamGroupRecord{
				UnitID:    unitID,
				GroupID:   g.ID,
				Name:      g.Name,
				Color:     g.Color,
				OrderRank: g.OrderRank,
				TeamIDs:   g.TeamIDs,
			})
		}
		return tx.Create(&rows).Error
	})
}
