package database

import (
	"context"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/arnavshah/warplanner-api-go/pkg/models"
)

// Fixture is the YAML layout accepted by the seed command
type Fixture struct {
	Unit    string          `yaml:"unit"`
	Members []FixtureMember `yaml:"members"`
	Leave   []FixtureLeave  `yaml:"leave"`
	Note    string          `yaml:"note"`
}

// FixtureMember is one roster entry; slots are 1-based like the stored columns
type FixtureMember struct {
	ID         int64        `yaml:"id"`
	Name       string       `yaml:"name"`
	Strength   int64        `yaml:"strength"`
	Status     string       `yaml:"status"`
	TeamRoleID *int         `yaml:"team_role_id"`
	Early      *FixtureSlot `yaml:"early"`
	Late       *FixtureSlot `yaml:"late"`
}

type FixtureSlot struct {
	Team int `yaml:"team"`
	Slot int `yaml:"slot"`
}

type FixtureLeave struct {
	Member  int64  `yaml:"member"`
	Date    string `yaml:"date"`
	Variant string `yaml:"variant"`
	From    string `yaml:"from"`
	Until   string `yaml:"until"`
	Reason  string `yaml:"reason"`
}

// ReadFixture decodes a YAML fixture
func ReadFixture(r io.Reader) (*Fixture, error) {
	var f Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	if f.Unit == "" {
		return nil, fmt.Errorf("fixture has no unit")
	}
	return &f, nil
}

// Seed writes the fixture's roster, leave records and note, replacing what the unit had.
// It returns the number of members written.
func Seed(ctx context.Context, db *gorm.DB, f *Fixture) (int, error) {
	members := make([]MemberRecord, 0, len(f.Members))
	for _, m := range f.Members {
		status := m.Status
		if status == "" {
			status = models.StatusActive
		}
		rec := MemberRecord{
			ID:          m.ID,
			UnitID:      f.Unit,
			DisplayName: m.Name,
			Strength:    m.Strength,
			TeamRoleID:  m.TeamRoleID,
			Status:      status,
		}
		if m.Early != nil {
			rec.EarlyTeam, rec.EarlyPosition = intPtr(m.Early.Team), intPtr(m.Early.Slot)
		}
		if m.Late != nil {
			rec.LateTeam, rec.LatePosition = intPtr(m.Late.Team), intPtr(m.Late.Slot)
		}
		members = append(members, rec)
	}

	leave := make([]LeaveRecord, 0, len(f.Leave))
	for i, l := range f.Leave {
		rec, err := l.record(f.Unit)
		if err != nil {
			return 0, fmt.Errorf("leave entry %d: %w", i, err)
		}
		leave = append(leave, rec)
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("unit_id = ?", f.Unit).Delete(&LeaveRecord{}).Error; err != nil {
			return err
		}
		if len(members) > 0 {
			err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&members).Error
			if err != nil {
				return err
			}
		}
		if len(leave) > 0 {
			if err := tx.Create(&leave).Error; err != nil {
				return err
			}
		}
		if f.Note == "" {
			return nil
		}
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).
			Create(&NoteRecord{UnitID: f.Unit, Body: f.Note, UpdatedAt: time.Now()}).Error
	})
	if err != nil {
		return 0, err
	}
	return len(members), nil
}

func (l FixtureLeave) record(unit string) (LeaveRecord, error) {
	day, err := time.Parse(dateLayout, l.Date)
	if err != nil {
		return LeaveRecord{}, fmt.Errorf("date: %w", err)
	}
	rec := LeaveRecord{
		UnitID:   unit,
		Date:     day.Format(dateLayout),
		MemberID: l.Member,
		Reason:   l.Reason,
	}
	if l.Variant != "" {
		v, err := models.ParseVariant(l.Variant)
		if err != nil {
			return LeaveRecord{}, err
		}
		s := string(v)
		rec.Variant = &s
	}
	if rec.FromTime, err = clockOn(day, l.From); err != nil {
		return LeaveRecord{}, fmt.Errorf("from: %w", err)
	}
	if rec.UntilTime, err = clockOn(day, l.Until); err != nil {
		return LeaveRecord{}, fmt.Errorf("until: %w", err)
	}
	return rec, nil
}

func clockOn(day time.Time, hhmm string) (*time.Time, error) {
	if hhmm == "" {
		return nil, nil
	}
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return nil, err
	}
	at := day.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute)
	return &at, nil
}

func intPtr(v int) *int {
	if v == 0 {
		return nil
	}
	return &v
}
