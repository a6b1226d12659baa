package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/arnavshah/warplanner-api-go/pkg/config"
	"github.com/arnavshah/warplanner-api-go/pkg/models"
)

// APIKey represents the api_keys table. Each key is bound to one guild unit.
type APIKey struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Key        string     `gorm:"unique;not null" json:"-"`
	KeyPreview string     `json:"key_preview"`
	Name       string     `gorm:"not null" json:"name"`
	UnitID     string     `gorm:"index;not null" json:"unit_id"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsed   *time.Time `json:"last_used"`
}

// APIUsage represents the api_usage table
type APIUsage struct {
	ID               uint   `gorm:"primaryKey" json:"id"`
	KeyID            uint   `gorm:"uniqueIndex:idx_key_date;not null" json:"key_id"`
	Date             string `gorm:"uniqueIndex:idx_key_date;not null" json:"date"`
	RequestCount     int    `gorm:"default:0" json:"request_count"`
	TotalSaves       int    `gorm:"default:0" json:"total_saves"`
	TotalAssignments int    `gorm:"default:0" json:"total_assignments"`
}

// MasterUser represents the master_users table
type MasterUser struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"unique;not null" json:"username"`
	PasswordHash string    `gorm:"not null" json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// MemberRecord is a roster row. Each time-variant has its own team/position
// column pair; positions are 1-based and NULL or 0 means unassigned.
type MemberRecord struct {
	ID            int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	UnitID        string    `gorm:"index;not null" json:"unit_id"`
	DisplayName   string    `gorm:"not null" json:"display_name"`
	Strength      int64     `gorm:"default:0" json:"strength"`
	TeamRoleID    *int      `json:"team_role_id"`
	ColorTag      string    `json:"color_tag"`
	Annotation    string    `json:"annotation"`
	Status        string    `gorm:"default:active;index" json:"status"`
	EarlyTeam     *int      `json:"early_team"`
	EarlyPosition *int      `json:"early_position"`
	LateTeam      *int      `json:"late_team"`
	LatePosition  *int      `json:"late_position"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (MemberRecord) TableName() string { return "members" }

// LeaveRecord is one leave request for a date. Variant is "early", "late" or NULL for
// the whole day; FromTime/UntilTime narrow a whole-day record to a window.
type LeaveRecord struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UnitID    string     `gorm:"index:idx_leave_unit_date;not null" json:"unit_id"`
	Date      string     `gorm:"index:idx_leave_unit_date;not null" json:"date"`
	MemberID  int64      `gorm:"not null" json:"member_id"`
	Variant   *string    `json:"variant"`
	FromTime  *time.Time `json:"from_time"`
	UntilTime *time.Time `json:"until_time"`
	Reason    string     `json:"reason"`
	CreatedAt time.Time  `json:"created_at"`
}

func (LeaveRecord) TableName() string { return "leave_records" }

// TeamGroupRecord stores one display group of a unit
type TeamGroupRecord struct {
	ID        uint   `gorm:"primaryKey" json:"-"`
	UnitID    string `gorm:"uniqueIndex:idx_group_unit;not null" json:"unit_id"`
	GroupID   int64  `gorm:"uniqueIndex:idx_group_unit;not null" json:"id"`
	Name      string `gorm:"not null" json:"name"`
	Color     string `gorm:"not null" json:"color"`
	OrderRank int    `gorm:"not null" json:"order_rank"`
	TeamIDs   string `json:"team_ids"`
}

func (TeamGroupRecord) TableName() string { return "team_groups" }

// TeamLabelRecord stores a team's label for one variant
type TeamLabelRecord struct {
	UnitID  string `gorm:"primaryKey" json:"unit_id"`
	Variant string `gorm:"primaryKey" json:"variant"`
	TeamID  int    `gorm:"primaryKey;autoIncrement:false" json:"team_id"`
	Label   string `json:"label"`
}

func (TeamLabelRecord) TableName() string { return "team_labels" }

// NoteRecord stores a unit's war note
type NoteRecord struct {
	UnitID    string    `gorm:"primaryKey" json:"unit_id"`
	Body      string    `gorm:"type:text" json:"body"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (NoteRecord) TableName() string { return "war_notes" }

// variantColumns returns the team and position columns of a variant
func variantColumns(v models.TimeVariant) (string, string) {
	if v == models.VariantLate {
		return "late_team", "late_position"
	}
	return "early_team", "early_position"
}

// Open connects to Postgres when a URL is configured, SQLite otherwise
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gcfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}
	if cfg.URL != "" {
		gcfg.PrepareStmt = false
		return gorm.Open(postgres.New(postgres.Config{
			DSN:                  cfg.URL,
			PreferSimpleProtocol: true,
		}), gcfg)
	}
	return gorm.Open(sqlite.Open(cfg.Path), gcfg)
}

// Migrate creates or updates every table
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&APIKey{}, &APIUsage{}, &MasterUser{},
		&MemberRecord{}, &LeaveRecord{}, &TeamGroupRecord{}, &TeamLabelRecord{}, &NoteRecord{},
	)
}

// InitDB opens the database and migrates the schema
func InitDB(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	driver := "sqlite"
	if cfg.URL != "" {
		driver = "postgres"
	}
	log.Info("database ready", zap.String("driver", driver))
	return db, nil
}
