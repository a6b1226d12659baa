package planner

import (
	"time"

	"github.com/google/uuid"

	"github.com/arnavshah/warplanner-api-go/pkg/annotation"
	"github.com/arnavshah/warplanner-api-go/pkg/groups"
	"github.com/arnavshah/warplanner-api-go/pkg/lineup"
	"github.com/arnavshah/warplanner-api-go/pkg/models"
)

// LeaveView is the leave partition for the war date
type LeaveView struct {
	EarlyOnly []models.MemberID `json:"early_only"`
	LateOnly  []models.MemberID `json:"late_only"`
	Both      []models.MemberID `json:"both"`
}

// View is a read-only snapshot of a session for rendering
type View struct {
	ID                uuid.UUID                                     `json:"id"`
	UnitID            string                                        `json:"unit_id"`
	WarDate           time.Time                                     `json:"war_date"`
	State             State                                         `json:"state"`
	FailedStep        Step                                          `json:"failed_step,omitempty"`
	LastSaved         *time.Time                                    `json:"last_saved,omitempty"`
	ActiveVariant     models.TimeVariant                            `json:"active_variant"`
	Drafts            map[models.TimeVariant]lineup.Draft           `json:"drafts"`
	TeamOrder         []groups.Section                              `json:"team_order"`
	TeamStrength      [lineup.TeamCount]int64                       `json:"team_strength"`
	Members           []models.Member                               `json:"members"`
	Unassigned        []models.MemberID                             `json:"unassigned"`
	Leave             LeaveView                                     `json:"leave"`
	StagedColors      map[models.MemberID]annotation.Token          `json:"staged_colors"`
	StagedAnnotations map[models.MemberID]annotation.Value          `json:"staged_annotations"`
	Note              []annotation.Value                            `json:"note"`
	BaselineIssues    map[models.TimeVariant][]lineup.BaselineIssue `json:"baseline_issues,omitempty"`
}

// View snapshots the session
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		ID:                s.ID,
		UnitID:            s.UnitID,
		WarDate:           s.warDate,
		State:             s.state,
		FailedStep:        s.failedStep,
		ActiveVariant:     s.drafts.Active(),
		Drafts:            make(map[models.TimeVariant]lineup.Draft, len(models.Variants)),
		TeamOrder:         s.groups.RenderOrder(),
		TeamStrength:      s.moves.TeamStrength(),
		Members:           append([]models.Member(nil), s.members...),
		StagedColors:      make(map[models.MemberID]annotation.Token, len(s.colors)),
		StagedAnnotations: make(map[models.MemberID]annotation.Value, len(s.annotations)),
		Note:              annotation.DecodeNote(s.note),
		BaselineIssues:    make(map[models.TimeVariant][]lineup.BaselineIssue),
	}
	if !s.lastSaved.IsZero() {
		t := s.lastSaved
		v.LastSaved = &t
	}
	for _, tv := range models.Variants {
		v.Drafts[tv] = s.drafts.Snapshot(tv)
		if len(s.issues[tv]) > 0 {
			v.BaselineIssues[tv] = append([]lineup.BaselineIssue(nil), s.issues[tv]...)
		}
	}

	placed := v.Drafts[v.ActiveVariant].Grid.Occupants()
	for _, m := range s.members {
		if _, ok := placed[m.ID]; !ok {
			v.Unassigned = append(v.Unassigned, m.ID)
		}
	}

	e := s.moves.Eligibility
	v.Leave = LeaveView{EarlyOnly: e.EarlyOnly, LateOnly: e.LateOnly, Both: e.Both}
	for id, c := range s.colors {
		v.StagedColors[id] = c
	}
	for id, a := range s.annotations {
		v.StagedAnnotations[id] = annotation.Decode(a)
	}
	return v
}
