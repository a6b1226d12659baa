// Package groups keeps the named, colored display groupings of war teams.
// Groups never affect slot contents, only the order teams are shown in.
package groups

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/arnavshah/warplanner-api-go/pkg/lineup"
	"github.com/arnavshah/warplanner-api-go/pkg/models"
)

var (
	ErrGroupOverlap  = errors.New("group overlap")
	ErrGroupNotFound = errors.New("group not found")
	ErrInvalidGroup  = errors.New("invalid group")
)

// OverlapError names the teams already claimed by another group
type OverlapError struct {
	TeamIDs []int
	OwnerID int64
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("teams %v already belong to group %d", e.TeamIDs, e.OwnerID)
}

func (e *OverlapError) Is(target error) bool { return target == ErrGroupOverlap }

// NotFoundError is returned for an unknown group id
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("group %d not found", e.ID) }

func (e *NotFoundError) Is(target error) bool { return target == ErrGroupNotFound }

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Direction moves a group up (earlier) or down (later) in display order
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// Group is a display grouping of teams
type Group struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	OrderRank int    `json:"order_rank"`
	TeamIDs   []int  `json:"team_ids"`
}

func (g Group) clone() Group {
	g.TeamIDs = append([]int(nil), g.TeamIDs...)
	return g
}

// Manager owns the groups of one guild unit
type Manager struct {
	groups []Group
	nextID int64
}

// NewManager returns an empty manager
func NewManager() *Manager {
	return &Manager{nextID: 1}
}

// LoadIssue describes part of a stored record that Load had to discard
type LoadIssue struct {
	GroupID int64  `json:"group_id"`
	Team    string `json:"team"`
	Reason  string `json:"reason"`
}

// Load builds a manager from persisted records. Team ids that do not decode
// or fall outside the grid are dropped from their record and reported. Records
// whose teams collide with an earlier record lose the contested teams. Records
// without an id get fresh ids above every stored one.
func Load(records []models.GroupRecord) (*Manager, []LoadIssue) {
	m := NewManager()
	sorted := append([]models.GroupRecord(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].OrderRank < sorted[j].OrderRank })

	for _, r := range sorted {
		if r.ID >= m.nextID {
			m.nextID = r.ID + 1
		}
	}

	var issues []LoadIssue
	claimed := make(map[int]bool)
	for _, r := range sorted {
		id := r.ID
		if id <= 0 {
			id = m.nextID
			m.nextID++
		}
		teams, bad := decodeStored(r.TeamIDs)
		for _, b := range bad {
			b.GroupID = id
			issues = append(issues, b)
		}
		kept := teams[:0]
		for _, t := range teams {
			if !claimed[t] {
				claimed[t] = true
				kept = append(kept, t)
			}
		}
		m.groups = append(m.groups, Group{ID: id, Name: r.Name, Color: r.Color, OrderRank: r.OrderRank, TeamIDs: kept})
	}
	m.renormalize()
	return m, issues
}

// decodeStored is DecodeTeamIDs that keeps the valid ids of a damaged record
func decodeStored(s string) ([]int, []LoadIssue) {
	var ids []int
	var bad []LoadIssue
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		one, err := DecodeTeamIDs(part)
		if err != nil {
			bad = append(bad, LoadIssue{Team: part, Reason: err.Error()})
			continue
		}
		ids = append(ids, one...)
	}
	return normalize(ids), bad
}

// Groups returns the groups in display order
func (m *Manager) Groups() []Group {
	out := make([]Group, len(m.groups))
	for i, g := range m.groups {
		out[i] = g.clone()
	}
	return out
}

// Get returns the group with id
func (m *Manager) Get(id int64) (Group, error) {
	i := m.index(id)
	if i < 0 {
		return Group{}, &NotFoundError{ID: id}
	}
	return m.groups[i].clone(), nil
}

func (m *Manager) index(id int64) int {
	for i := range m.groups {
		if m.groups[i].ID == id {
			return i
		}
	}
	return -1
}

func validate(name, color string, teamIDs []int) ([]int, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidGroup)
	}
	if !hexColor.MatchString(color) {
		return nil, fmt.Errorf("%w: color %q is not #rrggbb", ErrInvalidGroup, color)
	}
	for _, t := range teamIDs {
		if !lineup.ValidTeam(t) {
			return nil, &lineup.SlotOutOfRangeError{TeamID: t}
		}
	}
	return normalize(teamIDs), nil
}

// checkOverlap refuses teams already held by a group other than self
func (m *Manager) checkOverlap(self int64, teamIDs []int) error {
	for _, g := range m.groups {
		if g.ID == self {
			continue
		}
		var clash []int
		for _, t := range teamIDs {
			for _, owned := range g.TeamIDs {
				if t == owned {
					clash = append(clash, t)
				}
			}
		}
		if len(clash) > 0 {
			return &OverlapError{TeamIDs: clash, OwnerID: g.ID}
		}
	}
	return nil
}

// Create adds a group at the end of the display order
func (m *Manager) Create(name, color string, teamIDs []int) (Group, error) {
	teams, err := validate(name, color, teamIDs)
	if err != nil {
		return Group{}, err
	}
	if err := m.checkOverlap(0, teams); err != nil {
		return Group{}, err
	}
	g := Group{
		ID:        m.nextID,
		Name:      strings.TrimSpace(name),
		Color:     strings.ToLower(color),
		OrderRank: len(m.groups) + 1,
		TeamIDs:   teams,
	}
	m.nextID++
	m.groups = append(m.groups, g)
	return g.clone(), nil
}

// Update replaces a group's name, color and teams. The group's own teams
// never count as overlapping.
func (m *Manager) Update(id int64, name, color string, teamIDs []int) (Group, error) {
	i := m.index(id)
	if i < 0 {
		return Group{}, &NotFoundError{ID: id}
	}
	teams, err := validate(name, color, teamIDs)
	if err != nil {
		return Group{}, err
	}
	if err := m.checkOverlap(id, teams); err != nil {
		return Group{}, err
	}
	m.groups[i].Name = strings.TrimSpace(name)
	m.groups[i].Color = strings.ToLower(color)
	m.groups[i].TeamIDs = teams
	return m.groups[i].clone(), nil
}

// Delete removes a group; its teams fall back to the ungrouped bucket
func (m *Manager) Delete(id int64) error {
	i := m.index(id)
	if i < 0 {
		return &NotFoundError{ID: id}
	}
	m.groups = append(m.groups[:i], m.groups[i+1:]...)
	m.renormalize()
	return nil
}

// Reorder swaps a group with its neighbour in display order.
// Moving the first group up or the last group down leaves the order as is.
func (m *Manager) Reorder(id int64, dir Direction) error {
	if dir != Up && dir != Down {
		return fmt.Errorf("%w: direction %q", ErrInvalidGroup, dir)
	}
	m.renormalize()
	i := m.index(id)
	if i < 0 {
		return &NotFoundError{ID: id}
	}
	j := i - 1
	if dir == Down {
		j = i + 1
	}
	if j >= 0 && j < len(m.groups) {
		m.groups[i].OrderRank, m.groups[j].OrderRank = m.groups[j].OrderRank, m.groups[i].OrderRank
	}
	m.renormalize()
	return nil
}

// renormalize sorts by rank and rewrites ranks as 1..N
func (m *Manager) renormalize() {
	sort.SliceStable(m.groups, func(i, j int) bool {
		if m.groups[i].OrderRank != m.groups[j].OrderRank {
			return m.groups[i].OrderRank < m.groups[j].OrderRank
		}
		return m.groups[i].ID < m.groups[j].ID
	})
	for i := range m.groups {
		m.groups[i].OrderRank = i + 1
	}
}

// Section is one block of the rendered team order. Group is nil for the ungrouped bucket.
type Section struct {
	Group   *Group `json:"group"`
	TeamIDs []int  `json:"team_ids"`
}

// RenderOrder lists groups by rank with their teams ascending, then the
// ungrouped teams ascending. Empty groups still get a section.
func (m *Manager) RenderOrder() []Section {
	covered := make(map[int]bool)
	var out []Section
	for _, g := range m.groups {
		g := g.clone()
		for _, t := range g.TeamIDs {
			covered[t] = true
		}
		out = append(out, Section{Group: &g, TeamIDs: g.TeamIDs})
	}
	var rest []int
	for t := 1; t <= lineup.TeamCount; t++ {
		if !covered[t] {
			rest = append(rest, t)
		}
	}
	if len(rest) > 0 {
		out = append(out, Section{TeamIDs: rest})
	}
	return out
}

// TeamOrder flattens RenderOrder into a plain list of team ids
func (m *Manager) TeamOrder() []int {
	var out []int
	for _, s := range m.RenderOrder() {
		out = append(out, s.TeamIDs...)
	}
	return out
}

// Records returns the persisted form of every group
func (m *Manager) Records() []models.GroupRecord {
	out := make([]models.GroupRecord, 0, len(m.groups))
	for _, g := range m.groups {
		out = append(out, models.GroupRecord{
			ID:        g.ID,
			Name:      g.Name,
			Color:     g.Color,
			OrderRank: g.OrderRank,
			TeamIDs:   EncodeTeamIDs(g.TeamIDs),
		})
	}
	return out
}

func normalize(ids []int) []int {
	seen := make(map[int]bool, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Ints(out)
	return out
}

// EncodeTeamIDs renders a team id set as a sorted, de-duplicated comma list
func EncodeTeamIDs(ids []int) string {
	norm := normalize(ids)
	parts := make([]string, len(norm))
	for i, id := range norm {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

// DecodeTeamIDs parses a comma list, ignoring duplicates and blanks.
// Ids outside 1..10 are rejected.
func DecodeTeamIDs(s string) ([]int, error) {
	var ids []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("%w: team id %q", ErrInvalidGroup, part)
		}
		if !lineup.ValidTeam(id) {
			return nil, &lineup.SlotOutOfRangeError{TeamID: id}
		}
		ids = append(ids, id)
	}
	return normalize(ids), nil
}
