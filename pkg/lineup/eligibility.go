package lineup

import (
	"sort"
	"time"

	"github.com/arnavshah/warplanner-api-go/pkg/models"
)

// SlotTimes holds the clock time each variant starts at, as minutes past midnight
type SlotTimes map[models.TimeVariant]time.Duration

// Eligibility is the leave snapshot for one war date
type Eligibility struct {
	Date      time.Time
	EarlyOnly []models.MemberID
	LateOnly  []models.MemberID
	Both      []models.MemberID

	blocked map[models.TimeVariant]map[models.MemberID]string
}

// NoLeave is an eligibility snapshot with nobody on leave
func NoLeave() *Eligibility {
	return ResolveLeave(nil, time.Time{}, nil)
}

// ResolveLeave partitions leave marks for date into early-only, late-only and both.
// A mark pinned to a variant applies to that variant only; a mark with a time window
// applies to every variant whose slot-time on date falls inside [From, Until);
// a mark with neither covers the whole day.
func ResolveLeave(marks []models.LeaveMark, date time.Time, times SlotTimes) *Eligibility {
	e := &Eligibility{
		Date: date,
		blocked: map[models.TimeVariant]map[models.MemberID]string{
			models.VariantEarly: {},
			models.VariantLate:  {},
		},
	}
	day := truncateDay(date)
	for _, m := range marks {
		if !date.IsZero() && !m.Date.IsZero() && !truncateDay(m.Date).Equal(day) {
			continue
		}
		for _, v := range models.Variants {
			if markCovers(m, v, day, times) {
				if _, seen := e.blocked[v][m.MemberID]; !seen {
					e.blocked[v][m.MemberID] = m.Reason
				}
			}
		}
	}

	for id := range e.blocked[models.VariantEarly] {
		if _, late := e.blocked[models.VariantLate][id]; late {
			e.Both = append(e.Both, id)
		} else {
			e.EarlyOnly = append(e.EarlyOnly, id)
		}
	}
	for id := range e.blocked[models.VariantLate] {
		if _, early := e.blocked[models.VariantEarly][id]; !early {
			e.LateOnly = append(e.LateOnly, id)
		}
	}
	sortIDs(e.EarlyOnly)
	sortIDs(e.LateOnly)
	sortIDs(e.Both)
	return e
}

func markCovers(m models.LeaveMark, v models.TimeVariant, day time.Time, times SlotTimes) bool {
	if m.Variant != nil {
		return *m.Variant == v
	}
	if m.From == nil && m.Until == nil {
		return true
	}
	offset, ok := times[v]
	if !ok {
		return true
	}
	at := day.Add(offset)
	if m.From != nil && at.Before(*m.From) {
		return false
	}
	if m.Until != nil && !at.Before(*m.Until) {
		return false
	}
	return true
}

func truncateDay(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, t.Location())
}

func sortIDs(ids []models.MemberID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

// Blocked reports whether id may not be placed for variant
func (e *Eligibility) Blocked(id models.MemberID, v models.TimeVariant) bool {
	if e == nil {
		return false
	}
	_, ok := e.blocked[v][id]
	return ok
}

// Reason returns the leave reason recorded for id, if any
func (e *Eligibility) Reason(id models.MemberID, v models.TimeVariant) string {
	if e == nil {
		return ""
	}
	return e.blocked[v][id]
}

// Ineligible lists every member blocked for variant, ascending
func (e *Eligibility) Ineligible(v models.TimeVariant) []models.MemberID {
	if e == nil {
		return nil
	}
	out := make([]models.MemberID, 0, len(e.blocked[v]))
	for id := range e.blocked[v] {
		out = append(out, id)
	}
	sortIDs(out)
	return out
}
