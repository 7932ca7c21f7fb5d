package apperror

import "time"

// Entry types reported in a ConflictEntry.
const (
	EntryReservation = "reservation"
	EntryHold        = "hold"
)

// ConflictEntry describes one existing booking whose busy window overlaps
// the requested one.
type ConflictEntry struct {
	ID       uint64    `json:"id"`
	Type     string    `json:"type"`
	Status   string    `json:"status"`
	TableIDs []uint64  `json:"table_ids"`
	Date     string    `json:"date"`
	Time     string    `json:"time"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
}

// ConflictDetail is the payload attached to SlotConflict errors and
// returned by availability lookups.
type ConflictDetail struct {
	VenueID     uint64          `json:"venue_id"`
	Date        string          `json:"date"`
	Time        string          `json:"time"`
	TableIDs    []uint64        `json:"table_ids"`
	WindowStart time.Time       `json:"window_start"`
	WindowEnd   time.Time       `json:"window_end"`
	Entries     []ConflictEntry `json:"entries"`
}

// HasConflicts reports whether any overlapping entry was found.
func (d ConflictDetail) HasConflicts() bool { return len(d.Entries) > 0 }

// BlockedTables returns the set of table ids referenced by the entries.
// Table-less entries are reported through the second return value.
func (d ConflictDetail) BlockedTables() (map[uint64]bool, bool) {
	out := make(map[uint64]bool)
	anyTableless := false
	for _, e := range d.Entries {
		if len(e.TableIDs) == 0 {
			anyTableless = true
			continue
		}
		for _, id := range e.TableIDs {
			out[id] = true
		}
	}
	return out, anyTableless
}
