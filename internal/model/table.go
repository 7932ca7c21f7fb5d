package model

// Table is a physical table in a venue.  JoinGroupID marks tables that may
// be pushed together; the booking core treats it as informational.
type Table struct {
	ID          uint64  `json:"id"`                      // venue_tables.id
	VenueID     uint64  `json:"venue_id"`                // venue_tables.venue_id
	Label       string  `json:"label"`                   // venue_tables.label
	Capacity    int     `json:"capacity"`                // venue_tables.capacity
	Area        string  `json:"area,omitempty"`          // venue_tables.area
	Zone        string  `json:"zone,omitempty"`          // venue_tables.zone
	JoinGroupID *uint64 `json:"join_group_id,omitempty"` // venue_tables.join_group_id (nullable)
	IsActive    bool    `json:"is_active"`               // venue_tables.is_active
}
