package model

import "time"

// Room status values.  A room starts WAITING and transitions exactly once:
// to MATCHED when it converts into a group, or to EXPIRED when the deadline
// passes without enough members (or the last member walks out).  Both are
// terminal.
const (
    RoomStatusWaiting = "WAITING"
    RoomStatusMatched = "MATCHED"
    RoomStatusExpired = "EXPIRED"
)

// Room is a time-bounded waiting pool of users pending group formation.
// Members join until the room fills or its completion time passes.  The
// aggregate preference fields are recomputed from the current members on
// every membership change and drive room selection for new joiners.
//
// Fields:
//  ID             – primary key identifier.
//  CompletionTime – absolute deadline for the waiting phase (UTC).
//  MaxMembers     – member capacity, bounded 2–10.
//  Members        – user IDs currently waiting in this room.
//  Status         – WAITING, MATCHED or EXPIRED.
//  Cuisine        – cuisine this room gathered around (empty when none).
//  AverageBudget  – mean budget across current members.
//  AverageRadius  – mean search radius in km across current members.
//  CreatedAt      – creation timestamp.
//  UpdatedAt      – last update timestamp.
type Room struct {
    ID             uint64    // rooms.id
    CompletionTime time.Time // rooms.completion_time
    MaxMembers     int       // rooms.max_members
    Members        []uint64  // room_members.user_id
    Status         string    // rooms.status
    Cuisine        string    // rooms.cuisine (empty when NULL)
    AverageBudget  float64   // rooms.average_budget
    AverageRadius  float64   // rooms.average_radius
    CreatedAt      time.Time // rooms.created_at
    UpdatedAt      time.Time // rooms.updated_at
}

// IsExpired reports whether the room's waiting deadline has passed.
func (r *Room) IsExpired(now time.Time) bool {
    return now.After(r.CompletionTime)
}

// IsFull reports whether the room has reached its member capacity.
func (r *Room) IsFull() bool {
    return len(r.Members) >= r.MaxMembers
}

// HasMember reports whether the given user is currently in the room.
func (r *Room) HasMember(userID uint64) bool {
    for _, id := range r.Members {
        if id == userID {
            return true
        }
    }
    return false
}
