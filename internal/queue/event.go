// Package queue defines the event payloads exchanged over the message
// broker.  Coordinators publish one envelope per room/group state change;
// the push edge (socket/notification workers) consumes them.  Delivery is
// at-least-once with no ordering guarantee across events, so every payload
// carries the full state a client needs to render.
package queue

import "time"

// Event names emitted by the coordinators.
const (
	EventRoomUpdate         = "room_update"
	EventMemberJoined       = "member_joined"
	EventMemberLeft         = "member_left"
	EventGroupReady         = "group_ready"
	EventRoomExpired        = "room_expired"
	EventVoteUpdate         = "vote_update"
	EventRestaurantSelected = "restaurant_selected"
	EventGroupExpired       = "group_expired"
)

// Scope values for the envelope: whether the event addresses the members
// of a room or of a group.
const (
	ScopeRoom  = "room"
	ScopeGroup = "group"
)

// Envelope wraps every published event.  EventID is a UUID so consumers
// can deduplicate redeliveries.
type Envelope struct {
	EventID   string    `json:"event_id"`
	Event     string    `json:"event"`
	Scope     string    `json:"scope"`
	TargetID  uint64    `json:"target_id"`
	EmittedAt time.Time `json:"emitted_at"`
	Payload   any       `json:"payload"`
}

// RoomUpdatePayload mirrors the room_update event: full membership and
// status after any room mutation.
type RoomUpdatePayload struct {
	RoomID    uint64   `json:"room_id"`
	Members   []uint64 `json:"members"`
	ExpiresAt string   `json:"expires_at"`
	Status    string   `json:"status"`
}

// MemberJoinedPayload announces a single join.
type MemberJoinedPayload struct {
	UserID         uint64 `json:"user_id"`
	CurrentMembers int    `json:"current_members"`
	MaxMembers     int    `json:"max_members"`
}

// MemberLeftPayload announces a single departure from a room or group.
type MemberLeftPayload struct {
	UserID           uint64 `json:"user_id"`
	RemainingMembers int    `json:"remaining_members"`
}

// GroupReadyPayload tells former room members which group to move to.
type GroupReadyPayload struct {
	GroupID uint64   `json:"group_id"`
	Members []uint64 `json:"members"`
}

// RoomExpiredPayload announces that a waiting room closed without a match.
type RoomExpiredPayload struct {
	RoomID uint64 `json:"room_id"`
	Reason string `json:"reason"`
}

// VoteUpdatePayload carries the running tally after a vote upsert.
type VoteUpdatePayload struct {
	RestaurantID string         `json:"restaurant_id"`
	Votes        map[string]int `json:"votes"`
	TotalVotes   int            `json:"total_votes"`
	MembersVoted int            `json:"members_voted"`
	TotalMembers int            `json:"total_members"`
}

// RestaurantSelectedPayload announces finalization with the final tally.
type RestaurantSelectedPayload struct {
	RestaurantID   string         `json:"restaurant_id"`
	RestaurantName string         `json:"restaurant_name"`
	Votes          map[string]int `json:"votes"`
}

// GroupExpiredPayload announces that a group dissolved without any votes.
type GroupExpiredPayload struct {
	GroupID uint64 `json:"group_id"`
	Reason  string `json:"reason"`
}
