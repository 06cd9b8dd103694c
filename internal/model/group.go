package model

import "time"

// Group status values.  A group is created VOTING when its room matches.
// CONFIRMED means a restaurant was selected (by majority or by the expiry
// sweep); CANCELLED means the group dissolved without a selection;
// COMPLETED is reserved for the post-meal flow.
const (
    GroupStatusVoting    = "VOTING"
    GroupStatusConfirmed = "CONFIRMED"
    GroupStatusCompleted = "COMPLETED"
    GroupStatusCancelled = "CANCELLED"
)

// Vote records one member's current restaurant choice.  A member has at
// most one vote; changing the vote replaces the row and refreshes CastAt.
type Vote struct {
    UserID       uint64    // group_votes.user_id
    RestaurantID string    // group_votes.restaurant_id
    CastAt       time.Time // group_votes.cast_at
}

// Group is a fixed set of users voting on a restaurant after leaving the
// waiting room.  Votes are keyed by member; Snapshots caches the restaurant
// details attached to votes so finalization can always produce a non-null
// restaurant.
//
// Fields:
//  ID                 – primary key identifier.
//  RoomID             – room this group was formed from.
//  CompletionTime     – voting deadline (UTC).
//  Members            – user IDs locked in at creation (shrinks on leave).
//  Status             – VOTING, CONFIRMED, COMPLETED or CANCELLED.
//  RestaurantSelected – whether a restaurant has been finalized.
//  Restaurant         – selected restaurant snapshot (nil until selection).
//  Votes              – current vote per member.
//  Snapshots          – latest restaurant snapshot per restaurant ID.
//  CreatedAt          – creation timestamp.
//  UpdatedAt          – last update timestamp.
type Group struct {
    ID                 uint64                // groups.id
    RoomID             uint64                // groups.room_id
    CompletionTime     time.Time             // groups.completion_time
    Members            []uint64              // group_members.user_id
    Status             string                // groups.status
    RestaurantSelected bool                  // groups.restaurant_selected
    Restaurant         *Restaurant           // groups.restaurant_* (nullable)
    Votes              []Vote                // group_votes rows
    Snapshots          map[string]Restaurant // group_restaurants rows
    CreatedAt          time.Time             // groups.created_at
    UpdatedAt          time.Time             // groups.updated_at
}

// IsExpired reports whether the voting deadline has passed.
func (g *Group) IsExpired(now time.Time) bool {
    return now.After(g.CompletionTime)
}

// HasMember reports whether the given user belongs to the group.
func (g *Group) HasMember(userID uint64) bool {
    for _, id := range g.Members {
        if id == userID {
            return true
        }
    }
    return false
}

// VoteFor returns the member's current restaurant choice, if any.
func (g *Group) VoteFor(userID uint64) (string, bool) {
    for _, v := range g.Votes {
        if v.UserID == userID {
            return v.RestaurantID, true
        }
    }
    return "", false
}

// Tally returns the vote count per restaurant among current votes.  Only
// the latest choice per member is represented, since Votes holds at most
// one entry per member.
func (g *Group) Tally() map[string]int {
    tally := make(map[string]int, len(g.Votes))
    for _, v := range g.Votes {
        tally[v.RestaurantID]++
    }
    return tally
}

// MajorityChoice returns the restaurant holding a strict majority: a vote
// count greater than half the current membership.  At most one restaurant
// can satisfy this at a time.
func (g *Group) MajorityChoice() (string, bool) {
    if len(g.Members) == 0 {
        return "", false
    }
    for id, count := range g.Tally() {
        if count*2 > len(g.Members) {
            return id, true
        }
    }
    return "", false
}

// WinningRestaurant returns the restaurant with the highest vote count.
// Ties are broken by the earliest CastAt among the tied restaurants, which
// keeps the expiry-sweep outcome deterministic regardless of map order.
// It returns false when no votes have been cast.
func (g *Group) WinningRestaurant() (string, bool) {
    if len(g.Votes) == 0 {
        return "", false
    }
    tally := g.Tally()
    earliest := make(map[string]time.Time, len(tally))
    for _, v := range g.Votes {
        if t, ok := earliest[v.RestaurantID]; !ok || v.CastAt.Before(t) {
            earliest[v.RestaurantID] = v.CastAt
        }
    }
    var winner string
    var winnerVotes int
    for id, count := range tally {
        switch {
        case count > winnerVotes:
            winner, winnerVotes = id, count
        case count == winnerVotes && earliest[id].Before(earliest[winner]):
            winner = id
        }
    }
    return winner, true
}

// SnapshotFor returns the cached restaurant snapshot for the given ID.  When
// no vote ever carried details for that restaurant, a minimal snapshot is
// synthesized so a finalized group never ends up with a nil restaurant.
func (g *Group) SnapshotFor(restaurantID string) Restaurant {
    if snap, ok := g.Snapshots[restaurantID]; ok {
        return snap
    }
    return Restaurant{RestaurantID: restaurantID, Name: restaurantID}
}
