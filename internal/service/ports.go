// Package service contains the matching and voting coordinators: the
// waiting-room lifecycle, room-to-group conversion and majority-vote
// restaurant selection.  The coordinators keep no authoritative state
// between calls; the injected stores are the single source of truth, so
// multiple instances can run behind a load balancer.
package service

import (
    "context"
    "time"

    "github.com/feastfriends/feastfriends/internal/model"
)

// RoomStore is the persistence contract for waiting rooms.  Membership
// mutations and status changes must be atomic per room: AddMember must
// reject appends that race a fill or expiry, and MarkStatus must behave as
// a compare-and-swap so fill- and sweep-triggered conversions exclude each
// other.  Implemented by repository.RoomRepo.
type RoomStore interface {
    CreateRoom(ctx context.Context, room *model.Room) error
    GetRoom(ctx context.Context, roomID uint64) (*model.Room, error)
    FindOpenRooms(ctx context.Context, now time.Time) ([]model.Room, error)
    FindExpiredWaiting(ctx context.Context, now time.Time) ([]model.Room, error)
    FindUnconvertedMatched(ctx context.Context) ([]model.Room, error)
    AddMember(ctx context.Context, roomID, userID uint64) (*model.Room, error)
    RemoveMember(ctx context.Context, roomID, userID uint64) (*model.Room, error)
    SetAggregates(ctx context.Context, roomID uint64, avgBudget, avgRadius float64) error
    MarkStatus(ctx context.Context, roomID uint64, expected, next string) (bool, error)
    DeleteRoom(ctx context.Context, roomID uint64) error
}

// GroupStore is the persistence contract for voting groups.  UpsertVote
// and RemoveMember must be atomic per group, and Finalize must be a
// compare-and-swap on the selection flag so the majority path and the
// expiry sweep cannot both finalize.  Implemented by repository.GroupRepo.
type GroupStore interface {
    CreateGroup(ctx context.Context, g *model.Group) error
    GetGroup(ctx context.Context, groupID uint64) (*model.Group, error)
    FindExpiredVoting(ctx context.Context, now time.Time) ([]model.Group, error)
    UpsertVote(ctx context.Context, groupID, userID uint64, restaurantID string, snapshot *model.Restaurant) (*model.Group, error)
    RemoveMember(ctx context.Context, groupID, userID uint64) (*model.Group, error)
    Finalize(ctx context.Context, groupID uint64, restaurant model.Restaurant) (bool, error)
    MarkStatus(ctx context.Context, groupID uint64, expected, next string) (bool, error)
}

// UserDirectory is the contract to the user records the coordinators
// mutate as a side effect of transitions.  Implemented by
// repository.UserRepo.
type UserDirectory interface {
    GetUser(ctx context.Context, userID uint64) (*model.User, error)
    GetUsers(ctx context.Context, userIDs []uint64) ([]model.User, error)
    UpdatePreferences(ctx context.Context, userID uint64, cuisines []string, budget, radiusKm *float64) error
    SetRoomStatus(ctx context.Context, userIDs []uint64, roomID *uint64, status string) error
    SetGroupStatus(ctx context.Context, userIDs []uint64, groupID *uint64, status string) error
}

// Notifier pushes room/group state changes to connected clients.  Calls
// are fire-and-forget: implementations must never fail the state mutation
// that already committed.  Implemented by queue.Publisher.
type Notifier interface {
    NotifyRoom(ctx context.Context, roomID uint64, event string, payload any)
    NotifyGroup(ctx context.Context, groupID uint64, event string, payload any)
}
