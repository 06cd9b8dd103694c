package model

import "time"

// User status values.  The matching core flips these as a side effect of
// room/group transitions; the rest of the user record belongs to the
// profile layer.
const (
    UserStatusOffline       = "OFFLINE"
    UserStatusOnline        = "ONLINE"
    UserStatusInWaitingRoom = "IN_WAITING_ROOM"
    UserStatusInGroup       = "IN_GROUP"
)

// User represents an application user record as stored in the `users`
// table.  The matching core reads the preference fields when scoring rooms
// and owns CurrentRoomID/CurrentGroupID/Status; everything else is profile
// data managed by the auth glue.
//
// Fields:
//  ID             – primary key identifier of the user.
//  Email          – unique email address.
//  PasswordHash   – bcrypt hashed password.
//  Name           – display name shown to other members.
//  Status         – OFFLINE, ONLINE, IN_WAITING_ROOM or IN_GROUP.
//  CurrentRoomID  – waiting room the user is in (nil when none).
//  CurrentGroupID – group the user is in (nil when none).
//  Cuisines       – preferred cuisines.
//  Budget         – preferred budget per meal.
//  RadiusKm       – preferred search radius in km.
//  CreatedAt      – timestamp of creation.
//  UpdatedAt      – timestamp of last update.
type User struct {
    ID             uint64    // users.id
    Email          string    // users.email
    PasswordHash   string    // users.password_hash
    Name           string    // users.name
    Status         string    // users.status
    CurrentRoomID  *uint64   // users.current_room_id (nullable)
    CurrentGroupID *uint64   // users.current_group_id (nullable)
    Cuisines       []string  // users.cuisines (comma separated)
    Budget         float64   // users.budget
    RadiusKm       float64   // users.radius_km
    CreatedAt      time.Time // users.created_at
    UpdatedAt      time.Time // users.updated_at
}

// InMatching reports whether the user is already tied to a room or group
// and must not join matching again until released.
func (u *User) InMatching() bool {
    return u.CurrentRoomID != nil || u.CurrentGroupID != nil
}

// RefreshToken models an entry in the `refresh_tokens` table.  Only the
// SHA-256 hash of the raw token is stored.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owner of the token.
//  TokenHash – SHA-256 hex digest of the token value.
//  ExpiresAt – expiration timestamp of the token.
//  RevokedAt – when the token was revoked (null if still active).
//  CreatedAt – timestamp of creation.
type RefreshToken struct {
    ID        uint64     // refresh_tokens.id
    UserID    uint64     // refresh_tokens.user_id
    TokenHash string     // refresh_tokens.token_hash
    ExpiresAt time.Time  // refresh_tokens.expires_at
    RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
    CreatedAt time.Time  // refresh_tokens.created_at
}
