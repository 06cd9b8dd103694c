// Package repository defines error types that are reused across multiple
// repositories.  These sentinel values allow higher layers such as the
// coordinators and handlers to distinguish between different failure
// scenarios: a missing room versus an optimistic-concurrency conflict on
// a membership write, for example.
package repository

import "errors"

// ErrRoomNotFound is returned when the requested room does not exist.
var ErrRoomNotFound = errors.New("room not found")

// ErrGroupNotFound is returned when the requested group does not exist.
var ErrGroupNotFound = errors.New("group not found")

// ErrUserNotFound is returned when the requested user does not exist.
var ErrUserNotFound = errors.New("user not found")

// ErrNotMember is returned when the acting user is not part of the target
// room or group.
var ErrNotMember = errors.New("not a member")

// ErrRoomFull is returned when a member append would exceed the room's
// capacity.
var ErrRoomFull = errors.New("room is full")

// ErrConflict is returned when an atomic update loses a race: the room
// filled, expired or matched between selection and write, a duplicate
// member append was attempted, or a finalized group was mutated.  Callers
// may retry selection once before surfacing the failure.
var ErrConflict = errors.New("conflict")

// ErrEmailExists is returned when registering a user with an email that is
// already taken.
var ErrEmailExists = errors.New("email already exists")
