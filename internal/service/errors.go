package service

import "errors"

// ErrAlreadyInMatching is returned when a user attempts to join matching
// while still referenced by a room or group.
var ErrAlreadyInMatching = errors.New("user already in a room or group")

// ErrAlreadyFinalized is returned when a vote is cast after the group has
// selected a restaurant.
var ErrAlreadyFinalized = errors.New("restaurant already selected")
