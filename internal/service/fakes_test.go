package service

import (
	"context"
	"sync"
	"time"

	"github.com/feastfriends/feastfriends/internal/model"
	"github.com/feastfriends/feastfriends/internal/repository"
)

// In-memory store fakes implementing the coordinator ports with the same
// atomicity rules as the SQL repositories: per-entity mutations hold the
// lock for the whole read-check-write, and status changes behave as
// compare-and-swaps.

type fakeRoomStore struct {
	mu       sync.Mutex
	rooms    map[uint64]*model.Room
	nextID   uint64
	hasGroup func(roomID uint64) bool
}

func newFakeRoomStore() *fakeRoomStore {
	return &fakeRoomStore{rooms: make(map[uint64]*model.Room)}
}

func copyRoom(r *model.Room) *model.Room {
	cp := *r
	cp.Members = append([]uint64(nil), r.Members...)
	return &cp
}

func (f *fakeRoomStore) CreateRoom(_ context.Context, room *model.Room) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	room.ID = f.nextID
	f.rooms[room.ID] = copyRoom(room)
	return nil
}

func (f *fakeRoomStore) GetRoom(_ context.Context, roomID uint64) (*model.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rooms[roomID]
	if !ok {
		return nil, repository.ErrRoomNotFound
	}
	return copyRoom(r), nil
}

func (f *fakeRoomStore) FindOpenRooms(_ context.Context, now time.Time) ([]model.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Room
	for _, r := range f.rooms {
		if r.Status == model.RoomStatusWaiting && now.Before(r.CompletionTime) && len(r.Members) < r.MaxMembers {
			out = append(out, *copyRoom(r))
		}
	}
	return out, nil
}

func (f *fakeRoomStore) FindExpiredWaiting(_ context.Context, now time.Time) ([]model.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Room
	for _, r := range f.rooms {
		if r.Status == model.RoomStatusWaiting && now.After(r.CompletionTime) {
			out = append(out, *copyRoom(r))
		}
	}
	return out, nil
}

func (f *fakeRoomStore) FindUnconvertedMatched(_ context.Context) ([]model.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Room
	for _, r := range f.rooms {
		if r.Status == model.RoomStatusMatched && (f.hasGroup == nil || !f.hasGroup(r.ID)) {
			out = append(out, *copyRoom(r))
		}
	}
	return out, nil
}

func (f *fakeRoomStore) AddMember(_ context.Context, roomID, userID uint64) (*model.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rooms[roomID]
	if !ok {
		return nil, repository.ErrRoomNotFound
	}
	if r.Status != model.RoomStatusWaiting || time.Now().UTC().After(r.CompletionTime) {
		return nil, repository.ErrConflict
	}
	for _, id := range r.Members {
		if id == userID {
			return nil, repository.ErrConflict
		}
	}
	if len(r.Members) >= r.MaxMembers {
		return nil, repository.ErrRoomFull
	}
	r.Members = append(r.Members, userID)
	return copyRoom(r), nil
}

func (f *fakeRoomStore) RemoveMember(_ context.Context, roomID, userID uint64) (*model.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rooms[roomID]
	if !ok {
		return nil, repository.ErrRoomNotFound
	}
	if r.Status != model.RoomStatusWaiting {
		return nil, repository.ErrConflict
	}
	for i, id := range r.Members {
		if id == userID {
			r.Members = append(r.Members[:i], r.Members[i+1:]...)
			return copyRoom(r), nil
		}
	}
	return nil, repository.ErrNotMember
}

func (f *fakeRoomStore) SetAggregates(_ context.Context, roomID uint64, avgBudget, avgRadius float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rooms[roomID]
	if !ok {
		return repository.ErrRoomNotFound
	}
	r.AverageBudget = avgBudget
	r.AverageRadius = avgRadius
	return nil
}

func (f *fakeRoomStore) MarkStatus(_ context.Context, roomID uint64, expected, next string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rooms[roomID]
	if !ok {
		return false, repository.ErrRoomNotFound
	}
	if r.Status != expected {
		return false, nil
	}
	r.Status = next
	return true, nil
}

func (f *fakeRoomStore) DeleteRoom(_ context.Context, roomID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rooms, roomID)
	return nil
}

type fakeGroupStore struct {
	mu      sync.Mutex
	groups  map[uint64]*model.Group
	byRoom  map[uint64]uint64
	nextID  uint64
	voteSeq int
}

func newFakeGroupStore() *fakeGroupStore {
	return &fakeGroupStore{
		groups: make(map[uint64]*model.Group),
		byRoom: make(map[uint64]uint64),
	}
}

func (f *fakeGroupStore) hasGroupForRoom(roomID uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.byRoom[roomID]
	return ok
}

func copyGroup(g *model.Group) *model.Group {
	cp := *g
	cp.Members = append([]uint64(nil), g.Members...)
	cp.Votes = append([]model.Vote(nil), g.Votes...)
	cp.Snapshots = make(map[string]model.Restaurant, len(g.Snapshots))
	for k, v := range g.Snapshots {
		cp.Snapshots[k] = v
	}
	if g.Restaurant != nil {
		r := *g.Restaurant
		cp.Restaurant = &r
	}
	return &cp
}

func (f *fakeGroupStore) CreateGroup(_ context.Context, g *model.Group) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, dup := f.byRoom[g.RoomID]; dup {
		return repository.ErrConflict
	}
	f.nextID++
	g.ID = f.nextID
	if g.Snapshots == nil {
		g.Snapshots = make(map[string]model.Restaurant)
	}
	f.groups[g.ID] = copyGroup(g)
	f.byRoom[g.RoomID] = g.ID
	return nil
}

func (f *fakeGroupStore) GetGroup(_ context.Context, groupID uint64) (*model.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.groups[groupID]
	if !ok {
		return nil, repository.ErrGroupNotFound
	}
	return copyGroup(g), nil
}

func (f *fakeGroupStore) FindExpiredVoting(_ context.Context, now time.Time) ([]model.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Group
	for _, g := range f.groups {
		if g.Status == model.GroupStatusVoting && !g.RestaurantSelected && now.After(g.CompletionTime) {
			out = append(out, *copyGroup(g))
		}
	}
	return out, nil
}

func (f *fakeGroupStore) UpsertVote(_ context.Context, groupID, userID uint64, restaurantID string, snapshot *model.Restaurant) (*model.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.groups[groupID]
	if !ok {
		return nil, repository.ErrGroupNotFound
	}
	if g.RestaurantSelected {
		return nil, repository.ErrConflict
	}
	if !g.HasMember(userID) {
		return nil, repository.ErrNotMember
	}
	f.voteSeq++
	castAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(f.voteSeq) * time.Second)
	replaced := false
	for i := range g.Votes {
		if g.Votes[i].UserID == userID {
			g.Votes[i] = model.Vote{UserID: userID, RestaurantID: restaurantID, CastAt: castAt}
			replaced = true
			break
		}
	}
	if !replaced {
		g.Votes = append(g.Votes, model.Vote{UserID: userID, RestaurantID: restaurantID, CastAt: castAt})
	}
	if snapshot != nil {
		g.Snapshots[restaurantID] = *snapshot
	}
	return copyGroup(g), nil
}

func (f *fakeGroupStore) RemoveMember(_ context.Context, groupID, userID uint64) (*model.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.groups[groupID]
	if !ok {
		return nil, repository.ErrGroupNotFound
	}
	found := false
	for i, id := range g.Members {
		if id == userID {
			g.Members = append(g.Members[:i], g.Members[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		return nil, repository.ErrNotMember
	}
	for i := range g.Votes {
		if g.Votes[i].UserID == userID {
			g.Votes = append(g.Votes[:i], g.Votes[i+1:]...)
			break
		}
	}
	return copyGroup(g), nil
}

func (f *fakeGroupStore) Finalize(_ context.Context, groupID uint64, restaurant model.Restaurant) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.groups[groupID]
	if !ok {
		return false, repository.ErrGroupNotFound
	}
	if g.RestaurantSelected {
		return false, nil
	}
	g.RestaurantSelected = true
	g.Restaurant = &restaurant
	g.Status = model.GroupStatusConfirmed
	return true, nil
}

func (f *fakeGroupStore) MarkStatus(_ context.Context, groupID uint64, expected, next string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.groups[groupID]
	if !ok {
		return false, repository.ErrGroupNotFound
	}
	if g.Status != expected {
		return false, nil
	}
	g.Status = next
	return true, nil
}

type fakeUsers struct {
	mu    sync.Mutex
	users map[uint64]*model.User
}

func newFakeUsers(users ...*model.User) *fakeUsers {
	f := &fakeUsers{users: make(map[uint64]*model.User)}
	for _, u := range users {
		cp := *u
		f.users[u.ID] = &cp
	}
	return f
}

func (f *fakeUsers) GetUser(_ context.Context, userID uint64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) GetUsers(_ context.Context, userIDs []uint64) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.User, 0, len(userIDs))
	for _, id := range userIDs {
		if u, ok := f.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (f *fakeUsers) UpdatePreferences(_ context.Context, userID uint64, cuisines []string, budget, radiusKm *float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return repository.ErrUserNotFound
	}
	if cuisines != nil {
		u.Cuisines = cuisines
	}
	if budget != nil {
		u.Budget = *budget
	}
	if radiusKm != nil {
		u.RadiusKm = *radiusKm
	}
	return nil
}

func (f *fakeUsers) SetRoomStatus(_ context.Context, userIDs []uint64, roomID *uint64, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range userIDs {
		if u, ok := f.users[id]; ok {
			u.CurrentRoomID = roomID
			u.Status = status
		}
	}
	return nil
}

func (f *fakeUsers) SetGroupStatus(_ context.Context, userIDs []uint64, groupID *uint64, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range userIDs {
		if u, ok := f.users[id]; ok {
			u.CurrentGroupID = groupID
			u.CurrentRoomID = nil
			u.Status = status
		}
	}
	return nil
}

type notifiedEvent struct {
	scope    string
	targetID uint64
	event    string
	payload  any
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []notifiedEvent
}

func (f *fakeNotifier) NotifyRoom(_ context.Context, roomID uint64, event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, notifiedEvent{scope: "room", targetID: roomID, event: event, payload: payload})
}

func (f *fakeNotifier) NotifyGroup(_ context.Context, groupID uint64, event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, notifiedEvent{scope: "group", targetID: groupID, event: event, payload: payload})
}

func (f *fakeNotifier) eventNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, len(f.events))
	for i, e := range f.events {
		names[i] = e.event
	}
	return names
}
