package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTallyCountsLatestVotePerMember(t *testing.T) {
	g := &Group{
		Members: []uint64{1, 2, 3},
		Votes: []Vote{
			{UserID: 1, RestaurantID: "r1"},
			{UserID: 2, RestaurantID: "r1"},
			{UserID: 3, RestaurantID: "r2"},
		},
	}
	tally := g.Tally()
	assert.Equal(t, 2, tally["r1"])
	assert.Equal(t, 1, tally["r2"])
}

func TestMajorityChoice(t *testing.T) {
	g := &Group{Members: []uint64{1, 2, 3, 4}}

	g.Votes = []Vote{
		{UserID: 1, RestaurantID: "r1"},
		{UserID: 2, RestaurantID: "r1"},
	}
	_, ok := g.MajorityChoice()
	assert.False(t, ok, "2 of 4 is not a strict majority")

	g.Votes = append(g.Votes, Vote{UserID: 3, RestaurantID: "r1"})
	choice, ok := g.MajorityChoice()
	require.True(t, ok)
	assert.Equal(t, "r1", choice)
}

func TestMajorityChoiceEmptyGroup(t *testing.T) {
	g := &Group{}
	_, ok := g.MajorityChoice()
	assert.False(t, ok)
}

func TestWinningRestaurantHighestTally(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g := &Group{
		Members: []uint64{1, 2, 3, 4, 5},
		Votes: []Vote{
			{UserID: 1, RestaurantID: "r1", CastAt: base},
			{UserID: 2, RestaurantID: "r2", CastAt: base.Add(time.Second)},
			{UserID: 3, RestaurantID: "r2", CastAt: base.Add(2 * time.Second)},
		},
	}
	winner, ok := g.WinningRestaurant()
	require.True(t, ok)
	assert.Equal(t, "r2", winner)
}

func TestWinningRestaurantTieBreaksOnEarliestVote(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g := &Group{
		Members: []uint64{1, 2, 3, 4},
		Votes: []Vote{
			{UserID: 1, RestaurantID: "r2", CastAt: base.Add(time.Second)},
			{UserID: 2, RestaurantID: "r1", CastAt: base},
			{UserID: 3, RestaurantID: "r2", CastAt: base.Add(3 * time.Second)},
			{UserID: 4, RestaurantID: "r1", CastAt: base.Add(2 * time.Second)},
		},
	}
	winner, ok := g.WinningRestaurant()
	require.True(t, ok)
	assert.Equal(t, "r1", winner, "r1 holds the earliest vote among the tied restaurants")
}

func TestWinningRestaurantNoVotes(t *testing.T) {
	g := &Group{Members: []uint64{1, 2}}
	_, ok := g.WinningRestaurant()
	assert.False(t, ok)
}

func TestSnapshotForFallsBackToMinimal(t *testing.T) {
	g := &Group{
		Snapshots: map[string]Restaurant{
			"r1": {RestaurantID: "r1", Name: "Trattoria Da Mario", Cuisine: "italian"},
		},
	}
	snap := g.SnapshotFor("r1")
	assert.Equal(t, "Trattoria Da Mario", snap.Name)

	snap = g.SnapshotFor("r9")
	assert.Equal(t, "r9", snap.RestaurantID)
	assert.Equal(t, "r9", snap.Name)
}

func TestRoomIsFullAndExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := &Room{
		CompletionTime: now.Add(time.Minute),
		MaxMembers:     2,
		Members:        []uint64{1},
	}
	assert.False(t, r.IsFull())
	assert.False(t, r.IsExpired(now))

	r.Members = append(r.Members, 2)
	assert.True(t, r.IsFull())
	assert.True(t, r.IsExpired(now.Add(2*time.Minute)))
}

func TestUserInMatching(t *testing.T) {
	u := &User{Status: UserStatusOnline}
	assert.False(t, u.InMatching())

	rid := uint64(7)
	u.CurrentRoomID = &rid
	assert.True(t, u.InMatching())

	u.CurrentRoomID = nil
	gid := uint64(3)
	u.CurrentGroupID = &gid
	assert.True(t, u.InMatching())
}
