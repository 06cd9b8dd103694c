package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feastfriends/feastfriends/internal/model"
	"github.com/feastfriends/feastfriends/internal/queue"
)

type votingEnv struct {
	groups   *fakeGroupStore
	users    *fakeUsers
	notifier *fakeNotifier
	svc      *VotingService
}

func newVotingEnv(members ...uint64) (*votingEnv, *model.Group) {
	env := &votingEnv{
		groups:   newFakeGroupStore(),
		users:    newFakeUsers(),
		notifier: &fakeNotifier{},
	}
	for _, id := range members {
		gid := uint64(1)
		env.users.users[id] = &model.User{ID: id, Status: model.UserStatusInGroup, CurrentGroupID: &gid}
	}
	env.svc = NewVotingService(env.groups, env.users, env.notifier)

	group := &model.Group{
		CompletionTime: time.Now().UTC().Add(30 * time.Minute),
		Members:        members,
		Status:         model.GroupStatusVoting,
	}
	if err := env.groups.CreateGroup(context.Background(), group); err != nil {
		panic(err)
	}
	return env, group
}

func TestVoteRecordsTally(t *testing.T) {
	env, group := newVotingEnv(1, 2, 3, 4)
	ctx := context.Background()

	snap, err := env.svc.VoteForRestaurant(ctx, 1, group.ID, "r1", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Votes["r1"])
	assert.Equal(t, 1, snap.MembersVoted)
	assert.Equal(t, 4, snap.TotalMembers)
	assert.False(t, snap.Finalized)

	assert.Contains(t, env.notifier.eventNames(), queue.EventVoteUpdate)
}

func TestVoteOverwriteKeepsOnlyLatestChoice(t *testing.T) {
	env, group := newVotingEnv(1, 2, 3, 4)
	ctx := context.Background()

	_, err := env.svc.VoteForRestaurant(ctx, 1, group.ID, "r1", nil)
	require.NoError(t, err)
	snap, err := env.svc.VoteForRestaurant(ctx, 1, group.ID, "r2", nil)
	require.NoError(t, err)

	assert.Equal(t, 0, snap.Votes["r1"])
	assert.Equal(t, 1, snap.Votes["r2"])
	assert.Equal(t, 1, snap.MembersVoted)
}

func TestMajorityFinalizesGroup(t *testing.T) {
	env, group := newVotingEnv(1, 2, 3, 4)
	ctx := context.Background()

	details := &model.Restaurant{RestaurantID: "r1", Name: "Ramen Koji", Cuisine: "japanese"}

	_, err := env.svc.VoteForRestaurant(ctx, 1, group.ID, "r1", details)
	require.NoError(t, err)
	_, err = env.svc.VoteForRestaurant(ctx, 2, group.ID, "r1", nil)
	require.NoError(t, err)
	snap, err := env.svc.VoteForRestaurant(ctx, 3, group.ID, "r2", nil)
	require.NoError(t, err)
	assert.False(t, snap.Finalized, "2 of 4 is not a strict majority")

	snap, err = env.svc.VoteForRestaurant(ctx, 4, group.ID, "r1", nil)
	require.NoError(t, err)
	assert.True(t, snap.Finalized)

	stored, err := env.groups.GetGroup(ctx, group.ID)
	require.NoError(t, err)
	assert.True(t, stored.RestaurantSelected)
	assert.Equal(t, model.GroupStatusConfirmed, stored.Status)
	require.NotNil(t, stored.Restaurant)
	assert.Equal(t, "Ramen Koji", stored.Restaurant.Name)

	assert.Contains(t, env.notifier.eventNames(), queue.EventRestaurantSelected)
}

func TestVoteAfterSelectionRejected(t *testing.T) {
	env, group := newVotingEnv(1, 2, 3)
	ctx := context.Background()

	_, err := env.svc.VoteForRestaurant(ctx, 1, group.ID, "r1", nil)
	require.NoError(t, err)
	snap, err := env.svc.VoteForRestaurant(ctx, 2, group.ID, "r1", nil)
	require.NoError(t, err)
	require.True(t, snap.Finalized)

	_, err = env.svc.VoteForRestaurant(ctx, 3, group.ID, "r2", nil)
	assert.ErrorIs(t, err, ErrAlreadyFinalized)
}

func TestVoteByNonMemberRejected(t *testing.T) {
	env, group := newVotingEnv(1, 2, 3)

	_, err := env.svc.VoteForRestaurant(context.Background(), 99, group.ID, "r1", nil)
	assert.Error(t, err)
}

func TestLeaveGroupRemovesVoteAndReleasesUser(t *testing.T) {
	env, group := newVotingEnv(1, 2, 3, 4)
	ctx := context.Background()

	_, err := env.svc.VoteForRestaurant(ctx, 1, group.ID, "r1", nil)
	require.NoError(t, err)

	require.NoError(t, env.svc.LeaveGroup(ctx, 1, group.ID))

	stored, err := env.groups.GetGroup(ctx, group.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{2, 3, 4}, stored.Members)
	assert.Empty(t, stored.Votes)

	u, err := env.users.GetUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.UserStatusOnline, u.Status)
	assert.Nil(t, u.CurrentGroupID)
}

func TestLeaveGroupCanTriggerFinalization(t *testing.T) {
	env, group := newVotingEnv(1, 2, 3, 4)
	ctx := context.Background()

	_, err := env.svc.VoteForRestaurant(ctx, 1, group.ID, "r1", nil)
	require.NoError(t, err)
	snap, err := env.svc.VoteForRestaurant(ctx, 2, group.ID, "r1", nil)
	require.NoError(t, err)
	require.False(t, snap.Finalized)

	// Dropping to 3 members turns the existing 2 votes into a majority.
	require.NoError(t, env.svc.LeaveGroup(ctx, 3, group.ID))

	stored, err := env.groups.GetGroup(ctx, group.ID)
	require.NoError(t, err)
	assert.True(t, stored.RestaurantSelected)
	assert.Equal(t, model.GroupStatusConfirmed, stored.Status)
}

func TestLeaveGroupCancelsWhenEmptied(t *testing.T) {
	env, group := newVotingEnv(1)
	ctx := context.Background()

	require.NoError(t, env.svc.LeaveGroup(ctx, 1, group.ID))

	stored, err := env.groups.GetGroup(ctx, group.ID)
	require.NoError(t, err)
	assert.Equal(t, model.GroupStatusCancelled, stored.Status)
}

func TestCheckExpiredGroupsFinalizesWinner(t *testing.T) {
	env, group := newVotingEnv(1, 2, 3, 4)
	ctx := context.Background()

	_, err := env.svc.VoteForRestaurant(ctx, 1, group.ID, "r1", nil)
	require.NoError(t, err)
	_, err = env.svc.VoteForRestaurant(ctx, 2, group.ID, "r2", nil)
	require.NoError(t, err)

	// Force the deadline into the past.
	env.groups.mu.Lock()
	env.groups.groups[group.ID].CompletionTime = time.Now().UTC().Add(-time.Second)
	env.groups.mu.Unlock()

	require.NoError(t, env.svc.CheckExpiredGroups(ctx))

	stored, err := env.groups.GetGroup(ctx, group.ID)
	require.NoError(t, err)
	assert.True(t, stored.RestaurantSelected)
	require.NotNil(t, stored.Restaurant)
	assert.Equal(t, "r1", stored.Restaurant.RestaurantID, "tie breaks to the earliest cast vote")
}

func TestCheckExpiredGroupsCancelsVotelessGroup(t *testing.T) {
	env, group := newVotingEnv(1, 2)
	ctx := context.Background()

	env.groups.mu.Lock()
	env.groups.groups[group.ID].CompletionTime = time.Now().UTC().Add(-time.Second)
	env.groups.mu.Unlock()

	require.NoError(t, env.svc.CheckExpiredGroups(ctx))

	stored, err := env.groups.GetGroup(ctx, group.ID)
	require.NoError(t, err)
	assert.Equal(t, model.GroupStatusCancelled, stored.Status)

	for _, id := range []uint64{1, 2} {
		u, err := env.users.GetUser(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.UserStatusOnline, u.Status)
		assert.Nil(t, u.CurrentGroupID)
	}

	assert.Contains(t, env.notifier.eventNames(), queue.EventGroupExpired)
}

func TestGetGroupStatus(t *testing.T) {
	env, group := newVotingEnv(1, 2)

	stored, err := env.svc.GetGroupStatus(context.Background(), group.ID)
	require.NoError(t, err)
	assert.Equal(t, group.ID, stored.ID)
	assert.Equal(t, model.GroupStatusVoting, stored.Status)
}
