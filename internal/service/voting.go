package service

import (
    "context"
    "errors"
    "log/slog"
    "time"

    "github.com/feastfriends/feastfriends/internal/metrics"
    "github.com/feastfriends/feastfriends/internal/model"
    "github.com/feastfriends/feastfriends/internal/queue"
    "github.com/feastfriends/feastfriends/internal/repository"
)

// TallySnapshot is returned from every vote operation so the caller can
// render the current standings whether or not the vote finalized the
// selection.
type TallySnapshot struct {
    Votes        map[string]int `json:"votes"`
    MembersVoted int            `json:"members_voted"`
    TotalMembers int            `json:"total_members"`
    Finalized    bool           `json:"finalized"`
}

// VotingService owns per-group vote casting, tally computation and
// selection finalization.
type VotingService struct {
    groups   GroupStore
    users    UserDirectory
    notifier Notifier
}

// NewVotingService constructs a VotingService.  All dependencies must be
// non-nil.
func NewVotingService(groups GroupStore, users UserDirectory, notifier Notifier) *VotingService {
    if groups == nil || users == nil || notifier == nil {
        panic("nil dependency passed to NewVotingService")
    }
    return &VotingService{groups: groups, users: users, notifier: notifier}
}

// VoteForRestaurant records or replaces a member's vote.  Only the latest
// choice per member counts.  When any restaurant reaches a strict
// majority of the current membership the group finalizes immediately.
// The optional details snapshot is cached so finalization can attach
// restaurant data even when it happens later in the expiry sweep.
func (s *VotingService) VoteForRestaurant(ctx context.Context, userID, groupID uint64, restaurantID string, details *model.Restaurant) (*TallySnapshot, error) {
    group, err := s.groups.GetGroup(ctx, groupID)
    if err != nil {
        return nil, err
    }
    if !group.HasMember(userID) {
        return nil, repository.ErrNotMember
    }
    if group.RestaurantSelected {
        return nil, ErrAlreadyFinalized
    }

    updated, err := s.groups.UpsertVote(ctx, groupID, userID, restaurantID, details)
    if err != nil {
        // The group finalized between the read and the write.
        if errors.Is(err, repository.ErrConflict) {
            return nil, ErrAlreadyFinalized
        }
        return nil, err
    }
    metrics.VotesCast.Inc()

    tally := updated.Tally()
    snapshot := &TallySnapshot{
        Votes:        tally,
        MembersVoted: len(updated.Votes),
        TotalMembers: len(updated.Members),
    }

    if choice, ok := updated.MajorityChoice(); ok {
        finalized, err := s.finalize(ctx, updated, choice, tally)
        if err != nil {
            return nil, err
        }
        snapshot.Finalized = finalized
        return snapshot, nil
    }

    s.notifier.NotifyGroup(ctx, groupID, queue.EventVoteUpdate, queue.VoteUpdatePayload{
        RestaurantID: restaurantID,
        Votes:        tally,
        TotalVotes:   len(updated.Votes),
        MembersVoted: len(updated.Votes),
        TotalMembers: len(updated.Members),
    })
    return snapshot, nil
}

// LeaveGroup removes a user from a group along with their vote.  The
// reduced membership changes the majority threshold, so the tally is
// re-evaluated and the group may finalize as a result of the departure.
// An emptied group is cancelled.
func (s *VotingService) LeaveGroup(ctx context.Context, userID, groupID uint64) error {
    updated, err := s.groups.RemoveMember(ctx, groupID, userID)
    if err != nil {
        return err
    }

    if err := s.users.SetGroupStatus(ctx, []uint64{userID}, nil, model.UserStatusOnline); err != nil {
        return err
    }

    if len(updated.Members) == 0 {
        won, err := s.groups.MarkStatus(ctx, groupID, model.GroupStatusVoting, model.GroupStatusCancelled)
        if err != nil {
            return err
        }
        if won {
            metrics.GroupsCancelled.Inc()
            slog.Info("empty group cancelled", "group_id", groupID)
        }
        return nil
    }

    s.notifier.NotifyGroup(ctx, groupID, queue.EventMemberLeft, queue.MemberLeftPayload{
        UserID:           userID,
        RemainingMembers: len(updated.Members),
    })

    if !updated.RestaurantSelected {
        if choice, ok := updated.MajorityChoice(); ok {
            if _, err := s.finalize(ctx, updated, choice, updated.Tally()); err != nil {
                return err
            }
        }
    }
    return nil
}

// GetGroupStatus returns the current group snapshot.
func (s *VotingService) GetGroupStatus(ctx context.Context, groupID uint64) (*model.Group, error) {
    return s.groups.GetGroup(ctx, groupID)
}

// CheckExpiredGroups resolves every VOTING group past its deadline with no
// selection: any cast votes elect the highest tally (earliest-cast
// tie-break), otherwise the group is cancelled and its members released.
// A failure on one group is logged and does not abort the sweep.
func (s *VotingService) CheckExpiredGroups(ctx context.Context) error {
    expired, err := s.groups.FindExpiredVoting(ctx, time.Now().UTC())
    if err != nil {
        return err
    }
    for i := range expired {
        group := &expired[i]
        if winner, ok := group.WinningRestaurant(); ok {
            if _, err := s.finalize(ctx, group, winner, group.Tally()); err != nil {
                slog.Error("expired group finalization failed", "group_id", group.ID, "error", err)
            }
            continue
        }
        if err := s.cancelGroup(ctx, group); err != nil {
            slog.Error("group cancellation failed", "group_id", group.ID, "error", err)
        }
    }
    return nil
}

// finalize selects the restaurant for a group via the store's
// compare-and-swap.  It reports whether this call won the swap; losing it
// means the other path (majority vote vs sweep) already finalized, which
// is not an error.
func (s *VotingService) finalize(ctx context.Context, group *model.Group, restaurantID string, tally map[string]int) (bool, error) {
    snapshot := group.SnapshotFor(restaurantID)
    won, err := s.groups.Finalize(ctx, group.ID, snapshot)
    if err != nil {
        return false, err
    }
    if !won {
        return false, nil
    }
    metrics.GroupsFinalized.Inc()
    slog.Info("restaurant selected", "group_id", group.ID, "restaurant_id", restaurantID, "votes", tally[restaurantID])
    s.notifier.NotifyGroup(ctx, group.ID, queue.EventRestaurantSelected, queue.RestaurantSelectedPayload{
        RestaurantID:   restaurantID,
        RestaurantName: snapshot.Name,
        Votes:          tally,
    })
    return true, nil
}

// cancelGroup dissolves a voteless expired group and releases its members.
func (s *VotingService) cancelGroup(ctx context.Context, group *model.Group) error {
    won, err := s.groups.MarkStatus(ctx, group.ID, model.GroupStatusVoting, model.GroupStatusCancelled)
    if err != nil {
        return err
    }
    if !won {
        return nil
    }
    if err := s.users.SetGroupStatus(ctx, group.Members, nil, model.UserStatusOnline); err != nil {
        return err
    }
    metrics.GroupsCancelled.Inc()
    slog.Info("group expired without votes", "group_id", group.ID, "members", len(group.Members))
    s.notifier.NotifyGroup(ctx, group.ID, queue.EventGroupExpired, queue.GroupExpiredPayload{
        GroupID: group.ID,
        Reason:  "voting deadline passed with no votes",
    })
    return nil
}
