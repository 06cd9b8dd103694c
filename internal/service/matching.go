package service

import (
    "context"
    "errors"
    "fmt"
    "log/slog"
    "time"

    "github.com/feastfriends/feastfriends/internal/metrics"
    "github.com/feastfriends/feastfriends/internal/model"
    "github.com/feastfriends/feastfriends/internal/queue"
    "github.com/feastfriends/feastfriends/internal/repository"
)

// Preference defaults applied when neither the request nor the stored
// profile carries a value.
const (
    defaultBudget   = 50.0
    defaultRadiusKm = 5.0
)

// Room compatibility scoring weights.  A room is eligible for a joiner
// when the summed score reaches the configured minimum: cuisine membership
// dominates, budget and radius proximity contribute smaller bonuses.
const (
    cuisineScore      = 50.0
    budgetScoreCeil   = 30.0
    radiusScoreCeil   = 20.0
    radiusScoreWeight = 2.0
)

// MatchingConfig carries the tunables of the waiting-room lifecycle.
type MatchingConfig struct {
    RoomWindow    time.Duration // waiting-room lifetime
    VotingWindow  time.Duration // voting deadline for formed groups
    MaxMembers    int           // room capacity
    MinGroupSize  int           // members needed to convert an expired room
    MinMatchScore int           // minimum compatibility score to join a room
}

// JoinPreferences is the preference set supplied with a join request.
// Nil fields fall back to the user's stored profile.
type JoinPreferences struct {
    Cuisines []string
    Budget   *float64
    RadiusKm *float64
}

// MatchingService owns room admission, the fill/expiry transition and
// group creation.
type MatchingService struct {
    rooms    RoomStore
    groups   GroupStore
    users    UserDirectory
    notifier Notifier
    cfg      MatchingConfig
}

// NewMatchingService constructs a MatchingService.  All dependencies must
// be non-nil.
func NewMatchingService(rooms RoomStore, groups GroupStore, users UserDirectory, notifier Notifier, cfg MatchingConfig) *MatchingService {
    if rooms == nil || groups == nil || users == nil || notifier == nil {
        panic("nil dependency passed to NewMatchingService")
    }
    return &MatchingService{rooms: rooms, groups: groups, users: users, notifier: notifier, cfg: cfg}
}

// JoinMatching admits a user into a compatible waiting room, creating a
// fresh one when no open room scores high enough.  The user's stored
// preferences are updated with whatever the request carried.  When the
// join fills the room, conversion to a group happens synchronously before
// returning.  Returns the room the user ended up in.
func (s *MatchingService) JoinMatching(ctx context.Context, userID uint64, prefs JoinPreferences) (*model.Room, error) {
    user, err := s.users.GetUser(ctx, userID)
    if err != nil {
        return nil, err
    }
    if user.InMatching() {
        return nil, ErrAlreadyInMatching
    }

    if err := s.users.UpdatePreferences(ctx, userID, prefs.Cuisines, prefs.Budget, prefs.RadiusKm); err != nil {
        return nil, err
    }

    cuisines := prefs.Cuisines
    if cuisines == nil {
        cuisines = user.Cuisines
    }
    budget := effective(prefs.Budget, user.Budget, defaultBudget)
    radius := effective(prefs.RadiusKm, user.RadiusKm, defaultRadiusKm)

    room, err := s.placeUser(ctx, userID, cuisines, budget, radius)
    if err != nil {
        return nil, err
    }

    roomID := room.ID
    if err := s.users.SetRoomStatus(ctx, []uint64{userID}, &roomID, model.UserStatusInWaitingRoom); err != nil {
        return nil, err
    }

    s.notifier.NotifyRoom(ctx, room.ID, queue.EventRoomUpdate, queue.RoomUpdatePayload{
        RoomID:    room.ID,
        Members:   room.Members,
        ExpiresAt: room.CompletionTime.UTC().Format(time.RFC3339),
        Status:    room.Status,
    })
    s.notifier.NotifyRoom(ctx, room.ID, queue.EventMemberJoined, queue.MemberJoinedPayload{
        UserID:         userID,
        CurrentMembers: len(room.Members),
        MaxMembers:     room.MaxMembers,
    })

    if len(room.Members) >= room.MaxMembers {
        if err := s.ConvertRoom(ctx, room.ID); err != nil {
            return nil, err
        }
    }
    return room, nil
}

// placeUser selects and joins the best-scoring open room, retrying the
// selection once when the append loses a fill/expiry race, and falls back
// to creating a new room.
func (s *MatchingService) placeUser(ctx context.Context, userID uint64, cuisines []string, budget, radius float64) (*model.Room, error) {
    for attempt := 0; attempt < 2; attempt++ {
        best, err := s.findBestRoom(ctx, cuisines, budget, radius)
        if err != nil {
            return nil, err
        }
        if best == nil {
            break
        }
        room, err := s.rooms.AddMember(ctx, best.ID, userID)
        if err != nil {
            if errors.Is(err, repository.ErrConflict) || errors.Is(err, repository.ErrRoomFull) || errors.Is(err, repository.ErrRoomNotFound) {
                slog.Debug("room selection lost race, retrying", "room_id", best.ID, "user_id", userID, "error", err)
                continue
            }
            return nil, err
        }
        if err := s.recomputeAggregates(ctx, room); err != nil {
            return nil, err
        }
        return room, nil
    }
    return s.createRoom(ctx, userID, cuisines, budget, radius)
}

// findBestRoom scores every open room against the joiner's preferences
// and returns the best one, or nil when none reaches the minimum score.
func (s *MatchingService) findBestRoom(ctx context.Context, cuisines []string, budget, radius float64) (*model.Room, error) {
    open, err := s.rooms.FindOpenRooms(ctx, time.Now().UTC())
    if err != nil {
        return nil, err
    }
    var best *model.Room
    bestScore := float64(s.cfg.MinMatchScore)
    for i := range open {
        score := scoreRoom(&open[i], cuisines, budget, radius)
        if score >= bestScore && (best == nil || score > scoreRoom(best, cuisines, budget, radius)) {
            best = &open[i]
        }
    }
    return best, nil
}

// scoreRoom computes the compatibility score of a room for a joiner.
func scoreRoom(room *model.Room, cuisines []string, budget, radius float64) float64 {
    score := 0.0
    if room.Cuisine != "" {
        for _, c := range cuisines {
            if c == room.Cuisine {
                score += cuisineScore
                break
            }
        }
    }
    if d := budgetScoreCeil - abs(room.AverageBudget-budget); d > 0 {
        score += d
    }
    if d := radiusScoreCeil - radiusScoreWeight*abs(room.AverageRadius-radius); d > 0 {
        score += d
    }
    return score
}

func abs(f float64) float64 {
    if f < 0 {
        return -f
    }
    return f
}

// createRoom opens a fresh waiting room seeded with the joiner.
func (s *MatchingService) createRoom(ctx context.Context, userID uint64, cuisines []string, budget, radius float64) (*model.Room, error) {
    cuisine := ""
    if len(cuisines) > 0 {
        cuisine = cuisines[0]
    }
    room := &model.Room{
        CompletionTime: time.Now().UTC().Add(s.cfg.RoomWindow),
        MaxMembers:     s.cfg.MaxMembers,
        Members:        []uint64{userID},
        Status:         model.RoomStatusWaiting,
        Cuisine:        cuisine,
        AverageBudget:  budget,
        AverageRadius:  radius,
    }
    if err := s.rooms.CreateRoom(ctx, room); err != nil {
        return nil, err
    }
    metrics.RoomsCreated.Inc()
    slog.Info("waiting room created", "room_id", room.ID, "user_id", userID, "cuisine", cuisine)
    return room, nil
}

// recomputeAggregates refreshes a room's average budget and radius from
// the current members' stored preferences.
func (s *MatchingService) recomputeAggregates(ctx context.Context, room *model.Room) error {
    if len(room.Members) == 0 {
        return nil
    }
    members, err := s.users.GetUsers(ctx, room.Members)
    if err != nil {
        return err
    }
    if len(members) == 0 {
        return nil
    }
    var totalBudget, totalRadius float64
    for _, m := range members {
        totalBudget += m.Budget
        if m.RadiusKm > 0 {
            totalRadius += m.RadiusKm
        } else {
            totalRadius += defaultRadiusKm
        }
    }
    room.AverageBudget = totalBudget / float64(len(members))
    room.AverageRadius = totalRadius / float64(len(members))
    return s.rooms.SetAggregates(ctx, room.ID, room.AverageBudget, room.AverageRadius)
}

// LeaveRoom removes a user from a waiting room.  A room that already
// matched or expired is frozen: the store rejects the removal with
// ErrConflict and the user record is left alone, since a matched room's
// members now belong to a group.  On any other outcome the user's room
// reference and status are cleared, so a stale reference never wedges a
// user out of matching.  An emptied room is expired and deleted, but only
// when this call wins the WAITING to EXPIRED swap.
func (s *MatchingService) LeaveRoom(ctx context.Context, userID, roomID uint64) error {
    room, removeErr := s.rooms.RemoveMember(ctx, roomID, userID)
    if errors.Is(removeErr, repository.ErrConflict) {
        return removeErr
    }

    if err := s.users.SetRoomStatus(ctx, []uint64{userID}, nil, model.UserStatusOnline); err != nil {
        return err
    }
    if removeErr != nil {
        return removeErr
    }

    if len(room.Members) == 0 {
        won, err := s.rooms.MarkStatus(ctx, roomID, model.RoomStatusWaiting, model.RoomStatusExpired)
        if err != nil {
            return err
        }
        if !won {
            return nil
        }
        return s.rooms.DeleteRoom(ctx, roomID)
    }

    if err := s.recomputeAggregates(ctx, room); err != nil {
        return err
    }
    s.notifier.NotifyRoom(ctx, roomID, queue.EventMemberLeft, queue.MemberLeftPayload{
        UserID:           userID,
        RemainingMembers: len(room.Members),
    })
    s.notifier.NotifyRoom(ctx, roomID, queue.EventRoomUpdate, queue.RoomUpdatePayload{
        RoomID:    roomID,
        Members:   room.Members,
        ExpiresAt: room.CompletionTime.UTC().Format(time.RFC3339),
        Status:    room.Status,
    })
    return nil
}

// GetRoomStatus returns the current room snapshot.
func (s *MatchingService) GetRoomStatus(ctx context.Context, roomID uint64) (*model.Room, error) {
    return s.rooms.GetRoom(ctx, roomID)
}

// GetRoomUsers returns the member IDs of a room.
func (s *MatchingService) GetRoomUsers(ctx context.Context, roomID uint64) ([]uint64, error) {
    room, err := s.rooms.GetRoom(ctx, roomID)
    if err != nil {
        return nil, err
    }
    return room.Members, nil
}

// ConvertRoom turns a waiting room into a voting group.  The WAITING to
// MATCHED compare-and-swap makes the conversion idempotent: the fill path
// and the expiry sweep can both call this for the same room and exactly
// one group is created.
func (s *MatchingService) ConvertRoom(ctx context.Context, roomID uint64) error {
    won, err := s.rooms.MarkStatus(ctx, roomID, model.RoomStatusWaiting, model.RoomStatusMatched)
    if err != nil {
        return err
    }
    if !won {
        // Already matched or expired by the other path.
        return nil
    }

    room, err := s.rooms.GetRoom(ctx, roomID)
    if err != nil {
        return err
    }
    return s.completeConversion(ctx, room)
}

// completeConversion creates the voting group for a MATCHED room and moves
// its members into it.  It is re-entrant: the unique room-to-group mapping
// turns a duplicate insert into a no-op, so the sweep can resume a
// conversion that died between the status swap and the group insert
// without ever producing a second group.
func (s *MatchingService) completeConversion(ctx context.Context, room *model.Room) error {
    group := &model.Group{
        RoomID:         room.ID,
        CompletionTime: time.Now().UTC().Add(s.cfg.VotingWindow),
        Members:        room.Members,
        Status:         model.GroupStatusVoting,
    }
    if err := s.groups.CreateGroup(ctx, group); err != nil {
        if errors.Is(err, repository.ErrConflict) {
            // A group for this room already exists.
            return nil
        }
        return fmt.Errorf("create group for room %d: %w", room.ID, err)
    }

    groupID := group.ID
    if err := s.users.SetGroupStatus(ctx, room.Members, &groupID, model.UserStatusInGroup); err != nil {
        return err
    }

    metrics.GroupsFormed.Inc()
    slog.Info("room matched into group", "room_id", room.ID, "group_id", group.ID, "members", len(group.Members))

    s.notifier.NotifyRoom(ctx, room.ID, queue.EventGroupReady, queue.GroupReadyPayload{
        GroupID: group.ID,
        Members: group.Members,
    })
    return nil
}

// CheckExpiredRooms resolves every WAITING room past its deadline: rooms
// with enough members convert into groups, the rest expire and release
// their members.  It then resumes any MATCHED room left without a group by
// an interrupted conversion.  A failure on one room is logged and does not
// abort the sweep.
func (s *MatchingService) CheckExpiredRooms(ctx context.Context) error {
    expired, err := s.rooms.FindExpiredWaiting(ctx, time.Now().UTC())
    if err != nil {
        return err
    }
    for i := range expired {
        room := &expired[i]
        if len(room.Members) >= s.cfg.MinGroupSize {
            if err := s.ConvertRoom(ctx, room.ID); err != nil {
                slog.Error("expired room conversion failed", "room_id", room.ID, "error", err)
            }
            continue
        }
        if err := s.expireRoom(ctx, room); err != nil {
            slog.Error("room expiry failed", "room_id", room.ID, "error", err)
        }
    }

    unconverted, err := s.rooms.FindUnconvertedMatched(ctx)
    if err != nil {
        return err
    }
    for i := range unconverted {
        room := &unconverted[i]
        slog.Warn("resuming interrupted conversion", "room_id", room.ID, "members", len(room.Members))
        if err := s.completeConversion(ctx, room); err != nil {
            slog.Error("conversion resume failed", "room_id", room.ID, "error", err)
        }
    }
    return nil
}

// expireRoom marks a room EXPIRED and releases its members.
func (s *MatchingService) expireRoom(ctx context.Context, room *model.Room) error {
    won, err := s.rooms.MarkStatus(ctx, room.ID, model.RoomStatusWaiting, model.RoomStatusExpired)
    if err != nil {
        return err
    }
    if !won {
        return nil
    }
    if err := s.users.SetRoomStatus(ctx, room.Members, nil, model.UserStatusOnline); err != nil {
        return err
    }
    metrics.RoomsExpired.Inc()
    slog.Info("waiting room expired", "room_id", room.ID, "members", len(room.Members))
    s.notifier.NotifyRoom(ctx, room.ID, queue.EventRoomExpired, queue.RoomExpiredPayload{
        RoomID: room.ID,
        Reason: "not enough members",
    })
    return nil
}

// effective resolves a preference: the request value wins, then the
// stored profile value, then the default.
func effective(requested *float64, stored, def float64) float64 {
    if requested != nil {
        return *requested
    }
    if stored > 0 {
        return stored
    }
    return def
}
