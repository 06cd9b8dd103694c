package service

import (
    "context"
    "log/slog"
    "time"
)

// Sweeper drives the two periodic expiry passes: waiting rooms and voting
// groups.  The passes are safe to run concurrently with request handlers
// because every transition goes through the stores' atomic updates; a
// sweep that races a fill or a majority vote simply loses the
// compare-and-swap.
type Sweeper struct {
    matching      *MatchingService
    voting        *VotingService
    roomInterval  time.Duration
    groupInterval time.Duration
}

// NewSweeper constructs a Sweeper over the two coordinators.
func NewSweeper(matching *MatchingService, voting *VotingService, roomInterval, groupInterval time.Duration) *Sweeper {
    if matching == nil || voting == nil {
        panic("nil coordinator passed to NewSweeper")
    }
    return &Sweeper{
        matching:      matching,
        voting:        voting,
        roomInterval:  roomInterval,
        groupInterval: groupInterval,
    }
}

// Run blocks, firing the room and group sweeps on their intervals until
// the context is cancelled.  Sweep errors are logged; the loop never
// stops on them.
func (s *Sweeper) Run(ctx context.Context) {
    roomTicker := time.NewTicker(s.roomInterval)
    defer roomTicker.Stop()
    groupTicker := time.NewTicker(s.groupInterval)
    defer groupTicker.Stop()

    slog.Info("expiry sweeper started", "room_interval", s.roomInterval, "group_interval", s.groupInterval)
    for {
        select {
        case <-ctx.Done():
            slog.Info("expiry sweeper stopped")
            return
        case <-roomTicker.C:
            if err := s.matching.CheckExpiredRooms(ctx); err != nil {
                slog.Error("room sweep failed", "error", err)
            }
        case <-groupTicker.C:
            if err := s.voting.CheckExpiredGroups(ctx); err != nil {
                slog.Error("group sweep failed", "error", err)
            }
        }
    }
}
