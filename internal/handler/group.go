package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/feastfriends/feastfriends/internal/model"
	"github.com/feastfriends/feastfriends/internal/repository"
	"github.com/feastfriends/feastfriends/internal/service"
)

// GroupHandler exposes the voting endpoints: casting votes, leaving a
// group and inspecting group state.
type GroupHandler struct {
	Voting *service.VotingService
}

// NewGroupHandler constructs a GroupHandler and panics if the service is
// nil.
func NewGroupHandler(v *service.VotingService) *GroupHandler {
	if v == nil {
		panic("nil service passed to NewGroupHandler")
	}
	return &GroupHandler{Voting: v}
}

type voteReq struct {
	RestaurantID string            `json:"restaurant_id"`
	Restaurant   *model.Restaurant `json:"restaurant"`
}

type groupResp struct {
	GroupID            uint64            `json:"group_id"`
	RoomID             uint64            `json:"room_id"`
	Status             string            `json:"status"`
	Members            []uint64          `json:"members"`
	Votes              map[string]int    `json:"votes"`
	MembersVoted       int               `json:"members_voted"`
	RestaurantSelected bool              `json:"restaurant_selected"`
	Restaurant         *model.Restaurant `json:"restaurant,omitempty"`
	ExpiresAt          string            `json:"expires_at"`
}

func toGroupResp(g *model.Group) groupResp {
	return groupResp{
		GroupID:            g.ID,
		RoomID:             g.RoomID,
		Status:             g.Status,
		Members:            g.Members,
		Votes:              g.Tally(),
		MembersVoted:       len(g.Votes),
		RestaurantSelected: g.RestaurantSelected,
		Restaurant:         g.Restaurant,
		ExpiresAt:          g.CompletionTime.UTC().Format(time.RFC3339),
	}
}

// Vote records the authenticated user's restaurant choice.  The optional
// restaurant object carries provider details that are cached for the
// final selection payload.
// POST /v1/groups/:id/vote
func (h *GroupHandler) Vote(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	groupID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid group id"})
	}
	var req voteReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.RestaurantID = strings.TrimSpace(req.RestaurantID)
	if req.RestaurantID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "restaurant_id required"})
	}
	if req.Restaurant != nil && req.Restaurant.RestaurantID == "" {
		req.Restaurant.RestaurantID = req.RestaurantID
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	snapshot, err := h.Voting.VoteForRestaurant(ctx, uid, groupID, req.RestaurantID, req.Restaurant)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrGroupNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "group not found"})
		case errors.Is(err, repository.ErrNotMember):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "not a member of this group"})
		case errors.Is(err, service.ErrAlreadyFinalized):
			return c.JSON(http.StatusConflict, echo.Map{"error": "restaurant already selected"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "vote failed"})
	}
	return c.JSON(http.StatusOK, snapshot)
}

// Leave removes the authenticated user from a voting group.
// POST /v1/groups/:id/leave
func (h *GroupHandler) Leave(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	groupID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid group id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	if err := h.Voting.LeaveGroup(ctx, uid, groupID); err != nil {
		switch {
		case errors.Is(err, repository.ErrGroupNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "group not found"})
		case errors.Is(err, repository.ErrNotMember):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "not a member of this group"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "leave failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Status returns the current state of a voting group.
// GET /v1/groups/:id
func (h *GroupHandler) Status(c echo.Context) error {
	groupID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid group id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	group, err := h.Voting.GetGroupStatus(ctx, groupID)
	if err != nil {
		if errors.Is(err, repository.ErrGroupNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "group not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
	}
	return c.JSON(http.StatusOK, toGroupResp(group))
}
