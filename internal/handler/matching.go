package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/feastfriends/feastfriends/internal/model"
	"github.com/feastfriends/feastfriends/internal/repository"
	"github.com/feastfriends/feastfriends/internal/service"
)

// MatchingHandler exposes the waiting-room endpoints: joining matching,
// leaving a room and inspecting room state.
type MatchingHandler struct {
	Matching *service.MatchingService
}

// NewMatchingHandler constructs a MatchingHandler and panics if the
// service is nil.
func NewMatchingHandler(m *service.MatchingService) *MatchingHandler {
	if m == nil {
		panic("nil service passed to NewMatchingHandler")
	}
	return &MatchingHandler{Matching: m}
}

type joinReq struct {
	Cuisines []string `json:"cuisines"`
	Budget   *float64 `json:"budget"`
	RadiusKm *float64 `json:"radius_km"`
}

type roomResp struct {
	RoomID        uint64   `json:"room_id"`
	Status        string   `json:"status"`
	Members       []uint64 `json:"members"`
	MaxMembers    int      `json:"max_members"`
	Cuisine       string   `json:"cuisine,omitempty"`
	AverageBudget float64  `json:"average_budget"`
	AverageRadius float64  `json:"average_radius"`
	ExpiresAt     string   `json:"expires_at"`
}

func toRoomResp(r *model.Room) roomResp {
	return roomResp{
		RoomID:        r.ID,
		Status:        r.Status,
		Members:       r.Members,
		MaxMembers:    r.MaxMembers,
		Cuisine:       r.Cuisine,
		AverageBudget: r.AverageBudget,
		AverageRadius: r.AverageRadius,
		ExpiresAt:     r.CompletionTime.UTC().Format(time.RFC3339),
	}
}

// Join places the authenticated user into a compatible waiting room.
// POST /v1/matching/join
func (h *MatchingHandler) Join(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req joinReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Budget != nil && *req.Budget < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "budget must be non-negative"})
	}
	if req.RadiusKm != nil && *req.RadiusKm < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "radius_km must be non-negative"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	room, err := h.Matching.JoinMatching(ctx, uid, service.JoinPreferences{
		Cuisines: req.Cuisines,
		Budget:   req.Budget,
		RadiusKm: req.RadiusKm,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAlreadyInMatching):
			return c.JSON(http.StatusConflict, echo.Map{"error": "already in a room or group"})
		case errors.Is(err, repository.ErrUserNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "join failed"})
	}
	return c.JSON(http.StatusOK, toRoomResp(room))
}

// Leave removes the authenticated user from a waiting room.
// POST /v1/rooms/:id/leave
func (h *MatchingHandler) Leave(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	roomID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	if err := h.Matching.LeaveRoom(ctx, uid, roomID); err != nil {
		switch {
		case errors.Is(err, repository.ErrRoomNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "room not found"})
		case errors.Is(err, repository.ErrNotMember):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "not a member of this room"})
		case errors.Is(err, repository.ErrConflict):
			return c.JSON(http.StatusConflict, echo.Map{"error": "room already matched or expired"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "leave failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// RoomStatus returns the current state of a waiting room.
// GET /v1/rooms/:id
func (h *MatchingHandler) RoomStatus(c echo.Context) error {
	roomID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	room, err := h.Matching.GetRoomStatus(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "room not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
	}
	return c.JSON(http.StatusOK, toRoomResp(room))
}

// RoomUsers returns the member IDs of a waiting room.
// GET /v1/rooms/:id/users
func (h *MatchingHandler) RoomUsers(c echo.Context) error {
	roomID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	members, err := h.Matching.GetRoomUsers(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "room not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"room_id": roomID, "members": members})
}
