package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bdobrica/parlor/internal/parlor/chat"
)

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Model   string `json:"model" validate:"required"`
	UserID  string `json:"user_id" validate:"required"`
	Message string `json:"message" validate:"max=4096"`
}

// Chat advances the conversation and returns the reply.
// POST /api/chat
func (h *Handler) Chat(c echo.Context) error {
	var req ChatRequest
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}

	reply, err := h.chat.Respond(c.Request().Context(), req.UserID, req.Model, req.Message)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, reply)
}

// TestRequest is the body of POST /api/test.
type TestRequest struct {
	Model   string `json:"model" validate:"required"`
	Message string `json:"message" validate:"max=4096"`
}

// Test returns a first-turn reply without touching conversation state.
// POST /api/test
func (h *Handler) Test(c echo.Context) error {
	var req TestRequest
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}

	reply, err := h.chat.Test(c.Request().Context(), req.Model, req.Message)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"response": reply.Text,
		"model":    req.Model,
		"emotion":  reply.Emotion,
	})
}

// RateRequest is the body of POST /api/rate.
type RateRequest struct {
	UserID   string `json:"user_id"`
	Message  string `json:"message" validate:"required"`
	Response string `json:"response" validate:"required"`
	Rating   int    `json:"rating" validate:"min=1,max=10"`
	Model    string `json:"model" validate:"required"`
}

// Rate stores a rating, auto-training on high scores.
// POST /api/rate
func (h *Handler) Rate(c echo.Context) error {
	var req RateRequest
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}

	trained, err := h.chat.Rate(c.Request().Context(), chat.Rating{
		UserID:   req.UserID,
		Persona:  req.Model,
		Message:  req.Message,
		Response: req.Response,
		Score:    req.Rating,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"message":      "Rating saved",
		"auto_trained": trained,
	})
}

// TrainRequest is the body of POST /api/train.
type TrainRequest struct {
	Question string `json:"question" validate:"required"`
	Answer   string `json:"answer" validate:"required"`
	Model    string `json:"model" validate:"required"`
	Priority int    `json:"priority" validate:"omitempty,min=1,max=10"`
}

// Train stores a manual question → answer pair.
// POST /api/train
func (h *Handler) Train(c echo.Context) error {
	var req TrainRequest
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}

	if err := h.chat.Train(c.Request().Context(), req.Question, req.Answer, req.Model, req.Priority); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Training data saved"})
}

// Statistics returns the dashboard aggregates.
// GET /api/statistics
func (h *Handler) Statistics(c echo.Context) error {
	st, err := h.chat.Statistics(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, st)
}
