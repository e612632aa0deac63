package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bdobrica/parlor/internal/parlor/chat"
	"github.com/bdobrica/parlor/internal/parlor/persona"
)

// maxPersonaDocument bounds the size of a submitted persona document.
const maxPersonaDocument = 64 << 10

// ListPersonas lists the stored personas.
// GET /api/models
func (h *Handler) ListPersonas(c echo.Context) error {
	list, err := h.chat.Personas(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"models": list})
}

// GetPersona returns one persona's configuration.
// GET /api/model/:name
func (h *Handler) GetPersona(c echo.Context) error {
	cfg, err := h.chat.Persona(c.Request().Context(), c.Param("name"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, cfg)
}

// SavePersona validates and stores a persona document.
// POST /api/model/:name
func (h *Handler) SavePersona(c echo.Context) error {
	raw, err := io.ReadAll(io.LimitReader(c.Request().Body, maxPersonaDocument+1))
	if err != nil {
		return fail(c, errors.Join(chat.ErrInvalidRequest, err))
	}
	if len(raw) > maxPersonaDocument {
		return fail(c, errors.Join(chat.ErrInvalidRequest, errors.New("document too large")))
	}

	name := c.Param("name")
	if !persona.ValidName(name) {
		return fail(c, errors.Join(chat.ErrInvalidRequest, errors.New("invalid model name")))
	}

	if _, err := h.chat.SavePersona(c.Request().Context(), name, raw); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Model " + name + " saved"})
}

// GetSettings returns the user preferences.
// GET /api/settings
func (h *Handler) GetSettings(c echo.Context) error {
	s, err := h.settings.User(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, s)
}

// SaveSettings merges the submitted preferences into the stored ones.
// POST /api/settings
func (h *Handler) SaveSettings(c echo.Context) error {
	var update map[string]any
	if err := c.Bind(&update); err != nil {
		return fail(c, errors.Join(chat.ErrInvalidRequest, errors.New("invalid request body")))
	}
	s, err := h.settings.SaveUser(c.Request().Context(), update)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"message": "Settings saved", "settings": s})
}

// GetPlatformSettings returns the platform settings.
// GET /api/platform-settings
func (h *Handler) GetPlatformSettings(c echo.Context) error {
	p, err := h.settings.Platform(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// SavePlatformSettings replaces the platform settings. Fields missing from
// the body take their default values.
// POST /api/platform-settings
func (h *Handler) SavePlatformSettings(c echo.Context) error {
	p := persona.DefaultPlatform()
	if err := c.Bind(&p); err != nil {
		return fail(c, errors.Join(chat.ErrInvalidRequest, errors.New("invalid request body")))
	}
	if err := h.settings.SavePlatform(c.Request().Context(), p); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Platform settings saved"})
}
