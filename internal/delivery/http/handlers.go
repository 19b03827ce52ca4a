package http

import (
	"errors"
	"io"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/globo/viewer/internal/counts"
	"github.com/globo/viewer/internal/domain"
	"github.com/globo/viewer/internal/geomap"
	"github.com/globo/viewer/internal/mapview"
	"github.com/globo/viewer/internal/metrics"
	"github.com/globo/viewer/internal/service"
)

// Handler contains all HTTP handlers
type Handler struct {
	session *service.Session
	counts  *counts.Service
	logger  *zap.Logger
}

// NewHandler creates a new handler; a nil counting service disables the
// embedded backend endpoints
func NewHandler(session *service.Session, countsSvc *counts.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		session: session,
		counts:  countsSvc,
		logger:  logger,
	}
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(c *fiber.Ctx) error {
	storage := "disabled"
	if h.counts != nil {
		storage = "ok"
		if err := h.counts.Health(c.Context()); err != nil {
			storage = "unavailable"
		}
	}
	return c.JSON(fiber.Map{
		"status":  "ok",
		"service": "globo-viewer",
		"version": "1.0.0",
		"storage": storage,
	})
}

// sessionError maps session errors onto status codes
func sessionError(err error) error {
	switch {
	case errors.Is(err, service.ErrSessionClosed), errors.Is(err, mapview.ErrUnmounted):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrMissingField),
		errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrUnknownField):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, geomap.ErrNoSuchFeature):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}

// GetForm returns the current form
func (h *Handler) GetForm(c *fiber.Ctx) error {
	form, err := h.session.Form(c.Context())
	if err != nil {
		return sessionError(err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    form,
	})
}

// PatchForm applies one field change
func (h *Handler) PatchForm(c *fiber.Ctx) error {
	var req service.FieldChange
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	form, err := h.session.Change(c.Context(), req)
	if err != nil {
		return sessionError(err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    form,
	})
}

// UploadInput sets the input field from a multipart "file" or the raw body
func (h *Handler) UploadInput(c *fiber.Ctx) error {
	var data []byte
	if fh, err := c.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Failed to open upload")
		}
		defer f.Close()
		if data, err = io.ReadAll(f); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Failed to read upload")
		}
	} else {
		data = c.Body()
	}
	if len(data) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "Empty input")
	}

	form, err := h.session.Upload(c.Context(), data)
	if err != nil {
		return sessionError(err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    form,
	})
}

// Simplify issues a simplify request for the current form
func (h *Handler) Simplify(c *fiber.Ctx) error {
	seq, err := h.session.Simplify(c.Context())
	if err != nil {
		return sessionError(err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"success": true,
		"seq":     seq,
	})
}

// Count issues a count request for the current form
func (h *Handler) Count(c *fiber.Ctx) error {
	seq, err := h.session.Count(c.Context())
	if err != nil {
		return sessionError(err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"success": true,
		"seq":     seq,
	})
}

// GetMap returns the whole session view
func (h *Handler) GetMap(c *fiber.Ctx) error {
	view, err := h.session.View(c.Context())
	if err != nil {
		return sessionError(err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    view,
	})
}

type hoverRequest struct {
	Role  string `json:"role"`
	Index int    `json:"index"`
}

// Hover dispatches a mouseover to one feature of an overlay
func (h *Handler) Hover(c *fiber.Ctx) error {
	var req hoverRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	info, err := h.session.Hover(c.Context(), role, req.Index)
	if err != nil {
		return sessionError(err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"info":    info,
	})
}

// Click fires the map's diagnostic click
func (h *Handler) Click(c *fiber.Ctx) error {
	if err := h.session.Click(c.Context()); err != nil {
		return sessionError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetInfo returns the count of the last hovered result feature
func (h *Handler) GetInfo(c *fiber.Ctx) error {
	info, err := h.session.Info(c.Context())
	if err != nil {
		return sessionError(err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"info":    info,
	})
}

// backendFail answers the embedded backend's errors as plain text, which
// the viewer shows verbatim
func backendFail(c *fiber.Ctx, endpoint string, status int, msg string) error {
	metrics.BackendRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	return c.Status(status).SendString(msg)
}

func backendOK(c *fiber.Ctx, endpoint string, doc *domain.Document) error {
	body, err := doc.Bytes()
	if err != nil {
		return backendFail(c, endpoint, fiber.StatusInternalServerError, err.Error())
	}
	metrics.BackendRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(fiber.StatusOK)).Inc()
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(body)
}

// SimplifyMultipolygon covers the posted polygons with S2 cells
func (h *Handler) SimplifyMultipolygon(c *fiber.Ctx) error {
	const endpoint = "simplify"

	precision, err := counts.ParsePrecision(c.Query("precision"))
	if err != nil {
		return backendFail(c, endpoint, fiber.StatusBadRequest, err.Error())
	}
	doc, err := domain.ParseDocument(c.Body())
	if err != nil {
		return backendFail(c, endpoint, fiber.StatusBadRequest, err.Error())
	}

	out, err := h.counts.Simplify(doc, precision)
	if err != nil {
		return backendFail(c, endpoint, fiber.StatusBadRequest, err.Error())
	}
	return backendOK(c, endpoint, out)
}

// CountMultipolygon sums the events inside each posted feature
func (h *Handler) CountMultipolygon(c *fiber.Ctx) error {
	const endpoint = "count"

	precision, err := counts.ParsePrecision(c.Query("precision"))
	if err != nil {
		return backendFail(c, endpoint, fiber.StatusBadRequest, err.Error())
	}
	start, end := c.Query("start"), c.Query("end")
	if err := counts.ParseDates(start, end); err != nil {
		return backendFail(c, endpoint, fiber.StatusBadRequest, err.Error())
	}
	doc, err := domain.ParseDocument(c.Body())
	if err != nil {
		return backendFail(c, endpoint, fiber.StatusBadRequest, err.Error())
	}

	out, err := h.counts.Count(c.Context(), doc, precision, start, end)
	if err != nil {
		if errors.Is(err, domain.ErrMalformedDocument) {
			return backendFail(c, endpoint, fiber.StatusBadRequest, err.Error())
		}
		h.logger.Error("Count failed", zap.Error(err))
		return backendFail(c, endpoint, fiber.StatusInternalServerError, err.Error())
	}
	return backendOK(c, endpoint, out)
}
