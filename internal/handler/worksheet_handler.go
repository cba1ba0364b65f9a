package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/geometria-labs/geometria-api/internal/dto"
	"github.com/geometria-labs/geometria-api/internal/service"
	"github.com/geometria-labs/geometria-api/internal/utils"
)

// WorksheetHandler manages the fixed-stage guided worksheet endpoints.
type WorksheetHandler struct {
	service service.WorksheetService
	logger  zerolog.Logger
}

// NewWorksheetHandler builds a worksheet handler instance.
func NewWorksheetHandler(service service.WorksheetService, logger zerolog.Logger) *WorksheetHandler {
	return &WorksheetHandler{
		service: service,
		logger:  logger.With().Str("component", "worksheet_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *WorksheetHandler) Register(router fiber.Router) {
	router.Post("/submissions", h.initialize)
	router.Get("/submissions", h.load)
	router.Patch("/submissions/:id/stages/:stage", h.updateStage)
	router.Patch("/submissions/:id/autosave", h.autoSave)
	router.Post("/submissions/:id/submit", h.submit)
	router.Get("/submissions/:id/progress", h.progress)
}

func (h *WorksheetHandler) initialize(c *fiber.Ctx) error {
	var payload dto.WorksheetInitializeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	submission, err := h.service.Initialize(c.Context(), userIDFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "worksheet submission ready", submission)
}

func (h *WorksheetHandler) load(c *fiber.Ctx) error {
	var submissionID *uint
	if raw := strings.TrimSpace(c.Query("id")); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid id")
		}
		id := uint(parsed)
		submissionID = &id
	}

	submission, err := h.service.Load(c.Context(), userIDFromContext(c), submissionID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "worksheet submission loaded", submission)
}

func (h *WorksheetHandler) updateStage(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	stage, err := parseIntParam(c, "stage")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.StageUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	submission, err := h.service.UpdateStage(c.Context(), userIDFromContext(c), id, stage, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "stage completed", submission)
}

func (h *WorksheetHandler) autoSave(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.AutoSaveRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	submission, err := h.service.AutoSave(c.Context(), userIDFromContext(c), id, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "draft saved", submission)
}

func (h *WorksheetHandler) submit(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submission, err := h.service.Submit(c.Context(), userIDFromContext(c), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "worksheet submitted", submission)
}

func (h *WorksheetHandler) progress(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	progress, err := h.service.Progress(c.Context(), userIDFromContext(c), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "progress retrieved", progress)
}

func (h *WorksheetHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrAuthRequired):
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	case errors.Is(err, service.ErrNoActiveSubmission):
		return utils.SendError(c, fiber.StatusNotFound, "submission not found")
	case errors.Is(err, service.ErrSubmissionCompleted):
		return utils.SendError(c, fiber.StatusConflict, "submission already completed")
	case errors.Is(err, service.ErrInvalidStage):
		return utils.SendError(c, fiber.StatusBadRequest, "invalid stage number")
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
