package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/geometria-labs/geometria-api/internal/dto"
	"github.com/geometria-labs/geometria-api/internal/service"
	"github.com/geometria-labs/geometria-api/internal/utils"
)

// SectionHandler manages the section-based worksheet endpoints.
type SectionHandler struct {
	service service.SectionService
	logger  zerolog.Logger
}

// NewSectionHandler builds a section handler instance.
func NewSectionHandler(service service.SectionService, logger zerolog.Logger) *SectionHandler {
	return &SectionHandler{
		service: service,
		logger:  logger.With().Str("component", "section_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *SectionHandler) Register(router fiber.Router) {
	router.Get("/:id/worksheet", h.fetch)
	router.Put("/:id/sections/:index", h.saveSection)
	router.Put("/:id/navigation", h.navigate)
	router.Post("/:id/submit", h.submit)
}

func (h *SectionHandler) fetch(c *fiber.Ctx) error {
	assignmentID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.service.FetchWorksheetAndSubmission(c.Context(), assignmentID, userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "worksheet loaded", result)
}

func (h *SectionHandler) saveSection(c *fiber.Ctx) error {
	assignmentID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	index, err := parseIntParam(c, "index")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.SectionSaveRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	submission, err := h.service.SaveSection(c.Context(), userIDFromContext(c), assignmentID, index, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "section saved", submission)
}

func (h *SectionHandler) navigate(c *fiber.Ctx) error {
	assignmentID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.NavigationRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	submission, err := h.service.GoToSection(c.Context(), userIDFromContext(c), assignmentID, payload.Section)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "section changed", submission)
}

func (h *SectionHandler) submit(c *fiber.Ctx) error {
	assignmentID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submission, err := h.service.Submit(c.Context(), userIDFromContext(c), assignmentID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "worksheet submitted", submission)
}

func (h *SectionHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrAuthRequired):
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	case errors.Is(err, service.ErrWorksheetNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "worksheet not found")
	case errors.Is(err, service.ErrNoActiveSubmission):
		return utils.SendError(c, fiber.StatusNotFound, "submission not found")
	case errors.Is(err, service.ErrSectionSubmissionSubmitted):
		return utils.SendError(c, fiber.StatusConflict, "submission already submitted")
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
