package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/geometria-labs/geometria-api/internal/dto"
	"github.com/geometria-labs/geometria-api/internal/service"
	"github.com/geometria-labs/geometria-api/internal/utils"
)

// AssessmentHandler manages the AI grading endpoints. The evaluate endpoint
// keeps a bare {"error", "details"} wire shape for compatibility with the
// existing frontend; the read endpoints use the common envelope.
type AssessmentHandler struct {
	service service.AssessmentService
	logger  zerolog.Logger
}

// NewAssessmentHandler builds an assessment handler instance.
func NewAssessmentHandler(service service.AssessmentService, logger zerolog.Logger) *AssessmentHandler {
	return &AssessmentHandler{
		service: service,
		logger:  logger.With().Str("component", "assessment_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *AssessmentHandler) Register(router fiber.Router) {
	router.Post("", h.evaluate)
	router.Get("", h.list)
	router.Get("/:id", h.get)
}

func (h *AssessmentHandler) evaluate(c *fiber.Ctx) error {
	studentID := userIDFromContext(c)
	if studentID == 0 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	var payload dto.AssessmentEvaluateRequest
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Missing required fields",
		})
	}

	result, err := h.service.Evaluate(c.Context(), studentID, payload)
	if err != nil {
		return h.evaluateError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

func (h *AssessmentHandler) evaluateError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	case errors.Is(err, service.ErrMissingFields):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Missing required fields",
		})
	case errors.Is(err, service.ErrInvalidLessonID):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid lesson ID format",
		})
	case errors.Is(err, service.ErrInvalidRubricID):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid rubric ID format",
		})
	case errors.Is(err, service.ErrStoreUnavailable):
		requestLogger(h.logger, c).Error().Err(err).Msg("assessment record creation failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create assessment record",
		})
	case errors.Is(err, service.ErrModelFailed):
		requestLogger(h.logger, c).Error().Err(err).Msg("ai evaluation failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "AI evaluation failed",
			"details": err.Error(),
		})
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("assessment request failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Internal server error",
			"details": err.Error(),
		})
	}
}

func (h *AssessmentHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	record, err := h.service.Get(c.Context(), userIDFromContext(c), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "assessment retrieved", record)
}

func (h *AssessmentHandler) list(c *fiber.Ctx) error {
	limit := parseQueryInt(c, "limit", 20)
	offset := parseQueryInt(c, "offset", 0)

	records, err := h.service.List(c.Context(), userIDFromContext(c), limit, offset)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "assessments retrieved", records)
}

func (h *AssessmentHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	case errors.Is(err, service.ErrAssessmentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "assessment not found")
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
