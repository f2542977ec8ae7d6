package handlers

import (
	"errors"

	"fieldscan/internal/dto"
	"fieldscan/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type MatchHandler struct {
	matchService *service.MatchService
	logger       *zap.Logger
}

func NewMatchHandler(matchService *service.MatchService, logger *zap.Logger) *MatchHandler {
	return &MatchHandler{
		matchService: matchService,
		logger:       logger,
	}
}

// ListMatches godoc
// @Summary List candidate matches for a scan
// @Description Unconfirmed matches ranked by confidence, with reasons
// @Tags matches
// @Produce json
// @Param id path string true "Scan ID"
// @Security Bearer
// @Success 200 {array} dto.MatchResponse
// @Failure 404 {object} map[string]string
// @Router /api/v1/scans/{id}/matches [get]
func (h *MatchHandler) ListMatches(c *fiber.Ctx) error {
	scanID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid scan ID",
		})
	}

	matches, err := h.matchService.ListMatches(c.Context(), scanID)
	if err != nil {
		if errors.Is(err, service.ErrScanNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Scan not found"})
		}
		h.logger.Error("Failed to list matches", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list matches",
		})
	}

	responses := make([]*dto.MatchResponse, len(matches))
	for i, match := range matches {
		responses[i] = dto.NewMatchResponse(match)
	}

	return c.JSON(responses)
}

// ConfirmMatch godoc
// @Summary Confirm one match as authoritative
// @Description Confirms the match and unconfirms every sibling of the scan
// @Tags matches
// @Produce json
// @Param id path string true "Scan ID"
// @Param matchID path string true "Match ID"
// @Security Bearer
// @Success 204
// @Failure 404 {object} map[string]string
// @Router /api/v1/scans/{id}/matches/{matchID}/confirm [post]
func (h *MatchHandler) ConfirmMatch(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	scanID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid scan ID",
		})
	}
	matchID, err := uuid.Parse(c.Params("matchID"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid match ID",
		})
	}

	if err := h.matchService.Confirm(c.Context(), scanID, matchID, userID); err != nil {
		if errors.Is(err, service.ErrMatchNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Match not found for scan"})
		}
		h.logger.Error("Failed to confirm match", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to confirm match",
		})
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// RejectMatches godoc
// @Summary Reject all candidate matches for a scan
// @Description Removes every unconfirmed match so the document can be linked manually
// @Tags matches
// @Produce json
// @Param id path string true "Scan ID"
// @Security Bearer
// @Success 204
// @Failure 404 {object} map[string]string
// @Router /api/v1/scans/{id}/matches/reject [post]
func (h *MatchHandler) RejectMatches(c *fiber.Ctx) error {
	scanID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid scan ID",
		})
	}

	if err := h.matchService.RejectAll(c.Context(), scanID); err != nil {
		if errors.Is(err, service.ErrScanNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Scan not found"})
		}
		h.logger.Error("Failed to reject matches", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to reject matches",
		})
	}

	return c.SendStatus(fiber.StatusNoContent)
}
