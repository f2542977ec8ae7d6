package handlers

import (
	"errors"

	"fieldscan/internal/dto"
	"fieldscan/internal/models"
	"fieldscan/internal/queue"
	"fieldscan/internal/repository"
	"fieldscan/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ScanHandler struct {
	scanService *service.ScanService
	logger      *zap.Logger
}

func NewScanHandler(scanService *service.ScanService, logger *zap.Logger) *ScanHandler {
	return &ScanHandler{
		scanService: scanService,
		logger:      logger,
	}
}

// UploadScan godoc
// @Summary Upload a document scan
// @Description Upload a photographed financial document for OCR and matching
// @Tags scans
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Document image"
// @Param project_id formData string false "Project the document belongs to"
// @Security Bearer
// @Success 201 {object} dto.ScanResponse
// @Failure 400 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /api/v1/scans/upload [post]
func (h *ScanHandler) UploadScan(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "File is required",
		})
	}

	var projectID *uuid.UUID
	if raw := c.FormValue("project_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid project ID",
			})
		}
		projectID = &id
	}

	scan, err := h.scanService.Upload(c.Context(), userID, projectID, fileHeader)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoFile):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, service.ErrNotAnImage):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, queue.ErrQueueFull), errors.Is(err, queue.ErrStopped):
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
		}
		h.logger.Error("Failed to upload scan", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to upload scan",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(dto.NewScanResponse(scan))
}

// GetScan godoc
// @Summary Get a scan by id
// @Tags scans
// @Produce json
// @Param id path string true "Scan ID"
// @Security Bearer
// @Success 200 {object} dto.ScanResponse
// @Failure 404 {object} map[string]string
// @Router /api/v1/scans/{id} [get]
func (h *ScanHandler) GetScan(c *fiber.Ctx) error {
	scanID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid scan ID",
		})
	}

	scan, err := h.scanService.Get(c.Context(), scanID)
	if err != nil {
		if errors.Is(err, service.ErrScanNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Scan not found"})
		}
		h.logger.Error("Failed to get scan", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get scan",
		})
	}

	return c.JSON(dto.NewScanResponse(scan))
}

// ListScans godoc
// @Summary List scans
// @Tags scans
// @Produce json
// @Param status query string false "Filter by status"
// @Param document_type query string false "Filter by document type"
// @Param project_id query string false "Filter by project"
// @Param limit query int false "Limit" default(20)
// @Param offset query int false "Offset" default(0)
// @Security Bearer
// @Success 200 {array} dto.ScanResponse
// @Router /api/v1/scans [get]
func (h *ScanHandler) ListScans(c *fiber.Ctx) error {
	filter := repository.ScanFilter{
		Status:       models.ScanStatus(c.Query("status")),
		DocumentType: models.DocumentType(c.Query("document_type")),
		Limit:        c.QueryInt("limit", 20),
		Offset:       c.QueryInt("offset", 0),
	}

	if raw := c.Query("project_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid project ID",
			})
		}
		filter.ProjectID = &id
	}

	scans, err := h.scanService.List(c.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list scans", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list scans",
		})
	}

	responses := make([]*dto.ScanResponse, len(scans))
	for i, scan := range scans {
		responses[i] = dto.NewScanResponse(scan)
	}

	return c.JSON(responses)
}

// RetryScan godoc
// @Summary Retry a failed scan
// @Description Reset a failed (or completed but unconfirmed) scan and reprocess it
// @Tags scans
// @Produce json
// @Param id path string true "Scan ID"
// @Security Bearer
// @Success 202 {object} dto.ScanResponse
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /api/v1/scans/{id}/retry [post]
func (h *ScanHandler) RetryScan(c *fiber.Ctx) error {
	scanID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid scan ID",
		})
	}

	scan, err := h.scanService.Retry(c.Context(), scanID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrScanNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Scan not found"})
		case errors.Is(err, service.ErrFileMissing):
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, service.ErrRetryConflict):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, queue.ErrQueueFull), errors.Is(err, queue.ErrStopped):
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
		}
		h.logger.Error("Failed to retry scan", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retry scan",
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(dto.NewScanResponse(scan))
}

func getUserID(c *fiber.Ctx) (uuid.UUID, error) {
	userIDStr, ok := c.Locals("userID").(string)
	if !ok {
		return uuid.Nil, fiber.ErrUnauthorized
	}
	return uuid.Parse(userIDStr)
}
