package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fieldscan/internal/models"
	"fieldscan/internal/queue"
	"fieldscan/internal/repository"
	"fieldscan/pkg/ocr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

var (
	ErrScanNotFound  = errors.New("scan not found")
	ErrNoFile        = errors.New("file is required")
	ErrNotAnImage    = errors.New("uploaded file is not an image")
	ErrFileMissing   = errors.New("original file is no longer available")
	ErrRetryConflict = errors.New("scan is not in a retryable state")
)

// ocrUnavailableMessage is recorded on a scan when the engine health check
// fails before processing.
const ocrUnavailableMessage = "OCR service is not available"

// ScanStore is the persistence the state machine drives.
type ScanStore interface {
	Create(ctx context.Context, scan *models.DocumentScan) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.DocumentScan, error)
	List(ctx context.Context, filter repository.ScanFilter) ([]*models.DocumentScan, error)
	SetProcessing(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error
	Complete(ctx context.Context, scan *models.DocumentScan, matches []*models.DocumentMatch) error
	ResetForRetry(ctx context.Context, id uuid.UUID) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// OCREngine is the pluggable OCR contract.
type OCREngine interface {
	HealthCheck(ctx context.Context) bool
	ProcessImage(ctx context.Context, path string) (*ocr.Result, error)
}

// Matcher produces ranked candidates for a completed scan.
type Matcher interface {
	FindMatches(ctx context.Context, extracted *models.ExtractedData, docType models.DocumentType) ([]models.CandidateMatch, error)
}

// JobQueue accepts processing jobs; Submit fails fast at capacity.
type JobQueue interface {
	Submit(job queue.Job) error
}

// ScanService owns the lifecycle of one uploaded document scan:
// pending -> processing -> completed|failed, with explicit retry.
type ScanService struct {
	scans     ScanStore
	matcher   Matcher
	ocrEngine OCREngine
	jobs      JobQueue
	uploadDir string
	logger    *zap.Logger
}

func NewScanService(
	scans ScanStore,
	matcher Matcher,
	ocrEngine OCREngine,
	jobs JobQueue,
	uploadDir string,
	logger *zap.Logger,
) *ScanService {
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		logger.Warn("Failed to create upload directory", zap.Error(err))
	}

	return &ScanService{
		scans:     scans,
		matcher:   matcher,
		ocrEngine: ocrEngine,
		jobs:      jobs,
		uploadDir: uploadDir,
		logger:    logger,
	}
}

// Upload validates and stores the file, creates the pending scan record, and
// hands processing to the worker pool. The response returns before any OCR
// work begins. Validation failures happen before any database write and clean
// up whatever bytes were stored.
func (s *ScanService) Upload(ctx context.Context, userID uuid.UUID, projectID *uuid.UUID, fileHeader *multipart.FileHeader) (*models.DocumentScan, error) {
	if fileHeader == nil || fileHeader.Size == 0 {
		return nil, ErrNoFile
	}
	if declared := fileHeader.Header.Get("Content-Type"); declared != "" && !strings.HasPrefix(declared, "image/") {
		return nil, ErrNotAnImage
	}

	src, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	scanID := uuid.New()
	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if ext != "" && !ocr.IsImagePath(fileHeader.Filename) {
		return nil, ErrNotAnImage
	}
	filePath := filepath.Join(s.uploadDir, scanID.String()+ext)

	dst, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(filePath)
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}
	dst.Close()

	// Sniff the stored bytes; the declared content type is client-controlled.
	if !sniffIsImage(filePath) {
		os.Remove(filePath)
		return nil, ErrNotAnImage
	}

	now := time.Now()
	scan := &models.DocumentScan{
		ID:         scanID,
		FilePath:   filePath,
		FileName:   fileHeader.Filename,
		ProjectID:  projectID,
		UploadedBy: userID,
		Status:     models.ScanStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.scans.Create(ctx, scan); err != nil {
		os.Remove(filePath)
		return nil, fmt.Errorf("failed to create scan record: %w", err)
	}

	if err := s.jobs.Submit(queue.Job{ScanID: scanID}); err != nil {
		// Keep upload all-or-nothing: no stranded pending scans.
		if delErr := s.scans.Delete(ctx, scanID); delErr != nil {
			s.logger.Error("Failed to roll back scan after queue rejection",
				zap.String("scan_id", scanID.String()), zap.Error(delErr))
		}
		os.Remove(filePath)
		return nil, err
	}

	return scan, nil
}

// Process is the background transition for one scan. Every failure inside it
// is caught and recorded on the scan; nothing propagates to the worker pool.
func (s *ScanService) Process(ctx context.Context, job queue.Job) {
	log := s.logger.With(zap.String("scan_id", job.ScanID.String()))

	scan, err := s.scans.GetByID(ctx, job.ScanID)
	if err != nil {
		log.Error("Scan lookup failed, dropping job", zap.Error(err))
		return
	}

	if err := s.scans.SetProcessing(ctx, scan.ID); err != nil {
		log.Error("Failed to mark scan processing", zap.Error(err))
		return
	}

	if !s.ocrEngine.HealthCheck(ctx) {
		s.fail(ctx, scan.ID, ocrUnavailableMessage)
		return
	}

	result, err := s.ocrEngine.ProcessImage(ctx, scan.FilePath)
	if err != nil {
		s.fail(ctx, scan.ID, err.Error())
		return
	}
	if !result.Success {
		message := result.Err
		if message == "" {
			message = "OCR processing failed"
		}
		s.fail(ctx, scan.ID, message)
		return
	}

	now := time.Now()
	scan.Status = models.ScanStatusCompleted
	scan.DocumentType = documentTypeFromOCR(result.DocumentType)
	scan.Extracted = extractedFromOCR(result.Extracted)
	scan.Confidence = result.Confidence
	scan.ProcessedAt = &now

	// Matching fails open: diagnostics are logged per matcher, and a scan
	// whose matchers all failed still completes with an empty match set.
	candidates, err := s.matcher.FindMatches(ctx, scan.Extracted, scan.DocumentType)
	if err != nil {
		log.Warn("Matching produced no results", zap.Error(err))
		candidates = nil
	}

	matches := make([]*models.DocumentMatch, 0, len(candidates))
	for _, c := range candidates {
		matches = append(matches, &models.DocumentMatch{
			ID:              uuid.New(),
			ScanID:          scan.ID,
			EntityType:      c.EntityType,
			EntityID:        c.EntityID,
			ConfidenceScore: c.ConfidenceScore,
			MatchReasons:    c.Reasons,
			CreatedAt:       now,
		})
	}

	if err := s.scans.Complete(ctx, scan, matches); err != nil {
		s.fail(ctx, scan.ID, err.Error())
		return
	}

	log.Info("Scan processed",
		zap.String("document_type", string(scan.DocumentType)),
		zap.Float64("confidence", scan.Confidence),
		zap.Int("matches", len(matches)),
	)
}

// Retry re-enters processing for a failed scan, or a completed scan whose
// matches were all wrong. The transition is guarded atomically against a
// still-running processing task.
func (s *ScanService) Retry(ctx context.Context, scanID uuid.UUID) (*models.DocumentScan, error) {
	scan, err := s.scans.GetByID(ctx, scanID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrScanNotFound
		}
		return nil, err
	}

	if _, err := os.Stat(scan.FilePath); err != nil {
		return nil, ErrFileMissing
	}

	ok, err := s.scans.ResetForRetry(ctx, scanID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRetryConflict
	}

	if err := s.jobs.Submit(queue.Job{ScanID: scanID}); err != nil {
		// Leave the scan failed so the retry stays available.
		if failErr := s.scans.MarkFailed(ctx, scanID, err.Error()); failErr != nil {
			s.logger.Error("Failed to record queue rejection on scan",
				zap.String("scan_id", scanID.String()), zap.Error(failErr))
		}
		return nil, err
	}

	scan.Status = models.ScanStatusPending
	scan.ErrorMessage = nil
	return scan, nil
}

func (s *ScanService) Get(ctx context.Context, scanID uuid.UUID) (*models.DocumentScan, error) {
	scan, err := s.scans.GetByID(ctx, scanID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrScanNotFound
		}
		return nil, err
	}
	return scan, nil
}

func (s *ScanService) List(ctx context.Context, filter repository.ScanFilter) ([]*models.DocumentScan, error) {
	return s.scans.List(ctx, filter)
}

func (s *ScanService) fail(ctx context.Context, scanID uuid.UUID, message string) {
	s.logger.Warn("Scan failed",
		zap.String("scan_id", scanID.String()),
		zap.String("error", message),
	)
	if err := s.scans.MarkFailed(ctx, scanID, message); err != nil {
		s.logger.Error("Failed to record scan failure",
			zap.String("scan_id", scanID.String()),
			zap.Error(err),
		)
	}
}

func documentTypeFromOCR(value string) models.DocumentType {
	switch models.DocumentType(value) {
	case models.DocumentTypePurchaseOrder, models.DocumentTypeInvoice,
		models.DocumentTypeBill, models.DocumentTypeExpense:
		return models.DocumentType(value)
	default:
		return models.DocumentTypeUnknown
	}
}

func extractedFromOCR(fields *ocr.Fields) *models.ExtractedData {
	if fields == nil {
		return &models.ExtractedData{}
	}
	return &models.ExtractedData{
		DocumentNumber: fields.DocumentNumber,
		Date:           fields.Date,
		Amount:         fields.Amount,
		TotalAmount:    fields.TotalAmount,
		VendorName:     fields.VendorName,
	}
}

// sniffIsImage checks the stored file's magic bytes.
func sniffIsImage(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := f.Read(head)
	if err != nil && err != io.EOF {
		return false
	}

	return strings.HasPrefix(http.DetectContentType(head[:n]), "image/")
}
