package service

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fieldscan/internal/models"
	"fieldscan/internal/queue"
	"fieldscan/internal/repository"
	"fieldscan/pkg/ocr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// pngHeader is enough signature bytes for content sniffing to say image/png.
var pngHeader = []byte("\x89PNG\r\n\x1a\n")

type fakeScanStore struct {
	scans map[uuid.UUID]*models.DocumentScan

	created    []uuid.UUID
	deleted    []uuid.UUID
	processing []uuid.UUID
	failed     map[uuid.UUID]string

	completedScan    *models.DocumentScan
	completedMatches []*models.DocumentMatch

	resetOK     bool
	resetCalled bool
	createErr   error
	completeErr error
}

func newFakeScanStore() *fakeScanStore {
	return &fakeScanStore{
		scans:  make(map[uuid.UUID]*models.DocumentScan),
		failed: make(map[uuid.UUID]string),
	}
}

func (f *fakeScanStore) Create(ctx context.Context, scan *models.DocumentScan) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.scans[scan.ID] = scan
	f.created = append(f.created, scan.ID)
	return nil
}

func (f *fakeScanStore) GetByID(ctx context.Context, id uuid.UUID) (*models.DocumentScan, error) {
	scan, ok := f.scans[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return scan, nil
}

func (f *fakeScanStore) List(ctx context.Context, filter repository.ScanFilter) ([]*models.DocumentScan, error) {
	var out []*models.DocumentScan
	for _, scan := range f.scans {
		out = append(out, scan)
	}
	return out, nil
}

func (f *fakeScanStore) SetProcessing(ctx context.Context, id uuid.UUID) error {
	f.processing = append(f.processing, id)
	if scan, ok := f.scans[id]; ok {
		scan.Status = models.ScanStatusProcessing
	}
	return nil
}

func (f *fakeScanStore) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	f.failed[id] = message
	if scan, ok := f.scans[id]; ok {
		scan.Status = models.ScanStatusFailed
		scan.ErrorMessage = &message
	}
	return nil
}

func (f *fakeScanStore) Complete(ctx context.Context, scan *models.DocumentScan, matches []*models.DocumentMatch) error {
	if f.completeErr != nil {
		return f.completeErr
	}
	f.completedScan = scan
	f.completedMatches = matches
	f.scans[scan.ID] = scan
	return nil
}

func (f *fakeScanStore) ResetForRetry(ctx context.Context, id uuid.UUID) (bool, error) {
	f.resetCalled = true
	if f.resetOK {
		if scan, ok := f.scans[id]; ok {
			scan.Status = models.ScanStatusPending
		}
	}
	return f.resetOK, nil
}

func (f *fakeScanStore) Delete(ctx context.Context, id uuid.UUID) error {
	delete(f.scans, id)
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeOCREngine struct {
	healthy bool
	result  *ocr.Result
	err     error
}

func (f *fakeOCREngine) HealthCheck(ctx context.Context) bool {
	return f.healthy
}

func (f *fakeOCREngine) ProcessImage(ctx context.Context, path string) (*ocr.Result, error) {
	return f.result, f.err
}

type fakeMatcher struct {
	candidates []models.CandidateMatch
	err        error
}

func (f *fakeMatcher) FindMatches(ctx context.Context, extracted *models.ExtractedData, docType models.DocumentType) ([]models.CandidateMatch, error) {
	return f.candidates, f.err
}

type fakeJobQueue struct {
	jobs      []queue.Job
	submitErr error
}

func (f *fakeJobQueue) Submit(job queue.Job) error {
	if f.submitErr != nil {
		return f.submitErr
	}
	f.jobs = append(f.jobs, job)
	return nil
}

func makeFileHeader(t *testing.T, filename, contentType string, content []byte) *multipart.FileHeader {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&buf, w.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })

	files := form.File["file"]
	require.Len(t, files, 1)
	return files[0]
}

func newTestScanService(t *testing.T, store *fakeScanStore, matcher Matcher, engine OCREngine, jobs JobQueue) *ScanService {
	t.Helper()
	return NewScanService(store, matcher, engine, jobs, t.TempDir(), zap.NewNop())
}

func TestUploadRequiresFile(t *testing.T) {
	svc := newTestScanService(t, newFakeScanStore(), &fakeMatcher{}, &fakeOCREngine{healthy: true}, &fakeJobQueue{})

	_, err := svc.Upload(context.Background(), uuid.New(), nil, nil)
	assert.ErrorIs(t, err, ErrNoFile)
}

func TestUploadRejectsDeclaredNonImage(t *testing.T) {
	store := newFakeScanStore()
	svc := newTestScanService(t, store, &fakeMatcher{}, &fakeOCREngine{healthy: true}, &fakeJobQueue{})

	header := makeFileHeader(t, "report.pdf", "application/pdf", []byte("%PDF-1.4"))

	_, err := svc.Upload(context.Background(), uuid.New(), nil, header)
	assert.ErrorIs(t, err, ErrNotAnImage)
	assert.Empty(t, store.created)
}

func TestUploadRejectsMislabeledContent(t *testing.T) {
	store := newFakeScanStore()
	svc := newTestScanService(t, store, &fakeMatcher{}, &fakeOCREngine{healthy: true}, &fakeJobQueue{})

	// Declared as an image, but the bytes are plain text.
	header := makeFileHeader(t, "receipt.jpg", "image/jpeg", []byte("definitely not an image"))

	_, err := svc.Upload(context.Background(), uuid.New(), nil, header)
	assert.ErrorIs(t, err, ErrNotAnImage)
	assert.Empty(t, store.created, "no scan row may exist for a rejected upload")
}

func TestUploadCreatesPendingScanAndEnqueues(t *testing.T) {
	store := newFakeScanStore()
	jobs := &fakeJobQueue{}
	svc := newTestScanService(t, store, &fakeMatcher{}, &fakeOCREngine{healthy: true}, jobs)

	header := makeFileHeader(t, "receipt.png", "image/png", pngHeader)

	userID := uuid.New()
	scan, err := svc.Upload(context.Background(), userID, nil, header)
	require.NoError(t, err)

	assert.Equal(t, models.ScanStatusPending, scan.Status)
	assert.Equal(t, "receipt.png", scan.FileName)
	assert.Equal(t, userID, scan.UploadedBy)

	require.Len(t, jobs.jobs, 1)
	assert.Equal(t, scan.ID, jobs.jobs[0].ScanID)

	_, err = os.Stat(scan.FilePath)
	assert.NoError(t, err, "stored file must exist after upload")
}

func TestUploadRollsBackWhenQueueFull(t *testing.T) {
	store := newFakeScanStore()
	jobs := &fakeJobQueue{submitErr: queue.ErrQueueFull}
	svc := newTestScanService(t, store, &fakeMatcher{}, &fakeOCREngine{healthy: true}, jobs)

	header := makeFileHeader(t, "receipt.png", "image/png", pngHeader)

	_, err := svc.Upload(context.Background(), uuid.New(), nil, header)
	require.ErrorIs(t, err, queue.ErrQueueFull)

	require.Len(t, store.created, 1)
	assert.Equal(t, store.created, store.deleted, "scan row must be rolled back")
	assert.Empty(t, store.scans)
}

func seedScan(store *fakeScanStore, status models.ScanStatus, filePath string) *models.DocumentScan {
	scan := &models.DocumentScan{
		ID:        uuid.New(),
		FilePath:  filePath,
		FileName:  filepath.Base(filePath),
		Status:    status,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	store.scans[scan.ID] = scan
	return scan
}

func TestProcessCompletesScanWithMatches(t *testing.T) {
	store := newFakeScanStore()
	scan := seedScan(store, models.ScanStatusPending, "/tmp/receipt.png")

	entityID := uuid.New()
	matcher := &fakeMatcher{
		candidates: []models.CandidateMatch{
			{
				EntityType:      models.EntityTypePurchaseOrder,
				EntityID:        entityID,
				ConfidenceScore: 0.9,
				Reasons:         []string{"Number match: PO-1001"},
			},
		},
	}
	engine := &fakeOCREngine{
		healthy: true,
		result: &ocr.Result{
			Success:      true,
			DocumentType: "purchase_order",
			Confidence:   0.82,
			Extracted: &ocr.Fields{
				DocumentNumber: "PO-1001",
				TotalAmount:    2450.00,
			},
		},
	}
	svc := newTestScanService(t, store, matcher, engine, &fakeJobQueue{})

	svc.Process(context.Background(), queue.Job{ScanID: scan.ID})

	require.NotNil(t, store.completedScan)
	assert.Equal(t, models.ScanStatusCompleted, store.completedScan.Status)
	assert.Equal(t, models.DocumentTypePurchaseOrder, store.completedScan.DocumentType)
	assert.Equal(t, 0.82, store.completedScan.Confidence)
	require.NotNil(t, store.completedScan.Extracted)
	assert.Equal(t, "PO-1001", store.completedScan.Extracted.DocumentNumber)
	require.NotNil(t, store.completedScan.ProcessedAt)

	require.Len(t, store.completedMatches, 1)
	match := store.completedMatches[0]
	assert.Equal(t, scan.ID, match.ScanID)
	assert.Equal(t, entityID, match.EntityID)
	assert.Equal(t, 0.9, match.ConfidenceScore)
	assert.False(t, match.Confirmed)

	assert.Contains(t, store.processing, scan.ID)
}

func TestProcessFailsWhenOCRUnavailable(t *testing.T) {
	store := newFakeScanStore()
	scan := seedScan(store, models.ScanStatusPending, "/tmp/receipt.png")

	engine := &fakeOCREngine{healthy: false}
	svc := newTestScanService(t, store, &fakeMatcher{}, engine, &fakeJobQueue{})

	svc.Process(context.Background(), queue.Job{ScanID: scan.ID})

	assert.Equal(t, "OCR service is not available", store.failed[scan.ID])
	assert.Nil(t, store.completedScan)
}

func TestProcessFailsOnUnsuccessfulOCR(t *testing.T) {
	store := newFakeScanStore()
	scan := seedScan(store, models.ScanStatusPending, "/tmp/receipt.png")

	engine := &fakeOCREngine{
		healthy: true,
		result:  &ocr.Result{Success: false, Err: "no text found in image"},
	}
	svc := newTestScanService(t, store, &fakeMatcher{}, engine, &fakeJobQueue{})

	svc.Process(context.Background(), queue.Job{ScanID: scan.ID})

	assert.Equal(t, "no text found in image", store.failed[scan.ID])
	assert.Nil(t, store.completedScan)
}

func TestProcessCompletesDespiteMatchingFailure(t *testing.T) {
	store := newFakeScanStore()
	scan := seedScan(store, models.ScanStatusPending, "/tmp/receipt.png")

	matcher := &fakeMatcher{err: assert.AnError}
	engine := &fakeOCREngine{
		healthy: true,
		result: &ocr.Result{
			Success:      true,
			DocumentType: "invoice",
			Confidence:   0.5,
			Extracted:    &ocr.Fields{DocumentNumber: "INV-9"},
		},
	}
	svc := newTestScanService(t, store, matcher, engine, &fakeJobQueue{})

	svc.Process(context.Background(), queue.Job{ScanID: scan.ID})

	require.NotNil(t, store.completedScan, "matching failure must not fail the scan")
	assert.Equal(t, models.ScanStatusCompleted, store.completedScan.Status)
	assert.Empty(t, store.completedMatches)
	assert.Empty(t, store.failed)
}

func TestProcessNormalizesUnknownDocumentType(t *testing.T) {
	store := newFakeScanStore()
	scan := seedScan(store, models.ScanStatusPending, "/tmp/receipt.png")

	engine := &fakeOCREngine{
		healthy: true,
		result:  &ocr.Result{Success: true, DocumentType: "mystery", Extracted: &ocr.Fields{}},
	}
	svc := newTestScanService(t, store, &fakeMatcher{}, engine, &fakeJobQueue{})

	svc.Process(context.Background(), queue.Job{ScanID: scan.ID})

	require.NotNil(t, store.completedScan)
	assert.Equal(t, models.DocumentTypeUnknown, store.completedScan.DocumentType)
}

func TestRetryUnknownScan(t *testing.T) {
	svc := newTestScanService(t, newFakeScanStore(), &fakeMatcher{}, &fakeOCREngine{healthy: true}, &fakeJobQueue{})

	_, err := svc.Retry(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrScanNotFound)
}

func TestRetryMissingFile(t *testing.T) {
	store := newFakeScanStore()
	scan := seedScan(store, models.ScanStatusFailed, filepath.Join(t.TempDir(), "gone.png"))
	svc := newTestScanService(t, store, &fakeMatcher{}, &fakeOCREngine{healthy: true}, &fakeJobQueue{})

	_, err := svc.Retry(context.Background(), scan.ID)
	assert.ErrorIs(t, err, ErrFileMissing)
}

func TestRetryConflict(t *testing.T) {
	store := newFakeScanStore()
	store.resetOK = false

	filePath := filepath.Join(t.TempDir(), "receipt.png")
	require.NoError(t, os.WriteFile(filePath, pngHeader, 0644))
	scan := seedScan(store, models.ScanStatusProcessing, filePath)

	svc := newTestScanService(t, store, &fakeMatcher{}, &fakeOCREngine{healthy: true}, &fakeJobQueue{})

	_, err := svc.Retry(context.Background(), scan.ID)
	assert.ErrorIs(t, err, ErrRetryConflict)
	assert.True(t, store.resetCalled)
}

func TestRetryResubmitsJob(t *testing.T) {
	store := newFakeScanStore()
	store.resetOK = true

	filePath := filepath.Join(t.TempDir(), "receipt.png")
	require.NoError(t, os.WriteFile(filePath, pngHeader, 0644))
	scan := seedScan(store, models.ScanStatusFailed, filePath)

	jobs := &fakeJobQueue{}
	svc := newTestScanService(t, store, &fakeMatcher{}, &fakeOCREngine{healthy: true}, jobs)

	result, err := svc.Retry(context.Background(), scan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ScanStatusPending, result.Status)
	assert.Nil(t, result.ErrorMessage)

	require.Len(t, jobs.jobs, 1)
	assert.Equal(t, scan.ID, jobs.jobs[0].ScanID)
}

func TestRetryQueueFullLeavesScanFailed(t *testing.T) {
	store := newFakeScanStore()
	store.resetOK = true

	filePath := filepath.Join(t.TempDir(), "receipt.png")
	require.NoError(t, os.WriteFile(filePath, pngHeader, 0644))
	scan := seedScan(store, models.ScanStatusFailed, filePath)

	jobs := &fakeJobQueue{submitErr: queue.ErrQueueFull}
	svc := newTestScanService(t, store, &fakeMatcher{}, &fakeOCREngine{healthy: true}, jobs)

	_, err := svc.Retry(context.Background(), scan.ID)
	require.ErrorIs(t, err, queue.ErrQueueFull)
	assert.Equal(t, queue.ErrQueueFull.Error(), store.failed[scan.ID])
}
