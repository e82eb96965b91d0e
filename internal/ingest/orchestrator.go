package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"estudai.com/study-platform/internal/chunker"
	"estudai.com/study-platform/internal/extract"
	"estudai.com/study-platform/internal/store"
	"estudai.com/study-platform/internal/vectorindex"
)

// CategoryEdital is the reserved document category that drives the
// structured-extraction path. All other categories are an open set.
const CategoryEdital = "edital"

var (
	ErrUnsupportedFile = errors.New("unsupported file type")
	ErrFileTooLarge    = errors.New("file exceeds the upload size limit")
)

var allowedExtensions = map[string]struct{}{
	".pdf": {}, ".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {}, ".txt": {}, ".md": {},
}

const analysisTimeout = 2 * time.Minute

// DocumentStore is the slice of the storage collaborator the orchestrator
// consumes. *store.SQLiteStore satisfies this.
type DocumentStore interface {
	CreateDocument(userID int64, title, category, status string) (*store.Document, error)
	GetDocumentByID(docID string, userID int64) (*store.Document, error)
	UpdateDocument(docID string, patch store.DocumentPatch) error
	CreateJob(documentID string) (*store.ProcessingJob, error)
	UpdateJob(jobID, status string, progress int, errMsg *string) error
}

// BatchEmbedder embeds chunk texts 1:1. *embedding.Gateway satisfies this.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Upserter writes chunk vectors. *vectorindex.Gateway satisfies this.
type Upserter interface {
	Upsert(ctx context.Context, ownerKey string, records []vectorindex.ChunkRecord) error
}

// Analyzer produces the structured payload. *extract.Extractor satisfies this.
type Analyzer interface {
	Analyze(ctx context.Context, ownerKey, documentID string) (*extract.Result, error)
	AnalyzeLocal(rawText string) *extract.Result
}

// Upload describes one incoming file already spooled to a temp path.
type Upload struct {
	TempPath string
	FileName string
	Title    string
	Category string
	Size     int64
}

// Orchestrator runs the document state machine:
// uploaded -> processing -> indexed|chunked -> completed, failed from any
// non-terminal state. The upload response returns as soon as ingestion
// finishes; structured analysis runs on a deferred timer and callers poll
// document status.
type Orchestrator struct {
	store       DocumentStore
	processor   *ProcessorClient // nil means local-only ingestion
	textExtract TextExtractor
	embedder    BatchEmbedder
	index       Upserter
	analyzer    Analyzer
	log         *logrus.Logger

	maxUploadBytes int64
	maxChunkSize   int
	analysisDelay  time.Duration

	// schedule defers the analysis pass; swapped for a synchronous variant
	// in tests.
	schedule func(d time.Duration, f func())
}

type Config struct {
	MaxUploadBytes int64
	MaxChunkSize   int
	AnalysisDelay  time.Duration
}

func NewOrchestrator(st DocumentStore, processor *ProcessorClient, textExtract TextExtractor, embedder BatchEmbedder, index Upserter, analyzer Analyzer, cfg Config, log *logrus.Logger) *Orchestrator {
	if log == nil {
		log = logrus.New()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 25 * 1024 * 1024
	}
	if cfg.MaxChunkSize <= 0 {
		cfg.MaxChunkSize = chunker.DefaultMaxChunkSize
	}
	return &Orchestrator{
		store:          st,
		processor:      processor,
		textExtract:    textExtract,
		embedder:       embedder,
		index:          index,
		analyzer:       analyzer,
		log:            log,
		maxUploadBytes: cfg.MaxUploadBytes,
		maxChunkSize:   cfg.MaxChunkSize,
		analysisDelay:  cfg.AnalysisDelay,
		schedule: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
}

// OwnerKey is the per-user namespace every vector-index write and read is
// scoped to.
func OwnerKey(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}

// ProcessUpload validates and ingests one document. Validation failures are
// returned before anything is persisted; every later failure is recorded on
// the document instead, so callers observe a status plus optional message,
// never a raw provider error. The temp file is removed on every exit path.
func (o *Orchestrator) ProcessUpload(ctx context.Context, userID int64, up Upload) (*store.Document, error) {
	if err := o.validate(up); err != nil {
		return nil, err
	}

	doc, err := o.store.CreateDocument(userID, up.Title, up.Category, store.DocStatusProcessing)
	if err != nil {
		return nil, fmt.Errorf("failed to persist document record: %w", err)
	}
	job, err := o.store.CreateJob(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to persist processing job: %w", err)
	}
	_ = o.store.UpdateJob(job.ID, store.JobStatusProcessing, 10, nil)

	defer func() {
		if err := os.Remove(up.TempPath); err != nil && !os.IsNotExist(err) {
			o.log.WithError(err).WithField("path", up.TempPath).Warn("Failed to remove temp upload")
		}
	}()

	if o.processor != nil {
		resp, err := o.processor.ProcessDocument(ctx, up.TempPath, up.FileName, up.Title, OwnerKey(userID))
		if err == nil {
			o.log.WithFields(logrus.Fields{
				"document": doc.ID,
				"job":      resp.JobID,
				"chunks":   resp.Chunks,
			}).Info("External processing succeeded")

			status := store.DocStatusIndexed
			_ = o.store.UpdateDocument(doc.ID, store.DocumentPatch{Status: &status, ExternalJobID: &resp.JobID})
			_ = o.store.UpdateJob(job.ID, store.JobStatusProcessing, 70, nil)
			o.scheduleAnalysis(doc.ID, job.ID, userID, up.Category, false)
			doc.Status = status
			return doc, nil
		}
		o.log.WithError(err).Warn("External processing failed, falling back to local extraction")
	}

	if err := o.ingestLocally(ctx, userID, doc, up); err != nil {
		o.recordFailure(doc.ID, job.ID, err)
		doc.Status = store.DocStatusFailed
		return doc, nil
	}
	_ = o.store.UpdateJob(job.ID, store.JobStatusProcessing, 70, nil)
	o.scheduleAnalysis(doc.ID, job.ID, userID, up.Category, true)
	doc.Status = store.DocStatusChunked
	return doc, nil
}

func (o *Orchestrator) validate(up Upload) error {
	ext := strings.ToLower(filepath.Ext(up.FileName))
	if _, ok := allowedExtensions[ext]; !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedFile, ext)
	}
	if up.Size > o.maxUploadBytes {
		return fmt.Errorf("%w: %d bytes", ErrFileTooLarge, up.Size)
	}
	return nil
}

// ingestLocally is the degraded path: extract text, chunk, embed, index.
func (o *Orchestrator) ingestLocally(ctx context.Context, userID int64, doc *store.Document, up Upload) error {
	text, err := o.textExtract.ExtractText(up.TempPath)
	if err != nil {
		return fmt.Errorf("local text extraction failed: %w", err)
	}

	chunks := chunker.Split(text, o.maxChunkSize)
	if len(chunks) == 0 {
		return errors.New("document contains no extractable text")
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := o.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("chunk embedding failed: %w", err)
	}

	records := make([]vectorindex.ChunkRecord, len(chunks))
	for i, c := range chunks {
		records[i] = vectorindex.ChunkRecord{
			DocumentID: doc.ID,
			ChunkIndex: c.Index,
			Content:    c.Content,
			Title:      doc.Title,
			Category:   doc.Category,
			Vector:     vectors[i],
		}
	}
	if err := o.index.Upsert(ctx, OwnerKey(userID), records); err != nil {
		return fmt.Errorf("chunk indexing failed: %w", err)
	}

	status := store.DocStatusChunked
	return o.store.UpdateDocument(doc.ID, store.DocumentPatch{Status: &status, RawText: &text})
}

// scheduleAnalysis defers the structured pass. The scheduled run always
// terminates in completed or failed; no state silently never resolves.
func (o *Orchestrator) scheduleAnalysis(docID, jobID string, userID int64, category string, localOnly bool) {
	o.schedule(o.analysisDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), analysisTimeout)
		defer cancel()
		o.runAnalysis(ctx, docID, jobID, userID, category, localOnly)
	})
}

func (o *Orchestrator) runAnalysis(ctx context.Context, docID, jobID string, userID int64, category string, localOnly bool) {
	if category != CategoryEdital {
		// Nothing structured to extract; the document is done.
		o.complete(docID, jobID, nil)
		return
	}

	var result *extract.Result
	if localOnly {
		doc, err := o.store.GetDocumentByID(docID, userID)
		if err != nil || doc == nil {
			o.recordFailure(docID, jobID, fmt.Errorf("document lookup for local analysis failed: %v", err))
			return
		}
		if doc.RawText == nil {
			o.recordFailure(docID, jobID, errors.New("no raw text available for local analysis"))
			return
		}
		result = o.analyzer.AnalyzeLocal(*doc.RawText)
	} else {
		var err error
		result, err = o.analyzer.Analyze(ctx, OwnerKey(userID), docID)
		if err != nil {
			o.recordFailure(docID, jobID, fmt.Errorf("structured analysis failed: %w", err))
			return
		}
	}

	payload, err := json.Marshal(result)
	if err != nil {
		o.recordFailure(docID, jobID, fmt.Errorf("failed to serialize structured payload: %w", err))
		return
	}
	o.complete(docID, jobID, payload)
}

func (o *Orchestrator) complete(docID, jobID string, structured []byte) {
	status := store.DocStatusCompleted
	patch := store.DocumentPatch{Status: &status}
	if structured != nil {
		patch.StructuredJSON = structured
	}
	if err := o.store.UpdateDocument(docID, patch); err != nil {
		o.log.WithError(err).WithField("document", docID).Error("Failed to mark document completed")
	}
	if err := o.store.UpdateJob(jobID, store.JobStatusCompleted, 100, nil); err != nil {
		o.log.WithError(err).WithField("job", jobID).Error("Failed to mark job completed")
	}
}

func (o *Orchestrator) recordFailure(docID, jobID string, cause error) {
	o.log.WithError(cause).WithField("document", docID).Error("Processing failed")
	msg := cause.Error()
	status := store.DocStatusFailed
	if err := o.store.UpdateDocument(docID, store.DocumentPatch{Status: &status, ErrorMessage: &msg}); err != nil {
		o.log.WithError(err).WithField("document", docID).Error("Failed to record document failure")
	}
	if err := o.store.UpdateJob(jobID, store.JobStatusFailed, 100, &msg); err != nil {
		o.log.WithError(err).WithField("job", jobID).Error("Failed to record job failure")
	}
}
