package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"estudai.com/study-platform/internal/auth"
	"estudai.com/study-platform/internal/extract"
	"estudai.com/study-platform/internal/ingest"
	"estudai.com/study-platform/internal/rag"
	"estudai.com/study-platform/internal/store"
	"estudai.com/study-platform/internal/vectorindex"
)

type APIHandler struct {
	store        *store.SQLiteStore
	orchestrator *ingest.Orchestrator
	pipeline     *rag.Pipeline
	extractor    *extract.Extractor
	index        *vectorindex.Gateway
	processor    *ingest.ProcessorClient // nil when no external service is configured
	log          *logrus.Logger

	maxUploadBytes int64
}

func NewAPIHandler(st *store.SQLiteStore, orchestrator *ingest.Orchestrator, pipeline *rag.Pipeline, extractor *extract.Extractor, index *vectorindex.Gateway, processor *ingest.ProcessorClient, maxUploadBytes int64, log *logrus.Logger) *APIHandler {
	if log == nil {
		log = logrus.New()
	}
	return &APIHandler{
		store:          st,
		orchestrator:   orchestrator,
		pipeline:       pipeline,
		extractor:      extractor,
		index:          index,
		processor:      processor,
		log:            log,
		maxUploadBytes: maxUploadBytes,
	}
}

func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		externalUserID, err := auth.ValidateJWT(tokenString)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		user, err := h.store.GetUserByExternalID(externalUserID)
		if err != nil {
			h.log.WithError(err).WithField("user", externalUserID).Error("Failed to resolve user identity")
			http.Error(w, "Failed to process user identity", http.StatusInternalServerError)
			return
		}

		if user == nil {
			http.Error(w, "User not found", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), "userID", user.ID)
		ctx = context.WithValue(ctx, "externalUserID", user.ExternalUserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type SignupRequest struct {
	UserID   string `json:"user_id"`
	Password string `json:"password"`
}

func (h *APIHandler) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if req.UserID == "" || req.Password == "" {
		http.Error(w, "User ID and password are required", http.StatusBadRequest)
		return
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		h.log.WithError(err).WithField("user", req.UserID).Error("Failed to hash password")
		http.Error(w, "Failed to process password", http.StatusInternalServerError)
		return
	}

	user, err := h.store.CreateUser(req.UserID, hashedPassword)
	if err != nil {
		h.log.WithError(err).WithField("user", req.UserID).Error("Failed to create user")
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(user)
}

type LoginRequest struct {
	UserID   string `json:"user_id"`
	Password string `json:"password"`
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if req.UserID == "" || req.Password == "" {
		http.Error(w, "User ID and password are required", http.StatusBadRequest)
		return
	}

	user, err := h.store.GetUserByExternalID(req.UserID)
	if err != nil {
		h.log.WithError(err).WithField("user", req.UserID).Error("Failed to look up user")
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	if user == nil || !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := auth.GenerateJWT(req.UserID)
	if err != nil {
		h.log.WithError(err).WithField("user", req.UserID).Error("Failed to generate JWT")
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(map[string]string{"token": token})
}

// HealthHandler reports the service plus its two external dependencies.
// The service itself is healthy even when a dependency is degraded.
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"status": "ok", "vector_index": "ok", "processor": "not_configured"}

	if err := h.index.Health(r.Context()); err != nil {
		resp["vector_index"] = "unreachable"
	}
	if h.processor != nil {
		if err := h.processor.Health(r.Context()); err != nil {
			resp["processor"] = "unreachable"
		} else {
			resp["processor"] = "ok"
		}
	}
	json.NewEncoder(w).Encode(resp)
}

// UploadDocumentHandler accepts a multipart upload (file, title, category),
// spools it to disk and hands it to the processing orchestrator. The response
// carries the document in its post-ingestion state; structured analysis
// continues in the background and is observable through the status endpoint.
func (h *APIHandler) UploadDocumentHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(int64)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+1024)
	if err := r.ParseMultipartForm(4 << 20); err != nil {
		http.Error(w, "Invalid multipart request: "+err.Error(), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "A file field is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	title := r.FormValue("title")
	if title == "" {
		title = header.Filename
	}
	category := r.FormValue("category")
	if category == "" {
		category = ingest.CategoryEdital
	}

	tmp, err := os.CreateTemp("", "upload-*"+filepath.Ext(header.Filename))
	if err != nil {
		h.log.WithError(err).Error("Failed to create temp file for upload")
		http.Error(w, "Failed to store upload", http.StatusInternalServerError)
		return
	}
	size, err := io.Copy(tmp, file)
	tmp.Close()
	if err != nil {
		os.Remove(tmp.Name())
		h.log.WithError(err).Error("Failed to spool upload")
		http.Error(w, "Failed to store upload", http.StatusInternalServerError)
		return
	}

	doc, err := h.orchestrator.ProcessUpload(r.Context(), userID, ingest.Upload{
		TempPath: tmp.Name(),
		FileName: header.Filename,
		Title:    title,
		Category: category,
		Size:     size,
	})
	if err != nil {
		os.Remove(tmp.Name())
		switch {
		case errors.Is(err, ingest.ErrUnsupportedFile):
			http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
		case errors.Is(err, ingest.ErrFileTooLarge):
			http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
		default:
			h.log.WithError(err).WithField("user", userID).Error("Upload processing failed")
			http.Error(w, "Failed to process upload", http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(doc)
}

func (h *APIHandler) ListDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(int64)

	docs, err := h.store.GetDocumentsByUserID(userID)
	if err != nil {
		h.log.WithError(err).WithField("user", userID).Error("Failed to list documents")
		http.Error(w, "Failed to list documents", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(docs)
}

func (h *APIHandler) GetDocumentHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(int64)
	docID := chi.URLParam(r, "documentID")

	doc, err := h.store.GetDocumentByID(docID, userID)
	if err != nil {
		h.log.WithError(err).WithField("document", docID).Error("Failed to get document")
		http.Error(w, "Failed to get document", http.StatusInternalServerError)
		return
	}
	if doc == nil {
		http.Error(w, "Document not found", http.StatusNotFound)
		return
	}
	json.NewEncoder(w).Encode(doc)
}

type DocumentStatusResponse struct {
	DocumentID string                 `json:"document_id"`
	Status     string                 `json:"status"`
	Progress   int                    `json:"progress"`
	Error      *string                `json:"error,omitempty"`
	Remote     *ingest.StatusResponse `json:"remote,omitempty"`
}

// DocumentStatusHandler is the polling endpoint: document status, the latest
// processing job, and the remote processor's view when one handled this
// document.
func (h *APIHandler) DocumentStatusHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(int64)
	docID := chi.URLParam(r, "documentID")

	doc, err := h.store.GetDocumentByID(docID, userID)
	if err != nil {
		h.log.WithError(err).WithField("document", docID).Error("Failed to get document status")
		http.Error(w, "Failed to get document status", http.StatusInternalServerError)
		return
	}
	if doc == nil {
		http.Error(w, "Document not found", http.StatusNotFound)
		return
	}

	resp := DocumentStatusResponse{DocumentID: doc.ID, Status: doc.Status}
	if doc.ErrorMessage != nil {
		resp.Error = doc.ErrorMessage
	}
	if job, err := h.store.GetLatestJobForDocument(doc.ID); err == nil && job != nil {
		resp.Progress = job.Progress
		if resp.Error == nil {
			resp.Error = job.Error
		}
	}
	if h.processor != nil && doc.ExternalJobID != nil {
		if remote, err := h.processor.Status(r.Context(), *doc.ExternalJobID); err == nil {
			resp.Remote = remote
		}
	}
	json.NewEncoder(w).Encode(resp)
}

// DeleteDocumentHandler soft-deletes the record and removes its chunks from
// the vector index so retrieval stops seeing it immediately.
func (h *APIHandler) DeleteDocumentHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(int64)
	docID := chi.URLParam(r, "documentID")

	doc, err := h.store.GetDocumentByID(docID, userID)
	if err != nil {
		h.log.WithError(err).WithField("document", docID).Error("Failed to get document for deletion")
		http.Error(w, "Failed to delete document", http.StatusInternalServerError)
		return
	}
	if doc == nil {
		http.Error(w, "Document not found", http.StatusNotFound)
		return
	}

	if err := h.store.DeactivateDocument(docID, userID); err != nil {
		h.log.WithError(err).WithField("document", docID).Error("Failed to deactivate document")
		http.Error(w, "Failed to delete document", http.StatusInternalServerError)
		return
	}
	if err := h.index.DeleteDocument(r.Context(), ingest.OwnerKey(userID), docID); err != nil {
		// The record is already gone for the user; index cleanup is best effort.
		h.log.WithError(err).WithField("document", docID).Warn("Failed to purge document vectors")
	}
	w.WriteHeader(http.StatusNoContent)
}

// AnalyzeDocumentHandler re-runs structured extraction on demand and persists
// the fresh payload.
func (h *APIHandler) AnalyzeDocumentHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(int64)
	docID := chi.URLParam(r, "documentID")

	doc, err := h.store.GetDocumentByID(docID, userID)
	if err != nil {
		h.log.WithError(err).WithField("document", docID).Error("Failed to get document for analysis")
		http.Error(w, "Failed to analyze document", http.StatusInternalServerError)
		return
	}
	if doc == nil {
		http.Error(w, "Document not found", http.StatusNotFound)
		return
	}
	if doc.Category != ingest.CategoryEdital {
		http.Error(w, "Structured analysis is only available for edital documents", http.StatusBadRequest)
		return
	}

	result, err := h.extractor.Analyze(r.Context(), ingest.OwnerKey(userID), docID)
	if err != nil {
		h.log.WithError(err).WithField("document", docID).Error("Structured analysis failed")
		http.Error(w, "Failed to analyze document", http.StatusInternalServerError)
		return
	}

	if payload, err := json.Marshal(result); err == nil {
		if err := h.store.UpdateDocument(docID, store.DocumentPatch{StructuredJSON: payload}); err != nil {
			h.log.WithError(err).WithField("document", docID).Warn("Failed to persist structured payload")
		}
	}
	json.NewEncoder(w).Encode(result)
}

type AskRequest struct {
	Question   string `json:"question"`
	Category   string `json:"category,omitempty"`
	DocumentID string `json:"document_id,omitempty"`
}

type AskResponse struct {
	Answer string `json:"answer"`
}

// AskHandler answers a question grounded in the caller's indexed documents.
func (h *APIHandler) AskHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(int64)

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		http.Error(w, "Question cannot be empty", http.StatusBadRequest)
		return
	}

	filter := vectorindex.Filter{
		UserID:     ingest.OwnerKey(userID),
		Category:   req.Category,
		DocumentID: req.DocumentID,
	}
	answer, err := h.pipeline.Ask(r.Context(), req.Question, filter)
	if err != nil {
		if errors.Is(err, rag.ErrEmptyQuery) {
			http.Error(w, "Question cannot be empty", http.StatusBadRequest)
			return
		}
		h.log.WithError(err).WithField("user", userID).Error("Failed to answer question")
		http.Error(w, "Failed to answer question", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(AskResponse{Answer: answer})
}
