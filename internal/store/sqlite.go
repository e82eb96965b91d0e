package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS users (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        external_user_id TEXT UNIQUE NOT NULL,
        password_hash TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS documents (
        id TEXT PRIMARY KEY, -- UUID
        user_id INTEGER NOT NULL,
        title TEXT NOT NULL,
        category TEXT NOT NULL,
        status TEXT NOT NULL CHECK (status IN ('uploaded', 'processing', 'indexed', 'chunked', 'completed', 'failed')),
        raw_text TEXT,
        structured_json TEXT,
        error_message TEXT,
        external_job_id TEXT,
        is_active BOOLEAN NOT NULL DEFAULT TRUE,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (user_id) REFERENCES users (id)
    );

    CREATE TABLE IF NOT EXISTS processing_jobs (
        id TEXT PRIMARY KEY, -- UUID
        document_id TEXT NOT NULL,
        status TEXT NOT NULL CHECK (status IN ('pending', 'processing', 'completed', 'failed')),
        progress INTEGER NOT NULL DEFAULT 0,
        error TEXT,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (document_id) REFERENCES documents (id)
    );

    CREATE INDEX IF NOT EXISTS idx_documents_user ON documents (user_id, is_active);
    CREATE INDEX IF NOT EXISTS idx_jobs_document ON processing_jobs (document_id);
    `
	_, err := s.db.Exec(schema)
	return err
}

// User methods
func (s *SQLiteStore) GetUserByExternalID(externalUserID string) (*User, error) {
	var user User
	err := s.db.QueryRow("SELECT id, external_user_id, password_hash, created_at FROM users WHERE external_user_id = ?", externalUserID).Scan(&user.ID, &user.ExternalUserID, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // User not found
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

func (s *SQLiteStore) CreateUser(externalUserID, passwordHash string) (*User, error) {
	res, err := s.db.Exec("INSERT INTO users (external_user_id, password_hash) VALUES (?, ?)", externalUserID, passwordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	id, _ := res.LastInsertId()
	return s.getUserByID(id)
}

func (s *SQLiteStore) getUserByID(id int64) (*User, error) {
	var user User
	err := s.db.QueryRow("SELECT id, external_user_id, password_hash, created_at FROM users WHERE id = ?", id).Scan(&user.ID, &user.ExternalUserID, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return &user, nil
}

// Document methods
func (s *SQLiteStore) CreateDocument(userID int64, title, category, status string) (*Document, error) {
	docID := uuid.NewString()
	now := time.Now()

	stmt, err := s.db.Prepare("INSERT INTO documents (id, user_id, title, category, status, is_active, created_at, updated_at) VALUES (?, ?, ?, ?, ?, TRUE, ?, ?)")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare document insert: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.Exec(docID, userID, title, category, status, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to execute document insert: %w", err)
	}
	return &Document{
		ID:        docID,
		UserID:    userID,
		Title:     title,
		Category:  category,
		Status:    status,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) GetDocumentByID(docID string, userID int64) (*Document, error) {
	row := s.db.QueryRow(`
        SELECT id, user_id, title, category, status, raw_text, structured_json, error_message, external_job_id, is_active, created_at, updated_at
        FROM documents WHERE id = ? AND user_id = ?`, docID, userID)
	doc, err := scanDocument(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

func (s *SQLiteStore) GetDocumentsByUserID(userID int64) ([]Document, error) {
	rows, err := s.db.Query(`
        SELECT id, user_id, title, category, status, raw_text, structured_json, error_message, external_job_id, is_active, created_at, updated_at
        FROM documents WHERE user_id = ? AND is_active = TRUE ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document row: %w", err)
		}
		docs = append(docs, *doc)
	}
	return docs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var doc Document
	var rawText, structured, errMsg, extJobID sql.NullString
	err := row.Scan(&doc.ID, &doc.UserID, &doc.Title, &doc.Category, &doc.Status, &rawText, &structured, &errMsg, &extJobID, &doc.IsActive, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if rawText.Valid {
		doc.RawText = &rawText.String
	}
	if structured.Valid && structured.String != "" {
		doc.StructuredJSON = []byte(structured.String)
	}
	if errMsg.Valid {
		doc.ErrorMessage = &errMsg.String
	}
	if extJobID.Valid {
		doc.ExternalJobID = &extJobID.String
	}
	return &doc, nil
}

// UpdateDocument applies a partial patch; nil patch fields are left untouched.
func (s *SQLiteStore) UpdateDocument(docID string, patch DocumentPatch) error {
	var sets []string
	var args []any

	if patch.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *patch.Status)
	}
	if patch.RawText != nil {
		sets = append(sets, "raw_text = ?")
		args = append(args, *patch.RawText)
	}
	if patch.StructuredJSON != nil {
		sets = append(sets, "structured_json = ?")
		args = append(args, string(patch.StructuredJSON))
	}
	if patch.ErrorMessage != nil {
		sets = append(sets, "error_message = ?")
		args = append(args, *patch.ErrorMessage)
	}
	if patch.ExternalJobID != nil {
		sets = append(sets, "external_job_id = ?")
		args = append(args, *patch.ExternalJobID)
	}
	if patch.IsActive != nil {
		sets = append(sets, "is_active = ?")
		args = append(args, *patch.IsActive)
	}
	if len(sets) == 0 {
		return nil
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now())
	args = append(args, docID)

	query := fmt.Sprintf("UPDATE documents SET %s WHERE id = ?", strings.Join(sets, ", "))
	res, err := s.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to execute document update: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("document not found, not updated")
	}
	return nil
}

// DeactivateDocument soft-removes a document; the row survives for history.
func (s *SQLiteStore) DeactivateDocument(docID string, userID int64) error {
	res, err := s.db.Exec("UPDATE documents SET is_active = FALSE, updated_at = ? WHERE id = ? AND user_id = ?", time.Now(), docID, userID)
	if err != nil {
		return fmt.Errorf("failed to deactivate document: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("document not found or not owned by user")
	}
	return nil
}

// Job methods
func (s *SQLiteStore) CreateJob(documentID string) (*ProcessingJob, error) {
	jobID := uuid.NewString()
	now := time.Now()

	stmt, err := s.db.Prepare("INSERT INTO processing_jobs (id, document_id, status, progress, created_at, updated_at) VALUES (?, ?, ?, 0, ?, ?)")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare job insert: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.Exec(jobID, documentID, JobStatusPending, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to execute job insert: %w", err)
	}
	return &ProcessingJob{ID: jobID, DocumentID: documentID, Status: JobStatusPending, CreatedAt: now, UpdatedAt: now}, nil
}

func (s *SQLiteStore) GetJobByID(jobID string) (*ProcessingJob, error) {
	var job ProcessingJob
	var jobErr sql.NullString
	err := s.db.QueryRow("SELECT id, document_id, status, progress, error, created_at, updated_at FROM processing_jobs WHERE id = ?", jobID).
		Scan(&job.ID, &job.DocumentID, &job.Status, &job.Progress, &jobErr, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	if jobErr.Valid {
		job.Error = &jobErr.String
	}
	return &job, nil
}

func (s *SQLiteStore) GetLatestJobForDocument(documentID string) (*ProcessingJob, error) {
	var job ProcessingJob
	var jobErr sql.NullString
	err := s.db.QueryRow(`
        SELECT id, document_id, status, progress, error, created_at, updated_at
        FROM processing_jobs WHERE document_id = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`, documentID).
		Scan(&job.ID, &job.DocumentID, &job.Status, &job.Progress, &jobErr, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest job: %w", err)
	}
	if jobErr.Valid {
		job.Error = &jobErr.String
	}
	return &job, nil
}

// UpdateJob moves a job forward. Terminal jobs stay terminal: a failed or
// completed job is never updated again, a retry gets a new job id.
func (s *SQLiteStore) UpdateJob(jobID, status string, progress int, errMsg *string) error {
	stmt, err := s.db.Prepare(`
        UPDATE processing_jobs SET status = ?, progress = ?, error = ?, updated_at = ?
        WHERE id = ? AND status NOT IN ('completed', 'failed')`)
	if err != nil {
		return fmt.Errorf("failed to prepare job update: %w", err)
	}
	defer stmt.Close()

	res, err := stmt.Exec(status, progress, errMsg, time.Now(), jobID)
	if err != nil {
		return fmt.Errorf("failed to execute job update: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("job not found or already terminal, not updated")
	}
	return nil
}
