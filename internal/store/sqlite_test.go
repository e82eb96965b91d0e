package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUserRoundTrip(t *testing.T) {
	s := newTestStore(t)

	created, err := s.CreateUser("maria", "hash123")
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	found, err := s.GetUserByExternalID("maria")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, "hash123", found.PasswordHash)

	missing, err := s.GetUserByExternalID("nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDocumentLifecycle(t *testing.T) {
	s := newTestStore(t)
	user, err := s.CreateUser("joao", "h")
	require.NoError(t, err)

	doc, err := s.CreateDocument(user.ID, "Edital 2026", "edital", DocStatusProcessing)
	require.NoError(t, err)
	assert.NotEmpty(t, doc.ID)
	assert.True(t, doc.IsActive)

	// Other users never see the document.
	other, err := s.GetDocumentByID(doc.ID, user.ID+1)
	require.NoError(t, err)
	assert.Nil(t, other)

	status := DocStatusChunked
	raw := "texto extraído"
	require.NoError(t, s.UpdateDocument(doc.ID, DocumentPatch{Status: &status, RawText: &raw}))

	got, err := s.GetDocumentByID(doc.ID, user.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, DocStatusChunked, got.Status)
	require.NotNil(t, got.RawText)
	assert.Equal(t, raw, *got.RawText)

	docs, err := s.GetDocumentsByUserID(user.ID)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	// Soft delete hides it from the listing but keeps the row.
	require.NoError(t, s.DeactivateDocument(doc.ID, user.ID))
	docs, err = s.GetDocumentsByUserID(user.ID)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestJobTerminalStatesAreFinal(t *testing.T) {
	s := newTestStore(t)
	user, err := s.CreateUser("ana", "h")
	require.NoError(t, err)
	doc, err := s.CreateDocument(user.ID, "Doc", "edital", DocStatusProcessing)
	require.NoError(t, err)

	job, err := s.CreateJob(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusPending, job.Status)

	require.NoError(t, s.UpdateJob(job.ID, JobStatusCompleted, 100, nil))

	// A late write must not resurrect a finished job.
	require.Error(t, s.UpdateJob(job.ID, JobStatusProcessing, 50, nil))

	got, err := s.GetJobByID(job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
}

func TestGetLatestJobForDocument(t *testing.T) {
	s := newTestStore(t)
	user, err := s.CreateUser("rui", "h")
	require.NoError(t, err)
	doc, err := s.CreateDocument(user.ID, "Doc", "resumo", DocStatusProcessing)
	require.NoError(t, err)

	_, err = s.CreateJob(doc.ID)
	require.NoError(t, err)
	second, err := s.CreateJob(doc.ID)
	require.NoError(t, err)

	latest, err := s.GetLatestJobForDocument(doc.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second.ID, latest.ID)
}
