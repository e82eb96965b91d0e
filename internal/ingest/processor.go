// Package ingest coordinates document processing end-to-end: validation, the
// external processing backend with a local fallback path, vector indexing and
// deferred structured analysis.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultProcessorTimeout = 60 * time.Second

// ProcessorClient talks to the optional external processing service.
type ProcessorClient struct {
	baseURL string
	client  *http.Client
	log     *logrus.Logger
}

type ProcessResponse struct {
	Success bool   `json:"success"`
	JobID   string `json:"jobId"`
	Chunks  int    `json:"chunks,omitempty"`
	Error   string `json:"error,omitempty"`
}

type StatusResponse struct {
	Status   string `json:"status"`
	Progress int    `json:"progress,omitempty"`
	Error    string `json:"error,omitempty"`
}

func NewProcessorClient(baseURL string, timeout time.Duration, log *logrus.Logger) *ProcessorClient {
	if timeout == 0 {
		timeout = defaultProcessorTimeout
	}
	if log == nil {
		log = logrus.New()
	}
	return &ProcessorClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		log:     log,
	}
}

// ProcessDocument uploads the file for remote chunking and indexing. Any
// transport error or timeout is returned to the caller, which treats it as
// the trigger for the local fallback path.
func (c *ProcessorClient) ProcessDocument(ctx context.Context, filePath, fileName, label, userID string) (*ProcessResponse, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open upload for processing: %w", err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		defer pw.Close()
		defer writer.Close()
		part, err := writer.CreateFormFile("file", filepath.Base(fileName))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, file); err != nil {
			pw.CloseWithError(err)
			return
		}
		_ = writer.WriteField("fileName", fileName)
		_ = writer.WriteField("concursoNome", label)
		_ = writer.WriteField("userId", userID)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/process-document", pr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("processing service call failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("processing service returned %s", resp.Status)
	}

	var result ProcessResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode processing response: %w", err)
	}
	if !result.Success {
		return nil, fmt.Errorf("processing service reported failure: %s", result.Error)
	}
	return &result, nil
}

// Status polls one remote job.
func (c *ProcessorClient) Status(ctx context.Context, jobID string) (*StatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status/"+jobID, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("status poll failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status poll returned %s", resp.Status)
	}

	var result StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode status response: %w", err)
	}
	return &result, nil
}

func (c *ProcessorClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("processing service unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("processing service unhealthy: %s", resp.Status)
	}
	return nil
}
