// Package knowledge mirrors discovered documentation into Open WebUI
// knowledge-base collections so they are queryable through RAG.
package knowledge

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// KnowledgeBase is one remote knowledge collection.
type KnowledgeBase struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// listKnowledgeResponse is the payload of the knowledge listing endpoint.
type listKnowledgeResponse struct {
	Items []KnowledgeBase `json:"items"`
}

// createKnowledgeRequest creates a new knowledge collection.
type createKnowledgeRequest struct {
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	Data          map[string]any `json:"data"`
	AccessControl map[string]any `json:"access_control"`
}

// FileUpload is the server's record of an uploaded file.
type FileUpload struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
}

// fileRefRequest attaches or detaches an uploaded file to a collection.
type fileRefRequest struct {
	FileID string `json:"file_id"`
}

// APIError represents an error response from the Open WebUI API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Body)
}

// Transient reports whether the error is worth retrying. Open WebUI's
// async extractor queue and lazily created vector collections surface as
// 400s whose body mentions a timeout or empty content; those settle after
// a short wait. Server errors and throttling are retryable as usual.
func (e *APIError) Transient() bool {
	if e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests {
		return true
	}
	if e.StatusCode == http.StatusBadRequest {
		body := strings.ToLower(e.Body)
		return strings.Contains(body, "timed out") || strings.Contains(body, "empty")
	}
	return false
}

// remoteFile records where one local file lives remotely, keyed by the
// local absolute path in the upload state document.
type remoteFile struct {
	Hash        string    `json:"hash"`
	FileID      string    `json:"file_id"`
	KnowledgeID string    `json:"knowledge_id"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// MirrorResult accumulates the outcome of mirroring one pair's source
// docs into its collection.
type MirrorResult struct {
	Pair       string   `json:"pair"`
	Collection string   `json:"collection"`
	Uploaded   int      `json:"uploaded"`
	Skipped    int      `json:"skipped"`
	Removed    int      `json:"removed"`
	Errors     []string `json:"errors,omitempty"`
}

// MirrorSummary aggregates one mirroring run.
type MirrorSummary struct {
	RunID    string
	Results  []MirrorResult
	Uploaded int
	Skipped  int
	Removed  int
	Errored  int
	Started  time.Time
	Duration time.Duration
}

// Add folds a pair result into the aggregate counters.
func (s *MirrorSummary) Add(r MirrorResult) {
	s.Results = append(s.Results, r)
	s.Uploaded += r.Uploaded
	s.Skipped += r.Skipped
	s.Removed += r.Removed
	s.Errored += len(r.Errors)
}
