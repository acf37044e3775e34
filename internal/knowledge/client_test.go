package knowledge

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tildaslashalef/vaultsync/internal/config"
	"github.com/tildaslashalef/vaultsync/internal/loggy"
)

// newTestClient points a client at the given server with rate limiting
// effectively disabled so tests run fast.
func newTestClient(serverURL string) *Client {
	return NewClient(config.KnowledgeConfig{
		Enabled:           true,
		BaseURL:           serverURL,
		APIKey:            "sk-test",
		Timeout:           5 * time.Second,
		MaxRetries:        2,
		RequestsPerMinute: 60000,
		BurstLimit:        1000,
	}, loggy.NewNoopLogger())
}

func TestListKnowledge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/knowledge/", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(listKnowledgeResponse{Items: []KnowledgeBase{
			{ID: "kb-1", Name: "SYNAPTICA - Production"},
			{ID: "kb-2", Name: "AXON - Development"},
		}})
	}))
	defer server.Close()

	bases, err := newTestClient(server.URL).ListKnowledge(context.Background())
	require.NoError(t, err)
	require.Len(t, bases, 2)
	assert.Equal(t, "kb-1", bases[0].ID)
	assert.Equal(t, "SYNAPTICA - Production", bases[0].Name)
}

func TestCreateKnowledge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/knowledge/create", r.URL.Path)

		var req createKnowledgeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "AXON - Production", req.Name)
		assert.NotNil(t, req.Data, "data must be present, even empty")

		json.NewEncoder(w).Encode(KnowledgeBase{ID: "kb-new", Name: req.Name})
	}))
	defer server.Close()

	kb, err := newTestClient(server.URL).CreateKnowledge(context.Background(), "AXON - Production", "docs")
	require.NoError(t, err)
	assert.Equal(t, "kb-new", kb.ID)
}

func TestUploadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guide.md")
	require.NoError(t, os.WriteFile(path, []byte("# Guide\n"), 0644))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/files/", r.URL.Path)
		assert.Contains(t, r.Header.Get("Content-Type"), "multipart/form-data")

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()

		assert.Equal(t, "guide.md", header.Filename)
		data, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, "# Guide\n", string(data))

		json.NewEncoder(w).Encode(FileUpload{ID: "file-123", Filename: header.Filename})
	}))
	defer server.Close()

	id, err := newTestClient(server.URL).UploadFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "file-123", id)
}

func TestAddAndRemoveFile(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)

		var req fileRefRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "file-123", req.FileID)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	require.NoError(t, client.AddFileToKnowledge(context.Background(), "kb-1", "file-123"))
	require.NoError(t, client.RemoveFileFromKnowledge(context.Background(), "kb-1", "file-123"))

	assert.Equal(t, []string{
		"/api/v1/knowledge/kb-1/file/add",
		"/api/v1/knowledge/kb-1/file/remove",
	}, paths)
}

func TestRetryOnTransientError(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Open WebUI surfaces a still-processing extraction queue as a
		// 400 mentioning a timeout; the call succeeds once it settles.
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"detail": "extraction timed out"}`))
			return
		}
		json.NewEncoder(w).Encode(listKnowledgeResponse{Items: []KnowledgeBase{{ID: "kb-1"}}})
	}))
	defer server.Close()

	bases, err := newTestClient(server.URL).ListKnowledge(context.Background())
	require.NoError(t, err)
	assert.Len(t, bases, 1)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestRetryOnServerError(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(listKnowledgeResponse{})
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).ListKnowledge(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestNoRetryOnPermanentError(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"detail": "name already taken"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).CreateKnowledge(context.Background(), "DUP", "")
	require.Error(t, err)
	assert.Equal(t, int32(1), attempts.Load(), "a plain 400 is not retried")

	assert.Contains(t, err.Error(), "400")
}

func TestRetryExhaustion(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).ListKnowledge(context.Background())
	require.Error(t, err)
	// Initial attempt plus MaxRetries retries
	assert.Equal(t, int32(3), attempts.Load())
}

func TestAPIErrorTransient(t *testing.T) {
	tests := []struct {
		name      string
		err       APIError
		transient bool
	}{
		{name: "server error", err: APIError{StatusCode: 500}, transient: true},
		{name: "bad gateway", err: APIError{StatusCode: 502}, transient: true},
		{name: "throttled", err: APIError{StatusCode: 429}, transient: true},
		{name: "extraction timeout", err: APIError{StatusCode: 400, Body: "processing timed out"}, transient: true},
		{name: "empty content", err: APIError{StatusCode: 400, Body: "file content is empty"}, transient: true},
		{name: "plain bad request", err: APIError{StatusCode: 400, Body: "invalid name"}, transient: false},
		{name: "unauthorized", err: APIError{StatusCode: 401}, transient: false},
		{name: "not found", err: APIError{StatusCode: 404}, transient: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.transient, tt.err.Transient())
		})
	}
}
