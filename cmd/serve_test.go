package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	domainsync "almsync/internal/domain/sync"
	syncuc "almsync/internal/usecase/sync"
)

type stubSyncService struct {
	ingestResult syncuc.IngestResult
	ingestErr    error
	batchResult  syncuc.BatchResult
	batchErr     error

	ingestedPayloads [][]byte
	resyncIDs        [][]string
	defectIDs        [][]string
}

func (s *stubSyncService) IngestWebhook(_ context.Context, payload []byte) (syncuc.IngestResult, error) {
	s.ingestedPayloads = append(s.ingestedPayloads, payload)
	return s.ingestResult, s.ingestErr
}

func (s *stubSyncService) Resync(_ context.Context, keys []string) (syncuc.BatchResult, error) {
	s.resyncIDs = append(s.resyncIDs, keys)
	return s.batchResult, s.batchErr
}

func (s *stubSyncService) CreateMissingDefects(_ context.Context, ids []string) (syncuc.BatchResult, error) {
	s.defectIDs = append(s.defectIDs, ids)
	return s.batchResult, s.batchErr
}

func TestSyncHTTPHandlerHealthz(t *testing.T) {
	handler := newSyncHTTPHandler(context.Background(), &stubSyncService{}, "")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestSyncHTTPHandlerWebhookSuccess(t *testing.T) {
	svc := &stubSyncService{ingestResult: syncuc.IngestResult{IssueID: "HEALTH-123"}}
	handler := newSyncHTTPHandler(context.Background(), svc, "")

	body := []byte(`{"webhookEvent":"jira:issue_updated"}`)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks/tracker", bytes.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Status  string `json:"status"`
		IssueID string `json:"issue_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "success" {
		t.Fatalf("status = %q", resp.Status)
	}
	if resp.IssueID != "HEALTH-123" {
		t.Fatalf("issue_id = %q", resp.IssueID)
	}

	if len(svc.ingestedPayloads) != 1 || !bytes.Equal(svc.ingestedPayloads[0], body) {
		t.Fatal("payload not passed through unchanged")
	}
}

func TestSyncHTTPHandlerWebhookIgnored(t *testing.T) {
	svc := &stubSyncService{ingestResult: syncuc.IngestResult{EventType: "issue_deleted", Ignored: true}}
	handler := newSyncHTTPHandler(context.Background(), svc, "")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks/tracker", bytes.NewReader([]byte(`{}`))))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "ignored" {
		t.Fatalf("status = %q, want ignored", resp.Status)
	}
}

func TestSyncHTTPHandlerWebhookSecret(t *testing.T) {
	svc := &stubSyncService{}
	handler := newSyncHTTPHandler(context.Background(), svc, "s3cret")

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "nope", http.StatusUnauthorized},
		{"correct", "s3cret", http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/webhooks/tracker", bytes.NewReader([]byte(`{}`)))
			if tc.header != "" {
				req.Header.Set("X-Webhook-Secret", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}

	if len(svc.ingestedPayloads) != 1 {
		t.Fatalf("service saw %d calls, want only the authorized one", len(svc.ingestedPayloads))
	}
}

func TestSyncHTTPHandlerWebhookErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", domainsync.NewValidationError("issue.id", "is required"), http.StatusBadRequest},
		{"storage", &domainsync.RepositoryError{Op: "upsert issue", Err: errors.New("locked")}, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := newSyncHTTPHandler(context.Background(), &stubSyncService{ingestErr: tc.err}, "")
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks/tracker", bytes.NewReader([]byte(`{}`))))
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestSyncHTTPHandlerResyncPassesIDs(t *testing.T) {
	svc := &stubSyncService{batchResult: syncuc.BatchResult{Succeeded: []string{"HEALTH-1"}}}
	handler := newSyncHTTPHandler(context.Background(), svc, "")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sync/resync",
		bytes.NewReader([]byte(`{"ids": ["HEALTH-1", "HEALTH-2"]}`))))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(svc.resyncIDs) != 1 || len(svc.resyncIDs[0]) != 2 {
		t.Fatalf("service saw ids %v", svc.resyncIDs)
	}
}

func TestSyncHTTPHandlerDefectsEmptyBody(t *testing.T) {
	svc := &stubSyncService{}
	handler := newSyncHTTPHandler(context.Background(), svc, "")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sync/defects", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(svc.defectIDs) != 1 || len(svc.defectIDs[0]) != 0 {
		t.Fatalf("service saw ids %v, want empty sweep", svc.defectIDs)
	}

	// Empty batches still render as arrays, not null.
	var resp map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if string(resp["succeeded"]) != "[]" {
		t.Fatalf("succeeded = %s, want []", resp["succeeded"])
	}
	if string(resp["failed"]) != "[]" {
		t.Fatalf("failed = %s, want []", resp["failed"])
	}
}

func TestSyncHTTPHandlerBatchMalformedBody(t *testing.T) {
	handler := newSyncHTTPHandler(context.Background(), &stubSyncService{}, "")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sync/resync", bytes.NewReader([]byte(`{"ids": `))))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestValidateWebhookSecretDisabledWhenUnset(t *testing.T) {
	if err := validateWebhookSecret("", "anything"); err != nil {
		t.Fatalf("validateWebhookSecret() error = %v, want nil when no secret configured", err)
	}
}
