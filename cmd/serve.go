package cmd

import (
	"context"
	"crypto/hmac"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"almsync/internal/bootstrap"
	"almsync/internal/bootstrap/logging"
	domainsync "almsync/internal/domain/sync"
	"almsync/internal/errs"
	businfra "almsync/internal/infrastructure/bus"
	syncuc "almsync/internal/usecase/sync"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook receiver and manual sync endpoints",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *syncuc.Service, _ *businfra.Bus) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		addr, _ := cmd.Flags().GetString("addr")
		addr = strings.TrimSpace(addr)
		if addr == "" {
			addr = app.Config.HTTP.Addr
		}

		server := &http.Server{
			Addr:    addr,
			Handler: newSyncHTTPHandler(ctx, svc, app.Config.HTTP.WebhookSecret),
		}

		logging.Info(ctx, "sync http server started", slog.String("addr", addr))

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error(ctx, "sync http server failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "serve sync http")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (overrides http.addr)")
}

// syncHTTPService is the slice of the sync service the HTTP surface needs.
type syncHTTPService interface {
	IngestWebhook(ctx context.Context, payload []byte) (syncuc.IngestResult, error)
	Resync(ctx context.Context, keys []string) (syncuc.BatchResult, error)
	CreateMissingDefects(ctx context.Context, testResultIDs []string) (syncuc.BatchResult, error)
}

type syncHTTPHandler struct {
	baseCtx context.Context
	svc     syncHTTPService
	secret  string
}

type webhookResponse struct {
	Status  string `json:"status"`
	IssueID string `json:"issue_id,omitempty"`
}

type batchRequest struct {
	IDs []string `json:"ids"`
}

type batchResponse struct {
	Succeeded []string `json:"succeeded"`
	Failed    []string `json:"failed"`
}

type httpErrorResponse struct {
	Error string `json:"error"`
}

func newSyncHTTPHandler(ctx context.Context, svc syncHTTPService, webhookSecret string) http.Handler {
	h := &syncHTTPHandler{
		baseCtx: ctx,
		svc:     svc,
		secret:  webhookSecret,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeHTTPJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/webhooks/tracker", h.handleWebhook)
	r.Post("/sync/resync", h.handleResync)
	r.Post("/sync/defects", h.handleDefects)
	return r
}

func (h *syncHTTPHandler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if h.svc == nil {
		writeHTTPError(w, http.StatusInternalServerError, "sync service is not configured")
		return
	}

	if err := validateWebhookSecret(h.secret, r.Header.Get("X-Webhook-Secret")); err != nil {
		writeHTTPError(w, http.StatusUnauthorized, err.Error())
		return
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeHTTPError(w, http.StatusBadRequest, "failed to read payload")
		return
	}

	out, err := h.svc.IngestWebhook(h.requestCtx(r), payload)
	if err != nil {
		// Validation failures are the tracker's to fix; everything else is
		// a server-side failure the tracker should redeliver for.
		if domainsync.IsValidation(err) {
			writeHTTPError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeHTTPError(w, http.StatusInternalServerError, err.Error())
		return
	}

	status := "success"
	if out.Ignored {
		status = "ignored"
	}
	writeHTTPJSON(w, http.StatusOK, webhookResponse{Status: status, IssueID: out.IssueID})
}

func (h *syncHTTPHandler) handleResync(w http.ResponseWriter, r *http.Request) {
	h.handleBatch(w, r, func(ctx context.Context, ids []string) (syncuc.BatchResult, error) {
		return h.svc.Resync(ctx, ids)
	})
}

func (h *syncHTTPHandler) handleDefects(w http.ResponseWriter, r *http.Request) {
	h.handleBatch(w, r, func(ctx context.Context, ids []string) (syncuc.BatchResult, error) {
		return h.svc.CreateMissingDefects(ctx, ids)
	})
}

func (h *syncHTTPHandler) handleBatch(
	w http.ResponseWriter,
	r *http.Request,
	run func(ctx context.Context, ids []string) (syncuc.BatchResult, error),
) {
	if h.svc == nil {
		writeHTTPError(w, http.StatusInternalServerError, "sync service is not configured")
		return
	}

	var req batchRequest
	if r.Body != nil {
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			writeHTTPError(w, http.StatusBadRequest, "failed to read request body")
			return
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &req); err != nil {
				writeHTTPError(w, http.StatusBadRequest, "malformed request body")
				return
			}
		}
	}

	out, err := run(h.requestCtx(r), req.IDs)
	if err != nil {
		writeHTTPError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := batchResponse{
		Succeeded: out.Succeeded,
		Failed:    out.Failed,
	}
	if resp.Succeeded == nil {
		resp.Succeeded = []string{}
	}
	if resp.Failed == nil {
		resp.Failed = []string{}
	}
	writeHTTPJSON(w, http.StatusOK, resp)
}

// requestCtx combines the request's cancellation with the server's logging
// context.
func (h *syncHTTPHandler) requestCtx(r *http.Request) context.Context {
	ctx := r.Context()
	if h.baseCtx != nil {
		ctx = logging.WithLogger(ctx, logging.Logger(h.baseCtx))
		ctx = logging.WithAttrs(ctx, logging.Attrs(h.baseCtx)...)
	}
	return logging.WithAttrs(ctx, slog.String("remote_addr", r.RemoteAddr))
}

func validateWebhookSecret(secret string, headerValue string) error {
	normalized := strings.TrimSpace(secret)
	if normalized == "" {
		return nil
	}

	provided := strings.TrimSpace(headerValue)
	if provided == "" {
		return errors.New("missing X-Webhook-Secret")
	}
	if !hmac.Equal([]byte(provided), []byte(normalized)) {
		return errors.New("invalid X-Webhook-Secret")
	}
	return nil
}

func writeHTTPError(w http.ResponseWriter, status int, message string) {
	writeHTTPJSON(w, status, httpErrorResponse{Error: message})
}

func writeHTTPJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}
