package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/BordignonMD/anti-fraud/internal/api/middleware"
	"github.com/BordignonMD/anti-fraud/internal/engine"
	"github.com/BordignonMD/anti-fraud/internal/jobs"
)

// TransactionsHandler handles transaction analysis and listing endpoints.
type TransactionsHandler struct {
	svc       *engine.Service
	store     engine.Store
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(svc *engine.Service, store engine.Store, publisher jobs.Publisher, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{
		svc:       svc,
		store:     store,
		publisher: publisher,
		log:       log,
	}
}

// analyzeRequest mirrors the external attribute names of a transaction.
type analyzeRequest struct {
	TransactionID     int64           `json:"transaction_id"`
	MerchantID        int64           `json:"merchant_id"`
	UserID            int64           `json:"user_id"`
	DeviceID          int64           `json:"device_id"`
	CardNumber        string          `json:"card_number"`
	TransactionDate   string          `json:"transaction_date"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
	HasCBK            bool            `json:"has_cbk"`
}

// Analyze handles POST /api/transactions/analyze
func (h *TransactionsHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	date, err := engine.ParseDate(req.TransactionDate)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	tx := engine.NewTransaction(
		req.TransactionID, req.MerchantID, req.UserID, req.DeviceID,
		req.CardNumber, date, req.TransactionAmount, req.HasCBK,
	)

	result, err := h.svc.Analyze(ctx, tx)
	if err != nil {
		h.writeAnalyzeError(w, tx, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, result)
}

// writeAnalyzeError maps the engine's error taxonomy to HTTP responses.
func (h *TransactionsHandler) writeAnalyzeError(w http.ResponseWriter, tx *engine.Transaction, err error) {
	var validationErr *engine.ValidationError
	var persistenceErr *engine.PersistenceError

	switch {
	case errors.As(err, &validationErr):
		middleware.WriteError(w, http.StatusBadRequest, validationErr.Error())
	case errors.As(err, &persistenceErr):
		h.log.Error().Err(err).Int64("transaction_id", tx.TransactionID).Msg("Failed to save transaction")
		middleware.WriteError(w, http.StatusUnprocessableEntity, "save_failure")
	default:
		h.log.Error().Err(err).Int64("transaction_id", tx.TransactionID).Msg("Failed to analyze transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to analyze transaction")
	}
}

// reasonFilters maps the listing filter tokens to stored rejection reasons.
var reasonFilters = map[string]string{
	"repeated":            engine.ReasonExistingID,
	"excessive":           engine.ReasonExcessiveTransactions,
	"amount_exceeded":     engine.ReasonAmountLimitExceeded,
	"previous_chargeback": engine.ReasonPreviousChargeback,
}

// List handles GET /api/transactions
func (h *TransactionsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter := engine.Filter{
		TransactionID: r.URL.Query().Get("transaction_id"),
	}
	for _, token := range r.URL.Query()["filters"] {
		switch token {
		case "approved":
			filter.Approved = true
		case "denied":
			filter.Denied = true
		default:
			if reason, ok := reasonFilters[token]; ok {
				filter.Reasons = append(filter.Reasons, reason)
			}
		}
	}

	transactions, err := h.store.List(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list transactions")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": transactions,
		"count":        len(transactions),
	})
}

// Import handles POST /api/transactions/import
//
// Accepts either a multipart upload under the "file" field or a JSON body
// with a source_uri (local path or gs:// URI). The import runs as a
// background job; the response carries the job id to poll.
func (h *TransactionsHandler) Import(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	source, err := h.resolveImportSource(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	job := &jobs.ImportJob{
		JobID:  uuid.New().String(),
		Source: source,
	}

	if err := h.publisher.PublishImport(ctx, job); err != nil {
		h.log.Error().Err(err).Str("source", source).Msg("Failed to enqueue import job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue import")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("source", source).Msg("Import job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"status": string(jobs.JobStatusPending),
	})
}

// resolveImportSource extracts the CSV location from the request. Multipart
// uploads are spooled to a temp file so the worker can read them after the
// request body is gone.
func (h *TransactionsHandler) resolveImportSource(r *http.Request) (string, error) {
	contentType := r.Header.Get("Content-Type")

	if strings.HasPrefix(contentType, "multipart/form-data") {
		file, header, err := r.FormFile("file")
		if err != nil {
			return "", fmt.Errorf("no file was selected")
		}
		defer file.Close()

		tmp, err := os.CreateTemp("", "import-*.csv")
		if err != nil {
			return "", fmt.Errorf("spooling upload: %w", err)
		}
		if _, err := io.Copy(tmp, file); err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
			return "", fmt.Errorf("spooling upload: %w", err)
		}
		if err := tmp.Close(); err != nil {
			os.Remove(tmp.Name())
			return "", fmt.Errorf("spooling upload: %w", err)
		}

		h.log.Debug().Str("filename", header.Filename).Str("spool", tmp.Name()).Msg("Upload spooled")
		return tmp.Name(), nil
	}

	var req struct {
		SourceURI string `json:"source_uri"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", fmt.Errorf("invalid request body")
	}
	if req.SourceURI == "" {
		return "", fmt.Errorf("source_uri is required")
	}
	return req.SourceURI, nil
}

// JobsHandler handles import-job status endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{store: store, log: log}
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter := jobs.JobFilter{
		Status: jobs.JobStatus(r.URL.Query().Get("status")),
		Source: r.URL.Query().Get("source"),
	}

	jobList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobList,
		"count": len(jobList),
	})
}

// GetJob handles GET /api/jobs/{jobID}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	ctx := r.Context()

	job, err := h.store.GetJob(ctx, jobID)
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}
