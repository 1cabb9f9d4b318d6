package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"referral-earnings-go/internal/store"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// maxBodyBytes caps request bodies; every request here is a few fields.
const maxBodyBytes = 1 << 16

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, "Name and Email are required", nil)
		return
	}

	account, err := h.ledger.CreateAccount(r.Context(), req.Name, req.Email, req.ReferredBy)
	if err != nil {
		writeError(w, statusFor(err), "Error creating user", err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	var req PurchaseRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.ledger.ProcessPurchase(r.Context(), req.UserId, req.Amount())
	if err != nil {
		writeError(w, statusFor(err), "Error processing purchase", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) EarningsReport(w http.ResponseWriter, r *http.Request) {
	userId := chi.URLParam(r, "userId")

	summary, err := h.ledger.GetEarningsReport(r.Context(), userId)
	if err != nil {
		writeError(w, statusFor(err), "Error fetching earnings report", err)
		return
	}

	resp := EarningsReportResponse{
		UserId:         userId,
		Level1Earnings: summary.Level1,
		Level2Earnings: summary.Level2,
		TotalEarnings:  summary.Total,
		Details:        summary.Records,
	}
	if len(summary.Records) == 0 {
		resp.Message = "No earnings found for this user"
		writeJSON(w, http.StatusNotFound, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) ReferralEarningsBreakdown(w http.ResponseWriter, r *http.Request) {
	userId := chi.URLParam(r, "userId")

	breakdown, err := h.ledger.GetReferralEarningsBreakdown(r.Context(), userId)
	if err != nil {
		writeError(w, statusFor(err), "Error fetching referral earnings breakdown", err)
		return
	}
	if len(breakdown) == 0 {
		writeError(w, http.StatusNotFound, "No referral earnings found for this user", nil)
		return
	}
	writeJSON(w, http.StatusOK, ReferralBreakdownResponse{UserId: userId, ReferralEarnings: breakdown})
}

func (h *Handler) UserDetails(w http.ResponseWriter, r *http.Request) {
	details, err := h.ledger.GetAccountDetails(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, statusFor(err), "Error fetching user details", err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.ledger.ReconcileAccount(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, statusFor(err), "Error reconciling earnings", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.HealthCheck(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// statusFor maps the store sentinels onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrConcurrentModification), errors.Is(err, store.ErrDuplicateTransaction):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("Failed to encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	// internal failures are logged, not echoed to the client
	if err != nil && status < http.StatusInternalServerError {
		resp.Details = err.Error()
	} else if err != nil {
		zap.L().Error(message, zap.Error(err))
	}
	writeJSON(w, status, resp)
}
