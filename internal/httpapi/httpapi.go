package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"kasirledger/backend/internal/domain"
	"kasirledger/backend/internal/lock"
	"kasirledger/backend/internal/service"
	"kasirledger/backend/internal/store"
)

const (
	headerTenantID   = "X-Tenant-ID"
	headerStoreID    = "X-Store-ID"
	headerOperatorID = "X-Operator-ID"
)

type API struct {
	service       *service.Service
	logger        *zap.Logger
	allowedOrigin string
}

func New(svc *service.Service, logger *zap.Logger, allowedOrigin string) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{
		service:       svc,
		logger:        logger,
		allowedOrigin: allowedOrigin,
	}
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(a.recoverer)
	r.Use(a.securityHeaders)
	r.Use(a.requestLogger)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		a.writeError(w, http.StatusNotFound, "not_found", errors.New("route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		a.writeMethodNotAllowed(w)
	})

	r.Get("/healthz", a.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(a.withActor)

		r.Post("/sales", a.handleFinalizeSale)
		r.Get("/sales/{id}", a.handleGetSale)
		r.Post("/purchases", a.handleRecordPurchase)
		r.Get("/purchases/{id}", a.handleGetPurchase)

		r.Get("/returns/sources/{kind}/{sourceID}", a.handleReturnableItems)
		r.Post("/returns", a.handleCreateReturn)
		r.Get("/returns/{id}", a.handleGetReturn)
		r.Delete("/returns/{id}", a.handleDeleteReturn)
		r.Post("/returns/{id}/items", a.handleAddReturnItem)
		r.Post("/returns/{id}/status", a.handleSetReturnStatus)
		r.Patch("/return-items/{id}", a.handleUpdateReturnItem)
		r.Delete("/return-items/{id}", a.handleRemoveReturnItem)

		r.Post("/opname", a.handleCreateOpname)
		r.Get("/opname/{id}", a.handleGetOpname)
		r.Delete("/opname/{id}", a.handleDeleteOpname)
		r.Get("/opname/{id}/aggregates", a.handleOpnameAggregates)
		r.Post("/opname/{id}/items", a.handleAddOpnameItem)
		r.Post("/opname/{id}/status", a.handleSetOpnameStatus)
		r.Patch("/opname-items/{id}", a.handleUpdateOpnameItem)
		r.Delete("/opname-items/{id}", a.handleDeleteOpnameItem)

		r.Get("/audit-logs", a.handleAuditLogs)
	})

	return r
}

func (a *API) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Tenant-ID, X-Store-ID, X-Operator-ID")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		startedAt := time.Now()
		next.ServeHTTP(ww, r)
		a.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(startedAt)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (a *API) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				a.logger.Error("panic serving request", zap.Any("panic", rec), zap.String("path", r.URL.Path), zap.Stack("stack"))
				a.writeError(w, http.StatusInternalServerError, "internal", errors.New("panic"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// withActor reads the caller identity headers. Missing values fall back to
// the service defaults.
func (a *API) withActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := domain.Actor{
			TenantID:   strings.TrimSpace(r.Header.Get(headerTenantID)),
			StoreID:    strings.TrimSpace(r.Header.Get(headerStoreID)),
			OperatorID: strings.TrimSpace(r.Header.Get(headerOperatorID)),
		}
		if actor.OperatorID == "" {
			actor.OperatorID = "anonymous"
		}
		next.ServeHTTP(w, r.WithContext(service.WithActor(r.Context(), actor)))
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

// writeServiceError maps a service failure to its status and error code.
// Write-stage kinds are matched first: their causes may wrap store sentinels
// that would otherwise read as a client error.
func (a *API) writeServiceError(w http.ResponseWriter, err error) {
	var verr *service.ValidationError
	switch {
	case errors.Is(err, service.ErrItemsWriteFailed):
		code := "items_write_failed"
		if errors.Is(err, service.ErrCompensationFailed) {
			code = "items_write_failed_compensation_failed"
		}
		a.writeKindError(w, http.StatusBadGateway, code, service.ErrItemsWriteFailed, err)
	case errors.Is(err, service.ErrHeaderWriteFailed):
		a.writeKindError(w, http.StatusBadGateway, "header_write_failed", service.ErrHeaderWriteFailed, err)
	case errors.Is(err, service.ErrTotalsWriteFailed):
		code := "totals_write_failed"
		if errors.Is(err, service.ErrCompensationFailed) {
			code = "totals_write_failed_compensation_failed"
		}
		a.writeKindError(w, http.StatusBadGateway, code, service.ErrTotalsWriteFailed, err)
	case errors.Is(err, service.ErrNumberAllocationFailed):
		a.writeKindError(w, http.StatusServiceUnavailable, "number_allocation_failed", service.ErrNumberAllocationFailed, err)
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  verr.Error(),
			"code":   "invalid_input",
			"fields": verr.Fields,
		})
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, store.ErrInvalidTransaction):
		a.writeError(w, http.StatusBadRequest, "invalid_input", err)
	case errors.Is(err, store.ErrNotFound):
		a.writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, service.ErrInsufficientPayment):
		a.writeError(w, http.StatusUnprocessableEntity, "insufficient_payment", err)
	case errors.Is(err, service.ErrReturnQuotaExceeded):
		a.writeError(w, http.StatusConflict, "return_quota_exceeded", err)
	case errors.Is(err, service.ErrInvalidState):
		a.writeError(w, http.StatusConflict, "invalid_state", err)
	case errors.Is(err, service.ErrDuplicateProduct):
		a.writeError(w, http.StatusConflict, "duplicate_product", err)
	case errors.Is(err, service.ErrEmptyDocument):
		a.writeError(w, http.StatusConflict, "empty_document", err)
	case errors.Is(err, lock.ErrBusy):
		a.writeKindError(w, http.StatusServiceUnavailable, "busy", lock.ErrBusy, err)
	default:
		a.writeError(w, http.StatusInternalServerError, "internal", err)
	}
}

// writeKindError answers with the kind's own message and logs the full cause.
func (a *API) writeKindError(w http.ResponseWriter, status int, code string, kind error, err error) {
	a.logger.Error("request failed", zap.Int("status", status), zap.String("code", code), zap.Error(err))
	writeJSON(w, status, map[string]any{
		"error": kind.Error(),
		"code":  code,
	})
}

func (a *API) writeMethodNotAllowed(w http.ResponseWriter) {
	a.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", errors.New("method not allowed"))
}

func (a *API) writeError(w http.ResponseWriter, status int, code string, err error) {
	// 5xx details stay in the log.
	msg := err.Error()
	if status >= 500 {
		a.logger.Error("internal error", zap.Int("status", status), zap.Error(err))
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
		"code":  code,
	})
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
