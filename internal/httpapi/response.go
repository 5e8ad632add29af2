// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nxentra/ledgerd/internal/apperrors"
	"github.com/nxentra/ledgerd/internal/command"
)

// envelope is the handler's JSON response shape. Serialization itself is
// explicitly out of scope (spec.md §1); this is the thinnest possible
// wrapper around a command.Result, not a public API contract.
type envelope struct {
	Success bool        `json:"success"`
	Event   interface{} `json:"event,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func writeResult(w http.ResponseWriter, result command.Result) {
	if !result.Success {
		writeError(w, result.Err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Event: result.Event})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps an apperrors.Category to an HTTP status: invariant
// violation -> 400, idempotency replay -> 200 (the retried call still
// succeeded), integrity violation -> 409, authorization -> 403, tenant
// read-only -> 503, transient -> 429, everything else -> 500.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apperrors.Categorize(err) {
	case apperrors.CategoryInvariantViolation:
		status = http.StatusBadRequest
	case apperrors.CategoryIdempotencyReplay:
		status = http.StatusOK
	case apperrors.CategoryIntegrityViolation:
		status = http.StatusConflict
	case apperrors.CategoryAuthorization:
		status = http.StatusForbidden
	case apperrors.CategoryTenantReadOnly:
		status = http.StatusServiceUnavailable
	case apperrors.CategoryTransient:
		status = http.StatusTooManyRequests
	}
	writeJSON(w, status, envelope{Success: false, Error: err.Error()})
}

func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperrors.New(apperrors.CategoryInvariantViolation, fmt.Sprintf("decode request body: %v", err))
	}
	return nil
}

func pathInt64(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("path parameter %q must be an integer, got %q", name, raw)
	}
	return v, nil
}

func pathString(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}
