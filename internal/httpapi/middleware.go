// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/nxentra/ledgerd/internal/apperrors"
	"github.com/nxentra/ledgerd/internal/logging"
	"github.com/nxentra/ledgerd/internal/metrics"
	"github.com/nxentra/ledgerd/internal/tenant"
)

// requestLogger logs one structured line per request: method, path,
// status, and duration.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		metrics.HTTPRequestsInFlight.Inc()
		defer metrics.HTTPRequestsInFlight.Dec()

		next.ServeHTTP(ww, r)

		duration := time.Since(start)
		status := strconv.Itoa(ww.Status())
		metrics.RecordHTTPRequest(r.Method, r.URL.Path, status, duration)
		logging.Info().Str("method", r.Method).Str("path", r.URL.Path).
			Int("status", ww.Status()).Dur("duration", duration).Msg("http request")
	})
}

// requireActor resolves a bearer token into a policy.Actor and attaches it
// to the request context; every mutating route requires this.
func (s *Server) requireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := s.actors.extract(r)
		if err != nil {
			logging.NewSecurityLogger().LogAuthenticationFailure(r.RemoteAddr, err.Error())
			writeError(w, apperrors.New(apperrors.CategoryAuthorization, err.Error()))
			return
		}
		r = r.WithContext(withActor(r.Context(), actor))
		next.ServeHTTP(w, r)
	})
}

// resolveTenant reads {tenantID} from the route, resolves it through the
// tenant directory, and attaches the resulting tenant.Entry to the request
// context so downstream handlers never touch the directory directly.
func (s *Server) resolveTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := pathInt64(r, "tenantID")
		if err != nil {
			writeError(w, apperrors.New(apperrors.CategoryInvariantViolation, err.Error()))
			return
		}
		entry, err := s.dir.Resolve(r.Context(), tenantID)
		if err != nil {
			writeError(w, err)
			return
		}
		r = r.WithContext(tenant.WithTenant(r.Context(), entry))
		next.ServeHTTP(w, r)
	})
}
