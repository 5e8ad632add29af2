// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

package httpapi

import (
	"net/http"

	"github.com/nxentra/ledgerd/internal/apperrors"
	"github.com/nxentra/ledgerd/internal/command"
	"github.com/nxentra/ledgerd/internal/migration"
	"github.com/nxentra/ledgerd/internal/tenant"
)

// handlers here only decode a request body into the matching command Input
// struct and call into the command layer; no validation or business rule
// lives in this package (spec.md §1: "HTTP/REST serializers" are out of
// scope, the command layer is the sole place workflow rules are checked).

func (s *Server) handleRegisterTenant(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())
	var body struct {
		TenantID      int64                `json:"tenant_id"`
		IsolationMode tenant.IsolationMode `json:"isolation_mode"`
		Handle        string               `json:"handle"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if err := s.cmd.RegisterTenant(r.Context(), actor, s.dir, command.RegisterTenantInput{
		TenantID: body.TenantID, IsolationMode: body.IsolationMode, Handle: body.Handle,
	}); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{Success: true})
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())
	var in command.CreateAccountInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	writeResult(w, s.cmd.CreateAccount(r.Context(), actor, in))
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())
	var in command.UpdateAccountInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	in.AccountID = pathString(r, "accountID")
	writeResult(w, s.cmd.UpdateAccount(r.Context(), actor, in))
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())
	writeResult(w, s.cmd.DeleteAccount(r.Context(), actor, pathString(r, "accountID")))
}

func (s *Server) handleCreateJournalEntry(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())
	var in command.CreateJournalEntryInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	writeResult(w, s.cmd.CreateJournalEntry(r.Context(), actor, s.cfg.Payload.MaxLinesPerChunk, in))
}

func (s *Server) handleUpdateJournalEntry(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())
	var in command.UpdateJournalEntryInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	in.JournalID = pathString(r, "journalID")
	writeResult(w, s.cmd.UpdateJournalEntry(r.Context(), actor, in))
}

func (s *Server) handleSaveCompleteJournalEntry(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())
	writeResult(w, s.cmd.SaveComplete(r.Context(), actor, pathString(r, "journalID")))
}

func (s *Server) handlePostJournalEntry(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())
	writeResult(w, s.cmd.Post(r.Context(), actor, pathString(r, "journalID")))
}

func (s *Server) handleReverseJournalEntry(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())
	writeResult(w, s.cmd.Reverse(r.Context(), actor, s.cfg.Payload.MaxLinesPerChunk, pathString(r, "journalID")))
}

func (s *Server) handleDeleteJournalEntry(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())
	writeResult(w, s.cmd.Delete(r.Context(), actor, pathString(r, "journalID")))
}

func (s *Server) handleSetLineAnalysis(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())
	var body struct {
		LineIndex    int         `json:"line_index"`
		AnalysisTags interface{} `json:"analysis_tags"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	writeResult(w, s.cmd.SetLineAnalysis(r.Context(), actor, pathString(r, "journalID"), body.LineIndex, body.AnalysisTags))
}

func (s *Server) handleMigrateTenant(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())
	tenantID, err := pathInt64(r, "tenantID")
	if err != nil {
		writeError(w, apperrors.New(apperrors.CategoryInvariantViolation, err.Error()))
		return
	}
	var body struct {
		TargetMode   tenant.IsolationMode `json:"target_mode"`
		TargetHandle string               `json:"target_handle"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	report, err := s.migrator.Migrate(r.Context(), actor, migration.Plan{
		TenantID: tenantID, TargetMode: body.TargetMode, TargetHandle: body.TargetHandle,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleSetTenantStatus drives the operator-initiated status transitions
// SetTenantReadOnly, SuspendTenant, and ResumeTenant expose -- the ones
// MIGRATING does not cover, since only the migration orchestrator sets
// that one.
func (s *Server) handleSetTenantStatus(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())
	tenantID, err := pathInt64(r, "tenantID")
	if err != nil {
		writeError(w, apperrors.New(apperrors.CategoryInvariantViolation, err.Error()))
		return
	}
	var body struct {
		Status tenant.Status `json:"status"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	switch body.Status {
	case tenant.StatusReadOnly:
		err = s.cmd.SetTenantReadOnly(r.Context(), actor, s.dir, tenantID)
	case tenant.StatusSuspended:
		err = s.cmd.SuspendTenant(r.Context(), actor, s.dir, tenantID)
	case tenant.StatusActive:
		err = s.cmd.ResumeTenant(r.Context(), actor, s.dir, tenantID)
	default:
		err = apperrors.New(apperrors.CategoryInvariantViolation, "status must be READ_ONLY, SUSPENDED, or ACTIVE")
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(body.Status)})
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"alive": true})
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if err := s.readiness(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ready": true})
}

func (s *Server) handleFullHealth(w http.ResponseWriter, r *http.Request) {
	report, err := s.fullHealth(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, report)
}
