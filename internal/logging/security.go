// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

package logging

import (
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// SecurityEvent represents a security-relevant event for audit logging: a
// bearer token rejection, a policy denial, an admin_emergency write-barrier
// override, or a tenant lifecycle transition (freeze/migrate/cutover).
type SecurityEvent struct {
	// Event is the type of event (e.g., "auth_failed", "policy_denied", "admin_emergency_write").
	Event string
	// UserID is the actor's user id (if known).
	UserID string
	// TenantID is the tenant the event concerns, formatted as a string (empty if not tenant-scoped).
	TenantID string
	// Resource and Action identify what the actor attempted, for policy events.
	Resource string
	Action   string
	// IPAddress is the client's IP address.
	IPAddress string
	// Success indicates if the operation was successful.
	Success bool
	// Error is the error message if the operation failed.
	Error string
	// Details contains additional sanitized details.
	Details map[string]string
}

// SecurityLogger provides secure logging for authentication events.
// It automatically sanitizes sensitive data before logging.
type SecurityLogger struct {
	logger zerolog.Logger
}

// NewSecurityLogger creates a new security logger.
func NewSecurityLogger() *SecurityLogger {
	return &SecurityLogger{
		logger: With().Str("component", "security").Logger(),
	}
}

// NewSecurityLoggerWithLogger creates a security logger with a custom zerolog logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewSecurityLoggerWithLogger(logger zerolog.Logger) *SecurityLogger {
	return &SecurityLogger{
		logger: logger.With().Str("component", "security").Logger(),
	}
}

// LogEvent logs a security event with automatic sanitization.
func (l *SecurityLogger) LogEvent(event *SecurityEvent) {
	e := l.logger.Info().
		Str("event", event.Event)

	if event.Success {
		e = e.Str("status", "success")
	} else {
		e = e.Str("status", "failed")
	}

	if event.UserID != "" {
		e = e.Str("user_id", SanitizeUserID(event.UserID))
	}

	if event.TenantID != "" {
		e = e.Str("tenant_id", event.TenantID)
	}

	if event.Resource != "" {
		e = e.Str("resource", event.Resource)
	}

	if event.Action != "" {
		e = e.Str("action", event.Action)
	}

	if event.IPAddress != "" {
		e = e.Str("ip", event.IPAddress)
	}

	if event.Error != "" && !event.Success {
		e = e.Str("error", SanitizeError(event.Error))
	}

	// Add sanitized details
	for k, v := range event.Details {
		e = e.Str(k, SanitizeValue(k, v))
	}

	e.Msg("")
}

// Debug logs a debug-level message.
func (l *SecurityLogger) Debug(msg string, fields ...interface{}) {
	e := l.logger.Debug()
	e = addFieldPairs(e, fields)
	e.Msg(msg)
}

// Info logs an info-level message.
func (l *SecurityLogger) Info(msg string, fields ...interface{}) {
	e := l.logger.Info()
	e = addFieldPairs(e, fields)
	e.Msg(msg)
}

// Warn logs a warning-level message.
func (l *SecurityLogger) Warn(msg string, fields ...interface{}) {
	e := l.logger.Warn()
	e = addFieldPairs(e, fields)
	e.Msg(msg)
}

// Error logs an error-level message.
func (l *SecurityLogger) Error(msg string, fields ...interface{}) {
	e := l.logger.Error()
	e = addFieldPairs(e, fields)
	e.Msg(msg)
}

// addFieldPairs adds key-value pairs to a zerolog event.
func addFieldPairs(e *zerolog.Event, fields []interface{}) *zerolog.Event {
	for i := 0; i < len(fields); i += 2 {
		if i+1 < len(fields) {
			key, ok := fields[i].(string)
			if !ok {
				continue
			}
			e = e.Interface(key, fields[i+1])
		}
	}
	return e
}

// ============================================================
// Pre-defined Security Events
// ============================================================

// LogAuthenticationFailure logs a rejected bearer token at the HTTP edge --
// missing, malformed, wrong signing method, or expired.
func (l *SecurityLogger) LogAuthenticationFailure(ip, reason string) {
	l.LogEvent(&SecurityEvent{
		Event:     "auth_failed",
		IPAddress: ip,
		Success:   false,
		Error:     reason,
	})
}

// LogPolicyDenial logs a Casbin policy check that denied an actor's command.
func (l *SecurityLogger) LogPolicyDenial(userID string, tenantID int64, resource, action string) {
	l.LogEvent(&SecurityEvent{
		Event:    "policy_denied",
		UserID:   userID,
		TenantID: tenantIDString(tenantID),
		Resource: resource,
		Action:   action,
		Success:  false,
	})
}

// LogAdminEmergencyWrite logs a write performed under the admin_emergency
// write-barrier tag (spec.md's documented escape hatch for direct repair
// writes outside the normal command/projection/migration paths).
func (l *SecurityLogger) LogAdminEmergencyWrite(userID string, tenantID int64, entity string) {
	l.LogEvent(&SecurityEvent{
		Event:    "admin_emergency_write",
		UserID:   userID,
		TenantID: tenantIDString(tenantID),
		Resource: entity,
		Success:  true,
	})
}

// LogTenantFrozen logs a tenant entering MIGRATING status as step one of a
// migration.
func (l *SecurityLogger) LogTenantFrozen(userID string, tenantID int64) {
	l.LogEvent(&SecurityEvent{
		Event:    "tenant_frozen",
		UserID:   userID,
		TenantID: tenantIDString(tenantID),
		Success:  true,
	})
}

// LogTenantMigrated logs a completed cutover to a new isolation mode/handle.
func (l *SecurityLogger) LogTenantMigrated(userID string, tenantID int64, toMode, targetHandle string) {
	l.LogEvent(&SecurityEvent{
		Event:    "tenant_migrated",
		UserID:   userID,
		TenantID: tenantIDString(tenantID),
		Success:  true,
		Details: map[string]string{
			"to_mode":       toMode,
			"target_handle": targetHandle,
		},
	})
}

// LogTenantMigrationRolledBack logs a migration that failed and was rolled
// back to the tenant's prior status/handle.
func (l *SecurityLogger) LogTenantMigrationRolledBack(userID string, tenantID int64, reason string) {
	l.LogEvent(&SecurityEvent{
		Event:    "tenant_migration_rolled_back",
		UserID:   userID,
		TenantID: tenantIDString(tenantID),
		Success:  false,
		Error:    reason,
	})
}

func tenantIDString(tenantID int64) string {
	if tenantID == 0 {
		return ""
	}
	return strconv.FormatInt(tenantID, 10)
}

// ============================================================
// Sanitization Functions
// ============================================================

// SanitizeToken masks a token, showing only first and last 4 characters.
// Example: "eyJhbGciOiJSUzI1NiIsInR5cCI6IkpXVCJ9" -> "eyJh...VCJ9"
func SanitizeToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 12 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// SanitizeSessionID masks a session ID.
// Example: "abc123def456789" -> "abc1...6789"
func SanitizeSessionID(sessionID string) string {
	if sessionID == "" {
		return ""
	}
	if len(sessionID) <= 12 {
		return "***"
	}
	return sessionID[:4] + "..." + sessionID[len(sessionID)-4:]
}

// SanitizeUserID masks a user ID for privacy.
// Example: "user-12345678" -> "user...5678"
func SanitizeUserID(userID string) string {
	if userID == "" {
		return ""
	}
	if len(userID) <= 8 {
		return "***"
	}
	return userID[:4] + "..." + userID[len(userID)-4:]
}

// SanitizeUsername masks a username, keeping first 2 characters.
// Example: "johndoe" -> "jo***"
func SanitizeUsername(username string) string {
	if username == "" {
		return ""
	}
	if len(username) <= 2 {
		return "***"
	}
	return username[:2] + "***"
}

// SanitizeEmail masks an email address.
// Example: "john.doe@example.com" -> "jo***@example.com"
func SanitizeEmail(email string) string {
	if email == "" {
		return ""
	}

	atIndex := strings.Index(email, "@")
	if atIndex <= 0 {
		return "***"
	}

	localPart := email[:atIndex]
	domain := email[atIndex:]

	if len(localPart) <= 2 {
		return "***" + domain
	}
	return localPart[:2] + "***" + domain
}

// SanitizeError removes potentially sensitive information from error messages.
func SanitizeError(err string) string {
	// Remove potential secrets from error messages
	sensitivePatterns := []string{
		"password",
		"secret",
		"token",
		"key",
		"bearer",
		"authorization",
		"cookie",
	}

	lowerErr := strings.ToLower(err)
	for _, pattern := range sensitivePatterns {
		if strings.Contains(lowerErr, pattern) {
			// Generic error message
			return "authentication error"
		}
	}

	// Truncate long errors
	return truncateString(err, 200)
}

// SanitizeValue sanitizes a value based on its key name.
func SanitizeValue(key, value string) string {
	lowerKey := strings.ToLower(key)

	// Check for sensitive key names
	sensitiveKeys := map[string]bool{
		"access_token":  true,
		"refresh_token": true,
		"id_token":      true,
		"token":         true,
		"password":      true,
		"secret":        true,
		"api_key":       true,
		"apikey":        true,
		"authorization": true,
		"bearer":        true,
		"cookie":        true,
		"session":       true,
		"session_id":    true,
		"sessionid":     true,
	}

	if sensitiveKeys[lowerKey] {
		return SanitizeToken(value)
	}

	// Check for email-like values
	if strings.Contains(value, "@") && strings.Contains(value, ".") {
		return SanitizeEmail(value)
	}

	return value
}

// truncateString truncates a string to a maximum length.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
