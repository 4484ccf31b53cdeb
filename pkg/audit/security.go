// Package audit provides security audit logging for SIEM consumption.
// Events are logged as structured JSON under the "security_audit" logger
// name so they can be routed and alerted on separately from engine logs.
package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ekaya-inc/ekaya-query-engine/pkg/logging"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventSuspiciousValue is logged when libinjection recognises a bound value as SQL.
	EventSuspiciousValue SecurityEventType = "suspicious_value"
	// EventValidationFailure is logged when a request is rejected before execution.
	EventValidationFailure SecurityEventType = "validation_failure"
	// EventSecurityCriteria is logged when security-relevant criteria shape a query.
	EventSecurityCriteria SecurityEventType = "security_criteria_applied"
)

// Severities.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Execution identifies the query execution an event belongs to.
type Execution struct {
	Query       string
	ExecutionID uuid.UUID
	Principal   any // opaque; rendered with fmt when not nil
}

// SecurityEvent is the JSON document written for every audit event.
type SecurityEvent struct {
	Timestamp   time.Time         `json:"timestamp"`
	EventType   SecurityEventType `json:"event_type"`
	Query       string            `json:"query"`
	ExecutionID uuid.UUID         `json:"execution_id"`
	Principal   string            `json:"principal,omitempty"`
	Details     any               `json:"details"`
	Severity    string            `json:"severity"`
}

// SuspiciousValueDetails describes a value libinjection flagged. The value
// itself is never logged.
type SuspiciousValueDetails struct {
	Field       string `json:"field"`
	Fingerprint string `json:"fingerprint"` // libinjection fingerprint for pattern analysis
	Rejected    bool   `json:"rejected"`
}

// CriteriaDetails names an applied criteria and the parameters it bound.
// Parameter values are omitted; they may carry tenant or user identifiers.
type CriteriaDetails struct {
	Name   string   `json:"name"`
	Params []string `json:"params,omitempty"`
}

// SecurityAuditor logs security events for SIEM consumption.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates an auditor logging under the "security_audit" name.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{logger: logging.OrNop(logger).Named("security_audit")}
}

// LogSuspiciousValue records a bound value that looks like SQL. Rejected
// values are critical; values that were bound anyway are warnings.
func (a *SecurityAuditor) LogSuspiciousValue(exec Execution, details SuspiciousValueDetails) {
	severity, level := SeverityWarning, zap.WarnLevel
	if details.Rejected {
		severity, level = SeverityCritical, zap.ErrorLevel
	}

	a.write(level, "Suspicious value detected", exec, EventSuspiciousValue, severity, details,
		zap.String("field", details.Field),
		zap.String("fingerprint", details.Fingerprint),
		zap.Bool("rejected", details.Rejected))
}

// LogValidationFailure records a request rejected by validation. These are
// typically caller errors, not attacks.
func (a *SecurityAuditor) LogValidationFailure(exec Execution, codes []string) {
	a.write(zap.WarnLevel, "Request validation failed", exec, EventValidationFailure, SeverityWarning,
		map[string][]string{"violations": codes},
		zap.Strings("violations", codes))
}

// LogSecurityCriteria records the security-relevant criteria applied to an
// execution. Nothing is logged when criteria is empty.
func (a *SecurityAuditor) LogSecurityCriteria(exec Execution, criteria []CriteriaDetails) {
	if len(criteria) == 0 {
		return
	}
	names := make([]string, len(criteria))
	for i, c := range criteria {
		names[i] = c.Name
	}
	a.write(zap.InfoLevel, "Security criteria applied", exec, EventSecurityCriteria, SeverityInfo, criteria,
		zap.Strings("criteria", names))
}

func (a *SecurityAuditor) write(level zapcore.Level, msg string, exec Execution, typ SecurityEventType, severity string, details any, fields ...zap.Field) {
	ce := a.logger.Check(level, msg)
	if ce == nil {
		return
	}

	event := SecurityEvent{
		Timestamp:   time.Now().UTC(),
		EventType:   typ,
		Query:       exec.Query,
		ExecutionID: exec.ExecutionID,
		Principal:   principalString(exec.Principal),
		Details:     details,
		Severity:    severity,
	}
	// Marshaling these known types cannot fail.
	eventJSON, _ := json.Marshal(event)

	ce.Write(append([]zap.Field{
		zap.String("event_json", string(eventJSON)),
		zap.String("query", exec.Query),
		zap.String("execution_id", exec.ExecutionID.String()),
		zap.String("principal", event.Principal),
		zap.String("severity", severity),
	}, fields...)...)
}

func principalString(p any) string {
	if p == nil {
		return ""
	}
	return fmt.Sprint(p)
}
