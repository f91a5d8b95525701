package mcp

import (
	"fmt"

	"github.com/agentmail/agentmail/internal/domain"
)

// wireError is the {"error": {...}} payload embedded in isError:true tool
// content, matching the legacy error shape the original implementation's
// tool layer produces.
type wireError struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	Recoverable bool   `json:"recoverable"`
	Data        any    `json:"data,omitempty"`
}

// DomainErrorResult translates a domain.Error into a tool result carrying
// isError:true and the structured error payload from spec §7.
func DomainErrorResult(err error) *ToolsCallResult {
	de := domain.AsError(err)
	var we wireError
	switch de.Kind {
	case domain.KindInvalidArgument:
		we = wireError{
			Type:        "INVALID_ARGUMENT",
			Message:     fmt.Sprintf("Invalid argument value: %s: %s. Check that all parameters have valid values.", de.Field, de.Message),
			Recoverable: true,
			Data:        map[string]any{"field": de.Field, "error_detail": de.Message},
		}
	case domain.KindNotFound:
		we = wireError{
			Type:        "NOT_FOUND",
			Message:     fmt.Sprintf("%s not found: %s", de.Entity, de.Identifier),
			Recoverable: true,
			Data:        map[string]any{"entity": de.Entity, "identifier": de.Identifier},
		}
	case domain.KindDuplicate:
		we = wireError{
			Type:        "INVALID_ARGUMENT",
			Message:     fmt.Sprintf("%s already exists: %s", de.Entity, de.Identifier),
			Recoverable: true,
			Data:        map[string]any{"entity": de.Entity, "identifier": de.Identifier},
		}
	case domain.KindResourceBusy:
		we = wireError{
			Type:        "RESOURCE_BUSY",
			Message:     "Resource is temporarily busy. Wait a moment and try again.",
			Recoverable: true,
			Data:        map[string]any{"error_detail": de.Detail},
		}
	case domain.KindCircuitBreakerOpen:
		we = wireError{
			Type: "RESOURCE_BUSY",
			Message: fmt.Sprintf(
				"Circuit breaker open. Database experiencing sustained failures. Wait %.0fs before retrying.",
				de.ResetAfter,
			),
			Recoverable: true,
			Data:        map[string]any{"failures": de.Failures, "reset_after_secs": de.ResetAfter},
		}
	case domain.KindDatabaseError:
		we = wireError{
			Type:        "DATABASE_ERROR",
			Message:     fmt.Sprintf("Database error: %s", de.Detail),
			Recoverable: true,
			Data:        map[string]any{"error_detail": de.Detail},
		}
	case domain.KindIntegrityCorruption:
		we = wireError{
			Type:        "DATABASE_CORRUPTION",
			Message:     fmt.Sprintf("Database integrity check failed: %s. The database may be corrupted; consider restoring from backup.", de.Message),
			Recoverable: false,
			Data:        map[string]any{"error_detail": de.Message, "corruption_details": de.Details},
		}
	case domain.KindInternalPanic:
		we = wireError{
			Type:        "UNHANDLED_EXCEPTION",
			Message:     fmt.Sprintf("Unexpected error: %s", de.Message),
			Recoverable: false,
			Data:        map[string]any{"error_detail": de.Message},
		}
	default:
		we = wireError{Type: "UNHANDLED_EXCEPTION", Message: de.Error(), Recoverable: false}
	}

	result, marshalErr := JSONResult(map[string]any{"error": we})
	if marshalErr != nil {
		return ErrorResult(we.Message)
	}
	result.IsError = true
	return result
}

// IsCancelled reports whether err represents a Cancelled outcome, which is
// surfaced distinctly from a normal tool error per spec §5.
func IsCancelled(err error) bool {
	de, ok := err.(*domain.Error)
	return ok && de.Kind == domain.KindCancelled
}
