// Package failure simulates API failure conditions: error envelopes,
// session error records, and the exit codes the real CLI produces.
package failure

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/claudeless/claudeless/internal/output"
	"github.com/claudeless/claudeless/internal/scenario"
	"github.com/claudeless/claudeless/internal/state"
)

// Exit codes matching real Claude CLI behavior.
const (
	// ExitSuccess is a clean run.
	ExitSuccess = 0
	// ExitError covers auth, network and billing failures.
	ExitError = 1
	// ExitPartial marks an interrupted or truncated response.
	ExitPartial = 2
	// ExitInterrupted is the SIGINT exit status.
	ExitInterrupted = 130
)

// FromFlag maps a --failure flag value to a failure spec with default
// parameters. Unknown values return an error listing the accepted modes.
func FromFlag(mode string) (*scenario.FailureSpec, error) {
	switch mode {
	case "network":
		return &scenario.FailureSpec{Type: scenario.FailureNetworkUnreachable}, nil
	case "timeout":
		return &scenario.FailureSpec{Type: scenario.FailureConnectionTimeout, AfterMS: 5000}, nil
	case "auth":
		return &scenario.FailureSpec{Type: scenario.FailureAuthError, Message: "Invalid API key"}, nil
	case "rate-limit", "rate_limit":
		return &scenario.FailureSpec{Type: scenario.FailureRateLimit, RetryAfter: 60}, nil
	case "credits":
		return &scenario.FailureSpec{Type: scenario.FailureOutOfCredits}, nil
	case "partial":
		return &scenario.FailureSpec{Type: scenario.FailurePartialResponse, PartialText: "I was going to say..."}, nil
	case "malformed":
		return &scenario.FailureSpec{Type: scenario.FailureMalformedJSON, Raw: `{"type":"message","content":[{`}, nil
	default:
		return nil, fmt.Errorf("unknown failure mode %q (expected network, timeout, auth, rate-limit, credits, partial, or malformed)", mode)
	}
}

// Describe returns the human-readable error text and error class for a
// failure spec. Malformed JSON has neither and returns ok=false.
func Describe(spec *scenario.FailureSpec) (text, class string, ok bool) {
	rec, ok := recordFor(spec)
	return rec.errText, rec.errType, ok
}

// record captures the session log line for a failure.
type record struct {
	errText    string
	errType    string
	retryAfter int
	durationMS int64
}

func recordFor(spec *scenario.FailureSpec) (record, bool) {
	switch spec.Type {
	case scenario.FailureNetworkUnreachable:
		return record{"Network error: Connection refused", "network_error", 0, 5000}, true
	case scenario.FailureConnectionTimeout:
		return record{
			fmt.Sprintf("Network error: Connection timed out after %dms", spec.AfterMS),
			"timeout_error", 0, spec.AfterMS,
		}, true
	case scenario.FailureAuthError:
		return record{spec.Message, "authentication_error", 0, 100}, true
	case scenario.FailureRateLimit:
		return record{
			fmt.Sprintf("Rate limited. Retry after %d seconds.", spec.RetryAfter),
			"rate_limit_error", int(spec.RetryAfter), 50,
		}, true
	case scenario.FailureOutOfCredits:
		return record{"Billing error: No credits remaining", "billing_error", 0, 100}, true
	case scenario.FailurePartialResponse:
		return record{
			fmt.Sprintf("Partial response: %s", spec.PartialText),
			"partial_response", 0, 1000,
		}, true
	default:
		// Malformed JSON simulates corrupted output and leaves no record.
		return record{}, false
	}
}

// Execute runs a failure: records it to the session log when a writer is
// present, prints the error in the configured format, and returns the exit
// code. The connection-timeout variant sleeps first, honoring ctx.
func Execute(ctx context.Context, spec *scenario.FailureSpec, w *output.Writer, sessionID string, writer *state.Writer) (int, error) {
	if rec, ok := recordFor(spec); ok && writer != nil {
		if err := writer.RecordError(rec.errText, rec.errType, rec.retryAfter, rec.durationMS); err != nil {
			return ExitError, err
		}
	}

	switch spec.Type {
	case scenario.FailureNetworkUnreachable:
		err := w.WriteResult(output.ErrorResult("Network error: Connection refused", sessionID, 5000))
		return ExitError, err
	case scenario.FailureConnectionTimeout:
		select {
		case <-time.After(time.Duration(spec.AfterMS) * time.Millisecond):
		case <-ctx.Done():
			return ExitInterrupted, ctx.Err()
		}
		message := fmt.Sprintf("Network error: Connection timed out after %dms", spec.AfterMS)
		err := w.WriteResult(output.ErrorResult(message, sessionID, spec.AfterMS))
		return ExitError, err
	case scenario.FailureAuthError:
		err := w.WriteResult(output.ErrorResult(spec.Message, sessionID, 100))
		return ExitError, err
	case scenario.FailureRateLimit:
		err := w.WriteResult(output.RateLimitResult(spec.RetryAfter, sessionID))
		return ExitError, err
	case scenario.FailureOutOfCredits:
		err := w.WriteResult(output.ErrorResult("Billing error: No credits remaining", sessionID, 100))
		return ExitError, err
	case scenario.FailurePartialResponse:
		// Truncated mid-stream: partial text, no newline, partial exit code.
		if err := writeRaw(w, spec.PartialText); err != nil {
			return ExitPartial, err
		}
		return ExitPartial, nil
	case scenario.FailureMalformedJSON:
		if err := writeRaw(w, spec.Raw+"\n"); err != nil {
			return ExitSuccess, err
		}
		return ExitSuccess, nil
	default:
		return ExitError, fmt.Errorf("unknown failure type %q", spec.Type)
	}
}

func writeRaw(w *output.Writer, text string) error {
	_, err := io.WriteString(w.Raw(), text)
	return err
}
