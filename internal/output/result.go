// Package output renders responses in the three print-mode formats: plain
// text, the JSON result wrapper, and the condensed stream-json event
// sequence real Claude CLI emits.
package output

import (
	"fmt"

	"github.com/google/uuid"
)

// Usage is the token/cost block carried by result envelopes.
type Usage struct {
	InputTokens              int64   `json:"input_tokens"`
	OutputTokens             int64   `json:"output_tokens"`
	CacheCreationInputTokens int64   `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int64   `json:"cache_read_input_tokens"`
	CostUSD                  float64 `json:"cost_usd"`
}

// UsageFromTokens builds a usage block with the cost estimate filled in.
func UsageFromTokens(inputTokens int64, outputTokens int64) Usage {
	return Usage{
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		CostUSD:      EstimateCost(inputTokens, outputTokens),
	}
}

// EstimateCost prices tokens at Sonnet rates: $3/M input, $15/M output.
func EstimateCost(inputTokens int64, outputTokens int64) float64 {
	return float64(inputTokens)*0.000003 + float64(outputTokens)*0.000015
}

// EstimateTokens approximates a token count as four characters per token.
func EstimateTokens(text string) int64 {
	n := int64(len(text) / 4)
	if n < 1 {
		return 1
	}
	return n
}

// ResultOutput is the terminal result wrapper for --output-format json and
// the final stream-json event.
type ResultOutput struct {
	Type              string           `json:"type"`
	Subtype           string           `json:"subtype"`
	CostUSD           float64          `json:"cost_usd"`
	IsError           bool             `json:"is_error"`
	DurationMS        int64            `json:"duration_ms"`
	DurationAPIMS     int64            `json:"duration_api_ms"`
	NumTurns          int              `json:"num_turns"`
	Result            string           `json:"result,omitempty"`
	Error             string           `json:"error,omitempty"`
	SessionID         string           `json:"session_id"`
	UUID              string           `json:"uuid"`
	RetryAfter        int64            `json:"retry_after,omitempty"`
	ModelUsage        map[string]Usage `json:"modelUsage"`
	Usage             Usage            `json:"usage"`
	PermissionDenials []string         `json:"permission_denials"`
}

func baseResult(sessionID string) ResultOutput {
	return ResultOutput{
		Type:              "result",
		Subtype:           "success",
		SessionID:         sessionID,
		UUID:              uuid.NewString(),
		ModelUsage:        map[string]Usage{},
		PermissionDenials: []string{},
	}
}

// SuccessResult builds a success envelope, estimating output tokens from the
// result text when outputTokens is zero.
func SuccessResult(result string, sessionID string, durationMS int64, inputTokens int64, outputTokens int64, model string) ResultOutput {
	if outputTokens == 0 {
		outputTokens = EstimateTokens(result)
	}
	usage := UsageFromTokens(inputTokens, outputTokens)

	out := baseResult(sessionID)
	out.CostUSD = usage.CostUSD
	out.DurationMS = durationMS
	out.DurationAPIMS = max(durationMS-50, 0)
	out.NumTurns = 1
	out.Result = result
	out.Usage = usage
	out.ModelUsage[model] = usage
	return out
}

// ErrorResult builds an error envelope.
func ErrorResult(errText string, sessionID string, durationMS int64) ResultOutput {
	out := baseResult(sessionID)
	out.Subtype = "error"
	out.IsError = true
	out.DurationMS = durationMS
	out.DurationAPIMS = max(durationMS-10, 0)
	out.Error = errText
	return out
}

// RateLimitResult builds the rate-limit error envelope with retry_after set.
func RateLimitResult(retryAfter int64, sessionID string) ResultOutput {
	out := baseResult(sessionID)
	out.Subtype = "error"
	out.IsError = true
	out.DurationMS = 50
	out.DurationAPIMS = 50
	out.Error = fmt.Sprintf("Rate limited. Retry after %d seconds.", retryAfter)
	out.RetryAfter = retryAfter
	return out
}
