package translate

import (
	"strings"

	"subaddon/models"
)

// Error is the classified, terminal translation failure described in
// ShouldChunk and NeedsSmallerChunks let the caller
// (engine, orchestrator) decide whether to automatically retry in a
// different mode.
type Error struct {
	Type               models.ErrorType
	Message            string
	ShouldChunk        bool
	NeedsSmallerChunks bool
}

func (e *Error) Error() string { return e.Message }

// classify maps a raw LLM-client error/finish-reason into an ErrorType.
func classify(finishReason string, rawErr error) *Error {
	if rawErr != nil {
		msg := strings.ToLower(rawErr.Error())
		switch {
		case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit"):
			return &Error{Type: models.ErrorType429, Message: rawErr.Error()}
		case strings.Contains(msg, "503") || strings.Contains(msg, "unavailable") || strings.Contains(msg, "overloaded"):
			return &Error{Type: models.ErrorType503, Message: rawErr.Error()}
		default:
			return &Error{Type: models.ErrorTypeOther, Message: rawErr.Error()}
		}
	}

	switch strings.ToUpper(finishReason) {
	case "SAFETY":
		return &Error{Type: models.ErrorTypeSafety, Message: "blocked by safety filter"}
	case "RECITATION":
		return &Error{Type: models.ErrorTypeSafety, Message: "blocked as recitation"}
	case "MAX_TOKENS":
		return &Error{Type: models.ErrorTypeMaxTokens, Message: "output truncated at token limit", ShouldChunk: true}
	}
	return nil
}

// evaluateMaxTokens applies the MAX_TOKENS partial-accept rule:
// output covering ≥30% of the source length is accepted as a partial
// result rather than erroring; anything smaller is a terminal error, and
// near-empty output additionally asks for smaller chunks on retry.
func evaluateMaxTokens(sourceLen, outputLen int) (acceptPartial bool, needsSmallerChunks bool) {
	if sourceLen == 0 {
		return true, false
	}
	ratio := float64(outputLen) / float64(sourceLen)
	if ratio >= 0.3 {
		return true, false
	}
	return false, ratio < 0.05
}
