package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"docbench/internal/domain"
	"docbench/internal/port"
)

// StripFences removes an optional leading ```json (or bare ```) fence and an
// optional trailing ``` fence. The language tag is case-insensitive.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = s[3:]
		if len(s) >= 4 && strings.EqualFold(s[:4], "json") {
			s = s[4:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// DecodeEnvelope turns a backend envelope into the predicted tree.
//
// An envelope with an error returns an *EnvelopeError. One with neither a
// result nor an error is malformed, and so is a null result. A string
// result is fence-stripped and parsed; any other result is parsed as is.
func DecodeEnvelope(env *port.Envelope) (any, error) {
	if env == nil {
		return nil, fmt.Errorf("%w: backend returned no envelope", domain.ErrExtraction)
	}
	if env.Error != "" {
		return nil, &EnvelopeError{Message: env.Error}
	}
	if env.Status == port.StatusFailed {
		return nil, &EnvelopeError{Message: "backend reported status failed"}
	}
	if len(bytes.TrimSpace(env.Result)) == 0 {
		return nil, fmt.Errorf("%w: malformed envelope: neither result nor error", domain.ErrExtraction)
	}

	raw := bytes.TrimSpace(env.Result)
	if bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("%w: malformed envelope: null result", domain.ErrExtraction)
	}
	if raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, newParseError(SourcePredicted, raw, err, 0)
		}
		return parseJSON(SourcePredicted, []byte(StripFences(text)))
	}
	return parseJSON(SourcePredicted, raw)
}

// DecodePredicted decodes a predicted payload read from a file or request.
// The payload may be a full envelope, bare JSON, or fenced model text.
func DecodePredicted(data []byte) (any, error) {
	text := StripFences(string(data))
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &probe); err == nil && isEnvelope(probe) {
		var env port.Envelope
		if err := json.Unmarshal([]byte(text), &env); err != nil {
			return nil, newParseError(SourcePredicted, []byte(text), err, 0)
		}
		return DecodeEnvelope(&env)
	}
	return parseJSON(SourcePredicted, []byte(text))
}

func isEnvelope(m map[string]json.RawMessage) bool {
	if len(m) == 0 {
		return false
	}
	_, hasResult := m["result"]
	_, hasError := m["error"]
	if !hasResult && !hasError {
		return false
	}
	for k := range m {
		if k != "result" && k != "error" && k != "status" {
			return false
		}
	}
	return true
}
