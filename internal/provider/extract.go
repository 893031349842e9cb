package provider

import (
	"encoding/json"
	"strings"
)

// payloadFields are the plausible top-level answer fields, probed in order.
// Providers do not share a response schema, so each known shape gets a try
// before the body is stringified wholesale.
var payloadFields = []string{"result", "response", "answer", "data", "message", "text", "content"}

// ExtractPayload normalizes an arbitrary provider response body into a
// single string payload. Non-JSON bodies are returned as-is.
func ExtractPayload(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}

	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return trimmed
	}

	for _, field := range payloadFields {
		value, ok := parsed[field]
		if !ok || value == nil {
			continue
		}
		if s := stringify(value); s != "" {
			return s
		}
	}
	return trimmed
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case map[string]any:
		// one level of nesting is common: {"data": {"result": "..."}}
		for _, field := range payloadFields {
			if inner, ok := v[field]; ok && inner != nil {
				if s := stringify(inner); s != "" {
					return s
				}
			}
		}
		encoded, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(encoded)
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if s := stringify(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n")
	case float64, bool:
		encoded, _ := json.Marshal(v)
		return string(encoded)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(encoded)
	}
}
