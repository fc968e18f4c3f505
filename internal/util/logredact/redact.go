// Package logredact masks credential material before it reaches log output.
package logredact

import (
	"encoding/json"
	"strconv"
	"strings"
)

// maxDepth 限制递归深度以防止恶意嵌套拖垮日志路径
const maxDepth = 32

var sensitiveKeys = map[string]struct{}{
	"api_token":     {},
	"access_token":  {},
	"refresh_token": {},
	"id_token":      {},
	"app_secret":    {},
	"client_secret": {},
	"authorization": {},
	"password":      {},
}

// Token masks a bare credential string for logging, keeping just enough to
// correlate: first 4 runes and the length.
func Token(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if len(raw) <= 8 {
		return "***"
	}
	return raw[:4] + "***(" + strconv.Itoa(len(raw)) + ")"
}

// Map returns a copy of input with sensitive values replaced by "***".
func Map(input map[string]any) map[string]any {
	out, ok := redact(input, 0).(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return out
}

// JSON redacts a raw JSON payload. Non-JSON input is withheld entirely
// rather than logged as-is.
func JSON(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return "<non-json payload redacted>"
	}
	encoded, err := json.Marshal(redact(value, 0))
	if err != nil {
		return "<redacted>"
	}
	return string(encoded)
}

func redact(value any, depth int) any {
	if depth > maxDepth {
		return "<depth limit exceeded>"
	}
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			if sensitive(k) {
				out[k] = "***"
			} else {
				out[k] = redact(item, depth+1)
			}
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = redact(item, depth+1)
		}
		return out
	default:
		return value
	}
}

func sensitive(key string) bool {
	_, ok := sensitiveKeys[strings.ToLower(strings.TrimSpace(key))]
	return ok
}
