package logredact

import (
	"strings"
	"testing"
)

func TestToken(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"short", "abc", "***"},
		{"boundary", "12345678", "***"},
		{"long", "tok-0123456789abcdef", "tok-***(20)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Token(tt.input); got != tt.want {
				t.Errorf("Token(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestMapRedactsSensitiveKeys(t *testing.T) {
	out := Map(map[string]any{
		"api_token":  "secret-value",
		"grant_type": "client_credentials",
		"nested": map[string]any{
			"Access_Token": "also-secret",
			"expires_in":   1799,
		},
	})

	if out["api_token"] != "***" {
		t.Errorf("api_token = %v, want ***", out["api_token"])
	}
	if out["grant_type"] != "client_credentials" {
		t.Errorf("grant_type should pass through, got %v", out["grant_type"])
	}
	nested := out["nested"].(map[string]any)
	if nested["Access_Token"] != "***" {
		t.Errorf("nested Access_Token = %v, want *** (case-insensitive match)", nested["Access_Token"])
	}
	if nested["expires_in"] != 1799 {
		t.Errorf("nested expires_in should pass through, got %v", nested["expires_in"])
	}
}

func TestJSON(t *testing.T) {
	out := JSON([]byte(`{"access_token":"abc","token_type":"Bearer","items":[{"refresh_token":"xyz"}]}`))
	if strings.Contains(out, "abc") || strings.Contains(out, "xyz") {
		t.Fatalf("redacted JSON still contains secrets: %s", out)
	}
	if !strings.Contains(out, "Bearer") {
		t.Fatalf("redacted JSON lost non-sensitive field: %s", out)
	}

	if got := JSON([]byte("<html>not json</html>")); got != "<non-json payload redacted>" {
		t.Fatalf("non-JSON payload = %q", got)
	}
	if got := JSON(nil); got != "" {
		t.Fatalf("empty payload = %q, want empty string", got)
	}
}
