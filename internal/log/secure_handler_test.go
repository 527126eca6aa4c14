package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

func TestSecureHandler_SanitizesSensitiveKeys(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		key      string
		value    string
		wantMask bool
	}{
		{name: "text key is sanitized", key: "text", value: "hello world", wantMask: true},
		{name: "Text key (uppercase) is sanitized", key: "Text", value: "hello world", wantMask: true},
		{name: "html key is sanitized", key: "html", value: "<p>hi</p>", wantMask: true},
		{name: "suffix segment is sanitized", key: "unit.original_text", value: "plain words", wantMask: true},
		{name: "underscored suffix is sanitized", key: "node_content", value: "plain words", wantMask: true},
		{name: "password key is sanitized", key: "password", value: "hunter2", wantMask: true},
		{name: "kind key is NOT sanitized", key: "kind", value: "email", wantMask: false},
		{name: "path key is NOT sanitized", key: "path", value: "pages/index.html", wantMask: false},
		{name: "context key is NOT sanitized", key: "context", value: "scan", wantMask: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := NewSecureLogger(&buf, true)
			logger.Info("test message", tt.key, tt.value)
			output := buf.String()

			if tt.wantMask {
				if strings.Contains(output, tt.value) {
					t.Errorf("expected value %q to be masked, but found in output: %s", tt.value, output)
				}
				if !strings.Contains(output, MaskValue) {
					t.Errorf("expected mask value %q in output, but not found: %s", MaskValue, output)
				}
			} else if !strings.Contains(output, tt.value) {
				t.Errorf("expected value %q to be present in output, but not found: %s", tt.value, output)
			}
		})
	}
}

func TestSecureHandler_MasksAddresses(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		value  string
		leaked string
		kept   string
	}{
		{name: "email in value", value: "contact a@b.com now", leaked: "a@b.com", kept: "contact"},
		{name: "ipv4 in value", value: "server at 10.0.0.1", leaked: "10.0.0.1", kept: "server at"},
		{name: "ipv6 in value", value: "route via fe80::1 today", leaked: "fe80::", kept: "today"},
		{name: "both kinds", value: "a@b.com from 192.168.1.1", leaked: "192.168.1.1", kept: "from"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := NewSecureLogger(&buf, true)
			logger.Info("scan", "detail", tt.value)
			output := buf.String()

			if strings.Contains(output, tt.leaked) {
				t.Errorf("expected %q to be masked: %s", tt.leaked, output)
			}
			if !strings.Contains(output, tt.kept) {
				t.Errorf("expected %q to survive masking: %s", tt.kept, output)
			}
		})
	}
}

func TestSecureHandler_MasksMessageAndErrors(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewSecureLogger(&buf, true)

	err := fmt.Errorf("parse failed: %w", errors.New("bad address 10.1.2.3"))
	logger.Warn("lookup for admin@example.org failed", "error", err)

	output := buf.String()
	for _, leaked := range []string{"admin@example.org", "10.1.2.3"} {
		if strings.Contains(output, leaked) {
			t.Errorf("expected %q to be masked: %s", leaked, output)
		}
	}
	if !strings.Contains(output, "parse failed") {
		t.Errorf("expected the error text to survive: %s", output)
	}
}

func TestSecureHandler_LogLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		verbose   bool
		logFunc   func(*slog.Logger)
		wantEmpty bool
	}{
		{name: "debug hidden when not verbose", verbose: false, logFunc: func(l *slog.Logger) { l.Debug("debug") }, wantEmpty: true},
		{name: "info hidden when not verbose", verbose: false, logFunc: func(l *slog.Logger) { l.Info("info") }, wantEmpty: true},
		{name: "warn shown when not verbose", verbose: false, logFunc: func(l *slog.Logger) { l.Warn("warn") }},
		{name: "error shown when not verbose", verbose: false, logFunc: func(l *slog.Logger) { l.Error("error") }},
		{name: "debug shown when verbose", verbose: true, logFunc: func(l *slog.Logger) { l.Debug("debug") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			tt.logFunc(NewSecureLogger(&buf, tt.verbose))

			if got := buf.Len() == 0; got != tt.wantEmpty {
				t.Errorf("empty output = %v, want %v (output: %q)", got, tt.wantEmpty, buf.String())
			}
		})
	}
}

func TestSecureHandler_WithAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewSecureLogger(&buf, true).With("html", "<b>x</b>", "source", "mail to a@b.com")
	logger.Info("message")

	output := buf.String()
	if strings.Contains(output, "<b>x</b>") || strings.Contains(output, "a@b.com") {
		t.Errorf("expected attributes added with With to be sanitized: %s", output)
	}
}

func TestSecureHandler_WithGroup(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewSecureLogger(&buf, true).WithGroup("unit")
	logger.Info("message", slog.Group("detail", "text", "secret words", "kind", "ipv4"))

	output := buf.String()
	if strings.Contains(output, "secret words") {
		t.Errorf("expected grouped text to be masked: %s", output)
	}
	if !strings.Contains(output, "ipv4") {
		t.Errorf("expected grouped kind to survive: %s", output)
	}
}

func TestNewSecureJSONLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewSecureJSONLogger(&buf, true)
	logger.Info("concealed", "detail", "ping 10.0.0.1", "units", 2)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", buf.String(), err)
	}
	if got := entry["detail"]; got != "ping "+MaskValue {
		t.Errorf("detail = %v, want masked address", got)
	}
	if got := entry["units"]; got != float64(2) {
		t.Errorf("units = %v, want 2", got)
	}
}

func TestNewSecureHandler_NilHandler(t *testing.T) {
	t.Parallel()

	h := NewSecureHandler(nil)
	if h.handler == nil {
		t.Error("expected default handler when nil is given")
	}
}

func TestIsSensitiveKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key  string
		want bool
	}{
		{key: "text", want: true},
		{key: "MARKUP", want: true},
		{key: "node.text", want: true},
		{key: "raw-html", want: true},
		{key: "texture", want: false},
		{key: "units", want: false},
		{key: "font_size", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Parallel()
			if got := isSensitiveKey(tt.key); got != tt.want {
				t.Errorf("isSensitiveKey(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}
