package logger

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestLevelFromEnv(t *testing.T) {
	cases := map[string]logrus.Level{
		"":       logrus.InfoLevel,
		"debug":  logrus.DebugLevel,
		"warn":   logrus.WarnLevel,
		"error":  logrus.ErrorLevel,
		"silent": logrus.PanicLevel,
		"bogus":  logrus.InfoLevel,
	}
	for in, want := range cases {
		if got := levelFromEnv(in); got != want {
			t.Fatalf("levelFromEnv(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewUsesJSONOutsideLocal(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	l := New()
	if _, ok := l.Logger.Formatter.(*logrus.JSONFormatter); !ok {
		t.Fatalf("formatter = %T, want *logrus.JSONFormatter", l.Logger.Formatter)
	}
}

func TestWithRequestKeepsRequestID(t *testing.T) {
	r := httptest.NewRequest("POST", "/analyze", nil)
	r.Header.Set("X-Request-ID", "req-123")
	entry := New().WithRequest(r)
	if got := entry.Data["req_id"]; got != "req-123" {
		t.Fatalf("req_id = %v, want req-123", got)
	}
	if got := entry.Data["path"]; got != "/analyze" {
		t.Fatalf("path = %v, want /analyze", got)
	}
}

func TestWithRequestGeneratesRequestID(t *testing.T) {
	r := httptest.NewRequest("GET", "/healthz", nil)
	entry := New().WithRequest(r)
	id, _ := entry.Data["req_id"].(string)
	if len(id) != 36 {
		t.Fatalf("generated req_id = %q, want a uuid", id)
	}
}

func TestWithError(t *testing.T) {
	l := New()
	if got := l.WithError(nil); got != l.Entry {
		t.Fatalf("WithError(nil) should return the base entry")
	}
	entry := l.WithError(errors.New("boom"))
	if got := entry.Data["error"]; got != "boom" {
		t.Fatalf("error field = %v, want boom", got)
	}
}
