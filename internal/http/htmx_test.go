package httpx

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "github.com/coverdesk/portal-gate/internal/errors"
)

func TestHTMX_RequestDetection(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.Header.Set("Hx-Request", "true")
	if !IsHTMX(r) {
		t.Fatal("expected IsHTMX true")
	}

	r2 := httptest.NewRequest(http.MethodGet, "/x", nil)
	if IsHTMX(r2) {
		t.Fatal("expected defaults to false")
	}
}

func TestHTMX_SetHXRedirect(t *testing.T) {
	rr := httptest.NewRecorder()
	SetHXRedirect(rr, "/login")
	if got := rr.Header().Get("Hx-Redirect"); got != "/login" {
		t.Fatalf("Hx-Redirect: %q", got)
	}
}

func TestWantsJSON(t *testing.T) {
	tests := []struct {
		name   string
		header string
		value  string
		want   bool
	}{
		{"accept json", "Accept", "application/json", true},
		{"htmx", "Hx-Request", "true", true},
		{"xhr", "X-Requested-With", "XMLHttpRequest", true},
		{"html", "Accept", "text/html", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/x", nil)
			r.Header.Set(tt.header, tt.value)
			if got := wantsJSON(r); got != tt.want {
				t.Fatalf("wantsJSON = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWriteAppError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		body string
	}{
		{"validation", apperrors.ValidationField("path", "must start with /"), http.StatusBadRequest,
			`{"error":"validation","message":"path: must start with /"}` + "\n"},
		{"plain", errors.New("boom"), http.StatusInternalServerError,
			`{"error":"internal","message":"boom"}` + "\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			WriteAppError(rr, tt.err)
			if rr.Code != tt.code {
				t.Fatalf("status = %d, want %d", rr.Code, tt.code)
			}
			if rr.Body.String() != tt.body {
				t.Fatalf("body = %q", rr.Body.String())
			}
		})
	}
}
