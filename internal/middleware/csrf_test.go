package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newCSRFHandler(called *bool) http.Handler {
	return NewCSRFMiddleware(CSRFConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	}))
}

func TestCSRFMiddleware_SafeMethodIssuesCookie(t *testing.T) {
	called := false
	w := httptest.NewRecorder()
	newCSRFHandler(&called).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/session", nil))

	if !called {
		t.Fatal("GET はハンドラーに到達するべき")
	}
	var found bool
	for _, c := range w.Result().Cookies() {
		if c.Name == csrfCookieName && c.Value != "" && !c.HttpOnly {
			found = true
		}
	}
	if !found {
		t.Error("CSRFトークンCookieが発行されていない")
	}
}

func TestCSRFMiddleware_StateChangingMethods(t *testing.T) {
	tests := []struct {
		name       string
		cookie     string
		header     string
		wantStatus int
	}{
		{"一致", "tok", "tok", http.StatusOK},
		{"Cookieなし", "", "tok", http.StatusForbidden},
		{"ヘッダーなし", "tok", "", http.StatusForbidden},
		{"不一致", "tok", "other", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			req := httptest.NewRequest(http.MethodPost, "/auth/sign-in", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: tt.cookie})
			}
			if tt.header != "" {
				req.Header.Set(csrfHeaderName, tt.header)
			}
			w := httptest.NewRecorder()
			newCSRFHandler(&called).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if called != (tt.wantStatus == http.StatusOK) {
				t.Errorf("handler called = %v", called)
			}
			if tt.wantStatus == http.StatusForbidden {
				if resp := decodeError(t, w.Body); resp.Code != "CSRF_FAILED" {
					t.Errorf("code = %s, want CSRF_FAILED", resp.Code)
				}
			}
		})
	}
}

func TestCSRFTokenHandler(t *testing.T) {
	handler := NewCSRFTokenHandler(CSRFConfig{})

	t.Run("既存のトークンを返す", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/auth/csrf-token", nil)
		req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "existing"})
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		var body map[string]string
		json.NewDecoder(w.Body).Decode(&body)
		if body["token"] != "existing" {
			t.Errorf("token = %q, want existing", body["token"])
		}
	})

	t.Run("新しいトークンを発行する", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/csrf-token", nil))

		var body map[string]string
		json.NewDecoder(w.Body).Decode(&body)
		if len(body["token"]) != 64 {
			t.Errorf("token の長さ = %d, want 64", len(body["token"]))
		}
		cookies := w.Result().Cookies()
		if len(cookies) != 1 || cookies[0].Value != body["token"] {
			t.Errorf("Cookie とトークンが一致しない: %+v", cookies)
		}
	})
}
