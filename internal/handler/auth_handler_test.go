package handler

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/linkbio/internal/api"
	"github.com/hitoshi/linkbio/internal/model"
	"github.com/hitoshi/linkbio/internal/session"
)

// --- モック定義 ---

// mockSessionService はSessionServiceのモック実装。
type mockSessionService struct {
	snapshot   session.Snapshot
	signInFn   func(ctx context.Context, creds model.Credentials) (session.Snapshot, error)
	signUpFn   func(ctx context.Context, profile model.Profile) (session.Snapshot, error)
	signOutCnt int
}

func (m *mockSessionService) Snapshot() session.Snapshot {
	return m.snapshot
}

func (m *mockSessionService) SignIn(ctx context.Context, creds model.Credentials) (session.Snapshot, error) {
	if m.signInFn != nil {
		return m.signInFn(ctx, creds)
	}
	return session.Snapshot{}, nil
}

func (m *mockSessionService) SignUp(ctx context.Context, profile model.Profile) (session.Snapshot, error) {
	if m.signUpFn != nil {
		return m.signUpFn(ctx, profile)
	}
	return session.Snapshot{}, nil
}

func (m *mockSessionService) SignOut(ctx context.Context) session.Snapshot {
	m.signOutCnt++
	return session.Snapshot{Status: session.StatusUnauthenticated}
}

var testAuthConfig = AuthHandlerConfig{SignInPath: "/sign-in", AfterSignInPath: "/pages"}

func testUser() *model.User {
	return &model.User{ID: "u-1", Name: "Alice", Username: "alice", Email: "alice@example.com"}
}

// --- テスト ---

func TestSession_ReturnsSnapshot(t *testing.T) {
	svc := &mockSessionService{snapshot: session.Snapshot{Status: session.StatusAuthenticated, User: testUser()}}
	h := NewAuthHandler(svc, testAuthConfig)

	req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	w := httptest.NewRecorder()
	h.Session(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp sessionResponse
	decodeBody(t, w, &resp)
	if resp.Status != session.StatusAuthenticated {
		t.Errorf("status = %q, want authenticated", resp.Status)
	}
	if resp.User == nil || resp.User.Username != "alice" {
		t.Errorf("user = %+v, want alice", resp.User)
	}
	if resp.Redirect != "" {
		t.Errorf("redirect = %q, want empty", resp.Redirect)
	}
}

func TestSignIn_Success(t *testing.T) {
	var got model.Credentials
	svc := &mockSessionService{
		signInFn: func(ctx context.Context, creds model.Credentials) (session.Snapshot, error) {
			got = creds
			return session.Snapshot{Status: session.StatusAuthenticated, User: testUser()}, nil
		},
	}
	h := NewAuthHandler(svc, testAuthConfig)

	body := `{"email":"alice@example.com","password":"secret"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/sign-in", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	h.SignIn(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got.Email != "alice@example.com" || got.Password != "secret" {
		t.Errorf("credentials = %+v", got)
	}
	var resp sessionResponse
	decodeBody(t, w, &resp)
	if resp.Redirect != "/pages" {
		t.Errorf("redirect = %q, want /pages", resp.Redirect)
	}
	if resp.User == nil {
		t.Error("user should be set")
	}
}

func TestSignIn_MissingFields(t *testing.T) {
	called := false
	svc := &mockSessionService{
		signInFn: func(ctx context.Context, creds model.Credentials) (session.Snapshot, error) {
			called = true
			return session.Snapshot{}, nil
		},
	}
	h := NewAuthHandler(svc, testAuthConfig)

	req := httptest.NewRequest(http.MethodPost, "/auth/sign-in", bytes.NewBufferString(`{"email":" "}`))
	w := httptest.NewRecorder()
	h.SignIn(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if called {
		t.Error("SignIn should not be called for missing fields")
	}
	if resp := parseAPIErrorResponse(t, w); resp.Code != model.ErrCodeInvalidRequest {
		t.Errorf("code = %q, want %q", resp.Code, model.ErrCodeInvalidRequest)
	}
}

func TestSignIn_InvalidJSON(t *testing.T) {
	h := NewAuthHandler(&mockSessionService{}, testAuthConfig)

	req := httptest.NewRequest(http.MethodPost, "/auth/sign-in", bytes.NewBufferString(`{`))
	w := httptest.NewRecorder()
	h.SignIn(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestSignIn_BackendRejection(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{
			name:       "401はバックエンドのメッセージで401",
			err:        &api.Error{Category: api.CategoryUnauthorized, StatusCode: 401, Message: "Invalid credentials"},
			wantStatus: http.StatusUnauthorized,
			wantCode:   model.ErrCodeSignInFailed,
			wantMsg:    "Invalid credentials",
		},
		{
			name:       "422は同じステータスでメッセージ",
			err:        &api.Error{Category: api.CategoryValidation, StatusCode: 422, Message: "email is invalid"},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   model.ErrCodeSignInFailed,
			wantMsg:    "email is invalid",
		},
		{
			name:       "確認に失敗した場合は一般的なメッセージ",
			err:        errors.New("confirm failed"),
			wantStatus: http.StatusUnauthorized,
			wantCode:   model.ErrCodeSignInFailed,
			wantMsg:    "サインインに失敗しました。",
		},
		{
			name:       "通信失敗は502",
			err:        &api.Error{Category: api.CategoryTransport, Err: errors.New("connection refused")},
			wantStatus: http.StatusBadGateway,
			wantCode:   model.ErrCodeBackendUnavailable,
		},
		{
			name:       "5xxは502",
			err:        &api.Error{Category: api.CategoryServer, StatusCode: 500, Message: "boom"},
			wantStatus: http.StatusBadGateway,
			wantCode:   model.ErrCodeBackendUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockSessionService{
				signInFn: func(ctx context.Context, creds model.Credentials) (session.Snapshot, error) {
					return session.Snapshot{Status: session.StatusUnauthenticated}, tt.err
				},
			}
			h := NewAuthHandler(svc, testAuthConfig)

			body := `{"email":"alice@example.com","password":"wrong"}`
			req := httptest.NewRequest(http.MethodPost, "/auth/sign-in", bytes.NewBufferString(body))
			w := httptest.NewRecorder()
			h.SignIn(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			resp := parseAPIErrorResponse(t, w)
			if resp.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Code, tt.wantCode)
			}
			if tt.wantMsg != "" && resp.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", resp.Message, tt.wantMsg)
			}
		})
	}
}

func TestSignUp_Success(t *testing.T) {
	var got model.Profile
	svc := &mockSessionService{
		signUpFn: func(ctx context.Context, profile model.Profile) (session.Snapshot, error) {
			got = profile
			return session.Snapshot{Status: session.StatusAuthenticated, User: testUser()}, nil
		},
	}
	h := NewAuthHandler(svc, testAuthConfig)

	body := `{"name":"Alice","username":"alice","email":"alice@example.com","password":"secret"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/sign-up", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	h.SignUp(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got.Username != "alice" || got.Name != "Alice" {
		t.Errorf("profile = %+v", got)
	}
	var resp sessionResponse
	decodeBody(t, w, &resp)
	if resp.Status != session.StatusAuthenticated || resp.Redirect != "/pages" {
		t.Errorf("response = %+v", resp)
	}
}

func TestSignUp_Conflict(t *testing.T) {
	svc := &mockSessionService{
		signUpFn: func(ctx context.Context, profile model.Profile) (session.Snapshot, error) {
			return session.Snapshot{Status: session.StatusUnauthenticated},
				&api.Error{Category: api.CategoryValidation, StatusCode: 409, Message: "Username already taken"}
		},
	}
	h := NewAuthHandler(svc, testAuthConfig)

	body := `{"name":"Alice","username":"alice","email":"alice@example.com","password":"secret"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/sign-up", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	h.SignUp(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusConflict)
	}
	resp := parseAPIErrorResponse(t, w)
	if resp.Code != model.ErrCodeSignUpFailed || resp.Message != "Username already taken" {
		t.Errorf("response = %+v", resp)
	}
}

func TestSignUp_MissingFields(t *testing.T) {
	h := NewAuthHandler(&mockSessionService{}, testAuthConfig)

	body := `{"name":"Alice","email":"alice@example.com","password":"secret"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/sign-up", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	h.SignUp(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestSignOut_AlwaysSucceeds(t *testing.T) {
	svc := &mockSessionService{}
	h := NewAuthHandler(svc, testAuthConfig)

	req := httptest.NewRequest(http.MethodPost, "/auth/sign-out", nil)
	w := httptest.NewRecorder()
	h.SignOut(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if svc.signOutCnt != 1 {
		t.Errorf("SignOut called %d times, want 1", svc.signOutCnt)
	}
	var resp sessionResponse
	decodeBody(t, w, &resp)
	if resp.Status != session.StatusUnauthenticated {
		t.Errorf("status = %q, want unauthenticated", resp.Status)
	}
	if resp.Redirect != "/sign-in" {
		t.Errorf("redirect = %q, want /sign-in", resp.Redirect)
	}
}
