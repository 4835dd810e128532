// Package handler はコンパニオンサーバーのHTTPハンドラーを提供する。
package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/hitoshi/linkbio/internal/api"
	"github.com/hitoshi/linkbio/internal/middleware"
	"github.com/hitoshi/linkbio/internal/model"
	"github.com/hitoshi/linkbio/internal/session"
)

// SessionService は認証ハンドラーが必要とするセッションストアの操作。
type SessionService interface {
	Snapshot() session.Snapshot
	SignIn(ctx context.Context, creds model.Credentials) (session.Snapshot, error)
	SignUp(ctx context.Context, profile model.Profile) (session.Snapshot, error)
	SignOut(ctx context.Context) session.Snapshot
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	SignInPath      string
	AfterSignInPath string
}

// AuthHandler はサインイン・登録・サインアウトのHTTPハンドラー。
type AuthHandler struct {
	service SessionService
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service SessionService, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{service: service, config: config}
}

// sessionResponse はセッション状態のAPIレスポンス。
// Redirectは遷移が必要な場合のみ設定する。
type sessionResponse struct {
	Status   session.Status `json:"status"`
	User     *model.User    `json:"user,omitempty"`
	Redirect string         `json:"redirect,omitempty"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signUpRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Session は現在のセッション状態を返す。
// GET /auth/session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	snap := h.service.Snapshot()
	middleware.WriteJSON(w, http.StatusOK, sessionResponse{Status: snap.Status, User: snap.User})
}

// SignIn はサインインを処理する。
// POST /auth/sign-in
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("メールアドレスとパスワードは必須です"))
		return
	}

	snap, err := h.service.SignIn(r.Context(), model.Credentials{Email: req.Email, Password: req.Password})
	if err != nil {
		h.writeAuthError(w, r, err, model.NewSignInFailedError)
		return
	}
	h.writeAuthenticated(w, snap)
}

// SignUp はユーザー登録を処理する。
// POST /auth/sign-up
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Username) == "" ||
		strings.TrimSpace(req.Email) == "" || req.Password == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("名前、ユーザー名、メールアドレス、パスワードは必須です"))
		return
	}

	snap, err := h.service.SignUp(r.Context(), model.Profile{
		Name:     req.Name,
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.writeAuthError(w, r, err, model.NewSignUpFailedError)
		return
	}
	h.writeAuthenticated(w, snap)
}

// SignOut はサインアウトを処理する。バックエンドへの通知が失敗しても常に成功を返す。
// POST /auth/sign-out
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	snap := h.service.SignOut(r.Context())
	middleware.WriteJSON(w, http.StatusOK, sessionResponse{
		Status:   snap.Status,
		Redirect: h.config.SignInPath,
	})
}

func (h *AuthHandler) writeAuthenticated(w http.ResponseWriter, snap session.Snapshot) {
	middleware.WriteJSON(w, http.StatusOK, sessionResponse{
		Status:   snap.Status,
		User:     snap.User,
		Redirect: h.config.AfterSignInPath,
	})
}

// writeAuthError はバックエンドが拒否した場合はそのメッセージを、
// 到達できない場合は一般的なメッセージを返す。
func (h *AuthHandler) writeAuthError(w http.ResponseWriter, r *http.Request, err error, newErr func(string) *model.APIError) {
	apiErr, ok := api.AsError(err)
	if ok && (apiErr.Category == api.CategoryTransport || apiErr.Category == api.CategoryServer) {
		writeServiceError(w, r, err, h.config.SignInPath)
		return
	}
	status := http.StatusUnauthorized
	if ok && apiErr.Category == api.CategoryValidation {
		status = apiErr.StatusCode
	}
	middleware.WriteErrorResponse(w, status, newErr(api.UserMessage(err, "")))
}
