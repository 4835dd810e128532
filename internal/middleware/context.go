// Package middleware はコンパニオンサーバーのHTTPミドルウェアを提供する。
package middleware

import (
	"context"

	"github.com/hitoshi/linkbio/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	requestIDContextKey = contextKey("request_id")
	userContextKey      = contextKey("user")
)

// RequestIDFromContext はリクエストIDを取得する。未設定の場合は空文字列。
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey).(string)
	return id
}

// ContextWithRequestID はコンテキストにリクエストIDを注入する。
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, id)
}

// UserFromContext はルートガードを通過したリクエストの認証済みユーザーを取得する。
func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userContextKey).(*model.User)
	return user, ok && user != nil
}

// ContextWithUser はコンテキストに認証済みユーザーを注入する。
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// userHolder はログミドルウェアが内側のハンドラーから認証済みユーザーIDを受け取るための入れ物。
type userHolder struct {
	userID string
}

var userHolderContextKey = contextKey("user_holder")

func contextWithUserHolder(ctx context.Context, h *userHolder) context.Context {
	return context.WithValue(ctx, userHolderContextKey, h)
}

// recordUserID はログ出力用にユーザーIDを記録する。
func recordUserID(ctx context.Context, id string) {
	if h, ok := ctx.Value(userHolderContextKey).(*userHolder); ok {
		h.userID = id
	}
}
