package middleware

import (
	"net/http"
	"strconv"

	"github.com/hitoshi/linkbio/internal/guard"
	"github.com/hitoshi/linkbio/internal/model"
)

// loadingRetryAfter は認証状態の確認中に返すRetry-Afterの秒数。
const loadingRetryAfter = 1

// NewRouteGuardMiddleware は保護されたルートの前段に置くミドルウェアを返す。
//
//   - 認証状態の確認中: 503とRetry-After、中立的なプレースホルダーを返す。遷移はしない
//   - 未認証: サインイン先へ303で遷移させる
//   - 認証済み: セッションが終了した時点でキャンセルされるコンテキストでハンドラーを呼ぶ
func NewRouteGuardMiddleware(src guard.Source, signInPath string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// リクエストごとに1つのビューとして判定する
			g := guard.New(signInPath)
			snap := src.Snapshot()

			switch g.Evaluate(snap.Status) {
			case guard.Loading:
				w.Header().Set("Retry-After", strconv.Itoa(loadingRetryAfter))
				WriteErrorResponse(w, http.StatusServiceUnavailable, model.NewSessionLoadingError())
			case guard.Redirect:
				http.Redirect(w, r, g.SignInPath, http.StatusSeeOther)
			case guard.Render:
				ctx, cancel := guard.Bind(r.Context(), src)
				defer cancel()
				if ctx.Err() != nil {
					// 判定直後にセッションが終了した
					http.Redirect(w, r, g.SignInPath, http.StatusSeeOther)
					return
				}
				if snap.User != nil {
					ctx = ContextWithUser(ctx, snap.User)
					recordUserID(ctx, snap.User.ID.String())
				}
				next.ServeHTTP(w, r.WithContext(ctx))
			default:
				w.WriteHeader(http.StatusNoContent)
			}
		})
	}
}
