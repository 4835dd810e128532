package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/linkbio/internal/api"
	"github.com/hitoshi/linkbio/internal/editor"
	"github.com/hitoshi/linkbio/internal/middleware"
	"github.com/hitoshi/linkbio/internal/model"
	"github.com/hitoshi/linkbio/internal/session"
)

// maxRequestBodySize はリクエストボディの上限（1MB）。
const maxRequestBodySize = 1 << 20

// decodeJSON はリクエストボディをvにデコードする。
// 失敗した場合は400を書き込みfalseを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("JSONの解析に失敗しました"))
		return false
	}
	return true
}

// writeServiceError はサービス層・バックエンドのエラーを統一エラーフォーマットに変換する。
//
//   - 検証エラー、重複、保存中、確認なし: 4xx
//   - セッション終了（リフレッシュの拒否、ガードによる取り消し）: 401とサインイン先
//   - リフレッシュ後も401: セッションは維持したまま401（サインイン先なし）
//   - ページ自体の404: PAGE_NOT_FOUND
//   - その他のバックエンドの4xx: 同じステータスでバックエンドのメッセージ
//   - 通信失敗・5xx: 502
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, signInPath string) {
	var dupErr *editor.DuplicateLinkError
	switch {
	case errors.As(err, &dupErr):
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewDuplicateLinkError(dupErr.Key))
		return
	case errors.Is(err, editor.ErrInvalidPage):
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidPageError(err.Error()))
		return
	case errors.Is(err, editor.ErrInvalidLink):
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidLinkError(err.Error()))
		return
	case errors.Is(err, editor.ErrInvalidName):
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("ページ名が空です"))
		return
	case errors.Is(err, editor.ErrSaveInProgress):
		middleware.WriteErrorResponse(w, http.StatusConflict, model.NewSaveInProgressError())
		return
	case errors.Is(err, editor.ErrConfirmationRequired):
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewConfirmationRequiredError())
		return
	case errors.Is(err, session.ErrSessionEnded), api.IsSessionEnded(err):
		middleware.WriteSessionEndedResponse(w, signInPath)
		return
	case api.IsUnauthorized(err):
		// リフレッシュには成功しておりストアは認証済みのままなので、サインインへは誘導しない
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewNotAuthorizedError())
		return
	case errors.Is(err, editor.ErrPageNotFound):
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewPageNotFoundError(resourceID(r)))
		return
	case errors.Is(err, context.Canceled) && r.Context().Err() != nil:
		// ガードがセッション終了でコンテキストを取り消した
		middleware.WriteSessionEndedResponse(w, signInPath)
		return
	}

	if apiErr, ok := api.AsError(err); ok && apiErr.Category == api.CategoryValidation {
		middleware.WriteErrorResponse(w, apiErr.StatusCode,
			model.NewBackendRejectedError(api.UserMessage(err, apiErr.Message)))
		return
	}

	slog.Error("backend call failed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
		slog.String("error", err.Error()),
	)
	middleware.WriteErrorResponse(w, http.StatusBadGateway, model.NewBackendUnavailableError())
}

// resourceID はURLパスのページIDまたはスラッグを返す。
func resourceID(r *http.Request) string {
	if id := chi.URLParam(r, "id"); id != "" {
		return id
	}
	return chi.URLParam(r, "slug")
}
