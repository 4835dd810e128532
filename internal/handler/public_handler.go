package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/linkbio/internal/api"
	"github.com/hitoshi/linkbio/internal/middleware"
	"github.com/hitoshi/linkbio/internal/model"
)

// PublicPageSource は公開ページの取得元。セッションは不要。
type PublicPageSource interface {
	PublicPage(ctx context.Context, slug string) (*model.PublicPage, error)
}

// TextSanitizer はバックエンド由来のテキストを表示用に無害化する。
type TextSanitizer interface {
	Sanitize(raw string) string
}

// PublicHandler は公開ページのHTTPハンドラー。
type PublicHandler struct {
	source    PublicPageSource
	sanitizer TextSanitizer
}

// NewPublicHandler はPublicHandlerを生成する。
func NewPublicHandler(source PublicPageSource, sanitizer TextSanitizer) *PublicHandler {
	return &PublicHandler{source: source, sanitizer: sanitizer}
}

// Get はスラッグで公開ページを返す。タイトルなどのテキストは無害化し、
// アイコンはリンクのURLから導出する。
// GET /l/{slug}
func (h *PublicHandler) Get(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if slug == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("スラッグが空です"))
		return
	}

	page, err := h.source.PublicPage(r.Context(), slug)
	if err != nil {
		writePublicError(w, r, slug, err)
		return
	}

	view := model.PublicPage{
		Name:        h.sanitizer.Sanitize(page.Name),
		Title:       h.sanitizer.Sanitize(page.Title),
		Description: h.sanitizer.Sanitize(page.Description),
		Links:       make([]model.PublicLink, 0, len(page.Links)),
	}
	for _, l := range page.Links {
		icon := l.Icon
		if icon == "" {
			icon = model.IconForURL(l.URL)
		}
		view.Links = append(view.Links, model.PublicLink{
			ID:    l.ID,
			URL:   l.URL,
			Title: h.sanitizer.Sanitize(l.Title),
			Icon:  icon,
		})
	}

	middleware.WriteJSON(w, http.StatusOK, view)
}

// writePublicError は公開ページ取得のエラーを変換する。
// 閲覧者はサインインしていないため、セッション終了やサインインへの誘導は返さない。
// 401/403/404は非公開または存在しないページとして404にする。
func writePublicError(w http.ResponseWriter, r *http.Request, slug string, err error) {
	if apiErr, ok := api.AsError(err); ok {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewPageNotFoundError(slug))
			return
		}
		if apiErr.Category == api.CategoryValidation {
			middleware.WriteErrorResponse(w, apiErr.StatusCode,
				model.NewBackendRejectedError(api.UserMessage(err, apiErr.Message)))
			return
		}
	}

	slog.Error("public page fetch failed",
		slog.String("slug", slug),
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
		slog.String("error", err.Error()),
	)
	middleware.WriteErrorResponse(w, http.StatusBadGateway, model.NewBackendUnavailableError())
}
