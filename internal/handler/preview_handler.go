package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/hitoshi/linkbio/internal/middleware"
	"github.com/hitoshi/linkbio/internal/model"
	"github.com/hitoshi/linkbio/internal/preview"
)

// PreviewService はリンクプレビューの取得。
type PreviewService interface {
	Fetch(ctx context.Context, rawURL string) (*preview.Preview, error)
}

// PreviewHandler はリンクプレビューのHTTPハンドラー。
type PreviewHandler struct {
	service PreviewService
}

// NewPreviewHandler はPreviewHandlerを生成する。
func NewPreviewHandler(service PreviewService) *PreviewHandler {
	return &PreviewHandler{service: service}
}

type previewRequest struct {
	URL string `json:"url"`
}

// Preview はリンク先のタイトルを取得する。
// POST /api/links/preview
func (h *PreviewHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rawURL := strings.TrimSpace(req.URL)
	if rawURL == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("URLは必須です"))
		return
	}

	p, err := h.service.Fetch(r.Context(), rawURL)
	if err != nil {
		reason := "取得に失敗しました"
		if errors.Is(err, preview.ErrNoTitle) {
			reason = "タイトルが見つかりません"
		}
		middleware.WriteErrorResponse(w, http.StatusUnprocessableEntity, model.NewPreviewFailedError(reason))
		return
	}
	middleware.WriteJSON(w, http.StatusOK, p)
}
