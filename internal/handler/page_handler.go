package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/linkbio/internal/editor"
	"github.com/hitoshi/linkbio/internal/middleware"
	"github.com/hitoshi/linkbio/internal/model"
)

// PageService はページ編集ハンドラーが必要とする編集サービスの操作。
type PageService interface {
	Load(ctx context.Context, pageID model.ID) (*editor.Draft, error)
	Create(ctx context.Context, name string) (*model.Page, error)
	Save(ctx context.Context, pageID model.ID, draft editor.Draft) (*editor.SaveResult, error)
	Delete(ctx context.Context, pageID model.ID, confirmed bool) error
}

// PageHandler はページ編集のHTTPハンドラー。
// すべてのルートはルートガードの内側に置く。
type PageHandler struct {
	service    PageService
	signInPath string
}

// NewPageHandler はPageHandlerを生成する。
func NewPageHandler(service PageService, signInPath string) *PageHandler {
	return &PageHandler{service: service, signInPath: signInPath}
}

type createPageRequest struct {
	Name string `json:"name"`
}

type saveDraftRequest struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Links       []model.Link `json:"links"`
}

// saveResponse は保存結果のAPIレスポンス。
type saveResponse struct {
	Draft     *editor.Draft `json:"draft"`
	Created   int           `json:"created"`
	Updated   int           `json:"updated"`
	Deleted   int           `json:"deleted"`
	Unchanged int           `json:"unchanged"`
}

// Create はページを作成する。
// POST /api/pages
func (h *PageHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	page, err := h.service.Create(r.Context(), req.Name)
	if err != nil {
		writeServiceError(w, r, err, h.signInPath)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, page)
}

// Get はページの作業コピーを返す。
// GET /api/pages/{id}
func (h *PageHandler) Get(w http.ResponseWriter, r *http.Request) {
	pageID := model.ID(chi.URLParam(r, "id"))

	draft, err := h.service.Load(r.Context(), pageID)
	if err != nil {
		writeServiceError(w, r, err, h.signInPath)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, draft)
}

// Save は作業コピーを保存し、保存後の作業コピーを返す。
// PUT /api/pages/{id}
func (h *PageHandler) Save(w http.ResponseWriter, r *http.Request) {
	pageID := model.ID(chi.URLParam(r, "id"))

	var req saveDraftRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	links := req.Links
	if links == nil {
		links = []model.Link{}
	}

	result, err := h.service.Save(r.Context(), pageID, editor.Draft{
		PageID:      pageID,
		Title:       req.Title,
		Description: req.Description,
		Links:       links,
	})
	if err != nil {
		writeServiceError(w, r, err, h.signInPath)
		return
	}

	// 作成されたリンクのIDを反映するため、保存後の状態を読み直す
	draft, err := h.service.Load(r.Context(), pageID)
	if err != nil {
		writeServiceError(w, r, err, h.signInPath)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, saveResponse{
		Draft:     draft,
		Created:   result.Created,
		Updated:   result.Updated,
		Deleted:   result.Deleted,
		Unchanged: result.Unchanged,
	})
}

// Delete はページを削除する。confirm=true が必須。
// DELETE /api/pages/{id}
func (h *PageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	pageID := model.ID(chi.URLParam(r, "id"))
	confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))

	if err := h.service.Delete(r.Context(), pageID, confirmed); err != nil {
		writeServiceError(w, r, err, h.signInPath)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
