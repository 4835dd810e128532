package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/hitoshi/linkbio/internal/api"
	"github.com/hitoshi/linkbio/internal/model"
)

var (
	// ErrSaveInProgress は同じページの保存が実行中であることを示す。
	ErrSaveInProgress = errors.New("save already in progress for page")
	// ErrConfirmationRequired は確認なしでページを削除しようとしたことを示す。
	ErrConfirmationRequired = errors.New("page deletion requires confirmation")
	// ErrInvalidName はページ作成時の名前が空であることを示す。
	ErrInvalidName = errors.New("page name is required")
	// ErrPageNotFound はページ自体がバックエンドに存在しないことを示す。
	// リンクなど配下のリソースの404には付かない。
	ErrPageNotFound = errors.New("page not found")
)

// pageError はページに対する呼び出しのエラーをラップする。
// 404の場合はErrPageNotFoundも付ける。
func pageError(step string, pageID model.ID, err error) error {
	if api.IsNotFound(err) {
		return fmt.Errorf("%s %s: %w: %w", step, pageID, ErrPageNotFound, err)
	}
	return fmt.Errorf("%s %s: %w", step, pageID, err)
}

// Backend はページとリンクの永続化を担うバックエンドAPI。api.Client が実装する。
type Backend interface {
	GetPage(ctx context.Context, id model.ID) (*model.Page, error)
	CreatePage(ctx context.Context, name string) (*model.Page, error)
	UpdatePage(ctx context.Context, id model.ID, update model.PageUpdate) error
	DeletePage(ctx context.Context, id model.ID) error
	ListLinks(ctx context.Context, pageID model.ID) ([]model.Link, error)
	CreateLink(ctx context.Context, link model.Link) (*model.Link, error)
	UpdateLink(ctx context.Context, id model.ID, link model.Link) error
	DeleteLink(ctx context.Context, id model.ID) error
}

// MetricsRecorder は保存処理の計測に必要なインターフェース。
type MetricsRecorder interface {
	RecordLinkOperation(op string)
	RecordSave(success bool)
}

// SaveResult は保存処理で適用された内容。
// 途中で失敗した場合も、それまでに適用された書き込みが含まれる。
type SaveResult struct {
	PageUpdated bool `json:"page_updated"`
	Plan        Plan `json:"-"`
	Applied     []Op `json:"-"`
	Created     int  `json:"created"`
	Updated     int  `json:"updated"`
	Deleted     int  `json:"deleted"`
	Unchanged   int  `json:"unchanged"`
}

func (r *SaveResult) apply(op Op) {
	r.Applied = append(r.Applied, op)
	switch op.Kind {
	case OpCreate:
		r.Created++
	case OpUpdate:
		r.Updated++
	case OpDelete:
		r.Deleted++
	}
}

// Service はページの読み込み・作成・保存・削除を行う。
type Service struct {
	backend Backend
	logger  *slog.Logger
	metrics MetricsRecorder

	mu     sync.Mutex
	saving map[model.ID]struct{}
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(backend Backend, logger *slog.Logger, metrics MetricsRecorder) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		backend: backend,
		logger:  logger,
		metrics: metrics,
		saving:  make(map[model.ID]struct{}),
	}
}

// Load はページと永続化済みのリンク一覧から作業コピーを作る。
func (s *Service) Load(ctx context.Context, pageID model.ID) (*Draft, error) {
	page, err := s.backend.GetPage(ctx, pageID)
	if err != nil {
		return nil, pageError("load page", pageID, err)
	}
	links, err := s.backend.ListLinks(ctx, pageID)
	if err != nil {
		return nil, fmt.Errorf("load links of page %s: %w", pageID, err)
	}
	if links == nil {
		links = []model.Link{}
	}

	return &Draft{
		PageID:      page.ID,
		Name:        page.Name,
		Title:       page.Title,
		Description: page.Description,
		Links:       links,
	}, nil
}

// Create は名前を指定してページを作成する。
func (s *Service) Create(ctx context.Context, name string) (*model.Page, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidName
	}
	page, err := s.backend.CreatePage(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("create page %q: %w", name, err)
	}
	s.logger.Info("ページを作成しました",
		slog.String("page_id", page.ID.String()),
		slog.String("name", page.Name),
	)
	return page, nil
}

// Save は作業コピーをバックエンドに反映する。
//
// 検証に通った後、ページのタイトルと説明を更新し、永続化済みのリンクを取得して
// 照合結果の削除、作成・更新の順に適用する。最初に失敗した書き込みで中断し、
// 適用済みの書き込みは取り消さない。作業コピーが変わらなければ再実行で収束する。
// 同じページの保存が実行中の場合はErrSaveInProgressを返す。
func (s *Service) Save(ctx context.Context, pageID model.ID, draft Draft) (*SaveResult, error) {
	if err := Validate(draft); err != nil {
		return nil, err
	}
	if !s.begin(pageID) {
		return nil, ErrSaveInProgress
	}
	defer s.end(pageID)

	result, err := s.save(ctx, pageID, draft)
	if s.metrics != nil {
		s.metrics.RecordSave(err == nil)
	}
	if err != nil {
		s.logger.Warn("ページの保存に失敗しました",
			slog.String("page_id", pageID.String()),
			slog.Int("applied", len(result.Applied)),
			slog.String("error", err.Error()),
		)
		return result, err
	}

	s.logger.Info("ページを保存しました",
		slog.String("page_id", pageID.String()),
		slog.Int("created", result.Created),
		slog.Int("updated", result.Updated),
		slog.Int("deleted", result.Deleted),
		slog.Int("unchanged", result.Unchanged),
	)
	return result, nil
}

func (s *Service) save(ctx context.Context, pageID model.ID, draft Draft) (*SaveResult, error) {
	result := &SaveResult{}

	update := model.PageUpdate{Title: draft.Title, Description: draft.Description}
	if err := s.backend.UpdatePage(ctx, pageID, update); err != nil {
		return result, pageError("save page: update page", pageID, err)
	}
	result.PageUpdated = true

	before, err := s.backend.ListLinks(ctx, pageID)
	if err != nil {
		return result, fmt.Errorf("save page %s: list links: %w", pageID, err)
	}

	plan, err := Reconcile(pageID, before, draft.Links)
	if err != nil {
		return result, fmt.Errorf("save page %s: %w", pageID, err)
	}
	result.Plan = plan
	result.Unchanged = plan.Unchanged

	for _, op := range plan.Ops() {
		if err := s.applyOp(ctx, op); err != nil {
			return result, fmt.Errorf("save page %s: %s link %s: %w", pageID, op.Kind, op.Link.Key(), err)
		}
		result.apply(op)
		if s.metrics != nil {
			s.metrics.RecordLinkOperation(string(op.Kind))
		}
	}
	return result, nil
}

func (s *Service) applyOp(ctx context.Context, op Op) error {
	switch op.Kind {
	case OpDelete:
		return s.backend.DeleteLink(ctx, op.Link.ID)
	case OpUpdate:
		return s.backend.UpdateLink(ctx, op.Link.ID, op.Link)
	case OpCreate:
		_, err := s.backend.CreateLink(ctx, op.Link)
		return err
	default:
		return fmt.Errorf("unknown link operation %q", op.Kind)
	}
}

// Delete はページを削除する。confirmedがfalseの場合はErrConfirmationRequiredを返し、
// バックエンドには何も送信しない。
func (s *Service) Delete(ctx context.Context, pageID model.ID, confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}
	if err := s.backend.DeletePage(ctx, pageID); err != nil {
		return pageError("delete page", pageID, err)
	}
	s.logger.Info("ページを削除しました", slog.String("page_id", pageID.String()))
	return nil
}

// Saving は指定ページの保存が実行中かを返す。
func (s *Service) Saving(pageID model.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.saving[pageID]
	return ok
}

func (s *Service) begin(pageID model.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.saving[pageID]; ok {
		return false
	}
	s.saving[pageID] = struct{}{}
	return true
}

func (s *Service) end(pageID model.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.saving, pageID)
}
