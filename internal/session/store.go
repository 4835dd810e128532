// Package session はバックエンドセッションの認証状態を管理する。
// Storeは「有効な認証済みセッションがあるか」の唯一の情報源であり、
// 状態はunknown → checking → authenticated/unauthenticated と遷移する。
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/hitoshi/linkbio/internal/api"
	"github.com/hitoshi/linkbio/internal/model"
	"golang.org/x/sync/singleflight"
)

// Status はセッションの認証状態。
type Status string

const (
	StatusUnknown         Status = "unknown"
	StatusChecking        Status = "checking"
	StatusAuthenticated   Status = "authenticated"
	StatusUnauthenticated Status = "unauthenticated"
)

// Resolved は状態が確定済み（unknown/checking以外）かを返す。
func (s Status) Resolved() bool {
	return s == StatusAuthenticated || s == StatusUnauthenticated
}

// ErrSessionEnded はトークンのリフレッシュが拒否され、セッションが終了したことを示す。
var ErrSessionEnded = api.ErrSessionEnded

// ErrSuperseded は処理中に別の操作でセッションが切り替わったことを示す。
var ErrSuperseded = errors.New("session changed during operation")

// refreshTimeout は共有されるリフレッシュ処理の上限時間。
// 最初の呼び出し元のキャンセルからは切り離して実行する。
const refreshTimeout = 15 * time.Second

// Snapshot はある時点のセッション状態。常に丸ごと置き換えられる。
type Snapshot struct {
	Status Status      `json:"status"`
	User   *model.User `json:"user,omitempty"`
}

// Authenticated は認証済みかを返す。
func (s Snapshot) Authenticated() bool {
	return s.Status == StatusAuthenticated
}

// Backend はStoreが利用するバックエンドの認証API。api.Client が実装する。
type Backend interface {
	Me(ctx context.Context) (*model.User, error)
	MeNoRefresh(ctx context.Context) (*model.User, error)
	SignIn(ctx context.Context, creds model.Credentials) error
	SignUp(ctx context.Context, profile model.Profile) error
	SignOut(ctx context.Context) error
	Refresh(ctx context.Context) error
}

// MetricsRecorder はセッション遷移とリフレッシュの計測に必要なインターフェース。
type MetricsRecorder interface {
	RecordSessionTransition(status string)
	RecordTokenRefresh(success bool)
}

// Store はプロセス内で1つのセッション状態を保持する。
// 状態の書き込みはStore自身の操作からのみ行われる。
// サインイン/サインアウトなどセッションを切り替える操作はepochを進め、
// バックエンド呼び出しを挟む書き込みは開始時のepochが変わっていない場合にのみ反映される。
type Store struct {
	backend Backend
	logger  *slog.Logger
	metrics MetricsRecorder

	mu          sync.Mutex
	snapshot    Snapshot
	epoch       uint64
	subscribers map[int]chan Snapshot
	nextID      int

	refreshGroup singleflight.Group
}

// NewStore はStoreの新しいインスタンスを生成する。初期状態はunknown。
func NewStore(backend Backend, logger *slog.Logger, metrics MetricsRecorder) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		backend:     backend,
		logger:      logger,
		metrics:     metrics,
		snapshot:    Snapshot{Status: StatusUnknown},
		subscribers: make(map[int]chan Snapshot),
	}
}

// Snapshot は現在のセッション状態を返す。
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// Status は現在の認証状態を返す。
func (s *Store) Status() Status {
	return s.Snapshot().Status
}

// User は認証済みユーザーを返す。未認証の場合はnil。
func (s *Store) User() *model.User {
	return s.Snapshot().User
}

// CheckAuthStatus は起動時の認証確認を行う。
// 失敗（通信失敗を含む）はunauthenticatedとして扱い、エラーを返さない。
// 呼び出し後にchecking状態が残ることはない。
func (s *Store) CheckAuthStatus(ctx context.Context) Snapshot {
	epoch := s.begin(Snapshot{Status: StatusChecking})

	user, err := s.backend.Me(ctx)
	if err != nil {
		s.logger.Info("認証済みセッションが見つかりませんでした",
			slog.String("error", err.Error()),
		)
		snap, _ := s.setIf(epoch, Snapshot{Status: StatusUnauthenticated})
		return snap
	}
	snap, _ := s.setIf(epoch, Snapshot{Status: StatusAuthenticated, User: user})
	return snap
}

// SignIn は資格情報を送信し、成功時はユーザーを再取得して認証済みに遷移する。
// 送信に失敗した場合は状態を変更せずにバックエンドのエラーを返す。
func (s *Store) SignIn(ctx context.Context, creds model.Credentials) (Snapshot, error) {
	if err := s.backend.SignIn(ctx, creds); err != nil {
		s.logger.Info("サインインに失敗しました", slog.String("error", err.Error()))
		return s.Snapshot(), err
	}
	return s.confirm(ctx, "sign_in")
}

// SignUp はユーザー登録を行い、成功時はユーザーを再取得して認証済みに遷移する。
// 送信に失敗した場合は状態を変更せずにバックエンドのエラーを返す。
func (s *Store) SignUp(ctx context.Context, profile model.Profile) (Snapshot, error) {
	if err := s.backend.SignUp(ctx, profile); err != nil {
		s.logger.Info("ユーザー登録に失敗しました", slog.String("error", err.Error()))
		return s.Snapshot(), err
	}
	return s.confirm(ctx, "sign_up")
}

// confirm はサインイン/登録の応答ボディを信用せず、ユーザーを取得し直して認証を確定する。
func (s *Store) confirm(ctx context.Context, op string) (Snapshot, error) {
	epoch := s.begin(Snapshot{Status: StatusChecking})

	user, err := s.backend.MeNoRefresh(ctx)
	if err != nil {
		s.logger.Warn("認証後のユーザー取得に失敗しました",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
		snap, _ := s.setIf(epoch, Snapshot{Status: StatusUnauthenticated})
		return snap, fmt.Errorf("%s: fetch user: %w", op, err)
	}
	snap, ok := s.setIf(epoch, Snapshot{Status: StatusAuthenticated, User: user})
	if !ok && !snap.Authenticated() {
		return snap, fmt.Errorf("%s: %w", op, ErrSuperseded)
	}
	return snap, nil
}

// SignOut はバックエンドにセッションの無効化を通知する。
// 通知の成否にかかわらず、ローカル状態は必ずunauthenticatedになる。
func (s *Store) SignOut(ctx context.Context) Snapshot {
	if err := s.backend.SignOut(ctx); err != nil {
		s.logger.Warn("サインアウトの通知に失敗しました",
			slog.String("error", err.Error()),
		)
	}
	s.begin(Snapshot{Status: StatusUnauthenticated})
	return s.Snapshot()
}

// RefreshToken はapi.Refresherを実装する。
// 同時に発生したリフレッシュは1回のバックエンド呼び出しにまとめられる。
// 共有される処理は呼び出し元のキャンセルから切り離し、refreshTimeoutで打ち切る。
// 呼び出し元のコンテキストが先に終了した場合は状態を変更せずにそのエラーを返す。
//
// バックエンドがリフレッシュまたはユーザー取得を4xxで拒否した場合に限り
// unauthenticatedに遷移してErrSessionEndedを返す。通信失敗や5xxでは状態を維持する。
func (s *Store) RefreshToken(ctx context.Context) error {
	ch := s.refreshGroup.DoChan("refresh", func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return nil, s.refresh(rctx)
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

func (s *Store) refresh(ctx context.Context) error {
	epoch := s.currentEpoch()

	if err := s.backend.Refresh(ctx); err != nil {
		s.recordRefresh(false)
		return s.refreshFailed(epoch, "refresh", err)
	}

	user, err := s.backend.MeNoRefresh(ctx)
	if err != nil {
		s.recordRefresh(false)
		return s.refreshFailed(epoch, "fetch user", err)
	}

	s.recordRefresh(true)
	snap, ok := s.setIf(epoch, Snapshot{Status: StatusAuthenticated, User: user})
	if !ok && !snap.Authenticated() {
		// リフレッシュ中にサインアウトされた
		return fmt.Errorf("%w: %w", ErrSessionEnded, ErrSuperseded)
	}
	return nil
}

// refreshFailed はリフレッシュの失敗を分類する。
// 拒否された場合のみセッションを終了させ、それ以外は状態を維持する。
func (s *Store) refreshFailed(epoch uint64, step string, err error) error {
	if !rejected(err) {
		s.logger.Warn("トークンのリフレッシュが一時的に失敗しました",
			slog.String("step", step),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("refresh session: %s: %w", step, err)
	}

	s.logger.Warn("トークンのリフレッシュが拒否されました",
		slog.String("step", step),
		slog.String("error", err.Error()),
	)
	s.endIf(epoch)
	return fmt.Errorf("%w: %s: %v", ErrSessionEnded, step, err)
}

// rejected はバックエンドが要求を4xxで明示的に拒否したかを返す。
func rejected(err error) bool {
	apiErr, ok := api.AsError(err)
	return ok && apiErr.StatusCode >= http.StatusBadRequest && apiErr.StatusCode < http.StatusInternalServerError
}

// End はセッションを終了させる。バックエンドには通知しない。
// 定期再確認でリフレッシュ後も認可されない応答を受けた場合などに使用する。
func (s *Store) End() Snapshot {
	s.begin(Snapshot{Status: StatusUnauthenticated})
	return s.Snapshot()
}

// endIf はepochが変わっていない場合に限りセッションを終了させる。
// 終了させた場合はepochを進める。
func (s *Store) endIf(epoch uint64) bool {
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return false
	}
	s.epoch++
	prev := s.commitLocked(Snapshot{Status: StatusUnauthenticated})
	s.mu.Unlock()

	s.observe(prev, StatusUnauthenticated)
	return true
}

// Subscribe は状態変化の購読を開始する。
// チャネルは常に最新のSnapshotのみを保持し、購読直後に現在の状態が届く。
// 返された関数を呼ぶと購読を解除しチャネルを閉じる。
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan Snapshot, 1)
	ch <- s.snapshot
	s.subscribers[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subscribers, id)
			close(ch)
		})
	}
	return ch, cancel
}

// WaitResolved は状態が確定する（unknown/checkingでなくなる）まで待つ。
func (s *Store) WaitResolved(ctx context.Context) (Snapshot, error) {
	ch, cancel := s.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return s.Snapshot(), ctx.Err()
		case snap := <-ch:
			if snap.Status.Resolved() {
				return snap, nil
			}
		}
	}
}

// current は現在のSnapshotとepochを返す。
func (s *Store) current() (Snapshot, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot, s.epoch
}

// currentEpoch は現在のepochを返す。
func (s *Store) currentEpoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// begin はepochを進めてSnapshotを置き換え、新しいepochを返す。
// セッションを切り替える操作の開始時に使用する。
func (s *Store) begin(next Snapshot) uint64 {
	s.mu.Lock()
	s.epoch++
	epoch := s.epoch
	prev := s.commitLocked(next)
	s.mu.Unlock()

	s.observe(prev, next.Status)
	return epoch
}

// setIf はepochが変わっていない場合に限りSnapshotを置き換える。
// 置き換えなかった場合は現在のSnapshotとfalseを返す。
func (s *Store) setIf(epoch uint64, next Snapshot) (Snapshot, bool) {
	s.mu.Lock()
	if s.epoch != epoch {
		current := s.snapshot
		s.mu.Unlock()
		return current, false
	}
	prev := s.commitLocked(next)
	s.mu.Unlock()

	s.observe(prev, next.Status)
	return next, true
}

// commitLocked はSnapshotを置き換えて購読者に通知し、直前の状態を返す。
// s.muを保持した状態で呼び出すこと。
func (s *Store) commitLocked(next Snapshot) Status {
	prev := s.snapshot.Status
	s.snapshot = next
	for _, ch := range s.subscribers {
		// 古い値を捨てて最新値だけを残す
		select {
		case <-ch:
		default:
		}
		ch <- next
	}
	return prev
}

func (s *Store) observe(prev, next Status) {
	if prev == next {
		return
	}
	s.logger.Info("セッション状態が遷移しました",
		slog.String("from", string(prev)),
		slog.String("to", string(next)),
	)
	if s.metrics != nil {
		s.metrics.RecordSessionTransition(string(next))
	}
}

func (s *Store) recordRefresh(success bool) {
	if s.metrics != nil {
		s.metrics.RecordTokenRefresh(success)
	}
}
