package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hitoshi/linkbio/internal/api"
)

// Revalidator は認証済みセッションを定期的にバックエンドで再確認する。
// 401はリフレッシュを経ても回復しなければセッションを終了させ、
// 通信失敗の場合は現在の状態を維持する。
type Revalidator struct {
	store  *Store
	logger *slog.Logger
}

// NewRevalidator はRevalidatorの新しいインスタンスを生成する。
func NewRevalidator(store *Store, logger *slog.Logger) *Revalidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Revalidator{store: store, logger: logger}
}

// Start は指定間隔のティッカーで再確認を行う。
// intervalが0以下の場合は何もせずに戻る。
// コンテキストがキャンセルされるまで実行を継続する。
func (r *Revalidator) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		r.logger.Info("セッションの定期再確認は無効です")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("セッションの定期再確認を開始しました",
		slog.Duration("interval", interval),
	)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("セッションの定期再確認を停止しました")
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce は認証済みの場合に限り、ユーザーを取得し直してセッションを確認する。
// 確認中にサインアウトなどでセッションが切り替わった場合、結果は反映しない。
func (r *Revalidator) RunOnce(ctx context.Context) {
	snap, epoch := r.store.current()
	if !snap.Authenticated() {
		return
	}

	user, err := r.store.backend.Me(ctx)
	switch {
	case err == nil:
		if _, ok := r.store.setIf(epoch, Snapshot{Status: StatusAuthenticated, User: user}); !ok {
			r.logger.Debug("再確認中にセッションが切り替わったため結果を破棄します")
		}
	case api.IsUnauthorized(err) || errors.Is(err, ErrSessionEnded):
		if r.store.endIf(epoch) {
			r.logger.Warn("セッションが無効になったため終了します",
				slog.String("error", err.Error()),
			)
		}
	default:
		r.logger.Warn("セッションの再確認に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}
