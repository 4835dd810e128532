// Package guard は保護されたビューの表示可否を認証状態から判定する。
// 状態が確定するまでは読み込み中として扱い、未認証が確定した時点で
// サインイン先への遷移を1回だけ指示する。
package guard

import (
	"context"
	"sync"

	"github.com/hitoshi/linkbio/internal/session"
)

// Decision は保護されたビューに対する判定結果。
type Decision int

const (
	// Loading は状態の確定待ち。中立的なプレースホルダーのみを表示し、遷移しない。
	Loading Decision = iota
	// Redirect はサインイン先へ遷移する。未認証の確定ごとに1回だけ返る。
	Redirect
	// Blank は遷移済みのため何も表示しない。
	Blank
	// Render は保護されたコンテンツを表示する。
	Render
)

// String はDecisionの名前を返す。
func (d Decision) String() string {
	switch d {
	case Loading:
		return "loading"
	case Redirect:
		return "redirect"
	case Blank:
		return "blank"
	case Render:
		return "render"
	default:
		return "unknown"
	}
}

// Source はセッション状態の供給元。session.Store が実装する。
type Source interface {
	Snapshot() session.Snapshot
	Subscribe() (<-chan session.Snapshot, func())
}

// Guard は1つの保護されたビューの判定状態を持つ。
type Guard struct {
	SignInPath string

	mu         sync.Mutex
	redirected bool
}

// New はGuardの新しいインスタンスを生成する。
func New(signInPath string) *Guard {
	return &Guard{SignInPath: signInPath}
}

// Evaluate は認証状態から判定を返す。
// 未認証に対するRedirectは認証済みになるまで再度返ることはない。
func (g *Guard) Evaluate(status session.Status) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch status {
	case session.StatusAuthenticated:
		g.redirected = false
		return Render
	case session.StatusUnauthenticated:
		if g.redirected {
			return Blank
		}
		g.redirected = true
		return Redirect
	default:
		return Loading
	}
}

// Watch は状態が変化するたびに判定し直してfnを呼び出す。
// ctxが終了するまでブロックする。
func (g *Guard) Watch(ctx context.Context, src Source, fn func(Decision, session.Snapshot)) {
	ch, cancel := src.Subscribe()
	defer cancel()

	var last session.Status
	first := true
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-ch:
			if !ok {
				return
			}
			if !first && snap.Status == last {
				continue
			}
			first = false
			last = snap.Status
			fn(g.Evaluate(snap.Status), snap)
		}
	}
}

// Bind は認証済みの間だけ有効なコンテキストを返す。
// セッションが認証済みでなくなった時点でコンテキストはキャンセルされ、
// 処理中の保護された操作は即座に取り消される。
// 呼び出し時点で認証済みでない場合は、キャンセル済みのコンテキストを返す。
func Bind(ctx context.Context, src Source) (context.Context, context.CancelFunc) {
	bound, cancel := context.WithCancel(ctx)

	ch, unsubscribe := src.Subscribe()
	snap, ok := <-ch
	if !ok || !snap.Authenticated() {
		unsubscribe()
		cancel()
		return bound, cancel
	}

	go func() {
		defer unsubscribe()
		for {
			select {
			case <-bound.Done():
				return
			case snap, ok := <-ch:
				if !ok || !snap.Authenticated() {
					cancel()
					return
				}
			}
		}
	}()
	return bound, cancel
}
