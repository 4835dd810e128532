package guard

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/linkbio/internal/session"
)

// fakeSource はSourceのテスト用実装。
type fakeSource struct {
	mu   sync.Mutex
	snap session.Snapshot
	subs []chan session.Snapshot
}

func newFakeSource(status session.Status) *fakeSource {
	return &fakeSource{snap: session.Snapshot{Status: status}}
}

func (f *fakeSource) Snapshot() session.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeSource) Subscribe() (<-chan session.Snapshot, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan session.Snapshot, 1)
	ch <- f.snap
	f.subs = append(f.subs, ch)
	return ch, func() {}
}

func (f *fakeSource) set(status session.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap = session.Snapshot{Status: status}
	for _, ch := range f.subs {
		select {
		case <-ch:
		default:
		}
		ch <- f.snap
	}
}

func TestGuard_Evaluate(t *testing.T) {
	tests := []struct {
		name   string
		status session.Status
		want   Decision
	}{
		{"unknown", session.StatusUnknown, Loading},
		{"checking", session.StatusChecking, Loading},
		{"authenticated", session.StatusAuthenticated, Render},
		{"unauthenticated", session.StatusUnauthenticated, Redirect},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New("/sign-in")
			if got := g.Evaluate(tt.status); got != tt.want {
				t.Errorf("Evaluate(%s) = %s, want %s", tt.status, got, tt.want)
			}
		})
	}
}

func TestGuard_Evaluate_RedirectsOnlyOnce(t *testing.T) {
	g := New("/sign-in")

	if got := g.Evaluate(session.StatusUnauthenticated); got != Redirect {
		t.Fatalf("1回目 = %s, want redirect", got)
	}
	for i := 0; i < 3; i++ {
		if got := g.Evaluate(session.StatusUnauthenticated); got != Blank {
			t.Errorf("%d回目 = %s, want blank", i+2, got)
		}
	}

	// 認証済みを経由すると再びリダイレクトできる
	g.Evaluate(session.StatusAuthenticated)
	if got := g.Evaluate(session.StatusUnauthenticated); got != Redirect {
		t.Errorf("再サインイン後 = %s, want redirect", got)
	}
}

func TestGuard_Evaluate_NeverRendersWhileChecking(t *testing.T) {
	g := New("/sign-in")
	g.Evaluate(session.StatusAuthenticated)
	if got := g.Evaluate(session.StatusChecking); got == Render {
		t.Error("checking 中に Render を返してはならない")
	}
}

func TestGuard_Watch_RevokesOnSignOut(t *testing.T) {
	src := newFakeSource(session.StatusChecking)
	g := New("/sign-in")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	decisions := make(chan Decision, 10)
	go g.Watch(ctx, src, func(d Decision, _ session.Snapshot) {
		decisions <- d
	})

	expect := func(want Decision) {
		t.Helper()
		select {
		case got := <-decisions:
			if got != want {
				t.Errorf("Decision = %s, want %s", got, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("Decision %s が届かなかった", want)
		}
	}

	expect(Loading)
	src.set(session.StatusAuthenticated)
	expect(Render)
	src.set(session.StatusUnauthenticated)
	expect(Redirect)
}

func TestBind_CancelsWhenSessionEnds(t *testing.T) {
	src := newFakeSource(session.StatusAuthenticated)

	ctx, cancel := Bind(context.Background(), src)
	defer cancel()

	if ctx.Err() != nil {
		t.Fatal("認証済みの間はコンテキストが有効であるべき")
	}

	src.set(session.StatusUnauthenticated)

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("セッション終了後にコンテキストがキャンセルされなかった")
	}
}

func TestBind_NotAuthenticatedReturnsCancelled(t *testing.T) {
	src := newFakeSource(session.StatusUnauthenticated)

	ctx, cancel := Bind(context.Background(), src)
	defer cancel()

	if ctx.Err() == nil {
		t.Error("未認証時はキャンセル済みのコンテキストを返すべき")
	}
}

func TestDecision_String(t *testing.T) {
	if Loading.String() != "loading" || Render.String() != "render" {
		t.Errorf("String() = %s, %s", Loading, Render)
	}
}
