// Package editor はページの作業コピーを編集・保存する機能を提供する。
// 保存時は永続化済みのリンク一覧と作業コピーを (platform, url) で照合し、
// 必要最小限の作成・更新・削除だけをバックエンドに発行する。
package editor

import (
	"errors"
	"fmt"

	"github.com/hitoshi/linkbio/internal/model"
)

// ErrDuplicateLink は作業コピー内に同じ (platform, url) のリンクが複数あることを示す。
var ErrDuplicateLink = errors.New("duplicate link in working set")

// DuplicateLinkError は重複したキーを保持するエラー。errors.Is(err, ErrDuplicateLink) が成立する。
type DuplicateLinkError struct {
	Key model.LinkKey
}

func (e *DuplicateLinkError) Error() string {
	return fmt.Sprintf("%s: %s", ErrDuplicateLink, e.Key)
}

func (e *DuplicateLinkError) Is(target error) bool {
	return target == ErrDuplicateLink
}

// OpKind はリンクに対する書き込みの種類。
type OpKind string

const (
	OpCreate OpKind = "create"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
)

// Op はリンク1件に対する書き込み。
// OpUpdateとOpDeleteのLink.IDは永続化済みリンクのID。
type Op struct {
	Kind OpKind
	Link model.Link
}

// Plan は照合結果。Deletesを先に、Upsertsを後に適用する。
type Plan struct {
	Deletes []Op
	Upserts []Op
	// Unchanged は一致したが書き込み不要だったリンクの件数。
	Unchanged int
}

// Ops は適用順に並べた書き込みを返す。
func (p Plan) Ops() []Op {
	ops := make([]Op, 0, len(p.Deletes)+len(p.Upserts))
	ops = append(ops, p.Deletes...)
	return append(ops, p.Upserts...)
}

// Empty は書き込みが1件もないかを返す。
func (p Plan) Empty() bool {
	return len(p.Deletes) == 0 && len(p.Upserts) == 0
}

// Count は指定種別の書き込み件数を返す。
func (p Plan) Count(kind OpKind) int {
	n := 0
	for _, op := range p.Ops() {
		if op.Kind == kind {
			n++
		}
	}
	return n
}

// Reconcile は永続化済みのリンク(before)を作業コピー(after)に収束させる書き込みを計算する。
// 副作用はない。
//
//   - afterにキーの重複があれば*DuplicateLinkErrorを返し、書き込みは計算しない
//   - afterにキーがないbeforeのリンクは削除する
//   - beforeに同じキーが複数あれば、最初の1件を残して削除する
//   - IDのないbeforeのリンクは照合にも削除にも使わない
//   - 一致したリンクはタイトルかページIDが異なる場合のみ更新する
//   - 一致しないリンクはpageIDを付けて作成する
//
// リンクの並び順は照合に影響しない。
func Reconcile(pageID model.ID, before, after []model.Link) (Plan, error) {
	desired := make(map[model.LinkKey]struct{}, len(after))
	for _, l := range after {
		key := l.Key()
		if _, dup := desired[key]; dup {
			return Plan{}, &DuplicateLinkError{Key: key}
		}
		desired[key] = struct{}{}
	}

	var plan Plan
	persisted := make(map[model.LinkKey]model.Link, len(before))
	for _, l := range before {
		// IDのないリンクは更新も削除もできないため照合に使わない
		if l.ID.IsZero() {
			continue
		}
		key := l.Key()
		_, wanted := desired[key]
		_, seen := persisted[key]
		if wanted && !seen {
			persisted[key] = l
			continue
		}
		plan.Deletes = append(plan.Deletes, Op{Kind: OpDelete, Link: l})
	}

	for _, l := range after {
		next := l
		next.PageID = pageID

		match, ok := persisted[l.Key()]
		if !ok {
			next.ID = ""
			plan.Upserts = append(plan.Upserts, Op{Kind: OpCreate, Link: next})
			continue
		}

		next.ID = match.ID
		if match.Title == next.Title && (match.PageID.IsZero() || match.PageID == pageID) {
			plan.Unchanged++
			continue
		}
		plan.Upserts = append(plan.Upserts, Op{Kind: OpUpdate, Link: next})
	}

	return plan, nil
}
