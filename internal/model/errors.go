package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, page, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidRequest       = "INVALID_REQUEST"
	ErrCodeInvalidPage          = "INVALID_PAGE"
	ErrCodeInvalidLink          = "INVALID_LINK"
	ErrCodeDuplicateLink        = "DUPLICATE_LINK"
	ErrCodeSaveInProgress       = "SAVE_IN_PROGRESS"
	ErrCodeConfirmationRequired = "CONFIRMATION_REQUIRED"
	ErrCodePageNotFound         = "PAGE_NOT_FOUND"
	ErrCodeSignInFailed         = "SIGN_IN_FAILED"
	ErrCodeSignUpFailed         = "SIGN_UP_FAILED"
	ErrCodeSessionEnded         = "SESSION_ENDED"
	ErrCodeNotAuthorized        = "NOT_AUTHORIZED"
	ErrCodeBackendRejected      = "BACKEND_REJECTED"
	ErrCodeBackendUnavailable   = "BACKEND_UNAVAILABLE"
	ErrCodePreviewFailed        = "PREVIEW_FAILED"
	ErrCodeSessionLoading       = "SESSION_LOADING"
	ErrCodeCSRFFailed           = "CSRF_FAILED"
	ErrCodeRateLimited          = "RATE_LIMITED"
)

// NewInvalidRequestError はリクエストボディが不正な場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewInvalidPageError はページ項目の検証エラーを生成する。
func NewInvalidPageError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPage,
		Message:  fmt.Sprintf("ページの内容が不正です: %s", reason),
		Category: "validation",
		Action:   "タイトルは1〜100文字、説明は500文字以内で入力してください。",
	}
}

// NewInvalidLinkError はリンクの検証エラーを生成する。
func NewInvalidLinkError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidLink,
		Message:  fmt.Sprintf("リンクの内容が不正です: %s", reason),
		Category: "validation",
		Action:   "プラットフォームを選択し、正しい形式のURLを入力してください。",
	}
}

// NewDuplicateLinkError は同じプラットフォームとURLの組が重複している場合のエラーを生成する。
func NewDuplicateLinkError(key LinkKey) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateLink,
		Message:  fmt.Sprintf("同じリンクが複数含まれています: %s", key),
		Category: "validation",
		Action:   "重複しているリンクを1件にまとめてください。",
	}
}

// NewSaveInProgressError は同じページの保存が実行中の場合のエラーを生成する。
func NewSaveInProgressError() *APIError {
	return &APIError{
		Code:     ErrCodeSaveInProgress,
		Message:  "このページは保存中です。",
		Category: "page",
		Action:   "保存が完了するまでお待ちください。",
	}
}

// NewConfirmationRequiredError はページ削除に明示的な確認がない場合のエラーを生成する。
func NewConfirmationRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeConfirmationRequired,
		Message:  "ページの削除には確認が必要です。",
		Category: "page",
		Action:   "削除してよいか確認したうえで confirm=true を指定してください。",
	}
}

// NewPageNotFoundError はページが見つからない場合のエラーを生成する。
func NewPageNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodePageNotFound,
		Message:  fmt.Sprintf("指定されたページが見つかりません: %s", id),
		Category: "page",
		Action:   "ページIDまたはURLを確認してください。",
	}
}

// NewSignInFailedError はサインイン失敗エラーを生成する。
// messageが空の場合は一般的なメッセージを使用する。
func NewSignInFailedError(message string) *APIError {
	if message == "" {
		message = "サインインに失敗しました。"
	}
	return &APIError{
		Code:     ErrCodeSignInFailed,
		Message:  message,
		Category: "auth",
		Action:   "メールアドレスとパスワードを確認してください。",
	}
}

// NewSignUpFailedError はサインアップ失敗エラーを生成する。
// messageが空の場合は一般的なメッセージを使用する。
func NewSignUpFailedError(message string) *APIError {
	if message == "" {
		message = "サインアップに失敗しました。"
	}
	return &APIError{
		Code:     ErrCodeSignUpFailed,
		Message:  message,
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewSessionEndedError はセッションが終了した場合のエラーを生成する。
func NewSessionEndedError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionEnded,
		Message:  "セッションの有効期限が切れました。",
		Category: "auth",
		Action:   "サインインし直してください。",
	}
}

// NewNotAuthorizedError はセッションは有効なままバックエンドが操作を認可しなかった場合のエラーを生成する。
func NewNotAuthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeNotAuthorized,
		Message:  "この操作は許可されていません。",
		Category: "auth",
		Action:   "操作対象と権限を確認してください。",
	}
}

// NewBackendRejectedError はバックエンドが入力を拒否した場合のエラーを生成する。
// バックエンドのメッセージをそのまま表示する。
func NewBackendRejectedError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeBackendRejected,
		Message:  message,
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewBackendUnavailableError はバックエンドに到達できない、または障害の場合のエラーを生成する。
func NewBackendUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeBackendUnavailable,
		Message:  "サーバーとの通信に失敗しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewPreviewFailedError はリンクプレビューの取得に失敗した場合のエラーを生成する。
func NewPreviewFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodePreviewFailed,
		Message:  fmt.Sprintf("リンク先の情報を取得できませんでした: %s", reason),
		Category: "validation",
		Action:   "URLが公開されているページか確認してください。",
	}
}

// NewSessionLoadingError は認証状態の確認中に保護された操作を受けた場合のエラーを生成する。
func NewSessionLoadingError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionLoading,
		Message:  "認証状態を確認しています。",
		Category: "auth",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewCSRFFailedError はCSRFトークンの検証に失敗した場合のエラーを生成する。
func NewCSRFFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFFailed,
		Message:  "CSRFトークンの検証に失敗しました。",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// NewRateLimitedError はレート制限を超えた場合のエラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "指定された時間が経過してから再度お試しください。",
	}
}
