package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Category はバックエンド呼び出しの失敗種別。
type Category string

const (
	// CategoryTransport は応答を受け取れなかった通信失敗。
	CategoryTransport Category = "transport"
	// CategoryUnauthorized は401応答。リフレッシュと1回の再送で回復を試みる。
	CategoryUnauthorized Category = "unauthorized"
	// CategoryValidation は401以外の4xx応答。メッセージをそのまま利用者に表示する。
	CategoryValidation Category = "validation"
	// CategoryServer は5xx応答。一般的な失敗として扱い、再試行しない。
	CategoryServer Category = "server"
)

// ErrSessionEnded はリフレッシュが拒否されセッションが終了したことを示す。
// Refresher はセッションを終了させた場合にのみこのエラーをラップして返す。
var ErrSessionEnded = errors.New("session ended")

// 汎用メッセージ
const (
	genericUnauthorizedMessage = "認証が必要です。"
	genericValidationMessage   = "リクエストが受け付けられませんでした。"
	genericServerMessage       = "サーバーでエラーが発生しました。"
	genericTransportMessage    = "サーバーに接続できませんでした。"
)

// Error はバックエンド呼び出しの失敗を表す。
type Error struct {
	Category   Category
	StatusCode int    // 通信失敗の場合は0
	Message    string // 利用者に表示できるメッセージ
	Method     string
	Path       string
	// SessionEnded はリフレッシュにも失敗してセッションが終了したことを示す。
	SessionEnded bool
	Err          error
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	if e.StatusCode == 0 {
		if e.Err != nil {
			return fmt.Sprintf("%s %s: %s: %v", e.Method, e.Path, e.Category, e.Err)
		}
		return fmt.Sprintf("%s %s: %s", e.Method, e.Path, e.Category)
	}
	return fmt.Sprintf("%s %s: status %d (%s): %s", e.Method, e.Path, e.StatusCode, e.Category, e.Message)
}

// Unwrap は元になったエラーを返す。
func (e *Error) Unwrap() error {
	return e.Err
}

// AsError はerrがバックエンド呼び出しのエラーであればそれを返す。
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsUnauthorized はerrが401応答によるものかを返す。
func IsUnauthorized(err error) bool {
	apiErr, ok := AsError(err)
	return ok && apiErr.Category == CategoryUnauthorized
}

// IsNotFound はerrが404応答によるものかを返す。
func IsNotFound(err error) bool {
	apiErr, ok := AsError(err)
	return ok && apiErr.StatusCode == http.StatusNotFound
}

// IsSessionEnded はerrがリフレッシュ失敗によるセッション終了を伴うかを返す。
func IsSessionEnded(err error) bool {
	apiErr, ok := AsError(err)
	return ok && apiErr.SessionEnded
}

// UserMessage は利用者に表示するメッセージを返す。
// 4xx（401を含む）はバックエンドのメッセージを、それ以外はfallbackを返す。
func UserMessage(err error, fallback string) string {
	apiErr, ok := AsError(err)
	if !ok {
		return fallback
	}
	switch apiErr.Category {
	case CategoryValidation, CategoryUnauthorized:
		if apiErr.Message != "" && !isGenericMessage(apiErr.Message) {
			return apiErr.Message
		}
	}
	return fallback
}

func isGenericMessage(msg string) bool {
	switch msg {
	case genericUnauthorizedMessage, genericValidationMessage, genericServerMessage, genericTransportMessage:
		return true
	}
	return false
}

// newTransportError は応答を受け取れなかった場合のエラーを生成する。
func newTransportError(method, path string, err error) *Error {
	return &Error{
		Category: CategoryTransport,
		Message:  genericTransportMessage,
		Method:   method,
		Path:     path,
		Err:      err,
	}
}

// newStatusError はステータスコードと応答ボディからエラーを生成する。
func newStatusError(method, path string, statusCode int, body []byte) *Error {
	e := &Error{
		StatusCode: statusCode,
		Method:     method,
		Path:       path,
	}

	msg := parseMessage(body)
	switch {
	case statusCode == http.StatusUnauthorized:
		e.Category = CategoryUnauthorized
		e.Message = fallbackMessage(msg, genericUnauthorizedMessage)
	case statusCode >= 500:
		// 5xxのメッセージは内部情報を含みうるため表示しない
		e.Category = CategoryServer
		e.Message = genericServerMessage
	default:
		e.Category = CategoryValidation
		e.Message = fallbackMessage(msg, genericValidationMessage)
	}
	return e
}

func fallbackMessage(msg, fallback string) string {
	if strings.TrimSpace(msg) == "" {
		return fallback
	}
	return msg
}

// errorBody はバックエンドのエラー応答の形式。
// detailは文字列、または {msg} を要素に持つ配列のいずれか。
type errorBody struct {
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

// parseMessage はエラー応答ボディからメッセージを取り出す。
// 取り出せない場合は空文字列を返す。
func parseMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return ""
	}

	if len(eb.Detail) > 0 {
		var s string
		if err := json.Unmarshal(eb.Detail, &s); err == nil && s != "" {
			return s
		}

		var items []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(eb.Detail, &items); err == nil {
			msgs := make([]string, 0, len(items))
			for _, it := range items {
				if it.Msg != "" {
					msgs = append(msgs, it.Msg)
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
	}

	if eb.Message != "" {
		return eb.Message
	}
	return eb.Error
}
