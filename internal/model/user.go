// Package model はドメインモデルを定義する。
package model

// User はバックエンドが返す認証済みユーザーのスナップショットを表す。
// クライアント側で生成・検証することはなく、GET /auth/me の応答をそのまま保持する。
type User struct {
	ID       ID     `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Credentials はサインインに使用する資格情報。
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Profile はサインアップに使用するユーザー情報。
type Profile struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}
