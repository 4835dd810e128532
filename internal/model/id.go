package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ID はバックエンドが発行する不透明な識別子。
// バックエンドによっては数値で返されるため、JSONの文字列と数値の両方を受け付ける。
// 空文字列は未永続化を意味する。
type ID string

// IsZero はIDが未割り当てかを返す。
func (id ID) IsZero() bool {
	return id == ""
}

// String はIDを文字列として返す。
func (id ID) String() string {
	return string(id)
}

// UnmarshalJSON は文字列・数値・nullのいずれからもIDを復元する。
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("invalid id: %w", err)
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id: %w", err)
	}
	*id = ID(n.String())
	return nil
}
