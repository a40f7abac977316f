package users

import (
	"database/sql"
	"time"
)

// 性別コード（0:男性 1:女性 2:その他、NULL=未設定）
const (
	GenderMale   = 0
	GenderFemale = 1
	GenderOther  = 2
)

// アカウント権限
const (
	LevelAdmin = "admin"
	LevelUser  = "user"
)

// User は users テーブルの1行を表す
type User struct {
	EmployeeNo   string
	Name         string
	NameKana     sql.NullString
	Department   sql.NullString
	TelNo        sql.NullString
	MailAddress  sql.NullString
	Age          sql.NullInt32
	Gender       sql.NullInt32
	Position     sql.NullString
	AccountLevel string
	RegisteredAt time.Time
	UpdatedAt    time.Time
	RetiredAt    sql.NullTime
	DeletedFlag  bool
}

// UserState は認証・貸出台帳から参照される最小限の状態
type UserState struct {
	Exists       bool
	Deleted      bool
	Name         string
	AccountLevel string
}
