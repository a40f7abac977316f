package rentals

import (
	"database/sql"
	"time"
)

// Rental は rentals テーブルの1行（貸出イベント）を表す。
// returned_at が NULL の行が「貸出中」。資産ごとに高々1件
// （open_asset の一意制約でDB側でも担保している）。
type Rental struct {
	RentalID   int64
	RentalULID string
	AssetNo    string
	EmployeeNo string
	RentedAt   time.Time
	DueOn      sql.NullTime
	ReturnedAt sql.NullTime
	InUse      bool
}

// openRow は貸出中レコード＋表示用の社員氏名
type openRow struct {
	Rental
	EmployeeName string
}

// DeviceState / EmployeeState は貸出可否判定に使う最小限の参照情報
type DeviceState struct {
	Deleted bool
}

type EmployeeState struct {
	Exists  bool
	Deleted bool
	Name    string
}

// AssetStatus は貸出状況一覧の1行（機器 LEFT JOIN 貸出中レコード）。
// 空きの機器は Last* に直近の返却済みレコードが入る（監査用）。
type AssetStatus struct {
	AssetNo    string
	Maker      string
	OS         sql.NullString
	Location   sql.NullString
	BrokenFlag bool

	RentalULID   sql.NullString
	EmployeeNo   sql.NullString
	EmployeeName sql.NullString
	RentedAt     sql.NullTime
	DueOn        sql.NullTime

	LastEmployeeNo   sql.NullString
	LastEmployeeName sql.NullString
	LastReturnedAt   sql.NullTime
}

// historyRow は履歴一覧の1行
type historyRow struct {
	Rental
	EmployeeName string
}

// 一覧の検索条件
type StatusFilter struct {
	Keyword      string
	OnlyBorrowed bool
}

// 履歴一覧の検索条件
type HistoryFilter struct {
	AssetNo    *string
	EmployeeNo *string
	OnlyOpen   bool
	From       *time.Time
	To         *time.Time
}

type Page struct {
	Limit  int
	Offset int
	Order  string
}
