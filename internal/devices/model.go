package devices

import (
	"database/sql"
	"time"
)

// Device は devices テーブルの1行を表す
type Device struct {
	AssetNo     string
	Maker       string
	OS          sql.NullString
	MemoryGB    sql.NullInt32
	StorageGB   sql.NullInt32
	GPU         sql.NullString
	Location    sql.NullString
	BrokenFlag  bool
	LeaseStart  sql.NullTime
	LeaseEnd    sql.NullTime
	Remarks     sql.NullString
	DeletedFlag bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
