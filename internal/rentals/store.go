package rentals

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"ARMS-backend/internal/platform/db"
)

// openCond が「貸出中」判定の唯一の定義。読み取り・更新の全経路がここを通る。
// 列を直接比較する述語をクエリごとに書き直さないこと（available系フラグでの判定も禁止）。
func openCond(alias string) string {
	return alias + ".returned_at IS NULL"
}

// LedgerStore は台帳の読み取り系とトランザクション起点
type LedgerStore interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error
	FindOpen(ctx context.Context, assetNo string) (*openRow, error)
	FindOpenByEmployee(ctx context.Context, employeeNo string) (*openRow, error)
	ListStatuses(ctx context.Context, f StatusFilter) ([]AssetStatus, error)
	AssetDetail(ctx context.Context, assetNo string) (*AssetDetailRow, error)
	ListHistory(ctx context.Context, f HistoryFilter, p Page) ([]historyRow, int64, error)
}

// LedgerTx は貸出・返却トランザクション内の操作。
// LockDevice が機器行をロックするので、同一資産の Rent/Return は直列化される。
type LedgerTx interface {
	LockDevice(ctx context.Context, assetNo string) (*DeviceState, error)
	EmployeeState(ctx context.Context, employeeNo string) (EmployeeState, error)
	FindOpenForUpdate(ctx context.Context, assetNo string) (*Rental, error)
	FindOpenByEmployeeForUpdate(ctx context.Context, employeeNo string) (*Rental, error)
	InsertRental(ctx context.Context, r *Rental) error
	CloseRental(ctx context.Context, rentalID int64, returnedAt time.Time) (int64, error)
}

type Store struct{ conn *sql.DB }

func NewStore(conn *sql.DB) *Store { return &Store{conn: conn} }

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error {
	return db.RunInTx(ctx, s.conn, nil, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, &storeTx{tx: tx})
	})
}

// ---------- Tx operations ----------

type storeTx struct{ tx *sql.Tx }

// 機器行をロックして削除フラグを返す。不在なら (nil, nil)。
func (t *storeTx) LockDevice(ctx context.Context, assetNo string) (*DeviceState, error) {
	const q = `SELECT deleted_flag FROM devices WHERE asset_no = ? LIMIT 1 FOR UPDATE`
	var st DeviceState
	err := t.tx.QueryRowContext(ctx, q, assetNo).Scan(&st.Deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (t *storeTx) EmployeeState(ctx context.Context, employeeNo string) (EmployeeState, error) {
	const q = `SELECT name, deleted_flag FROM users WHERE employee_no = ? LIMIT 1`
	var st EmployeeState
	err := t.tx.QueryRowContext(ctx, q, employeeNo).Scan(&st.Name, &st.Deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return EmployeeState{}, nil
	}
	if err != nil {
		return EmployeeState{}, err
	}
	st.Exists = true
	return st, nil
}

const rentalCols = `r.rental_id, r.rental_ulid, r.asset_no, r.employee_no, r.rented_at, r.due_on, r.returned_at, r.in_use`

func scanRental(row interface{ Scan(...any) error }) (*Rental, error) {
	var r Rental
	err := row.Scan(&r.RentalID, &r.RentalULID, &r.AssetNo, &r.EmployeeNo,
		&r.RentedAt, &r.DueOn, &r.ReturnedAt, &r.InUse)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (t *storeTx) FindOpenForUpdate(ctx context.Context, assetNo string) (*Rental, error) {
	q := `SELECT ` + rentalCols + ` FROM rentals r
	WHERE r.asset_no = ? AND ` + openCond("r") + `
	ORDER BY r.rented_at DESC, r.rental_id DESC LIMIT 1 FOR UPDATE`
	r, err := scanRental(t.tx.QueryRowContext(ctx, q, assetNo))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

func (t *storeTx) FindOpenByEmployeeForUpdate(ctx context.Context, employeeNo string) (*Rental, error) {
	q := `SELECT ` + rentalCols + ` FROM rentals r
	WHERE r.employee_no = ? AND ` + openCond("r") + `
	ORDER BY r.rented_at DESC, r.rental_id DESC LIMIT 1 FOR UPDATE`
	r, err := scanRental(t.tx.QueryRowContext(ctx, q, employeeNo))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

func (t *storeTx) InsertRental(ctx context.Context, r *Rental) error {
	// open_asset の一意制約が「資産ごとに貸出中1件まで」の最終防壁。
	// 競合に負けた側は duplicate key (1062) を受け取る。
	const q = `
	INSERT INTO rentals (rental_ulid, asset_no, employee_no, rented_at, due_on, in_use)
	VALUES (?, ?, ?, ?, ?, 1)`
	res, err := t.tx.ExecContext(ctx, q, r.RentalULID, r.AssetNo, r.EmployeeNo, r.RentedAt, r.DueOn)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	r.RentalID = id
	return nil
}

// 返却確定。対象行が既に返却済みなら 0 行更新（並行返却の負け側）。
func (t *storeTx) CloseRental(ctx context.Context, rentalID int64, returnedAt time.Time) (int64, error) {
	q := `UPDATE rentals r SET r.returned_at = ?, r.in_use = 0
	WHERE r.rental_id = ? AND ` + openCond("r")
	res, err := t.tx.ExecContext(ctx, q, returnedAt, rentalID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ---------- Queries ----------

func scanOpenRow(row interface{ Scan(...any) error }) (*openRow, error) {
	var r openRow
	err := row.Scan(&r.RentalID, &r.RentalULID, &r.AssetNo, &r.EmployeeNo,
		&r.RentedAt, &r.DueOn, &r.ReturnedAt, &r.InUse, &r.EmployeeName)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) FindOpen(ctx context.Context, assetNo string) (*openRow, error) {
	q := `SELECT ` + rentalCols + `, u.name
	FROM rentals r JOIN users u ON u.employee_no = r.employee_no
	WHERE r.asset_no = ? AND ` + openCond("r") + `
	ORDER BY r.rented_at DESC, r.rental_id DESC LIMIT 1`
	r, err := scanOpenRow(s.conn.QueryRowContext(ctx, q, assetNo))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

func (s *Store) FindOpenByEmployee(ctx context.Context, employeeNo string) (*openRow, error) {
	q := `SELECT ` + rentalCols + `, u.name
	FROM rentals r JOIN users u ON u.employee_no = r.employee_no
	WHERE r.employee_no = ? AND ` + openCond("r") + `
	ORDER BY r.rented_at DESC, r.rental_id DESC LIMIT 1`
	r, err := scanOpenRow(s.conn.QueryRowContext(ctx, q, employeeNo))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

// 状況一覧本体。未削除の全機器 LEFT JOIN 貸出中レコード。
// 空き機器には直近の返却済みレコード（最後の利用者）も付ける。
func statusBaseQuery() string {
	return `
	SELECT
	  d.asset_no, d.maker, d.os, d.location, d.broken_flag,
	  r.rental_ulid, r.employee_no, u.name, r.rented_at, r.due_on,
	  lr.employee_no, lu.name, lr.returned_at
	FROM devices d
	LEFT JOIN rentals r ON r.asset_no = d.asset_no AND ` + openCond("r") + `
	LEFT JOIN users u ON u.employee_no = r.employee_no
	LEFT JOIN rentals lr ON lr.rental_id = (
	  SELECT r2.rental_id FROM rentals r2
	  WHERE r2.asset_no = d.asset_no AND NOT (` + openCond("r2") + `)
	  ORDER BY r2.returned_at DESC, r2.rental_id DESC LIMIT 1
	)
	LEFT JOIN users lu ON lu.employee_no = lr.employee_no
	WHERE d.deleted_flag = 0`
}

func scanAssetStatus(row interface{ Scan(...any) error }, st *AssetStatus) error {
	return row.Scan(
		&st.AssetNo, &st.Maker, &st.OS, &st.Location, &st.BrokenFlag,
		&st.RentalULID, &st.EmployeeNo, &st.EmployeeName, &st.RentedAt, &st.DueOn,
		&st.LastEmployeeNo, &st.LastEmployeeName, &st.LastReturnedAt,
	)
}

func (s *Store) ListStatuses(ctx context.Context, f StatusFilter) ([]AssetStatus, error) {
	sb := strings.Builder{}
	sb.WriteString(statusBaseQuery())
	args := []any{}
	if f.Keyword != "" {
		sb.WriteString(`
	AND (d.asset_no LIKE ? OR d.maker LIKE ? OR COALESCE(d.os,'') LIKE ?
	  OR COALESCE(d.location,'') LIKE ? OR COALESCE(u.name,'') LIKE ?)`)
		kw := "%" + f.Keyword + "%"
		args = append(args, kw, kw, kw, kw, kw)
	}
	if f.OnlyBorrowed {
		sb.WriteString(` AND r.rental_id IS NOT NULL`)
	}
	sb.WriteString(` ORDER BY d.asset_no`)

	rows, err := s.conn.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []AssetStatus{}
	for rows.Next() {
		var st AssetStatus
		if err := scanAssetStatus(rows, &st); err != nil {
			return nil, err
		}
		list = append(list, st)
	}
	return list, rows.Err()
}

// AssetDetailRow は資産詳細（モーダル表示用）：機器属性＋現況＋最終利用者
type AssetDetailRow struct {
	AssetStatus
	MemoryGB   sql.NullInt32
	StorageGB  sql.NullInt32
	GPU        sql.NullString
	Remarks    sql.NullString
	LeaseStart sql.NullTime
	LeaseEnd   sql.NullTime
	CreatedAt  time.Time
}

// 不在（または削除済み）なら (nil, nil)
func (s *Store) AssetDetail(ctx context.Context, assetNo string) (*AssetDetailRow, error) {
	q := `
	SELECT
	  d.asset_no, d.maker, d.os, d.location, d.broken_flag,
	  r.rental_ulid, r.employee_no, u.name, r.rented_at, r.due_on,
	  lr.employee_no, lu.name, lr.returned_at,
	  d.memory_gb, d.storage_gb, d.gpu, d.remarks, d.lease_start, d.lease_end, d.created_at
	FROM devices d
	LEFT JOIN rentals r ON r.asset_no = d.asset_no AND ` + openCond("r") + `
	LEFT JOIN users u ON u.employee_no = r.employee_no
	LEFT JOIN rentals lr ON lr.rental_id = (
	  SELECT r2.rental_id FROM rentals r2
	  WHERE r2.asset_no = d.asset_no AND NOT (` + openCond("r2") + `)
	  ORDER BY r2.returned_at DESC, r2.rental_id DESC LIMIT 1
	)
	LEFT JOIN users lu ON lu.employee_no = lr.employee_no
	WHERE d.deleted_flag = 0 AND d.asset_no = ?`

	var row AssetDetailRow
	err := s.conn.QueryRowContext(ctx, q, assetNo).Scan(
		&row.AssetNo, &row.Maker, &row.OS, &row.Location, &row.BrokenFlag,
		&row.RentalULID, &row.EmployeeNo, &row.EmployeeName, &row.RentedAt, &row.DueOn,
		&row.LastEmployeeNo, &row.LastEmployeeName, &row.LastReturnedAt,
		&row.MemoryGB, &row.StorageGB, &row.GPU, &row.Remarks,
		&row.LeaseStart, &row.LeaseEnd, &row.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func historyWhere(sb *strings.Builder, f HistoryFilter, args *[]any) {
	if f.AssetNo != nil {
		sb.WriteString(` AND r.asset_no = ?`)
		*args = append(*args, *f.AssetNo)
	}
	if f.EmployeeNo != nil {
		sb.WriteString(` AND r.employee_no = ?`)
		*args = append(*args, *f.EmployeeNo)
	}
	if f.OnlyOpen {
		sb.WriteString(` AND ` + openCond("r"))
	}
	if f.From != nil {
		sb.WriteString(` AND r.rented_at >= ?`)
		*args = append(*args, *f.From)
	}
	if f.To != nil {
		sb.WriteString(` AND r.rented_at < ?`)
		*args = append(*args, *f.To)
	}
}

func (s *Store) ListHistory(ctx context.Context, f HistoryFilter, p Page) ([]historyRow, int64, error) {
	sb := strings.Builder{}
	sb.WriteString(`SELECT ` + rentalCols + `, u.name
	FROM rentals r JOIN users u ON u.employee_no = r.employee_no
	WHERE 1=1`)
	args := []any{}
	historyWhere(&sb, f, &args)

	order := "DESC"
	if strings.ToLower(p.Order) == "asc" {
		order = "ASC"
	}
	sb.WriteString(fmt.Sprintf(` ORDER BY r.rented_at %s, r.rental_id %s`, order, order))
	if p.Limit <= 0 {
		p.Limit = 50
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	sb.WriteString(` LIMIT ? OFFSET ?`)
	args = append(args, p.Limit, p.Offset)

	rows, err := s.conn.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := []historyRow{}
	for rows.Next() {
		var h historyRow
		if err := rows.Scan(&h.RentalID, &h.RentalULID, &h.AssetNo, &h.EmployeeNo,
			&h.RentedAt, &h.DueOn, &h.ReturnedAt, &h.InUse, &h.EmployeeName); err != nil {
			return nil, 0, err
		}
		items = append(items, h)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	// 総件数（条件はWHERE句と同じ）
	cb := strings.Builder{}
	cb.WriteString(`SELECT COUNT(*) FROM rentals r WHERE 1=1`)
	cntArgs := []any{}
	historyWhere(&cb, f, &cntArgs)
	var total int64
	if err := s.conn.QueryRowContext(ctx, cb.String(), cntArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
