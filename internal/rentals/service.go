package rentals

import (
	"context"
	"crypto/rand"
	"database/sql"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"ARMS-backend/internal/platform/apperr"
	"ARMS-backend/internal/platform/db"
)

const dateLayout = "2006-01-02"

// ===== インターフェース群 =====

type Clock interface{ Now() time.Time }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

type IDGen interface{ NewULID(t time.Time) string }

type ulidGen struct{}

func (ulidGen) NewULID(t time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// ===== Service本体 =====

type Service struct {
	store LedgerStore
	cfg   db.RentalConfig
	clock Clock
	id    IDGen
}

func NewService(conn *sql.DB, cfg db.RentalConfig) *Service {
	return &Service{
		store: NewStore(conn),
		cfg:   cfg,
		clock: realClock{},
		id:    ulidGen{},
	}
}

func NewServiceWithStore(store LedgerStore, cfg db.RentalConfig, clock Clock, id IDGen) *Service {
	return &Service{store: store, cfg: cfg, clock: clock, id: id}
}

// 貸出。資産ごとのFree→Rented遷移はここだけが行う。
func (s *Service) Rent(ctx context.Context, req RentRequest) (*RentalResponse, error) {
	assetNo := strings.TrimSpace(req.AssetNo)
	employeeNo := strings.TrimSpace(req.EmployeeNo)
	if assetNo == "" {
		return nil, apperr.ErrInvalid("asset_no is required")
	}
	if employeeNo == "" {
		return nil, apperr.ErrInvalid("employee_no is required")
	}

	now := s.clock.Now()

	var due time.Time
	if req.DueOn != nil && *req.DueOn != "" {
		parsed, err := time.Parse(dateLayout, *req.DueOn)
		if err != nil {
			return nil, apperr.ErrInvalid("invalid due_on format, expected YYYY-MM-DD")
		}
		due = parsed
	} else {
		due = now.AddDate(0, 0, s.cfg.DefaultDueDays)
	}

	rec := &Rental{
		RentalULID: s.id.NewULID(now),
		AssetNo:    assetNo,
		EmployeeNo: employeeNo,
		RentedAt:   now,
		DueOn:      sql.NullTime{Time: due, Valid: true},
		InUse:      true,
	}
	var employeeName string

	err := s.store.InTx(ctx, func(ctx context.Context, tx LedgerTx) error {
		// 機器行ロックで同一資産のRent/Returnを直列化する
		dev, err := tx.LockDevice(ctx, assetNo)
		if err != nil {
			return err
		}
		if dev == nil || dev.Deleted {
			return apperr.ErrNotFound("device not found (or deleted)")
		}

		emp, err := tx.EmployeeState(ctx, employeeNo)
		if err != nil {
			return err
		}
		if !emp.Exists || emp.Deleted {
			return apperr.ErrNotFound("employee not found (or deleted)")
		}
		employeeName = emp.Name

		open, err := tx.FindOpenForUpdate(ctx, assetNo)
		if err != nil {
			return err
		}
		if open != nil {
			return apperr.ErrConflict("asset is already on loan")
		}

		if s.cfg.SingleRentalPerEmployee {
			held, err := tx.FindOpenByEmployeeForUpdate(ctx, employeeNo)
			if err != nil {
				return err
			}
			if held != nil {
				return apperr.ErrConflict("employee already has an open rental")
			}
		}

		if err := tx.InsertRental(ctx, rec); err != nil {
			// open_asset一意制約に負けた側もCONFLICTで返す
			return apperr.FromMySQL(err, "asset is already on loan", "unknown asset or employee")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp := s.buildResponse(rec, &employeeName)
	return &resp, nil
}

// 返却。保持者本人のみ。未貸出はNOT_FOUND、他人の貸出はFORBIDDEN（区別して返す）。
func (s *Service) Return(ctx context.Context, req ReturnRequest) (*RentalResponse, error) {
	assetNo := strings.TrimSpace(req.AssetNo)
	employeeNo := strings.TrimSpace(req.EmployeeNo)
	if assetNo == "" {
		return nil, apperr.ErrInvalid("asset_no is required")
	}
	if employeeNo == "" {
		return nil, apperr.ErrInvalid("employee_no is required")
	}

	now := s.clock.Now()
	var rec *Rental

	err := s.store.InTx(ctx, func(ctx context.Context, tx LedgerTx) error {
		open, err := tx.FindOpenForUpdate(ctx, assetNo)
		if err != nil {
			return err
		}
		if open == nil {
			return apperr.ErrNotFound("no open rental for this asset")
		}
		if open.EmployeeNo != employeeNo {
			// 状態は一切変えない
			return apperr.ErrForbidden("rental is held by another employee")
		}

		n, err := tx.CloseRental(ctx, open.RentalID, now)
		if err != nil {
			return err
		}
		if n == 0 {
			// 並行返却に負けた側
			return apperr.ErrNotFound("no open rental for this asset")
		}
		open.ReturnedAt = sql.NullTime{Time: now, Valid: true}
		open.InUse = false
		rec = open
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp := s.buildResponse(rec, nil)
	return &resp, nil
}

// 自分の（最新の）貸出を返す。マイページの「返却」ボタン用。
func (s *Service) ReturnMine(ctx context.Context, employeeNo string) (*RentalResponse, error) {
	emp := strings.TrimSpace(employeeNo)
	if emp == "" {
		return nil, apperr.ErrInvalid("employee_no is required")
	}

	now := s.clock.Now()
	var rec *Rental

	err := s.store.InTx(ctx, func(ctx context.Context, tx LedgerTx) error {
		open, err := tx.FindOpenByEmployeeForUpdate(ctx, emp)
		if err != nil {
			return err
		}
		if open == nil {
			return apperr.ErrNotFound("no open rental for this employee")
		}
		n, err := tx.CloseRental(ctx, open.RentalID, now)
		if err != nil {
			return err
		}
		if n == 0 {
			return apperr.ErrNotFound("no open rental for this employee")
		}
		open.ReturnedAt = sql.NullTime{Time: now, Valid: true}
		open.InUse = false
		rec = open
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp := s.buildResponse(rec, nil)
	return &resp, nil
}

// 現在の保持者。空きなら (nil, nil)。
func (s *Service) CurrentHolder(ctx context.Context, assetNo string) (*RentalResponse, error) {
	asset := strings.TrimSpace(assetNo)
	if asset == "" {
		return nil, apperr.ErrInvalid("asset_no is required")
	}
	row, err := s.store.FindOpen(ctx, asset)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	resp := s.buildResponse(&row.Rental, &row.EmployeeName)
	return &resp, nil
}

// 自分の現在の貸出。無ければ (nil, nil)。
func (s *Service) MyCurrentRental(ctx context.Context, employeeNo string) (*RentalResponse, error) {
	emp := strings.TrimSpace(employeeNo)
	if emp == "" {
		return nil, apperr.ErrInvalid("employee_no is required")
	}
	row, err := s.store.FindOpenByEmployee(ctx, emp)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	resp := s.buildResponse(&row.Rental, &row.EmployeeName)
	return &resp, nil
}

// 貸出状況一覧（未削除の全機器、資産番号順）
func (s *Service) ListAll(ctx context.Context, f StatusFilter) ([]AssetStatusResponse, error) {
	rows, err := s.store.ListStatuses(ctx, f)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	out := []AssetStatusResponse{}
	for i := range rows {
		out = append(out, buildStatusResponse(&rows[i], now))
	}
	return out, nil
}

// AssetDetailResponse は詳細モーダル用：機器属性＋現況
type AssetDetailResponse struct {
	AssetStatusResponse
	MemoryGB   *int       `json:"memory_gb,omitempty"`
	StorageGB  *int       `json:"storage_gb,omitempty"`
	GPU        *string    `json:"gpu,omitempty"`
	Remarks    *string    `json:"remarks,omitempty"`
	LeaseStart *time.Time `json:"lease_start,omitempty"`
	LeaseEnd   *time.Time `json:"lease_end,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (s *Service) AssetDetail(ctx context.Context, assetNo string) (*AssetDetailResponse, error) {
	asset := strings.TrimSpace(assetNo)
	if asset == "" {
		return nil, apperr.ErrInvalid("asset_no is required")
	}
	row, err := s.store.AssetDetail(ctx, asset)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, apperr.ErrNotFound("device not found")
	}

	resp := AssetDetailResponse{
		AssetStatusResponse: buildStatusResponse(&row.AssetStatus, s.clock.Now()),
		CreatedAt:           row.CreatedAt,
	}
	if row.MemoryGB.Valid {
		v := int(row.MemoryGB.Int32)
		resp.MemoryGB = &v
	}
	if row.StorageGB.Valid {
		v := int(row.StorageGB.Int32)
		resp.StorageGB = &v
	}
	if row.GPU.Valid {
		v := row.GPU.String
		resp.GPU = &v
	}
	if row.Remarks.Valid {
		v := row.Remarks.String
		resp.Remarks = &v
	}
	if row.LeaseStart.Valid {
		v := row.LeaseStart.Time
		resp.LeaseStart = &v
	}
	if row.LeaseEnd.Valid {
		v := row.LeaseEnd.Time
		resp.LeaseEnd = &v
	}
	return &resp, nil
}

// 履歴一覧（監査用イベントログ）
func (s *Service) History(ctx context.Context, f HistoryFilter, p Page) (*HistoryListResponse, error) {
	rows, total, err := s.store.ListHistory(ctx, f, p)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	items := []HistoryResponse{}
	for i := range rows {
		h := HistoryResponse{
			RentalID:     rows[i].RentalID,
			RentalULID:   rows[i].RentalULID,
			AssetNo:      rows[i].AssetNo,
			EmployeeNo:   rows[i].EmployeeNo,
			EmployeeName: rows[i].EmployeeName,
			RentedAt:     rows[i].RentedAt,
			InUse:        rows[i].InUse,
			Overdue:      isOverdue(rows[i].DueOn, rows[i].ReturnedAt, now),
		}
		if rows[i].DueOn.Valid {
			v := rows[i].DueOn.Time
			h.DueOn = &v
		}
		if rows[i].ReturnedAt.Valid {
			v := rows[i].ReturnedAt.Time
			h.ReturnedAt = &v
		}
		items = append(items, h)
	}
	return &HistoryListResponse{Items: items, Total: total}, nil
}

// ---------- helpers ----------

// 期限超過は読み取り時の導出値。保存はしない。
func isOverdue(due, returned sql.NullTime, now time.Time) bool {
	if returned.Valid {
		return false
	}
	return due.Valid && due.Time.Before(now)
}

func (s *Service) buildResponse(r *Rental, name *string) RentalResponse {
	resp := RentalResponse{
		RentalID:     r.RentalID,
		RentalULID:   r.RentalULID,
		AssetNo:      r.AssetNo,
		EmployeeNo:   r.EmployeeNo,
		EmployeeName: name,
		RentedAt:     r.RentedAt,
		InUse:        r.InUse,
		Overdue:      isOverdue(r.DueOn, r.ReturnedAt, s.clock.Now()),
	}
	if r.DueOn.Valid {
		v := r.DueOn.Time
		resp.DueOn = &v
	}
	if r.ReturnedAt.Valid {
		v := r.ReturnedAt.Time
		resp.ReturnedAt = &v
	}
	return resp
}

func buildStatusResponse(st *AssetStatus, now time.Time) AssetStatusResponse {
	resp := AssetStatusResponse{
		AssetNo:    st.AssetNo,
		Maker:      st.Maker,
		BrokenFlag: st.BrokenFlag,
		IsFree:     !st.RentalULID.Valid,
	}
	if st.OS.Valid {
		v := st.OS.String
		resp.OS = &v
	}
	if st.Location.Valid {
		v := st.Location.String
		resp.Location = &v
	}
	if st.EmployeeNo.Valid {
		v := st.EmployeeNo.String
		resp.EmployeeNo = &v
	}
	if st.EmployeeName.Valid {
		v := st.EmployeeName.String
		resp.EmployeeName = &v
	}
	if st.RentedAt.Valid {
		v := st.RentedAt.Time
		resp.RentedAt = &v
	}
	if st.DueOn.Valid {
		v := st.DueOn.Time
		resp.DueOn = &v
		resp.Overdue = !resp.IsFree && v.Before(now)
	}
	// 空きのときだけ直近の利用者を出す
	if resp.IsFree {
		if st.LastEmployeeNo.Valid {
			v := st.LastEmployeeNo.String
			resp.LastEmployeeNo = &v
		}
		if st.LastEmployeeName.Valid {
			v := st.LastEmployeeName.String
			resp.LastEmployeeName = &v
		}
		if st.LastReturnedAt.Valid {
			v := st.LastReturnedAt.Time
			resp.LastReturnedAt = &v
		}
	}
	return resp
}
