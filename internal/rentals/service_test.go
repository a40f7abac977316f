package rentals

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	mysql "github.com/go-sql-driver/mysql"

	"ARMS-backend/internal/platform/apperr"
	"ARMS-backend/internal/platform/db"
)

// ── テスト用モック ──

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type seqIDGen struct{ n int }

func (g *seqIDGen) NewULID(time.Time) string {
	g.n++
	return fmt.Sprintf("01TESTULID%016d", g.n)
}

// mockLedger は LedgerStore と LedgerTx を同時に実装するインメモリ台帳。
// トランザクションの境界は再現しない（ロック競合のテストは別途エラー注入で行う）。
type mockLedger struct {
	devices   map[string]DeviceState
	employees map[string]EmployeeState
	rentals   []*Rental
	nextID    int64

	insertErr error // InsertRental に注入するエラー
}

func newMockLedger() *mockLedger {
	return &mockLedger{
		devices:   map[string]DeviceState{},
		employees: map[string]EmployeeState{},
		nextID:    1,
	}
}

func (m *mockLedger) InTx(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error {
	return fn(ctx, m)
}

func (m *mockLedger) LockDevice(_ context.Context, assetNo string) (*DeviceState, error) {
	st, ok := m.devices[assetNo]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (m *mockLedger) EmployeeState(_ context.Context, employeeNo string) (EmployeeState, error) {
	return m.employees[employeeNo], nil
}

func (m *mockLedger) openFor(pred func(*Rental) bool) *Rental {
	for _, r := range m.rentals {
		if !r.ReturnedAt.Valid && pred(r) {
			return r
		}
	}
	return nil
}

func (m *mockLedger) FindOpenForUpdate(_ context.Context, assetNo string) (*Rental, error) {
	return m.openFor(func(r *Rental) bool { return r.AssetNo == assetNo }), nil
}

func (m *mockLedger) FindOpenByEmployeeForUpdate(_ context.Context, employeeNo string) (*Rental, error) {
	return m.openFor(func(r *Rental) bool { return r.EmployeeNo == employeeNo }), nil
}

func (m *mockLedger) InsertRental(_ context.Context, r *Rental) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	r.RentalID = m.nextID
	m.nextID++
	cp := *r
	m.rentals = append(m.rentals, &cp)
	return nil
}

func (m *mockLedger) CloseRental(_ context.Context, rentalID int64, returnedAt time.Time) (int64, error) {
	for _, r := range m.rentals {
		if r.RentalID == rentalID && !r.ReturnedAt.Valid {
			r.ReturnedAt = sql.NullTime{Time: returnedAt, Valid: true}
			r.InUse = false
			return 1, nil
		}
	}
	return 0, nil
}

func (m *mockLedger) FindOpen(_ context.Context, assetNo string) (*openRow, error) {
	r := m.openFor(func(r *Rental) bool { return r.AssetNo == assetNo })
	if r == nil {
		return nil, nil
	}
	return &openRow{Rental: *r, EmployeeName: m.employees[r.EmployeeNo].Name}, nil
}

func (m *mockLedger) FindOpenByEmployee(_ context.Context, employeeNo string) (*openRow, error) {
	r := m.openFor(func(r *Rental) bool { return r.EmployeeNo == employeeNo })
	if r == nil {
		return nil, nil
	}
	return &openRow{Rental: *r, EmployeeName: m.employees[r.EmployeeNo].Name}, nil
}

func (m *mockLedger) ListStatuses(context.Context, StatusFilter) ([]AssetStatus, error) {
	return nil, nil
}

func (m *mockLedger) AssetDetail(context.Context, string) (*AssetDetailRow, error) {
	return nil, nil
}

func (m *mockLedger) ListHistory(context.Context, HistoryFilter, Page) ([]historyRow, int64, error) {
	return nil, 0, nil
}

var testNow = time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)

func newTestService(m *mockLedger, cfg db.RentalConfig) *Service {
	return NewServiceWithStore(m, cfg, fixedClock{t: testNow}, &seqIDGen{})
}

func seed(m *mockLedger) {
	m.devices["PC-001"] = DeviceState{}
	m.devices["PC-DEL"] = DeviceState{Deleted: true}
	m.employees["E001"] = EmployeeState{Exists: true, Name: "山田太郎"}
	m.employees["E002"] = EmployeeState{Exists: true, Name: "佐藤花子"}
	m.employees["E-DEL"] = EmployeeState{Exists: true, Deleted: true, Name: "退職済"}
}

func wantCode(t *testing.T, err error, code apperr.Code) {
	t.Helper()
	var api *apperr.APIError
	if !errors.As(err, &api) {
		t.Fatalf("want APIError with code %s, got %v", code, err)
	}
	if api.Code != code {
		t.Fatalf("want code %s, got %s (%s)", code, api.Code, api.Message)
	}
}

// ── Rent ──

func TestRent_Success(t *testing.T) {
	m := newMockLedger()
	seed(m)
	svc := newTestService(m, db.RentalConfig{DefaultDueDays: 7})

	res, err := svc.Rent(context.Background(), RentRequest{AssetNo: "PC-001", EmployeeNo: "E001"})
	if err != nil {
		t.Fatalf("Rent: %v", err)
	}
	if !res.InUse {
		t.Error("rental should be in use")
	}
	if res.RentalULID == "" {
		t.Error("rental_ulid should be set")
	}
	if res.DueOn == nil || !res.DueOn.Equal(testNow.AddDate(0, 0, 7)) {
		t.Errorf("due_on should default to rented_at+7d, got %v", res.DueOn)
	}
	if res.EmployeeName == nil || *res.EmployeeName != "山田太郎" {
		t.Errorf("employee_name mismatch: %v", res.EmployeeName)
	}
}

func TestRent_ExplicitDueOn(t *testing.T) {
	m := newMockLedger()
	seed(m)
	svc := newTestService(m, db.RentalConfig{DefaultDueDays: 7})

	due := "2025-05-10"
	res, err := svc.Rent(context.Background(), RentRequest{AssetNo: "PC-001", EmployeeNo: "E001", DueOn: &due})
	if err != nil {
		t.Fatalf("Rent: %v", err)
	}
	want := time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC)
	if res.DueOn == nil || !res.DueOn.Equal(want) {
		t.Errorf("due_on = %v, want %v", res.DueOn, want)
	}
}

func TestRent_InvalidDueOn(t *testing.T) {
	m := newMockLedger()
	seed(m)
	svc := newTestService(m, db.RentalConfig{DefaultDueDays: 7})

	due := "2025/05/10"
	_, err := svc.Rent(context.Background(), RentRequest{AssetNo: "PC-001", EmployeeNo: "E001", DueOn: &due})
	wantCode(t, err, apperr.CodeInvalidArgument)
}

func TestRent_UnknownAsset(t *testing.T) {
	m := newMockLedger()
	seed(m)
	svc := newTestService(m, db.RentalConfig{DefaultDueDays: 7})

	_, err := svc.Rent(context.Background(), RentRequest{AssetNo: "NOPE", EmployeeNo: "E001"})
	wantCode(t, err, apperr.CodeNotFound)
}

func TestRent_DeletedAsset(t *testing.T) {
	m := newMockLedger()
	seed(m)
	svc := newTestService(m, db.RentalConfig{DefaultDueDays: 7})

	_, err := svc.Rent(context.Background(), RentRequest{AssetNo: "PC-DEL", EmployeeNo: "E001"})
	wantCode(t, err, apperr.CodeNotFound)
}

func TestRent_DeletedEmployee(t *testing.T) {
	m := newMockLedger()
	seed(m)
	svc := newTestService(m, db.RentalConfig{DefaultDueDays: 7})

	_, err := svc.Rent(context.Background(), RentRequest{AssetNo: "PC-001", EmployeeNo: "E-DEL"})
	wantCode(t, err, apperr.CodeNotFound)
}

func TestRent_AlreadyOnLoan(t *testing.T) {
	m := newMockLedger()
	seed(m)
	svc := newTestService(m, db.RentalConfig{DefaultDueDays: 7})

	if _, err := svc.Rent(context.Background(), RentRequest{AssetNo: "PC-001", EmployeeNo: "E001"}); err != nil {
		t.Fatalf("first Rent: %v", err)
	}
	_, err := svc.Rent(context.Background(), RentRequest{AssetNo: "PC-001", EmployeeNo: "E002"})
	wantCode(t, err, apperr.CodeConflict)
}

// ユニーク制約(1062)に負けた側もCONFLICTになる
func TestRent_RaceLoserDuplicateKey(t *testing.T) {
	m := newMockLedger()
	seed(m)
	m.insertErr = &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}
	svc := newTestService(m, db.RentalConfig{DefaultDueDays: 7})

	_, err := svc.Rent(context.Background(), RentRequest{AssetNo: "PC-001", EmployeeNo: "E001"})
	wantCode(t, err, apperr.CodeConflict)
}

func TestRent_SingleRentalPerEmployeePolicy(t *testing.T) {
	m := newMockLedger()
	seed(m)
	m.devices["PC-002"] = DeviceState{}
	svc := newTestService(m, db.RentalConfig{DefaultDueDays: 7, SingleRentalPerEmployee: true})

	if _, err := svc.Rent(context.Background(), RentRequest{AssetNo: "PC-001", EmployeeNo: "E001"}); err != nil {
		t.Fatalf("first Rent: %v", err)
	}
	_, err := svc.Rent(context.Background(), RentRequest{AssetNo: "PC-002", EmployeeNo: "E001"})
	wantCode(t, err, apperr.CodeConflict)

	// ポリシー無効なら2台目も借りられる
	svc2 := newTestService(m, db.RentalConfig{DefaultDueDays: 7})
	if _, err := svc2.Rent(context.Background(), RentRequest{AssetNo: "PC-002", EmployeeNo: "E001"}); err != nil {
		t.Fatalf("second Rent without policy: %v", err)
	}
}

func TestRent_MissingFields(t *testing.T) {
	svc := newTestService(newMockLedger(), db.RentalConfig{DefaultDueDays: 7})

	_, err := svc.Rent(context.Background(), RentRequest{AssetNo: "", EmployeeNo: "E001"})
	wantCode(t, err, apperr.CodeInvalidArgument)
	_, err = svc.Rent(context.Background(), RentRequest{AssetNo: "PC-001", EmployeeNo: "  "})
	wantCode(t, err, apperr.CodeInvalidArgument)
}

// ── Return ──

func rentOne(t *testing.T, svc *Service, asset, emp string) *RentalResponse {
	t.Helper()
	res, err := svc.Rent(context.Background(), RentRequest{AssetNo: asset, EmployeeNo: emp})
	if err != nil {
		t.Fatalf("Rent(%s,%s): %v", asset, emp, err)
	}
	return res
}

func TestReturn_ByHolder(t *testing.T) {
	m := newMockLedger()
	seed(m)
	svc := newTestService(m, db.RentalConfig{DefaultDueDays: 7})
	rentOne(t, svc, "PC-001", "E001")

	res, err := svc.Return(context.Background(), ReturnRequest{AssetNo: "PC-001", EmployeeNo: "E001"})
	if err != nil {
		t.Fatalf("Return: %v", err)
	}
	if res.ReturnedAt == nil || !res.ReturnedAt.Equal(testNow) {
		t.Errorf("returned_at = %v, want %v", res.ReturnedAt, testNow)
	}
	if res.InUse {
		t.Error("in_use should be false after return")
	}

	// 返却後は貸出中レコードがない
	open, err := svc.CurrentHolder(context.Background(), "PC-001")
	if err != nil {
		t.Fatalf("CurrentHolder: %v", err)
	}
	if open != nil {
		t.Error("asset should be free after return")
	}

	// 再度借りられる
	rentOne(t, svc, "PC-001", "E002")
}

func TestReturn_ByNonHolder(t *testing.T) {
	m := newMockLedger()
	seed(m)
	svc := newTestService(m, db.RentalConfig{DefaultDueDays: 7})
	rentOne(t, svc, "PC-001", "E001")

	_, err := svc.Return(context.Background(), ReturnRequest{AssetNo: "PC-001", EmployeeNo: "E002"})
	wantCode(t, err, apperr.CodeForbidden)

	// 状態が変わっていないこと
	open, err := svc.CurrentHolder(context.Background(), "PC-001")
	if err != nil {
		t.Fatalf("CurrentHolder: %v", err)
	}
	if open == nil || open.EmployeeNo != "E001" {
		t.Fatalf("holder should still be E001, got %+v", open)
	}
}

func TestReturn_NoOpenRental(t *testing.T) {
	m := newMockLedger()
	seed(m)
	svc := newTestService(m, db.RentalConfig{DefaultDueDays: 7})

	_, err := svc.Return(context.Background(), ReturnRequest{AssetNo: "PC-001", EmployeeNo: "E001"})
	wantCode(t, err, apperr.CodeNotFound)
}

func TestReturnMine(t *testing.T) {
	m := newMockLedger()
	seed(m)
	svc := newTestService(m, db.RentalConfig{DefaultDueDays: 7})
	rentOne(t, svc, "PC-001", "E001")

	res, err := svc.ReturnMine(context.Background(), "E001")
	if err != nil {
		t.Fatalf("ReturnMine: %v", err)
	}
	if res.ReturnedAt == nil {
		t.Error("returned_at should be set")
	}

	_, err = svc.ReturnMine(context.Background(), "E001")
	wantCode(t, err, apperr.CodeNotFound)
}

// ── 照会系 ──

func TestCurrentHolder_FreeAsset(t *testing.T) {
	m := newMockLedger()
	seed(m)
	svc := newTestService(m, db.RentalConfig{DefaultDueDays: 7})

	res, err := svc.CurrentHolder(context.Background(), "PC-001")
	if err != nil {
		t.Fatalf("CurrentHolder: %v", err)
	}
	if res != nil {
		t.Errorf("free asset should yield nil, got %+v", res)
	}
}

func TestMyCurrentRental(t *testing.T) {
	m := newMockLedger()
	seed(m)
	svc := newTestService(m, db.RentalConfig{DefaultDueDays: 7})

	res, err := svc.MyCurrentRental(context.Background(), "E001")
	if err != nil {
		t.Fatalf("MyCurrentRental: %v", err)
	}
	if res != nil {
		t.Errorf("no rental yet, got %+v", res)
	}

	rentOne(t, svc, "PC-001", "E001")
	res, err = svc.MyCurrentRental(context.Background(), "E001")
	if err != nil {
		t.Fatalf("MyCurrentRental: %v", err)
	}
	if res == nil || res.AssetNo != "PC-001" {
		t.Fatalf("want PC-001, got %+v", res)
	}
}

// ── 期限超過の導出 ──

func TestIsOverdue(t *testing.T) {
	now := testNow
	past := sql.NullTime{Time: now.AddDate(0, 0, -1), Valid: true}
	future := sql.NullTime{Time: now.AddDate(0, 0, 1), Valid: true}
	none := sql.NullTime{}
	returned := sql.NullTime{Time: now, Valid: true}

	cases := []struct {
		name     string
		due, ret sql.NullTime
		want     bool
	}{
		{"past due, still open", past, none, true},
		{"future due, still open", future, none, false},
		{"no due date", none, none, false},
		{"past due but returned", past, returned, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isOverdue(tc.due, tc.ret, now); got != tc.want {
				t.Errorf("isOverdue = %v, want %v", got, tc.want)
			}
		})
	}
}

// ── ULID ──

func TestULIDGen_UniqueAndSortable(t *testing.T) {
	g := ulidGen{}
	a := g.NewULID(testNow)
	b := g.NewULID(testNow.Add(time.Second))
	if a == b {
		t.Fatal("ULIDs should be unique")
	}
	if len(a) != 26 || len(b) != 26 {
		t.Errorf("ULID length should be 26: %q %q", a, b)
	}
	if a >= b {
		t.Errorf("later ULID should sort after earlier: %q >= %q", a, b)
	}
}
