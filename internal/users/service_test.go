package users

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	mysql "github.com/go-sql-driver/mysql"

	"ARMS-backend/internal/platform/apperr"
)

// ── モック ──

type mockUserStore struct {
	users     map[string]*User
	insertErr error
}

func newMockUserStore() *mockUserStore { return &mockUserStore{users: map[string]*User{}} }

func (m *mockUserStore) Insert(_ context.Context, u *User) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	if _, ok := m.users[u.EmployeeNo]; ok {
		return &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}
	}
	cp := *u
	cp.RegisteredAt = time.Now()
	cp.UpdatedAt = cp.RegisteredAt
	m.users[u.EmployeeNo] = &cp
	return nil
}

func (m *mockUserStore) GetByEmployeeNo(_ context.Context, employeeNo string) (*User, error) {
	u, ok := m.users[employeeNo]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserStore) List(_ context.Context, includeDeleted bool, keyword string) ([]User, error) {
	out := []User{}
	for _, u := range m.users {
		if u.DeletedFlag && !includeDeleted {
			continue
		}
		if keyword != "" && !strings.Contains(u.EmployeeNo, keyword) && !strings.Contains(u.Name, keyword) {
			continue
		}
		out = append(out, *u)
	}
	return out, nil
}

func (m *mockUserStore) Update(_ context.Context, employeeNo string, in UpdateUserRequest, retiredAt sql.NullTime) (int64, error) {
	u, ok := m.users[employeeNo]
	if !ok || u.DeletedFlag {
		return 0, nil
	}
	if in.Name != nil {
		u.Name = *in.Name
	}
	if in.Department != nil {
		u.Department = sql.NullString{String: *in.Department, Valid: true}
	}
	if in.AccountLevel != nil {
		u.AccountLevel = *in.AccountLevel
	}
	if in.RetiredAt != nil {
		u.RetiredAt = retiredAt
	}
	return 1, nil
}

func (m *mockUserStore) SoftDelete(_ context.Context, employeeNo string) (int64, error) {
	u, ok := m.users[employeeNo]
	if !ok || u.DeletedFlag {
		return 0, nil
	}
	u.DeletedFlag = true
	return 1, nil
}

func (m *mockUserStore) State(_ context.Context, employeeNo string) (UserState, error) {
	u, ok := m.users[employeeNo]
	if !ok {
		return UserState{}, nil
	}
	return UserState{Exists: true, Deleted: u.DeletedFlag, Name: u.Name, AccountLevel: u.AccountLevel}, nil
}

func wantUserCode(t *testing.T, err error, code apperr.Code) {
	t.Helper()
	var api *apperr.APIError
	if !errors.As(err, &api) || api.Code != code {
		t.Fatalf("want %s, got %v", code, err)
	}
}

// ── Create ──

func TestCreateUser_Defaults(t *testing.T) {
	svc := NewServiceWithStore(newMockUserStore())

	res, err := svc.Create(context.Background(), CreateUserRequest{EmployeeNo: "E001", Name: "山田太郎"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if res.AccountLevel != LevelUser {
		t.Errorf("account_level = %q, want user", res.AccountLevel)
	}
}

func TestCreateUser_Validation(t *testing.T) {
	svc := NewServiceWithStore(newMockUserStore())

	_, err := svc.Create(context.Background(), CreateUserRequest{EmployeeNo: " ", Name: "x"})
	wantUserCode(t, err, apperr.CodeInvalidArgument)

	_, err = svc.Create(context.Background(), CreateUserRequest{EmployeeNo: "E001", Name: ""})
	wantUserCode(t, err, apperr.CodeInvalidArgument)

	bad := 9
	_, err = svc.Create(context.Background(), CreateUserRequest{EmployeeNo: "E001", Name: "x", Gender: &bad})
	wantUserCode(t, err, apperr.CodeInvalidArgument)

	lvl := "root"
	_, err = svc.Create(context.Background(), CreateUserRequest{EmployeeNo: "E001", Name: "x", AccountLevel: &lvl})
	wantUserCode(t, err, apperr.CodeInvalidArgument)
}

func TestCreateUser_Duplicate(t *testing.T) {
	svc := NewServiceWithStore(newMockUserStore())

	if _, err := svc.Create(context.Background(), CreateUserRequest{EmployeeNo: "E001", Name: "山田太郎"}); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	_, err := svc.Create(context.Background(), CreateUserRequest{EmployeeNo: "E001", Name: "別人"})
	wantUserCode(t, err, apperr.CodeConflict)
}

// ── Get / Update / Delete ──

func TestGetUser_NotFound(t *testing.T) {
	svc := NewServiceWithStore(newMockUserStore())

	_, err := svc.Get(context.Background(), "NOPE")
	wantUserCode(t, err, apperr.CodeNotFound)
}

func TestUpdateUser_RetiredAt(t *testing.T) {
	m := newMockUserStore()
	svc := NewServiceWithStore(m)
	if _, err := svc.Create(context.Background(), CreateUserRequest{EmployeeNo: "E001", Name: "山田太郎"}); err != nil {
		t.Fatal(err)
	}

	d := "2025-03-31"
	res, err := svc.Update(context.Background(), "E001", UpdateUserRequest{RetiredAt: &d})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	want := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	if res.RetiredAt == nil || !res.RetiredAt.Equal(want) {
		t.Errorf("retired_at = %v", res.RetiredAt)
	}

	bad := "31/03/2025"
	_, err = svc.Update(context.Background(), "E001", UpdateUserRequest{RetiredAt: &bad})
	wantUserCode(t, err, apperr.CodeInvalidArgument)
}

func TestDeleteUser_SoftDelete(t *testing.T) {
	m := newMockUserStore()
	svc := NewServiceWithStore(m)
	if _, err := svc.Create(context.Background(), CreateUserRequest{EmployeeNo: "E001", Name: "山田太郎"}); err != nil {
		t.Fatal(err)
	}

	if err := svc.Delete(context.Background(), "E001"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	// 行は残る（論理削除）。State は Deleted=true を返す。
	st, err := svc.State(context.Background(), "E001")
	if err != nil {
		t.Fatal(err)
	}
	if !st.Exists || !st.Deleted {
		t.Errorf("state = %+v", st)
	}

	// 二重削除は NOT_FOUND
	err = svc.Delete(context.Background(), "E001")
	wantUserCode(t, err, apperr.CodeNotFound)
}

func TestListUsers_ExcludesDeleted(t *testing.T) {
	m := newMockUserStore()
	svc := NewServiceWithStore(m)
	for _, e := range []string{"E001", "E002"} {
		if _, err := svc.Create(context.Background(), CreateUserRequest{EmployeeNo: e, Name: "社員" + e}); err != nil {
			t.Fatal(err)
		}
	}
	if err := svc.Delete(context.Background(), "E002"); err != nil {
		t.Fatal(err)
	}

	list, err := svc.List(context.Background(), false, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].EmployeeNo != "E001" {
		t.Errorf("list = %+v", list)
	}

	all, err := svc.List(context.Background(), true, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("all = %+v", all)
	}
}
