package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"ARMS-backend/internal/platform/db"
)

type UserStore interface {
	Insert(ctx context.Context, u *User) error
	GetByEmployeeNo(ctx context.Context, employeeNo string) (*User, error)
	List(ctx context.Context, includeDeleted bool, keyword string) ([]User, error)
	Update(ctx context.Context, employeeNo string, in UpdateUserRequest, retiredAt sql.NullTime) (int64, error)
	SoftDelete(ctx context.Context, employeeNo string) (int64, error)
	State(ctx context.Context, employeeNo string) (UserState, error)
}

type Store struct{ db db.DBTX }

func NewStore(db db.DBTX) *Store { return &Store{db: db} }

const userCols = `employee_no, name, name_kana, department, tel_no, mail_address, age, gender,
	position, account_level, registered_at, updated_at, retired_at, deleted_flag`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var u User
	err := row.Scan(
		&u.EmployeeNo, &u.Name, &u.NameKana, &u.Department, &u.TelNo, &u.MailAddress,
		&u.Age, &u.Gender, &u.Position, &u.AccountLevel,
		&u.RegisteredAt, &u.UpdatedAt, &u.RetiredAt, &u.DeletedFlag,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) Insert(ctx context.Context, u *User) error {
	const q = `
	INSERT INTO users
	(employee_no, name, name_kana, department, tel_no, mail_address, age, gender,
	 position, account_level, deleted_flag)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`
	_, err := s.db.ExecContext(ctx, q,
		u.EmployeeNo, u.Name, u.NameKana, u.Department, u.TelNo, u.MailAddress,
		u.Age, u.Gender, u.Position, u.AccountLevel,
	)
	return err
}

// 見つからない場合は (nil, nil)
func (s *Store) GetByEmployeeNo(ctx context.Context, employeeNo string) (*User, error) {
	q := `SELECT ` + userCols + ` FROM users WHERE employee_no = ? LIMIT 1`
	u, err := scanUser(s.db.QueryRowContext(ctx, q, employeeNo))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Store) List(ctx context.Context, includeDeleted bool, keyword string) ([]User, error) {
	sb := strings.Builder{}
	sb.WriteString(`SELECT ` + userCols + ` FROM users WHERE 1=1`)
	args := []any{}
	if !includeDeleted {
		sb.WriteString(` AND deleted_flag = 0`)
	}
	if keyword != "" {
		sb.WriteString(` AND (employee_no LIKE ? OR name LIKE ? OR COALESCE(name_kana,'') LIKE ? OR COALESCE(department,'') LIKE ?)`)
		kw := "%" + keyword + "%"
		args = append(args, kw, kw, kw, kw)
	}
	sb.WriteString(` ORDER BY employee_no`)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *u)
	}
	return list, rows.Err()
}

func (s *Store) Update(ctx context.Context, employeeNo string, in UpdateUserRequest, retiredAt sql.NullTime) (int64, error) {
	sets := []string{}
	args := []any{}
	if in.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *in.Name)
	}
	if in.NameKana != nil {
		sets = append(sets, "name_kana = ?")
		args = append(args, *in.NameKana)
	}
	if in.Department != nil {
		sets = append(sets, "department = ?")
		args = append(args, *in.Department)
	}
	if in.TelNo != nil {
		sets = append(sets, "tel_no = ?")
		args = append(args, *in.TelNo)
	}
	if in.MailAddress != nil {
		sets = append(sets, "mail_address = ?")
		args = append(args, *in.MailAddress)
	}
	if in.Age != nil {
		sets = append(sets, "age = ?")
		args = append(args, *in.Age)
	}
	if in.Gender != nil {
		sets = append(sets, "gender = ?")
		args = append(args, *in.Gender)
	}
	if in.Position != nil {
		sets = append(sets, "position = ?")
		args = append(args, *in.Position)
	}
	if in.AccountLevel != nil {
		sets = append(sets, "account_level = ?")
		args = append(args, *in.AccountLevel)
	}
	if in.RetiredAt != nil {
		sets = append(sets, "retired_at = ?")
		args = append(args, retiredAt)
	}
	sets = append(sets, "updated_at = NOW(6)")
	args = append(args, employeeNo)

	q := fmt.Sprintf(`UPDATE users SET %s WHERE employee_no = ? AND deleted_flag = 0`, strings.Join(sets, ", "))
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// 論理削除のみ。貸出履歴から参照されるため物理削除はしない（FK違反を返すより安全）。
func (s *Store) SoftDelete(ctx context.Context, employeeNo string) (int64, error) {
	const q = `UPDATE users SET deleted_flag = 1, updated_at = NOW(6) WHERE employee_no = ? AND deleted_flag = 0`
	res, err := s.db.ExecContext(ctx, q, employeeNo)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// State は貸出台帳・認証が使う存在/削除チェック
func (s *Store) State(ctx context.Context, employeeNo string) (UserState, error) {
	const q = `SELECT name, account_level, deleted_flag FROM users WHERE employee_no = ? LIMIT 1`
	var st UserState
	err := s.db.QueryRowContext(ctx, q, employeeNo).Scan(&st.Name, &st.AccountLevel, &st.Deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return UserState{}, nil
	}
	if err != nil {
		return UserState{}, err
	}
	st.Exists = true
	return st, nil
}
