package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ARMS-backend/internal/platform/db"
)

// Credential は auth_users テーブルの1行。
// 社員マスタとは独立に存在する（未設定の社員もいる）。
type Credential struct {
	EmployeeNo   string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type AccountStore interface {
	GetByEmployeeNo(ctx context.Context, employeeNo string) (*Credential, error)
	Upsert(ctx context.Context, employeeNo, passwordHash string) error
	Exists(ctx context.Context, employeeNo string) (bool, error)
}

type Store struct{ db db.DBTX }

func NewStore(db db.DBTX) AccountStore { return &Store{db: db} }

// 見つからない場合は (nil, nil)
func (s *Store) GetByEmployeeNo(ctx context.Context, employeeNo string) (*Credential, error) {
	const q = `
	SELECT employee_no, password_hash, created_at, updated_at
	FROM auth_users
	WHERE employee_no = ?
	LIMIT 1`
	var c Credential
	err := s.db.QueryRowContext(ctx, q, employeeNo).Scan(
		&c.EmployeeNo, &c.PasswordHash, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// 登録/上書きの明示アクション。自動生成はしない。
func (s *Store) Upsert(ctx context.Context, employeeNo, passwordHash string) error {
	const q = `
	INSERT INTO auth_users (employee_no, password_hash)
	VALUES (?, ?)
	ON DUPLICATE KEY UPDATE password_hash = VALUES(password_hash), updated_at = NOW(6)`
	_, err := s.db.ExecContext(ctx, q, employeeNo, passwordHash)
	return err
}

func (s *Store) Exists(ctx context.Context, employeeNo string) (bool, error) {
	const q = `SELECT 1 FROM auth_users WHERE employee_no = ? LIMIT 1`
	var one int
	err := s.db.QueryRowContext(ctx, q, employeeNo).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
