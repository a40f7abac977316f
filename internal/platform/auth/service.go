package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"ARMS-backend/internal/platform/apperr"
)

// 認証失敗。存在しないIDとパスワード不一致を区別しない。
var ErrAuthFailed = errors.New("authentication failed")

type Config struct {
	Secret         []byte
	TokenTTL       time.Duration
	MinPasswordLen int
}

// 社員マスタの参照。users パッケージが実装する。
type UserDirectory interface {
	State(ctx context.Context, employeeNo string) (Identity, error)
}

// Identity は認証が必要とする社員情報の最小集合。
type Identity struct {
	Exists       bool
	Deleted      bool
	Name         string
	AccountLevel string
}

// 貸出状況の参照。rentals パッケージのアダプタが実装する。
type RentalSource interface {
	MyCurrentRental(ctx context.Context, employeeNo string) (*RentalInfo, error)
	ReturnMine(ctx context.Context, employeeNo, assetNo string) (*RentalInfo, error)
}

type RentalInfo struct {
	RentalULID string
	AssetNo    string
	RentedAt   time.Time
	DueOn      time.Time
	ReturnedAt *time.Time
	Overdue    bool
}

type Service struct {
	store    AccountStore
	users    UserDirectory
	rentals  RentalSource
	cfg      Config
	hashCost int
}

func NewService(conn *sql.DB, users UserDirectory, rentals RentalSource, cfg Config) *Service {
	return &Service{
		store:    NewStore(conn),
		users:    users,
		rentals:  rentals,
		cfg:      cfg,
		hashCost: bcrypt.DefaultCost,
	}
}

func NewServiceWithStore(store AccountStore, users UserDirectory, rentals RentalSource, cfg Config, hashCost int) *Service {
	return &Service{store: store, users: users, rentals: rentals, cfg: cfg, hashCost: hashCost}
}

// Login は認証に成功すると HS256 の JWT を返す。
// 削除済み社員はパスワードが合っていてもログインできない。
func (s *Service) Login(ctx context.Context, employeeNo, password string) (string, error) {
	cred, err := s.store.GetByEmployeeNo(ctx, employeeNo)
	if err != nil {
		return "", err
	}
	if cred == nil {
		return "", ErrAuthFailed
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		return "", ErrAuthFailed
	}

	id, err := s.users.State(ctx, employeeNo)
	if err != nil {
		return "", err
	}
	if !id.Exists || id.Deleted {
		return "", ErrAuthFailed
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  employeeNo,
		"role": id.AccountLevel,
		"exp":  time.Now().Add(s.cfg.TokenTTL).Unix(),
	})
	signed, err := token.SignedString(s.cfg.Secret)
	if err != nil {
		return "", err
	}
	return signed, nil
}

// SetPassword はパスワードの新規登録と上書きを兼ねる。
// 未設定の社員は誰でも登録できる（初回設定）。設定済みの上書きは
// 本人または管理者のトークンが必要。actorNo はトークンのsub（未認証なら空）。
func (s *Service) SetPassword(ctx context.Context, employeeNo, password, actorNo, actorRole string) error {
	if len(password) < s.cfg.MinPasswordLen {
		return apperr.ErrInvalid(fmt.Sprintf("password must be at least %d characters", s.cfg.MinPasswordLen))
	}

	id, err := s.users.State(ctx, employeeNo)
	if err != nil {
		return err
	}
	if !id.Exists || id.Deleted {
		return apperr.ErrNotFound("employee not found")
	}

	ok, err := s.store.Exists(ctx, employeeNo)
	if err != nil {
		return err
	}
	if ok && actorNo != employeeNo && actorRole != "admin" {
		return apperr.ErrForbidden("password is already set; log in to change it")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return err
	}
	if err := s.store.Upsert(ctx, employeeNo, string(hash)); err != nil {
		return err
	}
	return nil
}

// Exists はパスワード設定済みかどうかを返す。初回設定画面の分岐に使う。
func (s *Service) Exists(ctx context.Context, employeeNo string) (bool, error) {
	ok, err := s.store.Exists(ctx, employeeNo)
	if err != nil {
		return false, err
	}
	return ok, nil
}

type Me struct {
	EmployeeNo   string
	Name         string
	AccountLevel string
	Rental       *RentalInfo
}

// Me はログイン中の社員の情報と現在の貸出を返す。
func (s *Service) Me(ctx context.Context, employeeNo string) (*Me, error) {
	id, err := s.users.State(ctx, employeeNo)
	if err != nil {
		return nil, err
	}
	if !id.Exists || id.Deleted {
		return nil, apperr.ErrNotFound("employee not found")
	}

	rental, err := s.rentals.MyCurrentRental(ctx, employeeNo)
	if err != nil {
		return nil, err
	}
	return &Me{
		EmployeeNo:   employeeNo,
		Name:         id.Name,
		AccountLevel: id.AccountLevel,
		Rental:       rental,
	}, nil
}

// ReturnMine はログイン中の社員本人による返却。
func (s *Service) ReturnMine(ctx context.Context, employeeNo, assetNo string) (*RentalInfo, error) {
	return s.rentals.ReturnMine(ctx, employeeNo, assetNo)
}
