package users

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"ARMS-backend/internal/platform/apperr"
)

const dateLayout = "2006-01-02"

type Service struct {
	store UserStore
}

func NewService(conn *sql.DB) *Service {
	return &Service{store: NewStore(conn)}
}

func NewServiceWithStore(store UserStore) *Service {
	return &Service{store: store}
}

// State は認証側から参照される。未登録なら Exists=false のゼロ値を返す。
func (s *Service) State(ctx context.Context, employeeNo string) (UserState, error) {
	return s.store.State(ctx, employeeNo)
}

func (s *Service) Create(ctx context.Context, req CreateUserRequest) (*UserResponse, error) {
	emp := strings.TrimSpace(req.EmployeeNo)
	if emp == "" {
		return nil, apperr.ErrInvalid("employee_no is required")
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, apperr.ErrInvalid("name is required")
	}
	if err := validateGender(req.Gender); err != nil {
		return nil, err
	}

	level := LevelUser
	if req.AccountLevel != nil && *req.AccountLevel != "" {
		if *req.AccountLevel != LevelAdmin && *req.AccountLevel != LevelUser {
			return nil, apperr.ErrInvalid("account_level must be admin or user")
		}
		level = *req.AccountLevel
	}

	u := &User{
		EmployeeNo:   emp,
		Name:         strings.TrimSpace(req.Name),
		NameKana:     toNullStr(req.NameKana),
		Department:   toNullStr(req.Department),
		TelNo:        toNullStr(req.TelNo),
		MailAddress:  toNullStr(req.MailAddress),
		Age:          toNullInt(req.Age),
		Gender:       toNullInt(req.Gender),
		Position:     toNullStr(req.Position),
		AccountLevel: level,
	}

	if err := s.store.Insert(ctx, u); err != nil {
		return nil, apperr.FromMySQL(err, "employee_no already exists", "invalid reference")
	}
	return s.Get(ctx, emp)
}

func (s *Service) Get(ctx context.Context, employeeNo string) (*UserResponse, error) {
	if strings.TrimSpace(employeeNo) == "" {
		return nil, apperr.ErrInvalid("employee_no is required")
	}
	u, err := s.store.GetByEmployeeNo(ctx, strings.TrimSpace(employeeNo))
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperr.ErrNotFound("user not found")
	}
	resp := buildUserResponse(u)
	return &resp, nil
}

func (s *Service) List(ctx context.Context, includeDeleted bool, keyword string) ([]UserResponse, error) {
	list, err := s.store.List(ctx, includeDeleted, strings.TrimSpace(keyword))
	if err != nil {
		return nil, err
	}
	out := []UserResponse{}
	for i := range list {
		out = append(out, buildUserResponse(&list[i]))
	}
	return out, nil
}

func (s *Service) Update(ctx context.Context, employeeNo string, req UpdateUserRequest) (*UserResponse, error) {
	emp := strings.TrimSpace(employeeNo)
	if emp == "" {
		return nil, apperr.ErrInvalid("employee_no is required")
	}
	if err := validateGender(req.Gender); err != nil {
		return nil, err
	}
	if req.AccountLevel != nil && *req.AccountLevel != LevelAdmin && *req.AccountLevel != LevelUser {
		return nil, apperr.ErrInvalid("account_level must be admin or user")
	}

	var retiredAt sql.NullTime
	if req.RetiredAt != nil && *req.RetiredAt != "" {
		t, err := time.Parse(dateLayout, *req.RetiredAt)
		if err != nil {
			return nil, apperr.ErrInvalid("invalid retired_at format, expected YYYY-MM-DD")
		}
		retiredAt.Time, retiredAt.Valid = t, true
	}

	n, err := s.store.Update(ctx, emp, req, retiredAt)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, apperr.ErrNotFound("user not found or deleted")
	}
	return s.Get(ctx, emp)
}

// 退職・整理は論理削除で扱う。履歴行は過去の社員を参照し続けてよい。
func (s *Service) Delete(ctx context.Context, employeeNo string) error {
	emp := strings.TrimSpace(employeeNo)
	if emp == "" {
		return apperr.ErrInvalid("employee_no is required")
	}
	n, err := s.store.SoftDelete(ctx, emp)
	if err != nil {
		// 物理削除に切り替えた場合のFK違反もCONFLICTへ寄せる
		return apperr.FromMySQL(err, "employee_no already exists", "user is referenced by rental history")
	}
	if n == 0 {
		return apperr.ErrNotFound("user not found or already deleted")
	}
	return nil
}

// ---------- helpers ----------

func validateGender(g *int) error {
	if g == nil {
		return nil
	}
	switch *g {
	case GenderMale, GenderFemale, GenderOther:
		return nil
	}
	return apperr.ErrInvalid("gender must be 0, 1 or 2")
}

func toNullStr(s *string) (ns sql.NullString) {
	if s != nil && strings.TrimSpace(*s) != "" {
		ns.Valid, ns.String = true, *s
	}
	return
}

func toNullInt(v *int) (ni sql.NullInt32) {
	if v != nil {
		ni.Valid, ni.Int32 = true, int32(*v)
	}
	return
}

func buildUserResponse(u *User) UserResponse {
	resp := UserResponse{
		EmployeeNo:   u.EmployeeNo,
		Name:         u.Name,
		AccountLevel: u.AccountLevel,
		RegisteredAt: u.RegisteredAt,
		UpdatedAt:    u.UpdatedAt,
		DeletedFlag:  u.DeletedFlag,
	}
	if u.NameKana.Valid {
		v := u.NameKana.String
		resp.NameKana = &v
	}
	if u.Department.Valid {
		v := u.Department.String
		resp.Department = &v
	}
	if u.TelNo.Valid {
		v := u.TelNo.String
		resp.TelNo = &v
	}
	if u.MailAddress.Valid {
		v := u.MailAddress.String
		resp.MailAddress = &v
	}
	if u.Age.Valid {
		v := int(u.Age.Int32)
		resp.Age = &v
	}
	if u.Gender.Valid {
		v := int(u.Gender.Int32)
		resp.Gender = &v
	}
	if u.Position.Valid {
		v := u.Position.String
		resp.Position = &v
	}
	if u.RetiredAt.Valid {
		v := u.RetiredAt.Time
		resp.RetiredAt = &v
	}
	return resp
}
