package users

import "time"

// ===== Requests =====

type CreateUserRequest struct {
	EmployeeNo  string  `json:"employee_no" binding:"required"`
	Name        string  `json:"name" binding:"required"`
	NameKana    *string `json:"name_kana,omitempty"`
	Department  *string `json:"department,omitempty"`
	TelNo       *string `json:"tel_no,omitempty"`
	MailAddress *string `json:"mail_address,omitempty"`
	Age         *int    `json:"age,omitempty"`
	Gender      *int    `json:"gender,omitempty"`
	Position    *string `json:"position,omitempty"`
	// 未指定なら "user"
	AccountLevel *string `json:"account_level,omitempty"`
}

type UpdateUserRequest struct {
	Name         *string `json:"name,omitempty"`
	NameKana     *string `json:"name_kana,omitempty"`
	Department   *string `json:"department,omitempty"`
	TelNo        *string `json:"tel_no,omitempty"`
	MailAddress  *string `json:"mail_address,omitempty"`
	Age          *int    `json:"age,omitempty"`
	Gender       *int    `json:"gender,omitempty"`
	Position     *string `json:"position,omitempty"`
	AccountLevel *string `json:"account_level,omitempty"`
	// "2006-01-02" 形式。退職日を立てる
	RetiredAt *string `json:"retired_at,omitempty"`
}

// ===== Responses =====

type UserResponse struct {
	EmployeeNo   string     `json:"employee_no"`
	Name         string     `json:"name"`
	NameKana     *string    `json:"name_kana,omitempty"`
	Department   *string    `json:"department,omitempty"`
	TelNo        *string    `json:"tel_no,omitempty"`
	MailAddress  *string    `json:"mail_address,omitempty"`
	Age          *int       `json:"age,omitempty"`
	Gender       *int       `json:"gender,omitempty"`
	Position     *string    `json:"position,omitempty"`
	AccountLevel string     `json:"account_level"`
	RegisteredAt time.Time  `json:"registered_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	RetiredAt    *time.Time `json:"retired_at,omitempty"`
	DeletedFlag  bool       `json:"deleted_flag"`
}
