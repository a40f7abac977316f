package rentals

import "time"

// ===== Requests =====

type RentRequest struct {
	AssetNo    string `json:"asset_no" binding:"required"`
	EmployeeNo string `json:"employee_no" binding:"required"`
	// "2006-01-02" 形式。未指定なら貸出日＋デフォルト日数
	DueOn *string `json:"due_on,omitempty"`
}

type ReturnRequest struct {
	AssetNo    string `json:"asset_no" binding:"required"`
	EmployeeNo string `json:"employee_no" binding:"required"`
}

// ===== Responses =====

type RentalResponse struct {
	RentalID     int64      `json:"rental_id"`
	RentalULID   string     `json:"rental_ulid"`
	AssetNo      string     `json:"asset_no"`
	EmployeeNo   string     `json:"employee_no"`
	EmployeeName *string    `json:"employee_name,omitempty"`
	RentedAt     time.Time  `json:"rented_at"`
	DueOn        *time.Time `json:"due_on,omitempty"`
	ReturnedAt   *time.Time `json:"returned_at,omitempty"`
	InUse        bool       `json:"in_use"`
	Overdue      bool       `json:"overdue"`
}

// 貸出状況一覧の1行。IsFree=true のときは Last* が直近の利用者（あれば）。
type AssetStatusResponse struct {
	AssetNo    string  `json:"asset_no"`
	Maker      string  `json:"maker"`
	OS         *string `json:"os,omitempty"`
	Location   *string `json:"location,omitempty"`
	BrokenFlag bool    `json:"broken_flag"`
	IsFree     bool    `json:"is_free"`

	EmployeeNo   *string    `json:"employee_no,omitempty"`
	EmployeeName *string    `json:"employee_name,omitempty"`
	RentedAt     *time.Time `json:"rented_at,omitempty"`
	DueOn        *time.Time `json:"due_on,omitempty"`
	Overdue      bool       `json:"overdue"`

	LastEmployeeNo   *string    `json:"last_employee_no,omitempty"`
	LastEmployeeName *string    `json:"last_employee_name,omitempty"`
	LastReturnedAt   *time.Time `json:"last_returned_at,omitempty"`
}

type HistoryResponse struct {
	RentalID     int64      `json:"rental_id"`
	RentalULID   string     `json:"rental_ulid"`
	AssetNo      string     `json:"asset_no"`
	EmployeeNo   string     `json:"employee_no"`
	EmployeeName string     `json:"employee_name"`
	RentedAt     time.Time  `json:"rented_at"`
	DueOn        *time.Time `json:"due_on,omitempty"`
	ReturnedAt   *time.Time `json:"returned_at,omitempty"`
	InUse        bool       `json:"in_use"`
	Overdue      bool       `json:"overdue"`
}

type HistoryListResponse struct {
	Items []HistoryResponse `json:"items"`
	Total int64             `json:"total"`
}
