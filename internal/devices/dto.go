package devices

import "time"

// ===== Requests =====

type CreateDeviceRequest struct {
	AssetNo    string  `json:"asset_no" binding:"required"`
	Maker      string  `json:"maker" binding:"required"`
	OS         *string `json:"os,omitempty"`
	MemoryGB   *int    `json:"memory_gb,omitempty"`
	StorageGB  *int    `json:"storage_gb,omitempty"`
	GPU        *string `json:"gpu,omitempty"`
	Location   *string `json:"location,omitempty"`
	BrokenFlag bool    `json:"broken_flag"`
	// "2006-01-02" 形式の文字列を想定（DATE）
	LeaseStart *string `json:"lease_start,omitempty"`
	LeaseEnd   *string `json:"lease_end,omitempty"`
	Remarks    *string `json:"remarks,omitempty"`
}

type UpdateDeviceRequest struct {
	Maker      *string `json:"maker,omitempty"`
	OS         *string `json:"os,omitempty"`
	MemoryGB   *int    `json:"memory_gb,omitempty"`
	StorageGB  *int    `json:"storage_gb,omitempty"`
	GPU        *string `json:"gpu,omitempty"`
	Location   *string `json:"location,omitempty"`
	BrokenFlag *bool   `json:"broken_flag,omitempty"`
	LeaseStart *string `json:"lease_start,omitempty"`
	LeaseEnd   *string `json:"lease_end,omitempty"`
	Remarks    *string `json:"remarks,omitempty"`
}

// ===== Responses =====

type DeviceResponse struct {
	AssetNo     string     `json:"asset_no"`
	Maker       string     `json:"maker"`
	OS          *string    `json:"os,omitempty"`
	MemoryGB    *int       `json:"memory_gb,omitempty"`
	StorageGB   *int       `json:"storage_gb,omitempty"`
	GPU         *string    `json:"gpu,omitempty"`
	Location    *string    `json:"location,omitempty"`
	BrokenFlag  bool       `json:"broken_flag"`
	LeaseStart  *time.Time `json:"lease_start,omitempty"`
	LeaseEnd    *time.Time `json:"lease_end,omitempty"`
	Remarks     *string    `json:"remarks,omitempty"`
	DeletedFlag bool       `json:"deleted_flag"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
