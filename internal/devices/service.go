package devices

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"ARMS-backend/internal/platform/apperr"
)

const dateLayout = "2006-01-02"

type Service struct {
	store DeviceStore
}

func NewService(conn *sql.DB) *Service {
	return &Service{store: NewStore(conn)}
}

func NewServiceWithStore(store DeviceStore) *Service {
	return &Service{store: store}
}

func (s *Service) Create(ctx context.Context, req CreateDeviceRequest) (*DeviceResponse, error) {
	assetNo := strings.TrimSpace(req.AssetNo)
	if assetNo == "" {
		return nil, apperr.ErrInvalid("asset_no is required")
	}
	if strings.TrimSpace(req.Maker) == "" {
		return nil, apperr.ErrInvalid("maker is required")
	}

	leaseStart, err := parseDate(req.LeaseStart)
	if err != nil {
		return nil, apperr.ErrInvalid("invalid lease_start format, expected YYYY-MM-DD")
	}
	leaseEnd, err := parseDate(req.LeaseEnd)
	if err != nil {
		return nil, apperr.ErrInvalid("invalid lease_end format, expected YYYY-MM-DD")
	}

	d := &Device{
		AssetNo:    assetNo,
		Maker:      strings.TrimSpace(req.Maker),
		OS:         toNullStr(req.OS),
		MemoryGB:   toNullInt(req.MemoryGB),
		StorageGB:  toNullInt(req.StorageGB),
		GPU:        toNullStr(req.GPU),
		Location:   toNullStr(req.Location),
		BrokenFlag: req.BrokenFlag,
		LeaseStart: leaseStart,
		LeaseEnd:   leaseEnd,
		Remarks:    toNullStr(req.Remarks),
	}

	if err := s.store.Insert(ctx, d); err != nil {
		return nil, apperr.FromMySQL(err, "asset_no already exists", "invalid reference")
	}
	return s.Get(ctx, assetNo)
}

func (s *Service) Get(ctx context.Context, assetNo string) (*DeviceResponse, error) {
	if strings.TrimSpace(assetNo) == "" {
		return nil, apperr.ErrInvalid("asset_no is required")
	}
	d, err := s.store.GetByAssetNo(ctx, strings.TrimSpace(assetNo))
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, apperr.ErrNotFound("device not found")
	}
	resp := buildDeviceResponse(d)
	return &resp, nil
}

func (s *Service) List(ctx context.Context, includeDeleted bool, keyword string) ([]DeviceResponse, error) {
	list, err := s.store.List(ctx, includeDeleted, strings.TrimSpace(keyword))
	if err != nil {
		return nil, err
	}
	out := []DeviceResponse{}
	for i := range list {
		out = append(out, buildDeviceResponse(&list[i]))
	}
	return out, nil
}

func (s *Service) Update(ctx context.Context, assetNo string, req UpdateDeviceRequest) (*DeviceResponse, error) {
	assetNo = strings.TrimSpace(assetNo)
	if assetNo == "" {
		return nil, apperr.ErrInvalid("asset_no is required")
	}
	leaseStart, err := parseDate(req.LeaseStart)
	if err != nil {
		return nil, apperr.ErrInvalid("invalid lease_start format, expected YYYY-MM-DD")
	}
	leaseEnd, err := parseDate(req.LeaseEnd)
	if err != nil {
		return nil, apperr.ErrInvalid("invalid lease_end format, expected YYYY-MM-DD")
	}

	n, err := s.store.Update(ctx, assetNo, req, leaseStart, leaseEnd)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// 不在または削除済み
		return nil, apperr.ErrNotFound("device not found or deleted")
	}
	return s.Get(ctx, assetNo)
}

func (s *Service) Delete(ctx context.Context, assetNo string) error {
	assetNo = strings.TrimSpace(assetNo)
	if assetNo == "" {
		return apperr.ErrInvalid("asset_no is required")
	}
	n, err := s.store.SoftDelete(ctx, assetNo)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.ErrNotFound("device not found or already deleted")
	}
	return nil
}

// ---------- helpers ----------

func parseDate(s *string) (sql.NullTime, error) {
	var nt sql.NullTime
	if s == nil || *s == "" {
		return nt, nil
	}
	t, err := time.Parse(dateLayout, *s)
	if err != nil {
		return nt, err
	}
	nt.Time, nt.Valid = t, true
	return nt, nil
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

func buildDeviceResponse(d *Device) DeviceResponse {
	resp := DeviceResponse{
		AssetNo:     d.AssetNo,
		Maker:       d.Maker,
		BrokenFlag:  d.BrokenFlag,
		DeletedFlag: d.DeletedFlag,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	if d.OS.Valid {
		v := d.OS.String
		resp.OS = &v
	}
	if d.MemoryGB.Valid {
		v := int(d.MemoryGB.Int32)
		resp.MemoryGB = &v
	}
	if d.StorageGB.Valid {
		v := int(d.StorageGB.Int32)
		resp.StorageGB = &v
	}
	if d.GPU.Valid {
		v := d.GPU.String
		resp.GPU = &v
	}
	if d.Location.Valid {
		v := d.Location.String
		resp.Location = &v
	}
	if d.LeaseStart.Valid {
		v := d.LeaseStart.Time
		resp.LeaseStart = &v
	}
	if d.LeaseEnd.Valid {
		v := d.LeaseEnd.Time
		resp.LeaseEnd = &v
	}
	if d.Remarks.Valid {
		v := d.Remarks.String
		resp.Remarks = &v
	}
	return resp
}
