package devices

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"ARMS-backend/internal/platform/db"
)

type DeviceStore interface {
	Insert(ctx context.Context, d *Device) error
	GetByAssetNo(ctx context.Context, assetNo string) (*Device, error)
	List(ctx context.Context, includeDeleted bool, keyword string) ([]Device, error)
	Update(ctx context.Context, assetNo string, in UpdateDeviceRequest, leaseStart, leaseEnd sql.NullTime) (int64, error)
	SoftDelete(ctx context.Context, assetNo string) (int64, error)
}

type Store struct{ db db.DBTX }

func NewStore(db db.DBTX) *Store { return &Store{db: db} }

const deviceCols = `asset_no, maker, os, memory_gb, storage_gb, gpu, location, broken_flag,
	lease_start, lease_end, remarks, deleted_flag, created_at, updated_at`

func scanDevice(row interface{ Scan(...any) error }) (*Device, error) {
	var d Device
	err := row.Scan(
		&d.AssetNo, &d.Maker, &d.OS, &d.MemoryGB, &d.StorageGB, &d.GPU, &d.Location,
		&d.BrokenFlag, &d.LeaseStart, &d.LeaseEnd, &d.Remarks, &d.DeletedFlag,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Store) Insert(ctx context.Context, d *Device) error {
	const q = `
	INSERT INTO devices
	(asset_no, maker, os, memory_gb, storage_gb, gpu, location, broken_flag,
	 lease_start, lease_end, remarks, deleted_flag)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`
	_, err := s.db.ExecContext(ctx, q,
		d.AssetNo, d.Maker, d.OS, d.MemoryGB, d.StorageGB, d.GPU, d.Location,
		d.BrokenFlag, d.LeaseStart, d.LeaseEnd, d.Remarks,
	)
	return err
}

// 見つからない場合は (nil, nil)
func (s *Store) GetByAssetNo(ctx context.Context, assetNo string) (*Device, error) {
	q := `SELECT ` + deviceCols + ` FROM devices WHERE asset_no = ? LIMIT 1`
	d, err := scanDevice(s.db.QueryRowContext(ctx, q, assetNo))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Store) List(ctx context.Context, includeDeleted bool, keyword string) ([]Device, error) {
	sb := strings.Builder{}
	sb.WriteString(`SELECT ` + deviceCols + ` FROM devices WHERE 1=1`)
	args := []any{}
	if !includeDeleted {
		sb.WriteString(` AND deleted_flag = 0`)
	}
	if keyword != "" {
		sb.WriteString(` AND (asset_no LIKE ? OR maker LIKE ? OR COALESCE(os,'') LIKE ? OR COALESCE(location,'') LIKE ?)`)
		kw := "%" + keyword + "%"
		args = append(args, kw, kw, kw, kw)
	}
	sb.WriteString(` ORDER BY asset_no`)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []Device{}
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *d)
	}
	return list, rows.Err()
}

func (s *Store) Update(ctx context.Context, assetNo string, in UpdateDeviceRequest, leaseStart, leaseEnd sql.NullTime) (int64, error) {
	// 動的アップデート（渡されたフィールドだけSETする）
	sets := []string{}
	args := []any{}
	if in.Maker != nil {
		sets = append(sets, "maker = ?")
		args = append(args, *in.Maker)
	}
	if in.OS != nil {
		sets = append(sets, "os = ?")
		args = append(args, *in.OS)
	}
	if in.MemoryGB != nil {
		sets = append(sets, "memory_gb = ?")
		args = append(args, *in.MemoryGB)
	}
	if in.StorageGB != nil {
		sets = append(sets, "storage_gb = ?")
		args = append(args, *in.StorageGB)
	}
	if in.GPU != nil {
		sets = append(sets, "gpu = ?")
		args = append(args, *in.GPU)
	}
	if in.Location != nil {
		sets = append(sets, "location = ?")
		args = append(args, *in.Location)
	}
	if in.BrokenFlag != nil {
		sets = append(sets, "broken_flag = ?")
		args = append(args, *in.BrokenFlag)
	}
	if in.LeaseStart != nil {
		sets = append(sets, "lease_start = ?")
		args = append(args, leaseStart)
	}
	if in.LeaseEnd != nil {
		sets = append(sets, "lease_end = ?")
		args = append(args, leaseEnd)
	}
	if in.Remarks != nil {
		sets = append(sets, "remarks = ?")
		args = append(args, *in.Remarks)
	}
	// 変更が無くても updated_at は進める
	sets = append(sets, "updated_at = NOW(6)")
	args = append(args, assetNo)

	q := fmt.Sprintf(`UPDATE devices SET %s WHERE asset_no = ? AND deleted_flag = 0`, strings.Join(sets, ", "))
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// 論理削除。貸出履歴との参照整合を守るため物理削除はしない。
func (s *Store) SoftDelete(ctx context.Context, assetNo string) (int64, error) {
	const q = `UPDATE devices SET deleted_flag = 1, updated_at = NOW(6) WHERE asset_no = ? AND deleted_flag = 0`
	res, err := s.db.ExecContext(ctx, q, assetNo)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
