package rentals

import (
	"context"

	"ARMS-backend/internal/platform/auth"
)

// AuthAdapter は auth.RentalSource を実装する。
// 依存は rentals → auth の一方向に固定する。
type AuthAdapter struct{ svc *Service }

func NewAuthAdapter(svc *Service) *AuthAdapter { return &AuthAdapter{svc: svc} }

func (a *AuthAdapter) MyCurrentRental(ctx context.Context, employeeNo string) (*auth.RentalInfo, error) {
	res, err := a.svc.MyCurrentRental(ctx, employeeNo)
	if err != nil {
		return nil, err
	}
	return toAuthRentalInfo(res), nil
}

// asset_no 省略時は本人の貸出中1件を返却する（マイページは資産番号を知らなくてよい）。
// 指定時は保持者チェック込みの通常返却。
func (a *AuthAdapter) ReturnMine(ctx context.Context, employeeNo, assetNo string) (*auth.RentalInfo, error) {
	var (
		res *RentalResponse
		err error
	)
	if assetNo == "" {
		res, err = a.svc.ReturnMine(ctx, employeeNo)
	} else {
		res, err = a.svc.Return(ctx, ReturnRequest{AssetNo: assetNo, EmployeeNo: employeeNo})
	}
	if err != nil {
		return nil, err
	}
	return toAuthRentalInfo(res), nil
}

func toAuthRentalInfo(r *RentalResponse) *auth.RentalInfo {
	if r == nil {
		return nil
	}
	info := &auth.RentalInfo{
		RentalULID: r.RentalULID,
		AssetNo:    r.AssetNo,
		RentedAt:   r.RentedAt,
		ReturnedAt: r.ReturnedAt,
		Overdue:    r.Overdue,
	}
	if r.DueOn != nil {
		info.DueOn = *r.DueOn
	}
	return info
}
