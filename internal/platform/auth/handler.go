package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ARMS-backend/internal/platform/apperr"
)

type Handler struct{ svc *Service }

// authRequired はログイン後のマイページ系ルートに掛ける。
// optionalAuth は /auth/password 用（初回設定は未ログインで通すが、上書きは本人性を見る）。
func RegisterRoutes(r gin.IRoutes, svc *Service, authRequired, optionalAuth gin.HandlerFunc) {
	h := &Handler{svc: svc}

	r.POST("/auth/login", h.Login)
	r.GET("/auth/exists", h.Exists)
	r.POST("/auth/password", optionalAuth, h.SetPassword)

	r.GET("/auth/me", authRequired, h.Me)
	r.POST("/auth/return", authRequired, h.ReturnMine)
}

type LoginRequest struct {
	EmployeeNo string `json:"employee_no" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}

	token, err := h.svc.Login(c.Request.Context(), req.EmployeeNo, req.Password)
	if err != nil {
		if errors.Is(err, ErrAuthFailed) {
			c.JSON(http.StatusUnauthorized, apperr.Body("UNAUTHENTICATED", "社員番号またはパスワードが間違っています"))
			return
		}
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFromErr(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (h *Handler) Exists(c *gin.Context) {
	employeeNo := c.Query("employee_no")
	if employeeNo == "" {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "employee_no is required"))
		return
	}
	ok, err := h.svc.Exists(c.Request.Context(), employeeNo)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFromErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"exists": ok})
}

type SetPasswordRequest struct {
	EmployeeNo string `json:"employee_no" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

func (h *Handler) SetPassword(c *gin.Context) {
	var req SetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}
	if err := h.svc.SetPassword(c.Request.Context(), req.EmployeeNo, req.Password,
		c.GetString(CtxUserIDKey), c.GetString(CtxRoleKey)); err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFromErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password set"})
}

type MeResponse struct {
	EmployeeNo   string         `json:"employee_no"`
	Name         string         `json:"name"`
	AccountLevel string         `json:"account_level"`
	Rental       *RentalInfoDTO `json:"rental,omitempty"`
}

type RentalInfoDTO struct {
	RentalULID string     `json:"rental_ulid"`
	AssetNo    string     `json:"asset_no"`
	RentedAt   time.Time  `json:"rented_at"`
	DueOn      time.Time  `json:"due_on"`
	ReturnedAt *time.Time `json:"returned_at,omitempty"`
	Overdue    bool       `json:"overdue"`
}

func toRentalInfoDTO(r *RentalInfo) *RentalInfoDTO {
	if r == nil {
		return nil
	}
	return &RentalInfoDTO{
		RentalULID: r.RentalULID,
		AssetNo:    r.AssetNo,
		RentedAt:   r.RentedAt,
		DueOn:      r.DueOn,
		ReturnedAt: r.ReturnedAt,
		Overdue:    r.Overdue,
	}
}

func (h *Handler) Me(c *gin.Context) {
	me, err := h.svc.Me(c.Request.Context(), c.GetString(CtxUserIDKey))
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFromErr(err))
		return
	}
	c.JSON(http.StatusOK, MeResponse{
		EmployeeNo:   me.EmployeeNo,
		Name:         me.Name,
		AccountLevel: me.AccountLevel,
		Rental:       toRentalInfoDTO(me.Rental),
	})
}

type ReturnMineRequest struct {
	// 省略時は自分の貸出中1件を返す
	AssetNo string `json:"asset_no,omitempty"`
}

// ReturnMine はマイページの返却ボタン。社員番号はトークンから取る。
func (h *Handler) ReturnMine(c *gin.Context) {
	var req ReturnMineRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "invalid json"))
			return
		}
	}
	res, err := h.svc.ReturnMine(c.Request.Context(), c.GetString(CtxUserIDKey), req.AssetNo)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFromErr(err))
		return
	}
	c.JSON(http.StatusOK, toRentalInfoDTO(res))
}
