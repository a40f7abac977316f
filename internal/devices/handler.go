package devices

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ARMS-backend/internal/platform/apperr"
)

type Handler struct{ svc *Service }

// adminOnly は機器マスタを変更するルートに掛ける（一覧・詳細は画面表示用に開放）
func RegisterRoutes(r gin.IRoutes, svc *Service, adminOnly ...gin.HandlerFunc) {
	h := &Handler{svc: svc}

	r.GET("/devices", h.List)
	r.GET("/devices/:asset_no", h.Get)

	r.POST("/devices", append(adminOnly, h.Create)...)
	r.PUT("/devices/:asset_no", append(adminOnly, h.Update)...)
	r.DELETE("/devices/:asset_no", append(adminOnly, h.Delete)...)
}

func (h *Handler) List(c *gin.Context) {
	includeDeleted := false
	if v := c.Query("include_deleted"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			includeDeleted = b
		}
	}
	res, err := h.svc.List(c.Request.Context(), includeDeleted, c.Query("keyword"))
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Get(c *gin.Context) {
	res, err := h.svc.Get(c.Request.Context(), c.Param("asset_no"))
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Create(c *gin.Context) {
	var req CreateDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}
	res, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFromErr(err))
		return
	}
	c.Header("Location", "/devices/"+res.AssetNo)
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) Update(c *gin.Context) {
	var req UpdateDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "invalid json"))
		return
	}
	res, err := h.svc.Update(c.Request.Context(), c.Param("asset_no"), req)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("asset_no")); err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFromErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}
