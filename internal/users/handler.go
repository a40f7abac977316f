package users

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ARMS-backend/internal/platform/apperr"
)

type Handler struct{ svc *Service }

// 社員マスタの変更は管理者のみ
func RegisterRoutes(r gin.IRoutes, svc *Service, adminOnly ...gin.HandlerFunc) {
	h := &Handler{svc: svc}

	r.GET("/users", h.List)
	r.GET("/users/:employee_no", h.Get)

	r.POST("/users", append(adminOnly, h.Create)...)
	r.PUT("/users/:employee_no", append(adminOnly, h.Update)...)
	r.DELETE("/users/:employee_no", append(adminOnly, h.Delete)...)
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
	res, err := h.svc.Get(c.Request.Context(), c.Param("employee_no"))
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Create(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}
	res, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFromErr(err))
		return
	}
	c.Header("Location", "/users/"+res.EmployeeNo)
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) Update(c *gin.Context) {
	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "invalid json"))
		return
	}
	res, err := h.svc.Update(c.Request.Context(), c.Param("employee_no"), req)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("employee_no")); err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFromErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}
