package rentals

import (
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"ARMS-backend/internal/platform/apperr"
	"ARMS-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

// authRequired は本人操作のルート、adminOnly は監査系（履歴・CSV）に掛ける
func RegisterRoutes(r gin.IRoutes, svc *Service, authRequired, adminOnly gin.HandlerFunc) {
	h := &Handler{svc: svc}

	// 貸出状況（一覧・詳細）は画面表示用に開放
	r.GET("/rentals", h.List)
	r.GET("/rentals/assets/:asset_no", h.AssetDetail)

	r.POST("/rentals/rent", authRequired, h.Rent)
	r.POST("/rentals/return", authRequired, h.Return)
	r.GET("/rentals/my", authRequired, h.My)

	r.GET("/rentals/history", authRequired, adminOnly, h.History)
	r.GET("/rentals/export", authRequired, adminOnly, h.ExportCSV)
}

func (h *Handler) List(c *gin.Context) {
	f := StatusFilter{Keyword: c.Query("keyword")}
	if v := c.Query("only_borrowed"); v == "true" || v == "1" {
		f.OnlyBorrowed = true
	}
	res, err := h.svc.ListAll(c.Request.Context(), f)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) AssetDetail(c *gin.Context) {
	res, err := h.svc.AssetDetail(c.Request.Context(), c.Param("asset_no"))
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Rent(c *gin.Context) {
	var req RentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}
	// 借り手はトークンの本人に固定する（他人名義の貸出は管理者のみ）
	if strings.TrimSpace(req.EmployeeNo) != c.GetString(auth.CtxUserIDKey) && c.GetString(auth.CtxRoleKey) != "admin" {
		c.JSON(http.StatusForbidden, apperr.Body(apperr.CodeForbidden, "cannot rent on behalf of another employee"))
		return
	}
	res, err := h.svc.Rent(c.Request.Context(), req)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFromErr(err))
		return
	}
	c.Header("Location", "/rentals/assets/"+res.AssetNo)
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) Return(c *gin.Context) {
	var req ReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}
	if strings.TrimSpace(req.EmployeeNo) != c.GetString(auth.CtxUserIDKey) && c.GetString(auth.CtxRoleKey) != "admin" {
		c.JSON(http.StatusForbidden, apperr.Body(apperr.CodeForbidden, "cannot return on behalf of another employee"))
		return
	}
	res, err := h.svc.Return(c.Request.Context(), req)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) My(c *gin.Context) {
	res, err := h.svc.MyCurrentRental(c.Request.Context(), c.GetString(auth.CtxUserIDKey))
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFromErr(err))
		return
	}
	// 未貸出は rental: null で返す（404にしない）
	c.JSON(http.StatusOK, gin.H{"rental": res})
}

func (h *Handler) History(c *gin.Context) {
	f := HistoryFilter{}
	if v := c.Query("asset_no"); v != "" {
		f.AssetNo = &v
	}
	if v := c.Query("employee_no"); v != "" {
		f.EmployeeNo = &v
	}
	if v := c.Query("only_open"); v == "true" || v == "1" {
		f.OnlyOpen = true
	}
	if v := c.Query("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			f.From = &t
		}
	}
	if v := c.Query("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			f.To = &t
		}
	}
	p := Page{
		Limit:  parseIntDefault(c.Query("limit"), 50),
		Offset: parseIntDefault(c.Query("offset"), 0),
		Order:  c.DefaultQuery("order", "desc"),
	}
	res, err := h.svc.History(c.Request.Context(), f, p)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ExportCSV(c *gin.Context) {
	f := StatusFilter{Keyword: c.Query("keyword")}
	if v := c.Query("only_borrowed"); v == "true" || v == "1" {
		f.OnlyBorrowed = true
	}
	c.Header("Content-Type", "text/csv; charset=Shift_JIS")
	c.Header("Content-Disposition", `attachment; filename="rentals.csv"`)
	if err := h.svc.ExportCSV(c.Request.Context(), f, c.Writer); err != nil {
		// ここまで来るとヘッダ送信済みの可能性があるのでログに残すだけ
		log.Println("[ERROR] export csv:", err)
		c.Status(http.StatusInternalServerError)
		return
	}
}

func parseIntDefault(s string, d int) int {
	if s == "" {
		return d
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return d
	}
	return v
}
