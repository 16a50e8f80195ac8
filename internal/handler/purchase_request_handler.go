package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"

	"procure/internal/middleware"
	"procure/internal/model"
	"procure/internal/service"
	"procure/internal/workflow"
	"procure/pkg/pagination"
	"procure/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// maxUploadBytes caps uploaded document size (10 MiB).
const maxUploadBytes = 10 << 20

type PurchaseRequestHandler struct {
	approvalService service.ApprovalService
	requestService  service.PurchaseRequestService
}

func NewPurchaseRequestHandler(approvalService service.ApprovalService, requestService service.PurchaseRequestService) *PurchaseRequestHandler {
	return &PurchaseRequestHandler{
		approvalService: approvalService,
		requestService:  requestService,
	}
}

// RegisterRoutes binds the purchase request endpoints
func (h *PurchaseRequestHandler) RegisterRoutes(router *gin.RouterGroup) {
	requests := router.Group("/requests", middleware.Authenticated())
	{
		requests.POST("", h.Create)
		requests.GET("", h.List)
		requests.GET("/my", h.MyRequests)
		requests.GET("/pending", middleware.RequireRole(model.RoleApproverL1, model.RoleApproverL2), h.Pending)
		requests.GET("/:id", h.Get)
		requests.PUT("/:id", h.Update)
		requests.PATCH("/:id/approve", middleware.RequireRole(model.RoleApproverL1, model.RoleApproverL2), h.Approve)
		requests.PATCH("/:id/reject", middleware.RequireRole(model.RoleApproverL1, model.RoleApproverL2), h.Reject)
		requests.POST("/:id/receipt", h.SubmitReceipt)
		requests.GET("/:id/documents/:kind", h.Document)
	}
}

// writeError maps workflow and service errors onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrRequestNotFound):
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
	case errors.Is(err, service.ErrValidationFailed):
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
	case errors.Is(err, service.ErrForbidden), errors.Is(err, workflow.ErrNotAnApprover):
		c.JSON(http.StatusForbidden, response.Error(http.StatusForbidden, err.Error()))
	case errors.Is(err, workflow.ErrAlreadyFinalized),
		errors.Is(err, workflow.ErrAlreadyProcessed),
		errors.Is(err, workflow.ErrPriorLevelIncomplete),
		errors.Is(err, service.ErrNotEditable),
		errors.Is(err, service.ErrReceiptNotAllowed):
		c.JSON(http.StatusConflict, response.Error(http.StatusConflict, err.Error()))
	case errors.Is(err, workflow.ErrNoApprovalSlot):
		// missing chain record means the data is corrupt, not a client error
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
	default:
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Internal server error"))
	}
}

// readUpload pulls an optional multipart file field into memory.
func readUpload(c *gin.Context, field string) (string, []byte, error) {
	fileHeader, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", nil, nil
		}
		return "", nil, err
	}
	if fileHeader.Size > maxUploadBytes {
		return "", nil, errors.New("file exceeds the 10 MiB limit")
	}
	file, err := fileHeader.Open()
	if err != nil {
		return "", nil, err
	}
	defer file.Close()
	content, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		return "", nil, err
	}
	return filepath.Base(fileHeader.Filename), content, nil
}

// Create handles POST /requests
// @Summary      Create purchase request
// @Description  Creates a purchase request with its two-level approval chain; accepts an optional proforma invoice file
// @Tags         requests
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        title        formData  string  true   "Request title"
// @Param        description  formData  string  false  "Request description"
// @Param        amount       formData  string  true   "Amount (decimal)"
// @Param        proforma     formData  file    false  "Proforma invoice (PDF)"
// @Success      201          {object}  response.Response{data=model.PurchaseRequest}
// @Failure      400          {object}  response.Response
// @Router       /requests [post]
func (h *PurchaseRequestHandler) Create(c *gin.Context) {
	actor, ok := middleware.UserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User not found in context"))
		return
	}

	amount, err := decimal.NewFromString(c.PostForm("amount"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid amount"))
		return
	}

	filename, content, err := readUpload(c, "proforma")
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid proforma upload: "+err.Error()))
		return
	}

	pr, err := h.approvalService.CreateRequest(c.Request.Context(), service.CreateRequestDTO{
		Title:            c.PostForm("title"),
		Description:      c.PostForm("description"),
		Amount:           amount,
		ProformaFilename: filename,
		ProformaContent:  content,
	}, actor)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, pr))
}

// List handles GET /requests
// @Summary      List purchase requests
// @Description  Staff see their own requests; approvers, finance and admin see all. Optional status filter.
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        status  query     string  false  "Filter by status (pending|approved|rejected)"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Items per page (default 20)"
// @Success      200     {object}  response.Response{data=object}
// @Router       /requests [get]
func (h *PurchaseRequestHandler) List(c *gin.Context) {
	actor, ok := middleware.UserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User not found in context"))
		return
	}

	filter := requestFilterFromQuery(c)
	requests, total, err := h.requestService.List(c.Request.Context(), actor, filter)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"requests": requests,
		"total":    total,
		"page":     filter.Page,
		"limit":    filter.Limit,
	}))
}

// MyRequests handles GET /requests/my
// @Summary      List own purchase requests
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        status  query     string  false  "Filter by status"
// @Success      200     {object}  response.Response{data=object}
// @Router       /requests/my [get]
func (h *PurchaseRequestHandler) MyRequests(c *gin.Context) {
	actor, ok := middleware.UserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User not found in context"))
		return
	}

	filter := requestFilterFromQuery(c)
	requests, total, err := h.requestService.MyRequests(c.Request.Context(), actor, filter)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"requests": requests,
		"total":    total,
		"page":     filter.Page,
		"limit":    filter.Limit,
	}))
}

// Pending handles GET /requests/pending
// @Summary      List requests awaiting the caller's approval level
// @Description  Level 1 approvers see open requests with a pending first slot; level 2 approvers see those whose first level approved
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Items per page (default 20)"
// @Success      200    {object}  response.Response{data=object}
// @Failure      403    {object}  response.Response
// @Router       /requests/pending [get]
func (h *PurchaseRequestHandler) Pending(c *gin.Context) {
	actor, ok := middleware.UserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User not found in context"))
		return
	}

	filter := requestFilterFromQuery(c)
	requests, total, err := h.approvalService.PendingFor(c.Request.Context(), actor, filter.Page, filter.Limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"requests": requests,
		"total":    total,
		"page":     filter.Page,
		"limit":    filter.Limit,
	}))
}

// Get handles GET /requests/:id
// @Summary      Get a purchase request
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Request ID"
// @Success      200  {object}  response.Response{data=model.PurchaseRequest}
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /requests/{id} [get]
func (h *PurchaseRequestHandler) Get(c *gin.Context) {
	actor, ok := middleware.UserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User not found in context"))
		return
	}

	pr, err := h.requestService.Get(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"request":     pr,
		"can_approve": h.approvalService.CanApprove(pr, actor),
		"can_edit":    pr.CanEdit() && pr.CreatedByID == actor.ID,
	}))
}

// Update handles PUT /requests/:id
// @Summary      Update a purchase request
// @Description  Only the creator may edit, and only while no approver has acted; a replacement proforma resets extracted metadata
// @Tags         requests
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        id           path      string  true   "Request ID"
// @Param        title        formData  string  false  "Request title"
// @Param        description  formData  string  false  "Request description"
// @Param        amount       formData  string  false  "Amount (decimal)"
// @Param        proforma     formData  file    false  "Replacement proforma invoice"
// @Success      200          {object}  response.Response{data=model.PurchaseRequest}
// @Failure      403          {object}  response.Response
// @Failure      409          {object}  response.Response
// @Router       /requests/{id} [put]
func (h *PurchaseRequestHandler) Update(c *gin.Context) {
	actor, ok := middleware.UserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User not found in context"))
		return
	}

	var dto service.UpdateRequestDTO
	if title, exists := c.GetPostForm("title"); exists {
		dto.Title = &title
	}
	if description, exists := c.GetPostForm("description"); exists {
		dto.Description = &description
	}
	if rawAmount, exists := c.GetPostForm("amount"); exists {
		amount, err := decimal.NewFromString(rawAmount)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid amount"))
			return
		}
		dto.Amount = &amount
	}

	filename, content, err := readUpload(c, "proforma")
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid proforma upload: "+err.Error()))
		return
	}
	dto.ProformaFilename = filename
	dto.ProformaContent = content

	pr, err := h.requestService.Update(c.Request.Context(), c.Param("id"), dto, actor)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, pr))
}

// Approve handles PATCH /requests/:id/approve
// @Summary      Approve at the caller's level
// @Description  Records the caller's approval; the final level finalizes the request and triggers purchase order generation
// @Tags         requests
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string             true   "Request ID"
// @Param        payload  body      service.ReviewDTO  false  "Optional comments"
// @Success      200      {object}  response.Response{data=model.PurchaseRequest}
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /requests/{id}/approve [patch]
func (h *PurchaseRequestHandler) Approve(c *gin.Context) {
	h.review(c, h.approvalService.Approve)
}

// Reject handles PATCH /requests/:id/reject
// @Summary      Reject at the caller's level
// @Description  Records the caller's rejection and finalizes the request as rejected
// @Tags         requests
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string             true   "Request ID"
// @Param        payload  body      service.ReviewDTO  false  "Optional comments"
// @Success      200      {object}  response.Response{data=model.PurchaseRequest}
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /requests/{id}/reject [patch]
func (h *PurchaseRequestHandler) Reject(c *gin.Context) {
	h.review(c, h.approvalService.Reject)
}

func (h *PurchaseRequestHandler) review(c *gin.Context, transition func(ctx context.Context, requestID string, actor *model.User, comments string) (*model.PurchaseRequest, error)) {
	actor, ok := middleware.UserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User not found in context"))
		return
	}

	var dto service.ReviewDTO
	_ = c.ShouldBindJSON(&dto)

	pr, err := transition(c.Request.Context(), c.Param("id"), actor, dto.Comments)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, pr))
}

// SubmitReceipt handles POST /requests/:id/receipt
// @Summary      Submit a receipt
// @Description  Attaches a receipt to a fully approved request and validates it against the purchase data
// @Tags         requests
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string  true  "Request ID"
// @Param        receipt  formData  file    true  "Receipt file (PDF)"
// @Success      200      {object}  response.Response{data=model.PurchaseRequest}
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /requests/{id}/receipt [post]
func (h *PurchaseRequestHandler) SubmitReceipt(c *gin.Context) {
	actor, ok := middleware.UserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User not found in context"))
		return
	}

	filename, content, err := readUpload(c, "receipt")
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid receipt upload: "+err.Error()))
		return
	}
	if len(content) == 0 {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Receipt file is required"))
		return
	}

	pr, err := h.requestService.SubmitReceipt(c.Request.Context(), c.Param("id"), filename, content, actor)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, pr))
}

// Document handles GET /requests/:id/documents/:kind
// @Summary      Download a request document
// @Description  Streams the proforma, purchase_order or receipt attachment
// @Tags         requests
// @Produce      octet-stream
// @Security     BearerAuth
// @Param        id    path  string  true  "Request ID"
// @Param        kind  path  string  true  "Document kind (proforma|purchase_order|receipt)"
// @Success      200
// @Failure      404  {object}  response.Response
// @Router       /requests/{id}/documents/{kind} [get]
func (h *PurchaseRequestHandler) Document(c *gin.Context) {
	actor, ok := middleware.UserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User not found in context"))
		return
	}

	path, content, err := h.requestService.Document(c.Request.Context(), c.Param("id"), c.Param("kind"), actor)
	if err != nil {
		writeError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+strconv.Quote(filepath.Base(path)))
	c.Data(http.StatusOK, "application/octet-stream", content)
}

func requestFilterFromQuery(c *gin.Context) service.RequestFilter {
	params := pagination.Parse(c)
	return service.RequestFilter{
		Status: c.Query("status"),
		Page:   params.Page,
		Limit:  params.Limit,
	}
}
