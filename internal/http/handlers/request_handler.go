package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/abdoElHodaky/smartfixapi/internal/http/handlers/common"
	"github.com/abdoElHodaky/smartfixapi/internal/models"
	"github.com/abdoElHodaky/smartfixapi/internal/repository"
	"github.com/abdoElHodaky/smartfixapi/internal/service"
	"github.com/abdoElHodaky/smartfixapi/internal/storage"
)

// RequestHandler отвечает за жизненный цикл заявок на услуги.
type RequestHandler struct {
	requests  *service.RequestService
	matches   *service.MatchService
	photos    *storage.PhotoStorage
	providers *repository.ProviderRepository
	notifier  service.Notifier
}

// NewRequestHandler создаёт новый хэндлер.
func NewRequestHandler(requests *service.RequestService, matches *service.MatchService, photos *storage.PhotoStorage, providers *repository.ProviderRepository, notifier service.Notifier) *RequestHandler {
	return &RequestHandler{requests: requests, matches: matches, photos: photos, providers: providers, notifier: notifier}
}

type createRequestRequest struct {
	Category               string   `json:"category" binding:"required"`
	ServiceType            string   `json:"service_type" binding:"required"`
	Title                  string   `json:"title" binding:"required"`
	Description            string   `json:"description" binding:"required"`
	Requirements           *string  `json:"requirements"`
	Images                 []string `json:"images"`
	ScheduledDate          string   `json:"scheduled_date" binding:"required"`
	EstimatedDurationHours float64  `json:"estimated_duration_hours"`
	Longitude              float64  `json:"longitude"`
	Latitude               float64  `json:"latitude"`
	BudgetMin              float64  `json:"budget_min"`
	BudgetMax              float64  `json:"budget_max"`
	Priority               string   `json:"priority"`
}

type updateRequestRequest struct {
	Title                  *string  `json:"title"`
	Description            *string  `json:"description"`
	Requirements           *string  `json:"requirements"`
	Images                 []string `json:"images"`
	ScheduledDate          *string  `json:"scheduled_date"`
	EstimatedDurationHours *float64 `json:"estimated_duration_hours"`
	BudgetMin              *float64 `json:"budget_min"`
	BudgetMax              *float64 `json:"budget_max"`
	Priority               *string  `json:"priority"`
}

type completeServiceRequest struct {
	Notes  string   `json:"notes"`
	Images []string `json:"images"`
}

type cancelRequestRequest struct {
	Reason string `json:"reason"`
}

// CreateRequest обрабатывает POST /requests.
func (h *RequestHandler) CreateRequest(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req createRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "некорректное тело запроса: "+err.Error())
		return
	}

	scheduledDate, err := time.Parse(time.RFC3339, req.ScheduledDate)
	if err != nil {
		common.RespondBadRequest(c, "scheduled_date должен быть в формате RFC3339")
		return
	}

	request, err := h.requests.CreateRequest(c.Request.Context(), userID, service.CreateRequestInput{
		Category:               req.Category,
		ServiceType:            req.ServiceType,
		Title:                  req.Title,
		Description:            req.Description,
		Requirements:           req.Requirements,
		Images:                 req.Images,
		ScheduledDate:          scheduledDate,
		EstimatedDurationHours: req.EstimatedDurationHours,
		Longitude:              req.Longitude,
		Latitude:               req.Latitude,
		BudgetMin:              req.BudgetMin,
		BudgetMax:              req.BudgetMax,
		Priority:               req.Priority,
	})
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, request)
}

// GetRequest обрабатывает GET /requests/:id.
func (h *RequestHandler) GetRequest(c *gin.Context) {
	requestID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	request, err := h.requests.GetRequest(c.Request.Context(), requestID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, request)
}

// ListMyRequests обрабатывает GET /requests/my.
func (h *RequestHandler) ListMyRequests(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	requests, err := h.requests.ListMyRequests(c.Request.Context(), userID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"requests": requests})
}

// ListAssignedRequests обрабатывает GET /requests/assigned.
func (h *RequestHandler) ListAssignedRequests(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	requests, err := h.requests.ListAssignedRequests(c.Request.Context(), userID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"requests": requests})
}

// UpdateRequest обрабатывает PATCH /requests/:id.
func (h *RequestHandler) UpdateRequest(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	requestID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req updateRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "некорректное тело запроса: "+err.Error())
		return
	}

	in := service.UpdateRequestInput{
		Title:                  req.Title,
		Description:            req.Description,
		Requirements:           req.Requirements,
		Images:                 req.Images,
		EstimatedDurationHours: req.EstimatedDurationHours,
		BudgetMin:              req.BudgetMin,
		BudgetMax:              req.BudgetMax,
		Priority:               req.Priority,
	}
	if req.ScheduledDate != nil {
		scheduledDate, err := time.Parse(time.RFC3339, *req.ScheduledDate)
		if err != nil {
			common.RespondBadRequest(c, "scheduled_date должен быть в формате RFC3339")
			return
		}
		in.ScheduledDate = &scheduledDate
	}

	request, err := h.requests.UpdateRequest(c.Request.Context(), requestID, userID, in)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, request)
}

// StartService обрабатывает POST /requests/:id/start.
func (h *RequestHandler) StartService(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	requestID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	request, err := h.requests.StartService(c.Request.Context(), requestID, userID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	h.notifyRequester(c, request, service.EventServiceStarted)
	c.JSON(http.StatusOK, request)
}

// CompleteService обрабатывает POST /requests/:id/complete.
func (h *RequestHandler) CompleteService(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	requestID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req completeServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "некорректное тело запроса: "+err.Error())
		return
	}

	request, err := h.requests.CompleteService(c.Request.Context(), requestID, userID, req.Notes, req.Images)
	if err != nil {
		common.Fail(c, err)
		return
	}

	h.notifyRequester(c, request, service.EventServiceCompleted)
	c.JSON(http.StatusOK, request)
}

// ApproveCompletion обрабатывает POST /requests/:id/approve.
func (h *RequestHandler) ApproveCompletion(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	requestID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	request, err := h.requests.ApproveCompletion(c.Request.Context(), requestID, userID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	h.notifyAssignedProvider(c, request, service.EventCompletionApproved)
	c.JSON(http.StatusOK, request)
}

// CancelRequest обрабатывает POST /requests/:id/cancel.
func (h *RequestHandler) CancelRequest(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	requestID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req cancelRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "некорректное тело запроса: "+err.Error())
		return
	}

	request, err := h.requests.CancelRequest(c.Request.Context(), requestID, userID, req.Reason)
	if err != nil {
		common.Fail(c, err)
		return
	}

	// Уведомляем вторую сторону заявки.
	if userID == request.RequesterID {
		h.notifyAssignedProvider(c, request, service.EventRequestCancelled)
	} else {
		h.notifyRequester(c, request, service.EventRequestCancelled)
	}
	c.JSON(http.StatusOK, request)
}

// notifyRequester отправляет событие клиенту заявки.
func (h *RequestHandler) notifyRequester(c *gin.Context, request *models.ServiceRequest, event string) {
	if h.notifier == nil {
		return
	}
	_, _ = h.notifier.Notify(c.Request.Context(), request.RequesterID, event, h.eventPayload(request))
}

// notifyAssignedProvider отправляет событие назначенному исполнителю.
func (h *RequestHandler) notifyAssignedProvider(c *gin.Context, request *models.ServiceRequest, event string) {
	if h.notifier == nil || request.ProviderID == nil {
		return
	}
	provider, err := h.providers.GetByID(c.Request.Context(), *request.ProviderID)
	if err != nil {
		return
	}
	_, _ = h.notifier.Notify(c.Request.Context(), provider.UserID, event, h.eventPayload(request))
}

func (h *RequestHandler) eventPayload(request *models.ServiceRequest) gin.H {
	return gin.H{
		"request_id": request.ID,
		"title":      request.Title,
		"status":     request.Status,
	}
}

// MatchProviders обрабатывает GET /requests/:id/matches.
func (h *RequestHandler) MatchProviders(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	requestID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	matched, err := h.matches.MatchProviders(c.Request.Context(), userID, requestID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"providers": matched})
}

// UploadPhoto обрабатывает POST /requests/:id/photos.
// Файл проверяется по магическим байтам, расширению имени не доверяем.
func (h *RequestHandler) UploadPhoto(c *gin.Context) {
	if _, err := common.CurrentUserID(c); err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	requestID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		common.RespondBadRequest(c, "поле file обязательно")
		return
	}
	if file.Size == 0 {
		common.RespondBadRequest(c, "файл не может быть пустым")
		return
	}

	src, err := file.Open()
	if err != nil {
		common.Fail(c, err)
		return
	}
	defer src.Close()

	head := make([]byte, 512)
	n, err := src.Read(head)
	if err != nil && err != io.EOF {
		common.RespondBadRequest(c, "не удалось прочитать файл")
		return
	}

	mime, err := storage.ValidateImage(head[:n])
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if _, err := src.Seek(0, io.SeekStart); err != nil {
		common.Fail(c, err)
		return
	}

	relativePath, size, err := h.photos.Save(c.Request.Context(), requestID, file.Filename, src)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"path": relativePath,
		"type": mime,
		"size": size,
	})
}
