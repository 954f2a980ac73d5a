package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/abdoElHodaky/smartfixapi/internal/http/handlers/common"
	"github.com/abdoElHodaky/smartfixapi/internal/repository"
	"github.com/abdoElHodaky/smartfixapi/internal/service"
)

// ProposalHandler отвечает за отклики исполнителей на заявки.
type ProposalHandler struct {
	requests  *service.RequestService
	providers *repository.ProviderRepository
	notifier  service.Notifier
}

// NewProposalHandler создаёт новый хэндлер.
func NewProposalHandler(requests *service.RequestService, providers *repository.ProviderRepository, notifier service.Notifier) *ProposalHandler {
	return &ProposalHandler{requests: requests, providers: providers, notifier: notifier}
}

type submitProposalRequest struct {
	Price   float64 `json:"price" binding:"required"`
	Message *string `json:"message"`
}

// SubmitProposal обрабатывает POST /requests/:id/proposals.
func (h *ProposalHandler) SubmitProposal(c *gin.Context) {
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

	var req submitProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "price обязателен")
		return
	}

	proposal, err := h.requests.SubmitProposal(c.Request.Context(), requestID, userID, req.Price, req.Message)
	if err != nil {
		common.Fail(c, err)
		return
	}

	if h.notifier != nil {
		request, rerr := h.requests.GetRequest(c.Request.Context(), requestID)
		if rerr == nil {
			_, _ = h.notifier.Notify(c.Request.Context(), request.RequesterID, service.EventProposalReceived, gin.H{
				"request_id":  requestID,
				"proposal_id": proposal.ID,
				"price":       proposal.Price,
			})
		}
	}

	c.JSON(http.StatusCreated, proposal)
}

// ListProposals обрабатывает GET /requests/:id/proposals.
func (h *ProposalHandler) ListProposals(c *gin.Context) {
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

	proposals, err := h.requests.ListProposals(c.Request.Context(), requestID, userID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"proposals": proposals})
}

// AcceptProposal обрабатывает POST /requests/:id/proposals/:proposalId/accept.
func (h *ProposalHandler) AcceptProposal(c *gin.Context) {
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

	proposalID, err := common.ParseUUIDParam(c, "proposalId")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	request, err := h.requests.AcceptProposal(c.Request.Context(), requestID, proposalID, userID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	if h.notifier != nil && request.ProviderID != nil {
		if provider, perr := h.providers.GetByID(c.Request.Context(), *request.ProviderID); perr == nil {
			_, _ = h.notifier.Notify(c.Request.Context(), provider.UserID, service.EventProposalAccepted, gin.H{
				"request_id": requestID,
				"title":      request.Title,
			})
		}
	}

	c.JSON(http.StatusOK, request)
}

// WithdrawProposal обрабатывает POST /proposals/:id/withdraw.
func (h *ProposalHandler) WithdrawProposal(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	proposalID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.requests.WithdrawProposal(c.Request.Context(), proposalID, userID); err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "отклик отозван"})
}
