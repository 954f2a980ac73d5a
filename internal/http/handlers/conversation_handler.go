package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/abdoElHodaky/smartfixapi/internal/http/handlers/common"
	"github.com/abdoElHodaky/smartfixapi/internal/service"
)

// ConversationHandler отвечает за каналы переписки по заявкам.
type ConversationHandler struct {
	chat *service.ChatService
}

// NewConversationHandler создаёт новый хэндлер.
func NewConversationHandler(chat *service.ChatService) *ConversationHandler {
	return &ConversationHandler{chat: chat}
}

// ListChannels обрабатывает GET /conversations.
func (h *ConversationHandler) ListChannels(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	conversations, err := h.chat.ListChannels(c.Request.Context(), userID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

// GetChannelForRequest обрабатывает GET /requests/:id/conversation.
func (h *ConversationHandler) GetChannelForRequest(c *gin.Context) {
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

	conversation, err := h.chat.GetChannelForRequest(c.Request.Context(), requestID, userID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, conversation)
}
