package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/themobileprof/telecare-be/internal/api/middleware"
	"github.com/themobileprof/telecare-be/internal/chat"
)

// ChatHandler exposes persisted two-party chats
type ChatHandler struct {
	service *chat.Service
	logger  *zap.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(service *chat.Service, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{service: service, logger: logger}
}

type startChatRequest struct {
	ReceiverID string `json:"receiverId" binding:"required"`
}

type sendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// Start finds or creates the chat with receiverId
// POST /api/chat/start
func (h *ChatHandler) Start(c *gin.Context) {
	var req startChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	receiverID, err := parseUUID(req.ReceiverID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	ch, err := h.service.Start(c.Request.Context(), middleware.GetUserID(c), receiverID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat": ch})
}

// List returns the caller's active chats
// GET /api/chat
func (h *ChatHandler) List(c *gin.Context) {
	chats, err := h.service.List(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

// Messages returns a chat's history and marks it read for the caller
// GET /api/chat/:chatId/messages
func (h *ChatHandler) Messages(c *gin.Context) {
	chatID, err := pathID(c, "chatId")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	messages, err := h.service.Messages(c.Request.Context(), chatID, middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// Send stores a message and pushes it to the other participant if online
// POST /api/chat/:chatId/messages
func (h *ChatHandler) Send(c *gin.Context) {
	chatID, err := pathID(c, "chatId")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	msg, err := h.service.Send(c.Request.Context(), chatID, middleware.GetUserID(c), req.Content)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Message sent", "data": msg})
}
