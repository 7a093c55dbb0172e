package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/codeskytz/smmbot/internal/server/http/dto"
)

// ChatHandler processes inbound chat messages.
type ChatHandler struct {
	facade ChatFacade
}

// NewChatHandler creates ChatHandler instance.
func NewChatHandler(facade ChatFacade) *ChatHandler {
	return &ChatHandler{facade: facade}
}

// Inbound handles POST /webhook/chat.
func (h *ChatHandler) Inbound(c *gin.Context) {
	var req dto.ChatMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Status(http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.From) == "" {
		c.Status(http.StatusBadRequest)
		return
	}

	reply, err := h.facade.HandleMessage(c.Request.Context(), req.From, req.Message)
	if err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, dto.ChatReplyResponse{Reply: reply})
}
