package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	domainErrors "github.com/codeskytz/smmbot/internal/domain/errors"
	"github.com/codeskytz/smmbot/internal/server/http/dto"
)

// PaymentWebhookHandler consumes mobile money gateway callbacks.
type PaymentWebhookHandler struct {
	facade PaymentFacade
}

// NewPaymentWebhookHandler constructs PaymentWebhookHandler.
func NewPaymentWebhookHandler(facade PaymentFacade) *PaymentWebhookHandler {
	return &PaymentWebhookHandler{facade: facade}
}

// Receive handles POST /webhook/payment.
func (h *PaymentWebhookHandler) Receive(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	var req dto.PaymentWebhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.Status(http.StatusBadRequest)
		return
	}
	if req.OrderID == "" {
		c.Status(http.StatusBadRequest)
		return
	}

	err = h.facade.PaymentEvent(c.Request.Context(), req.OrderID, req.PaymentStatus, req.Reference, body)
	if err != nil {
		if errors.Is(err, domainErrors.ErrNotFound) {
			c.Status(http.StatusNotFound)
			return
		}
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, dto.WebhookAck{Received: true})
}
