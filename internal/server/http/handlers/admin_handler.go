package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	domainErrors "github.com/codeskytz/smmbot/internal/domain/errors"
	"github.com/codeskytz/smmbot/internal/domain/model"
	"github.com/codeskytz/smmbot/internal/server/http/dto"
)

// AdminHandler manages operator endpoints.
type AdminHandler struct {
	facade AdminFacade
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(facade AdminFacade) *AdminHandler {
	return &AdminHandler{facade: facade}
}

// Login handles POST /admin/login.
func (h *AdminHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	token, err := h.facade.AdminLogin(c.Request.Context(), req.Login, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, domainErrors.ErrInvalidCredentials):
			c.Status(http.StatusUnauthorized)
		default:
			c.Status(http.StatusInternalServerError)
		}
		return
	}

	c.JSON(http.StatusOK, dto.TokenResponse{Token: token})
}

// Orders handles GET /admin/orders.
func (h *AdminHandler) Orders(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.Status(http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	orders, err := h.facade.Orders(c.Request.Context(), limit)
	if err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}

	response := make([]dto.OrderResponse, 0, len(orders))
	for _, o := range orders {
		response = append(response, toOrderResponse(o))
	}

	c.JSON(http.StatusOK, response)
}

// Order handles GET /admin/orders/:id.
func (h *AdminHandler) Order(c *gin.Context) {
	order, err := h.facade.Order(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domainErrors.ErrNotFound) {
			c.Status(http.StatusNotFound)
			return
		}
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, toOrderResponse(*order))
}

// ImportCatalog handles POST /admin/catalog/import.
func (h *AdminHandler) ImportCatalog(c *gin.Context) {
	count, err := h.facade.ImportCatalog(c.Request.Context())
	if err != nil {
		c.Status(http.StatusBadGateway)
		return
	}

	c.JSON(http.StatusOK, dto.ImportResponse{Imported: count})
}

func toOrderResponse(order model.Order) dto.OrderResponse {
	return dto.OrderResponse{
		ID:            order.ID,
		Status:        string(order.Status),
		ServiceID:     order.ServiceID,
		ServiceName:   order.ServiceName,
		Platform:      order.Platform,
		Category:      order.Category,
		Target:        order.Target,
		Quantity:      order.Quantity,
		AmountDue:     order.AmountDue,
		PaymentPhone:  order.PaymentPhone,
		PaymentRef:    order.PaymentRef,
		RemoteOrderID: order.RemoteOrderID,
		CompletedAt:   order.CompletedAt,
		CreatedAt:     order.CreatedAt,
		UpdatedAt:     order.UpdatedAt,
	}
}
