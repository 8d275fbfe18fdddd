package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/smallbiznis/kilekitabu/internal/payment/domain"
)

type initiateMpesaRequest struct {
	PhoneNumber string      `json:"phone_number"`
	Phone       string      `json:"phone"`
	Amount      json.Number `json:"amount"`
}

func (r initiateMpesaRequest) phone() string {
	if phone := strings.TrimSpace(r.PhoneNumber); phone != "" {
		return phone
	}
	return strings.TrimSpace(r.Phone)
}

func (s *Server) InitiateMpesa(c *gin.Context) {
	var req initiateMpesaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	amount, err := req.Amount.Float64()
	if err != nil {
		AbortWithError(c, paymentdomain.ErrInvalidAmount)
		return
	}

	result, err := s.mpesaSvc.Initiate(c.Request.Context(), userIDFromContext(c), req.phone(), amount)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":             true,
		"payment_id":          result.PaymentID,
		"status":              result.Status,
		"credit_days":         result.CreditDays,
		"checkout_request_id": result.CheckoutRequestID,
		"customer_message":    result.CustomerMessage,
		"mpesa":               result.Provider,
	})
}

// MpesaCallback always acknowledges with 200 so the gateway stops retrying;
// the outcome is carried in the body.
func (s *Server) MpesaCallback(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusOK, paymentdomain.CallbackResult{Status: "ignored", Reason: "invalid_payload"})
		return
	}

	c.Set("payment_provider", "mpesa")
	result := s.mpesaSvc.HandleCallback(c.Request.Context(), payload)
	c.JSON(http.StatusOK, result)
}
