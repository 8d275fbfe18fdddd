package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/kilekitabu/internal/payment/adapters/paystack"
	paymentdomain "github.com/smallbiznis/kilekitabu/internal/payment/domain"
)

type initializePaystackRequest struct {
	Email     string      `json:"email"`
	Amount    json.Number `json:"amount"`
	Currency  string      `json:"currency"`
	Reference string      `json:"reference"`
}

func (s *Server) InitializePaystack(c *gin.Context) {
	var req initializePaystackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	amount, err := req.Amount.Float64()
	if err != nil || amount <= 0 {
		AbortWithError(c, paymentdomain.ErrInvalidAmount)
		return
	}

	result, err := s.paystackSvc.Initialize(c.Request.Context(), paymentdomain.InitializeRequest{
		UserID:    userIDFromContext(c),
		Email:     req.Email,
		Amount:    amount,
		Currency:  req.Currency,
		Reference: req.Reference,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"access_code":       result.AccessCode,
		"reference":         result.Reference,
		"authorization_url": result.AuthorizationURL,
	})
}

func (s *Server) VerifyPaystack(c *gin.Context) {
	reference := strings.TrimSpace(c.Param("reference"))
	if reference == "" {
		AbortWithError(c, newValidationError("reference", "required", "reference is required"))
		return
	}

	result, err := s.paystackSvc.Verify(c.Request.Context(), userIDFromContext(c), reference)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"status":      result.Status,
		"credited":    result.Credited,
		"duplicate":   result.Duplicate,
		"credit_days": result.CreditDays,
		"new_balance": result.NewBalance,
		"transaction": result.Transaction,
	})
}

type payCardRequest struct {
	Amount        json.Number               `json:"amount"`
	Currency      string                    `json:"currency"`
	Email         string                    `json:"email"`
	ReferenceCode string                    `json:"referenceCode"`
	Card          paymentdomain.CardDetails `json:"card"`
}

type submitChargeRequest struct {
	Reference string `json:"reference"`
	PIN       string `json:"pin"`
	OTP       string `json:"otp"`
	Phone     string `json:"phone"`
}

// PayCard charges a card directly through Paystack.
func (s *Server) PayCard(c *gin.Context) {
	var req payCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	amount, err := req.Amount.Float64()
	if err != nil || amount <= 0 {
		AbortWithError(c, paymentdomain.ErrInvalidAmount)
		return
	}

	result, err := s.paystackSvc.ChargeCard(c.Request.Context(), paymentdomain.CardChargeRequest{
		UserID:    userIDFromContext(c),
		Email:     req.Email,
		Amount:    amount,
		Currency:  req.Currency,
		Reference: req.ReferenceCode,
		Card:      req.Card,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, cardChargeBody(result))
}

// SubmitChargeStep returns a handler for one of the pin, otp or phone prompts.
func (s *Server) SubmitChargeStep(step string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req submitChargeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
		value := map[string]string{
			paystack.StepPIN:   req.PIN,
			paystack.StepOTP:   req.OTP,
			paystack.StepPhone: req.Phone,
		}[step]
		if strings.TrimSpace(req.Reference) == "" {
			AbortWithError(c, newValidationError("reference", "required", "reference is required"))
			return
		}
		if strings.TrimSpace(value) == "" {
			AbortWithError(c, newValidationError(step, "required", step+" is required"))
			return
		}

		result, err := s.paystackSvc.SubmitCharge(c.Request.Context(), paymentdomain.SubmitChargeRequest{
			UserID:    userIDFromContext(c),
			Reference: req.Reference,
			Step:      step,
			Value:     value,
		})
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, cardChargeBody(result))
	}
}

func cardChargeBody(result *paymentdomain.CardChargeResult) gin.H {
	body := gin.H{
		"success":   result.Status != paymentdomain.ChargeStatusFailed,
		"status":    result.Status,
		"reference": result.Reference,
	}
	if result.Message != "" {
		body["message"] = result.Message
	}
	if result.TransactionID != "" {
		body["transaction_id"] = result.TransactionID
	}
	if result.Credit != nil {
		body["credit_days_added"] = result.Credit.CreditDays
		body["new_credit_balance"] = result.Credit.NewCreditBalance
		body["duplicate"] = result.Credit.Duplicate
	}
	return body
}
