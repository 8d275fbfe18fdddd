package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/kilekitabu/internal/payment/adapters/cybersource"
	paymentdomain "github.com/smallbiznis/kilekitabu/internal/payment/domain"
)

type chargeCardRequest struct {
	TransientToken string      `json:"transientToken"`
	Amount         json.Number `json:"amount"`
	Currency       string      `json:"currency"`
	ReferenceCode  string      `json:"referenceCode"`
	PaymentType    string      `json:"paymentType"`
}

type addCardCreditsRequest struct {
	Amount        json.Number `json:"amount"`
	Currency      string      `json:"currency"`
	TransactionID string      `json:"transactionId"`
	ReferenceCode string      `json:"referenceCode"`
}

// CaptureContext returns the signed JWT the Unified Checkout widget boots with.
func (s *Server) CaptureContext(c *gin.Context) {
	var req paymentdomain.CaptureContextRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		AbortWithError(c, invalidRequestError())
		return
	}

	jwt, err := s.cardSvc.CaptureContext(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, jwt)
}

// GooglePayCaptureContext is CaptureContext with Google Pay always offered.
func (s *Server) GooglePayCaptureContext(c *gin.Context) {
	var req paymentdomain.CaptureContextRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		AbortWithError(c, invalidRequestError())
		return
	}
	if len(req.AllowedPaymentTypes) > 0 && !slices.ContainsFunc(req.AllowedPaymentTypes, isGooglePay) {
		req.AllowedPaymentTypes = append(req.AllowedPaymentTypes, cybersource.PaymentTypeGooglePay)
	}

	jwt, err := s.cardSvc.CaptureContext(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, jwt)
}

func isGooglePay(paymentType string) bool {
	return strings.EqualFold(paymentType, cybersource.PaymentTypeGooglePay)
}

func (s *Server) ChargeCard(c *gin.Context) {
	var req chargeCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	s.chargeCard(c, req)
}

// GooglePayCharge settles a Google Pay transient token.
func (s *Server) GooglePayCharge(c *gin.Context) {
	var req chargeCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.PaymentType = cybersource.PaymentTypeGooglePay
	s.chargeCard(c, req)
}

func (s *Server) chargeCard(c *gin.Context, req chargeCardRequest) {
	amount, err := req.Amount.Float64()
	if err != nil {
		AbortWithError(c, paymentdomain.ErrInvalidAmount)
		return
	}

	credit, raw, err := s.cardSvc.Charge(c.Request.Context(), paymentdomain.ChargeRequest{
		UserID:         userIDFromContext(c),
		TransientToken: req.TransientToken,
		Amount:         amount,
		Currency:       req.Currency,
		ReferenceCode:  req.ReferenceCode,
		PaymentType:    req.PaymentType,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	body := gin.H{}
	for k, v := range raw {
		body[k] = v
	}
	if credit != nil {
		body["credit"] = credit
	}
	c.JSON(http.StatusOK, body)
}

// AddCardCredits credits a payment the widget already completed.
func (s *Server) AddCardCredits(c *gin.Context) {
	var req addCardCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	amount, err := req.Amount.Float64()
	if err != nil {
		AbortWithError(c, paymentdomain.ErrInvalidAmount)
		return
	}

	result, err := s.cardSvc.AddCredits(c.Request.Context(), paymentdomain.AddCreditsRequest{
		UserID:        userIDFromContext(c),
		Amount:        amount,
		Currency:      req.Currency,
		TransactionID: req.TransactionID,
		ReferenceCode: req.ReferenceCode,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":            true,
		"payment_id":         result.PaymentID,
		"credit_days":        result.CreditDays,
		"new_credit_balance": result.NewCreditBalance,
		"transaction_id":     result.TransactionID,
		"duplicate":          result.Duplicate,
	})
}
