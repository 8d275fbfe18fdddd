package server

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/kilekitabu/internal/payment/adapters/paystack"
	"go.uber.org/zap"
)

func (s *Server) HandlePaymentWebhook(c *gin.Context) {
	s.ackWebhook(c, strings.TrimSpace(c.Param("provider")))
}

func (s *Server) HandlePaystackWebhook(c *gin.Context) {
	s.ackWebhook(c, paystack.ProviderName)
}

// ackWebhook answers 200 before processing so providers do not retry on slow
// ledger writes. Processing continues detached from the request with its own
// deadline; a retried delivery is absorbed by ledger idempotency. An
// unreadable body is still acknowledged and only logged.
func (s *Server) ackWebhook(c *gin.Context, provider string) {
	c.Set("payment_provider", provider)

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		s.log.Warn("webhook body unreadable",
			zap.String("provider", provider),
			zap.Error(err),
		)
		c.JSON(http.StatusOK, gin.H{"status": "received"})
		return
	}
	headers := c.Request.Header.Clone()
	ctx := context.WithoutCancel(c.Request.Context())

	c.JSON(http.StatusOK, gin.H{"status": "received"})

	go s.processWebhook(ctx, provider, payload, headers)
}

func (s *Server) processWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) {
	ctx, cancel := context.WithTimeout(ctx, s.webhookTimeout)
	defer cancel()

	if err := s.webhookSvc.IngestWebhook(ctx, provider, payload, headers); err != nil {
		s.log.Warn("webhook processing failed",
			zap.String("provider", provider),
			zap.Error(err),
		)
	}
}
