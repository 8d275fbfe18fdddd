package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

type recordUsageRequest struct {
	ActionType string `json:"action_type"`
}

// GetCreditInfo returns the caller's balance and trial state, creating the
// account on first sight.
func (s *Server) GetCreditInfo(c *gin.Context) {
	info, err := s.ledgerSvc.GetCreditInfo(c.Request.Context(), userIDFromContext(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, info)
}

func (s *Server) RecordUsage(c *gin.Context) {
	var req recordUsageRequest
	// the app may post an empty body
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.usageSvc.RecordUsage(c.Request.Context(), userIDFromContext(c), req.ActionType)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
