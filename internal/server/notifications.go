package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type registerTokenRequest struct {
	UserID string `json:"user_id"`
	Token  string `json:"token"`
}

type sendNotificationRequest struct {
	UserID string            `json:"user_id"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Data   map[string]string `json:"data"`
}

func (s *Server) RegisterToken(c *gin.Context) {
	var req registerTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		AbortWithError(c, newValidationError("user_id", "required", "user_id is required"))
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		AbortWithError(c, newValidationError("token", "required", "token is required"))
		return
	}

	if err := s.notifySvc.RegisterToken(c.Request.Context(), req.UserID, req.Token); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Token registered successfully",
		"user_id": strings.TrimSpace(req.UserID),
	})
}

func (s *Server) SendNotification(c *gin.Context) {
	var req sendNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		AbortWithError(c, newValidationError("user_id", "required", "user_id is required"))
		return
	}
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Body) == "" {
		AbortWithError(c, newValidationError("title", "required", "title and body are required"))
		return
	}

	delivered, err := s.notifySvc.SendToUser(c.Request.Context(), req.UserID, req.Title, req.Body, req.Data)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !delivered {
		AbortWithError(c, ErrDeliveryFailed)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Notification sent successfully"})
}
