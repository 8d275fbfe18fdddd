package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	reminderdomain "github.com/smallbiznis/kilekitabu/internal/reminder/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type cronJobResult struct {
	Status  string                  `json:"status"`
	Error   string                  `json:"error,omitempty"`
	Summary *reminderdomain.Summary `json:"summary,omitempty"`
}

func (s *Server) CronLowCredit(c *gin.Context) {
	s.runCronScan(c, "Low credit check triggered", s.reminderSvc.ScanLowCredit)
}

func (s *Server) CronDebtReminders(c *gin.Context) {
	s.runCronScan(c, "Debt reminder check triggered", s.reminderSvc.ScanDebtReminders)
}

func (s *Server) runCronScan(c *gin.Context, message string, scan func(context.Context) (reminderdomain.Summary, error)) {
	summary, err := scan(c.Request.Context())
	if err != nil {
		s.log.Error("cron scan failed", zap.String("job", summary.Job), zap.Error(err))
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "success",
		"message":   message,
		"summary":   summary,
		"timestamp": s.clock.Now().UTC().Format(time.RFC3339),
	})
}

// CronAllNotifications runs both scanners concurrently. A failing scanner is
// reported in its own result and never fails the other.
func (s *Server) CronAllNotifications(c *gin.Context) {
	var (
		lowCredit cronJobResult
		debts     cronJobResult
	)

	g, ctx := errgroup.WithContext(c.Request.Context())
	g.Go(func() error {
		lowCredit = s.cronJob(ctx, s.reminderSvc.ScanLowCredit)
		return nil
	})
	g.Go(func() error {
		debts = s.cronJob(ctx, s.reminderSvc.ScanDebtReminders)
		return nil
	})
	_ = g.Wait()

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "All notification checks triggered",
		"results": gin.H{
			reminderdomain.JobLowCredit:     lowCredit,
			reminderdomain.JobDebtReminders: debts,
		},
		"timestamp": s.clock.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) cronJob(ctx context.Context, scan func(context.Context) (reminderdomain.Summary, error)) cronJobResult {
	summary, err := scan(ctx)
	if err != nil {
		s.log.Error("cron scan failed", zap.String("job", summary.Job), zap.Error(err))
		return cronJobResult{Status: "error", Error: err.Error()}
	}
	return cronJobResult{Status: "success", Summary: &summary}
}
