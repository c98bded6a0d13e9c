package main

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"

	"github.com/yourusername/blog-backend/internal/apperr"
	"github.com/yourusername/blog-backend/internal/config"
	"github.com/yourusername/blog-backend/internal/jobs"
	"github.com/yourusername/blog-backend/internal/mail"
)

// setupJobs はメール送信キューを初期化します。戻り値の関数はジョブ記録用の Redis 接続を閉じます。
func setupJobs(cfg *config.Config, deliver mail.Sender, logger *slog.Logger) (*jobs.Manager, func() error, error) {
	opt, err := redis.ParseURL(cfg.QueueRedisURL)
	if err != nil {
		return nil, nil, err
	}

	redisClient := redis.NewClient(opt)
	ttlMinutes := cfg.JobExpireMinutes
	if ttlMinutes <= 0 {
		ttlMinutes = 60
	}
	store := jobs.NewStore(redisClient, time.Duration(ttlMinutes)*time.Minute)
	manager, err := jobs.NewManager(cfg.QueueRedisURL, store, deliver, logger)
	if err != nil {
		_ = redisClient.Close()
		return nil, nil, err
	}
	return manager, redisClient.Close, nil
}

// recordGetter は jobs.Manager のうちステータス参照に使う部分です。
type recordGetter interface {
	GetRecord(ctx context.Context, jobID string) (*jobs.Record, error)
}

// jobStatusHandler は GET /api/jobs/:id のハンドラーです。
func jobStatusHandler(manager recordGetter) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := c.Param("id")
		if strings.TrimSpace(jobID) == "" {
			apperr.Respond(c, apperr.BadRequest("jobId is required"))
			return
		}

		record, err := manager.GetRecord(c.Request.Context(), jobID)
		if err != nil {
			apperr.Respond(c, apperr.Internal("get job record", err))
			return
		}
		if record == nil {
			apperr.Respond(c, apperr.NotFound("Job not found"))
			return
		}

		payload := gin.H{
			"success":   true,
			"jobId":     record.JobID,
			"kind":      record.Kind,
			"status":    record.Status,
			"attempts":  record.Attempts,
			"updatedAt": record.UpdatedAt,
		}
		if record.Error != nil {
			payload["error"] = record.Error
		}

		c.JSON(http.StatusOK, payload)
	}
}
