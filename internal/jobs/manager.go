// Package jobs はメール送信を非同期ジョブとして扱うキューと、その状態管理を提供します。
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/yourusername/blog-backend/internal/mail"
)

const (
	taskTypeMail = "mail:deliver"
	queueMail    = "mail"
	maxRetry     = 3
)

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// Manager はメール送信ジョブの投入と状態管理を担います。
// mail.Sender を実装しており、Send はキューへの投入のみを行って即座に戻ります。
type Manager struct {
	client  enqueuer
	server  *asynq.Server
	mux     *asynq.ServeMux
	store   RecordStore
	deliver mail.Sender
	logger  *slog.Logger
}

// TaskPayload はメール送信ジョブのペイロードです。
type TaskPayload struct {
	JobID   string       `json:"jobId"`
	Message mail.Message `json:"message"`
}

// NewManager は Manager を初期化します。deliver はワーカーが実際の送信に使う Sender です。
func NewManager(redisURL string, store RecordStore, deliver mail.Sender, logger *slog.Logger) (*Manager, error) {
	if store == nil {
		return nil, errors.New("store is nil")
	}
	if deliver == nil {
		return nil, errors.New("deliver is nil")
	}
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	server := asynq.NewServer(
		opt,
		asynq.Config{
			Concurrency: 4,
			Queues: map[string]int{
				queueMail: 1,
			},
			Logger: newAsynqLogger(logger),
		},
	)

	manager := newManager(asynq.NewClient(opt), store, deliver, logger)
	manager.server = server
	return manager, nil
}

func newManager(client enqueuer, store RecordStore, deliver mail.Sender, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		client:  client,
		mux:     asynq.NewServeMux(),
		store:   store,
		deliver: deliver,
		logger:  logger,
	}
	m.mux.HandleFunc(taskTypeMail, m.handleMailTask)
	return m
}

// StartWorkers は Asynq サーバーをバックグラウンドで起動します。
func (m *Manager) StartWorkers() {
	if m.server == nil {
		return
	}
	go func() {
		if err := m.server.Run(m.mux); err != nil && !errors.Is(err, asynq.ErrServerClosed) {
			m.logger.Error("asynq server stopped with error", "error", err)
		}
	}()
}

// Shutdown はサーバーとクライアントを閉じます。
func (m *Manager) Shutdown(ctx context.Context) error {
	if m.server != nil {
		m.server.Shutdown()
	}
	return m.client.Close()
}

// Send はメール送信ジョブをキューに投入します。
func (m *Manager) Send(ctx context.Context, msg mail.Message) error {
	_, err := m.Enqueue(ctx, msg)
	return err
}

// Enqueue はジョブをキューに投入し、ジョブ ID を返します。
func (m *Manager) Enqueue(ctx context.Context, msg mail.Message) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}

	payload := &TaskPayload{
		JobID:   uuid.NewString(),
		Message: msg,
	}
	record := &Record{
		JobID:     payload.JobID,
		Kind:      string(msg.Kind),
		Recipient: msg.To,
		Status:    StatusQueued,
	}
	if err := m.store.Upsert(ctx, record); err != nil {
		return "", err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	task := asynq.NewTask(taskTypeMail, body)
	if _, err := m.client.EnqueueContext(ctx, task,
		asynq.Queue(queueMail),
		asynq.TaskID(payload.JobID),
		asynq.MaxRetry(maxRetry),
	); err != nil {
		// キューに載らなかったジョブは実行されないため、記録を失敗で確定させる
		if markErr := m.store.MarkFailed(context.WithoutCancel(ctx), payload.JobID, &ErrorInfo{
			Code:    ErrorCodeEnqueue,
			Message: err.Error(),
		}, true); markErr != nil {
			m.logger.Warn("failed to mark job failed", "job_id", payload.JobID, "error", markErr)
		}
		return "", err
	}
	m.logger.Debug("mail job enqueued", "job_id", payload.JobID, "kind", msg.Kind)
	return payload.JobID, nil
}

// GetRecord はジョブ情報を取得します。
func (m *Manager) GetRecord(ctx context.Context, jobID string) (*Record, error) {
	return m.store.Get(ctx, jobID)
}
