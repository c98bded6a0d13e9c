package jobs

import (
	"context"
	"time"
)

// Status はジョブの実行状態を表します。
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "done"
	StatusFailed    Status = "error"
)

// ErrorInfo はジョブ失敗時のエラー情報を保持します。
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// エラーコード
const (
	ErrorCodeRejected = "MAIL_REJECTED"
	ErrorCodeFailed   = "MAIL_DELIVERY_FAILED"
	ErrorCodeEnqueue  = "MAIL_ENQUEUE_FAILED"
)

// Record はメール送信ジョブの現在状態を表します。
type Record struct {
	JobID     string     `json:"jobId"`
	Kind      string     `json:"kind"`
	Recipient string     `json:"recipient"`
	Status    Status     `json:"status"`
	Attempts  int        `json:"attempts"`
	Error     *ErrorInfo `json:"error,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	ExpiresAt time.Time  `json:"expiresAt"`
}

// RecordStore はジョブ状態の保存先です。Get は存在しない場合に (nil, nil) を返します。
type RecordStore interface {
	Get(ctx context.Context, jobID string) (*Record, error)
	Upsert(ctx context.Context, record *Record) error
	MarkRunning(ctx context.Context, jobID string) error
	MarkDone(ctx context.Context, jobID string) error
	MarkFailed(ctx context.Context, jobID string, errInfo *ErrorInfo, final bool) error
}
