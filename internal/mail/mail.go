// Package mail はアカウント関連の通知メールの組み立てと送信を提供します。
package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind はメールの種類です。
type Kind string

const (
	KindVerification   Kind = "verification"
	KindWelcome        Kind = "welcome"
	KindReset          Kind = "reset"
	KindResetConfirmed Kind = "reset-confirmed"
)

// Data のキー
const (
	DataUsername = "username"
	DataCode     = "code"
	DataToken    = "token"
	DataResetURL = "resetURL"
)

// ErrPermanent は再送しても成功しない失敗を表します（宛先不正・テンプレート不明など）。
var ErrPermanent = errors.New("permanent mail failure")

// Message は送信するメールの種類・宛先・差し込みデータです。
type Message struct {
	Kind Kind              `json:"kind"`
	To   string            `json:"to"`
	Data map[string]string `json:"data,omitempty"`
}

// Validate は送信前の最低限のチェックを行います。
func (m Message) Validate() error {
	if strings.TrimSpace(m.To) == "" {
		return fmt.Errorf("%w: recipient is required", ErrPermanent)
	}
	if _, ok := templates[m.Kind]; !ok {
		return fmt.Errorf("%w: unknown kind %q", ErrPermanent, m.Kind)
	}
	return nil
}

// Sender はメールを送信します。
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc は関数を Sender として扱うためのアダプターです。
type SenderFunc func(ctx context.Context, msg Message) error

// Send は f(ctx, msg) を呼び出します。
func (f SenderFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}
