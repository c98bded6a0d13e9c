// Package auth はアカウント登録・メール検証・ログイン・パスワードリセットと、
// クッキーによるセッション認証を提供します。
package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/yourusername/blog-backend/internal/account"
	"github.com/yourusername/blog-backend/internal/apperr"
	"github.com/yourusername/blog-backend/internal/logging"
	"github.com/yourusername/blog-backend/internal/mail"
	"github.com/yourusername/blog-backend/internal/metrics"
	"github.com/yourusername/blog-backend/internal/storage"
)

// クライアントに返すメッセージ
const (
	msgRegisterRequired   = "Email, password, and username are required"
	msgUserExists         = "User already exists"
	msgInvalidCode        = "Invalid or expired verification code"
	msgLoginRequired      = "Email or username is required"
	msgInvalidCredentials = "Invalid username/email or password"
	msgEmailRequired      = "Email is required"
	msgEmailNotFound      = "Email not found"
	msgResetRequired      = "Token and password are required"
	msgInvalidResetToken  = "Invalid or expired token"
)

// 存在しないアカウントでのログイン時に照合するパスワード
const dummyPassword = "dummy-password-for-timing"

// RegisterInput は登録リクエストです。
type RegisterInput struct {
	Email    string
	Password string
	Username string
}

// LoginInput はログインリクエストです。Email と Username はどちらか一方で構いません。
type LoginInput struct {
	Email    string
	Username string
	Password string
}

// Session は発行済みセッションとそのアカウントです。
type Session struct {
	Account *account.Account
	Token   string
}

// Service は認証ライフサイクルの各操作をまとめた構造体です。
type Service struct {
	accounts  account.Repository
	hasher    PasswordHasher
	sessions  *SessionManager
	mailer    mail.Sender
	metrics   *metrics.Metrics
	logger    *slog.Logger
	clientURL string
	now       func() time.Time

	newVerificationToken func() (string, error)
	newResetToken        func() (string, error)

	dummyOnce   sync.Once
	dummyDigest string
}

// Option は Service の任意設定です。
type Option func(*Service)

// WithMetrics はメトリクスの記録先を設定します。
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger はロガーを設定します。
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithClientURL はメール内のリンクに使うフロントエンドの URL を設定します。
func WithClientURL(u string) Option {
	return func(s *Service) { s.clientURL = strings.TrimRight(u, "/") }
}

// WithClock は現在時刻の取得方法を差し替えます。
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService は Service を作成します。
func NewService(accounts account.Repository, hasher PasswordHasher, sessions *SessionManager, mailer mail.Sender, opts ...Option) *Service {
	s := &Service{
		accounts:             accounts,
		hasher:               hasher,
		sessions:             sessions,
		mailer:               mailer,
		logger:               slog.Default(),
		now:                  time.Now,
		newVerificationToken: NewVerificationToken,
		newResetToken:        NewResetToken,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register はアカウントを作成します。未検証のアカウントが同じメールで存在する場合は、
// 同じ ID のまま上書きして検証コードを再発行します。
func (s *Service) Register(ctx context.Context, in RegisterInput) (_ *Session, err error) {
	defer s.observe("register", &err)

	email := normalizeEmail(in.Email)
	username := strings.TrimSpace(in.Username)
	if email == "" || in.Password == "" || username == "" {
		return nil, apperr.BadRequest(msgRegisterRequired)
	}

	existing, err := s.accounts.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.Internal("find account by email", err)
	}
	if existing != nil && existing.IsVerified {
		return nil, apperr.Conflict(msgUserExists)
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, hashError(err)
	}
	code, err := s.newVerificationToken()
	if err != nil {
		return nil, apperr.Internal("generate verification token", err)
	}

	acc := existing
	if acc == nil {
		acc = &account.Account{Email: email}
	}
	acc.PasswordDigest = digest
	acc.Username = username
	acc.SetVerification(code, s.now().Add(VerificationTTL))

	if existing == nil {
		err = s.accounts.Create(ctx, acc)
	} else {
		err = s.accounts.Update(ctx, acc)
	}
	if err != nil {
		return nil, storeError("save account", err)
	}

	token, err := s.sessions.Issue(acc.ID)
	if err != nil {
		return nil, apperr.Internal("issue session", err)
	}

	if err := s.mailer.Send(ctx, mail.Message{
		Kind: mail.KindVerification,
		To:   acc.Email,
		Data: map[string]string{mail.DataUsername: acc.Username, mail.DataCode: code},
	}); err != nil {
		return nil, apperr.Internal("send verification email", err)
	}

	s.logger.InfoContext(ctx, "account registered", "account_id", acc.ID.Hex(), "user_id", acc.UserID, "reregistered", existing != nil)
	return &Session{Account: acc, Token: token}, nil
}

// Verify は検証コードでメールアドレスを確認済みにします。
func (s *Service) Verify(ctx context.Context, code string) (_ *account.Account, err error) {
	defer s.observe("verify", &err)

	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperr.BadRequest(msgInvalidCode)
	}

	acc, err := s.accounts.FindByVerificationToken(ctx, code, s.now())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.BadRequest(msgInvalidCode)
		}
		return nil, apperr.Internal("find account by verification token", err)
	}

	acc.MarkVerified()
	if err := s.accounts.Update(ctx, acc); err != nil {
		return nil, storeError("save account", err)
	}

	if err := s.mailer.Send(ctx, mail.Message{
		Kind: mail.KindWelcome,
		To:   acc.Email,
		Data: map[string]string{mail.DataUsername: acc.Username},
	}); err != nil {
		return nil, apperr.Internal("send welcome email", err)
	}

	s.logger.InfoContext(ctx, "account verified", "account_id", acc.ID.Hex())
	return acc, nil
}

// Login はメールアドレスまたはユーザー名とパスワードで認証し、セッションを発行します。
// 存在しない識別子とパスワード誤りは同じエラーになります。
func (s *Service) Login(ctx context.Context, in LoginInput) (_ *Session, err error) {
	defer s.observe("login", &err)

	email := normalizeEmail(in.Email)
	username := strings.TrimSpace(in.Username)
	if email == "" && username == "" {
		return nil, apperr.BadRequest(msgLoginRequired)
	}

	acc, err := s.accounts.FindByEmailOrUsername(ctx, email, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.hasher.Verify(in.Password, s.dummy())
			return nil, apperr.BadRequest(msgInvalidCredentials)
		}
		return nil, apperr.Internal("find account for login", err)
	}
	if !s.hasher.Verify(in.Password, acc.PasswordDigest) {
		return nil, apperr.BadRequest(msgInvalidCredentials)
	}

	token, err := s.sessions.Issue(acc.ID)
	if err != nil {
		return nil, apperr.Internal("issue session", err)
	}

	acc.LastLoginAt = s.now().UTC()
	if err := s.accounts.Update(ctx, acc); err != nil {
		return nil, storeError("save account", err)
	}

	s.logger.InfoContext(ctx, "account logged in", "account_id", acc.ID.Hex())
	return &Session{Account: acc, Token: token}, nil
}

// ForgotPassword はリセットトークンを発行してメールで送ります。トークンは戻り値に含めません。
func (s *Service) ForgotPassword(ctx context.Context, email string) (err error) {
	defer s.observe("forgot", &err)

	email = normalizeEmail(email)
	if email == "" {
		return apperr.BadRequest(msgEmailRequired)
	}

	acc, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.NotFound(msgEmailNotFound)
		}
		return apperr.Internal("find account by email", err)
	}

	token, err := s.newResetToken()
	if err != nil {
		return apperr.Internal("generate reset token", err)
	}
	acc.SetReset(token, s.now().Add(ResetTTL))
	if err := s.accounts.Update(ctx, acc); err != nil {
		return storeError("save account", err)
	}

	if err := s.mailer.Send(ctx, mail.Message{
		Kind: mail.KindReset,
		To:   acc.Email,
		Data: map[string]string{
			mail.DataUsername: acc.Username,
			mail.DataToken:    token,
			mail.DataResetURL: s.clientURL + "/reset-password/" + token,
		},
	}); err != nil {
		return apperr.Internal("send reset email", err)
	}

	s.logger.InfoContext(ctx, "password reset requested", "account_id", acc.ID.Hex())
	return nil
}

// ResetPassword はリセットトークンを使ってパスワードを変更します。トークンは一度しか使えません。
func (s *Service) ResetPassword(ctx context.Context, token, password string) (err error) {
	defer s.observe("reset", &err)

	token = strings.TrimSpace(token)
	if token == "" || password == "" {
		return apperr.BadRequest(msgResetRequired)
	}

	acc, err := s.accounts.FindByResetToken(ctx, token, s.now())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.BadRequest(msgInvalidResetToken)
		}
		return apperr.Internal("find account by reset token", err)
	}

	digest, err := s.hasher.Hash(password)
	if err != nil {
		return hashError(err)
	}
	acc.PasswordDigest = digest
	acc.ClearReset()
	if err := s.accounts.Update(ctx, acc); err != nil {
		return storeError("save account", err)
	}

	if err := s.mailer.Send(ctx, mail.Message{
		Kind: mail.KindResetConfirmed,
		To:   acc.Email,
	}); err != nil {
		return apperr.Internal("send reset confirmation email", err)
	}

	s.logger.InfoContext(ctx, "password reset", "account_id", acc.ID.Hex())
	return nil
}

// dummy は照合用のダミーダイジェストを返します。初回のみハッシュを計算します。
func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		digest, err := s.hasher.Hash(dummyPassword)
		if err != nil {
			logging.LogError(s.logger, "failed to prepare dummy digest", err)
			return
		}
		s.dummyDigest = digest
	})
	return s.dummyDigest
}

func (s *Service) observe(operation string, errp *error) {
	outcome := metrics.OutcomeSuccess
	if err := *errp; err != nil {
		outcome = metrics.OutcomeFailure
		if apperr.CodeOf(err) == apperr.CodeInternal {
			outcome = metrics.OutcomeError
			logging.LogError(s.logger, operation+" failed", err)
		}
	}
	s.metrics.ObserveAuth(operation, outcome)
}

// storeError はストアの失敗を応答用のエラーに変換します。
func storeError(operation string, err error) error {
	switch {
	case errors.Is(err, storage.ErrValidation):
		return apperr.Validation(err)
	case errors.Is(err, storage.ErrDuplicate):
		return apperr.Conflict(msgUserExists)
	default:
		return apperr.Internal(operation, err)
	}
}

// hashError はハッシュ化の失敗を応答用のエラーに変換します。長すぎるパスワードは入力不備です。
func hashError(err error) error {
	if errors.Is(err, ErrPasswordTooLong) {
		return apperr.Validation(err)
	}
	return apperr.Internal("hash password", err)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
