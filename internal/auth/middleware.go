package auth

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/yourusername/blog-backend/internal/account"
	"github.com/yourusername/blog-backend/internal/apperr"
	"github.com/yourusername/blog-backend/internal/storage"
)

// アクセスガードのメッセージ
const (
	msgNoToken         = "Unauthorized - no token provided"
	msgInvalidToken    = "Unauthorized - invalid token"
	msgAccountNotFound = "Account not found"
)

// ContextAccountKey は gin.Context 上で認証済みアカウントを共有するためのキーです。
const ContextAccountKey = "auth.account"

type accountContextKey struct{}

// AccountFinder は ID でアカウントを取得します。
type AccountFinder interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*account.Account, error)
}

// RequireLogin はセッションクッキーを検証し、アカウントを解決するミドルウェアを返します。
// 解決したアカウントは gin.Context と request の context.Context の両方に格納します。
func RequireLogin(sessions *SessionManager, accounts AccountFinder) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(SessionCookieName)
		if err != nil || token == "" {
			apperr.Abort(c, apperr.Unauthorized(msgNoToken))
			return
		}

		accountID, err := sessions.Validate(token)
		if err != nil {
			apperr.Abort(c, apperr.Unauthorized(msgInvalidToken))
			return
		}

		acc, err := accounts.FindByID(c.Request.Context(), accountID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				apperr.Abort(c, apperr.BadRequest(msgAccountNotFound))
				return
			}
			apperr.Abort(c, apperr.Internal("resolve session account", err))
			return
		}
		acc.PasswordDigest = ""

		c.Set(ContextAccountKey, acc)
		c.Request = c.Request.WithContext(WithAccount(c.Request.Context(), acc))
		c.Next()
	}
}

// WithAccount は認証済みアカウントを context に格納します。
func WithAccount(ctx context.Context, acc *account.Account) context.Context {
	return context.WithValue(ctx, accountContextKey{}, acc)
}

// AccountFromContext は context から認証済みアカウントを取り出します。
func AccountFromContext(ctx context.Context) (*account.Account, bool) {
	acc, ok := ctx.Value(accountContextKey{}).(*account.Account)
	return acc, ok && acc != nil
}

// CurrentAccount は RequireLogin が解決したアカウントを返します。
func CurrentAccount(c *gin.Context) (*account.Account, bool) {
	v, ok := c.Get(ContextAccountKey)
	if !ok {
		return nil, false
	}
	acc, ok := v.(*account.Account)
	return acc, ok && acc != nil
}
