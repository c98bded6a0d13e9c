package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SessionCookieName はセッショントークンを運ぶクッキー名です。
const SessionCookieName = "userToken"

// DefaultSessionTTL はセッションの既定の有効期間です。
const DefaultSessionTTL = 7 * 24 * time.Hour

// ErrInvalidSession はトークンが無い・壊れている・期限切れ・署名不一致のいずれかを表します。
// 理由は呼び出し側に区別させません。
var ErrInvalidSession = errors.New("invalid session")

// Claims はセッショントークンのクレームです。
type Claims struct {
	jwt.RegisteredClaims
	AccountID string `json:"accountId"`
}

// SessionManager はステートレスなセッショントークン（HS256 JWT）の発行と検証を行います。
type SessionManager struct {
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// NewSessionManager は SessionManager を作成します。secure はクッキーの Secure 属性です。
func NewSessionManager(secret []byte, ttl time.Duration, secure bool) *SessionManager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionManager{
		secret: secret,
		ttl:    ttl,
		secure: secure,
		now:    time.Now,
	}
}

// TTL はセッションの有効期間を返します。
func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// Issue はアカウント ID を埋め込んだトークンを発行します。
func (m *SessionManager) Issue(accountID primitive.ObjectID) (string, error) {
	now := m.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		AccountID: accountID.Hex(),
	})
	return token.SignedString(m.secret)
}

// Validate はトークンを検証し、アカウント ID を返します。
func (m *SessionManager) Validate(tokenString string) (primitive.ObjectID, error) {
	if tokenString == "" {
		return primitive.NilObjectID, ErrInvalidSession
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !token.Valid {
		return primitive.NilObjectID, ErrInvalidSession
	}

	id, err := primitive.ObjectIDFromHex(claims.AccountID)
	if err != nil {
		return primitive.NilObjectID, ErrInvalidSession
	}
	return id, nil
}

// SetCookie はセッショントークンをクッキーに設定します。
func (m *SessionManager) SetCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(SessionCookieName, token, int(m.ttl.Seconds()), "/", "", m.secure, true)
}

// ClearCookie はセッションクッキーを削除します。
func (m *SessionManager) ClearCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(SessionCookieName, "", -1, "/", "", m.secure, true)
}
