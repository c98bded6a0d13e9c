// Package account はアカウント（認証情報）のモデルと永続化を提供します。
package account

import (
	"context"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/yourusername/blog-backend/internal/storage"
)

// 連番カウンター名
const sequenceName = "userId"

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

var accountValidator = storage.NewValidator(map[string]string{
	"Username.min":            "username must be between 3 and 30 characters",
	"Username.max":            "username must be between 3 and 30 characters",
	"Username.username":       "username may contain only letters, numbers, '.', '-' and '_'",
	"Email.email":             "email is invalid",
	"PasswordDigest.required": "password is required",
}).RegisterString("username", usernamePattern.MatchString)

// Account はユーザーのアカウント情報です。
// パスワードダイジェストと各種トークンは JSON に出力しません。
type Account struct {
	ID                    primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID                int64              `bson:"userId" json:"userId"`
	Username              string             `bson:"username" json:"username" validate:"min=3,max=30,username"`
	Email                 string             `bson:"email" json:"email" validate:"email"`
	PasswordDigest        string             `bson:"password" json:"-" validate:"required"`
	IsVerified            bool               `bson:"isVerified" json:"isVerified"`
	VerificationToken     string             `bson:"verificationToken,omitempty" json:"-"`
	VerificationExpiresAt *time.Time         `bson:"verificationExpireAt,omitempty" json:"verificationExpiresAt,omitempty"`
	ResetToken            string             `bson:"resetPasswordToken,omitempty" json:"-"`
	ResetExpiresAt        *time.Time         `bson:"resetPasswordExpireAt,omitempty" json:"-"`
	LastLoginAt           time.Time          `bson:"lastLogin" json:"lastLoginAt"`
	CreatedAt             time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt             time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// SetVerification は検証トークンと有効期限を設定します。
func (a *Account) SetVerification(token string, expiresAt time.Time) {
	a.VerificationToken = token
	a.VerificationExpiresAt = &expiresAt
}

// MarkVerified は検証済みにし、検証トークンを破棄します。
func (a *Account) MarkVerified() {
	a.IsVerified = true
	a.VerificationToken = ""
	a.VerificationExpiresAt = nil
}

// SetReset はパスワードリセットトークンと有効期限を設定します。
func (a *Account) SetReset(token string, expiresAt time.Time) {
	a.ResetToken = token
	a.ResetExpiresAt = &expiresAt
}

// ClearReset はパスワードリセットトークンを破棄します。
func (a *Account) ClearReset() {
	a.ResetToken = ""
	a.ResetExpiresAt = nil
}

// Clone はポインタフィールドも含めて複製します。
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	if a.VerificationExpiresAt != nil {
		t := *a.VerificationExpiresAt
		c.VerificationExpiresAt = &t
	}
	if a.ResetExpiresAt != nil {
		t := *a.ResetExpiresAt
		c.ResetExpiresAt = &t
	}
	return &c
}

// Validate は保存前の形式チェックを行います。
// フィールド単位の制約はタグで、フィールド間の整合性はここで確認します。
func (a *Account) Validate() error {
	p := accountValidator.Check(a)
	p.Add((a.VerificationToken == "") == (a.VerificationExpiresAt == nil),
		"verification token and expiry must be set together")
	p.Add((a.ResetToken == "") == (a.ResetExpiresAt == nil),
		"reset token and expiry must be set together")
	p.Add(!a.IsVerified || a.VerificationToken == "",
		"verified account cannot carry a verification token")
	return p.Err()
}

// Repository はアカウントの永続化を担います。
// 見つからない場合は storage.ErrNotFound、一意制約違反は storage.ErrDuplicate、
// 形式不備は storage.ErrValidation を返します。
type Repository interface {
	// Create は ID と表示用連番を採番して保存します。
	Create(ctx context.Context, account *Account) error

	// Update は ID が一致するアカウントを置き換えます。
	Update(ctx context.Context, account *Account) error

	FindByID(ctx context.Context, id primitive.ObjectID) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)

	// FindByEmailOrUsername は email か username のいずれかが一致するアカウントを返します。
	// 空の値は条件に含めません。
	FindByEmailOrUsername(ctx context.Context, email, username string) (*Account, error)

	// FindByVerificationToken は token が一致し、有効期限が now より後のアカウントを返します。
	FindByVerificationToken(ctx context.Context, token string, now time.Time) (*Account, error)

	// FindByResetToken は token が一致し、有効期限が now より後のアカウントを返します。
	FindByResetToken(ctx context.Context, token string, now time.Time) (*Account, error)

	// Usernames は ID からユーザー名への対応を返します。存在しない ID は含まれません。
	Usernames(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]string, error)
}
