package auth

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
	"time"
)

// トークンの有効期間
const (
	VerificationTTL = 24 * time.Hour
	ResetTTL        = time.Hour
)

const (
	verificationLength  = 6
	verificationCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	resetTokenBytes     = 20
)

// NewVerificationToken はメール検証用のコードを生成します。
func NewVerificationToken() (string, error) {
	limit := big.NewInt(int64(len(verificationCharset)))
	code := make([]byte, verificationLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		code[i] = verificationCharset[n.Int64()]
	}
	return string(code), nil
}

// NewResetToken はパスワードリセット用のトークン（160 bit、hex）を生成します。
func NewResetToken() (string, error) {
	buf := make([]byte, resetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
