// Package apperr はアプリケーション共通のエラーコードと HTTP レスポンスへの変換を提供します。
package apperr

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"
)

// エラーコード
const (
	CodeBadRequest   = "BAD_REQUEST"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeValidation   = "VALIDATION_FAILED"
	CodeInternal     = "INTERNAL_ERROR"
)

const internalMessage = "Server error"

var statusByCode = map[string]int{
	CodeBadRequest:   http.StatusBadRequest,
	CodeUnauthorized: http.StatusUnauthorized,
	CodeNotFound:     http.StatusNotFound,
	CodeConflict:     http.StatusConflict,
	CodeValidation:   http.StatusUnprocessableEntity,
	CodeInternal:     http.StatusInternalServerError,
}

// BadRequest は入力不備や認証情報の誤りを表すエラーを返します。
func BadRequest(message string) error {
	return oops.Code(CodeBadRequest).Errorf("%s", message)
}

// Unauthorized はセッションが無い、または無効であることを表すエラーを返します。
func Unauthorized(message string) error {
	return oops.Code(CodeUnauthorized).Errorf("%s", message)
}

// NotFound はリソースが存在しないことを表すエラーを返します。
func NotFound(message string) error {
	return oops.Code(CodeNotFound).Errorf("%s", message)
}

// Conflict は一意制約に反することを表すエラーを返します。
func Conflict(message string) error {
	return oops.Code(CodeConflict).Errorf("%s", message)
}

// Validation はストアのバリデーションに失敗したことを表すエラーを返します。
func Validation(cause error) error {
	return oops.Code(CodeValidation).Errorf("Validation failed: %v", cause)
}

// Internal は想定外の失敗を包みます。原因はクライアントには返しません。
func Internal(operation string, cause error) error {
	return oops.Code(CodeInternal).With("operation", operation).Wrap(cause)
}

// CodeOf はエラーのコードを返します。コードを持たないエラーは CodeInternal とみなします。
func CodeOf(err error) string {
	if oopsErr, ok := oops.AsOops(err); ok {
		if code, ok := oopsErr.Code().(string); ok {
			if _, known := statusByCode[code]; known {
				return code
			}
		}
	}
	return CodeInternal
}

// Status はエラーに対応する HTTP ステータスを返します。
func Status(err error) int {
	return statusByCode[CodeOf(err)]
}

// PublicMessage はクライアントに返すメッセージです。内部エラーの原因は含めません。
func PublicMessage(err error) string {
	if CodeOf(err) == CodeInternal {
		return internalMessage
	}
	return err.Error()
}

// Respond はエラーを {success:false, code, message} 形式の JSON で返します。
// 内部エラーは gin のエラー一覧に積み、アクセスログ側で出力します。
func Respond(c *gin.Context, err error) {
	code := CodeOf(err)
	if code == CodeInternal {
		_ = c.Error(err)
	}
	c.JSON(statusByCode[code], gin.H{
		"success": false,
		"code":    code,
		"message": PublicMessage(err),
	})
}

// Abort は Respond と同じ形式で応答し、後続のハンドラーを中断します。
func Abort(c *gin.Context, err error) {
	Respond(c, err)
	c.Abort()
}
