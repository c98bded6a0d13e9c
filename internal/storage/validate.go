package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

// Validator は validate タグによる形式チェックを行い、違反を Problems に変換します。
// メッセージは "Field.tag" をキーに引き、無い場合は汎用の文言になります。
type Validator struct {
	validate *validator.Validate
	messages map[string]string
}

// NewValidator は Validator を作成します。notblank タグは最初から使えます。
func NewValidator(messages map[string]string) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	return &Validator{validate: v, messages: messages}
}

// RegisterString は文字列フィールド用のタグを登録します。パッケージ初期化時に呼んでください。
func (v *Validator) RegisterString(tag string, ok func(string) bool) *Validator {
	err := v.validate.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return ok(fl.Field().String())
	})
	if err != nil {
		panic(err)
	}
	return v
}

// Check は s のタグを検証し、違反をフィールドの宣言順に返します。
func (v *Validator) Check(s any) Problems {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return Problems{err.Error()}
	}

	problems := make(Problems, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msg, ok := v.messages[fe.Field()+"."+fe.Tag()]
		if !ok {
			msg = fmt.Sprintf("%s failed on %s", strings.ToLower(fe.Field()), fe.Tag())
		}
		problems = append(problems, msg)
	}
	return problems
}
