package storage

import (
	"errors"
	"strings"
)

// ストア共通のエラー
var (
	ErrNotFound   = errors.New("document not found")
	ErrDuplicate  = errors.New("duplicate key")
	ErrValidation = errors.New("validation failed")
)

// ValidationError はドキュメントの形式不備を表します。errors.Is(err, ErrValidation) が真になります。
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Problems, "; ")
}

// Is は ErrValidation との比較を可能にします。
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Problems はバリデーションエラーを組み立てるためのヘルパーです。
type Problems []string

// Add は条件が偽のときに問題を追加します。
func (p *Problems) Add(ok bool, problem string) {
	if !ok {
		*p = append(*p, problem)
	}
}

// Err は問題が無ければ nil、あれば *ValidationError を返します。
func (p Problems) Err() error {
	if len(p) == 0 {
		return nil
	}
	return &ValidationError{Problems: p}
}
