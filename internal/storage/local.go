package storage

import (
	"context"
	"sync"
)

// LocalSequencer はプロセス内で連番を払い出します（開発環境・テスト用）。
type LocalSequencer struct {
	mu   sync.Mutex
	seqs map[string]int64
}

// NewLocalSequencer は LocalSequencer を作成します。
func NewLocalSequencer() *LocalSequencer {
	return &LocalSequencer{seqs: make(map[string]int64)}
}

// Next は name の次の連番を返します（1始まり）。
func (s *LocalSequencer) Next(ctx context.Context, name string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seqs[name]++
	return s.seqs[name], nil
}
