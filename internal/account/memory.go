package account

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/yourusername/blog-backend/internal/storage"
)

// MemoryRepository はプロセス内でアカウントを保持する Repository 実装です（開発環境・テスト用）。
// email と username の一意制約を MongoDB と同様に再現します。
type MemoryRepository struct {
	mu       sync.RWMutex
	seq      storage.Sequencer
	accounts map[primitive.ObjectID]*Account
}

// NewMemoryRepository は MemoryRepository を作成します。
func NewMemoryRepository(seq storage.Sequencer) *MemoryRepository {
	return &MemoryRepository{
		seq:      seq,
		accounts: make(map[primitive.ObjectID]*Account),
	}
}

// Create はアカウントを保存します。
func (r *MemoryRepository) Create(ctx context.Context, account *Account) error {
	if err := account.Validate(); err != nil {
		return err
	}
	userID, err := r.seq.Next(ctx, sequenceName)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkUnique(account, primitive.NilObjectID); err != nil {
		return err
	}

	now := time.Now().UTC()
	account.ID = primitive.NewObjectID()
	account.UserID = userID
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	if account.LastLoginAt.IsZero() {
		account.LastLoginAt = account.CreatedAt
	}
	account.UpdatedAt = now
	r.accounts[account.ID] = account.Clone()
	return nil
}

// Update はアカウントを置き換えます。
func (r *MemoryRepository) Update(ctx context.Context, account *Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := account.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.accounts[account.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if err := r.checkUnique(account, account.ID); err != nil {
		return err
	}

	account.UserID = existing.UserID
	account.CreatedAt = existing.CreatedAt
	account.UpdatedAt = time.Now().UTC()
	r.accounts[account.ID] = account.Clone()
	return nil
}

// FindByID は ID でアカウントを取得します。
func (r *MemoryRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*Account, error) {
	return r.findOne(ctx, func(a *Account) bool { return a.ID == id })
}

// FindByEmail はメールアドレスでアカウントを取得します。
func (r *MemoryRepository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	return r.findOne(ctx, func(a *Account) bool { return a.Email == email })
}

// FindByEmailOrUsername は email か username が一致するアカウントを取得します。
func (r *MemoryRepository) FindByEmailOrUsername(ctx context.Context, email, username string) (*Account, error) {
	if email == "" && username == "" {
		return nil, storage.ErrNotFound
	}
	return r.findOne(ctx, func(a *Account) bool {
		return (email != "" && a.Email == email) || (username != "" && a.Username == username)
	})
}

// FindByVerificationToken は有効な検証トークンを持つアカウントを取得します。
func (r *MemoryRepository) FindByVerificationToken(ctx context.Context, token string, now time.Time) (*Account, error) {
	if token == "" {
		return nil, storage.ErrNotFound
	}
	return r.findOne(ctx, func(a *Account) bool {
		return a.VerificationToken == token &&
			a.VerificationExpiresAt != nil && a.VerificationExpiresAt.After(now)
	})
}

// FindByResetToken は有効なリセットトークンを持つアカウントを取得します。
func (r *MemoryRepository) FindByResetToken(ctx context.Context, token string, now time.Time) (*Account, error) {
	if token == "" {
		return nil, storage.ErrNotFound
	}
	return r.findOne(ctx, func(a *Account) bool {
		return a.ResetToken == token &&
			a.ResetExpiresAt != nil && a.ResetExpiresAt.After(now)
	})
}

// Usernames は ID に対応するユーザー名を返します。
func (r *MemoryRepository) Usernames(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make(map[primitive.ObjectID]string, len(ids))
	for _, id := range ids {
		if a, ok := r.accounts[id]; ok {
			names[id] = a.Username
		}
	}
	return names, nil
}

// Delete はアカウントを削除します。アカウント削除 API は無く、テストでのみ使用します。
func (r *MemoryRepository) Delete(id primitive.ObjectID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.accounts, id)
}

func (r *MemoryRepository) findOne(ctx context.Context, match func(*Account) bool) (*Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.accounts {
		if match(a) {
			return a.Clone(), nil
		}
	}
	return nil, storage.ErrNotFound
}

// checkUnique は self 以外に email / username が重複するアカウントが無いかを確認します。
// 呼び出し側でロックを保持している必要があります。
func (r *MemoryRepository) checkUnique(account *Account, self primitive.ObjectID) error {
	for id, a := range r.accounts {
		if id == self {
			continue
		}
		if a.Email == account.Email {
			return fmt.Errorf("%w: email", storage.ErrDuplicate)
		}
		if a.Username == account.Username {
			return fmt.Errorf("%w: username", storage.ErrDuplicate)
		}
	}
	return nil
}
