package blog

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/yourusername/blog-backend/internal/storage"
)

// MemoryPostRepository はプロセス内で投稿を保持します（開発環境・テスト用）。
type MemoryPostRepository struct {
	mu    sync.RWMutex
	seq   storage.Sequencer
	posts map[primitive.ObjectID]Post
}

// NewMemoryPostRepository は MemoryPostRepository を作成します。
func NewMemoryPostRepository(seq storage.Sequencer) *MemoryPostRepository {
	return &MemoryPostRepository{seq: seq, posts: make(map[primitive.ObjectID]Post)}
}

// Create は投稿を保存します。
func (r *MemoryPostRepository) Create(ctx context.Context, post *Post) error {
	if err := post.Validate(); err != nil {
		return err
	}
	n, err := r.seq.Next(ctx, postSequence)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	post.ID = primitive.NewObjectID()
	post.PostID = n
	post.CreatedAt = now
	post.UpdatedAt = now

	r.mu.Lock()
	defer r.mu.Unlock()
	r.posts[post.ID] = stripPost(*post)
	return nil
}

// List は投稿を作成順に返します。
func (r *MemoryPostRepository) List(ctx context.Context) ([]*Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	posts := make([]*Post, 0, len(r.posts))
	for _, p := range r.posts {
		p := p
		posts = append(posts, &p)
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].PostID < posts[j].PostID })
	return posts, nil
}

// Get は投稿を取得します。
func (r *MemoryPostRepository) Get(ctx context.Context, id primitive.ObjectID) (*Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.posts[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &p, nil
}

// Update は投稿を部分更新し、更新後の投稿を返します。
func (r *MemoryPostRepository) Update(ctx context.Context, id primitive.ObjectID, update PostUpdate) (*Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	update.Apply(&p)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p.UpdatedAt = time.Now().UTC()
	r.posts[id] = p
	return &p, nil
}

// Delete は投稿を削除します。
func (r *MemoryPostRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.posts[id]; !ok {
		return storage.ErrNotFound
	}
	delete(r.posts, id)
	return nil
}

// MemoryCommentRepository はプロセス内でコメントを保持します（開発環境・テスト用）。
type MemoryCommentRepository struct {
	mu       sync.RWMutex
	seq      storage.Sequencer
	comments map[primitive.ObjectID]Comment
}

// NewMemoryCommentRepository は MemoryCommentRepository を作成します。
func NewMemoryCommentRepository(seq storage.Sequencer) *MemoryCommentRepository {
	return &MemoryCommentRepository{seq: seq, comments: make(map[primitive.ObjectID]Comment)}
}

// Create はコメントを保存します。
func (r *MemoryCommentRepository) Create(ctx context.Context, comment *Comment) error {
	if err := comment.Validate(); err != nil {
		return err
	}
	n, err := r.seq.Next(ctx, commentSequence)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	comment.ID = primitive.NewObjectID()
	comment.CommentID = n
	comment.CreatedAt = now
	comment.UpdatedAt = now

	r.mu.Lock()
	defer r.mu.Unlock()
	r.comments[comment.ID] = stripComment(*comment)
	return nil
}

// List はコメントを作成順に返します。
func (r *MemoryCommentRepository) List(ctx context.Context, postID *primitive.ObjectID) ([]*Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	comments := make([]*Comment, 0, len(r.comments))
	for _, c := range r.comments {
		if postID != nil && c.PostID != *postID {
			continue
		}
		c := c
		comments = append(comments, &c)
	}
	sort.Slice(comments, func(i, j int) bool { return comments[i].CommentID < comments[j].CommentID })
	return comments, nil
}

// Get はコメントを取得します。
func (r *MemoryCommentRepository) Get(ctx context.Context, id primitive.ObjectID) (*Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.comments[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &c, nil
}

// Update はコメントを部分更新し、更新後のコメントを返します。
func (r *MemoryCommentRepository) Update(ctx context.Context, id primitive.ObjectID, update CommentUpdate) (*Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.comments[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	update.Apply(&c)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	c.UpdatedAt = time.Now().UTC()
	r.comments[id] = c
	return &c, nil
}

// Delete はコメントを削除します。
func (r *MemoryCommentRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.comments[id]; !ok {
		return storage.ErrNotFound
	}
	delete(r.comments, id)
	return nil
}

func stripPost(p Post) Post {
	p.Author = nil
	return p
}

func stripComment(c Comment) Comment {
	c.Author = nil
	return c
}
