// Package blog は投稿とコメントのモデル、永続化、HTTP ハンドラーを提供します。
package blog

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/yourusername/blog-backend/internal/storage"
)

// 連番カウンター名
const (
	postSequence    = "postId"
	commentSequence = "commentId"
)

var modelValidator = storage.NewValidator(map[string]string{
	"Title.notblank":    "title is required",
	"Content.notblank":  "content is required",
	"PostID.required":   "post_id is required",
	"AuthorID.required": "author is required",
})

// Author は投稿者の公開情報です。
type Author struct {
	ID       primitive.ObjectID `json:"id"`
	Username string             `json:"username"`
}

// Post は投稿です。
type Post struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PostID    int64              `bson:"postId" json:"postId"`
	Title     string             `bson:"title" json:"title" validate:"notblank"`
	Content   string             `bson:"content" json:"content" validate:"notblank"`
	AuthorID  primitive.ObjectID `bson:"author_id" json:"authorId" validate:"required"`
	Author    *Author            `bson:"-" json:"author,omitempty"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Validate は保存前の形式チェックを行います。
func (p *Post) Validate() error {
	return modelValidator.Check(p).Err()
}

// PostUpdate は投稿の部分更新です。nil のフィールドは変更しません。
type PostUpdate struct {
	Title   *string
	Content *string
}

// Apply は更新内容を反映します。
func (u PostUpdate) Apply(p *Post) {
	if u.Title != nil {
		p.Title = *u.Title
	}
	if u.Content != nil {
		p.Content = *u.Content
	}
}

// Comment は投稿へのコメントです。
type Comment struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CommentID int64              `bson:"commentId" json:"commentId"`
	PostID    primitive.ObjectID `bson:"post_id" json:"postId" validate:"required"`
	Content   string             `bson:"content" json:"content" validate:"notblank"`
	AuthorID  primitive.ObjectID `bson:"author_id" json:"authorId" validate:"required"`
	Author    *Author            `bson:"-" json:"author,omitempty"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Validate は保存前の形式チェックを行います。
func (c *Comment) Validate() error {
	return modelValidator.Check(c).Err()
}

// CommentUpdate はコメントの部分更新です。
type CommentUpdate struct {
	Content *string
}

// Apply は更新内容を反映します。
func (u CommentUpdate) Apply(c *Comment) {
	if u.Content != nil {
		c.Content = *u.Content
	}
}

// PostRepository は投稿の永続化を担います。見つからない場合は storage.ErrNotFound を返します。
type PostRepository interface {
	Create(ctx context.Context, post *Post) error
	List(ctx context.Context) ([]*Post, error)
	Get(ctx context.Context, id primitive.ObjectID) (*Post, error)
	Update(ctx context.Context, id primitive.ObjectID, update PostUpdate) (*Post, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// CommentRepository はコメントの永続化を担います。
type CommentRepository interface {
	Create(ctx context.Context, comment *Comment) error
	// List はコメントを返します。postID が nil の場合は全件です。
	List(ctx context.Context, postID *primitive.ObjectID) ([]*Comment, error)
	Get(ctx context.Context, id primitive.ObjectID) (*Comment, error)
	Update(ctx context.Context, id primitive.ObjectID, update CommentUpdate) (*Comment, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}
