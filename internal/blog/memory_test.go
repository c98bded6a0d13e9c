package blog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/yourusername/blog-backend/internal/storage"
)

func ptr(s string) *string { return &s }

func TestMemoryPostRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryPostRepository(storage.NewLocalSequencer())
	author := primitive.NewObjectID()

	first := &Post{Title: "one", Content: "body", AuthorID: author}
	require.NoError(t, repo.Create(ctx, first))
	second := &Post{Title: "two", Content: "body", AuthorID: author}
	require.NoError(t, repo.Create(ctx, second))

	assert.Equal(t, int64(1), first.PostID)
	assert.Equal(t, int64(2), second.PostID)
	assert.False(t, first.ID.IsZero())

	posts, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "one", posts[0].Title)
	assert.Equal(t, "two", posts[1].Title)

	time.Sleep(time.Millisecond)
	updated, err := repo.Update(ctx, first.ID, PostUpdate{Content: ptr("edited")})
	require.NoError(t, err)
	assert.Equal(t, "one", updated.Title)
	assert.Equal(t, "edited", updated.Content)
	assert.True(t, updated.UpdatedAt.After(first.UpdatedAt))

	_, err = repo.Update(ctx, first.ID, PostUpdate{Title: ptr("  ")})
	assert.ErrorIs(t, err, storage.ErrValidation)
	got, err := repo.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "one", got.Title)

	require.NoError(t, repo.Delete(ctx, first.ID))
	_, err = repo.Get(ctx, first.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, first.ID), storage.ErrNotFound)
	_, err = repo.Update(ctx, first.ID, PostUpdate{})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestMemoryPostRepositoryRejectsInvalid(t *testing.T) {
	repo := NewMemoryPostRepository(storage.NewLocalSequencer())

	err := repo.Create(context.Background(), &Post{Title: "t"})
	require.ErrorIs(t, err, storage.ErrValidation)
	assert.Contains(t, err.Error(), "content is required")
	assert.Contains(t, err.Error(), "author is required")
}

func TestMemoryPostRepositoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryPostRepository(storage.NewLocalSequencer())
	post := &Post{Title: "t", Content: "c", AuthorID: primitive.NewObjectID()}
	require.NoError(t, repo.Create(ctx, post))

	got, err := repo.Get(ctx, post.ID)
	require.NoError(t, err)
	got.Title = "mutated"

	again, err := repo.Get(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "t", again.Title)
}

func TestMemoryCommentRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryCommentRepository(storage.NewLocalSequencer())
	author := primitive.NewObjectID()
	postA, postB := primitive.NewObjectID(), primitive.NewObjectID()

	for _, postID := range []primitive.ObjectID{postA, postB, postA} {
		require.NoError(t, repo.Create(ctx, &Comment{PostID: postID, Content: "hi", AuthorID: author}))
	}

	all, err := repo.List(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	onA, err := repo.List(ctx, &postA)
	require.NoError(t, err)
	require.Len(t, onA, 2)
	assert.Equal(t, int64(1), onA[0].CommentID)
	assert.Equal(t, int64(3), onA[1].CommentID)

	updated, err := repo.Update(ctx, onA[0].ID, CommentUpdate{Content: ptr("edited")})
	require.NoError(t, err)
	assert.Equal(t, "edited", updated.Content)

	_, err = repo.Update(ctx, onA[0].ID, CommentUpdate{Content: ptr("")})
	assert.ErrorIs(t, err, storage.ErrValidation)

	require.NoError(t, repo.Delete(ctx, onA[0].ID))
	_, err = repo.Get(ctx, onA[0].ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = repo.Create(ctx, &Comment{Content: "orphan", AuthorID: author})
	assert.ErrorIs(t, err, storage.ErrValidation)
}

func TestMemoryRepositoriesHonourCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemoryPostRepository(storage.NewLocalSequencer()).List(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = NewMemoryCommentRepository(storage.NewLocalSequencer()).List(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
