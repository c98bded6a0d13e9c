package blog

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/yourusername/blog-backend/internal/apperr"
	"github.com/yourusername/blog-backend/internal/auth"
	"github.com/yourusername/blog-backend/internal/storage"
)

const (
	msgInvalidBody     = "Invalid request body"
	msgPostNotFound    = "Post not found"
	msgCommentNotFound = "Comment not found"
)

// UsernameResolver は投稿者 ID からユーザー名を引きます。account.Repository が満たします。
type UsernameResolver interface {
	Usernames(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]string, error)
}

// Handler は /api/posts と /api/comment のハンドラーです。
// ルートは auth.RequireLogin の後ろに登録される前提です。
type Handler struct {
	posts    PostRepository
	comments CommentRepository
	authors  UsernameResolver
}

// NewHandler は Handler を作成します。
func NewHandler(posts PostRepository, comments CommentRepository, authors UsernameResolver) *Handler {
	return &Handler{
		posts:    posts,
		comments: comments,
		authors:  authors,
	}
}

// RegisterRoutes は投稿とコメントの API をルーターグループに登録します。
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	posts := rg.Group("/posts")
	posts.POST("", h.CreatePost)
	posts.GET("", h.ListPosts)
	posts.GET("/:id", h.GetPost)
	posts.PUT("/:id", h.UpdatePost)
	posts.DELETE("/:id", h.DeletePost)

	comments := rg.Group("/comment")
	comments.POST("", h.CreateComment)
	comments.GET("", h.ListComments)
	comments.GET("/:id", h.GetComment)
	comments.PUT("/:id", h.UpdateComment)
	comments.DELETE("/:id", h.DeleteComment)
}

type postRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

// CreatePost は POST /api/posts のハンドラーです。
func (h *Handler) CreatePost(c *gin.Context) {
	caller, ok := auth.CurrentAccount(c)
	if !ok {
		apperr.Respond(c, apperr.Unauthorized("Unauthorized - no token provided"))
		return
	}
	var req postRequest
	if !bindJSON(c, &req) {
		return
	}

	post := &Post{
		Title:    deref(req.Title),
		Content:  deref(req.Content),
		AuthorID: caller.ID,
	}
	if err := h.posts.Create(c.Request.Context(), post); err != nil {
		apperr.Respond(c, storeError(err, "create post", msgPostNotFound))
		return
	}
	post.Author = &Author{ID: caller.ID, Username: caller.Username}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"post":    post,
	})
}

// ListPosts は GET /api/posts のハンドラーです。
func (h *Handler) ListPosts(c *gin.Context) {
	posts, err := h.posts.List(c.Request.Context())
	if err != nil {
		apperr.Respond(c, storeError(err, "list posts", msgPostNotFound))
		return
	}
	if err := h.populatePosts(c.Request.Context(), posts...); err != nil {
		apperr.Respond(c, apperr.Internal("populate authors", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"posts":   posts,
	})
}

// GetPost は GET /api/posts/:id のハンドラーです。
func (h *Handler) GetPost(c *gin.Context) {
	id, ok := pathID(c, msgPostNotFound)
	if !ok {
		return
	}
	post, err := h.posts.Get(c.Request.Context(), id)
	if err != nil {
		apperr.Respond(c, storeError(err, "get post", msgPostNotFound))
		return
	}
	if err := h.populatePosts(c.Request.Context(), post); err != nil {
		apperr.Respond(c, apperr.Internal("populate authors", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"post":    post,
	})
}

// UpdatePost は PUT /api/posts/:id のハンドラーです。指定されたフィールドのみ更新します。
func (h *Handler) UpdatePost(c *gin.Context) {
	id, ok := pathID(c, msgPostNotFound)
	if !ok {
		return
	}
	var req postRequest
	if !bindJSON(c, &req) {
		return
	}

	post, err := h.posts.Update(c.Request.Context(), id, PostUpdate(req))
	if err != nil {
		apperr.Respond(c, storeError(err, "update post", msgPostNotFound))
		return
	}
	if err := h.populatePosts(c.Request.Context(), post); err != nil {
		apperr.Respond(c, apperr.Internal("populate authors", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"post":    post,
	})
}

// DeletePost は DELETE /api/posts/:id のハンドラーです。
func (h *Handler) DeletePost(c *gin.Context) {
	id, ok := pathID(c, msgPostNotFound)
	if !ok {
		return
	}
	if err := h.posts.Delete(c.Request.Context(), id); err != nil {
		apperr.Respond(c, storeError(err, "delete post", msgPostNotFound))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Post deleted successfully",
	})
}

type commentRequest struct {
	PostID  string  `json:"post_id"`
	Content *string `json:"content"`
}

// CreateComment は POST /api/comment のハンドラーです。対象の投稿が存在しない場合は 404 を返します。
func (h *Handler) CreateComment(c *gin.Context) {
	caller, ok := auth.CurrentAccount(c)
	if !ok {
		apperr.Respond(c, apperr.Unauthorized("Unauthorized - no token provided"))
		return
	}
	var req commentRequest
	if !bindJSON(c, &req) {
		return
	}

	comment := &Comment{
		Content:  deref(req.Content),
		AuthorID: caller.ID,
	}
	if req.PostID != "" {
		postID, err := primitive.ObjectIDFromHex(req.PostID)
		if err != nil {
			apperr.Respond(c, apperr.NotFound(msgPostNotFound))
			return
		}
		comment.PostID = postID
	}
	if err := comment.Validate(); err != nil {
		apperr.Respond(c, apperr.Validation(err))
		return
	}
	if _, err := h.posts.Get(c.Request.Context(), comment.PostID); err != nil {
		apperr.Respond(c, storeError(err, "get post", msgPostNotFound))
		return
	}

	if err := h.comments.Create(c.Request.Context(), comment); err != nil {
		apperr.Respond(c, storeError(err, "create comment", msgCommentNotFound))
		return
	}
	comment.Author = &Author{ID: caller.ID, Username: caller.Username}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"comment": comment,
	})
}

// ListComments は GET /api/comment のハンドラーです。?post_id= で投稿を絞り込めます。
func (h *Handler) ListComments(c *gin.Context) {
	var filter *primitive.ObjectID
	if raw := c.Query("post_id"); raw != "" {
		postID, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			c.JSON(http.StatusOK, gin.H{
				"success":  true,
				"comments": []*Comment{},
			})
			return
		}
		filter = &postID
	}

	comments, err := h.comments.List(c.Request.Context(), filter)
	if err != nil {
		apperr.Respond(c, storeError(err, "list comments", msgCommentNotFound))
		return
	}
	if err := h.populateComments(c.Request.Context(), comments...); err != nil {
		apperr.Respond(c, apperr.Internal("populate authors", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"comments": comments,
	})
}

// GetComment は GET /api/comment/:id のハンドラーです。
func (h *Handler) GetComment(c *gin.Context) {
	id, ok := pathID(c, msgCommentNotFound)
	if !ok {
		return
	}
	comment, err := h.comments.Get(c.Request.Context(), id)
	if err != nil {
		apperr.Respond(c, storeError(err, "get comment", msgCommentNotFound))
		return
	}
	if err := h.populateComments(c.Request.Context(), comment); err != nil {
		apperr.Respond(c, apperr.Internal("populate authors", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"comment": comment,
	})
}

type commentUpdateRequest struct {
	Content *string `json:"content"`
}

// UpdateComment は PUT /api/comment/:id のハンドラーです。
func (h *Handler) UpdateComment(c *gin.Context) {
	id, ok := pathID(c, msgCommentNotFound)
	if !ok {
		return
	}
	var req commentUpdateRequest
	if !bindJSON(c, &req) {
		return
	}

	comment, err := h.comments.Update(c.Request.Context(), id, CommentUpdate(req))
	if err != nil {
		apperr.Respond(c, storeError(err, "update comment", msgCommentNotFound))
		return
	}
	if err := h.populateComments(c.Request.Context(), comment); err != nil {
		apperr.Respond(c, apperr.Internal("populate authors", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"comment": comment,
	})
}

// DeleteComment は DELETE /api/comment/:id のハンドラーです。
func (h *Handler) DeleteComment(c *gin.Context) {
	id, ok := pathID(c, msgCommentNotFound)
	if !ok {
		return
	}
	if err := h.comments.Delete(c.Request.Context(), id); err != nil {
		apperr.Respond(c, storeError(err, "delete comment", msgCommentNotFound))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Comment deleted successfully",
	})
}

func (h *Handler) populatePosts(ctx context.Context, posts ...*Post) error {
	ids := make([]primitive.ObjectID, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.AuthorID)
	}
	names, err := h.resolve(ctx, ids)
	if err != nil {
		return err
	}
	for _, p := range posts {
		p.Author = &Author{ID: p.AuthorID, Username: names[p.AuthorID]}
	}
	return nil
}

func (h *Handler) populateComments(ctx context.Context, comments ...*Comment) error {
	ids := make([]primitive.ObjectID, 0, len(comments))
	for _, cm := range comments {
		ids = append(ids, cm.AuthorID)
	}
	names, err := h.resolve(ctx, ids)
	if err != nil {
		return err
	}
	for _, cm := range comments {
		cm.Author = &Author{ID: cm.AuthorID, Username: names[cm.AuthorID]}
	}
	return nil
}

// resolve は重複を除いた ID でユーザー名を引きます。退会済みの投稿者は空文字になります。
func (h *Handler) resolve(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]string, error) {
	seen := make(map[primitive.ObjectID]struct{}, len(ids))
	unique := ids[:0:0]
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	return h.authors.Usernames(ctx, unique)
}

// pathID は :id を ObjectID として読み込みます。形式不正は 404 として扱います。
func pathID(c *gin.Context, notFoundMessage string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		apperr.Respond(c, apperr.NotFound(notFoundMessage))
		return primitive.NilObjectID, false
	}
	return id, true
}

func storeError(err error, operation, notFoundMessage string) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return apperr.NotFound(notFoundMessage)
	case errors.Is(err, storage.ErrValidation):
		return apperr.Validation(err)
	default:
		return apperr.Internal(operation, err)
	}
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		apperr.Respond(c, apperr.BadRequest(msgInvalidBody))
		return false
	}
	return true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
