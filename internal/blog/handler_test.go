package blog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/yourusername/blog-backend/internal/account"
	"github.com/yourusername/blog-backend/internal/auth"
	"github.com/yourusername/blog-backend/internal/storage"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type blogFixture struct {
	accounts *account.MemoryRepository
	posts    *MemoryPostRepository
	comments *MemoryCommentRepository
	router   *gin.Engine
	caller   *account.Account
}

func newBlogFixture(t *testing.T) *blogFixture {
	t.Helper()
	seq := storage.NewLocalSequencer()
	f := &blogFixture{
		accounts: account.NewMemoryRepository(seq),
		posts:    NewMemoryPostRepository(seq),
		comments: NewMemoryCommentRepository(seq),
	}
	f.caller = f.addAccount(t, "alice")
	f.router = f.routerAs(f.caller, f.accounts)
	return f
}

func (f *blogFixture) addAccount(t *testing.T, username string) *account.Account {
	t.Helper()
	acc := &account.Account{
		Username:       username,
		Email:          username + "@x.com",
		PasswordDigest: "digest",
		IsVerified:     true,
	}
	require.NoError(t, f.accounts.Create(context.Background(), acc))
	return acc
}

// routerAs は認証済みの呼び出し元を固定したルーターを返します。
func (f *blogFixture) routerAs(caller *account.Account, authors UsernameResolver) *gin.Engine {
	router := gin.New()
	api := router.Group("/api")
	api.Use(func(c *gin.Context) {
		c.Set(auth.ContextAccountKey, caller)
		c.Next()
	})
	NewHandler(f.posts, f.comments, authors).RegisterRoutes(api)
	return router
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var raw []byte
	switch b := body.(type) {
	case nil:
	case string:
		raw = []byte(b)
	default:
		var err error
		raw, err = json.Marshal(b)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func (f *blogFixture) createPost(t *testing.T, title string) map[string]any {
	t.Helper()
	w, resp := doJSON(t, f.router, http.MethodPost, "/api/posts", gin.H{"title": title, "content": "body"})
	require.Equal(t, http.StatusCreated, w.Code)
	return resp["post"].(map[string]any)
}

func TestPostLifecycle(t *testing.T) {
	f := newBlogFixture(t)

	post := f.createPost(t, "hello")
	id := post["id"].(string)
	assert.Equal(t, "hello", post["title"])
	assert.Equal(t, f.caller.ID.Hex(), post["authorId"])
	assert.Equal(t, "alice", post["author"].(map[string]any)["username"])

	w, resp := doJSON(t, f.router, http.MethodGet, "/api/posts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	posts := resp["posts"].([]any)
	require.Len(t, posts, 1)
	assert.Equal(t, "alice", posts[0].(map[string]any)["author"].(map[string]any)["username"])

	w, resp = doJSON(t, f.router, http.MethodPut, "/api/posts/"+id, gin.H{"content": "edited"})
	require.Equal(t, http.StatusOK, w.Code)
	updated := resp["post"].(map[string]any)
	assert.Equal(t, "hello", updated["title"])
	assert.Equal(t, "edited", updated["content"])

	w, resp = doJSON(t, f.router, http.MethodGet, "/api/posts/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "edited", resp["post"].(map[string]any)["content"])

	w, resp = doJSON(t, f.router, http.MethodDelete, "/api/posts/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Post deleted successfully", resp["message"])

	w, resp = doJSON(t, f.router, http.MethodGet, "/api/posts/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Post not found", resp["message"])
}

func TestPostErrors(t *testing.T) {
	f := newBlogFixture(t)
	missing := primitive.NewObjectID().Hex()

	tests := []struct {
		name    string
		method  string
		path    string
		body    any
		status  int
		code    string
		message string
	}{
		{"missing title", http.MethodPost, "/api/posts", gin.H{"content": "c"}, http.StatusUnprocessableEntity, "VALIDATION_FAILED", ""},
		{"malformed body", http.MethodPost, "/api/posts", `{"title":`, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body"},
		{"malformed id", http.MethodGet, "/api/posts/not-an-id", nil, http.StatusNotFound, "NOT_FOUND", "Post not found"},
		{"get missing", http.MethodGet, "/api/posts/" + missing, nil, http.StatusNotFound, "NOT_FOUND", "Post not found"},
		{"update missing", http.MethodPut, "/api/posts/" + missing, gin.H{"title": "t"}, http.StatusNotFound, "NOT_FOUND", "Post not found"},
		{"delete missing", http.MethodDelete, "/api/posts/" + missing, nil, http.StatusNotFound, "NOT_FOUND", "Post not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := doJSON(t, f.router, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, false, resp["success"])
			assert.Equal(t, tt.code, resp["code"])
			if tt.message != "" {
				assert.Equal(t, tt.message, resp["message"])
			}
		})
	}
}

func TestUpdatePostRejectsBlankTitle(t *testing.T) {
	f := newBlogFixture(t)
	id := f.createPost(t, "hello")["id"].(string)

	w, _ := doJSON(t, f.router, http.MethodPut, "/api/posts/"+id, gin.H{"title": ""})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestCommentLifecycle(t *testing.T) {
	f := newBlogFixture(t)
	postA := f.createPost(t, "a")["id"].(string)
	postB := f.createPost(t, "b")["id"].(string)

	w, resp := doJSON(t, f.router, http.MethodPost, "/api/comment", gin.H{"post_id": postA, "content": "first"})
	require.Equal(t, http.StatusCreated, w.Code)
	comment := resp["comment"].(map[string]any)
	id := comment["id"].(string)
	assert.Equal(t, postA, comment["postId"])
	assert.Equal(t, "alice", comment["author"].(map[string]any)["username"])

	w, _ = doJSON(t, f.router, http.MethodPost, "/api/comment", gin.H{"post_id": postB, "content": "second"})
	require.Equal(t, http.StatusCreated, w.Code)

	w, resp = doJSON(t, f.router, http.MethodGet, "/api/comment", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp["comments"].([]any), 2)

	w, resp = doJSON(t, f.router, http.MethodGet, "/api/comment?post_id="+postA, nil)
	require.Equal(t, http.StatusOK, w.Code)
	filtered := resp["comments"].([]any)
	require.Len(t, filtered, 1)
	assert.Equal(t, "first", filtered[0].(map[string]any)["content"])

	w, resp = doJSON(t, f.router, http.MethodGet, "/api/comment?post_id=garbage", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, resp["comments"])

	w, resp = doJSON(t, f.router, http.MethodPut, "/api/comment/"+id, gin.H{"content": "edited"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "edited", resp["comment"].(map[string]any)["content"])

	w, resp = doJSON(t, f.router, http.MethodGet, "/api/comment/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "edited", resp["comment"].(map[string]any)["content"])

	w, resp = doJSON(t, f.router, http.MethodDelete, "/api/comment/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Comment deleted successfully", resp["message"])

	w, resp = doJSON(t, f.router, http.MethodGet, "/api/comment/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Comment not found", resp["message"])
}

func TestCreateCommentChecks(t *testing.T) {
	f := newBlogFixture(t)
	postID := f.createPost(t, "a")["id"].(string)

	t.Run("missing content", func(t *testing.T) {
		w, _ := doJSON(t, f.router, http.MethodPost, "/api/comment", gin.H{"post_id": postID})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("missing post_id", func(t *testing.T) {
		w, _ := doJSON(t, f.router, http.MethodPost, "/api/comment", gin.H{"content": "x"})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("unknown post", func(t *testing.T) {
		w, resp := doJSON(t, f.router, http.MethodPost, "/api/comment", gin.H{
			"post_id": primitive.NewObjectID().Hex(), "content": "x",
		})
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "Post not found", resp["message"])
	})

	t.Run("malformed post_id", func(t *testing.T) {
		w, resp := doJSON(t, f.router, http.MethodPost, "/api/comment", gin.H{"post_id": "zzz", "content": "x"})
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "Post not found", resp["message"])
	})

	all, err := f.comments.List(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestAuthorsArePopulatedPerPost(t *testing.T) {
	f := newBlogFixture(t)
	bob := f.addAccount(t, "bob")
	f.createPost(t, "by alice")

	w, _ := doJSON(t, f.routerAs(bob, f.accounts), http.MethodPost, "/api/posts", gin.H{"title": "by bob", "content": "c"})
	require.Equal(t, http.StatusCreated, w.Code)

	_, resp := doJSON(t, f.router, http.MethodGet, "/api/posts", nil)
	posts := resp["posts"].([]any)
	require.Len(t, posts, 2)
	assert.Equal(t, "alice", posts[0].(map[string]any)["author"].(map[string]any)["username"])
	assert.Equal(t, "bob", posts[1].(map[string]any)["author"].(map[string]any)["username"])
}

type resolverFunc func(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]string, error)

func (f resolverFunc) Usernames(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]string, error) {
	return f(ctx, ids)
}

func TestAuthorLookupFailure(t *testing.T) {
	f := newBlogFixture(t)
	f.createPost(t, "a")

	broken := f.routerAs(f.caller, resolverFunc(func(context.Context, []primitive.ObjectID) (map[primitive.ObjectID]string, error) {
		return nil, errors.New("connection reset")
	}))
	w, resp := doJSON(t, broken, http.MethodGet, "/api/posts", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Server error", resp["message"])
}

func TestResolveDeduplicatesIDs(t *testing.T) {
	f := newBlogFixture(t)
	var got []primitive.ObjectID
	h := NewHandler(f.posts, f.comments, resolverFunc(func(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]string, error) {
		got = ids
		return map[primitive.ObjectID]string{}, nil
	}))

	a, b := primitive.NewObjectID(), primitive.NewObjectID()
	_, err := h.resolve(context.Background(), []primitive.ObjectID{a, b, a})
	require.NoError(t, err)
	assert.Equal(t, []primitive.ObjectID{a, b}, got)
}

func TestWritesRequireCaller(t *testing.T) {
	f := newBlogFixture(t)
	router := gin.New()
	NewHandler(f.posts, f.comments, f.accounts).RegisterRoutes(router.Group("/api"))

	w, _ := doJSON(t, router, http.MethodPost, "/api/posts", gin.H{"title": "t", "content": "c"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
