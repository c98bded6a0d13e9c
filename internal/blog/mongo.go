package blog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/yourusername/blog-backend/internal/storage"
)

const (
	postCollection    = "posts"
	commentCollection = "comments"
)

// MongoPostRepository は posts コレクションを使う PostRepository 実装です。
type MongoPostRepository struct {
	coll *mongo.Collection
	seq  storage.Sequencer
}

// NewMongoPostRepository は MongoPostRepository を作成します。
func NewMongoPostRepository(db *mongo.Database, seq storage.Sequencer) *MongoPostRepository {
	return &MongoPostRepository{coll: db.Collection(postCollection), seq: seq}
}

// EnsureIndexes は postId の一意インデックスを作成します。
func (r *MongoPostRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "postId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "author_id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create post indexes: %w", err)
	}
	return nil
}

func (r *MongoPostRepository) Create(ctx context.Context, post *Post) error {
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

	if _, err := r.coll.InsertOne(ctx, post); err != nil {
		return fmt.Errorf("failed to insert post: %w", err)
	}
	return nil
}

func (r *MongoPostRepository) List(ctx context.Context) ([]*Post, error) {
	opts := options.Find().SetSort(bson.D{{Key: "postId", Value: 1}})
	cur, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	posts := make([]*Post, 0)
	if err := cur.All(ctx, &posts); err != nil {
		return nil, fmt.Errorf("failed to decode posts: %w", err)
	}
	return posts, nil
}

func (r *MongoPostRepository) Get(ctx context.Context, id primitive.ObjectID) (*Post, error) {
	var post Post
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&post); err != nil {
		return nil, notFound(err, "post")
	}
	return &post, nil
}

// Update は検証後に $set で部分更新します。
func (r *MongoPostRepository) Update(ctx context.Context, id primitive.ObjectID, update PostUpdate) (*Post, error) {
	current, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	update.Apply(current)
	if err := current.Validate(); err != nil {
		return nil, err
	}

	set := bson.M{"updatedAt": time.Now().UTC()}
	if update.Title != nil {
		set["title"] = current.Title
	}
	if update.Content != nil {
		set["content"] = current.Content
	}

	var post Post
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&post); err != nil {
		return nil, notFound(err, "post")
	}
	return &post, nil
}

func (r *MongoPostRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	if res.DeletedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// MongoCommentRepository は comments コレクションを使う CommentRepository 実装です。
type MongoCommentRepository struct {
	coll *mongo.Collection
	seq  storage.Sequencer
}

// NewMongoCommentRepository は MongoCommentRepository を作成します。
func NewMongoCommentRepository(db *mongo.Database, seq storage.Sequencer) *MongoCommentRepository {
	return &MongoCommentRepository{coll: db.Collection(commentCollection), seq: seq}
}

// EnsureIndexes は commentId の一意インデックスと投稿別の検索用インデックスを作成します。
func (r *MongoCommentRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "commentId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "post_id", Value: 1}, {Key: "commentId", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create comment indexes: %w", err)
	}
	return nil
}

func (r *MongoCommentRepository) Create(ctx context.Context, comment *Comment) error {
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

	if _, err := r.coll.InsertOne(ctx, comment); err != nil {
		return fmt.Errorf("failed to insert comment: %w", err)
	}
	return nil
}

func (r *MongoCommentRepository) List(ctx context.Context, postID *primitive.ObjectID) ([]*Comment, error) {
	filter := bson.M{}
	if postID != nil {
		filter["post_id"] = *postID
	}
	opts := options.Find().SetSort(bson.D{{Key: "commentId", Value: 1}})
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	comments := make([]*Comment, 0)
	if err := cur.All(ctx, &comments); err != nil {
		return nil, fmt.Errorf("failed to decode comments: %w", err)
	}
	return comments, nil
}

func (r *MongoCommentRepository) Get(ctx context.Context, id primitive.ObjectID) (*Comment, error) {
	var comment Comment
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&comment); err != nil {
		return nil, notFound(err, "comment")
	}
	return &comment, nil
}

func (r *MongoCommentRepository) Update(ctx context.Context, id primitive.ObjectID, update CommentUpdate) (*Comment, error) {
	current, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	update.Apply(current)
	if err := current.Validate(); err != nil {
		return nil, err
	}

	set := bson.M{"updatedAt": time.Now().UTC()}
	if update.Content != nil {
		set["content"] = current.Content
	}

	var comment Comment
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&comment); err != nil {
		return nil, notFound(err, "comment")
	}
	return &comment, nil
}

func (r *MongoCommentRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	if res.DeletedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func notFound(err error, what string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return storage.ErrNotFound
	}
	return fmt.Errorf("failed to find %s: %w", what, err)
}
