package account

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

const collectionName = "users"

// MongoRepository は MongoDB の users コレクションを使う Repository 実装です。
type MongoRepository struct {
	coll *mongo.Collection
	seq  storage.Sequencer
}

// NewMongoRepository は MongoRepository を作成します。
func NewMongoRepository(db *mongo.Database, seq storage.Sequencer) *MongoRepository {
	return &MongoRepository{
		coll: db.Collection(collectionName),
		seq:  seq,
	}
}

// EnsureIndexes は一意制約とトークン検索用のインデックスを作成します。
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "userId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "verificationToken", Value: 1}}, Options: options.Index().SetSparse(true)},
		{Keys: bson.D{{Key: "resetPasswordToken", Value: 1}}, Options: options.Index().SetSparse(true)},
	})
	if err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}
	return nil
}

// Create はアカウントを挿入します。
func (r *MongoRepository) Create(ctx context.Context, account *Account) error {
	if err := account.Validate(); err != nil {
		return err
	}
	userID, err := r.seq.Next(ctx, sequenceName)
	if err != nil {
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

	if _, err := r.coll.InsertOne(ctx, account); err != nil {
		return mapWriteError(err)
	}
	return nil
}

// Update はアカウントを置き換えます。nil のフィールドはドキュメントから取り除かれます。
func (r *MongoRepository) Update(ctx context.Context, account *Account) error {
	if err := account.Validate(); err != nil {
		return err
	}
	account.UpdatedAt = time.Now().UTC()

	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": account.ID}, account)
	if err != nil {
		return mapWriteError(err)
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// FindByID は ID でアカウントを取得します。
func (r *MongoRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*Account, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// FindByEmail はメールアドレスでアカウントを取得します。
func (r *MongoRepository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

// FindByEmailOrUsername は email か username が一致するアカウントを取得します。
func (r *MongoRepository) FindByEmailOrUsername(ctx context.Context, email, username string) (*Account, error) {
	var or bson.A
	if email != "" {
		or = append(or, bson.M{"email": email})
	}
	if username != "" {
		or = append(or, bson.M{"username": username})
	}
	if len(or) == 0 {
		return nil, storage.ErrNotFound
	}
	return r.findOne(ctx, bson.M{"$or": or})
}

// FindByVerificationToken は有効な検証トークンを持つアカウントを取得します。
func (r *MongoRepository) FindByVerificationToken(ctx context.Context, token string, now time.Time) (*Account, error) {
	if token == "" {
		return nil, storage.ErrNotFound
	}
	return r.findOne(ctx, bson.M{
		"verificationToken":    token,
		"verificationExpireAt": bson.M{"$gt": now},
	})
}

// FindByResetToken は有効なリセットトークンを持つアカウントを取得します。
func (r *MongoRepository) FindByResetToken(ctx context.Context, token string, now time.Time) (*Account, error) {
	if token == "" {
		return nil, storage.ErrNotFound
	}
	return r.findOne(ctx, bson.M{
		"resetPasswordToken":    token,
		"resetPasswordExpireAt": bson.M{"$gt": now},
	})
}

// Usernames は ID に対応するユーザー名を返します。
func (r *MongoRepository) Usernames(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]string, error) {
	names := make(map[primitive.ObjectID]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	opts := options.Find().SetProjection(bson.M{"username": 1})
	cur, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find usernames: %w", err)
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var doc struct {
			ID       primitive.ObjectID `bson:"_id"`
			Username string             `bson:"username"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode username: %w", err)
		}
		names[doc.ID] = doc.Username
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate usernames: %w", err)
	}
	return names, nil
}

func (r *MongoRepository) findOne(ctx context.Context, filter bson.M) (*Account, error) {
	var account Account
	if err := r.coll.FindOne(ctx, filter).Decode(&account); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	return &account, nil
}

func mapWriteError(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %v", storage.ErrDuplicate, err)
	}
	return fmt.Errorf("failed to write account: %w", err)
}
