// Package storage はドキュメントストア（MongoDB）への接続と連番カウンターを提供します。
package storage

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const countersCollection = "counters"

// Mongo は MongoDB クライアントと使用するデータベースを保持します。
type Mongo struct {
	Client *mongo.Client
	DB     *mongo.Database
}

// Connect は MongoDB に接続し、疎通確認まで行います。
// timeout はクライアントの各操作のタイムアウトとしても使用します。
func Connect(ctx context.Context, uri, database string, timeout time.Duration) (*Mongo, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongo uri is required")
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := options.Client().ApplyURI(uri).SetTimeout(timeout)
	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	return &Mongo{
		Client: client,
		DB:     client.Database(database),
	}, nil
}

// Close は接続を閉じます。
func (m *Mongo) Close(ctx context.Context) error {
	if m == nil || m.Client == nil {
		return nil
	}
	return m.Client.Disconnect(ctx)
}

// Sequencer はコレクションごとの連番（表示用ID）を払い出します。
type Sequencer interface {
	Next(ctx context.Context, name string) (int64, error)
}

// MongoSequencer は counters コレクションの $inc で連番を払い出します。
// 採番はストア側で原子的に行われるため、アプリ側でリクエストを直列化しません。
type MongoSequencer struct {
	coll *mongo.Collection
}

// NewMongoSequencer は MongoSequencer を作成します。
func NewMongoSequencer(db *mongo.Database) *MongoSequencer {
	return &MongoSequencer{coll: db.Collection(countersCollection)}
}

// Next は name の次の連番を返します（1始まり）。
func (s *MongoSequencer) Next(ctx context.Context, name string) (int64, error) {
	var doc struct {
		Seq int64 `bson:"seq"`
	}
	err := s.coll.FindOneAndUpdate(
		ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("failed to increment counter %s: %w", name, err)
	}
	return doc.Seq, nil
}
