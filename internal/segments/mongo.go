package segments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"media-insights-go/internal/types"
)

type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// MongoStore keeps one document per asset, so a replace is a single
// document swap.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

type assetSegments struct {
	AssetID   string          `bson:"_id"`
	Segments  []types.Segment `bson:"segments"`
	UpdatedAt time.Time       `bson:"updated_at"`
}

func OpenMongo(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("mongo URI is required")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &MongoStore{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
	}, nil
}

func (m *MongoStore) ReplaceSegments(ctx context.Context, assetID string, segs []types.Segment) error {
	if err := requireAsset(assetID); err != nil {
		return err
	}
	doc := assetSegments{AssetID: assetID, Segments: make([]types.Segment, len(segs)), UpdatedAt: time.Now().UTC()}
	for i, s := range segs {
		s.AssetID = assetID
		doc.Segments[i] = s
	}
	_, err := m.collection.ReplaceOne(ctx, bson.M{"_id": assetID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("replace segments: %w", err)
	}
	return nil
}

func (m *MongoStore) ListSegments(ctx context.Context, assetID string) ([]types.Segment, error) {
	return m.Search(ctx, assetID, "", 0)
}

func (m *MongoStore) Search(ctx context.Context, assetID, query string, limit int) ([]types.Segment, error) {
	if err := requireAsset(assetID); err != nil {
		return nil, err
	}
	var doc assetSegments
	err := m.collection.FindOne(ctx, bson.M{"_id": assetID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find segments: %w", err)
	}
	sortByStart(doc.Segments)
	return filterSegments(doc.Segments, query, limit), nil
}

func (m *MongoStore) Close() error {
	if m.client == nil {
		return nil
	}
	return m.client.Disconnect(context.Background())
}
