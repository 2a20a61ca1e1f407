// Package mongo はMongoDBクライアントの生成を提供します。
package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"kline_backfill/internal/platform/config"
)

const connectTimeout = 10 * time.Second

// NewMongoDatabase connects to cfg.URI, verifies the connection and returns the
// configured database. The caller owns the client and must Disconnect it.
func NewMongoDatabase(ctx context.Context, cfg config.MongoConfig) (*mongo.Database, error) {
	if cfg.Database == "" {
		return nil, fmt.Errorf("MONGO_DATABASE is required")
	}

	client, err := mongo.Connect(options.Client().
		ApplyURI(cfg.URI).
		SetServerSelectionTimeout(connectTimeout))
	if err != nil {
		return nil, fmt.Errorf("mongo connect failed: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		slog.Error("MongoDB connection failed", "error", err)
		return nil, fmt.Errorf("mongo ping failed: %w", err)
	}

	slog.Info("MongoDB connection successful", "database", cfg.Database)
	return client.Database(cfg.Database), nil
}
