package migrations

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureNetworkMapCollection creates the indexes the director queries rely on.
// The collection itself is created by MongoDB on first insert.
func EnsureNetworkMapCollection(ctx context.Context, db *mongo.Database, name string) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "tenantId", Value: 1}, {Key: "active", Value: 1}},
			Options: options.Index().SetName("idx_network_maps_tenant_active"),
		},
		{
			Keys:    bson.D{{Key: "messages.txTp", Value: 1}},
			Options: options.Index().SetName("idx_network_maps_tx_type"),
		},
	}

	_, err := db.Collection(name).Indexes().CreateMany(ctx, indexes)
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return fmt.Errorf("failed to create indexes on %s: %w", name, err)
	}

	return nil
}
