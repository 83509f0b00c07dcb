package networkmap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"event-director/internal/constants"
	"event-director/pkg/metrics"
	"event-director/pkg/models"
)

// Repository is the read side of the network map store. GetNetworkMap returns
// every stored document, active or not, grouped per tenant.
type Repository interface {
	GetNetworkMap(ctx context.Context) ([][]models.NetworkMap, error)
}

type MongoDBRepository struct {
	collection *mongo.Collection
}

func NewMongoDBRepository(db *mongo.Database, collection string) *MongoDBRepository {
	if collection == "" {
		collection = constants.DefaultNetworkMapCollection
	}
	return &MongoDBRepository{collection: db.Collection(collection)}
}

func (r *MongoDBRepository) GetNetworkMap(ctx context.Context) (docs [][]models.NetworkMap, err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveDatabaseQuery(constants.ServiceName, constants.ConfigStoreMongoDB, "get_network_map", time.Since(start), err)
	}()

	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query network maps: %w", err)
	}
	defer cursor.Close(ctx)

	var all []models.NetworkMap
	if err := cursor.All(ctx, &all); err != nil {
		return nil, fmt.Errorf("failed to decode network maps: %w", err)
	}

	return GroupByTenant(all), nil
}

// GroupByTenant splits documents into one list per raw tenant value, ordered
// by first appearance. Legacy documents and explicit DEFAULT documents end up
// in different groups.
func GroupByTenant(docs []models.NetworkMap) [][]models.NetworkMap {
	if len(docs) == 0 {
		return nil
	}
	return lo.PartitionBy(docs, func(doc models.NetworkMap) string {
		return strings.TrimSpace(doc.TenantID)
	})
}
