package networkmap

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"event-director/internal/constants"
	"event-director/pkg/metrics"
	"event-director/pkg/models"
)

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetNetworkMap(ctx context.Context) (docs [][]models.NetworkMap, err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveDatabaseQuery(constants.ServiceName, constants.ConfigStorePostgres, "get_network_map", time.Since(start), err)
	}()

	query := `
		SELECT tenant_id, active, cfg, messages
		FROM network_maps
		ORDER BY id ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query network maps: %w", err)
	}
	defer rows.Close()

	var all []models.NetworkMap
	for rows.Next() {
		var (
			doc      models.NetworkMap
			tenantID sql.NullString
			messages []byte
		)
		if err := rows.Scan(&tenantID, &doc.Active, &doc.Cfg, &messages); err != nil {
			return nil, fmt.Errorf("failed to scan network map: %w", err)
		}
		doc.TenantID = tenantID.String
		if err := json.Unmarshal(messages, &doc.Messages); err != nil {
			return nil, fmt.Errorf("failed to decode messages for network map %s: %w", doc.Cfg, err)
		}
		all = append(all, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return GroupByTenant(all), nil
}

// Save inserts a network map. Only the seeding tooling and tests write
// through this path; the director itself is read-only.
func (r *PostgresRepository) Save(ctx context.Context, doc models.NetworkMap) error {
	messages, err := json.Marshal(doc.Messages)
	if err != nil {
		return fmt.Errorf("failed to encode messages: %w", err)
	}

	var tenantID sql.NullString
	if doc.TenantID != "" {
		tenantID = sql.NullString{String: doc.TenantID, Valid: true}
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO network_maps (tenant_id, active, cfg, messages) VALUES ($1, $2, $3, $4)`,
		tenantID, doc.Active, doc.Cfg, messages,
	)
	if err != nil {
		return fmt.Errorf("failed to insert network map: %w", err)
	}
	return nil
}
