package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fleethealth/api/pkg/domain/shared"
)

// TelemetryRepository reads aggregated telemetry rolled up by ingestion.
type TelemetryRepository struct {
	db *DB
}

// NewTelemetryRepository creates a new telemetry repository.
func NewTelemetryRepository(db *DB) *TelemetryRepository {
	return &TelemetryRepository{db: db}
}

// RecentNetworkStats returns the device's connectivity aggregates for the
// trailing seven days. Returns an empty map when no aggregates exist yet.
func (r *TelemetryRepository) RecentNetworkStats(ctx context.Context, deviceID shared.ID) (map[string]any, error) {
	query := `
		SELECT avg_latency_ms, avg_packet_loss_pct, disconnect_count, sample_count
		FROM network_stats_daily
		WHERE device_id = $1 AND day >= NOW() - INTERVAL '7 days'
		ORDER BY day DESC`

	rows, err := r.db.QueryContext(ctx, query, deviceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("query network stats: %w", err)
	}
	defer rows.Close()

	var (
		latencySum    float64
		lossSum       float64
		disconnects   int
		samples       int
		daysWithStats int
	)
	for rows.Next() {
		var latency, loss float64
		var dayDisconnects, daySamples int
		if err := rows.Scan(&latency, &loss, &dayDisconnects, &daySamples); err != nil {
			return nil, fmt.Errorf("scan network stats: %w", err)
		}
		latencySum += latency
		lossSum += loss
		disconnects += dayDisconnects
		samples += daySamples
		daysWithStats++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate network stats: %w", err)
	}

	if daysWithStats == 0 {
		return map[string]any{}, nil
	}

	return map[string]any{
		"avg_latency_ms":      latencySum / float64(daysWithStats),
		"avg_packet_loss_pct": lossSum / float64(daysWithStats),
		"disconnect_count_7d": disconnects,
		"sample_count_7d":     samples,
	}, nil
}
