package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fleethealth/api/pkg/domain/device"
	"github.com/fleethealth/api/pkg/domain/shared"
)

// DeviceRepository implements device.Repository using PostgreSQL.
// The hierarchy is read-only from this subsystem's perspective.
type DeviceRepository struct {
	db *DB
}

// NewDeviceRepository creates a new DeviceRepository.
func NewDeviceRepository(db *DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

// GetByID retrieves a device by id.
func (r *DeviceRepository) GetByID(ctx context.Context, id shared.ID) (*device.Device, error) {
	query := `
		SELECT id, group_id, name, os_name, os_version, created_at
		FROM devices
		WHERE id = $1
	`

	var d device.Device
	var osName, osVersion sql.NullString
	var createdAt time.Time

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&d.ID, &d.GroupID, &d.Name, &osName, &osVersion, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get device: %w", err)
	}

	d.OSName = nullStringValue(osName)
	d.OSVersion = nullStringValue(osVersion)
	d.CreatedAt = createdAt
	return &d, nil
}

// GetHierarchy resolves device -> group -> organisation -> tenant in a
// single joined query. A missing link anywhere surfaces as not-found.
func (r *DeviceRepository) GetHierarchy(ctx context.Context, deviceID shared.ID) (*device.Hierarchy, error) {
	query := `
		SELECT d.id, d.group_id, d.name, d.os_name, d.os_version, d.created_at,
		       g.id, g.organisation_id, g.name,
		       o.id, o.tenant_id, o.name
		FROM devices d
		JOIN device_groups g ON g.id = d.group_id
		JOIN organisations o ON o.id = g.organisation_id
		WHERE d.id = $1
	`

	var h device.Hierarchy
	var osName, osVersion sql.NullString
	var createdAt time.Time

	err := r.db.QueryRowContext(ctx, query, deviceID).Scan(
		&h.Device.ID, &h.Device.GroupID, &h.Device.Name, &osName, &osVersion, &createdAt,
		&h.Group.ID, &h.Group.OrganisationID, &h.Group.Name,
		&h.Organisation.ID, &h.Organisation.TenantID, &h.Organisation.Name,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get device hierarchy: %w", err)
	}

	h.Device.OSName = nullStringValue(osName)
	h.Device.OSVersion = nullStringValue(osVersion)
	h.Device.CreatedAt = createdAt
	h.TenantID = h.Organisation.TenantID
	return &h, nil
}
