package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/desertthunder/spotskill/internal/models"
	"github.com/desertthunder/spotskill/internal/shared"
)

const deviceColumns = `id, sequence, spotify_id, name, room, is_main, default_volume, ip, last_seen_at, created_at, updated_at`

// DeviceRepository implements [models.Repository] for [models.Device] and serves as the device registry.
type DeviceRepository struct {
	db *sql.DB
}

// NewDeviceRepository creates a new [DeviceRepository] with the given database connection
func NewDeviceRepository(db *sql.DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

// Create inserts a new device with generated ID and sequence
func (r *DeviceRepository) Create(ctx context.Context, device *models.Device) error {
	return r.create(ctx, r.db, device)
}

func (r *DeviceRepository) create(ctx context.Context, q querier, device *models.Device) error {
	if err := device.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(ctx, q, "devices")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	stored := models.RestoreDevice(models.DeviceRecord{
		ID:            id,
		Sequence:      sequence,
		SpotifyID:     device.SpotifyID(),
		Name:          device.Name(),
		Room:          device.Room(),
		IsMain:        device.IsMain(),
		DefaultVolume: device.DefaultVolume(),
		IP:            device.IP(),
		LastSeenAt:    device.LastSeenAt(),
		CreatedAt:     device.CreatedAt(),
		UpdatedAt:     device.UpdatedAt(),
	})

	query := `INSERT INTO devices (` + deviceColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = q.ExecContext(ctx, query,
		id,
		sequence,
		stored.SpotifyID(),
		stored.Name(),
		stored.Room(),
		stored.IsMain(),
		stored.DefaultVolume(),
		stored.IP(),
		nullTime(stored.LastSeenAt()),
		stored.CreatedAt(),
		stored.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert device: %w", err)
	}

	*device = *stored
	return nil
}

// Get retrieves a device by ID
func (r *DeviceRepository) Get(ctx context.Context, id string) (*models.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE id = ?`
	return scanDevice(r.db.QueryRowContext(ctx, query, id))
}

// GetBySpotifyID retrieves a device by its Spotify device id
func (r *DeviceRepository) GetBySpotifyID(ctx context.Context, spotifyID string) (*models.Device, error) {
	return r.getBySpotifyID(ctx, r.db, spotifyID)
}

func (r *DeviceRepository) getBySpotifyID(ctx context.Context, q querier, spotifyID string) (*models.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE spotify_id = ?`
	return scanDevice(q.QueryRowContext(ctx, query, spotifyID))
}

// Update writes the mutable fields of an existing device
func (r *DeviceRepository) Update(ctx context.Context, device *models.Device) error {
	return r.update(ctx, r.db, device)
}

func (r *DeviceRepository) update(ctx context.Context, q querier, device *models.Device) error {
	if err := device.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	device.SetUpdatedAt(now)

	query := `
		UPDATE devices
		SET name = ?, room = ?, is_main = ?, default_volume = ?, ip = ?, last_seen_at = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := q.ExecContext(ctx, query,
		device.Name(),
		device.Room(),
		device.IsMain(),
		device.DefaultVolume(),
		device.IP(),
		nullTime(device.LastSeenAt()),
		now,
		device.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update device: %w", err)
	}
	return expectRow(result, device.ID())
}

// Delete removes a device by ID
func (r *DeviceRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete device: %w", err)
	}
	return expectRow(result, id)
}

// List retrieves devices matching the given criteria, ordered by Spotify id.
//
// Supported criteria: "room" (string, case-insensitive) and "is_main" (bool).
func (r *DeviceRepository) List(ctx context.Context, criteria map[string]any) ([]*models.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE 1 = 1`
	args := []any{}

	if room, ok := criteria["room"].(string); ok && room != "" {
		query += " AND room = ? COLLATE NOCASE"
		args = append(args, room)
	}
	if main, ok := criteria["is_main"].(bool); ok {
		query += " AND is_main = ?"
		args = append(args, main)
	}

	query += " ORDER BY spotify_id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	var devices []*models.Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, device)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return devices, nil
}

// Sync upserts the reported devices by Spotify id in one transaction.
//
// New devices are created with their room derived from the reported name. Known devices get their
// name, room and last-seen time refreshed while keeping their main flag and default volume.
// Devices missing from the report are left untouched. The returned records follow Spotify id order.
func (r *DeviceRepository) Sync(ctx context.Context, remotes []models.RemoteDevice) ([]*models.Device, error) {
	sorted := append([]models.RemoteDevice(nil), remotes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	devices := make([]*models.Device, 0, len(sorted))
	for _, remote := range sorted {
		if remote.ID == "" {
			continue
		}

		existing, err := r.getBySpotifyID(ctx, tx, remote.ID)
		switch {
		case errors.Is(err, shared.ErrDeviceNotFound):
			device := models.NewDevice(0, remote.ID, remote.Name)
			if err := r.create(ctx, tx, device); err != nil {
				return nil, err
			}
			devices = append(devices, device)
		case err != nil:
			return nil, err
		default:
			existing.Rediscover(remote.Name, now)
			if err := r.update(ctx, tx, existing); err != nil {
				return nil, err
			}
			devices = append(devices, existing)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit device sync: %w", err)
	}
	return devices, nil
}

// MainDevice returns the playback target for room: its device flagged main, else its first device
// by sequence. Rooms without devices yield [shared.ErrNoDeviceForRoom].
//
// A non-nil current limits the candidates to those Spotify ids, so devices the account no longer
// reports are skipped while their rows stay stored. A nil current considers every stored device.
func (r *DeviceRepository) MainDevice(ctx context.Context, room string, current []string) (*models.Device, error) {
	if current != nil && len(current) == 0 {
		return nil, fmt.Errorf("%w: %q", shared.ErrNoDeviceForRoom, room)
	}

	query := `SELECT ` + deviceColumns + ` FROM devices WHERE room = ? COLLATE NOCASE`
	args := []any{room}
	if current != nil {
		query += ` AND spotify_id IN (?` + strings.Repeat(", ?", len(current)-1) + `)`
		for _, id := range current {
			args = append(args, id)
		}
	}
	query += ` ORDER BY is_main DESC, sequence ASC LIMIT 1`

	device, err := scanDevice(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, shared.ErrDeviceNotFound) {
		return nil, fmt.Errorf("%w: %q", shared.ErrNoDeviceForRoom, room)
	}
	return device, err
}

// SetMain flags the device as its room's main device and clears the flag on the others in that room.
func (r *DeviceRepository) SetMain(ctx context.Context, id string) (*models.Device, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	device, err := scanDevice(tx.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if _, err := tx.ExecContext(ctx,
		`UPDATE devices SET is_main = 0, updated_at = ? WHERE room = ? COLLATE NOCASE AND id != ? AND is_main = 1`,
		now, device.Room(), id,
	); err != nil {
		return nil, fmt.Errorf("failed to clear main device: %w", err)
	}

	device.SetMain(true)
	if err := r.update(ctx, tx, device); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit main device: %w", err)
	}
	return device, nil
}

// SetDefaultVolume stores the volume applied after starting a playlist on the device, clamped to [0, 90].
func (r *DeviceRepository) SetDefaultVolume(ctx context.Context, id string, volume int) (*models.Device, error) {
	device, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	device.SetDefaultVolume(volume)
	if err := r.Update(ctx, device); err != nil {
		return nil, err
	}
	return device, nil
}

func scanDevice(s scanner) (*models.Device, error) {
	var (
		rec      models.DeviceRecord
		lastSeen sql.NullTime
	)

	err := s.Scan(
		&rec.ID, &rec.Sequence, &rec.SpotifyID, &rec.Name, &rec.Room, &rec.IsMain,
		&rec.DefaultVolume, &rec.IP, &lastSeen, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrDeviceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan device: %w", err)
	}

	if lastSeen.Valid {
		rec.LastSeenAt = lastSeen.Time
	}
	return models.RestoreDevice(rec), nil
}

func expectRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrDeviceNotFound, id)
	}
	return nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
