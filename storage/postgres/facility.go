package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/berdachuk/medexpertmatch/core"
	"github.com/berdachuk/medexpertmatch/storage"
)

const facilityColumns = `id, name, type, city, state, country, lat, lon, capabilities, capacity, current_occupancy`

const upsertFacilitySQL = `
	INSERT INTO facilities (` + facilityColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name,
		type = EXCLUDED.type,
		city = EXCLUDED.city,
		state = EXCLUDED.state,
		country = EXCLUDED.country,
		lat = EXCLUDED.lat,
		lon = EXCLUDED.lon,
		capabilities = EXCLUDED.capabilities,
		capacity = EXCLUDED.capacity,
		current_occupancy = EXCLUDED.current_occupancy`

// FacilityRepository implements storage.FacilityRepository on PostgreSQL.
type FacilityRepository struct {
	db *sql.DB
}

var _ storage.FacilityRepository = (*FacilityRepository)(nil)

func NewFacilityRepository(db *sql.DB) *FacilityRepository {
	return &FacilityRepository{db: db}
}

func (r *FacilityRepository) Close() error { return nil }

func (r *FacilityRepository) PutFacilities(ctx context.Context, facilities ...*core.Facility) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, f := range facilities {
		if f.ID == "" {
			return core.ErrEmptyID
		}
		lat, lon := geoArgs(f.Location)
		_, err := tx.ExecContext(ctx, upsertFacilitySQL,
			f.ID, f.Name, f.Type, f.City, f.State, f.Country, lat, lon,
			pq.Array(orEmpty(f.Capabilities)), f.Capacity, f.CurrentOccupancy)
		if err != nil {
			return fmt.Errorf("failed to save facility %s: %w", f.ID, err)
		}
	}
	return tx.Commit()
}

func (r *FacilityRepository) GetFacility(ctx context.Context, id string) (*core.Facility, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+facilityColumns+` FROM facilities WHERE id = $1`, id)
	f, err := scanFacility(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find facility: %w", err)
	}
	return f, nil
}

func (r *FacilityRepository) ListFacilities(ctx context.Context) ([]*core.Facility, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+facilityColumns+` FROM facilities ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query facilities: %w", err)
	}
	defer rows.Close()

	var facilities []*core.Facility
	for rows.Next() {
		f, err := scanFacility(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan facility: %w", err)
		}
		facilities = append(facilities, f)
	}
	return facilities, rows.Err()
}

func scanFacility(row rowScanner) (*core.Facility, error) {
	f := &core.Facility{}
	var lat, lon sql.NullFloat64
	var caps pq.StringArray
	err := row.Scan(&f.ID, &f.Name, &f.Type, &f.City, &f.State, &f.Country, &lat, &lon,
		&caps, &f.Capacity, &f.CurrentOccupancy)
	if err != nil {
		return nil, err
	}
	f.Location = geoOf(lat, lon)
	f.Capabilities = nilIfEmpty(caps)
	return f, nil
}
