package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tommyz7/airbnb-analytics/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

// =============================================================================
// Apartments
// =============================================================================

// UpsertApartment writes an apartment keyed by airbnb_id. The insert-or-
// update is a single statement so concurrent sweep workers hitting the
// same listing id cannot corrupt the row.
func (s *PostgresStore) UpsertApartment(ctx context.Context, a *models.Apartment) error {
	query := `
		INSERT INTO apartments (
			id, airbnb_id, airbnb_user_id, name, city, zipcode, state, country,
			lat, lng, bedrooms, bathrooms, beds, property_type, room_type_category,
			square_feet, person_capacity, description, thumbnail_url, thumbnail_key,
			detail_synced_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23
		)
		ON CONFLICT (airbnb_id) DO UPDATE SET
			airbnb_user_id = EXCLUDED.airbnb_user_id,
			name = COALESCE(NULLIF(EXCLUDED.name, ''), apartments.name),
			city = COALESCE(NULLIF(EXCLUDED.city, ''), apartments.city),
			zipcode = COALESCE(NULLIF(EXCLUDED.zipcode, ''), apartments.zipcode),
			state = COALESCE(NULLIF(EXCLUDED.state, ''), apartments.state),
			country = COALESCE(NULLIF(EXCLUDED.country, ''), apartments.country),
			lat = COALESCE(EXCLUDED.lat, apartments.lat),
			lng = COALESCE(EXCLUDED.lng, apartments.lng),
			bedrooms = COALESCE(EXCLUDED.bedrooms, apartments.bedrooms),
			bathrooms = COALESCE(EXCLUDED.bathrooms, apartments.bathrooms),
			beds = COALESCE(EXCLUDED.beds, apartments.beds),
			property_type = COALESCE(NULLIF(EXCLUDED.property_type, ''), apartments.property_type),
			room_type_category = COALESCE(NULLIF(EXCLUDED.room_type_category, ''), apartments.room_type_category),
			square_feet = COALESCE(EXCLUDED.square_feet, apartments.square_feet),
			person_capacity = COALESCE(NULLIF(EXCLUDED.person_capacity, 0), apartments.person_capacity),
			description = COALESCE(NULLIF(EXCLUDED.description, ''), apartments.description),
			thumbnail_url = COALESCE(NULLIF(EXCLUDED.thumbnail_url, ''), apartments.thumbnail_url),
			thumbnail_key = COALESCE(EXCLUDED.thumbnail_key, apartments.thumbnail_key),
			detail_synced_at = COALESCE(EXCLUDED.detail_synced_at, apartments.detail_synced_at),
			updated_at = NOW()
		RETURNING id, created_at`

	return s.pool.QueryRow(ctx, query,
		a.ID, a.AirbnbID, a.AirbnbUserID, a.Name, a.City, a.Zipcode, a.State, a.Country,
		a.Lat, a.Lng, a.Bedrooms, a.Bathrooms, a.Beds, a.PropertyType, a.RoomTypeCategory,
		a.SquareFeet, a.PersonCapacity, a.Description, a.ThumbnailURL, a.ThumbnailKey,
		a.DetailSyncedAt, a.CreatedAt, a.UpdatedAt,
	).Scan(&a.ID, &a.CreatedAt)
}

func (s *PostgresStore) GetApartmentByAirbnbID(ctx context.Context, airbnbID int64) (*models.Apartment, error) {
	query := apartmentSelect + ` WHERE airbnb_id = $1`

	var a models.Apartment
	err := s.pool.QueryRow(ctx, query, airbnbID).Scan(apartmentFields(&a)...)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

const apartmentSelect = `
	SELECT id, airbnb_id, airbnb_user_id, name, city, zipcode, state, country,
		lat, lng, bedrooms, bathrooms, beds, property_type, room_type_category,
		square_feet, person_capacity, description, thumbnail_url, thumbnail_key,
		detail_synced_at, created_at, updated_at
	FROM apartments`

func apartmentFields(a *models.Apartment) []any {
	return []any{
		&a.ID, &a.AirbnbID, &a.AirbnbUserID, &a.Name, &a.City, &a.Zipcode, &a.State, &a.Country,
		&a.Lat, &a.Lng, &a.Bedrooms, &a.Bathrooms, &a.Beds, &a.PropertyType, &a.RoomTypeCategory,
		&a.SquareFeet, &a.PersonCapacity, &a.Description, &a.ThumbnailURL, &a.ThumbnailKey,
		&a.DetailSyncedAt, &a.CreatedAt, &a.UpdatedAt,
	}
}

func (s *PostgresStore) scanApartments(rows pgx.Rows) ([]models.Apartment, error) {
	defer rows.Close()

	var apartments []models.Apartment
	for rows.Next() {
		var a models.Apartment
		if err := rows.Scan(apartmentFields(&a)...); err != nil {
			return nil, err
		}
		apartments = append(apartments, a)
	}
	return apartments, rows.Err()
}

// GetApartmentsWithStaleDetail returns apartments whose detail record has
// never been fetched or is older than staleAfter.
func (s *PostgresStore) GetApartmentsWithStaleDetail(ctx context.Context, staleAfter time.Duration, limit int) ([]models.Apartment, error) {
	query := apartmentSelect + `
	WHERE detail_synced_at IS NULL OR detail_synced_at < $1
	ORDER BY detail_synced_at NULLS FIRST
	LIMIT $2`

	cutoff := time.Now().Add(-staleAfter)
	rows, err := s.pool.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, err
	}
	return s.scanApartments(rows)
}

// GetApartmentsWithoutThumbnailArchive returns apartments that have a
// thumbnail URL but no archived copy yet.
func (s *PostgresStore) GetApartmentsWithoutThumbnailArchive(ctx context.Context, limit int) ([]models.Apartment, error) {
	query := apartmentSelect + `
	WHERE thumbnail_url <> '' AND thumbnail_key IS NULL
	ORDER BY created_at
	LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return s.scanApartments(rows)
}

func (s *PostgresStore) SetApartmentThumbnailKey(ctx context.Context, id uuid.UUID, key string) error {
	query := `UPDATE apartments SET thumbnail_key = $2, updated_at = NOW() WHERE id = $1`
	_, err := s.pool.Exec(ctx, query, id, key)
	return err
}

func (s *PostgresStore) SetApartmentDetailSynced(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE apartments SET detail_synced_at = $2, updated_at = NOW() WHERE id = $1`
	_, err := s.pool.Exec(ctx, query, id, at)
	return err
}

// =============================================================================
// Price snapshots
// =============================================================================

// UpsertPriceSnapshot writes at most one row per (apartment, date); a
// repeat write for the same day updates the existing row in place.
func (s *PostgresStore) UpsertPriceSnapshot(ctx context.Context, p *models.PriceSnapshot) error {
	query := `
		INSERT INTO price_snapshots (
			apartment_id, date, vacant, native_currency, nightly_price,
			weekend_price, weekly_price, monthly_price, extra_person_price,
			cleaning_fee, security_deposit, guests_included, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		)
		ON CONFLICT (apartment_id, date) DO UPDATE SET
			vacant = EXCLUDED.vacant,
			native_currency = EXCLUDED.native_currency,
			nightly_price = EXCLUDED.nightly_price,
			weekend_price = COALESCE(EXCLUDED.weekend_price, price_snapshots.weekend_price),
			weekly_price = COALESCE(EXCLUDED.weekly_price, price_snapshots.weekly_price),
			monthly_price = COALESCE(EXCLUDED.monthly_price, price_snapshots.monthly_price),
			extra_person_price = COALESCE(EXCLUDED.extra_person_price, price_snapshots.extra_person_price),
			cleaning_fee = COALESCE(EXCLUDED.cleaning_fee, price_snapshots.cleaning_fee),
			security_deposit = COALESCE(EXCLUDED.security_deposit, price_snapshots.security_deposit),
			guests_included = EXCLUDED.guests_included,
			updated_at = NOW()
		RETURNING id, created_at`

	return s.pool.QueryRow(ctx, query,
		p.ApartmentID, p.Date, p.Vacant, p.NativeCurrency, p.NightlyPrice,
		p.WeekendPrice, p.WeeklyPrice, p.MonthlyPrice, p.ExtraPersonPrice,
		p.CleaningFee, p.SecurityDeposit, p.GuestsIncluded, p.CreatedAt, p.UpdatedAt,
	).Scan(&p.ID, &p.CreatedAt)
}

func (s *PostgresStore) GetPriceSnapshot(ctx context.Context, apartmentID uuid.UUID, date time.Time) (*models.PriceSnapshot, error) {
	query := `
		SELECT id, apartment_id, date, vacant, native_currency, nightly_price,
			weekend_price, weekly_price, monthly_price, extra_person_price,
			cleaning_fee, security_deposit, guests_included, created_at, updated_at
		FROM price_snapshots WHERE apartment_id = $1 AND date = $2`

	var p models.PriceSnapshot
	err := s.pool.QueryRow(ctx, query, apartmentID, date).Scan(
		&p.ID, &p.ApartmentID, &p.Date, &p.Vacant, &p.NativeCurrency, &p.NightlyPrice,
		&p.WeekendPrice, &p.WeeklyPrice, &p.MonthlyPrice, &p.ExtraPersonPrice,
		&p.CleaningFee, &p.SecurityDeposit, &p.GuestsIncluded, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// =============================================================================
// Tracked locations
// =============================================================================

func (s *PostgresStore) UpsertTrackedLocation(ctx context.Context, l *models.TrackedLocation) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	query := `
		INSERT INTO tracked_locations (
			id, name, locale, currency, price_min, price_max, min_bedrooms,
			active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (name) DO UPDATE SET
			locale = EXCLUDED.locale,
			currency = EXCLUDED.currency,
			price_min = EXCLUDED.price_min,
			price_max = EXCLUDED.price_max,
			min_bedrooms = EXCLUDED.min_bedrooms,
			active = EXCLUDED.active,
			updated_at = NOW()
		RETURNING id`

	return s.pool.QueryRow(ctx, query,
		l.ID, l.Name, l.Locale, l.Currency, l.PriceMin, l.PriceMax, l.MinBedrooms,
		l.Active, l.CreatedAt, l.UpdatedAt,
	).Scan(&l.ID)
}

func (s *PostgresStore) ListTrackedLocations(ctx context.Context) ([]models.TrackedLocation, error) {
	query := `
		SELECT id, name, locale, currency, price_min, price_max, min_bedrooms,
			active, created_at, updated_at
		FROM tracked_locations
		WHERE active
		ORDER BY name`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locations []models.TrackedLocation
	for rows.Next() {
		var l models.TrackedLocation
		if err := rows.Scan(
			&l.ID, &l.Name, &l.Locale, &l.Currency, &l.PriceMin, &l.PriceMax, &l.MinBedrooms,
			&l.Active, &l.CreatedAt, &l.UpdatedAt,
		); err != nil {
			return nil, err
		}
		locations = append(locations, l)
	}
	return locations, rows.Err()
}

func (s *PostgresStore) GetTrackedLocationByName(ctx context.Context, name string) (*models.TrackedLocation, error) {
	query := `
		SELECT id, name, locale, currency, price_min, price_max, min_bedrooms,
			active, created_at, updated_at
		FROM tracked_locations WHERE name = $1`

	var l models.TrackedLocation
	err := s.pool.QueryRow(ctx, query, name).Scan(
		&l.ID, &l.Name, &l.Locale, &l.Currency, &l.PriceMin, &l.PriceMax, &l.MinBedrooms,
		&l.Active, &l.CreatedAt, &l.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// =============================================================================
// Sweep runs
// =============================================================================

func (s *PostgresStore) CreateSweepRun(ctx context.Context, run *models.SweepRun) error {
	query := `
		INSERT INTO sweep_runs (location, started_at, status, listings_found, apartments_new, snapshots_written, errors_count, error_message, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	return s.pool.QueryRow(ctx, query,
		run.Location, run.StartedAt, run.Status, run.ListingsFound, run.ApartmentsNew, run.SnapshotsWritten, run.ErrorsCount, run.ErrorMessage, run.Metadata,
	).Scan(&run.ID)
}

func (s *PostgresStore) UpdateSweepRun(ctx context.Context, run *models.SweepRun) error {
	query := `
		UPDATE sweep_runs SET
			finished_at = $2, status = $3, listings_found = $4, apartments_new = $5,
			snapshots_written = $6, errors_count = $7, error_message = $8, metadata = $9
		WHERE id = $1`

	_, err := s.pool.Exec(ctx, query,
		run.ID, run.FinishedAt, run.Status, run.ListingsFound, run.ApartmentsNew, run.SnapshotsWritten, run.ErrorsCount, run.ErrorMessage, run.Metadata,
	)
	return err
}

// =============================================================================
// Sweep logs
// =============================================================================

func (s *PostgresStore) CreateSweepLog(ctx context.Context, log *models.SweepLog) error {
	query := `
		INSERT INTO sweep_logs (run_id, timestamp, level, message, location)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	return s.pool.QueryRow(ctx, query,
		log.RunID, log.Timestamp, log.Level, log.Message, log.Location,
	).Scan(&log.ID)
}
