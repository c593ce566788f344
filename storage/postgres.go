package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"flatsync/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
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

	s := &PostgresStore{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS listings (
			id uuid PRIMARY KEY,
			code bigint,
			title text,
			description text,
			headline text,
			area_total double precision,
			area_living double precision,
			area_kitchen double precision,
			rooms integer,
			storey integer,
			storeys integer,
			building_year integer,
			overhaul_year integer,
			layout text,
			balcony_type text,
			repair_state text,
			furniture boolean,
			toilet text,
			prepayment text,
			housing_rent text,
			lease_period text,
			contact_name text,
			contact_email text,
			contact_phones text[],
			address text,
			town_name text,
			town_district_name text,
			town_sub_district_name text,
			street_name text,
			house_number integer,
			building_number text,
			longitude double precision,
			latitude double precision,
			price_usd numeric(18,2),
			price_byn numeric(18,2),
			price_eur numeric(18,2),
			price_rub numeric(18,2),
			images text[],
			image_url text,
			appliances text[],
			seller text,
			paid boolean,
			views_count integer,
			created_at timestamptz,
			updated_at timestamptz,
			raise_date timestamptz,
			new_again_date timestamptz
		);
		CREATE UNIQUE INDEX IF NOT EXISTS listings_code_uniq
			ON listings (code) WHERE code IS NOT NULL;`

	_, err := s.pool.Exec(ctx, ddl)
	return err
}

// listingColumns is the canonical column order shared by every SELECT,
// INSERT and scan below. Keep it in sync with fieldArgs and scanListing.
const listingColumns = `id, code, title, description, headline,
	area_total, area_living, area_kitchen, rooms, storey, storeys,
	building_year, overhaul_year, layout, balcony_type, repair_state,
	furniture, toilet, prepayment, housing_rent, lease_period,
	contact_name, contact_email, contact_phones, address, town_name,
	town_district_name, town_sub_district_name, street_name, house_number,
	building_number, longitude, latitude, price_usd, price_byn, price_eur,
	price_rub, images, image_url, appliances, seller, paid, views_count,
	created_at, updated_at, raise_date, new_again_date`

// fieldArgs lists every column value after id and code, in column order.
func fieldArgs(l *models.ListingDetail) []any {
	return []any{
		l.Title, l.Description, l.Headline,
		l.AreaTotal, l.AreaLiving, l.AreaKitchen, l.Rooms, l.Storey, l.Storeys,
		l.BuildingYear, l.OverhaulYear, l.Layout, l.BalconyType, l.RepairState,
		l.Furniture, l.Toilet, l.Prepayment, l.HousingRent, l.LeasePeriod,
		l.ContactName, l.ContactEmail, l.ContactPhones, l.Address, l.TownName,
		l.TownDistrictName, l.TownSubDistrictName, l.StreetName, l.HouseNumber,
		l.BuildingNumber, l.Longitude, l.Latitude, l.PriceUSD, l.PriceBYN, l.PriceEUR,
		l.PriceRUB, l.Images, l.ImageURL, l.Appliances, l.Seller, l.Paid, l.ViewsCount,
		l.CreatedAt, l.UpdatedAt, l.RaiseDate, l.NewAgainDate,
	}
}

func scanListing(row pgx.Row) (*models.ListingDetail, error) {
	var l models.ListingDetail
	err := row.Scan(
		&l.ID, &l.Code, &l.Title, &l.Description, &l.Headline,
		&l.AreaTotal, &l.AreaLiving, &l.AreaKitchen, &l.Rooms, &l.Storey, &l.Storeys,
		&l.BuildingYear, &l.OverhaulYear, &l.Layout, &l.BalconyType, &l.RepairState,
		&l.Furniture, &l.Toilet, &l.Prepayment, &l.HousingRent, &l.LeasePeriod,
		&l.ContactName, &l.ContactEmail, &l.ContactPhones, &l.Address, &l.TownName,
		&l.TownDistrictName, &l.TownSubDistrictName, &l.StreetName, &l.HouseNumber,
		&l.BuildingNumber, &l.Longitude, &l.Latitude, &l.PriceUSD, &l.PriceBYN, &l.PriceEUR,
		&l.PriceRUB, &l.Images, &l.ImageURL, &l.Appliances, &l.Seller, &l.Paid, &l.ViewsCount,
		&l.CreatedAt, &l.UpdatedAt, &l.RaiseDate, &l.NewAgainDate,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

const insertListingSQL = `
	INSERT INTO listings (` + listingColumns + `) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
		$17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30,
		$31, $32, $33, $34, $35, $36, $37, $38, $39, $40, $41, $42, $43, $44,
		$45, $46, $47
	)`

// updateListingSQL rewrites every column except the identity pair (id, code).
const updateListingSQL = `
	UPDATE listings SET
		title = $2, description = $3, headline = $4,
		area_total = $5, area_living = $6, area_kitchen = $7,
		rooms = $8, storey = $9, storeys = $10,
		building_year = $11, overhaul_year = $12,
		layout = $13, balcony_type = $14, repair_state = $15,
		furniture = $16, toilet = $17,
		prepayment = $18, housing_rent = $19, lease_period = $20,
		contact_name = $21, contact_email = $22, contact_phones = $23,
		address = $24, town_name = $25, town_district_name = $26,
		town_sub_district_name = $27, street_name = $28, house_number = $29,
		building_number = $30, longitude = $31, latitude = $32,
		price_usd = $33, price_byn = $34, price_eur = $35, price_rub = $36,
		images = $37, image_url = $38, appliances = $39,
		seller = $40, paid = $41, views_count = $42,
		created_at = $43, updated_at = $44, raise_date = $45, new_again_date = $46
	WHERE id = $1`

// GetByCodes bulk-loads existing listings for one reconciliation batch,
// keyed by code.
func (s *PostgresStore) GetByCodes(ctx context.Context, codes []int64) (map[int64]*models.ListingDetail, error) {
	result := make(map[int64]*models.ListingDetail, len(codes))
	if len(codes) == 0 {
		return result, nil
	}

	query := `SELECT ` + listingColumns + ` FROM listings WHERE code = ANY($1)`
	rows, err := s.pool.Query(ctx, query, codes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		if l.Code != nil {
			result[*l.Code] = l
		}
	}
	return result, rows.Err()
}

// SaveBatch commits one batch's inserts and updates inside a single
// transaction, queued through one pipelined round trip.
func (s *PostgresStore) SaveBatch(ctx context.Context, inserts, updates []*models.ListingDetail) error {
	if len(inserts) == 0 && len(updates) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, l := range inserts {
		args := append([]any{l.ID, l.Code}, fieldArgs(l)...)
		batch.Queue(insertListingSQL, args...)
	}
	for _, l := range updates {
		args := append([]any{l.ID}, fieldArgs(l)...)
		batch.Queue(updateListingSQL, args...)
	}

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("batch statement %d: %w", i, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	return tx.Commit(ctx)
}

// DeleteCodesNotIn removes every listing whose code is absent from keep and
// returns the deleted codes. An empty keep set is refused: it would wipe the
// table, and an empty discovery set means the crawl failed, not the market.
func (s *PostgresStore) DeleteCodesNotIn(ctx context.Context, keep []int64) ([]int64, error) {
	if len(keep) == 0 {
		return nil, fmt.Errorf("refusing delete sweep with empty keep set")
	}

	rows, err := s.pool.Query(ctx,
		`SELECT code FROM listings WHERE code IS NOT NULL AND NOT (code = ANY($1))`, keep)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var doomed []int64
	for rows.Next() {
		var code int64
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		doomed = append(doomed, code)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(doomed) == 0 {
		return nil, nil
	}

	// The candidate set is logged before the delete so a bad sweep leaves a
	// trace of what it was about to remove.
	log.Printf("[info] delete sweep: removing %d vanished codes %v", len(doomed), doomed)

	if _, err := s.pool.Exec(ctx, `DELETE FROM listings WHERE code = ANY($1)`, doomed); err != nil {
		return nil, err
	}
	return doomed, nil
}

func (s *PostgresStore) ListCodes(ctx context.Context) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT code FROM listings WHERE code IS NOT NULL ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []int64
	for rows.Next() {
		var code int64
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

func (s *PostgresStore) GetByCode(ctx context.Context, code int64) (*models.ListingDetail, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE code = $1`
	l, err := scanListing(s.pool.QueryRow(ctx, query, code))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

// StaleCodes returns codes whose record has not been touched within
// olderThan, oldest first. Feeds the liveness worker.
func (s *PostgresStore) StaleCodes(ctx context.Context, olderThan time.Duration, limit int) ([]int64, error) {
	query := `
		SELECT code FROM listings
		WHERE code IS NOT NULL AND (updated_at IS NULL OR updated_at < $1)
		ORDER BY updated_at NULLS FIRST
		LIMIT $2`

	cutoff := time.Now().UTC().Add(-olderThan)
	rows, err := s.pool.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []int64
	for rows.Next() {
		var code int64
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// SearchFilter narrows and orders the listing search. SortBy must be one of
// the whitelisted columns; anything else falls back to code.
type SearchFilter struct {
	Code        *int64
	MinPriceUSD *float64
	MaxPriceUSD *float64
	MinRooms    *int
	TownName    *string
	SortBy      string
	Descending  bool
	Limit       int
	Offset      int
}

var sortColumns = map[string]string{
	"code":       "code",
	"title":      "title",
	"price_usd":  "price_usd",
	"area_total": "area_total",
	"updated_at": "updated_at",
}

// Search returns one page of listings plus the total count of matches.
func (s *PostgresStore) Search(ctx context.Context, f SearchFilter) ([]*models.ListingDetail, int, error) {
	where := "WHERE code IS NOT NULL"
	var args []any

	addArg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Code != nil {
		where += " AND code = " + addArg(*f.Code)
	}
	if f.MinPriceUSD != nil {
		where += " AND price_usd >= " + addArg(*f.MinPriceUSD)
	}
	if f.MaxPriceUSD != nil {
		where += " AND price_usd <= " + addArg(*f.MaxPriceUSD)
	}
	if f.MinRooms != nil {
		where += " AND rooms >= " + addArg(*f.MinRooms)
	}
	if f.TownName != nil {
		where += " AND town_name ILIKE " + addArg(*f.TownName)
	}

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT count(*) FROM listings "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	sortCol, ok := sortColumns[f.SortBy]
	if !ok {
		sortCol = "code"
	}
	dir := "ASC"
	if f.Descending {
		dir = "DESC"
	}

	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(
		`SELECT %s FROM listings %s ORDER BY %s %s NULLS LAST LIMIT %s OFFSET %s`,
		listingColumns, where, sortCol, dir, addArg(limit), addArg(offset),
	)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var listings []*models.ListingDetail
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, 0, err
		}
		listings = append(listings, l)
	}
	return listings, total, rows.Err()
}

func (s *PostgresStore) CountListings(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM listings`).Scan(&n)
	return n, err
}
