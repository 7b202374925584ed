package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dealdesk/internal/listing/models"
	"dealdesk/internal/listing/ports"
	domain "dealdesk/pkg/domain"
	"dealdesk/pkg/platform/sentinel"
)

// ListingStore persists market listings in PostgreSQL with optimistic
// versioning. Sub-flags and the derived is_qualified live in the same row,
// so a single UPDATE is the atomic recomputation the qualifier needs.
type ListingStore struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *ListingStore {
	return &ListingStore{pool: pool}
}

func (s *ListingStore) Create(ctx context.Context, l *models.MarketListing) error {
	now := time.Now().UTC()
	l.Version = 1
	l.CreatedAt = now
	l.UpdatedAt = now

	subFlags, err := json.Marshal(l.SubFlags)
	if err != nil {
		return fmt.Errorf("marshal sub flags: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO market_listings (
			id, source, price, price_type, estimated_market_value,
			state, lat, lon, sub_flags, is_qualified, score, reasoning,
			rule_set_version, status, property_id, version, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
	`,
		uuid.UUID(l.ID),
		l.Source,
		int64(l.Price),
		string(l.PriceType),
		int64(l.EstimatedMarketValue),
		l.State,
		l.Lat,
		l.Lon,
		subFlags,
		l.IsQualified,
		l.Score,
		l.Reasoning,
		l.RuleSetVersion,
		string(l.Status),
		propertyIDPtr(l.PropertyID),
		l.Version,
		l.CreatedAt,
		l.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert listing: %w", err)
	}
	return nil
}

func (s *ListingStore) Get(ctx context.Context, id domain.ListingID) (*models.MarketListing, error) {
	row := s.pool.QueryRow(ctx, selectListingSQL+` WHERE id = $1`, uuid.UUID(id))
	return scanListing(row)
}

func (s *ListingStore) Update(ctx context.Context, l *models.MarketListing, expectedVersion int64) error {
	l.Version = expectedVersion + 1
	l.UpdatedAt = time.Now().UTC()

	subFlags, err := json.Marshal(l.SubFlags)
	if err != nil {
		return fmt.Errorf("marshal sub flags: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE market_listings SET
			source = $2, price = $3, price_type = $4,
			estimated_market_value = $5, state = $6, lat = $7, lon = $8,
			sub_flags = $9, is_qualified = $10, score = $11, reasoning = $12,
			rule_set_version = $13, status = $14, property_id = $15,
			version = $16, updated_at = $17
		WHERE id = $1 AND version = $18
	`,
		uuid.UUID(l.ID),
		l.Source,
		int64(l.Price),
		string(l.PriceType),
		int64(l.EstimatedMarketValue),
		l.State,
		l.Lat,
		l.Lon,
		subFlags,
		l.IsQualified,
		l.Score,
		l.Reasoning,
		l.RuleSetVersion,
		string(l.Status),
		propertyIDPtr(l.PropertyID),
		l.Version,
		l.UpdatedAt,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update listing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.notFoundOrConflict(ctx, l.ID)
	}
	return nil
}

func (s *ListingStore) List(ctx context.Context, filter ports.ListFilter) ([]*models.MarketListing, error) {
	query := selectListingSQL + ` WHERE ($1::boolean IS NULL OR is_qualified = $1)
		AND ($2::text IS NULL OR status = $2)
		ORDER BY score DESC, created_at ASC`

	var status *string
	if filter.Status != nil {
		v := string(*filter.Status)
		status = &v
	}

	rows, err := s.pool.Query(ctx, query, filter.Qualified, status)
	if err != nil {
		return nil, fmt.Errorf("query listings: %w", err)
	}
	defer rows.Close()

	var listings []*models.MarketListing
	for rows.Next() {
		l, serr := scanListing(rows)
		if serr != nil {
			return nil, serr
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

func (s *ListingStore) notFoundOrConflict(ctx context.Context, id domain.ListingID) error {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM market_listings WHERE id = $1)`, uuid.UUID(id),
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check listing existence: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrVersionConflict
}

const selectListingSQL = `
	SELECT id, source, price, price_type, estimated_market_value,
	       state, lat, lon, sub_flags, is_qualified, score, reasoning,
	       rule_set_version, status, property_id, version, created_at, updated_at
	FROM market_listings`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (*models.MarketListing, error) {
	var (
		l          models.MarketListing
		id         uuid.UUID
		price      int64
		priceType  string
		market     int64
		subFlags   []byte
		status     string
		propertyID *uuid.UUID
	)
	err := row.Scan(
		&id, &l.Source, &price, &priceType, &market,
		&l.State, &l.Lat, &l.Lon, &subFlags, &l.IsQualified, &l.Score,
		&l.Reasoning, &l.RuleSetVersion, &status, &propertyID,
		&l.Version, &l.CreatedAt, &l.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan listing: %w", err)
	}

	l.ID = domain.ListingID(id)
	l.Price = domain.Money(price)
	l.PriceType = models.PriceType(priceType)
	l.EstimatedMarketValue = domain.Money(market)
	l.Status = models.Status(status)
	if propertyID != nil {
		pid := domain.PropertyID(*propertyID)
		l.PropertyID = &pid
	}
	if len(subFlags) > 0 {
		if err := json.Unmarshal(subFlags, &l.SubFlags); err != nil {
			return nil, fmt.Errorf("unmarshal sub flags: %w", err)
		}
	}
	return &l, nil
}

func propertyIDPtr(id *domain.PropertyID) *uuid.UUID {
	if id == nil {
		return nil
	}
	u := uuid.UUID(*id)
	return &u
}

func isUniqueViolation(err error) bool {
	// 23505 is the PostgreSQL unique_violation code.
	type pgErr interface{ SQLState() string }
	var e pgErr
	return errors.As(err, &e) && e.SQLState() == "23505"
}
