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

	"dealdesk/internal/pipeline/models"
	domain "dealdesk/pkg/domain"
	audit "dealdesk/pkg/platform/audit"
	"dealdesk/pkg/platform/sentinel"
)

// PropertyStore persists pipeline state in PostgreSQL with optimistic
// versioning. ApplyTransition writes the property row, the transition and
// the audit entry (plus its outbox row) in one transaction, which is what
// makes a stage change atomic.
type PropertyStore struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *PropertyStore {
	return &PropertyStore{pool: pool}
}

func (s *PropertyStore) Create(ctx context.Context, p *models.Property) error {
	now := time.Now().UTC()
	p.Version = 1
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := s.pool.Exec(ctx, `
		INSERT INTO properties (
			id, stage, asking_price, market_value, arv, repair_estimate,
			title_status, defect_keys, city, state, lat, lon,
			documents, last_inputs_hash, version, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`, propertyArgs(p)...)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert property: %w", err)
	}
	return nil
}

func (s *PropertyStore) Get(ctx context.Context, id domain.PropertyID) (*models.Property, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, stage, asking_price, market_value, arv, repair_estimate,
		       title_status, defect_keys, city, state, lat, lon,
		       documents, last_inputs_hash, version, created_at, updated_at
		FROM properties
		WHERE id = $1
	`, uuid.UUID(id))
	return scanProperty(row)
}

func (s *PropertyStore) Update(ctx context.Context, p *models.Property, expectedVersion int64) error {
	p.Version = expectedVersion + 1
	p.UpdatedAt = time.Now().UTC()

	tag, err := s.pool.Exec(ctx, updatePropertySQL, updateArgs(p, expectedVersion)...)
	if err != nil {
		return fmt.Errorf("update property: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.notFoundOrConflict(ctx, p.ID)
	}
	return nil
}

func (s *PropertyStore) ApplyTransition(ctx context.Context, p *models.Property, expectedVersion int64, transition *models.StageTransition, event audit.Event) error {
	if transition.ID == uuid.Nil {
		transition.ID = uuid.New()
	}
	now := time.Now().UTC()
	transition.CreatedAt = now
	p.Version = expectedVersion + 1
	p.UpdatedAt = now
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = now
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin transition tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, updatePropertySQL, updateArgs(p, expectedVersion)...)
	if err != nil {
		return fmt.Errorf("update property stage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.notFoundOrConflict(ctx, p.ID)
	}

	metricsJSON, err := json.Marshal(transition.Metrics)
	if err != nil {
		return fmt.Errorf("marshal decision metrics: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO stage_transitions (
			id, property_id, from_stage, to_stage, metrics,
			inputs_hash, reason, actor, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		transition.ID,
		uuid.UUID(transition.PropertyID),
		string(transition.FromStage),
		string(transition.ToStage),
		metricsJSON,
		transition.InputsHash,
		transition.Reason,
		transition.Actor,
		transition.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert stage transition: %w", err)
	}

	if err := insertAuditEvent(ctx, tx, event); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transition tx: %w", err)
	}
	return nil
}

func (s *PropertyStore) SaveInspection(ctx context.Context, result *models.InspectionResult) error {
	if result.ID.IsNil() {
		result.ID = domain.NewInspectionID()
	}
	result.CreatedAt = time.Now().UTC()

	aggJSON, err := json.Marshal(result.Aggregation)
	if err != nil {
		return fmt.Errorf("marshal inspection aggregation: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO inspection_results (
			id, property_id, defect_keys, title_status, aggregation, notes, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`,
		uuid.UUID(result.ID),
		uuid.UUID(result.PropertyID),
		result.DefectKeys,
		string(result.TitleStatus),
		aggJSON,
		result.Notes,
		result.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert inspection result: %w", err)
	}
	return nil
}

func (s *PropertyStore) LatestInspection(ctx context.Context, id domain.PropertyID) (*models.InspectionResult, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, property_id, defect_keys, title_status, aggregation, notes, created_at
		FROM inspection_results
		WHERE property_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, uuid.UUID(id))

	var (
		result     models.InspectionResult
		resultID   uuid.UUID
		propertyID uuid.UUID
		title      string
		aggJSON    []byte
	)
	err := row.Scan(&resultID, &propertyID, &result.DefectKeys, &title, &aggJSON, &result.Notes, &result.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan inspection result: %w", err)
	}
	result.ID = domain.InspectionID(resultID)
	result.PropertyID = domain.PropertyID(propertyID)
	result.TitleStatus = domain.TitleStatus(title)
	if err := json.Unmarshal(aggJSON, &result.Aggregation); err != nil {
		return nil, fmt.Errorf("unmarshal inspection aggregation: %w", err)
	}
	return &result, nil
}

func (s *PropertyStore) ListTransitions(ctx context.Context, id domain.PropertyID) ([]models.StageTransition, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, property_id, from_stage, to_stage, metrics,
		       inputs_hash, reason, actor, created_at
		FROM stage_transitions
		WHERE property_id = $1
		ORDER BY created_at ASC
	`, uuid.UUID(id))
	if err != nil {
		return nil, fmt.Errorf("query stage transitions: %w", err)
	}
	defer rows.Close()

	var transitions []models.StageTransition
	for rows.Next() {
		var (
			tr          models.StageTransition
			propertyID  uuid.UUID
			from, to    string
			metricsJSON []byte
		)
		err := rows.Scan(&tr.ID, &propertyID, &from, &to, &metricsJSON, &tr.InputsHash, &tr.Reason, &tr.Actor, &tr.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan stage transition: %w", err)
		}
		tr.PropertyID = domain.PropertyID(propertyID)
		tr.FromStage = models.Stage(from)
		tr.ToStage = models.Stage(to)
		if err := json.Unmarshal(metricsJSON, &tr.Metrics); err != nil {
			return nil, fmt.Errorf("unmarshal decision metrics: %w", err)
		}
		transitions = append(transitions, tr)
	}
	return transitions, rows.Err()
}

// notFoundOrConflict distinguishes a missing row from a version mismatch
// after a zero-row update.
func (s *PropertyStore) notFoundOrConflict(ctx context.Context, id domain.PropertyID) error {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM properties WHERE id = $1)`, uuid.UUID(id),
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check property existence: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrVersionConflict
}

const updatePropertySQL = `
	UPDATE properties SET
		stage = $2, asking_price = $3, market_value = $4, arv = $5,
		repair_estimate = $6, title_status = $7, defect_keys = $8,
		city = $9, state = $10, lat = $11, lon = $12, documents = $13,
		last_inputs_hash = $14, version = $15, updated_at = $16
	WHERE id = $1 AND version = $17
`

func updateArgs(p *models.Property, expectedVersion int64) []any {
	return []any{
		uuid.UUID(p.ID),
		string(p.Stage),
		int64(p.AskingPrice),
		int64(p.MarketValue),
		moneyPtr(p.ARV),
		moneyPtr(p.RepairEstimate),
		string(p.TitleStatus),
		p.DefectKeys,
		p.Location.City,
		p.Location.State,
		p.Location.Lat,
		p.Location.Lon,
		documentsToStrings(p.Documents),
		p.LastInputsHash,
		p.Version,
		p.UpdatedAt,
		expectedVersion,
	}
}

func propertyArgs(p *models.Property) []any {
	return []any{
		uuid.UUID(p.ID),
		string(p.Stage),
		int64(p.AskingPrice),
		int64(p.MarketValue),
		moneyPtr(p.ARV),
		moneyPtr(p.RepairEstimate),
		string(p.TitleStatus),
		p.DefectKeys,
		p.Location.City,
		p.Location.State,
		p.Location.Lat,
		p.Location.Lon,
		documentsToStrings(p.Documents),
		p.LastInputsHash,
		p.Version,
		p.CreatedAt,
		p.UpdatedAt,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProperty(row rowScanner) (*models.Property, error) {
	var (
		p          models.Property
		id         uuid.UUID
		stage      string
		asking     int64
		market     int64
		arv        *int64
		repair     *int64
		title      string
		documents  []string
		defectKeys []string
	)
	err := row.Scan(
		&id, &stage, &asking, &market, &arv, &repair,
		&title, &defectKeys, &p.Location.City, &p.Location.State,
		&p.Location.Lat, &p.Location.Lon, &documents,
		&p.LastInputsHash, &p.Version, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan property: %w", err)
	}

	p.ID = domain.PropertyID(id)
	p.Stage = models.Stage(stage)
	p.AskingPrice = domain.Money(asking)
	p.MarketValue = domain.Money(market)
	p.ARV = int64ToMoneyPtr(arv)
	p.RepairEstimate = int64ToMoneyPtr(repair)
	p.TitleStatus = domain.TitleStatus(title)
	p.DefectKeys = defectKeys
	p.Documents = stringsToDocuments(documents)
	return &p, nil
}

func insertAuditEvent(ctx context.Context, tx pgx.Tx, event audit.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO audit_events (
			id, entity_type, entity_id, action, from_state, to_state,
			decision, reason, actor, metrics, request_id, occurred_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		event.ID,
		string(event.EntityType),
		event.EntityID,
		string(event.Action),
		event.FromState,
		event.ToState,
		event.Decision,
		event.Reason,
		event.Actor,
		jsonOrNil(event.Metrics),
		event.RequestID,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO audit_outbox (id, event_id, payload, created_at)
		VALUES ($1,$2,$3,$4)
	`, uuid.New(), event.ID, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert audit outbox entry: %w", err)
	}
	return nil
}

func moneyPtr(m *domain.Money) *int64 {
	if m == nil {
		return nil
	}
	v := int64(*m)
	return &v
}

func int64ToMoneyPtr(v *int64) *domain.Money {
	if v == nil {
		return nil
	}
	m := domain.Money(*v)
	return &m
}

func documentsToStrings(docs []models.DocumentType) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = string(d)
	}
	return out
}

func stringsToDocuments(in []string) []models.DocumentType {
	if len(in) == 0 {
		return nil
	}
	out := make([]models.DocumentType, len(in))
	for i, s := range in {
		out[i] = models.DocumentType(s)
	}
	return out
}

func jsonOrNil(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

func isUniqueViolation(err error) bool {
	// 23505 is the PostgreSQL unique_violation code.
	type pgErr interface{ SQLState() string }
	var e pgErr
	return errors.As(err, &e) && e.SQLState() == "23505"
}
