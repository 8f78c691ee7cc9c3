// Package catalog loads products, conversation goals and brain documents.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	apperrors "whatsapp-sales-workers/internal/common/errors"
	"whatsapp-sales-workers/internal/models"
)

const productColumns = `id, name, COALESCE(category, ''), COALESCE(description, ''), features, images,
	base_price, currency, price_unit, min_negotiable, max_discount_percent,
	COALESCE(negotiation_conditions, ''), COALESCE(target_audience, ''), objections_responses,
	sales_arguments, COALESCE(cta_primary, ''), COALESCE(cta_secondary, ''), is_active, created_at, updated_at`

// Store implements product, goal and document lookups on Postgres.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row rowScanner) (*models.Product, error) {
	var (
		p                                       models.Product
		features, images, objections, arguments []byte
		minNegotiable                           sql.NullFloat64
	)
	err := row.Scan(&p.ID, &p.Name, &p.Category, &p.Description, &features, &images,
		&p.BasePrice, &p.Currency, &p.PriceUnit, &minNegotiable, &p.MaxDiscountPercent,
		&p.NegotiationConditions, &p.TargetAudience, &objections,
		&arguments, &p.CTAPrimary, &p.CTASecondary, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if minNegotiable.Valid {
		v := minNegotiable.Float64
		p.MinNegotiable = &v
	}
	if err := decodeJSON(features, &p.Features); err != nil {
		return nil, fmt.Errorf("product %s features: %w", p.ID, err)
	}
	if err := decodeJSON(images, &p.Images); err != nil {
		return nil, fmt.Errorf("product %s images: %w", p.ID, err)
	}
	if err := decodeJSON(objections, &p.ObjectionsResponses); err != nil {
		return nil, fmt.Errorf("product %s objections: %w", p.ID, err)
	}
	if err := decodeJSON(arguments, &p.SalesArguments); err != nil {
		return nil, fmt.Errorf("product %s sales arguments: %w", p.ID, err)
	}
	return &p, nil
}

func decodeJSON(raw []byte, dst interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func encodeJSON(v interface{}, empty string) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(raw) == "null" {
		return empty, nil
	}
	return string(raw), nil
}

// Product returns nil when the id is unknown.
func (s *Store) Product(ctx context.Context, id string) (*models.Product, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewQueryExecutionError("get product", err)
	}
	return p, nil
}

func (s *Store) ActiveProducts(ctx context.Context) ([]models.Product, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products WHERE is_active = TRUE ORDER BY name`)
	if err != nil {
		return nil, apperrors.NewQueryExecutionError("list products", err)
	}
	defer rows.Close()

	var out []models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, apperrors.NewQueryExecutionError("list products", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionError("list products", err)
	}
	return out, nil
}

// SaveProduct inserts or replaces a product.
func (s *Store) SaveProduct(ctx context.Context, p *models.Product) error {
	features, err := encodeJSON(p.Features, "[]")
	if err != nil {
		return err
	}
	images, err := encodeJSON(p.Images, "[]")
	if err != nil {
		return err
	}
	objections, err := encodeJSON(p.ObjectionsResponses, "{}")
	if err != nil {
		return err
	}
	arguments, err := encodeJSON(p.SalesArguments, "[]")
	if err != nil {
		return err
	}
	var minNegotiable sql.NullFloat64
	if p.MinNegotiable != nil {
		minNegotiable = sql.NullFloat64{Float64: *p.MinNegotiable, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, category, description, features, images, base_price, currency,
			price_unit, min_negotiable, max_discount_percent, negotiation_conditions, target_audience,
			objections_responses, sales_arguments, cta_primary, cta_secondary, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, category = EXCLUDED.category, description = EXCLUDED.description,
			features = EXCLUDED.features, images = EXCLUDED.images, base_price = EXCLUDED.base_price,
			currency = EXCLUDED.currency, price_unit = EXCLUDED.price_unit,
			min_negotiable = EXCLUDED.min_negotiable, max_discount_percent = EXCLUDED.max_discount_percent,
			negotiation_conditions = EXCLUDED.negotiation_conditions, target_audience = EXCLUDED.target_audience,
			objections_responses = EXCLUDED.objections_responses, sales_arguments = EXCLUDED.sales_arguments,
			cta_primary = EXCLUDED.cta_primary, cta_secondary = EXCLUDED.cta_secondary,
			is_active = EXCLUDED.is_active, updated_at = NOW()`,
		p.ID, p.Name, p.Category, p.Description, features, images, p.BasePrice, p.CurrencyOrDefault(),
		p.PriceUnit, minNegotiable, p.MaxDiscountPercent, p.NegotiationConditions, p.TargetAudience,
		objections, arguments, p.CTAPrimary, p.CTASecondary, p.IsActive)
	if err != nil {
		return apperrors.NewDatabaseInsertError("products", err)
	}
	return nil
}

// ActiveGoals returns active goals, high priority first.
func (s *Store) ActiveGoals(ctx context.Context) ([]models.Goal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(description, ''), priority, tactics, success_indicators,
			abort_conditions, escalation_rules, is_active
		FROM conversation_goals
		WHERE is_active = TRUE
		ORDER BY CASE priority WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END, name`)
	if err != nil {
		return nil, apperrors.NewQueryExecutionError("list goals", err)
	}
	defer rows.Close()

	var out []models.Goal
	for rows.Next() {
		var (
			g                                   models.Goal
			tactics, success, abort, escalation []byte
		)
		if err := rows.Scan(&g.ID, &g.Name, &g.Description, &g.Priority, &tactics, &success,
			&abort, &escalation, &g.IsActive); err != nil {
			return nil, apperrors.NewQueryExecutionError("list goals", err)
		}
		for _, f := range []struct {
			raw []byte
			dst interface{}
		}{{tactics, &g.Tactics}, {success, &g.SuccessIndicators}, {abort, &g.AbortConditions}, {escalation, &g.EscalationRules}} {
			if err := decodeJSON(f.raw, f.dst); err != nil {
				return nil, fmt.Errorf("goal %s: %w", g.ID, err)
			}
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionError("list goals", err)
	}
	return out, nil
}

// BrainDocuments returns the knowledge documents, oldest first.
func (s *Store) BrainDocuments(ctx context.Context) ([]models.BrainDocument, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, filepath, COALESCE(content, ''), created_at FROM brain_documents ORDER BY created_at`)
	if err != nil {
		return nil, apperrors.NewQueryExecutionError("list brain documents", err)
	}
	defer rows.Close()

	var out []models.BrainDocument
	for rows.Next() {
		var d models.BrainDocument
		if err := rows.Scan(&d.ID, &d.Filename, &d.Filepath, &d.Content, &d.CreatedAt); err != nil {
			return nil, apperrors.NewQueryExecutionError("list brain documents", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionError("list brain documents", err)
	}
	return out, nil
}
