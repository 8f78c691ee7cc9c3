// internal/negotiation/store.go
package negotiation

import (
	"context"
	"database/sql"
	"encoding/json"
	"math"
	"time"

	apperrors "whatsapp-sales-workers/internal/common/errors"
)

// StatsWindow is how far back Stats looks.
const StatsWindow = 30 * 24 * time.Hour

// LogEntry is one negotiation outcome to persist.
type LogEntry struct {
	ContactID         string
	ProductID         string
	RequestedPrice    float64
	FinalPrice        float64
	Accepted          bool
	ConditionsApplied []string
	Excerpt           string
}

type ProductStats struct {
	ProductID    string `json:"productId"`
	Name         string `json:"name"`
	Negotiations int    `json:"negotiations"`
	Accepted     int    `json:"accepted"`
}

type Stats struct {
	Total             int            `json:"total"`
	Accepted          int            `json:"accepted"`
	AvgFinalPrice     float64        `json:"avgFinalPrice"`
	AvgRequestedPrice float64        `json:"avgRequestedPrice"`
	SuccessRate       int            `json:"successRate"`
	ByProduct         []ProductStats `json:"byProduct"`
}

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// EntryFor builds a LogEntry from an engine result.
func EntryFor(contactID, productID string, res Result) LogEntry {
	final := res.FinalPrice
	if !res.Accepted {
		final = 0
	}
	return LogEntry{
		ContactID:      contactID,
		ProductID:      productID,
		RequestedPrice: res.RequestedPrice,
		FinalPrice:     final,
		Accepted:       res.Accepted,
	}
}

func (s *Store) Log(ctx context.Context, e LogEntry) error {
	conditions := e.ConditionsApplied
	if conditions == nil {
		conditions = []string{}
	}
	raw, err := json.Marshal(conditions)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO negotiation_logs
			(contact_jid, product_id, requested_price, final_price, accepted, conditions_applied, conversation_excerpt)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ContactID, sql.NullString{String: e.ProductID, Valid: e.ProductID != ""},
		nullPrice(e.RequestedPrice), nullPrice(e.FinalPrice), e.Accepted, string(raw), e.Excerpt)
	if err != nil {
		return apperrors.NewDatabaseInsertError("negotiation_logs", err)
	}
	return nil
}

func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	since := s.now().Add(-StatsWindow)

	var (
		st                   Stats
		avgFinal, avgRequest sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN accepted THEN 1 ELSE 0 END), 0),
			AVG(CASE WHEN accepted THEN final_price END),
			AVG(CASE WHEN accepted THEN requested_price END)
		FROM negotiation_logs
		WHERE created_at > $1`, since).Scan(&st.Total, &st.Accepted, &avgFinal, &avgRequest)
	if err != nil {
		return nil, apperrors.NewQueryExecutionError("negotiation_stats", err)
	}
	st.AvgFinalPrice = math.Round(avgFinal.Float64)
	st.AvgRequestedPrice = math.Round(avgRequest.Float64)
	if st.Total > 0 {
		st.SuccessRate = int(math.Round(float64(st.Accepted) / float64(st.Total) * 100))
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.name, COUNT(*),
			COALESCE(SUM(CASE WHEN nl.accepted THEN 1 ELSE 0 END), 0)
		FROM negotiation_logs nl
		JOIN products p ON nl.product_id = p.id
		WHERE nl.created_at > $1
		GROUP BY p.id, p.name
		ORDER BY COUNT(*) DESC`, since)
	if err != nil {
		return nil, apperrors.NewQueryExecutionError("negotiation_stats_by_product", err)
	}
	defer rows.Close()

	st.ByProduct = []ProductStats{}
	for rows.Next() {
		var ps ProductStats
		if err := rows.Scan(&ps.ProductID, &ps.Name, &ps.Negotiations, &ps.Accepted); err != nil {
			return nil, apperrors.NewQueryExecutionError("negotiation_stats_by_product", err)
		}
		st.ByProduct = append(st.ByProduct, ps)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionError("negotiation_stats_by_product", err)
	}
	return &st, nil
}

func nullPrice(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: v > 0}
}
