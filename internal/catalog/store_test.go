// internal/catalog/store_test.go
package catalog

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "whatsapp-sales-workers/internal/common/errors"
	"whatsapp-sales-workers/internal/models"
)

var productCols = []string{
	"id", "name", "category", "description", "features", "images",
	"base_price", "currency", "price_unit", "min_negotiable", "max_discount_percent",
	"negotiation_conditions", "target_audience", "objections_responses",
	"sales_arguments", "cta_primary", "cta_secondary", "is_active", "created_at", "updated_at",
}

func productRow(rows *sqlmock.Rows, id string, minNegotiable interface{}) *sqlmock.Rows {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return rows.AddRow(id, "CRM Pro", "logiciel", "CRM pour PME",
		[]byte(`["pipeline","relances"]`), []byte(`[]`),
		100.0, "EUR", "mois", minNegotiable, 20.0,
		"engagement 12 mois: 20%", "PME", []byte(`{"trop cher":"ROI en 3 mois"}`),
		[]byte(`["support 7j/7"]`), "Réserver une démo", "", true, now, now)
}

func TestStore_Product(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM products WHERE id = \$1`).
		WithArgs("crm-pro").
		WillReturnRows(productRow(sqlmock.NewRows(productCols), "crm-pro", 60.0))

	p, err := NewStore(db).Product(context.Background(), "crm-pro")
	require.NoError(t, err)
	require.NotNil(t, p)

	assert.Equal(t, "CRM Pro", p.Name)
	assert.Equal(t, []string{"pipeline", "relances"}, p.Features)
	assert.Equal(t, "ROI en 3 mois", p.ObjectionsResponses["trop cher"])
	assert.Equal(t, []string{"support 7j/7"}, p.SalesArguments)
	require.NotNil(t, p.MinNegotiable)
	assert.Equal(t, 60.0, p.Floor())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ProductNullFloor(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM products WHERE id = \$1`).
		WithArgs("crm-pro").
		WillReturnRows(productRow(sqlmock.NewRows(productCols), "crm-pro", nil))

	p, err := NewStore(db).Product(context.Background(), "crm-pro")
	require.NoError(t, err)
	assert.Nil(t, p.MinNegotiable)
	assert.Equal(t, 100.0, p.Floor())
}

func TestStore_ProductMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM products WHERE id = \$1`).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	p, err := NewStore(db).Product(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestStore_ActiveProducts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows(productCols)
	productRow(rows, "a", 60.0)
	productRow(rows, "b", nil)
	mock.ExpectQuery(`FROM products WHERE is_active = TRUE ORDER BY name`).WillReturnRows(rows)

	products, err := NewStore(db).ActiveProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "a", products[0].ID)
	assert.Equal(t, "b", products[1].ID)
}

func TestStore_ActiveProductsQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM products`).WillReturnError(sql.ErrConnDone)

	_, err = NewStore(db).ActiveProducts(context.Background())
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeQueryExecutionFailed))
}

func TestStore_SaveProduct(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	floor := 60.0
	p := &models.Product{
		ID: "crm-pro", Name: "CRM Pro", BasePrice: 100, PriceUnit: "mois",
		MinNegotiable: &floor, MaxDiscountPercent: 20, IsActive: true,
	}

	mock.ExpectExec(`INSERT INTO products`).
		WithArgs("crm-pro", "CRM Pro", "", "", "[]", "[]", 100.0, "EUR",
			"mois", sql.NullFloat64{Float64: 60, Valid: true}, 20.0, "", "",
			"{}", "[]", "", "", true).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewStore(db).SaveProduct(context.Background(), p))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ActiveGoals(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "name", "description", "priority", "tactics",
		"success_indicators", "abort_conditions", "escalation_rules", "is_active"}).
		AddRow("book-demo", "Obtenir une démo", "", "high",
			[]byte(`["proposer deux créneaux"]`), []byte(`["date confirmée"]`),
			[]byte(`[]`), []byte(`{"after":3}`), true)
	mock.ExpectQuery(`FROM conversation_goals`).WillReturnRows(rows)

	goals, err := NewStore(db).ActiveGoals(context.Background())
	require.NoError(t, err)
	require.Len(t, goals, 1)
	assert.Equal(t, []string{"proposer deux créneaux"}, goals[0].Tactics)
	assert.Equal(t, float64(3), goals[0].EscalationRules["after"])
}

func TestStore_BrainDocuments(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`FROM brain_documents`).WillReturnRows(
		sqlmock.NewRows([]string{"id", "filename", "filepath", "content", "created_at"}).
			AddRow(int64(1), "faq.txt", "/data/faq.txt", "Livraison en 48h", now))

	docs, err := NewStore(db).BrainDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Livraison en 48h", docs[0].Content)
}
