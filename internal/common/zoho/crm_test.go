// internal/common/zoho/crm_test.go
package zoho

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertLead(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Leads/upsert", r.URL.Path)
		assert.Equal(t, "Zoho-oauthtoken tok", r.Header.Get("Authorization"))

		var body struct {
			Data            []Lead   `json:"data"`
			DuplicateFields []string `json:"duplicate_check_fields"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"Phone"}, body.DuplicateFields)
		if assert.Len(t, body.Data, 1) {
			assert.Equal(t, "+33612345678", body.Data[0].Phone)
		}

		_, _ = w.Write([]byte(`{"data":[{"code":"SUCCESS","action":"insert","status":"success","details":{"id":"4150868000000624001"}}]}`))
	}))
	defer server.Close()

	id, err := NewCRMClient(server.URL, "tok").UpsertLead(context.Background(), &Lead{
		LastName: "Marie",
		Phone:    "+33612345678",
		Source:   "WhatsApp",
	})
	require.NoError(t, err)
	assert.Equal(t, "4150868000000624001", id)
}

func TestUpsertLead_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"code":"MANDATORY_NOT_FOUND","status":"error","message":"required field not found"}]}`))
	}))
	defer server.Close()

	_, err := NewCRMClient(server.URL, "tok").UpsertLead(context.Background(), &Lead{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MANDATORY_NOT_FOUND")
}

func TestGetLead_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	_, err := NewCRMClient(server.URL, "tok").GetLead(context.Background(), "42")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
