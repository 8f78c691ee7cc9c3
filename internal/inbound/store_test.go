// internal/inbound/store_test.go
package inbound

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "whatsapp-sales-workers/internal/common/errors"
	"whatsapp-sales-workers/internal/models"
	"whatsapp-sales-workers/internal/transport"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jid = "33612345678@s.whatsapp.net"

func TestConversationStore_TouchContact(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectExec(`INSERT INTO contacts .* ON CONFLICT \(jid\) DO UPDATE SET push_name`).
		WithArgs(jid, "Marie", "33612345678", false, at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewConversationStore(db).TouchContact(context.Background(), jid, "33612345678", "Marie", at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConversationStore_UpsertContacts_NameFallbacks(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO contacts`).
		WithArgs(jid, "Marie Dupont", "Marie", "33612345678", false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO contacts`).
		WithArgs("33699999999@s.whatsapp.net", "Paul", "Paul", "33699999999", false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO contacts`).
		WithArgs("33611111111@s.whatsapp.net", "33611111111", "", "33611111111", false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = NewConversationStore(db).UpsertContacts(context.Background(), []transport.ContactUpdate{
		{JID: jid, Name: "Marie Dupont", PushName: "Marie"},
		{JID: "33699999999@s.whatsapp.net", PushName: "Paul"},
		{JID: "33611111111@s.whatsapp.net"},
		{JID: ""},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConversationStore_UpsertContacts_RollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO contacts`).WillReturnError(errors.New("deadlock"))
	mock.ExpectRollback()

	err = NewConversationStore(db).UpsertContacts(context.Background(), []transport.ContactUpdate{{JID: jid}})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeDatabaseInsertFailed))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConversationStore_SaveMessage(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	msg := models.Message{ID: "m1", ContactJID: jid, Content: "Bonjour", Timestamp: at}

	mock.ExpectExec(`INSERT INTO messages .* ON CONFLICT \(id\) DO NOTHING`).
		WithArgs("m1", jid, "Bonjour", false, at, false, "sent", false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO messages`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	store := NewConversationStore(db)
	inserted, err := store.SaveMessage(context.Background(), msg)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = store.SaveMessage(context.Background(), msg)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConversationStore_RecentMessages_OldestFirst(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT .* FROM messages\s+WHERE contact_jid = \$1 AND id <> \$2\s+ORDER BY timestamp DESC`).
		WithArgs(jid, "current", 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "contact_jid", "content", "from_me", "timestamp", "ai_generated"}).
			AddRow("m3", jid, "Avec plaisir", true, t0.Add(2*time.Minute), true).
			AddRow("m2", jid, "Vous livrez ?", false, t0.Add(time.Minute), false).
			AddRow("m1", jid, "Bonjour", false, t0, false))

	got, err := NewConversationStore(db).RecentMessages(context.Background(), jid, 10, "current")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"m1", "m2", "m3"}, []string{got[0].ID, got[1].ID, got[2].ID})
	assert.True(t, got[2].FromMe)
	assert.True(t, got[2].AIGenerated)
}

func TestConversationStore_Contact(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cols := []string{"jid", "name", "push_name", "phone", "lead_score"}
	mock.ExpectQuery(`FROM contacts WHERE jid = \$1`).WithArgs(jid).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(jid, "", "Marie", "33612345678", 40))
	mock.ExpectQuery(`FROM contacts WHERE jid = \$1`).WithArgs("unknown").
		WillReturnRows(sqlmock.NewRows(cols))

	store := NewConversationStore(db)
	c, err := store.Contact(context.Background(), jid)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "Marie", c.DisplayName())
	assert.Equal(t, 40, c.LeadScore)

	c, err = store.Contact(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Nil(t, c)
}
