package protocol

import (
	"testing"

	"github.com/finanzaapp/finsync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountRecord_RoundTrip(t *testing.T) {
	a := &models.Account{
		UUID:           "uuid-1",
		Name:           "Conta Corrente; principal",
		Type:           "checking",
		InitialBalance: 1250.75,
		LastModified:   1700000000000,
		SyncStatus:     models.SyncStatusSynced,
		ServerHash:     "abc123",
	}

	got, err := ParseAccountRecord(EncodeAccountRecord(a))
	require.NoError(t, err)
	assert.Equal(t, a.UUID, got.UUID)
	assert.Equal(t, a.Name, got.Name)
	assert.Equal(t, a.Type, got.Type)
	assert.Equal(t, a.InitialBalance, got.InitialBalance)
	assert.Equal(t, a.LastModified, got.LastModified)
	assert.Equal(t, a.SyncStatus, got.SyncStatus)
	assert.Equal(t, a.ServerHash, got.ServerHash)
}

func TestParseAccountRecord_Malformed(t *testing.T) {
	_, err := ParseAccountRecord("too,few,fields")
	assert.Error(t, err)

	_, err = ParseAccountRecord("uuid,n,t,notanumber,5,1,h")
	assert.Error(t, err)

	// Missing uuid is rejected: the join key is mandatory.
	_, err = ParseAccountRecord(",n,t,1,5,1,h")
	assert.Error(t, err)

	// Out-of-range sync status.
	_, err = ParseAccountRecord("uuid,n,t,1,5,9,h")
	assert.Error(t, err)
}

func TestCategoryRecord_RoundTrip(t *testing.T) {
	c := &models.Category{
		UUID:         "uuid-2",
		Name:         "Alimentação",
		Type:         models.CategoryTypeExpense,
		ColorHex:     "#FF5722",
		LastModified: 42,
		SyncStatus:   models.SyncStatusNeedsSync,
		ServerHash:   "h",
	}

	got, err := ParseCategoryRecord(EncodeCategoryRecord(c))
	require.NoError(t, err)
	assert.Equal(t, c.Name, got.Name)
	assert.Equal(t, c.ColorHex, got.ColorHex)
	assert.Equal(t, c.SyncStatus, got.SyncStatus)
}

func TestTransactionRecord_RoundTrip(t *testing.T) {
	tr := &models.Transaction{
		UUID:         "uuid-3",
		Amount:       99.9,
		Date:         1700000000000,
		Description:  "mercado, compra semanal",
		Type:         models.TransactionTypeExpense,
		AccountID:    3,
		CategoryID:   7,
		UserID:       1,
		LastModified: 1700000001000,
		SyncStatus:   models.SyncStatusLocalOnly,
		ServerHash:   "",
		Deleted:      true,
	}

	got, err := ParseTransactionRecord(EncodeTransactionRecord(tr))
	require.NoError(t, err)
	assert.Equal(t, tr.Amount, got.Amount)
	assert.Equal(t, tr.Description, got.Description)
	assert.Equal(t, tr.AccountID, got.AccountID)
	assert.Equal(t, tr.CategoryID, got.CategoryID)
	assert.Equal(t, tr.UserID, got.UserID)
	assert.True(t, got.Deleted)
}

func TestRecord_HashFieldCarriesServerHashVerbatim(t *testing.T) {
	a := &models.Account{UUID: "u", Name: "n", Type: "t", ServerHash: "stored-digest"}
	got, err := ParseAccountRecord(EncodeAccountRecord(a))
	require.NoError(t, err)
	// The wire field is never recomputed on encode; a pending client row
	// reports the last agreed digest, not its own content digest.
	assert.Equal(t, "stored-digest", got.ServerHash)
	assert.NotEqual(t, got.DataHash(), got.ServerHash)
}
