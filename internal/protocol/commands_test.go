package protocol

import (
	"strings"
	"testing"

	"github.com/finanzaapp/finsync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildListChangesSince(t *testing.T) {
	assert.Equal(t, "LIST_CHANGES_SINCE|conta|1500", BuildListChangesSince(models.EntityAccount, 1500))
}

func TestBuildResolveConflict(t *testing.T) {
	assert.Equal(t, "RESOLVE_CONFLICT|movimentacao|u-1|CLIENT",
		BuildResolveConflict(models.EntityTransaction, "u-1", ResolutionClient))
}

func TestBuildDeleteTransactionSoft(t *testing.T) {
	assert.Equal(t, "DELETE_MOVIMENTACAO_SOFT|u-1|777", BuildDeleteTransactionSoft("u-1", 777))
}

func TestAccountEnhanced_RoundTrip(t *testing.T) {
	a := &models.Account{
		UUID:           "u-1",
		Name:           "Poupança | reserva",
		Type:           "savings",
		InitialBalance: 10.5,
		LastModified:   123,
		SyncStatus:     models.SyncStatusNeedsSync,
		ServerHash:     "h1",
	}

	verb, params, err := ParseCommand(BuildUpdateAccountEnhanced(a))
	require.NoError(t, err)
	assert.Equal(t, CmdUpdateAccountEnhanced, verb)

	got, err := ParseAccountEnhanced(params)
	require.NoError(t, err)
	assert.Equal(t, a.Name, got.Name)
	assert.Equal(t, a.UUID, got.UUID)
	assert.Equal(t, a.LastModified, got.LastModified)
	assert.Equal(t, a.ServerHash, got.ServerHash)
}

func TestCategoryEnhanced_RoundTrip(t *testing.T) {
	c := &models.Category{
		UUID:         "u-2",
		Name:         "Salário",
		Type:         models.CategoryTypeIncome,
		ColorHex:     "#4CAF50",
		LastModified: 9,
		SyncStatus:   models.SyncStatusLocalOnly,
	}

	verb, params, err := ParseCommand(BuildAddCategoryEnhanced(c))
	require.NoError(t, err)
	assert.Equal(t, CmdAddCategoryEnhanced, verb)

	got, err := ParseCategoryEnhanced(params)
	require.NoError(t, err)
	assert.Equal(t, c.Name, got.Name)
	assert.Equal(t, c.ColorHex, got.ColorHex)
	assert.Equal(t, c.UUID, got.UUID)
}

func TestTransactionEnhanced_RoundTrip(t *testing.T) {
	tr := &models.Transaction{
		UUID:         "u-3",
		Amount:       -0.5,
		Date:         1000,
		Description:  "multi\nline, note",
		Type:         models.TransactionTypeExpense,
		AccountID:    2,
		CategoryID:   4,
		LastModified: 2000,
		SyncStatus:   models.SyncStatusNeedsSync,
		ServerHash:   "agreed",
		Deleted:      true,
	}

	cmd := BuildUpdateTransactionEnhanced(tr)
	// A single command is always a single line.
	assert.False(t, strings.ContainsAny(cmd, "\r\n"))

	verb, params, err := ParseCommand(cmd)
	require.NoError(t, err)
	assert.Equal(t, CmdUpdateTransactionEnhanced, verb)

	got, err := ParseTransactionEnhanced(params)
	require.NoError(t, err)
	assert.Equal(t, tr.Amount, got.Amount)
	assert.Equal(t, tr.Description, got.Description)
	assert.Equal(t, tr.UUID, got.UUID)
	assert.Equal(t, tr.ServerHash, got.ServerHash)
	assert.True(t, got.Deleted)
}
