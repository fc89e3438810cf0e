package sync

import (
	"context"
	"testing"

	"github.com/finanzaapp/finsync/internal/client/localdb"
	"github.com/finanzaapp/finsync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func accountConflict(client, server *models.Account) Conflict {
	return Conflict{
		EntityType:      models.EntityAccount,
		UUID:            client.UUID,
		ClientValue:     client,
		ServerValue:     server,
		ClientTimestamp: client.LastModified,
		ServerTimestamp: server.LastModified,
	}
}

func TestDecide_LastWriteWins(t *testing.T) {
	clientSide := &models.Account{UUID: "u", Name: "client", LastModified: 200}
	serverSide := &models.Account{UUID: "u", Name: "server", LastModified: 100}

	res := Decide(LastWriteWins, accountConflict(clientSide, serverSide))
	assert.Equal(t, ResolvedClient, res.Outcome)
	assert.Same(t, clientSide, res.Value)

	serverSide.LastModified = 300
	res = Decide(LastWriteWins, accountConflict(clientSide, serverSide))
	assert.Equal(t, ResolvedServer, res.Outcome)
	assert.Same(t, serverSide, res.Value)
}

func TestDecide_LastWriteWins_TieIsDeterministic(t *testing.T) {
	a := &models.Account{UUID: "u", Name: "alpha", LastModified: 100}
	b := &models.Account{UUID: "u", Name: "beta", LastModified: 100}

	// With equal timestamps the winner comes from the content digests, so
	// swapping which side holds which version picks the same content.
	res1 := Decide(LastWriteWins, accountConflict(a, b))
	res2 := Decide(LastWriteWins, accountConflict(b, a))

	winner1 := res1.Value.(*models.Account)
	winner2 := res2.Value.(*models.Account)
	assert.Equal(t, winner1.Name, winner2.Name)
}

func TestDecide_FixedStrategies(t *testing.T) {
	clientSide := &models.Account{UUID: "u", Name: "client", LastModified: 100}
	serverSide := &models.Account{UUID: "u", Name: "server", LastModified: 200}
	c := accountConflict(clientSide, serverSide)

	res := Decide(ServerWins, c)
	assert.Equal(t, ResolvedServer, res.Outcome)
	assert.Same(t, serverSide, res.Value)

	res = Decide(ClientWins, c)
	assert.Equal(t, ResolvedClient, res.Outcome)
	assert.Same(t, clientSide, res.Value)

	res = Decide(UserChoice, c)
	assert.Equal(t, NeedsUserInput, res.Outcome)
	assert.Nil(t, res.Value)
}

func TestDecide_MergeFields(t *testing.T) {
	clientSide := &models.Account{
		UUID: "u", Name: "renamed locally", Type: "checking",
		InitialBalance: 100, LastModified: 300,
	}
	serverSide := &models.Account{
		UUID: "u", Name: "original", Type: "checking",
		InitialBalance: 250, LastModified: 200,
	}

	res := Decide(MergeFields, accountConflict(clientSide, serverSide))
	require.Equal(t, ResolvedMerged, res.Outcome)

	merged := res.Value.(*models.Account)
	// Type agreed, so it survives. Name and balance differ; the client is
	// newer, so its values win field by field.
	assert.Equal(t, "checking", merged.Type)
	assert.Equal(t, "renamed locally", merged.Name)
	assert.Equal(t, 100.0, merged.InitialBalance)
	assert.Equal(t, int64(300), merged.LastModified)
}

func TestDecide_MergeFields_Transaction(t *testing.T) {
	clientSide := &models.Transaction{
		UUID: "u", Amount: 50, Date: 10, Description: "edited", Type: models.TransactionTypeExpense,
		LastModified: 100,
	}
	serverSide := &models.Transaction{
		UUID: "u", Amount: 50, Date: 10, Description: "original", Type: models.TransactionTypeExpense,
		Deleted: true, LastModified: 200,
	}

	res := Decide(MergeFields, Conflict{
		EntityType: models.EntityTransaction, UUID: "u",
		ClientValue: clientSide, ServerValue: serverSide,
		ClientTimestamp: 100, ServerTimestamp: 200,
	})
	require.Equal(t, ResolvedMerged, res.Outcome)

	merged := res.Value.(*models.Transaction)
	assert.Equal(t, 50.0, merged.Amount)
	assert.Equal(t, "original", merged.Description, "server is newer")
	assert.True(t, merged.Deleted, "server-side tombstone wins the per-field fallback")
}

func TestResolverApply(t *testing.T) {
	ctx := context.Background()
	db, err := localdb.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	local := &models.Account{
		Name: "local name", Type: "checking", InitialBalance: 10,
		UserID: 1, LastModified: 100, SyncStatus: models.SyncStatusConflict,
	}
	require.NoError(t, db.Accounts.Create(ctx, local))

	server := &models.Account{
		UUID: local.UUID, Name: "server name", Type: "checking",
		InitialBalance: 20, LastModified: 200,
	}

	r := NewResolver(db.DB)
	r.now = func() int64 { return 5000 }

	c := accountConflict(local, server)
	require.NoError(t, r.Apply(ctx, c, Resolution{Outcome: ResolvedServer, Value: server}))

	got, err := db.Accounts.GetByUUID(ctx, local.UUID)
	require.NoError(t, err)
	assert.Equal(t, "server name", got.Name)
	assert.Equal(t, local.LocalID, got.LocalID, "local id survives resolution")
	assert.Equal(t, local.UUID, got.UUID, "uuid survives resolution")
	assert.Equal(t, int64(1), got.UserID)
	assert.Equal(t, models.SyncStatusSynced, got.SyncStatus)
	assert.Equal(t, int64(5000), got.LastSyncTime)
	assert.Equal(t, got.DataHash(), got.ServerHash)
}

func TestResolverApply_NeedsUserInputKeepsConflict(t *testing.T) {
	ctx := context.Background()
	db, err := localdb.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	local := &models.Account{Name: "n", UserID: 1, SyncStatus: models.SyncStatusConflict}
	require.NoError(t, db.Accounts.Create(ctx, local))

	r := NewResolver(db.DB)
	require.NoError(t, r.Apply(ctx, accountConflict(local, local), Resolution{Outcome: NeedsUserInput}))

	got, err := db.Accounts.GetByUUID(ctx, local.UUID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusConflict, got.SyncStatus)
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("merge-fields")
	require.NoError(t, err)
	assert.Equal(t, MergeFields, s)

	s, err = ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, LastWriteWins, s)

	_, err = ParseStrategy("coin-flip")
	assert.Error(t, err)
}
