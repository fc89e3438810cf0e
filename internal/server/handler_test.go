package server

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"testing"

	"github.com/finanzaapp/finsync/internal/hashx"
	"github.com/finanzaapp/finsync/internal/logging"
	"github.com/finanzaapp/finsync/internal/models"
	"github.com/finanzaapp/finsync/internal/protocol"
	"github.com/finanzaapp/finsync/internal/server/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler() *handler {
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	return newHandler(store.NewMemoryStore(), log, func() int64 { return 1000 })
}

func exec(t *testing.T, h *handler, line string) protocol.Response {
	t.Helper()
	resp, err := protocol.ParseResponse(h.Handle(context.Background(), line))
	require.NoError(t, err)
	return resp
}

// register creates and signs in a user on the handler's connection.
func register(t *testing.T, h *handler) int64 {
	t.Helper()
	resp := exec(t, h, protocol.BuildCommand(protocol.CmdRegister, "Ana", "ana@example.com", "pw-digest"))
	require.Equal(t, protocol.StatusOK, resp.Status)
	id, err := strconv.ParseInt(resp.Payload, 10, 64)
	require.NoError(t, err)
	return id
}

func TestRegisterAndLogin(t *testing.T) {
	h := newTestHandler()
	id := register(t, h)

	resp := exec(t, h, protocol.BuildCommand(protocol.CmdLogout))
	assert.Equal(t, protocol.StatusOK, resp.Status)

	resp = exec(t, h, protocol.BuildCommand(protocol.CmdLogin, "ana@example.com", "wrong-digest"))
	assert.Equal(t, protocol.StatusInvalidCredentials, resp.Status)

	resp = exec(t, h, protocol.BuildCommand(protocol.CmdLogin, "ana@example.com", "pw-digest"))
	require.Equal(t, protocol.StatusOK, resp.Status)
	assert.Equal(t, strconv.FormatInt(id, 10)+",Ana,ana@example.com", resp.Payload)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	h := newTestHandler()
	register(t, h)

	resp := exec(t, h, protocol.BuildCommand(protocol.CmdRegister, "Other", "ana@example.com", "x"))
	assert.Equal(t, protocol.StatusUserExists, resp.Status)
}

func TestLogin_UnknownEmail(t *testing.T) {
	h := newTestHandler()
	resp := exec(t, h, protocol.BuildCommand(protocol.CmdLogin, "nobody@example.com", "x"))
	assert.Equal(t, protocol.StatusInvalidCredentials, resp.Status)
}

func TestResetPassword_NeverRevealsRegistration(t *testing.T) {
	h := newTestHandler()
	register(t, h)

	known := exec(t, h, protocol.BuildCommand(protocol.CmdResetPassword, "ana@example.com"))
	unknown := exec(t, h, protocol.BuildCommand(protocol.CmdResetPassword, "nobody@example.com"))
	assert.Equal(t, known, unknown)
	assert.Equal(t, protocol.StatusOK, known.Status)
}

func TestAuthRequired(t *testing.T) {
	h := newTestHandler()

	for _, verb := range []string{
		protocol.CmdListAccounts,
		protocol.CmdListCategories,
		protocol.CmdListTransactions,
		protocol.CmdGetDashboard,
	} {
		resp := exec(t, h, verb)
		assert.Equal(t, protocol.StatusInvalidCredentials, resp.Status, verb)
	}

	// SYNC_STATUS is a reachability probe and needs no session.
	resp := exec(t, h, protocol.CmdSyncStatus)
	assert.Equal(t, protocol.StatusOK, resp.Status)
	assert.Equal(t, "1000", resp.Payload)
}

func TestRequireSelf_RejectsOtherUserID(t *testing.T) {
	h := newTestHandler()
	id := register(t, h)

	resp := exec(t, h, protocol.BuildCommand(protocol.CmdGetProfile, strconv.FormatInt(id+1, 10)))
	assert.Equal(t, protocol.StatusInvalidCredentials, resp.Status)

	resp = exec(t, h, protocol.BuildCommand(protocol.CmdGetProfile, strconv.FormatInt(id, 10)))
	require.Equal(t, protocol.StatusOK, resp.Status)
	assert.Equal(t, "Ana,ana@example.com", resp.Payload)
}

func TestUnknownVerb(t *testing.T) {
	h := newTestHandler()
	register(t, h)

	resp := exec(t, h, "FROBNICATE|x")
	assert.Equal(t, protocol.StatusInvalidData, resp.Status)
}

func TestEnhancedUploadContract(t *testing.T) {
	h := newTestHandler()
	register(t, h)

	base := &models.Account{UUID: "acc-1", Name: "Corrente", Type: "checking", InitialBalance: 100, LastModified: 100}

	// Unknown uuid: created.
	resp := exec(t, h, protocol.BuildAddAccountEnhanced(base))
	assert.Equal(t, protocol.StatusOK, resp.Status)

	// Identical content again: duplicate, not an error.
	resp = exec(t, h, protocol.BuildAddAccountEnhanced(base))
	assert.Equal(t, protocol.StatusDuplicate, resp.Status)

	// Changed content pinned to a stale digest: the server refuses and
	// returns its own copy.
	stale := *base
	stale.Name = "Renomeada"
	stale.ServerHash = "stale-digest"
	resp = exec(t, h, protocol.BuildUpdateAccountEnhanced(&stale))
	require.Equal(t, protocol.StatusConflict, resp.Status)
	serverCopy, err := protocol.ParseAccountRecord(resp.Payload)
	require.NoError(t, err)
	assert.Equal(t, "Corrente", serverCopy.Name)
	assert.Equal(t, serverCopy.DataHash(), serverCopy.ServerHash)

	// Same change pinned to the server's current digest: fast-forward.
	fresh := stale
	fresh.ServerHash = base.DataHash()
	resp = exec(t, h, protocol.BuildUpdateAccountEnhanced(&fresh))
	assert.Equal(t, protocol.StatusOK, resp.Status)

	list := exec(t, h, protocol.CmdListAccounts)
	require.Equal(t, protocol.StatusOK, list.Status)
	got, err := protocol.ParseAccountRecord(list.Payload)
	require.NoError(t, err)
	assert.Equal(t, "Renomeada", got.Name)
}

func TestListChangesSince(t *testing.T) {
	h := newTestHandler()
	register(t, h)

	old := &models.Account{UUID: "acc-old", Name: "Antiga", Type: "checking", LastModified: 100}
	recent := &models.Account{UUID: "acc-new", Name: "Nova", Type: "checking", LastModified: 900}
	require.Equal(t, protocol.StatusOK, exec(t, h, protocol.BuildAddAccountEnhanced(old)).Status)
	require.Equal(t, protocol.StatusOK, exec(t, h, protocol.BuildAddAccountEnhanced(recent)).Status)

	resp := exec(t, h, protocol.BuildListChangesSince(models.EntityAccount, 500))
	require.Equal(t, protocol.StatusOK, resp.Status)
	records := protocol.SplitRecords(resp.Payload)
	require.Len(t, records, 1)
	a, err := protocol.ParseAccountRecord(records[0])
	require.NoError(t, err)
	assert.Equal(t, "acc-new", a.UUID)
	assert.Equal(t, a.DataHash(), a.ServerHash, "server reports the digest of its stored content")

	resp = exec(t, h, protocol.BuildListChangesSince(models.EntityAccount, 0))
	require.Equal(t, protocol.StatusOK, resp.Status)
	assert.Len(t, protocol.SplitRecords(resp.Payload), 2)
}

func TestDeleteTransactionTombstones(t *testing.T) {
	h := newTestHandler()
	register(t, h)

	resp := exec(t, h, protocol.BuildCommand(protocol.CmdAddTransaction, "50", "900", "mercado", "despesa", "1", "1"))
	require.Equal(t, protocol.StatusOK, resp.Status)
	uuid := resp.Payload

	resp = exec(t, h, protocol.BuildCommand(protocol.CmdDeleteTransaction, uuid))
	require.Equal(t, protocol.StatusOK, resp.Status)

	// Gone from the live listing.
	resp = exec(t, h, protocol.CmdListTransactions)
	require.Equal(t, protocol.StatusOK, resp.Status)
	assert.Empty(t, resp.Payload)

	// Still present as a tombstone in the sync listing.
	resp = exec(t, h, protocol.BuildListChangesSince(models.EntityTransaction, 0))
	require.Equal(t, protocol.StatusOK, resp.Status)
	records := protocol.SplitRecords(resp.Payload)
	require.Len(t, records, 1)
	tx, err := protocol.ParseTransactionRecord(records[0])
	require.NoError(t, err)
	assert.True(t, tx.Deleted)
}

func TestResolveConflict(t *testing.T) {
	h := newTestHandler()
	register(t, h)

	a := &models.Account{UUID: "acc-1", Name: "Corrente", Type: "checking", LastModified: 100}
	require.Equal(t, protocol.StatusOK, exec(t, h, protocol.BuildAddAccountEnhanced(a)).Status)

	resp := exec(t, h, protocol.BuildResolveConflict(models.EntityAccount, "acc-1", protocol.ResolutionServer))
	assert.Equal(t, protocol.StatusOK, resp.Status)

	resp = exec(t, h, protocol.BuildResolveConflict(models.EntityAccount, "missing", protocol.ResolutionClient))
	assert.Equal(t, protocol.StatusNotFound, resp.Status)

	resp = exec(t, h, protocol.BuildCommand(protocol.CmdResolveConflict, "conta", "acc-1", "SIDEWAYS"))
	assert.Equal(t, protocol.StatusInvalidData, resp.Status)
}

func TestBulkUpload(t *testing.T) {
	h := newTestHandler()
	register(t, h)

	seeded := &models.Account{UUID: "acc-1", Name: "Corrente", Type: "checking", InitialBalance: 100, LastModified: 100}
	require.Equal(t, protocol.StatusOK, exec(t, h, protocol.BuildAddAccountEnhanced(seeded)).Status)

	duplicate := protocol.EncodeAccountRecord(seeded)
	fresh := protocol.EncodeAccountRecord(&models.Account{UUID: "acc-2", Name: "Poupança", Type: "savings", LastModified: 100})
	conflicting := protocol.EncodeAccountRecord(&models.Account{
		UUID: "acc-1", Name: "Divergente", Type: "checking", LastModified: 200, ServerHash: "stale",
	})
	payload := protocol.JoinRecords([]string{duplicate, fresh, conflicting, "garbage"})

	resp := exec(t, h, protocol.BuildBulkUpload(models.EntityAccount, payload))
	require.Equal(t, protocol.StatusOK, resp.Status)
	assert.Equal(t, "1,1,1,1", resp.Payload, "applied,duplicates,conflicts,bad")
}

func TestVerifyIntegrity(t *testing.T) {
	h := newTestHandler()
	register(t, h)

	a1 := &models.Account{UUID: "acc-1", Name: "Corrente", Type: "checking", LastModified: 100}
	a2 := &models.Account{UUID: "acc-2", Name: "Poupança", Type: "savings", LastModified: 100}
	require.Equal(t, protocol.StatusOK, exec(t, h, protocol.BuildAddAccountEnhanced(a1)).Status)
	require.Equal(t, protocol.StatusOK, exec(t, h, protocol.BuildAddAccountEnhanced(a2)).Status)

	want := hashx.Aggregate([]string{
		"acc-1:" + a1.DataHash(),
		"acc-2:" + a2.DataHash(),
	})

	resp := exec(t, h, protocol.BuildVerifyIntegrity(models.EntityAccount))
	require.Equal(t, protocol.StatusOK, resp.Status)
	assert.Equal(t, "2,"+want, resp.Payload)
}

func TestDashboard(t *testing.T) {
	h := newTestHandler()
	id := register(t, h)

	resp := exec(t, h, protocol.BuildCommand(protocol.CmdAddAccount, "Corrente", "checking", "1000"))
	require.Equal(t, protocol.StatusOK, resp.Status)
	require.Equal(t, protocol.StatusOK,
		exec(t, h, protocol.BuildCommand(protocol.CmdAddTransaction, "500", "900", "salario", "receita", "1", "1")).Status)
	require.Equal(t, protocol.StatusOK,
		exec(t, h, protocol.BuildCommand(protocol.CmdAddTransaction, "200", "910", "mercado", "despesa", "1", "1")).Status)

	resp = exec(t, h, protocol.BuildCommand(protocol.CmdGetDashboard, strconv.FormatInt(id, 10)))
	require.Equal(t, protocol.StatusOK, resp.Status)
	assert.Equal(t, "1300,500,200", resp.Payload)
}

func TestChangePassword(t *testing.T) {
	h := newTestHandler()
	id := register(t, h)
	idStr := strconv.FormatInt(id, 10)

	resp := exec(t, h, protocol.BuildCommand(protocol.CmdChangePassword, idStr, "wrong-digest", "new-digest"))
	assert.Equal(t, protocol.StatusInvalidCredentials, resp.Status)

	resp = exec(t, h, protocol.BuildCommand(protocol.CmdChangePassword, idStr, "pw-digest", "new-digest"))
	require.Equal(t, protocol.StatusOK, resp.Status)

	require.Equal(t, protocol.StatusOK, exec(t, h, protocol.BuildCommand(protocol.CmdLogout)).Status)
	resp = exec(t, h, protocol.BuildCommand(protocol.CmdLogin, "ana@example.com", "new-digest"))
	assert.Equal(t, protocol.StatusOK, resp.Status)
}

func TestCategoriesAreSharedAcrossUsers(t *testing.T) {
	st := store.NewMemoryStore()
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	first := newHandler(st, log, func() int64 { return 1000 })
	resp := exec(t, first, protocol.BuildCommand(protocol.CmdRegister, "Ana", "ana@example.com", "x"))
	require.Equal(t, protocol.StatusOK, resp.Status)
	resp = exec(t, first, protocol.BuildCommand(protocol.CmdAddCategory, "Mercado", "despesa", "#ff0000"))
	require.Equal(t, protocol.StatusOK, resp.Status)

	second := newHandler(st, log, func() int64 { return 1000 })
	resp = exec(t, second, protocol.BuildCommand(protocol.CmdRegister, "Bia", "bia@example.com", "x"))
	require.Equal(t, protocol.StatusOK, resp.Status)

	resp = exec(t, second, protocol.CmdListCategories)
	require.Equal(t, protocol.StatusOK, resp.Status)
	records := protocol.SplitRecords(resp.Payload)
	require.Len(t, records, 1)
	c, err := protocol.ParseCategoryRecord(records[0])
	require.NoError(t, err)
	assert.Equal(t, "Mercado", c.Name)
}
