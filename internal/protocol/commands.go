package protocol

import (
	"strconv"

	"github.com/finanzaapp/finsync/internal/models"
)

// Sync command builders.

// BuildListChangesSince requests every server-side change of one entity
// type with lastModified at or after since (unix millis).
func BuildListChangesSince(entity models.EntityType, since int64) string {
	return BuildCommand(CmdListChangesSince, string(entity), strconv.FormatInt(since, 10))
}

// BuildIncrementalSync is the window-computed variant of LIST_CHANGES_SINCE.
func BuildIncrementalSync(entity models.EntityType, since int64) string {
	return BuildCommand(CmdIncrementalSync, string(entity), strconv.FormatInt(since, 10))
}

// BuildResolveConflict tells the server which side won a conflict on uuid.
// resolution is ResolutionClient or ResolutionServer.
func BuildResolveConflict(entity models.EntityType, uuid, resolution string) string {
	return BuildCommand(CmdResolveConflict, string(entity), uuid, resolution)
}

// BuildBulkUpload carries a whole list payload of one entity type.
func BuildBulkUpload(entity models.EntityType, payload string) string {
	return BuildCommand(CmdBulkUpload, string(entity), payload)
}

// BuildVerifyIntegrity asks the server for record count and aggregate
// checksum of one entity type.
func BuildVerifyIntegrity(entity models.EntityType) string {
	return BuildCommand(CmdVerifyIntegrity, string(entity))
}

// Enhanced per-entity commands: business fields first, then uuid,
// lastModified, syncStatus, serverHash (and isDeleted for transactions).
// The serverHash parameter is the digest of the last server-agreed content
// the client knows; the server compares it against its stored digest to
// detect concurrent modification.

func accountParams(a *models.Account) []string {
	return []string{
		EscapeField(a.Name),
		EscapeField(a.Type),
		strconv.FormatFloat(a.InitialBalance, 'f', -1, 64),
		a.UUID,
		strconv.FormatInt(a.LastModified, 10),
		strconv.Itoa(int(a.SyncStatus)),
		a.ServerHash,
	}
}

func BuildAddAccountEnhanced(a *models.Account) string {
	return BuildCommand(CmdAddAccountEnhanced, accountParams(a)...)
}

func BuildUpdateAccountEnhanced(a *models.Account) string {
	return BuildCommand(CmdUpdateAccountEnhanced, accountParams(a)...)
}

func categoryParams(c *models.Category) []string {
	return []string{
		EscapeField(c.Name),
		EscapeField(c.Type),
		EscapeField(c.ColorHex),
		c.UUID,
		strconv.FormatInt(c.LastModified, 10),
		strconv.Itoa(int(c.SyncStatus)),
		c.ServerHash,
	}
}

func BuildAddCategoryEnhanced(c *models.Category) string {
	return BuildCommand(CmdAddCategoryEnhanced, categoryParams(c)...)
}

func BuildUpdateCategoryEnhanced(c *models.Category) string {
	return BuildCommand(CmdUpdateCategoryEnhanced, categoryParams(c)...)
}

func transactionParams(t *models.Transaction) []string {
	return []string{
		strconv.FormatFloat(t.Amount, 'f', -1, 64),
		strconv.FormatInt(t.Date, 10),
		EscapeField(t.Description),
		EscapeField(t.Type),
		strconv.FormatInt(t.AccountID, 10),
		strconv.FormatInt(t.CategoryID, 10),
		t.UUID,
		strconv.FormatInt(t.LastModified, 10),
		strconv.Itoa(int(t.SyncStatus)),
		t.ServerHash,
		strconv.FormatBool(t.Deleted),
	}
}

func BuildAddTransactionEnhanced(t *models.Transaction) string {
	return BuildCommand(CmdAddTransactionEnhanced, transactionParams(t)...)
}

func BuildUpdateTransactionEnhanced(t *models.Transaction) string {
	return BuildCommand(CmdUpdateTransactionEnhanced, transactionParams(t)...)
}

// BuildDeleteTransactionSoft propagates a tombstone without dropping the
// server row.
func BuildDeleteTransactionSoft(uuid string, lastModified int64) string {
	return BuildCommand(CmdDeleteTransactionSoft, uuid, strconv.FormatInt(lastModified, 10))
}
