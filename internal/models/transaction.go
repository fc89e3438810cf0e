package models

import (
	"strconv"

	"github.com/finanzaapp/finsync/internal/hashx"
	"github.com/google/uuid"
)

// Transaction types as used on the wire.
const (
	TransactionTypeIncome  = "receita"
	TransactionTypeExpense = "despesa"
)

// Transaction is a single account movement. Deleted is a soft-delete
// tombstone so that deletions propagate through sync.
type Transaction struct {
	LocalID     int64
	UUID        string
	Amount      float64
	Date        int64
	Description string
	Type        string
	AccountID   int64
	CategoryID  int64
	UserID      int64
	Deleted     bool

	LastModified int64
	SyncStatus   SyncStatus
	ServerHash   string
	LastSyncTime int64
}

func (t *Transaction) EnsureUUID() {
	if t.UUID == "" {
		t.UUID = uuid.NewString()
	}
}

func (t *Transaction) Touch(ts int64) {
	t.LastModified = ts
	t.SyncStatus = SyncStatusNeedsSync
}

// DataHash covers the tombstone flag as well, so a soft delete counts as a
// content change and propagates.
func (t *Transaction) DataHash() string {
	return hashx.Checksum(hashx.Fields(
		string(EntityTransaction),
		strconv.FormatFloat(t.Amount, 'f', -1, 64),
		strconv.FormatInt(t.Date, 10),
		t.Description,
		t.Type,
		strconv.FormatInt(t.AccountID, 10),
		strconv.FormatInt(t.CategoryID, 10),
		strconv.FormatBool(t.Deleted),
	))
}
