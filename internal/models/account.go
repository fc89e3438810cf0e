// Package models defines the synchronizable finance entities and their
// sync metadata. Every entity carries a storage-local id, an immutable
// UUID used as the sync join key, a last-modified timestamp (unix millis),
// a SyncStatus and the hash of the last server-agreed content.
package models

import (
	"strconv"

	"github.com/finanzaapp/finsync/internal/hashx"
	"github.com/google/uuid"
)

// Account is a money account (checking, savings, wallet...).
type Account struct {
	LocalID        int64
	UUID           string
	Name           string
	Type           string
	InitialBalance float64
	UserID         int64

	LastModified int64
	SyncStatus   SyncStatus
	ServerHash   string
	LastSyncTime int64
}

// EnsureUUID assigns the uuid exactly once; an already-assigned uuid is
// never replaced.
func (a *Account) EnsureUUID() {
	if a.UUID == "" {
		a.UUID = uuid.NewString()
	}
}

// Touch records a local business-data mutation at ts.
func (a *Account) Touch(ts int64) {
	a.LastModified = ts
	a.SyncStatus = SyncStatusNeedsSync
}

// DataHash digests the business fields only. Sync metadata is excluded so
// that two copies with identical content but different clocks compare equal.
func (a *Account) DataHash() string {
	return hashx.Checksum(hashx.Fields(
		string(EntityAccount),
		a.Name,
		a.Type,
		strconv.FormatFloat(a.InitialBalance, 'f', -1, 64),
	))
}
