package models

import (
	"github.com/finanzaapp/finsync/internal/hashx"
	"github.com/google/uuid"
)

// Category types as used on the wire.
const (
	CategoryTypeIncome  = "receita"
	CategoryTypeExpense = "despesa"
)

// Category classifies transactions as income or expense.
type Category struct {
	LocalID  int64
	UUID     string
	Name     string
	Type     string
	ColorHex string

	LastModified int64
	SyncStatus   SyncStatus
	ServerHash   string
	LastSyncTime int64
}

func (c *Category) EnsureUUID() {
	if c.UUID == "" {
		c.UUID = uuid.NewString()
	}
}

func (c *Category) Touch(ts int64) {
	c.LastModified = ts
	c.SyncStatus = SyncStatusNeedsSync
}

func (c *Category) DataHash() string {
	return hashx.Checksum(hashx.Fields(
		string(EntityCategory),
		c.Name,
		c.Type,
		c.ColorHex,
	))
}
