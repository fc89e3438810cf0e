package models

import (
	"github.com/finanzaapp/finsync/internal/hashx"
	"github.com/google/uuid"
)

// User is the account owner. The password never travels or rests in the
// clear: the client sends a sha256 digest, the server stores bcrypt of it.
type User struct {
	LocalID      int64
	UUID         string
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    int64

	LastModified int64
	SyncStatus   SyncStatus
	ServerHash   string
	LastSyncTime int64
}

func (u *User) EnsureUUID() {
	if u.UUID == "" {
		u.UUID = uuid.NewString()
	}
}

func (u *User) Touch(ts int64) {
	u.LastModified = ts
	u.SyncStatus = SyncStatusNeedsSync
}

func (u *User) DataHash() string {
	return hashx.Checksum(hashx.Fields(
		string(EntityUser),
		u.Name,
		u.Email,
	))
}
