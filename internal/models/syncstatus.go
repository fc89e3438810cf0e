package models

import "fmt"

// SyncStatus tracks where one entity stands in the synchronization
// lifecycle. The zero value is SyncStatusLocalOnly: a freshly created
// entity that the server has never seen.
type SyncStatus int

const (
	SyncStatusLocalOnly SyncStatus = iota
	SyncStatusSynced
	SyncStatusNeedsSync
	SyncStatusConflict
)

func (s SyncStatus) String() string {
	switch s {
	case SyncStatusLocalOnly:
		return "local-only"
	case SyncStatusSynced:
		return "synced"
	case SyncStatusNeedsSync:
		return "needs-sync"
	case SyncStatusConflict:
		return "conflict"
	default:
		return fmt.Sprintf("sync-status(%d)", int(s))
	}
}

// Valid reports whether s is one of the four defined states.
func (s SyncStatus) Valid() bool {
	return s >= SyncStatusLocalOnly && s <= SyncStatusConflict
}

// Pending reports whether the entity still has local changes the server has
// not acknowledged.
func (s SyncStatus) Pending() bool {
	return s == SyncStatusLocalOnly || s == SyncStatusNeedsSync
}

// ParseSyncStatus converts the wire integer (0..3) into a SyncStatus.
func ParseSyncStatus(code int) (SyncStatus, error) {
	s := SyncStatus(code)
	if !s.Valid() {
		return 0, fmt.Errorf("unknown sync status code %d", code)
	}
	return s, nil
}

// EntityType names one synchronizable entity kind. The values are the
// identifiers used on the wire.
type EntityType string

const (
	EntityAccount     EntityType = "conta"
	EntityCategory    EntityType = "categoria"
	EntityTransaction EntityType = "movimentacao"
	EntityUser        EntityType = "usuario"
)

// SyncedEntityTypes lists the entity types a sync pass covers, in the order
// they are processed. Categories first so that account/transaction
// references can land on existing rows.
var SyncedEntityTypes = []EntityType{EntityCategory, EntityAccount, EntityTransaction}

func (e EntityType) Valid() bool {
	switch e {
	case EntityAccount, EntityCategory, EntityTransaction, EntityUser:
		return true
	}
	return false
}
