package sync

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/finanzaapp/finsync/internal/client/repositories/accounts"
	"github.com/finanzaapp/finsync/internal/client/repositories/categories"
	"github.com/finanzaapp/finsync/internal/client/repositories/transactions"
	"github.com/finanzaapp/finsync/internal/dbx"
	"github.com/finanzaapp/finsync/internal/models"
)

// Conflict describes one divergent entity: both sides modified the same
// uuid since the last agreed state. Values are *models.Account,
// *models.Category or *models.Transaction depending on EntityType.
type Conflict struct {
	EntityType      models.EntityType
	UUID            string
	ClientValue     any
	ServerValue     any
	ClientTimestamp int64
	ServerTimestamp int64
}

// Resolution is the decision for one conflict. Value carries the winning
// (or merged) entity for the resolved outcomes and is nil otherwise.
type Resolution struct {
	Outcome Outcome
	Value   any
}

// Decide picks a resolution for c under the given strategy. It is pure:
// the same inputs always produce the same resolution, regardless of which
// side was processed first.
func Decide(strategy Strategy, c Conflict) Resolution {
	switch strategy {
	case ServerWins:
		return Resolution{Outcome: ResolvedServer, Value: c.ServerValue}
	case ClientWins:
		return Resolution{Outcome: ResolvedClient, Value: c.ClientValue}
	case UserChoice:
		return Resolution{Outcome: NeedsUserInput}
	case MergeFields:
		merged, err := mergeValues(c)
		if err != nil {
			return Resolution{Outcome: Failed}
		}
		return Resolution{Outcome: ResolvedMerged, Value: merged}
	case LastWriteWins:
		if clientWinsByTime(c) {
			return Resolution{Outcome: ResolvedClient, Value: c.ClientValue}
		}
		return Resolution{Outcome: ResolvedServer, Value: c.ServerValue}
	default:
		return Resolution{Outcome: Failed}
	}
}

// clientWinsByTime orders the two versions by lastModified; equal
// timestamps break the tie on the content digests, which both sides can
// compute identically.
func clientWinsByTime(c Conflict) bool {
	if c.ClientTimestamp != c.ServerTimestamp {
		return c.ClientTimestamp > c.ServerTimestamp
	}
	return dataHashOf(c.ClientValue) > dataHashOf(c.ServerValue)
}

func dataHashOf(value any) string {
	switch v := value.(type) {
	case *models.Account:
		return v.DataHash()
	case *models.Category:
		return v.DataHash()
	case *models.Transaction:
		return v.DataHash()
	default:
		return ""
	}
}

func lastModifiedOf(value any) int64 {
	switch v := value.(type) {
	case *models.Account:
		return v.LastModified
	case *models.Category:
		return v.LastModified
	case *models.Transaction:
		return v.LastModified
	default:
		return 0
	}
}

// pick keeps a field both sides agree on and otherwise takes the winning
// side's value.
func pick[T comparable](clientV, serverV T, clientWins bool) T {
	if clientV == serverV {
		return clientV
	}
	if clientWins {
		return clientV
	}
	return serverV
}

// mergeValues merges field-by-field. Fields that agree survive as-is;
// fields modified on both sides fall back to last-write-wins per field.
func mergeValues(c Conflict) (any, error) {
	clientWins := clientWinsByTime(c)

	switch client := c.ClientValue.(type) {
	case *models.Account:
		server, ok := c.ServerValue.(*models.Account)
		if !ok {
			return nil, fmt.Errorf("merge: mismatched account values for %s", c.UUID)
		}
		m := *client
		m.Name = pick(client.Name, server.Name, clientWins)
		m.Type = pick(client.Type, server.Type, clientWins)
		m.InitialBalance = pick(client.InitialBalance, server.InitialBalance, clientWins)
		m.LastModified = max(client.LastModified, server.LastModified)
		return &m, nil
	case *models.Category:
		server, ok := c.ServerValue.(*models.Category)
		if !ok {
			return nil, fmt.Errorf("merge: mismatched category values for %s", c.UUID)
		}
		m := *client
		m.Name = pick(client.Name, server.Name, clientWins)
		m.Type = pick(client.Type, server.Type, clientWins)
		m.ColorHex = pick(client.ColorHex, server.ColorHex, clientWins)
		m.LastModified = max(client.LastModified, server.LastModified)
		return &m, nil
	case *models.Transaction:
		server, ok := c.ServerValue.(*models.Transaction)
		if !ok {
			return nil, fmt.Errorf("merge: mismatched transaction values for %s", c.UUID)
		}
		m := *client
		m.Amount = pick(client.Amount, server.Amount, clientWins)
		m.Date = pick(client.Date, server.Date, clientWins)
		m.Description = pick(client.Description, server.Description, clientWins)
		m.Type = pick(client.Type, server.Type, clientWins)
		m.Deleted = pick(client.Deleted, server.Deleted, clientWins)
		m.LastModified = max(client.LastModified, server.LastModified)
		return &m, nil
	default:
		return nil, fmt.Errorf("merge: unsupported entity type %s", c.EntityType)
	}
}

// Resolver applies resolutions to the local store. Each application runs
// in its own transaction, so an interrupted process can never leave a
// half-resolved entity behind.
type Resolver struct {
	db  *sql.DB
	now func() int64
}

func NewResolver(db *sql.DB) *Resolver {
	return &Resolver{db: db, now: func() int64 { return time.Now().UnixMilli() }}
}

// Apply writes the winning value, clears the conflict (Conflict -> Synced)
// and stamps LastSyncTime. NeedsUserInput and Failed leave the row in
// Conflict untouched.
func (r *Resolver) Apply(ctx context.Context, c Conflict, res Resolution) error {
	switch res.Outcome {
	case NeedsUserInput, Failed:
		return nil
	}
	if res.Value == nil {
		return fmt.Errorf("resolution for %s has no value", c.UUID)
	}

	now := r.now()

	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		switch v := res.Value.(type) {
		case *models.Account:
			repo := accounts.NewSQLiteRepository(tx)
			local, err := repo.GetByUUID(ctx, c.UUID)
			if err != nil {
				return err
			}
			a := *v
			a.LocalID = local.LocalID
			a.UUID = local.UUID
			if a.UserID == 0 {
				a.UserID = local.UserID
			}
			a.SyncStatus = models.SyncStatusSynced
			a.LastSyncTime = now
			a.ServerHash = a.DataHash()
			return repo.Update(ctx, &a)
		case *models.Category:
			repo := categories.NewSQLiteRepository(tx)
			local, err := repo.GetByUUID(ctx, c.UUID)
			if err != nil {
				return err
			}
			cat := *v
			cat.LocalID = local.LocalID
			cat.UUID = local.UUID
			cat.SyncStatus = models.SyncStatusSynced
			cat.LastSyncTime = now
			cat.ServerHash = cat.DataHash()
			return repo.Update(ctx, &cat)
		case *models.Transaction:
			repo := transactions.NewSQLiteRepository(tx)
			local, err := repo.GetByUUID(ctx, c.UUID)
			if err != nil {
				return err
			}
			t := *v
			t.LocalID = local.LocalID
			t.UUID = local.UUID
			if t.UserID == 0 {
				t.UserID = local.UserID
			}
			t.SyncStatus = models.SyncStatusSynced
			t.LastSyncTime = now
			t.ServerHash = t.DataHash()
			return repo.Update(ctx, &t)
		default:
			return fmt.Errorf("unsupported resolution value %T", res.Value)
		}
	})
}
