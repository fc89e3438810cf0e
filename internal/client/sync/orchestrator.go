package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/finanzaapp/finsync/internal/client/localdb"
	"github.com/finanzaapp/finsync/internal/client/repositories/accounts"
	"github.com/finanzaapp/finsync/internal/client/repositories/categories"
	"github.com/finanzaapp/finsync/internal/client/repositories/transactions"
	"github.com/finanzaapp/finsync/internal/client/transport"
	"github.com/finanzaapp/finsync/internal/common"
	"github.com/finanzaapp/finsync/internal/dbx"
	"github.com/finanzaapp/finsync/internal/logging"
	"github.com/finanzaapp/finsync/internal/models"
	"github.com/finanzaapp/finsync/internal/protocol"
	"github.com/sethvargo/go-retry"
)

const (
	// DefaultOverlapWindow is subtracted from the last sync timestamp on
	// incremental passes, to tolerate clock skew and missed acks.
	DefaultOverlapWindow = 24 * time.Hour

	retryAttempts  = 2 // retries after the first attempt
	retryBaseDelay = time.Second
)

// Options configure one sync pass.
type Options struct {
	// Incremental limits the download to changes since the last pass
	// (minus the overlap window). A full pass downloads everything.
	Incremental bool
	// Strategy is the conflict resolution strategy for this pass.
	Strategy Strategy
}

// Orchestrator drives sync passes. One pass per user runs at a time; a
// concurrent invocation for the same user is rejected with
// common.ErrSyncInProgress.
type Orchestrator struct {
	db        *localdb.Database
	transport transport.Client
	resolver  *Resolver
	log       logging.Logger
	progress  Progress
	overlap   time.Duration
	now       func() time.Time

	mu     sync.Mutex
	active map[int64]struct{}
	state  State
}

func NewOrchestrator(db *localdb.Database, tc transport.Client, log logging.Logger, overlap time.Duration) *Orchestrator {
	if overlap <= 0 {
		overlap = DefaultOverlapWindow
	}
	return &Orchestrator{
		db:        db,
		transport: tc,
		resolver:  NewResolver(db.DB),
		log:       log,
		progress:  NoopProgress{},
		overlap:   overlap,
		now:       time.Now,
		active:    make(map[int64]struct{}),
		state:     StateIdle,
	}
}

// SetProgress installs a progress sink. Must be called before Run.
func (o *Orchestrator) SetProgress(p Progress) {
	if p != nil {
		o.progress = p
	}
}

// State returns the coarse state of the orchestrator.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// RunAsync runs a pass on a background goroutine and delivers the Result
// on the returned channel. Errors are folded into Result.LastError, so
// the caller has a single completion signal to select on.
func (o *Orchestrator) RunAsync(ctx context.Context, userID int64, opts Options) <-chan *Result {
	ch := make(chan *Result, 1)
	go func() {
		res, err := o.Run(ctx, userID, opts)
		if err != nil && res.LastError == "" {
			res.LastError = err.Error()
		}
		ch <- res
	}()
	return ch
}

// Run executes one full pass: Download, Upload, ResolveConflicts,
// Finalize. Phases run strictly in order; per-item failures never abort a
// phase, but a transport failure opening a phase is treated as total
// connectivity loss and aborts the remaining phases including Finalize.
func (o *Orchestrator) Run(ctx context.Context, userID int64, opts Options) (*Result, error) {
	res := &Result{Incremental: opts.Incremental}

	if err := o.acquire(userID); err != nil {
		res.recordError(err)
		return res, err
	}
	defer o.release(userID)

	start := o.now()
	defer func() { res.Duration = o.now().Sub(start) }()

	since := int64(0)
	if opts.Incremental {
		last, err := o.db.SyncState.LastSyncTime(ctx, userID)
		if err != nil {
			res.recordError(err)
			return res, err
		}
		since = last - o.overlap.Milliseconds()
		if since < 0 {
			since = 0
		}
	}

	o.log.Info(ctx, "sync pass starting", "user", userID,
		"incremental", opts.Incremental, "since", since, "strategy", opts.Strategy.String())

	var conflicts []Conflict

	if fatal := o.runDownload(ctx, userID, since, res, &conflicts); fatal != nil {
		return o.fail(ctx, res, fatal)
	}
	if err := ctx.Err(); err != nil {
		return o.fail(ctx, res, err)
	}

	if fatal := o.runUpload(ctx, userID, res, &conflicts); fatal != nil {
		return o.fail(ctx, res, fatal)
	}
	if err := ctx.Err(); err != nil {
		return o.fail(ctx, res, err)
	}

	o.runResolve(ctx, opts.Strategy, conflicts, res)
	if err := ctx.Err(); err != nil {
		return o.fail(ctx, res, err)
	}

	// Finalize: advance the sync clock. The syncstate repo keeps it
	// monotonic, so a slow pass can never move the clock backwards.
	o.progress.Report(PhaseFinalize, 1, 1)
	if err := o.db.SyncState.SetLastSyncTime(ctx, userID, start.UnixMilli()); err != nil {
		res.recordError(err)
		return o.fail(ctx, res, err)
	}

	o.setState(StateCompleted)
	o.log.Info(ctx, "sync pass completed", "user", userID, "result", res.String())
	return res, nil
}

func (o *Orchestrator) fail(ctx context.Context, res *Result, err error) (*Result, error) {
	o.setState(StateFailed)
	o.log.Warn(ctx, "sync pass aborted", "error", err, "result", res.String())
	return res, err
}

func (o *Orchestrator) acquire(userID int64) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.active[userID]; busy {
		return common.ErrSyncInProgress
	}
	o.active[userID] = struct{}{}
	o.state = StateRunning
	return nil
}

func (o *Orchestrator) release(userID int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.active, userID)
	if o.state == StateRunning {
		o.state = StateIdle
	}
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// send performs one round trip with exponential backoff on connectivity
// failures. Protocol-level failure statuses are not retried; they are
// answers, not outages.
func (o *Orchestrator) send(ctx context.Context, command string) (protocol.Response, error) {
	var resp protocol.Response
	backoff := retry.WithMaxRetries(retryAttempts, retry.NewExponential(retryBaseDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		r, err := o.transport.Send(ctx, command)
		if err != nil {
			if errors.Is(err, common.ErrUnavailable) || errors.Is(err, common.ErrTimeout) {
				return retry.RetryableError(err)
			}
			return err
		}
		resp = r
		return nil
	})
	return resp, err
}

func isTransportErr(err error) bool {
	return errors.Is(err, common.ErrUnavailable) || errors.Is(err, common.ErrTimeout)
}

// --- Download phase ---

func (o *Orchestrator) runDownload(ctx context.Context, userID, since int64, res *Result, conflicts *[]Conflict) error {
	total := len(models.SyncedEntityTypes)
	for i, entity := range models.SyncedEntityTypes {
		o.progress.Report(PhaseDownload, i+1, total)
		if err := ctx.Err(); err != nil {
			return err
		}

		resp, err := o.send(ctx, protocol.BuildListChangesSince(entity, since))
		if err != nil {
			if i == 0 && isTransportErr(err) {
				// Nothing reachable at all: the pass cannot make progress.
				res.recordError(err)
				return err
			}
			res.recordError(err)
			continue
		}
		if !resp.OK() {
			res.recordError(fmt.Errorf("list changes for %s: status %s", entity, resp.Status))
			continue
		}

		if err := o.applyDownloaded(ctx, entity, userID, resp.Payload, res, conflicts); err != nil {
			if ctx.Err() != nil {
				return err
			}
			res.recordError(err)
		}
	}
	return nil
}

// applyDownloaded upserts one entity type's batch inside a single local
// transaction, in the order received. Unparseable records are counted and
// skipped without poisoning their siblings.
func (o *Orchestrator) applyDownloaded(ctx context.Context, entity models.EntityType, userID int64, payload string, res *Result, conflicts *[]Conflict) error {
	records := protocol.SplitRecords(payload)
	if len(records) == 0 {
		return nil
	}
	now := o.now().UnixMilli()

	return dbx.WithTx(ctx, o.db.DB, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, record := range records {
			if err := ctx.Err(); err != nil {
				return err
			}
			res.TotalProcessed++

			switch entity {
			case models.EntityAccount:
				a, err := protocol.ParseAccountRecord(record)
				if err != nil {
					o.log.Warn(ctx, "skipping bad account record", "error", err)
					res.recordError(err)
					continue
				}
				a.UserID = userID
				repo := accounts.NewSQLiteRepository(tx)
				local, err := repo.GetByUUID(ctx, a.UUID)
				if err != nil && !errors.Is(err, common.ErrNotFound) {
					return err
				}
				switch classifyDownload(localVersion(local), a.DataHash()) {
				case downloadConflict:
					if err := repo.MarkConflict(ctx, a.UUID); err != nil {
						return err
					}
					res.Conflicts++
					*conflicts = append(*conflicts, Conflict{
						EntityType: entity, UUID: a.UUID,
						ClientValue: local, ServerValue: a,
						ClientTimestamp: local.LastModified, ServerTimestamp: a.LastModified,
					})
				case downloadKeepLocal:
					res.DuplicatesSkipped++
				default:
					if err := upsertAccount(ctx, repo, a, now, res); err != nil {
						return err
					}
				}
			case models.EntityCategory:
				c, err := protocol.ParseCategoryRecord(record)
				if err != nil {
					o.log.Warn(ctx, "skipping bad category record", "error", err)
					res.recordError(err)
					continue
				}
				repo := categories.NewSQLiteRepository(tx)
				local, err := repo.GetByUUID(ctx, c.UUID)
				if err != nil && !errors.Is(err, common.ErrNotFound) {
					return err
				}
				switch classifyDownload(localCategoryVersion(local), c.DataHash()) {
				case downloadConflict:
					if err := repo.MarkConflict(ctx, c.UUID); err != nil {
						return err
					}
					res.Conflicts++
					*conflicts = append(*conflicts, Conflict{
						EntityType: entity, UUID: c.UUID,
						ClientValue: local, ServerValue: c,
						ClientTimestamp: local.LastModified, ServerTimestamp: c.LastModified,
					})
				case downloadKeepLocal:
					res.DuplicatesSkipped++
				default:
					if err := upsertCategory(ctx, repo, c, now, res); err != nil {
						return err
					}
				}
			case models.EntityTransaction:
				t, err := protocol.ParseTransactionRecord(record)
				if err != nil {
					o.log.Warn(ctx, "skipping bad transaction record", "error", err)
					res.recordError(err)
					continue
				}
				t.UserID = userID
				repo := transactions.NewSQLiteRepository(tx)
				local, err := repo.GetByUUID(ctx, t.UUID)
				if err != nil && !errors.Is(err, common.ErrNotFound) {
					return err
				}
				switch classifyDownload(localTransactionVersion(local), t.DataHash()) {
				case downloadConflict:
					if err := repo.MarkConflict(ctx, t.UUID); err != nil {
						return err
					}
					res.Conflicts++
					*conflicts = append(*conflicts, Conflict{
						EntityType: entity, UUID: t.UUID,
						ClientValue: local, ServerValue: t,
						ClientTimestamp: local.LastModified, ServerTimestamp: t.LastModified,
					})
				case downloadKeepLocal:
					res.DuplicatesSkipped++
				default:
					if err := upsertTransaction(ctx, repo, t, now, res); err != nil {
						return err
					}
				}
			}
		}
		return nil
	})
}

type downloadClass int

const (
	downloadApply downloadClass = iota
	downloadKeepLocal
	downloadConflict
)

// localState is the subset of a local row the download classifier needs.
type localState struct {
	present    bool
	pending    bool
	dataHash   string
	serverHash string
}

func localVersion(a *models.Account) localState {
	if a == nil {
		return localState{}
	}
	return localState{true, a.SyncStatus.Pending(), a.DataHash(), a.ServerHash}
}

func localCategoryVersion(c *models.Category) localState {
	if c == nil {
		return localState{}
	}
	return localState{true, c.SyncStatus.Pending(), c.DataHash(), c.ServerHash}
}

func localTransactionVersion(t *models.Transaction) localState {
	if t == nil {
		return localState{}
	}
	return localState{true, t.SyncStatus.Pending(), t.DataHash(), t.ServerHash}
}

// classifyDownload decides what to do with one incoming server copy:
//
//   - no local row, or local row without pending edits: apply the server
//     copy (the upsert itself detects identical content as a duplicate);
//   - local pending edits based on the same server content: keep the local
//     edits, the upload phase will push them;
//   - local pending edits AND a server copy that moved past the last
//     agreed content: both sides diverged, that is a conflict.
func classifyDownload(local localState, incomingHash string) downloadClass {
	if !local.present || !local.pending {
		return downloadApply
	}
	if incomingHash == local.dataHash {
		// Server already has exactly our content.
		return downloadApply
	}
	if incomingHash == local.serverHash {
		return downloadKeepLocal
	}
	return downloadConflict
}

func upsertAccount(ctx context.Context, repo *accounts.SQLiteRepository, a *models.Account, now int64, res *Result) error {
	a.SyncStatus = models.SyncStatusSynced
	a.LastSyncTime = now
	a.ServerHash = a.DataHash()
	applied, err := repo.UpsertByUUID(ctx, a)
	if err != nil {
		res.recordError(err)
		return err
	}
	if applied {
		res.Successful++
	} else {
		res.DuplicatesSkipped++
	}
	return nil
}

func upsertCategory(ctx context.Context, repo *categories.SQLiteRepository, c *models.Category, now int64, res *Result) error {
	c.SyncStatus = models.SyncStatusSynced
	c.LastSyncTime = now
	c.ServerHash = c.DataHash()
	applied, err := repo.UpsertByUUID(ctx, c)
	if err != nil {
		res.recordError(err)
		return err
	}
	if applied {
		res.Successful++
	} else {
		res.DuplicatesSkipped++
	}
	return nil
}

func upsertTransaction(ctx context.Context, repo *transactions.SQLiteRepository, t *models.Transaction, now int64, res *Result) error {
	t.SyncStatus = models.SyncStatusSynced
	t.LastSyncTime = now
	t.ServerHash = t.DataHash()
	applied, err := repo.UpsertByUUID(ctx, t)
	if err != nil {
		res.recordError(err)
		return err
	}
	if applied {
		res.Successful++
	} else {
		res.DuplicatesSkipped++
	}
	return nil
}

// --- Upload phase ---

func (o *Orchestrator) runUpload(ctx context.Context, userID int64, res *Result, conflicts *[]Conflict) error {
	now := o.now().UnixMilli()
	first := true

	pendingCategories, err := o.db.Categories.ListPendingSync(ctx)
	if err != nil {
		res.recordError(err)
		return err
	}
	pendingAccounts, err := o.db.Accounts.ListPendingSync(ctx, userID)
	if err != nil {
		res.recordError(err)
		return err
	}
	pendingTransactions, err := o.db.Transactions.ListPendingSync(ctx, userID)
	if err != nil {
		res.recordError(err)
		return err
	}

	total := len(pendingCategories) + len(pendingAccounts) + len(pendingTransactions)
	step := 0

	for _, c := range pendingCategories {
		step++
		o.progress.Report(PhaseUpload, step, total)
		if err := ctx.Err(); err != nil {
			return err
		}
		cmd := protocol.BuildAddCategoryEnhanced(c)
		if c.SyncStatus == models.SyncStatusNeedsSync {
			cmd = protocol.BuildUpdateCategoryEnhanced(c)
		}
		fatal, err := o.uploadOne(ctx, cmd, first, res, func(resp protocol.Response) error {
			switch resp.Status {
			case protocol.StatusOK:
				res.Successful++
				return o.db.Categories.MarkSynced(ctx, c.LocalID, now, c.DataHash())
			case protocol.StatusDuplicate:
				res.DuplicatesSkipped++
				return o.db.Categories.MarkSynced(ctx, c.LocalID, now, c.DataHash())
			case protocol.StatusConflict:
				server, err := protocol.ParseCategoryRecord(resp.Payload)
				if err != nil {
					return err
				}
				res.Conflicts++
				*conflicts = append(*conflicts, Conflict{
					EntityType: models.EntityCategory, UUID: c.UUID,
					ClientValue: c, ServerValue: server,
					ClientTimestamp: c.LastModified, ServerTimestamp: server.LastModified,
				})
				return o.db.Categories.MarkConflict(ctx, c.UUID)
			default:
				return fmt.Errorf("upload category %s: status %s", c.UUID, resp.Status)
			}
		})
		if fatal {
			return err
		}
		first = false
	}

	for _, a := range pendingAccounts {
		step++
		o.progress.Report(PhaseUpload, step, total)
		if err := ctx.Err(); err != nil {
			return err
		}
		cmd := protocol.BuildAddAccountEnhanced(a)
		if a.SyncStatus == models.SyncStatusNeedsSync {
			cmd = protocol.BuildUpdateAccountEnhanced(a)
		}
		fatal, err := o.uploadOne(ctx, cmd, first, res, func(resp protocol.Response) error {
			switch resp.Status {
			case protocol.StatusOK:
				res.Successful++
				return o.db.Accounts.MarkSynced(ctx, a.LocalID, now, a.DataHash())
			case protocol.StatusDuplicate:
				res.DuplicatesSkipped++
				return o.db.Accounts.MarkSynced(ctx, a.LocalID, now, a.DataHash())
			case protocol.StatusConflict:
				server, err := protocol.ParseAccountRecord(resp.Payload)
				if err != nil {
					return err
				}
				res.Conflicts++
				*conflicts = append(*conflicts, Conflict{
					EntityType: models.EntityAccount, UUID: a.UUID,
					ClientValue: a, ServerValue: server,
					ClientTimestamp: a.LastModified, ServerTimestamp: server.LastModified,
				})
				return o.db.Accounts.MarkConflict(ctx, a.UUID)
			default:
				return fmt.Errorf("upload account %s: status %s", a.UUID, resp.Status)
			}
		})
		if fatal {
			return err
		}
		first = false
	}

	for _, t := range pendingTransactions {
		step++
		o.progress.Report(PhaseUpload, step, total)
		if err := ctx.Err(); err != nil {
			return err
		}
		cmd := protocol.BuildAddTransactionEnhanced(t)
		if t.SyncStatus == models.SyncStatusNeedsSync {
			cmd = protocol.BuildUpdateTransactionEnhanced(t)
		}
		fatal, err := o.uploadOne(ctx, cmd, first, res, func(resp protocol.Response) error {
			switch resp.Status {
			case protocol.StatusOK:
				res.Successful++
				return o.db.Transactions.MarkSynced(ctx, t.LocalID, now, t.DataHash())
			case protocol.StatusDuplicate:
				res.DuplicatesSkipped++
				return o.db.Transactions.MarkSynced(ctx, t.LocalID, now, t.DataHash())
			case protocol.StatusConflict:
				server, err := protocol.ParseTransactionRecord(resp.Payload)
				if err != nil {
					return err
				}
				res.Conflicts++
				*conflicts = append(*conflicts, Conflict{
					EntityType: models.EntityTransaction, UUID: t.UUID,
					ClientValue: t, ServerValue: server,
					ClientTimestamp: t.LastModified, ServerTimestamp: server.LastModified,
				})
				return o.db.Transactions.MarkConflict(ctx, t.UUID)
			default:
				return fmt.Errorf("upload transaction %s: status %s", t.UUID, resp.Status)
			}
		})
		if fatal {
			return err
		}
		first = false
	}

	return nil
}

// uploadOne sends one enhanced command and hands the response to apply.
// It reports fatal=true only for a transport failure on the first command
// of the phase; everything else is a per-item error and the loop goes on.
func (o *Orchestrator) uploadOne(ctx context.Context, cmd string, first bool, res *Result, apply func(protocol.Response) error) (bool, error) {
	res.TotalProcessed++
	resp, err := o.send(ctx, cmd)
	if err != nil {
		res.recordError(err)
		if first && isTransportErr(err) {
			return true, err
		}
		return false, err
	}
	if err := apply(resp); err != nil {
		res.recordError(err)
	}
	return false, nil
}

// --- Resolve phase ---

func (o *Orchestrator) runResolve(ctx context.Context, strategy Strategy, conflicts []Conflict, res *Result) {
	for i, c := range conflicts {
		o.progress.Report(PhaseResolve, i+1, len(conflicts))
		if ctx.Err() != nil {
			return
		}

		resolution := Decide(strategy, c)
		o.log.Info(ctx, "resolving conflict", "entity", c.EntityType, "uuid", c.UUID,
			"strategy", strategy.String(), "outcome", resolution.Outcome.String())

		switch resolution.Outcome {
		case NeedsUserInput:
			// Stays in Conflict until someone decides; already counted.
			continue
		case Failed:
			res.recordError(fmt.Errorf("conflict %s/%s could not be resolved", c.EntityType, c.UUID))
			continue
		case ResolvedServer:
			// The server already holds the winning content; the notify is
			// informational and its failure does not block the local apply.
			if _, err := o.send(ctx, protocol.BuildResolveConflict(c.EntityType, c.UUID, protocol.ResolutionServer)); err != nil {
				o.log.Warn(ctx, "conflict notify failed", "uuid", c.UUID, "error", err)
			}
			if err := o.resolver.Apply(ctx, c, resolution); err != nil {
				res.recordError(err)
				continue
			}
			res.Successful++
		case ResolvedClient, ResolvedMerged:
			resp, err := o.send(ctx, protocol.BuildResolveConflict(c.EntityType, c.UUID, protocol.ResolutionClient))
			if err != nil || !resp.OK() {
				res.recordError(fmt.Errorf("conflict %s: resolve notify failed", c.UUID))
				continue
			}
			// Push the winning copy pinned to the server's current content
			// so the server accepts it as a resolution, not a new conflict.
			pushCmd, err := buildResolvedPush(c, resolution)
			if err != nil {
				res.recordError(err)
				continue
			}
			resp, err = o.send(ctx, pushCmd)
			if err != nil {
				res.recordError(err)
				continue
			}
			if resp.Status != protocol.StatusOK && resp.Status != protocol.StatusDuplicate {
				res.recordError(fmt.Errorf("conflict %s: push status %s", c.UUID, resp.Status))
				continue
			}
			if err := o.resolver.Apply(ctx, c, resolution); err != nil {
				res.recordError(err)
				continue
			}
			res.Successful++
		}
	}
}

// buildResolvedPush encodes the winning value as an enhanced update whose
// serverHash parameter matches the server's current content.
func buildResolvedPush(c Conflict, res Resolution) (string, error) {
	pinned := dataHashOf(c.ServerValue)

	switch v := res.Value.(type) {
	case *models.Account:
		a := *v
		a.UUID = c.UUID
		a.ServerHash = pinned
		return protocol.BuildUpdateAccountEnhanced(&a), nil
	case *models.Category:
		cat := *v
		cat.UUID = c.UUID
		cat.ServerHash = pinned
		return protocol.BuildUpdateCategoryEnhanced(&cat), nil
	case *models.Transaction:
		t := *v
		t.UUID = c.UUID
		t.ServerHash = pinned
		return protocol.BuildUpdateTransactionEnhanced(&t), nil
	default:
		return "", fmt.Errorf("unsupported resolution value %T", res.Value)
	}
}
