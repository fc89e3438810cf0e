package server

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/finanzaapp/finsync/internal/common"
	"github.com/finanzaapp/finsync/internal/hashx"
	"github.com/finanzaapp/finsync/internal/logging"
	"github.com/finanzaapp/finsync/internal/models"
	"github.com/finanzaapp/finsync/internal/protocol"
	"github.com/finanzaapp/finsync/internal/server/store"
	"golang.org/x/crypto/bcrypt"
)

// handler serves the commands of one connection. Authentication is
// connection-scoped: LOGIN or REGISTER binds a user to the handler and
// every later command runs as that user.
type handler struct {
	store store.Store
	log   logging.Logger
	now   func() int64

	user *models.User
}

func newHandler(st store.Store, log logging.Logger, now func() int64) *handler {
	return &handler{store: st, log: log, now: now}
}

// Handle executes one command line and returns the response line.
func (h *handler) Handle(ctx context.Context, line string) string {
	verb, params, err := protocol.ParseCommand(line)
	if err != nil {
		return protocol.BuildResponse(protocol.StatusInvalidData, "empty command")
	}

	resp := h.dispatch(ctx, verb, params)
	if resp.Status == protocol.StatusError {
		h.log.Warn(ctx, "command failed", "verb", verb, "payload", resp.Payload)
	}
	return protocol.BuildResponse(resp.Status, resp.Payload)
}

func ok(payload string) protocol.Response {
	return protocol.Response{Status: protocol.StatusOK, Payload: payload}
}

func fail(status protocol.Status, payload string) protocol.Response {
	return protocol.Response{Status: status, Payload: payload}
}

// storeFail maps store sentinels onto protocol statuses.
func storeFail(err error) protocol.Response {
	switch {
	case errors.Is(err, common.ErrNotFound):
		return fail(protocol.StatusNotFound, "not found")
	case errors.Is(err, common.ErrUserExists):
		return fail(protocol.StatusUserExists, "email already registered")
	default:
		return fail(protocol.StatusError, err.Error())
	}
}

func (h *handler) dispatch(ctx context.Context, verb string, params []string) protocol.Response {
	switch verb {
	case protocol.CmdLogin:
		return h.login(ctx, params)
	case protocol.CmdRegister:
		return h.register(ctx, params)
	case protocol.CmdResetPassword:
		return h.resetPassword(ctx, params)
	case protocol.CmdSyncStatus:
		return ok(strconv.FormatInt(h.now(), 10))
	}

	// Everything below requires an authenticated connection.
	if h.user == nil {
		return fail(protocol.StatusInvalidCredentials, "not authenticated")
	}

	switch verb {
	case protocol.CmdLogout:
		h.user = nil
		return ok("")
	case protocol.CmdGetProfile:
		return h.getProfile(ctx, params)
	case protocol.CmdUpdateProfile:
		return h.updateProfile(ctx, params)
	case protocol.CmdChangePassword:
		return h.changePassword(ctx, params)
	case protocol.CmdGetDashboard:
		return h.getDashboard(ctx, params)

	case protocol.CmdListAccounts:
		return h.listAccounts(ctx)
	case protocol.CmdAddAccount:
		return h.addAccount(ctx, params)
	case protocol.CmdUpdateAccount:
		return h.updateAccount(ctx, params)
	case protocol.CmdDeleteAccount:
		return h.deleteAccount(ctx, params)

	case protocol.CmdListCategories:
		return h.listCategories(ctx, "")
	case protocol.CmdListCategoriesByType:
		if len(params) < 1 {
			return fail(protocol.StatusInvalidData, "missing type")
		}
		return h.listCategories(ctx, protocol.UnescapeField(params[0]))
	case protocol.CmdAddCategory:
		return h.addCategory(ctx, params)
	case protocol.CmdUpdateCategory:
		return h.updateCategory(ctx, params)
	case protocol.CmdDeleteCategory:
		return h.deleteCategory(ctx, params)

	case protocol.CmdListTransactions:
		return h.listTransactions(ctx)
	case protocol.CmdListTransactionsByPeriod:
		return h.listTransactionsByPeriod(ctx, params)
	case protocol.CmdListTransactionsByAccount:
		return h.listTransactionsByAccount(ctx, params)
	case protocol.CmdAddTransaction:
		return h.addTransaction(ctx, params)
	case protocol.CmdUpdateTransaction:
		return h.updateTransaction(ctx, params)
	case protocol.CmdDeleteTransaction:
		return h.deleteTransaction(ctx, params, h.now())
	case protocol.CmdDeleteTransactionSoft:
		return h.deleteTransactionSoft(ctx, params)

	case protocol.CmdListChangesSince, protocol.CmdIncrementalSync:
		return h.listChangesSince(ctx, params)
	case protocol.CmdResolveConflict:
		return h.resolveConflict(ctx, params)
	case protocol.CmdBulkUpload:
		return h.bulkUpload(ctx, params)
	case protocol.CmdVerifyIntegrity:
		return h.verifyIntegrity(ctx, params)

	case protocol.CmdAddAccountEnhanced, protocol.CmdUpdateAccountEnhanced:
		return h.uploadAccount(ctx, params)
	case protocol.CmdAddCategoryEnhanced, protocol.CmdUpdateCategoryEnhanced:
		return h.uploadCategory(ctx, params)
	case protocol.CmdAddTransactionEnhanced, protocol.CmdUpdateTransactionEnhanced:
		return h.uploadTransaction(ctx, params)

	default:
		return fail(protocol.StatusInvalidData, "unknown command "+verb)
	}
}

// --- session ---

func (h *handler) login(ctx context.Context, params []string) protocol.Response {
	if len(params) < 2 {
		return fail(protocol.StatusInvalidData, "want email and password")
	}
	email := protocol.UnescapeField(params[0])

	u, err := h.store.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return fail(protocol.StatusInvalidCredentials, "invalid credentials")
		}
		return storeFail(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(params[1])) != nil {
		return fail(protocol.StatusInvalidCredentials, "invalid credentials")
	}

	h.user = u
	payload := strings.Join([]string{
		strconv.FormatInt(u.LocalID, 10),
		protocol.EscapeField(u.Name),
		protocol.EscapeField(u.Email),
	}, protocol.FieldSeparator)
	return ok(payload)
}

func (h *handler) register(ctx context.Context, params []string) protocol.Response {
	if len(params) < 3 {
		return fail(protocol.StatusInvalidData, "want name, email and password")
	}
	name := protocol.UnescapeField(params[0])
	email := protocol.UnescapeField(params[1])
	if name == "" || email == "" || params[2] == "" {
		return fail(protocol.StatusInvalidData, "empty registration field")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(params[2]), bcrypt.DefaultCost)
	if err != nil {
		return fail(protocol.StatusError, err.Error())
	}

	u := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hashed),
		CreatedAt:    h.now(),
	}
	u.EnsureUUID()

	id, err := h.store.CreateUser(ctx, u)
	if err != nil {
		return storeFail(err)
	}
	u.LocalID = id
	h.user = u
	return ok(strconv.FormatInt(id, 10))
}

// resetPassword acknowledges unconditionally so the verb cannot probe
// which emails are registered.
func (h *handler) resetPassword(ctx context.Context, params []string) protocol.Response {
	if len(params) < 1 {
		return fail(protocol.StatusInvalidData, "want email")
	}
	email := protocol.UnescapeField(params[0])
	if _, err := h.store.UserByEmail(ctx, email); err == nil {
		h.log.Info(ctx, "password reset requested", "email", email)
	}
	return ok("")
}

// requireSelf checks that an explicit userID parameter names the
// authenticated user.
func (h *handler) requireSelf(param string) (int64, protocol.Response, bool) {
	id, err := strconv.ParseInt(param, 10, 64)
	if err != nil {
		return 0, fail(protocol.StatusInvalidData, "bad user id"), false
	}
	if id != h.user.LocalID {
		return 0, fail(protocol.StatusInvalidCredentials, "user mismatch"), false
	}
	return id, protocol.Response{}, true
}

func (h *handler) getProfile(ctx context.Context, params []string) protocol.Response {
	if len(params) < 1 {
		return fail(protocol.StatusInvalidData, "want user id")
	}
	id, resp, okUser := h.requireSelf(params[0])
	if !okUser {
		return resp
	}
	u, err := h.store.UserByID(ctx, id)
	if err != nil {
		return storeFail(err)
	}
	payload := protocol.EscapeField(u.Name) + protocol.FieldSeparator + protocol.EscapeField(u.Email)
	return ok(payload)
}

func (h *handler) updateProfile(ctx context.Context, params []string) protocol.Response {
	if len(params) < 3 {
		return fail(protocol.StatusInvalidData, "want user id, name and email")
	}
	id, resp, okUser := h.requireSelf(params[0])
	if !okUser {
		return resp
	}
	name := protocol.UnescapeField(params[1])
	email := protocol.UnescapeField(params[2])
	if name == "" || email == "" {
		return fail(protocol.StatusInvalidData, "empty profile field")
	}
	if err := h.store.UpdateUserProfile(ctx, id, name, email); err != nil {
		return storeFail(err)
	}
	h.user.Name = name
	h.user.Email = email
	return ok("")
}

func (h *handler) changePassword(ctx context.Context, params []string) protocol.Response {
	if len(params) < 3 {
		return fail(protocol.StatusInvalidData, "want user id, old and new password")
	}
	id, resp, okUser := h.requireSelf(params[0])
	if !okUser {
		return resp
	}
	u, err := h.store.UserByID(ctx, id)
	if err != nil {
		return storeFail(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(params[1])) != nil {
		return fail(protocol.StatusInvalidCredentials, "invalid credentials")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(params[2]), bcrypt.DefaultCost)
	if err != nil {
		return fail(protocol.StatusError, err.Error())
	}
	if err := h.store.UpdateUserPassword(ctx, id, string(hashed)); err != nil {
		return storeFail(err)
	}
	return ok("")
}

func (h *handler) getDashboard(ctx context.Context, params []string) protocol.Response {
	if len(params) < 1 {
		return fail(protocol.StatusInvalidData, "want user id")
	}
	id, resp, okUser := h.requireSelf(params[0])
	if !okUser {
		return resp
	}
	balance, income, expense, err := h.store.Dashboard(ctx, id)
	if err != nil {
		return storeFail(err)
	}
	payload := strings.Join([]string{
		formatFloat(balance),
		formatFloat(income),
		formatFloat(expense),
	}, protocol.FieldSeparator)
	return ok(payload)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// --- account CRUD ---

// wireAccount stamps the sync metadata the server reports: its copy is
// always authoritative, so the hash field is the digest of its content.
func wireAccount(a *models.Account) *models.Account {
	cp := *a
	cp.SyncStatus = models.SyncStatusSynced
	cp.ServerHash = cp.DataHash()
	return &cp
}

func (h *handler) listAccounts(ctx context.Context) protocol.Response {
	list, err := h.store.ListAccounts(ctx, h.user.LocalID)
	if err != nil {
		return storeFail(err)
	}
	records := make([]string, 0, len(list))
	for _, a := range list {
		records = append(records, protocol.EncodeAccountRecord(wireAccount(a)))
	}
	return ok(protocol.JoinRecords(records))
}

func (h *handler) addAccount(ctx context.Context, params []string) protocol.Response {
	if len(params) < 3 {
		return fail(protocol.StatusInvalidData, "want name, type and initial balance")
	}
	balance, err := strconv.ParseFloat(params[2], 64)
	if err != nil {
		return fail(protocol.StatusInvalidData, "bad initial balance")
	}
	a := &models.Account{
		Name:           protocol.UnescapeField(params[0]),
		Type:           protocol.UnescapeField(params[1]),
		InitialBalance: balance,
		UserID:         h.user.LocalID,
		LastModified:   h.now(),
	}
	if a.Name == "" {
		return fail(protocol.StatusInvalidData, "empty account name")
	}
	a.EnsureUUID()
	if _, err := h.store.SaveAccount(ctx, a); err != nil {
		return storeFail(err)
	}
	return ok(a.UUID)
}

func (h *handler) updateAccount(ctx context.Context, params []string) protocol.Response {
	if len(params) < 4 {
		return fail(protocol.StatusInvalidData, "want uuid, name, type and initial balance")
	}
	balance, err := strconv.ParseFloat(params[3], 64)
	if err != nil {
		return fail(protocol.StatusInvalidData, "bad initial balance")
	}
	a, err := h.store.AccountByUUID(ctx, h.user.LocalID, params[0])
	if err != nil {
		return storeFail(err)
	}
	a.Name = protocol.UnescapeField(params[1])
	a.Type = protocol.UnescapeField(params[2])
	a.InitialBalance = balance
	a.LastModified = h.now()
	if _, err := h.store.SaveAccount(ctx, a); err != nil {
		return storeFail(err)
	}
	return ok("")
}

func (h *handler) deleteAccount(ctx context.Context, params []string) protocol.Response {
	if len(params) < 1 {
		return fail(protocol.StatusInvalidData, "want uuid")
	}
	if err := h.store.DeleteAccount(ctx, h.user.LocalID, params[0]); err != nil {
		return storeFail(err)
	}
	return ok("")
}

// --- category CRUD ---

func wireCategory(c *models.Category) *models.Category {
	cp := *c
	cp.SyncStatus = models.SyncStatusSynced
	cp.ServerHash = cp.DataHash()
	return &cp
}

func (h *handler) listCategories(ctx context.Context, typ string) protocol.Response {
	var (
		list []*models.Category
		err  error
	)
	if typ == "" {
		list, err = h.store.ListCategories(ctx)
	} else {
		list, err = h.store.ListCategoriesByType(ctx, typ)
	}
	if err != nil {
		return storeFail(err)
	}
	records := make([]string, 0, len(list))
	for _, c := range list {
		records = append(records, protocol.EncodeCategoryRecord(wireCategory(c)))
	}
	return ok(protocol.JoinRecords(records))
}

func (h *handler) addCategory(ctx context.Context, params []string) protocol.Response {
	if len(params) < 3 {
		return fail(protocol.StatusInvalidData, "want name, type and color")
	}
	c := &models.Category{
		Name:         protocol.UnescapeField(params[0]),
		Type:         protocol.UnescapeField(params[1]),
		ColorHex:     protocol.UnescapeField(params[2]),
		LastModified: h.now(),
	}
	if c.Name == "" {
		return fail(protocol.StatusInvalidData, "empty category name")
	}
	if c.Type != models.CategoryTypeIncome && c.Type != models.CategoryTypeExpense {
		return fail(protocol.StatusInvalidData, "bad category type")
	}
	c.EnsureUUID()
	if _, err := h.store.SaveCategory(ctx, c); err != nil {
		return storeFail(err)
	}
	return ok(c.UUID)
}

func (h *handler) updateCategory(ctx context.Context, params []string) protocol.Response {
	if len(params) < 4 {
		return fail(protocol.StatusInvalidData, "want uuid, name, type and color")
	}
	c, err := h.store.CategoryByUUID(ctx, params[0])
	if err != nil {
		return storeFail(err)
	}
	c.Name = protocol.UnescapeField(params[1])
	c.Type = protocol.UnescapeField(params[2])
	c.ColorHex = protocol.UnescapeField(params[3])
	c.LastModified = h.now()
	if _, err := h.store.SaveCategory(ctx, c); err != nil {
		return storeFail(err)
	}
	return ok("")
}

func (h *handler) deleteCategory(ctx context.Context, params []string) protocol.Response {
	if len(params) < 1 {
		return fail(protocol.StatusInvalidData, "want uuid")
	}
	if err := h.store.DeleteCategory(ctx, params[0]); err != nil {
		return storeFail(err)
	}
	return ok("")
}

// --- transaction CRUD ---

func wireTransaction(t *models.Transaction) *models.Transaction {
	cp := *t
	cp.SyncStatus = models.SyncStatusSynced
	cp.ServerHash = cp.DataHash()
	return &cp
}

func (h *handler) listTransactions(ctx context.Context) protocol.Response {
	list, err := h.store.ListTransactions(ctx, h.user.LocalID)
	if err != nil {
		return storeFail(err)
	}
	return ok(encodeTransactions(list))
}

func (h *handler) listTransactionsByPeriod(ctx context.Context, params []string) protocol.Response {
	if len(params) < 3 {
		return fail(protocol.StatusInvalidData, "want user id, from and to")
	}
	if _, resp, okUser := h.requireSelf(params[0]); !okUser {
		return resp
	}
	from, err := strconv.ParseInt(params[1], 10, 64)
	if err != nil {
		return fail(protocol.StatusInvalidData, "bad period start")
	}
	to, err := strconv.ParseInt(params[2], 10, 64)
	if err != nil {
		return fail(protocol.StatusInvalidData, "bad period end")
	}
	list, err := h.store.ListTransactionsByPeriod(ctx, h.user.LocalID, from, to)
	if err != nil {
		return storeFail(err)
	}
	return ok(encodeTransactions(list))
}

func (h *handler) listTransactionsByAccount(ctx context.Context, params []string) protocol.Response {
	if len(params) < 2 {
		return fail(protocol.StatusInvalidData, "want user id and account id")
	}
	if _, resp, okUser := h.requireSelf(params[0]); !okUser {
		return resp
	}
	accountID, err := strconv.ParseInt(params[1], 10, 64)
	if err != nil {
		return fail(protocol.StatusInvalidData, "bad account id")
	}
	list, err := h.store.ListTransactionsByAccount(ctx, h.user.LocalID, accountID)
	if err != nil {
		return storeFail(err)
	}
	return ok(encodeTransactions(list))
}

func encodeTransactions(list []*models.Transaction) string {
	records := make([]string, 0, len(list))
	for _, t := range list {
		records = append(records, protocol.EncodeTransactionRecord(wireTransaction(t)))
	}
	return protocol.JoinRecords(records)
}

func (h *handler) addTransaction(ctx context.Context, params []string) protocol.Response {
	t, resp, okParse := h.parseTransactionParams(params)
	if !okParse {
		return resp
	}
	t.LastModified = h.now()
	t.EnsureUUID()
	if _, err := h.store.SaveTransaction(ctx, t); err != nil {
		return storeFail(err)
	}
	return ok(t.UUID)
}

func (h *handler) updateTransaction(ctx context.Context, params []string) protocol.Response {
	if len(params) < 7 {
		return fail(protocol.StatusInvalidData, "want uuid and transaction fields")
	}
	existing, err := h.store.TransactionByUUID(ctx, h.user.LocalID, params[0])
	if err != nil {
		return storeFail(err)
	}
	t, resp, okParse := h.parseTransactionParams(params[1:])
	if !okParse {
		return resp
	}
	t.LocalID = existing.LocalID
	t.UUID = existing.UUID
	t.LastModified = h.now()
	if _, err := h.store.SaveTransaction(ctx, t); err != nil {
		return storeFail(err)
	}
	return ok("")
}

// parseTransactionParams decodes amount|date|description|type|accountID|categoryID.
func (h *handler) parseTransactionParams(params []string) (*models.Transaction, protocol.Response, bool) {
	if len(params) < 6 {
		return nil, fail(protocol.StatusInvalidData, "want amount, date, description, type, account and category"), false
	}
	amount, err := strconv.ParseFloat(params[0], 64)
	if err != nil {
		return nil, fail(protocol.StatusInvalidData, "bad amount"), false
	}
	date, err := strconv.ParseInt(params[1], 10, 64)
	if err != nil {
		return nil, fail(protocol.StatusInvalidData, "bad date"), false
	}
	typ := protocol.UnescapeField(params[3])
	if typ != models.TransactionTypeIncome && typ != models.TransactionTypeExpense {
		return nil, fail(protocol.StatusInvalidData, "bad transaction type"), false
	}
	accountID, err := strconv.ParseInt(params[4], 10, 64)
	if err != nil {
		return nil, fail(protocol.StatusInvalidData, "bad account id"), false
	}
	categoryID, err := strconv.ParseInt(params[5], 10, 64)
	if err != nil {
		return nil, fail(protocol.StatusInvalidData, "bad category id"), false
	}
	return &models.Transaction{
		Amount:      amount,
		Date:        date,
		Description: protocol.UnescapeField(params[2]),
		Type:        typ,
		AccountID:   accountID,
		CategoryID:  categoryID,
		UserID:      h.user.LocalID,
	}, protocol.Response{}, true
}

// deleteTransaction tombstones instead of removing, so the deletion
// reaches every client on its next pass.
func (h *handler) deleteTransaction(ctx context.Context, params []string, ts int64) protocol.Response {
	if len(params) < 1 {
		return fail(protocol.StatusInvalidData, "want uuid")
	}
	t, err := h.store.TransactionByUUID(ctx, h.user.LocalID, params[0])
	if err != nil {
		return storeFail(err)
	}
	t.Deleted = true
	t.LastModified = ts
	if _, err := h.store.SaveTransaction(ctx, t); err != nil {
		return storeFail(err)
	}
	return ok("")
}

func (h *handler) deleteTransactionSoft(ctx context.Context, params []string) protocol.Response {
	if len(params) < 2 {
		return fail(protocol.StatusInvalidData, "want uuid and timestamp")
	}
	ts, err := strconv.ParseInt(params[1], 10, 64)
	if err != nil {
		return fail(protocol.StatusInvalidData, "bad timestamp")
	}
	return h.deleteTransaction(ctx, params[:1], ts)
}

// --- sync verbs ---

func (h *handler) listChangesSince(ctx context.Context, params []string) protocol.Response {
	if len(params) < 2 {
		return fail(protocol.StatusInvalidData, "want entity and since")
	}
	entity := models.EntityType(params[0])
	since, err := strconv.ParseInt(params[1], 10, 64)
	if err != nil {
		return fail(protocol.StatusInvalidData, "bad since timestamp")
	}

	switch entity {
	case models.EntityAccount:
		list, err := h.store.ListAccountsSince(ctx, h.user.LocalID, since)
		if err != nil {
			return storeFail(err)
		}
		records := make([]string, 0, len(list))
		for _, a := range list {
			records = append(records, protocol.EncodeAccountRecord(wireAccount(a)))
		}
		return ok(protocol.JoinRecords(records))
	case models.EntityCategory:
		list, err := h.store.ListCategoriesSince(ctx, since)
		if err != nil {
			return storeFail(err)
		}
		records := make([]string, 0, len(list))
		for _, c := range list {
			records = append(records, protocol.EncodeCategoryRecord(wireCategory(c)))
		}
		return ok(protocol.JoinRecords(records))
	case models.EntityTransaction:
		list, err := h.store.ListTransactionsSince(ctx, h.user.LocalID, since)
		if err != nil {
			return storeFail(err)
		}
		return ok(encodeTransactions(list))
	default:
		return fail(protocol.StatusInvalidData, "unknown entity "+params[0])
	}
}

// resolveConflict acknowledges a resolution direction. A SERVER direction
// needs no server-side change; a CLIENT direction is followed by an
// enhanced update carrying the winning content.
func (h *handler) resolveConflict(ctx context.Context, params []string) protocol.Response {
	if len(params) < 3 {
		return fail(protocol.StatusInvalidData, "want entity, uuid and direction")
	}
	entity := models.EntityType(params[0])
	uuid := params[1]
	direction := params[2]
	if direction != protocol.ResolutionClient && direction != protocol.ResolutionServer {
		return fail(protocol.StatusInvalidData, "bad resolution direction")
	}

	var err error
	switch entity {
	case models.EntityAccount:
		_, err = h.store.AccountByUUID(ctx, h.user.LocalID, uuid)
	case models.EntityCategory:
		_, err = h.store.CategoryByUUID(ctx, uuid)
	case models.EntityTransaction:
		_, err = h.store.TransactionByUUID(ctx, h.user.LocalID, uuid)
	default:
		return fail(protocol.StatusInvalidData, "unknown entity "+params[0])
	}
	if err != nil {
		return storeFail(err)
	}
	h.log.Info(ctx, "conflict resolution accepted", "entity", string(entity), "uuid", uuid, "direction", direction)
	return ok("")
}

// bulkUpload applies a batch of records under the same contract as the
// enhanced verbs. The payload reports applied, duplicate and conflicting
// counts; conflicting records stay untouched on the server.
func (h *handler) bulkUpload(ctx context.Context, params []string) protocol.Response {
	if len(params) < 2 {
		return fail(protocol.StatusInvalidData, "want entity and payload")
	}
	entity := models.EntityType(params[0])
	// Records may contain escaped separators only at field level, so
	// joining the remaining params restores payloads that contained no
	// command separator in the first place.
	payload := strings.Join(params[1:], protocol.CommandSeparator)

	var applied, duplicates, conflicts, bad int
	for _, record := range protocol.SplitRecords(payload) {
		var resp protocol.Response
		switch entity {
		case models.EntityAccount:
			a, err := protocol.ParseAccountRecord(record)
			if err != nil {
				bad++
				continue
			}
			resp = h.applyAccountUpload(ctx, a)
		case models.EntityCategory:
			c, err := protocol.ParseCategoryRecord(record)
			if err != nil {
				bad++
				continue
			}
			resp = h.applyCategoryUpload(ctx, c)
		case models.EntityTransaction:
			t, err := protocol.ParseTransactionRecord(record)
			if err != nil {
				bad++
				continue
			}
			resp = h.applyTransactionUpload(ctx, t)
		default:
			return fail(protocol.StatusInvalidData, "unknown entity "+params[0])
		}

		switch resp.Status {
		case protocol.StatusOK:
			applied++
		case protocol.StatusDuplicate:
			duplicates++
		case protocol.StatusConflict:
			conflicts++
		default:
			bad++
		}
	}

	payloadOut := strings.Join([]string{
		strconv.Itoa(applied),
		strconv.Itoa(duplicates),
		strconv.Itoa(conflicts),
		strconv.Itoa(bad),
	}, protocol.FieldSeparator)
	return ok(payloadOut)
}

// verifyIntegrity reports the record count and an aggregate digest over
// uuid/content-hash pairs in uuid order, so both sides can compare whole
// datasets with one round trip.
func (h *handler) verifyIntegrity(ctx context.Context, params []string) protocol.Response {
	if len(params) < 1 {
		return fail(protocol.StatusInvalidData, "want entity")
	}
	entity := models.EntityType(params[0])

	var pairs []string
	switch entity {
	case models.EntityAccount:
		list, err := h.store.ListAccounts(ctx, h.user.LocalID)
		if err != nil {
			return storeFail(err)
		}
		for _, a := range list {
			pairs = append(pairs, a.UUID+":"+a.DataHash())
		}
	case models.EntityCategory:
		list, err := h.store.ListCategories(ctx)
		if err != nil {
			return storeFail(err)
		}
		for _, c := range list {
			pairs = append(pairs, c.UUID+":"+c.DataHash())
		}
	case models.EntityTransaction:
		list, err := h.store.ListTransactionsSince(ctx, h.user.LocalID, 0)
		if err != nil {
			return storeFail(err)
		}
		for _, t := range list {
			pairs = append(pairs, t.UUID+":"+t.DataHash())
		}
	default:
		return fail(protocol.StatusInvalidData, "unknown entity "+params[0])
	}

	digest := hashx.Aggregate(pairs)
	return ok(strconv.Itoa(len(pairs)) + protocol.FieldSeparator + digest)
}

// --- enhanced uploads ---

func (h *handler) uploadAccount(ctx context.Context, params []string) protocol.Response {
	a, err := protocol.ParseAccountEnhanced(params)
	if err != nil {
		return fail(protocol.StatusInvalidData, err.Error())
	}
	return h.applyAccountUpload(ctx, a)
}

// applyAccountUpload implements the upload contract:
//
//   - unknown uuid: create, OK;
//   - incoming content equals stored content: DUPLICATE;
//   - client's last agreed hash equals stored content: fast-forward, OK;
//   - otherwise both sides moved: CONFLICT carrying the server copy.
func (h *handler) applyAccountUpload(ctx context.Context, a *models.Account) protocol.Response {
	a.UserID = h.user.LocalID

	stored, err := h.store.AccountByUUID(ctx, h.user.LocalID, a.UUID)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			return storeFail(err)
		}
		if _, err := h.store.SaveAccount(ctx, a); err != nil {
			return storeFail(err)
		}
		return ok("")
	}

	storedHash := stored.DataHash()
	if a.DataHash() == storedHash {
		return fail(protocol.StatusDuplicate, "")
	}
	if a.ServerHash != storedHash {
		return fail(protocol.StatusConflict, protocol.EncodeAccountRecord(wireAccount(stored)))
	}
	if _, err := h.store.SaveAccount(ctx, a); err != nil {
		return storeFail(err)
	}
	return ok("")
}

func (h *handler) uploadCategory(ctx context.Context, params []string) protocol.Response {
	c, err := protocol.ParseCategoryEnhanced(params)
	if err != nil {
		return fail(protocol.StatusInvalidData, err.Error())
	}
	return h.applyCategoryUpload(ctx, c)
}

func (h *handler) applyCategoryUpload(ctx context.Context, c *models.Category) protocol.Response {
	stored, err := h.store.CategoryByUUID(ctx, c.UUID)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			return storeFail(err)
		}
		if _, err := h.store.SaveCategory(ctx, c); err != nil {
			return storeFail(err)
		}
		return ok("")
	}

	storedHash := stored.DataHash()
	if c.DataHash() == storedHash {
		return fail(protocol.StatusDuplicate, "")
	}
	if c.ServerHash != storedHash {
		return fail(protocol.StatusConflict, protocol.EncodeCategoryRecord(wireCategory(stored)))
	}
	if _, err := h.store.SaveCategory(ctx, c); err != nil {
		return storeFail(err)
	}
	return ok("")
}

func (h *handler) uploadTransaction(ctx context.Context, params []string) protocol.Response {
	t, err := protocol.ParseTransactionEnhanced(params)
	if err != nil {
		return fail(protocol.StatusInvalidData, err.Error())
	}
	return h.applyTransactionUpload(ctx, t)
}

func (h *handler) applyTransactionUpload(ctx context.Context, t *models.Transaction) protocol.Response {
	t.UserID = h.user.LocalID

	stored, err := h.store.TransactionByUUID(ctx, h.user.LocalID, t.UUID)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			return storeFail(err)
		}
		if _, err := h.store.SaveTransaction(ctx, t); err != nil {
			return storeFail(err)
		}
		return ok("")
	}

	storedHash := stored.DataHash()
	if t.DataHash() == storedHash {
		return fail(protocol.StatusDuplicate, "")
	}
	if t.ServerHash != storedHash {
		return fail(protocol.StatusConflict, protocol.EncodeTransactionRecord(wireTransaction(stored)))
	}
	if _, err := h.store.SaveTransaction(ctx, t); err != nil {
		return storeFail(err)
	}
	return ok("")
}
