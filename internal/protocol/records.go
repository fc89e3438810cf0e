package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/finanzaapp/finsync/internal/models"
)

// Record codecs for list payloads. One record is a comma-joined field list;
// the hash field carries the struct's ServerHash verbatim: the server sends
// the digest of its stored content, the client sends the digest of the last
// server-agreed content it knows about.
//
// Field orders follow the wire format:
//
//	conta:        uuid,name,type,initialBalance,lastModified,syncStatus,serverHash
//	categoria:    uuid,name,type,colorHex,lastModified,syncStatus,serverHash
//	movimentacao: uuid,amount,date,description,type,accountID,categoryID,
//	              userID,lastModified,syncStatus,serverHash,isDeleted

func EncodeAccountRecord(a *models.Account) string {
	return strings.Join([]string{
		a.UUID,
		EscapeField(a.Name),
		EscapeField(a.Type),
		strconv.FormatFloat(a.InitialBalance, 'f', -1, 64),
		strconv.FormatInt(a.LastModified, 10),
		strconv.Itoa(int(a.SyncStatus)),
		a.ServerHash,
	}, FieldSeparator)
}

func ParseAccountRecord(record string) (*models.Account, error) {
	f := strings.Split(record, FieldSeparator)
	if len(f) < 7 {
		return nil, fmt.Errorf("account record: want 7 fields, got %d", len(f))
	}
	balance, err := strconv.ParseFloat(f[3], 64)
	if err != nil {
		return nil, fmt.Errorf("account record: bad balance: %w", err)
	}
	lastModified, err := strconv.ParseInt(f[4], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("account record: bad lastModified: %w", err)
	}
	status, err := parseStatusField(f[5])
	if err != nil {
		return nil, fmt.Errorf("account record: %w", err)
	}
	if f[0] == "" {
		return nil, fmt.Errorf("account record: missing uuid")
	}
	return &models.Account{
		UUID:           f[0],
		Name:           UnescapeField(f[1]),
		Type:           UnescapeField(f[2]),
		InitialBalance: balance,
		LastModified:   lastModified,
		SyncStatus:     status,
		ServerHash:     f[6],
	}, nil
}

func EncodeCategoryRecord(c *models.Category) string {
	return strings.Join([]string{
		c.UUID,
		EscapeField(c.Name),
		EscapeField(c.Type),
		EscapeField(c.ColorHex),
		strconv.FormatInt(c.LastModified, 10),
		strconv.Itoa(int(c.SyncStatus)),
		c.ServerHash,
	}, FieldSeparator)
}

func ParseCategoryRecord(record string) (*models.Category, error) {
	f := strings.Split(record, FieldSeparator)
	if len(f) < 7 {
		return nil, fmt.Errorf("category record: want 7 fields, got %d", len(f))
	}
	lastModified, err := strconv.ParseInt(f[4], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("category record: bad lastModified: %w", err)
	}
	status, err := parseStatusField(f[5])
	if err != nil {
		return nil, fmt.Errorf("category record: %w", err)
	}
	if f[0] == "" {
		return nil, fmt.Errorf("category record: missing uuid")
	}
	return &models.Category{
		UUID:         f[0],
		Name:         UnescapeField(f[1]),
		Type:         UnescapeField(f[2]),
		ColorHex:     UnescapeField(f[3]),
		LastModified: lastModified,
		SyncStatus:   status,
		ServerHash:   f[6],
	}, nil
}

func EncodeTransactionRecord(t *models.Transaction) string {
	return strings.Join([]string{
		t.UUID,
		strconv.FormatFloat(t.Amount, 'f', -1, 64),
		strconv.FormatInt(t.Date, 10),
		EscapeField(t.Description),
		EscapeField(t.Type),
		strconv.FormatInt(t.AccountID, 10),
		strconv.FormatInt(t.CategoryID, 10),
		strconv.FormatInt(t.UserID, 10),
		strconv.FormatInt(t.LastModified, 10),
		strconv.Itoa(int(t.SyncStatus)),
		t.ServerHash,
		strconv.FormatBool(t.Deleted),
	}, FieldSeparator)
}

func ParseTransactionRecord(record string) (*models.Transaction, error) {
	f := strings.Split(record, FieldSeparator)
	if len(f) < 12 {
		return nil, fmt.Errorf("transaction record: want 12 fields, got %d", len(f))
	}
	amount, err := strconv.ParseFloat(f[1], 64)
	if err != nil {
		return nil, fmt.Errorf("transaction record: bad amount: %w", err)
	}
	date, err := strconv.ParseInt(f[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("transaction record: bad date: %w", err)
	}
	accountID, err := strconv.ParseInt(f[5], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("transaction record: bad accountID: %w", err)
	}
	categoryID, err := strconv.ParseInt(f[6], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("transaction record: bad categoryID: %w", err)
	}
	userID, err := strconv.ParseInt(f[7], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("transaction record: bad userID: %w", err)
	}
	lastModified, err := strconv.ParseInt(f[8], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("transaction record: bad lastModified: %w", err)
	}
	status, err := parseStatusField(f[9])
	if err != nil {
		return nil, fmt.Errorf("transaction record: %w", err)
	}
	deleted, err := strconv.ParseBool(f[11])
	if err != nil {
		return nil, fmt.Errorf("transaction record: bad isDeleted: %w", err)
	}
	if f[0] == "" {
		return nil, fmt.Errorf("transaction record: missing uuid")
	}
	return &models.Transaction{
		UUID:         f[0],
		Amount:       amount,
		Date:         date,
		Description:  UnescapeField(f[3]),
		Type:         UnescapeField(f[4]),
		AccountID:    accountID,
		CategoryID:   categoryID,
		UserID:       userID,
		LastModified: lastModified,
		SyncStatus:   status,
		ServerHash:   f[10],
		Deleted:      deleted,
	}, nil
}

func parseStatusField(s string) (models.SyncStatus, error) {
	code, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("bad syncStatus: %w", err)
	}
	return models.ParseSyncStatus(code)
}
