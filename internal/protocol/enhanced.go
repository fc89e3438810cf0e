package protocol

import (
	"fmt"
	"strconv"

	"github.com/finanzaapp/finsync/internal/models"
)

// Parsers for the enhanced command parameter lists, mirroring the builders
// in commands.go. The server uses these to decode uploads.

func ParseAccountEnhanced(params []string) (*models.Account, error) {
	if len(params) < 7 {
		return nil, fmt.Errorf("enhanced account: want 7 params, got %d", len(params))
	}
	balance, err := strconv.ParseFloat(params[2], 64)
	if err != nil {
		return nil, fmt.Errorf("enhanced account: bad balance: %w", err)
	}
	lastModified, err := strconv.ParseInt(params[4], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("enhanced account: bad lastModified: %w", err)
	}
	status, err := parseStatusField(params[5])
	if err != nil {
		return nil, fmt.Errorf("enhanced account: %w", err)
	}
	if params[3] == "" {
		return nil, fmt.Errorf("enhanced account: missing uuid")
	}
	return &models.Account{
		Name:           UnescapeField(params[0]),
		Type:           UnescapeField(params[1]),
		InitialBalance: balance,
		UUID:           params[3],
		LastModified:   lastModified,
		SyncStatus:     status,
		ServerHash:     params[6],
	}, nil
}

func ParseCategoryEnhanced(params []string) (*models.Category, error) {
	if len(params) < 7 {
		return nil, fmt.Errorf("enhanced category: want 7 params, got %d", len(params))
	}
	lastModified, err := strconv.ParseInt(params[4], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("enhanced category: bad lastModified: %w", err)
	}
	status, err := parseStatusField(params[5])
	if err != nil {
		return nil, fmt.Errorf("enhanced category: %w", err)
	}
	if params[3] == "" {
		return nil, fmt.Errorf("enhanced category: missing uuid")
	}
	return &models.Category{
		Name:         UnescapeField(params[0]),
		Type:         UnescapeField(params[1]),
		ColorHex:     UnescapeField(params[2]),
		UUID:         params[3],
		LastModified: lastModified,
		SyncStatus:   status,
		ServerHash:   params[6],
	}, nil
}

func ParseTransactionEnhanced(params []string) (*models.Transaction, error) {
	if len(params) < 11 {
		return nil, fmt.Errorf("enhanced transaction: want 11 params, got %d", len(params))
	}
	amount, err := strconv.ParseFloat(params[0], 64)
	if err != nil {
		return nil, fmt.Errorf("enhanced transaction: bad amount: %w", err)
	}
	date, err := strconv.ParseInt(params[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("enhanced transaction: bad date: %w", err)
	}
	accountID, err := strconv.ParseInt(params[4], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("enhanced transaction: bad accountID: %w", err)
	}
	categoryID, err := strconv.ParseInt(params[5], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("enhanced transaction: bad categoryID: %w", err)
	}
	lastModified, err := strconv.ParseInt(params[7], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("enhanced transaction: bad lastModified: %w", err)
	}
	status, err := parseStatusField(params[8])
	if err != nil {
		return nil, fmt.Errorf("enhanced transaction: %w", err)
	}
	deleted, err := strconv.ParseBool(params[10])
	if err != nil {
		return nil, fmt.Errorf("enhanced transaction: bad isDeleted: %w", err)
	}
	if params[6] == "" {
		return nil, fmt.Errorf("enhanced transaction: missing uuid")
	}
	return &models.Transaction{
		Amount:       amount,
		Date:         date,
		Description:  UnescapeField(params[2]),
		Type:         UnescapeField(params[3]),
		AccountID:    accountID,
		CategoryID:   categoryID,
		UUID:         params[6],
		LastModified: lastModified,
		SyncStatus:   status,
		ServerHash:   params[9],
		Deleted:      deleted,
	}, nil
}
