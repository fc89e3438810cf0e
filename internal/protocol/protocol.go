// Package protocol implements the pipe-delimited ASCII line protocol spoken
// between client and server.
//
// Commands are single lines of the form VERB|P1|P2|...|Pn. Responses are
// STATUS|PAYLOAD. A list payload separates records with ';' and fields
// within one record with ','. Free-text fields are percent-escaped (see
// escape.go) so the separators can never occur inside a field.
//
// Encoding and decoding here are pure: no I/O, no panics on malformed
// input, and decode(encode(v, p...)) == (v, p...) for escaped fields.
package protocol

import (
	"errors"
	"strings"
)

const (
	CommandSeparator = "|"
	RecordSeparator  = ";"
	FieldSeparator   = ","
)

var (
	ErrEmptyCommand  = errors.New("empty command")
	ErrEmptyResponse = errors.New("empty response")
	ErrUnknownStatus = errors.New("unknown response status")
)

// Status is the first token of every response line.
type Status string

const (
	StatusOK                 Status = "OK"
	StatusError              Status = "ERROR"
	StatusInvalidData        Status = "INVALID_DATA"
	StatusInvalidCredentials Status = "INVALID_CREDENTIALS"
	StatusUserExists         Status = "USER_EXISTS"
	StatusNotFound           Status = "NOT_FOUND"
	StatusConflict           Status = "CONFLICT"
	StatusDuplicate          Status = "DUPLICATE"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOK, StatusError, StatusInvalidData, StatusInvalidCredentials,
		StatusUserExists, StatusNotFound, StatusConflict, StatusDuplicate:
		return true
	}
	return false
}

// Session verbs.
const (
	CmdLogin          = "LOGIN"
	CmdRegister       = "REGISTER"
	CmdLogout         = "LOGOUT"
	CmdGetDashboard   = "GET_DASHBOARD"
	CmdGetProfile     = "GET_PERFIL"
	CmdUpdateProfile  = "UPDATE_PERFIL"
	CmdChangePassword = "CHANGE_PASSWORD"
	CmdResetPassword  = "RESET_PASSWORD"
)

// Account verbs.
const (
	CmdListAccounts  = "LIST_CONTAS"
	CmdAddAccount    = "ADD_CONTA"
	CmdUpdateAccount = "UPDATE_CONTA"
	CmdDeleteAccount = "DELETE_CONTA"
)

// Category verbs.
const (
	CmdListCategories       = "LIST_CATEGORIAS"
	CmdListCategoriesByType = "LIST_CATEGORIAS_TIPO"
	CmdAddCategory          = "ADD_CATEGORIA"
	CmdUpdateCategory       = "UPDATE_CATEGORIA"
	CmdDeleteCategory       = "DELETE_CATEGORIA"
)

// Transaction verbs.
const (
	CmdListTransactions          = "LIST_MOVIMENTACOES"
	CmdListTransactionsByPeriod  = "LIST_MOVIMENTACOES_PERIODO"
	CmdListTransactionsByAccount = "LIST_MOVIMENTACOES_CONTA"
	CmdAddTransaction            = "ADD_MOVIMENTACAO"
	CmdUpdateTransaction         = "UPDATE_MOVIMENTACAO"
	CmdDeleteTransaction         = "DELETE_MOVIMENTACAO"
)

// Sync verbs.
const (
	CmdSyncStatus       = "SYNC_STATUS"
	CmdIncrementalSync  = "INCREMENTAL_SYNC"
	CmdListChangesSince = "LIST_CHANGES_SINCE"
	CmdResolveConflict  = "RESOLVE_CONFLICT"
	CmdBulkUpload       = "BULK_UPLOAD"
	CmdVerifyIntegrity  = "VERIFY_INTEGRITY"
)

// Enhanced verbs carry the sync metadata (uuid, lastModified, syncStatus,
// serverHash, and for transactions the tombstone flag) after the business
// fields.
const (
	CmdAddAccountEnhanced        = "ADD_CONTA_ENHANCED"
	CmdUpdateAccountEnhanced     = "UPDATE_CONTA_ENHANCED"
	CmdAddCategoryEnhanced       = "ADD_CATEGORIA_ENHANCED"
	CmdUpdateCategoryEnhanced    = "UPDATE_CATEGORIA_ENHANCED"
	CmdAddTransactionEnhanced    = "ADD_MOVIMENTACAO_ENHANCED"
	CmdUpdateTransactionEnhanced = "UPDATE_MOVIMENTACAO_ENHANCED"
	CmdDeleteTransactionSoft     = "DELETE_MOVIMENTACAO_SOFT"
)

// Conflict resolution directions for CmdResolveConflict.
const (
	ResolutionClient = "CLIENT"
	ResolutionServer = "SERVER"
)

// BuildCommand joins a verb and already-escaped parameters into one
// command line.
func BuildCommand(verb string, params ...string) string {
	if len(params) == 0 {
		return verb
	}
	var sb strings.Builder
	sb.WriteString(verb)
	for _, p := range params {
		sb.WriteString(CommandSeparator)
		sb.WriteString(p)
	}
	return sb.String()
}

// ParseCommand splits a command line into verb and parameters. A blank
// line is a parse failure, never a panic.
func ParseCommand(line string) (verb string, params []string, err error) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return "", nil, ErrEmptyCommand
	}
	parts := strings.Split(line, CommandSeparator)
	if parts[0] == "" {
		return "", nil, ErrEmptyCommand
	}
	return parts[0], parts[1:], nil
}

// Response is a decoded STATUS|PAYLOAD line.
type Response struct {
	Status  Status
	Payload string
}

func (r Response) OK() bool { return r.Status == StatusOK }

// BuildResponse encodes a response line.
func BuildResponse(status Status, payload string) string {
	return string(status) + CommandSeparator + payload
}

// ParseResponse decodes a response line. The payload keeps any further
// separators intact; record splitting is up to the caller.
func ParseResponse(line string) (Response, error) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return Response{}, ErrEmptyResponse
	}
	status, payload, _ := strings.Cut(line, CommandSeparator)
	s := Status(status)
	if !s.Valid() {
		return Response{}, ErrUnknownStatus
	}
	return Response{Status: s, Payload: payload}, nil
}

// SplitRecords splits a list payload into records. Empty payloads yield no
// records.
func SplitRecords(payload string) []string {
	if strings.TrimSpace(payload) == "" {
		return nil
	}
	return strings.Split(payload, RecordSeparator)
}

// JoinRecords joins encoded records into a list payload.
func JoinRecords(records []string) string {
	return strings.Join(records, RecordSeparator)
}
