package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCommand(t *testing.T) {
	assert.Equal(t, "LOGOUT", BuildCommand(CmdLogout))
	assert.Equal(t, "LOGIN|bob@example.com|abc", BuildCommand(CmdLogin, "bob@example.com", "abc"))
}

func TestParseCommand(t *testing.T) {
	verb, params, err := ParseCommand("LIST_CHANGES_SINCE|conta|12345\r\n")
	require.NoError(t, err)
	assert.Equal(t, "LIST_CHANGES_SINCE", verb)
	assert.Equal(t, []string{"conta", "12345"}, params)
}

func TestParseCommand_NoParams(t *testing.T) {
	verb, params, err := ParseCommand("SYNC_STATUS")
	require.NoError(t, err)
	assert.Equal(t, "SYNC_STATUS", verb)
	assert.Empty(t, params)
}

func TestParseCommand_Empty(t *testing.T) {
	_, _, err := ParseCommand("")
	assert.ErrorIs(t, err, ErrEmptyCommand)

	_, _, err = ParseCommand("   \r\n")
	assert.ErrorIs(t, err, ErrEmptyCommand)
}

func TestParseResponse(t *testing.T) {
	resp, err := ParseResponse("OK|a,b;c,d\n")
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.Equal(t, "a,b;c,d", resp.Payload)
}

func TestParseResponse_PayloadKeepsSeparators(t *testing.T) {
	// CONFLICT payload is a whole record; the first '|' is the only split.
	resp, err := ParseResponse("CONFLICT|uuid-1,Name,tipo,10,5,1,hash")
	require.NoError(t, err)
	assert.Equal(t, StatusConflict, resp.Status)
	assert.Equal(t, "uuid-1,Name,tipo,10,5,1,hash", resp.Payload)
}

func TestParseResponse_UnknownStatus(t *testing.T) {
	_, err := ParseResponse("WHATEVER|x")
	assert.ErrorIs(t, err, ErrUnknownStatus)
}

func TestParseResponse_Empty(t *testing.T) {
	_, err := ParseResponse("\n")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestSplitRecords(t *testing.T) {
	assert.Nil(t, SplitRecords(""))
	assert.Nil(t, SplitRecords("  "))
	assert.Equal(t, []string{"a,b", "c,d"}, SplitRecords("a,b;c,d"))
}

func TestJoinRecords(t *testing.T) {
	assert.Equal(t, "a,b;c,d", JoinRecords([]string{"a,b", "c,d"}))
}
