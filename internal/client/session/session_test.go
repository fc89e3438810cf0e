package session

import (
	"context"
	"strings"
	"testing"

	"github.com/finanzaapp/finsync/internal/common"
	"github.com/finanzaapp/finsync/internal/hashx"
	"github.com/finanzaapp/finsync/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport records sent commands and replies from a script.
type fakeTransport struct {
	sent  []string
	reply func(cmd string) (protocol.Response, error)
}

func (f *fakeTransport) Send(_ context.Context, command string) (protocol.Response, error) {
	f.sent = append(f.sent, command)
	return f.reply(command)
}

func (f *fakeTransport) Ping(context.Context) error { return nil }
func (f *fakeTransport) Close() error               { return nil }

func respond(status protocol.Status, payload string) func(string) (protocol.Response, error) {
	return func(string) (protocol.Response, error) {
		return protocol.Response{Status: status, Payload: payload}, nil
	}
}

func TestLogin(t *testing.T) {
	ft := &fakeTransport{reply: respond(protocol.StatusOK, "7,Ana,ana@example.com")}
	s := New(ft)

	p, err := s.Login(context.Background(), "ana@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, int64(7), p.UserID)
	assert.Equal(t, "Ana", p.Name)
	assert.Equal(t, "ana@example.com", p.Email)
	assert.Equal(t, p, s.User())

	// The clear text never crosses the wire, only its digest.
	require.Len(t, ft.sent, 1)
	params := strings.Split(ft.sent[0], protocol.CommandSeparator)
	require.Len(t, params, 3)
	assert.Equal(t, protocol.CmdLogin, params[0])
	assert.Equal(t, hashx.Checksum("secret"), params[2])
	assert.NotContains(t, ft.sent[0], "secret")
}

func TestLogin_InvalidCredentials(t *testing.T) {
	ft := &fakeTransport{reply: respond(protocol.StatusInvalidCredentials, "invalid credentials")}
	s := New(ft)

	_, err := s.Login(context.Background(), "ana@example.com", "wrong")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
	assert.Nil(t, s.User())
}

func TestRegister(t *testing.T) {
	ft := &fakeTransport{reply: respond(protocol.StatusOK, "3")}
	s := New(ft)

	p, err := s.Register(context.Background(), "Ana", "ana@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, int64(3), p.UserID)
	assert.Equal(t, "Ana", p.Name)
	assert.NotNil(t, s.User())
}

func TestRegister_UserExists(t *testing.T) {
	ft := &fakeTransport{reply: respond(protocol.StatusUserExists, "email already registered")}
	s := New(ft)

	_, err := s.Register(context.Background(), "Ana", "ana@example.com", "secret")
	assert.ErrorIs(t, err, common.ErrUserExists)
}

func TestRegister_MalformedPayload(t *testing.T) {
	ft := &fakeTransport{reply: respond(protocol.StatusOK, "not-a-number")}
	s := New(ft)

	_, err := s.Register(context.Background(), "Ana", "ana@example.com", "secret")
	assert.ErrorIs(t, err, common.ErrMalformedResponse)
}

func TestLogout_ClearsUser(t *testing.T) {
	ft := &fakeTransport{reply: respond(protocol.StatusOK, "7,Ana,ana@example.com")}
	s := New(ft)
	_, err := s.Login(context.Background(), "ana@example.com", "secret")
	require.NoError(t, err)

	ft.reply = respond(protocol.StatusOK, "")
	require.NoError(t, s.Logout(context.Background()))
	assert.Nil(t, s.User())
}

func TestGetProfile(t *testing.T) {
	ft := &fakeTransport{reply: respond(protocol.StatusOK, protocol.EscapeField("Ana, a vírgula")+",ana@example.com")}
	s := New(ft)

	p, err := s.GetProfile(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Ana, a vírgula", p.Name, "escaped separators survive the round trip")
	assert.Equal(t, "ana@example.com", p.Email)
}

func TestChangePassword_HashesBothPasswords(t *testing.T) {
	ft := &fakeTransport{reply: respond(protocol.StatusOK, "")}
	s := New(ft)

	require.NoError(t, s.ChangePassword(context.Background(), 7, "old", "new"))
	params := strings.Split(ft.sent[0], protocol.CommandSeparator)
	require.Len(t, params, 4)
	assert.Equal(t, hashx.Checksum("old"), params[2])
	assert.Equal(t, hashx.Checksum("new"), params[3])
}

func TestGetDashboard(t *testing.T) {
	ft := &fakeTransport{reply: respond(protocol.StatusOK, "1300.5,500,200")}
	s := New(ft)

	d, err := s.GetDashboard(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 1300.5, d.Balance)
	assert.Equal(t, 500.0, d.Income)
	assert.Equal(t, 200.0, d.Expense)
}

func TestGetDashboard_ErrorStatus(t *testing.T) {
	ft := &fakeTransport{reply: respond(protocol.StatusError, "boom")}
	s := New(ft)

	_, err := s.GetDashboard(context.Background(), 7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}
