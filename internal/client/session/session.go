// Package session implements the account-facing commands: registration,
// login, profile management and the dashboard summary. The server keeps
// no bearer tokens; authentication is scoped to the connection, so the
// session mirrors the authenticated user locally for the UI.
package session

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/finanzaapp/finsync/internal/client/transport"
	"github.com/finanzaapp/finsync/internal/common"
	"github.com/finanzaapp/finsync/internal/hashx"
	"github.com/finanzaapp/finsync/internal/protocol"
)

// Profile is the account information the server reports for the
// authenticated user.
type Profile struct {
	UserID int64
	Name   string
	Email  string
}

// Dashboard is the aggregate financial summary for one user.
type Dashboard struct {
	Balance float64
	Income  float64
	Expense float64
}

// Session drives the account verbs over one transport connection.
type Session struct {
	transport transport.Client

	user *Profile
}

func New(tc transport.Client) *Session {
	return &Session{transport: tc}
}

// User returns the authenticated profile, or nil before Login.
func (s *Session) User() *Profile {
	return s.user
}

// hashPassword digests the password before it touches the wire. The
// server never sees the clear text; it bcrypts this digest at rest.
func hashPassword(password string) string {
	return hashx.Checksum(password)
}

// Login authenticates and remembers the profile for the connection.
func (s *Session) Login(ctx context.Context, email, password string) (*Profile, error) {
	cmd := protocol.BuildCommand(protocol.CmdLogin,
		protocol.EscapeField(email), hashPassword(password))
	resp, err := s.transport.Send(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if err := statusErr(resp); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	p, err := parseProfile(resp.Payload)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	s.user = p
	return p, nil
}

// Register creates an account and leaves the session authenticated as it.
func (s *Session) Register(ctx context.Context, name, email, password string) (*Profile, error) {
	cmd := protocol.BuildCommand(protocol.CmdRegister,
		protocol.EscapeField(name), protocol.EscapeField(email), hashPassword(password))
	resp, err := s.transport.Send(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if err := statusErr(resp); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	userID, err := strconv.ParseInt(strings.TrimSpace(resp.Payload), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("register: %w: %q", common.ErrMalformedResponse, resp.Payload)
	}
	p := &Profile{UserID: userID, Name: name, Email: email}
	s.user = p
	return p, nil
}

// Logout ends the server-side session and forgets the local profile.
func (s *Session) Logout(ctx context.Context) error {
	resp, err := s.transport.Send(ctx, protocol.BuildCommand(protocol.CmdLogout))
	if err != nil {
		return err
	}
	s.user = nil
	if err := statusErr(resp); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// GetProfile fetches the current profile for userID.
func (s *Session) GetProfile(ctx context.Context, userID int64) (*Profile, error) {
	cmd := protocol.BuildCommand(protocol.CmdGetProfile, strconv.FormatInt(userID, 10))
	resp, err := s.transport.Send(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if err := statusErr(resp); err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}

	fields := strings.Split(resp.Payload, protocol.FieldSeparator)
	if len(fields) < 2 {
		return nil, fmt.Errorf("get profile: %w: %q", common.ErrMalformedResponse, resp.Payload)
	}
	return &Profile{
		UserID: userID,
		Name:   protocol.UnescapeField(fields[0]),
		Email:  protocol.UnescapeField(fields[1]),
	}, nil
}

// UpdateProfile changes name and email for userID.
func (s *Session) UpdateProfile(ctx context.Context, userID int64, name, email string) error {
	cmd := protocol.BuildCommand(protocol.CmdUpdateProfile,
		strconv.FormatInt(userID, 10),
		protocol.EscapeField(name), protocol.EscapeField(email))
	resp, err := s.transport.Send(ctx, cmd)
	if err != nil {
		return err
	}
	if err := statusErr(resp); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if s.user != nil && s.user.UserID == userID {
		s.user.Name = name
		s.user.Email = email
	}
	return nil
}

// ChangePassword verifies the old password and installs the new one.
func (s *Session) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	cmd := protocol.BuildCommand(protocol.CmdChangePassword,
		strconv.FormatInt(userID, 10),
		hashPassword(oldPassword), hashPassword(newPassword))
	resp, err := s.transport.Send(ctx, cmd)
	if err != nil {
		return err
	}
	if err := statusErr(resp); err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	return nil
}

// ResetPassword requests a password reset for the given email. The server
// answers OK whether or not the account exists, so the command cannot be
// used to probe registrations.
func (s *Session) ResetPassword(ctx context.Context, email string) error {
	cmd := protocol.BuildCommand(protocol.CmdResetPassword, protocol.EscapeField(email))
	resp, err := s.transport.Send(ctx, cmd)
	if err != nil {
		return err
	}
	if err := statusErr(resp); err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	return nil
}

// GetDashboard fetches the aggregate balance/income/expense summary.
func (s *Session) GetDashboard(ctx context.Context, userID int64) (*Dashboard, error) {
	cmd := protocol.BuildCommand(protocol.CmdGetDashboard, strconv.FormatInt(userID, 10))
	resp, err := s.transport.Send(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if err := statusErr(resp); err != nil {
		return nil, fmt.Errorf("get dashboard: %w", err)
	}

	fields := strings.Split(resp.Payload, protocol.FieldSeparator)
	if len(fields) < 3 {
		return nil, fmt.Errorf("get dashboard: %w: %q", common.ErrMalformedResponse, resp.Payload)
	}
	var d Dashboard
	var err2 error
	if d.Balance, err2 = strconv.ParseFloat(fields[0], 64); err2 != nil {
		return nil, fmt.Errorf("get dashboard: %w: %q", common.ErrMalformedResponse, fields[0])
	}
	if d.Income, err2 = strconv.ParseFloat(fields[1], 64); err2 != nil {
		return nil, fmt.Errorf("get dashboard: %w: %q", common.ErrMalformedResponse, fields[1])
	}
	if d.Expense, err2 = strconv.ParseFloat(fields[2], 64); err2 != nil {
		return nil, fmt.Errorf("get dashboard: %w: %q", common.ErrMalformedResponse, fields[2])
	}
	return &d, nil
}

// parseProfile decodes "userID,name,email".
func parseProfile(payload string) (*Profile, error) {
	fields := strings.Split(payload, protocol.FieldSeparator)
	if len(fields) < 3 {
		return nil, fmt.Errorf("%w: %q", common.ErrMalformedResponse, payload)
	}
	userID, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad user id %q", common.ErrMalformedResponse, fields[0])
	}
	return &Profile{
		UserID: userID,
		Name:   protocol.UnescapeField(fields[1]),
		Email:  protocol.UnescapeField(fields[2]),
	}, nil
}

// statusErr maps failure statuses onto the shared sentinels.
func statusErr(resp protocol.Response) error {
	switch resp.Status {
	case protocol.StatusOK:
		return nil
	case protocol.StatusInvalidCredentials:
		return common.ErrInvalidCredentials
	case protocol.StatusUserExists:
		return common.ErrUserExists
	case protocol.StatusNotFound:
		return common.ErrNotFound
	case protocol.StatusInvalidData:
		return common.ErrInvalidData
	default:
		return fmt.Errorf("server error: %s|%s", resp.Status, resp.Payload)
	}
}
