// Package admin implements the operator commands behind memberhub-admin:
// provisioning accounts and recording role and membership grants.
package admin

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/memberhub/memberhub/internal/auth/domain"
	"github.com/memberhub/memberhub/internal/auth/service"
	"github.com/memberhub/memberhub/internal/auth/store"
	"github.com/memberhub/memberhub/pkg/cryptox"
	"github.com/memberhub/memberhub/pkg/idx"
)

// ErrUsage is returned for unknown commands and bad flags.
var ErrUsage = errors.New("usage")

const usage = `usage: memberhub-admin <command> [flags]

commands:
  migrate          apply pending database migrations
  create-account   create an account, prompting for its password
  grant-role       grant a role such as "president" or "MEMBER.lead.<chapter>"
  add-membership   record a membership profile, optionally in a chapter
`

// Admin runs one command against a store. ReadPassword is called with a
// prompt and must not echo.
type Admin struct {
	Store        store.Store
	Hasher       cryptox.Hasher
	Out          io.Writer
	ReadPassword func(prompt string) ([]byte, error)
	Now          func() time.Time
}

func (a *Admin) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// Run dispatches args[0] to its command.
func (a *Admin) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(a.Out, usage)
		return ErrUsage
	}

	switch args[0] {
	case "migrate":
		// Opening the store already applied migrations.
		fmt.Fprintln(a.Out, "migrations applied")
		return nil
	case "create-account":
		return a.createAccount(ctx, args[1:])
	case "grant-role":
		return a.grantRole(ctx, args[1:])
	case "add-membership":
		return a.addMembership(ctx, args[1:])
	default:
		fmt.Fprint(a.Out, usage)
		return fmt.Errorf("%w: unknown command %q", ErrUsage, args[0])
	}
}

func (a *Admin) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.Out)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	return nil
}

type accountInput struct {
	Username      string
	Email         string
	FullName      string
	ConstituentID string
}

func (in accountInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Username, validation.Required, validation.Length(3, 64)),
		validation.Field(&in.Email, validation.Required, validation.Length(3, 254)),
		validation.Field(&in.FullName, validation.Required, validation.Length(1, 200)),
	)
}

func (a *Admin) createAccount(ctx context.Context, args []string) error {
	var (
		in         accountInput
		noPassword bool
	)
	fs := a.flagSet("create-account")
	fs.StringVar(&in.Username, "username", "", "login name, matched exactly")
	fs.StringVar(&in.Email, "email", "", "email address, matched exactly")
	fs.StringVar(&in.FullName, "name", "", "display name")
	fs.StringVar(&in.ConstituentID, "constituent", "", "CRM constituent id (generated if empty)")
	fs.BoolVar(&noPassword, "no-password", false, "create without a password; the user sets one via reset")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := in.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}

	now := a.now()
	acct := domain.Account{
		ID:            idx.NewAt(now).String(),
		ConstituentID: in.ConstituentID,
		Username:      in.Username,
		Email:         in.Email,
		FullName:      in.FullName,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if acct.ConstituentID == "" {
		acct.ConstituentID = idx.NewAt(now).String()
	}

	if !noPassword {
		hash, err := a.promptPassword()
		if err != nil {
			return err
		}
		acct.PasswordHash = &hash
	}

	if err := a.Store.Accounts().CreateAccount(ctx, acct); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return fmt.Errorf("username or email already registered: %w", err)
		}
		return fmt.Errorf("create account: %w", err)
	}
	fmt.Fprintf(a.Out, "created account %s (%s)\n", acct.ID, acct.Username)
	return nil
}

func (a *Admin) promptPassword() (string, error) {
	first, err := a.ReadPassword("Password: ")
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	second, err := a.ReadPassword("Repeat password: ")
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	defer clear(first)
	defer clear(second)

	if !bytes.Equal(first, second) {
		return "", errors.New("passwords do not match")
	}
	if err := service.ValidatePassword(string(first)); err != nil {
		return "", err
	}
	return a.Hasher.HashPassword(string(first))
}

// window holds the optional -from/-until flags shared by grant commands.
type window struct {
	from, until string
}

func (w *window) register(fs *flag.FlagSet) {
	fs.StringVar(&w.from, "from", "", "start of the grant, RFC 3339 (default: now)")
	fs.StringVar(&w.until, "until", "", "end of the grant, RFC 3339, inclusive (default: open ended)")
}

func (w window) resolve(now time.Time) (time.Time, *time.Time, error) {
	start := now
	if w.from != "" {
		t, err := time.Parse(time.RFC3339, w.from)
		if err != nil {
			return time.Time{}, nil, fmt.Errorf("%w: -from: %v", ErrUsage, err)
		}
		start = t
	}
	if w.until == "" {
		return start, nil, nil
	}
	end, err := time.Parse(time.RFC3339, w.until)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("%w: -until: %v", ErrUsage, err)
	}
	if end.Before(start) {
		return time.Time{}, nil, fmt.Errorf("%w: -until is before -from", ErrUsage)
	}
	return start, &end, nil
}

func (a *Admin) lookup(ctx context.Context, who string) (domain.Account, error) {
	acct, err := a.Store.Accounts().GetAccountByIdentifier(ctx, who)
	if errors.Is(err, store.ErrNotFound) {
		acct, err = a.Store.Accounts().GetAccountByID(ctx, who)
	}
	if errors.Is(err, store.ErrNotFound) {
		return domain.Account{}, fmt.Errorf("no account matches %q", who)
	}
	return acct, err
}

func (a *Admin) grantRole(ctx context.Context, args []string) error {
	var (
		who, role string
		w         window
	)
	fs := a.flagSet("grant-role")
	fs.StringVar(&who, "account", "", "account id, username or email")
	fs.StringVar(&role, "role", "", `role, e.g. "president" or "MEMBER.chair.<committee>"`)
	w.register(fs)
	if err := parse(fs, args); err != nil {
		return err
	}
	if who == "" || role == "" {
		return fmt.Errorf("%w: -account and -role are required", ErrUsage)
	}

	grant, err := domain.ParseRoleGrant(role)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	grant.StartedAt, grant.EndedAt, err = w.resolve(a.now())
	if err != nil {
		return err
	}

	acct, err := a.lookup(ctx, who)
	if err != nil {
		return err
	}
	if err := a.Store.Roles().GrantRole(ctx, acct.ID, grant); err != nil {
		return fmt.Errorf("grant role: %w", err)
	}
	fmt.Fprintf(a.Out, "granted %s to %s\n", grant, acct.Username)
	return nil
}

func (a *Admin) addMembership(ctx context.Context, args []string) error {
	var (
		who string
		m   domain.Membership
		w   window
	)
	fs := a.flagSet("add-membership")
	fs.StringVar(&who, "account", "", "account id, username or email")
	fs.StringVar(&m.Profile, "profile", domain.ProfileMember, "profile: MEMBER, VOLUNTEER or ADMIN")
	fs.StringVar(&m.ChapterID, "chapter", "", "chapter id, empty for organisation wide")
	w.register(fs)
	if err := parse(fs, args); err != nil {
		return err
	}
	if who == "" {
		return fmt.Errorf("%w: -account is required", ErrUsage)
	}
	if err := validation.Validate(m.Profile, validation.In(domain.ProfileMember, domain.ProfileVolunteer, domain.ProfileAdmin)); err != nil {
		return fmt.Errorf("%w: -profile: %v", ErrUsage, err)
	}

	var err error
	m.StartedAt, m.EndedAt, err = w.resolve(a.now())
	if err != nil {
		return err
	}

	acct, err := a.lookup(ctx, who)
	if err != nil {
		return err
	}
	if err := a.Store.Profiles().AddMembership(ctx, acct.ID, m); err != nil {
		return fmt.Errorf("add membership: %w", err)
	}
	fmt.Fprintf(a.Out, "added %s membership for %s\n", m.Profile, acct.Username)
	return nil
}
