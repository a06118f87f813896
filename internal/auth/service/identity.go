package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/memberhub/memberhub/internal/auth/domain"
	"github.com/memberhub/memberhub/internal/auth/store"
)

// loadIdentity projects acct plus its grants active at now. Roles and
// profiles are independent reads and run concurrently.
func loadIdentity(ctx context.Context, st store.Store, acct domain.Account, now time.Time) (domain.Identity, error) {
	var (
		wg                sync.WaitGroup
		roles             []domain.RoleGrant
		profiles          []string
		rolesErr, profErr error
	)
	wg.Go(func() {
		roles, rolesErr = st.Roles().ListActiveRoles(ctx, acct.ID, now)
	})
	wg.Go(func() {
		profiles, profErr = st.Profiles().ListActiveProfiles(ctx, acct.ID, now)
	})
	wg.Wait()

	if err := errors.Join(rolesErr, profErr); err != nil {
		return domain.Identity{}, fmt.Errorf("load identity %s: %w", acct.ID, err)
	}
	if roles == nil {
		roles = []domain.RoleGrant{}
	}
	if profiles == nil {
		profiles = []string{}
	}

	return domain.Identity{
		ID:            acct.ID,
		ConstituentID: acct.ConstituentID,
		Email:         acct.Email,
		FullName:      acct.FullName,
		Roles:         roles,
		Profiles:      profiles,
	}, nil
}

func nowFunc(now func() time.Time) time.Time {
	if now == nil {
		return time.Now()
	}
	return now()
}
