package guard_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/memberhub/memberhub/internal/auth/domain"
	"github.com/memberhub/memberhub/internal/auth/guard"
)

type spy struct {
	result bool
	err    error
	calls  int
}

func (s *spy) Evaluate(context.Context, *domain.Identity) (bool, error) {
	s.calls++
	return s.result, s.err
}

func eval(t *testing.T, g guard.Guard, id *domain.Identity) bool {
	t.Helper()
	ok, err := g.Evaluate(context.Background(), id)
	require.NoError(t, err)
	return ok
}

func TestAnyOfShortCircuits(t *testing.T) {
	no, yes, after := &spy{}, &spy{result: true}, &spy{result: true}

	require.True(t, eval(t, guard.AnyOf(no, yes, after), nil))
	require.Equal(t, 1, no.calls)
	require.Equal(t, 1, yes.calls)
	require.Zero(t, after.calls, "guard after the first true must not run")

	require.False(t, eval(t, guard.AnyOf(), nil))
}

func TestAllOfShortCircuits(t *testing.T) {
	yes, no, after := &spy{result: true}, &spy{}, &spy{result: true}

	require.False(t, eval(t, guard.AllOf(yes, no, after), nil))
	require.Equal(t, 1, yes.calls)
	require.Equal(t, 1, no.calls)
	require.Zero(t, after.calls, "guard after the first false must not run")

	require.True(t, eval(t, guard.AllOf(), nil))
}

func TestCombinatorsPropagateErrors(t *testing.T) {
	boom := errors.New("storage down")
	failing, after := &spy{err: boom}, &spy{result: true}

	_, err := guard.AnyOf(failing, after).Evaluate(context.Background(), nil)
	require.ErrorIs(t, err, boom)
	require.Zero(t, after.calls)

	_, err = guard.AllOf(&spy{result: true}, failing).Evaluate(context.Background(), nil)
	require.ErrorIs(t, err, boom)
}

func TestChapterLeadScenario(t *testing.T) {
	id := &domain.Identity{ID: "u1", Roles: []domain.RoleGrant{domain.ChapterLeadRole("chapterA")}}

	require.True(t, eval(t, guard.ChapterLead("chapterA"), id))
	require.False(t, eval(t, guard.ChapterLead("chapterB"), id))
	require.False(t, eval(t, guard.CommitteeChair("chapterA"), id), "scope kinds do not cross")
	require.False(t, eval(t, guard.President, id))
}

func TestRoleMatchers(t *testing.T) {
	president := domain.GlobalRole(domain.RolePresident)
	chair := domain.CommitteeChairRole("finance")

	require.True(t, guard.Exact("president").Match(president))
	require.False(t, guard.Exact("lead").Match(domain.ChapterLeadRole("x")), "exact does not match scoped grants")
	require.True(t, guard.ScopedCommittee("finance").Match(chair))
	require.False(t, guard.ScopedCommittee("").Match(domain.RoleGrant{Name: domain.RoleChair}))

	require.Equal(t, "MEMBER.lead.chapterA", guard.ScopedChapter("chapterA").String())
	require.Equal(t, "MEMBER.chair.finance", guard.ScopedCommittee("finance").String())
	require.Equal(t, "president", guard.Exact("president").String())
}

func TestNilIdentity(t *testing.T) {
	require.False(t, eval(t, guard.HasProfile(domain.ProfileMember), nil))
	require.False(t, eval(t, guard.HasRole(guard.Exact("president")), nil))
	require.False(t, eval(t, guard.Authenticated, nil))
	require.True(t, eval(t, guard.All, nil))
}

func TestHasProfile(t *testing.T) {
	id := &domain.Identity{ID: "u1", Profiles: []string{domain.ProfileVolunteer}}
	require.True(t, eval(t, guard.HasProfile(domain.ProfileMember, domain.ProfileVolunteer), id))
	require.False(t, eval(t, guard.HasProfile(domain.ProfileAdmin), id))
	require.True(t, eval(t, guard.Authenticated, id))
}

type chapters map[string]bool

func (c chapters) IsChapterMember(_ context.Context, _ *domain.Identity, chapterID string) (bool, error) {
	return c[chapterID], nil
}

func TestInChapterComposed(t *testing.T) {
	member := &domain.Identity{ID: "u1", Profiles: []string{domain.ProfileMember}}
	checker := chapters{"chapterA": true}

	rosterAccess := func(chapterID string) guard.Guard {
		return guard.AnyOf(
			guard.President,
			guard.ChapterLead(chapterID),
			guard.AllOf(guard.HasProfile(domain.ProfileMember), guard.InChapter(checker, chapterID)),
		)
	}

	require.True(t, eval(t, rosterAccess("chapterA"), member))
	require.False(t, eval(t, rosterAccess("chapterB"), member))
	require.False(t, eval(t, rosterAccess("chapterA"), nil))
}
