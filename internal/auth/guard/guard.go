// Package guard composes access predicates over the authenticated identity.
// Guards are built once at route registration and evaluated per request; a
// nil identity means the request is anonymous.
package guard

import (
	"context"

	"github.com/memberhub/memberhub/internal/auth/domain"
)

type Guard interface {
	Evaluate(ctx context.Context, id *domain.Identity) (bool, error)
}

// Func adapts a function, typically one that consults storage, to Guard.
type Func func(ctx context.Context, id *domain.Identity) (bool, error)

func (f Func) Evaluate(ctx context.Context, id *domain.Identity) (bool, error) {
	return f(ctx, id)
}

type constant bool

func (c constant) Evaluate(context.Context, *domain.Identity) (bool, error) { return bool(c), nil }

// All admits every request, anonymous ones included.
var All Guard = constant(true)

// Authenticated admits any request carrying an identity.
var Authenticated Guard = Func(func(_ context.Context, id *domain.Identity) (bool, error) {
	return id != nil, nil
})

// HasProfile admits identities holding at least one of names.
func HasProfile(names ...string) Guard {
	return Func(func(_ context.Context, id *domain.Identity) (bool, error) {
		return id.HasProfile(names...), nil
	})
}

// HasRole admits identities holding a role that satisfies any matcher.
func HasRole(matchers ...RoleMatcher) Guard {
	return Func(func(_ context.Context, id *domain.Identity) (bool, error) {
		if id == nil {
			return false, nil
		}
		for _, role := range id.Roles {
			for _, m := range matchers {
				if m.Match(role) {
					return true, nil
				}
			}
		}
		return false, nil
	})
}

type anyOf []Guard

// AnyOf is a short-circuiting OR. Guards run in order and the first true or
// first error ends evaluation. An empty AnyOf is false.
func AnyOf(guards ...Guard) Guard { return anyOf(guards) }

func (a anyOf) Evaluate(ctx context.Context, id *domain.Identity) (bool, error) {
	for _, g := range a {
		ok, err := g.Evaluate(ctx, id)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

type allOf []Guard

// AllOf is a short-circuiting AND. Guards run in order and the first false or
// first error ends evaluation. An empty AllOf is true.
func AllOf(guards ...Guard) Guard { return allOf(guards) }

func (a allOf) Evaluate(ctx context.Context, id *domain.Identity) (bool, error) {
	for _, g := range a {
		ok, err := g.Evaluate(ctx, id)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// ChapterMembershipChecker answers whether an identity currently belongs to
// a chapter. The session service implements it against storage.
type ChapterMembershipChecker interface {
	IsChapterMember(ctx context.Context, id *domain.Identity, chapterID string) (bool, error)
}

// InChapter admits active members of chapterID.
func InChapter(checker ChapterMembershipChecker, chapterID string) Guard {
	return Func(func(ctx context.Context, id *domain.Identity) (bool, error) {
		if id == nil {
			return false, nil
		}
		return checker.IsChapterMember(ctx, id, chapterID)
	})
}
