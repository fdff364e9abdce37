package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/bpmnchat/pkg/domain"
	"github.com/aretw0/bpmnchat/pkg/ports"
)

// Mask replaces the stored value of sensitive context keys.
const Mask = "***"

type piiMiddleware struct {
	next     ports.SessionStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks the values of context keys
// matching any of the patterns before they reach the store, e.g. a captured
// identity document. Masked values are not restored on Load.
func NewPIIMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid pii pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return func(next ports.SessionStore) ports.SessionStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *piiMiddleware) Save(ctx context.Context, session *domain.Session) error {
	// The live session keeps its values; only the stored copy is masked.
	cloned := session.Snapshot()
	cloned.Context = maskContext(cloned.Context, m.patterns)
	return m.next.Save(ctx, cloned)
}

func (m *piiMiddleware) Load(ctx context.Context, sessionID string) (*domain.Session, error) {
	return m.next.Load(ctx, sessionID)
}

func (m *piiMiddleware) Delete(ctx context.Context, sessionID string) error {
	return m.next.Delete(ctx, sessionID)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func maskContext(c domain.Context, patterns []*regexp.Regexp) domain.Context {
	out := make(domain.Context, len(c))
	for k, v := range c {
		out[k] = maskValue(k, v, patterns)
	}
	return out
}

func maskValue(key string, v any, patterns []*regexp.Regexp) any {
	for _, p := range patterns {
		if p.MatchString(key) {
			return Mask
		}
	}
	if sub, ok := v.(map[string]any); ok {
		out := make(map[string]any, len(sub))
		for k, sv := range sub {
			out[k] = maskValue(k, sv, patterns)
		}
		return out
	}
	return v
}
