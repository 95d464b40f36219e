package authz

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/authware/rbac-core/internal/models"
	"github.com/authware/rbac-core/internal/repo/policy"
)

// Resolver maps an inbound (method, path) to a registered ApiOperation.
// It tries an exact catalog match first, then parameterized templates
// where each {name} placeholder matches a single path segment.
//
// Resolution is read-only and safe for concurrent use; compiled template
// regexes are memoized per template string.
type Resolver struct {
	store policy.Store

	mu       sync.RWMutex
	compiled map[string]*regexp.Regexp
}

func NewResolver(store policy.Store) *Resolver {
	return &Resolver{
		store:    store,
		compiled: make(map[string]*regexp.Regexp),
	}
}

var placeholderRe = regexp.MustCompile(`\{[^/{}]+\}`)

// CanonicalPath trims a request path to the catalog's canonical form:
// leading slash, no trailing slash except root.
func CanonicalPath(path string) string {
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}
	return path
}

// Resolve returns the endpoint and operation registered for the request,
// or policy.ErrNotFound when either is missing.
func (r *Resolver) Resolve(ctx context.Context, method, path string) (*models.ApiEndpoint, *models.ApiOperation, error) {
	method = strings.ToUpper(method)
	path = CanonicalPath(path)

	endpoint, err := r.store.ResolveEndpoint(ctx, path)
	if err == policy.ErrNotFound {
		endpoint, err = r.matchTemplate(ctx, path)
	}
	if err != nil {
		return nil, nil, err
	}

	op, err := r.store.FindOperation(ctx, endpoint.ID, method)
	if err != nil {
		return endpoint, nil, err
	}
	return endpoint, op, nil
}

// matchTemplate scans parameterized endpoint templates for the first whose
// anchored regex matches. Candidates are ordered by longest literal prefix,
// then lexicographic path, so resolution is deterministic.
func (r *Resolver) matchTemplate(ctx context.Context, path string) (*models.ApiEndpoint, error) {
	endpoints, err := r.store.ListEndpoints(ctx)
	if err != nil {
		return nil, err
	}

	var candidates []*models.ApiEndpoint
	for _, ep := range endpoints {
		if strings.Contains(ep.Path, "{") {
			candidates = append(candidates, ep)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		pi, pj := literalPrefixLen(candidates[i].Path), literalPrefixLen(candidates[j].Path)
		if pi != pj {
			return pi > pj
		}
		return candidates[i].Path < candidates[j].Path
	})

	for _, ep := range candidates {
		re, err := r.templateRegexp(ep.Path)
		if err != nil {
			continue
		}
		if re.MatchString(path) {
			return ep, nil
		}
	}
	return nil, policy.ErrNotFound
}

func (r *Resolver) templateRegexp(template string) (*regexp.Regexp, error) {
	r.mu.RLock()
	re, ok := r.compiled[template]
	r.mu.RUnlock()
	if ok {
		return re, nil
	}

	var b strings.Builder
	b.WriteString("^")
	rest := template
	for {
		loc := placeholderRe.FindStringIndex(rest)
		if loc == nil {
			b.WriteString(regexp.QuoteMeta(rest))
			break
		}
		b.WriteString(regexp.QuoteMeta(rest[:loc[0]]))
		b.WriteString(`[^/]+`)
		rest = rest[loc[1]:]
	}
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.compiled[template] = re
	r.mu.Unlock()
	return re, nil
}

func literalPrefixLen(template string) int {
	if i := strings.Index(template, "{"); i >= 0 {
		return i
	}
	return len(template)
}
