package scraper

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Factory builds a Source for one site.
type Factory func(site SiteConfig, f *Fetcher) (Source, error)

// Registry maps kind tags to factories.
type Registry struct {
	mu sync.RWMutex
	m  map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{m: map[string]Factory{}}
}

// DefaultRegistry has every built-in kind registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister(KindBSEUList, NewBSEUList)
	r.MustRegister(KindRSS, NewRSS)
	return r
}

func (r *Registry) Register(kind string, f Factory) error {
	kind = normKind(kind)
	if kind == "" || f == nil {
		return fmt.Errorf("scraper: invalid registration %q", kind)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[kind]; ok {
		return fmt.Errorf("scraper: kind %q already registered", kind)
	}
	r.m[kind] = f
	return nil
}

func (r *Registry) MustRegister(kind string, f Factory) {
	if err := r.Register(kind, f); err != nil {
		panic(err)
	}
}

func (r *Registry) Has(kind string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.m[normKind(kind)]
	return ok
}

func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.m))
	for k := range r.m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Build creates the Source for site using its Kind.
func (r *Registry) Build(site SiteConfig, f *Fetcher) (Source, error) {
	r.mu.RLock()
	fac, ok := r.m[normKind(site.Kind)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("scraper: unknown kind %q for site %q (known: %s)", site.Kind, site.Name, strings.Join(r.Kinds(), ", "))
	}
	src, err := fac(site, f)
	if err != nil {
		return nil, fmt.Errorf("scraper: build %q: %w", site.Name, err)
	}
	return src, nil
}

func normKind(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
