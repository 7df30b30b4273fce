package plugins

import (
	"fmt"
	"sync"

	"Embedkit/internal/core/links"
)

// Registry files plugins into per-capability lists at registration so
// dispatch never has to type-switch.
type Registry struct {
	names    map[string]bool
	matchers map[string]Matcher
	data     []DataProvider
	links    []LinkProvider
	metas    []MetaProvider
	mu       sync.RWMutex
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		names:    make(map[string]bool),
		matchers: make(map[string]Matcher),
	}
}

// NewDefaultRegistry creates a registry holding the built-in plugins.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	if err := r.Register(Builtin()...); err != nil {
		panic(fmt.Sprintf("plugins: invalid built-in set: %v", err))
	}
	return r
}

// Register adds plugins. Domain plugins are placed ahead of generic ones in
// each list so their links and meta take precedence.
func (r *Registry) Register(plugins ...Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range plugins {
		name := p.Name()
		if name == "" {
			return ErrUnnamedPlugin
		}
		if r.names[name] {
			return fmt.Errorf("%w: %s", ErrDuplicatePlugin, name)
		}

		m, isDomain := p.(Matcher)
		d, hasData := p.(DataProvider)
		l, hasLinks := p.(LinkProvider)
		mp, hasMeta := p.(MetaProvider)
		if !hasData && !hasLinks && !hasMeta {
			return fmt.Errorf("%w: %s", ErrNoCapability, name)
		}

		r.names[name] = true
		if isDomain {
			r.matchers[name] = m
		}
		if hasData {
			r.data = insert(r.data, d, isDomain)
		}
		if hasLinks {
			r.links = insert(r.links, l, isDomain)
		}
		if hasMeta {
			r.metas = insert(r.metas, mp, isDomain)
		}
	}
	return nil
}

// insert appends p, or places it after the last domain plugin when p is
// itself a domain plugin.
func insert[T Plugin](list []T, p T, isDomain bool) []T {
	if !isDomain {
		return append(list, p)
	}
	i := 0
	for i < len(list) {
		if _, ok := any(list[i]).(Matcher); !ok {
			break
		}
		i++
	}
	list = append(list, p)
	copy(list[i+1:], list[i:])
	list[i] = p
	return list
}

// Len returns the number of registered plugins.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}

// Selection is the set of plugins that apply to one URI.
type Selection struct {
	matches map[string][]string
	data    []DataProvider
	links   []LinkProvider
	metas   []MetaProvider
}

// Select picks the generic plugins plus the domain plugins matching uri.
func (r *Registry) Select(uri string) *Selection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := &Selection{matches: make(map[string][]string)}
	for name, m := range r.matchers {
		if sub := m.Match(uri); sub != nil {
			s.matches[name] = sub
		}
	}
	s.data = applicable(r.data, s.matches)
	s.links = applicable(r.links, s.matches)
	s.metas = applicable(r.metas, s.matches)
	return s
}

func applicable[T Plugin](list []T, matches map[string][]string) []T {
	out := make([]T, 0, len(list))
	for _, p := range list {
		if _, isDomain := any(p).(Matcher); isDomain {
			if _, ok := matches[p.Name()]; !ok {
				continue
			}
		}
		out = append(out, p)
	}
	return out
}

// NewRequest starts a request carrying the selection's submatches.
func (s *Selection) NewRequest(uri string) *Request {
	return &Request{
		URI:     uri,
		Matches: s.matches,
		Data:    make(map[string]any),
	}
}

// HasDomainPlugin reports whether any domain plugin matched.
func (s *Selection) HasDomainPlugin() bool {
	return len(s.matches) > 0
}

// DataProviders returns the data providers to run.
func (s *Selection) DataProviders() []DataProvider {
	return s.data
}

// Links collects raw links from every selected link provider, in
// registration order.
func (s *Selection) Links(req *Request) []links.Link {
	var out []links.Link
	for _, p := range s.links {
		out = append(out, p.Links(req)...)
	}
	return out
}

// Meta merges meta fields from the selected providers. The first provider
// to set a key wins; empty values are skipped.
func (s *Selection) Meta(req *Request) map[string]any {
	out := make(map[string]any)
	for _, p := range s.metas {
		for k, v := range p.Meta(req) {
			if _, set := out[k]; set || isEmpty(v) {
				continue
			}
			out[k] = v
		}
	}
	return out
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case int:
		return t == 0
	case float64:
		return t == 0
	}
	return false
}
