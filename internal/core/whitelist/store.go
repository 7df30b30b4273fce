package whitelist

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/net/publicsuffix"
)

// DefaultDomain is the document key holding the fallback record.
const DefaultDomain = "*"

var (
	// ErrInvalidDocument is returned when a whitelist document fails validation.
	ErrInvalidDocument = errors.New("invalid whitelist document")

	// ErrNoSource is returned when a reload is requested without a source.
	ErrNoSource = errors.New("no whitelist source configured")
)

type document struct {
	Domains map[string]map[string]map[string][]string `json:"domains"`
}

type snapshot struct {
	records  map[string]*Record
	fallback *Record
	loadedAt time.Time
}

// Store serves lookups from an immutable snapshot that Load swaps in
// atomically, so readers never block on a reload.
type Store struct {
	current atomic.Pointer[snapshot]
}

// NewStore creates an empty store. Until a document is loaded every lookup
// returns an empty default record.
func NewStore() *Store {
	s := &Store{}
	s.current.Store(&snapshot{
		records:  map[string]*Record{},
		fallback: &Record{Domain: DefaultDomain, IsDefault: true},
	})
	return s
}

// Load validates and installs a whitelist document. On error the previous
// snapshot stays in place.
func (s *Store) Load(data []byte) error {
	if err := validateDocument(data); err != nil {
		return err
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	snap := &snapshot{
		records:  make(map[string]*Record, len(doc.Domains)),
		fallback: &Record{Domain: DefaultDomain, IsDefault: true},
		loadedAt: time.Now(),
	}
	for domain, entry := range doc.Domains {
		if domain == DefaultDomain {
			snap.fallback = recordFromDoc(DefaultDomain, entry, true)
			continue
		}
		domain = normalizeHost(domain)
		snap.records[domain] = recordFromDoc(domain, entry, false)
	}

	s.current.Store(snap)
	slog.Info("[WHITELIST] loaded", "domains", len(snap.records))
	return nil
}

// Len reports the number of domain-specific records.
func (s *Store) Len() int {
	return len(s.current.Load().records)
}

// LoadedAt reports when the current snapshot was installed, zero if never.
func (s *Store) LoadedAt() time.Time {
	return s.current.Load().loadedAt
}

// Find returns the record for uri. The host and then each parent domain
// down to the registrable domain are tried in turn; when none matches the
// default record is returned. The result is never nil.
func (s *Store) Find(uri string) *Record {
	snap := s.current.Load()

	host := hostOf(uri)
	if host == "" {
		return snap.fallback
	}

	for _, candidate := range candidates(host) {
		if r, ok := snap.records[candidate]; ok {
			return r
		}
	}
	return snap.fallback
}

func hostOf(uri string) string {
	u, err := url.Parse(strings.TrimSpace(uri))
	if err != nil {
		return ""
	}
	if u.Host == "" && u.Scheme == "" {
		// Bare host such as "example.com/path".
		if u, err = url.Parse("http://" + uri); err != nil {
			return ""
		}
	}
	return normalizeHost(u.Hostname())
}

func normalizeHost(host string) string {
	host = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
	return strings.TrimPrefix(host, "www.")
}

// candidates lists host and its parents, most specific first, stopping at
// the registrable domain (eTLD+1).
func candidates(host string) []string {
	if net.ParseIP(host) != nil {
		return []string{host}
	}

	root, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return []string{host}
	}

	out := []string{host}
	for h := host; h != root; {
		_, parent, ok := strings.Cut(h, ".")
		if !ok {
			break
		}
		h = parent
		out = append(out, h)
	}
	return out
}
