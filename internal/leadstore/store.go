// Package leadstore keeps the visitor's funnel state in a single durable
// record so it survives restarts of the funnel client. Serialization is owned
// entirely by the store; callers only see records and patches.
package leadstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"sync"
)

// Record mirrors the lead shape the backend persists.
type Record struct {
	ID                string `json:"id,omitempty"`
	Name              string `json:"name"`
	Email             string `json:"email"`
	EbookDownloaded   bool   `json:"ebook_downloaded"`
	PortalAccessed    bool   `json:"portal_accessed"`
	ReportsDownloaded bool   `json:"reports_downloaded"`
	AnalysisCompleted bool   `json:"analysis_completed"`
	CallBooked        bool   `json:"call_booked"`
	ViolationsFound   int    `json:"violations_found"`
	Source            string `json:"source,omitempty"`
	UTMCampaign       string `json:"utm_campaign,omitempty"`
	UTMSource         string `json:"utm_source,omitempty"`
	UTMMedium         string `json:"utm_medium,omitempty"`
}

// Patch is a partial update; nil fields leave the record untouched.
type Patch struct {
	ID                *string
	Name              *string
	Email             *string
	EbookDownloaded   *bool
	PortalAccessed    *bool
	ReportsDownloaded *bool
	AnalysisCompleted *bool
	CallBooked        *bool
	ViolationsFound   *int
	Source            *string
	UTMCampaign       *string
	UTMSource         *string
	UTMMedium         *string
}

// Store is a file-backed container for one Record.
type Store struct {
	path string

	mu     sync.Mutex
	lead   *Record
	loaded bool
}

// New binds a store to a file path. The file is not read until Load.
func New(path string) *Store {
	return &Store{path: path}
}

// Load rehydrates the record from disk. A missing file means no lead; a
// malformed file is logged and treated the same way rather than failing.
func (s *Store) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	defer func() { s.loaded = true }()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("leadstore: read %s: %v", s.path, err)
		}
		s.lead = nil
		return
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		log.Printf("leadstore: malformed record in %s, starting empty: %v", s.path, err)
		s.lead = nil
		return
	}
	s.lead = &rec
}

// Get returns a copy of the current record (nil when absent) and whether
// Load has completed, so callers can tell "not yet loaded" from "no lead".
func (s *Store) Get() (*Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lead == nil {
		return nil, s.loaded
	}
	cp := *s.lead
	return &cp, s.loaded
}

// Replace overwrites the record wholesale. nil clears the cached copy in
// memory and on disk.
func (s *Store) Replace(rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec == nil {
		s.lead = nil
		return s.removeLocked()
	}
	cp := *rec
	s.lead = &cp
	return s.persistLocked()
}

// Merge applies a partial update, seeding a zero-valued record first when
// none is cached. The full record is persisted after every merge.
func (s *Store) Merge(p Patch) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lead == nil {
		s.lead = &Record{}
	}
	applyPatch(s.lead, p)
	if err := s.persistLocked(); err != nil {
		return nil, err
	}
	cp := *s.lead
	return &cp, nil
}

// Clear removes the durable record and resets to absent.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lead = nil
	return s.removeLocked()
}

func (s *Store) persistLocked() error {
	data, err := json.MarshalIndent(s.lead, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding lead record: %w", err)
	}

	// tulis ke temp dulu, rename biar atomic
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".lead-*.json")
	if err != nil {
		return fmt.Errorf("creating temp record: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing lead record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing lead record: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing lead record: %w", err)
	}
	return nil
}

func (s *Store) removeLocked() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing lead record: %w", err)
	}
	return nil
}

func applyPatch(rec *Record, p Patch) {
	if p.ID != nil {
		rec.ID = *p.ID
	}
	if p.Name != nil {
		rec.Name = *p.Name
	}
	if p.Email != nil {
		rec.Email = *p.Email
	}
	if p.EbookDownloaded != nil {
		rec.EbookDownloaded = *p.EbookDownloaded
	}
	if p.PortalAccessed != nil {
		rec.PortalAccessed = *p.PortalAccessed
	}
	if p.ReportsDownloaded != nil {
		rec.ReportsDownloaded = *p.ReportsDownloaded
	}
	if p.AnalysisCompleted != nil {
		rec.AnalysisCompleted = *p.AnalysisCompleted
	}
	if p.CallBooked != nil {
		rec.CallBooked = *p.CallBooked
	}
	if p.ViolationsFound != nil {
		rec.ViolationsFound = *p.ViolationsFound
	}
	if p.Source != nil {
		rec.Source = *p.Source
	}
	if p.UTMCampaign != nil {
		rec.UTMCampaign = *p.UTMCampaign
	}
	if p.UTMSource != nil {
		rec.UTMSource = *p.UTMSource
	}
	if p.UTMMedium != nil {
		rec.UTMMedium = *p.UTMMedium
	}
}

// ParseAttribution reads campaign tags from a query string. Absent keys stay
// nil so a later Merge never clobbers known values with empty strings; the
// generic source falls back to utm_source when not given explicitly.
func ParseAttribution(rawQuery string) Patch {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		log.Printf("leadstore: unparseable query %q: %v", rawQuery, err)
		return Patch{}
	}

	var p Patch
	if v := values.Get("utm_campaign"); v != "" {
		p.UTMCampaign = &v
	}
	if v := values.Get("utm_source"); v != "" {
		p.UTMSource = &v
	}
	if v := values.Get("utm_medium"); v != "" {
		p.UTMMedium = &v
	}
	if v := values.Get("source"); v != "" {
		p.Source = &v
	} else if p.UTMSource != nil {
		p.Source = p.UTMSource
	}
	return p
}
