package leadstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "lead.json"))
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }
func intPtr(n int) *int       { return &n }

func TestGetBeforeLoad(t *testing.T) {
	s := newStore(t)

	rec, loaded := s.Get()
	assert.Nil(t, rec)
	assert.False(t, loaded)

	s.Load()
	rec, loaded = s.Get()
	assert.Nil(t, rec)
	assert.True(t, loaded)
}

func TestMergeSeedsDefaults(t *testing.T) {
	s := newStore(t)
	s.Load()

	rec, err := s.Merge(Patch{Name: strPtr("Jane"), Email: strPtr("jane@example.com")})
	require.NoError(t, err)
	assert.Equal(t, "Jane", rec.Name)
	assert.Equal(t, "jane@example.com", rec.Email)
	assert.False(t, rec.EbookDownloaded)
	assert.Zero(t, rec.ViolationsFound)
}

func TestMergePreservesUnpatchedFields(t *testing.T) {
	s := newStore(t)
	s.Load()

	_, err := s.Merge(Patch{Name: strPtr("Jane"), Email: strPtr("jane@example.com")})
	require.NoError(t, err)

	rec, err := s.Merge(Patch{EbookDownloaded: boolPtr(true), ViolationsFound: intPtr(7)})
	require.NoError(t, err)
	assert.Equal(t, "Jane", rec.Name)
	assert.True(t, rec.EbookDownloaded)
	assert.Equal(t, 7, rec.ViolationsFound)
}

func TestPersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lead.json")

	s1 := New(path)
	s1.Load()
	_, err := s1.Merge(Patch{Name: strPtr("Jane"), Email: strPtr("jane@example.com"), CallBooked: boolPtr(true)})
	require.NoError(t, err)

	s2 := New(path)
	s2.Load()
	rec, loaded := s2.Get()
	assert.True(t, loaded)
	require.NotNil(t, rec)
	assert.Equal(t, "Jane", rec.Name)
	assert.True(t, rec.CallBooked)
}

func TestClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lead.json")
	s := New(path)
	s.Load()

	_, err := s.Merge(Patch{Name: strPtr("Jane")})
	require.NoError(t, err)
	require.NoError(t, s.Clear())

	rec, _ := s.Get()
	assert.Nil(t, rec)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))

	// clearing twice is fine
	assert.NoError(t, s.Clear())
}

func TestReplace(t *testing.T) {
	s := newStore(t)
	s.Load()

	require.NoError(t, s.Replace(&Record{Name: "Jane", Email: "jane@example.com"}))
	rec, _ := s.Get()
	require.NotNil(t, rec)
	assert.Equal(t, "Jane", rec.Name)

	require.NoError(t, s.Replace(nil))
	rec, _ = s.Get()
	assert.Nil(t, rec)
}

func TestGetReturnsCopy(t *testing.T) {
	s := newStore(t)
	s.Load()
	_, err := s.Merge(Patch{Name: strPtr("Jane")})
	require.NoError(t, err)

	rec, _ := s.Get()
	rec.Name = "mutated"

	again, _ := s.Get()
	assert.Equal(t, "Jane", again.Name)
}

func TestMalformedFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lead.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s := New(path)
	s.Load()

	rec, loaded := s.Get()
	assert.Nil(t, rec)
	assert.True(t, loaded)
}

func TestParseAttribution(t *testing.T) {
	p := ParseAttribution("utm_campaign=spring&utm_source=newsletter&utm_medium=email")
	require.NotNil(t, p.UTMCampaign)
	assert.Equal(t, "spring", *p.UTMCampaign)
	require.NotNil(t, p.Source)
	assert.Equal(t, "newsletter", *p.Source, "source falls back to utm_source")

	p = ParseAttribution("source=affiliate&utm_source=newsletter")
	require.NotNil(t, p.Source)
	assert.Equal(t, "affiliate", *p.Source)

	p = ParseAttribution("")
	assert.Nil(t, p.Source)
	assert.Nil(t, p.UTMCampaign)
	assert.Nil(t, p.UTMSource)
	assert.Nil(t, p.UTMMedium)
}
