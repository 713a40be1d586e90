package exemptions

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/dupfinder/internal/types"
)

// fakePrefs is an in-memory PrefsStore with optional injected failures.
type fakePrefs struct {
	values  map[string][]byte
	getErr  error
	setErr  error
	setKeys []string
}

func newFakePrefs() *fakePrefs {
	return &fakePrefs{values: make(map[string][]byte)}
}

func (p *fakePrefs) GetPref(_ context.Context, key string) ([]byte, bool, error) {
	if p.getErr != nil {
		return nil, false, p.getErr
	}
	v, ok := p.values[key]
	return v, ok, nil
}

func (p *fakePrefs) SetPref(_ context.Context, key string, value []byte) error {
	if p.setErr != nil {
		return p.setErr
	}
	p.values[key] = value
	p.setKeys = append(p.setKeys, key)
	return nil
}

func TestSymmetryAndIdempotence(t *testing.T) {
	s := New()
	s.AddExemptGroup([]types.BookID{1, 2})
	s.AddExemptGroup([]types.BookID{1, 2}) // repeat is a no-op

	assert.True(t, s.IsExempt(1, 2))
	assert.True(t, s.IsExempt(2, 1))
	assert.False(t, s.IsExempt(1, 1))
	assert.False(t, s.IsExempt(1, 3))

	s.RemoveExempt(2, 1) // either direction removes both
	assert.False(t, s.IsExempt(1, 2))
	assert.Empty(t, s.ExemptionsFor(1))
}

func TestAddExemptGroupAllPairs(t *testing.T) {
	s := New()
	s.AddExemptGroup([]types.BookID{1, 2, 3})

	assert.Equal(t, []types.BookID{2, 3}, s.ExemptionsFor(1))
	assert.Equal(t, []types.BookID{1, 3}, s.ExemptionsFor(2))
	assert.Equal(t, []types.BookID{1, 2}, s.ExemptionsFor(3))
}

func TestRemoveAllFor(t *testing.T) {
	s := New()
	s.AddExemptGroup([]types.BookID{1, 2, 3})
	s.RemoveAllFor(1)

	assert.Empty(t, s.ExemptionsFor(1))
	assert.False(t, s.IsExempt(2, 1))
	// The 2-3 pair is untouched
	assert.True(t, s.IsExempt(2, 3))
}

func TestAuthorExemptions(t *testing.T) {
	s := New()
	s.AddAuthorExemptGroup([]string{"Jane Doe", "John Doe"})

	assert.True(t, s.IsAuthorExempt("Jane Doe", "John Doe"))
	assert.True(t, s.IsAuthorExempt("John Doe", "Jane Doe"))
	assert.False(t, s.IsAuthorExempt("Jane Doe", "Jane Doe"))

	s.RemoveAuthorExempt("John Doe", "Jane Doe")
	assert.False(t, s.IsAuthorExempt("Jane Doe", "John Doe"))
}

func TestPersistAndLoadRoundtrip(t *testing.T) {
	ctx := context.Background()
	prefs := newFakePrefs()

	s := New()
	s.AddExemptGroup([]types.BookID{10, 20})
	s.AddExemptGroup([]types.BookID{20, 30})
	s.AddAuthorExemptGroup([]string{"A. Writer", "B. Writer"})
	require.NoError(t, s.Persist(ctx, prefs))

	loaded := New()
	require.NoError(t, loaded.Load(ctx, prefs))

	assert.True(t, loaded.IsExempt(10, 20))
	assert.True(t, loaded.IsExempt(30, 20))
	assert.False(t, loaded.IsExempt(10, 30))
	assert.True(t, loaded.IsAuthorExempt("A. Writer", "B. Writer"))
}

func TestLoadNormalizesLegacyOneSidedPairs(t *testing.T) {
	ctx := context.Background()
	prefs := newFakePrefs()

	// Legacy writers recorded only the "first book" side, sometimes with
	// duplicate and reversed entries.
	image := map[string]string{
		"1": "2,2,3",
		"2": "1", // reversed duplicate of the 1->2 entry
		"9": "9", // self pair is dropped
	}
	data, err := json.Marshal(image)
	require.NoError(t, err)
	prefs.values[BookExemptionsKey] = data

	s := New()
	require.NoError(t, s.Load(ctx, prefs))

	assert.True(t, s.IsExempt(1, 2))
	assert.True(t, s.IsExempt(2, 1))
	assert.True(t, s.IsExempt(3, 1))
	assert.False(t, s.IsExempt(9, 9))
	assert.Empty(t, s.ExemptionsFor(9))
}

func TestLoadFailureLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.AddExemptGroup([]types.BookID{1, 2})

	prefs := newFakePrefs()
	prefs.getErr = errors.New("database locked")

	err := s.Load(ctx, prefs)
	require.Error(t, err)
	var loadErr *types.ExemptionLoadError
	assert.True(t, errors.As(err, &loadErr))

	// Pre-existing relations survive the failed load
	assert.True(t, s.IsExempt(1, 2))
}

func TestLoadRejectsCorruptImage(t *testing.T) {
	ctx := context.Background()
	prefs := newFakePrefs()
	prefs.values[BookExemptionsKey] = []byte("not json")

	s := New()
	err := s.Load(ctx, prefs)
	require.Error(t, err)
	var loadErr *types.ExemptionLoadError
	assert.True(t, errors.As(err, &loadErr))
	assert.Equal(t, BookExemptionsKey, loadErr.Key)
}

func TestPersistFailure(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.AddExemptGroup([]types.BookID{1, 2})

	prefs := newFakePrefs()
	prefs.setErr = errors.New("disk full")

	err := s.Persist(ctx, prefs)
	require.Error(t, err)
	var persistErr *types.ExemptionPersistError
	assert.True(t, errors.As(err, &persistErr))

	// In-memory state is untouched
	assert.True(t, s.IsExempt(1, 2))
}

func TestPersistedEncodingShape(t *testing.T) {
	ctx := context.Background()
	prefs := newFakePrefs()

	s := New()
	s.AddExemptGroup([]types.BookID{1, 2, 3})
	require.NoError(t, s.Persist(ctx, prefs))

	var image map[string]string
	require.NoError(t, json.Unmarshal(prefs.values[BookExemptionsKey], &image))
	assert.Equal(t, "2,3", image["1"])
	assert.Equal(t, "1,3", image["2"])
	assert.Equal(t, "1,2", image["3"])
}
