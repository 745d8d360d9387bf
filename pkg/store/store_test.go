package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-wayfinder/internal/log"
	"github.com/teslashibe/go-wayfinder/pkg/store"
)

func backends(t *testing.T) map[string]store.KV {
	t.Helper()
	dir := t.TempDir()

	db, err := store.OpenSQLite(filepath.Join(dir, "state", "wayfinder.db"))
	require.NoError(t, err)

	file, err := store.NewJSONFile(filepath.Join(dir, "state.json"))
	require.NoError(t, err)

	kvs := map[string]store.KV{
		"sqlite": db,
		"json":   file,
		"memory": store.NewMemory(),
	}
	t.Cleanup(func() {
		for _, kv := range kvs {
			kv.Close()
		}
	})
	return kvs
}

func TestKV_Roundtrip(t *testing.T) {
	ctx := context.Background()
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := kv.Get(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, kv.Set(ctx, "k", "v1"))
			require.NoError(t, kv.Set(ctx, "k", "v2"))

			v, ok, err := kv.Get(ctx, "k")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "v2", v)

			require.NoError(t, kv.Delete(ctx, "k"))
			require.NoError(t, kv.Delete(ctx, "k"))
			_, ok, err = kv.Get(ctx, "k")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestJSONFile_Persists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "state.json")

	s, err := store.NewJSONFile(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, store.KeyToken, "abc"))
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Set(ctx, "x", "y"), store.ErrClosed)

	reopened, err := store.NewJSONFile(path)
	require.NoError(t, err)
	v, ok, err := reopened.Get(ctx, store.KeyToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc", v)
}

func TestSQLite_Persists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "wayfinder.db")

	db, err := store.OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, db.Set(ctx, store.KeyBioEnabled, "1"))
	require.NoError(t, db.Close())

	db, err = store.OpenSQLite(path)
	require.NoError(t, err)
	defer db.Close()

	v, ok, err := db.Get(ctx, store.KeyBioEnabled)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", v)
}

func newPrefs() (*store.Prefs, store.KV) {
	kv := store.NewMemory()
	return store.NewPrefs(kv, log.Discard()), kv
}

func TestAccessibility_MergedOverDefaults(t *testing.T) {
	ctx := context.Background()
	prefs, kv := newPrefs()

	got, err := prefs.Accessibility(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.DefaultAccessibility(), got)

	require.NoError(t, kv.Set(ctx, store.KeyAccessibility, `{"highContrast":true}`))
	got, err = prefs.Accessibility(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.Accessibility{
		TextScale:    "medium",
		HighContrast: true,
		Handedness:   "right",
	}, got)

	got, err = prefs.UpdateAccessibility(ctx, []byte(`{"textScale":"large"}`))
	require.NoError(t, err)
	assert.Equal(t, "large", got.TextScale)
	assert.True(t, got.HighContrast, "earlier fields survive a patch")

	_, err = prefs.UpdateAccessibility(ctx, []byte(`{"textScale":"huge"}`))
	require.Error(t, err)
	got, err = prefs.Accessibility(ctx)
	require.NoError(t, err)
	assert.Equal(t, "large", got.TextScale, "rejected patch is not saved")
}

func TestAccessibility_CorruptBlobFallsBack(t *testing.T) {
	ctx := context.Background()
	prefs, kv := newPrefs()

	require.NoError(t, kv.Set(ctx, store.KeyAccessibility, `{not json`))
	got, err := prefs.Accessibility(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.DefaultAccessibility(), got)
}

func TestUsageStats(t *testing.T) {
	ctx := context.Background()
	prefs, _ := newPrefs()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	prefs.SetClock(func() time.Time { return now })

	stats, err := prefs.UsageStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.SessionCount)
	require.NotNil(t, stats.LastResetAt)
	assert.Equal(t, now, *stats.LastResetAt)

	_, err = prefs.RecordSession(ctx, 90*time.Second)
	require.NoError(t, err)
	stats, err = prefs.RecordSession(ctx, 30*time.Second)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.SessionCount)
	assert.InDelta(t, 120.0, stats.TotalSeconds, 1e-9)
	assert.InDelta(t, 1.0, stats.AverageMinutes(), 1e-9)

	later := now.Add(time.Hour)
	prefs.SetClock(func() time.Time { return later })
	stats, err = prefs.ResetUsage(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalSeconds)
	assert.Zero(t, stats.SessionCount)
	assert.Equal(t, later, *stats.LastResetAt)

	stats, err = prefs.UsageStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, later, stats.LastResetAt.UTC())
}

func TestContacts_TrimmedToThree(t *testing.T) {
	ctx := context.Background()
	prefs, _ := newPrefs()

	empty, err := prefs.Contacts(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	saved, err := prefs.SaveContacts(ctx, []store.Contact{
		{Name: "a"}, {Name: "b"}, {Name: "c"}, {Name: "d"},
	})
	require.NoError(t, err)
	assert.Len(t, saved, store.MaxContacts)

	got, err := prefs.Contacts(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "c", got[2].Name)
}

func TestMyInfoAndToken(t *testing.T) {
	ctx := context.Background()
	prefs, _ := newPrefs()

	require.NoError(t, prefs.SaveMyInfo(ctx, store.MyInfo{FullName: "Amina W", Phone: "+254700000000"}))
	info, err := prefs.MyInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Amina W", info.FullName)

	tok, err := prefs.Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, tok)

	require.NoError(t, prefs.SaveToken(ctx, "t1"))
	tok, _ = prefs.Token(ctx)
	assert.Equal(t, "t1", tok)

	require.NoError(t, prefs.SaveToken(ctx, ""))
	tok, _ = prefs.Token(ctx)
	assert.Empty(t, tok)
}

func TestBiometricOptIn(t *testing.T) {
	ctx := context.Background()
	prefs, kv := newPrefs()

	on, err := prefs.BiometricEnabled(ctx)
	require.NoError(t, err)
	assert.False(t, on)

	require.NoError(t, prefs.EnableBiometric(ctx))
	on, _ = prefs.BiometricEnabled(ctx)
	assert.True(t, on)

	v, _, _ := kv.Get(ctx, store.KeyBioEnabled)
	assert.Equal(t, "1", v)
}

func TestOpen_PicksBackendByPath(t *testing.T) {
	dir := t.TempDir()

	kv, err := store.Open(filepath.Join(dir, "prefs.JSON"))
	require.NoError(t, err)
	assert.IsType(t, &store.JSONFile{}, kv)
	kv.Close()

	kv, err = store.Open(filepath.Join(dir, "wayfinder.db"))
	require.NoError(t, err)
	assert.IsType(t, &store.SQLite{}, kv)
	kv.Close()

	kv, err = store.Open("")
	require.NoError(t, err)
	assert.IsType(t, &store.JSONFile{}, kv)
	assert.Empty(t, kv.(*store.JSONFile).FilePath)
}
