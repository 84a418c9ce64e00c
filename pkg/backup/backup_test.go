package backup

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbshrst/talos-discovery/pkg/log"
	"github.com/tbshrst/talos-discovery/pkg/registry"
	"github.com/tbshrst/talos-discovery/pkg/types"
)

func TestMain(m *testing.M) {
	log.Init(log.Config{Level: log.ErrorLevel})
	os.Exit(m.Run())
}

func TestExportWritesFile(t *testing.T) {
	dir := t.TempDir()

	r := registry.New()
	require.NoError(t, r.UpdateAffiliate("x", "a1", []byte{0x01, 0x02}, [][]byte{{0xAA}}, time.Minute))

	e := NewEngine(r, dir, time.Minute)
	require.NoError(t, e.Export())

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)

	// Trailing newline after the JSON document.
	require.NotEmpty(t, data)
	assert.EqualValues(t, '\n', data[len(data)-1])

	// Byte payloads are arrays of numbers, not base64 strings.
	var decoded []map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "x", decoded[0]["id"])

	affiliates, ok := decoded[0]["affiliates"].(map[string]interface{})
	require.True(t, ok)

	a1, ok := affiliates["a1"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, []interface{}{float64(1), float64(2)}, a1["data"])
	assert.Equal(t, []interface{}{[]interface{}{float64(170)}}, a1["endpoints"])
	assert.Contains(t, a1, "expiration")
}

func TestExportTruncatesPreviousContent(t *testing.T) {
	dir := t.TempDir()

	r := registry.New()
	require.NoError(t, r.UpdateAffiliate("x", "a1", nil, nil, time.Minute))
	require.NoError(t, r.UpdateAffiliate("y", "a2", nil, nil, time.Minute))

	e := NewEngine(r, dir, time.Minute)
	require.NoError(t, e.Export())

	r.Sweep(time.Now().Add(types.MaxTTL))
	require.NoError(t, e.Export())

	var decoded []map[string]interface{}
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Empty(t, decoded)
}

func TestRestoreRoundTrip(t *testing.T) {
	dir := t.TempDir()

	r := registry.New()
	require.NoError(t, r.UpdateAffiliate("x", "a1", []byte{0x01}, [][]byte{{0xAA}, {0xBB}}, time.Minute))
	require.NoError(t, r.UpdateAffiliate("y", "a2", nil, nil, time.Hour))

	require.NoError(t, NewEngine(r, dir, time.Minute).Export())

	restored := registry.New()
	require.NoError(t, NewEngine(restored, dir, time.Minute).Restore())

	assert.Equal(t, 2, restored.ClusterCount())

	affiliates, err := restored.ListAffiliates("x")
	require.NoError(t, err)
	require.Len(t, affiliates, 1)
	assert.Equal(t, "a1", affiliates[0].ID)
	assert.Equal(t, []byte{0x01}, affiliates[0].Data)
	assert.Equal(t, [][]byte{{0xAA}, {0xBB}}, affiliates[0].Endpoints)

	// Expiration instants survive the round trip.
	original, err := r.ListAffiliates("x")
	require.NoError(t, err)
	assert.True(t, original[0].Expiration.Equal(affiliates[0].Expiration))
}

func TestRestoreKeepsExpiredAffiliates(t *testing.T) {
	dir := t.TempDir()

	r := registry.New()
	r.Restore([]*types.ClusterSnapshot{{
		ID: "x",
		Affiliates: map[string]*types.Affiliate{
			"a1": {ID: "a1", Expiration: time.Now().Add(-time.Hour)},
		},
	}})
	require.NoError(t, NewEngine(r, dir, time.Minute).Export())

	restored := registry.New()
	require.NoError(t, NewEngine(restored, dir, time.Minute).Restore())

	// Restoration does not filter expired records.
	affiliates, err := restored.ListAffiliates("x")
	require.NoError(t, err)
	assert.Len(t, affiliates, 1)
}

func TestRestoreMissingFile(t *testing.T) {
	r := registry.New()
	e := NewEngine(r, t.TempDir(), time.Minute)

	require.NoError(t, e.Restore())
	assert.Zero(t, r.ClusterCount())
}

func TestRestoreCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("not json\n"), 0600))

	e := NewEngine(registry.New(), dir, time.Minute)
	assert.Error(t, e.Restore())
}

func TestDisabledEngine(t *testing.T) {
	r := registry.New()
	require.NoError(t, r.UpdateAffiliate("x", "a1", nil, nil, time.Minute))

	e := NewEngine(r, "", time.Minute)
	require.NoError(t, e.Restore())
	require.NoError(t, e.Export())

	// Start is a no-op without a backup directory; Stop must still be safe.
	e.Start()
	e.Stop()
}

func TestExportFailure(t *testing.T) {
	r := registry.New()

	e := NewEngine(r, filepath.Join(t.TempDir(), "does-not-exist"), time.Minute)
	assert.Error(t, e.Export())
}
