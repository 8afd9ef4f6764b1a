package manifest

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"ebird-barchart/internal/components/telemetry"
	"ebird-barchart/internal/config"
	"ebird-barchart/internal/ebird/regioninfo"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	records map[string]string
	calls   []string
}

func (s *fakeSource) Info(ctx context.Context, regionCode string) *regioninfo.Info {
	s.calls = append(s.calls, regionCode)
	raw, ok := s.records[regionCode]
	if !ok {
		return nil
	}
	var fields map[string]any
	_ = json.Unmarshal([]byte(raw), &fields)
	name, hasResult := fields["result"].(string)
	return &regioninfo.Info{Result: name, HasResult: hasResult, Raw: json.RawMessage(raw)}
}

func writeFiles(t testing.TB, dir string, files map[string]string) {
	for name, contents := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(contents), 0644))
	}
}

func readManifest(t testing.TB, dir string) map[string]any {
	contents, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(contents, &out))
	return out
}

func newReconciler(dir string, source InfoSource, resetMalformed bool) Reconciler {
	return NewReconciler(ReconcilerOptions{
		Dir:            dir,
		ApiKey:         "key",
		Source:         source,
		ResetMalformed: resetMalformed,
	}, &telemetry.RecordingAPI{})
}

func TestReconcileOnlyFetchesMissing(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"CH.json":       `{}`,
		"FR.json":       `{}`,
		"manifest.json": `{"CH": "Switzerland"}`,
	})
	source := &fakeSource{records: map[string]string{
		"FR": `{"result": "France"}`,
	}}

	result, err := newReconciler(dir, source, false).Reconcile(context.Background())
	require.NoError(t, err)

	require.Equal(t, []string{"FR"}, source.calls)
	require.Equal(t, []string{"FR"}, result.Fetched)
	require.Empty(t, result.Fallback)
	require.True(t, result.Written)
	require.Equal(t, 2, result.Files)

	expected := map[string]any{
		"CH": "Switzerland",
		"FR": map[string]any{"result": "France"},
	}
	if diff := cmp.Diff(expected, readManifest(t, dir)); diff != "" {
		t.Fatalf("manifest mismatch (-want +got):\n%s", diff)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"CH.json": `{}`,
		"DE.json": `{}`,
	})
	source := &fakeSource{records: map[string]string{
		"CH": `{"result": "Switzerland"}`,
		"DE": `{"result": "Germany"}`,
	}}
	reconciler := newReconciler(dir, source, false)

	_, err := reconciler.Reconcile(context.Background())
	require.NoError(t, err)
	first, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	require.Equal(t, []string{"CH", "DE"}, source.calls)

	result, err := reconciler.Reconcile(context.Background())
	require.NoError(t, err)
	require.False(t, result.Written)
	require.Empty(t, result.Fetched)
	require.Len(t, source.calls, 2)

	second, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestReconcileNeverOverwritesExisting(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"CH.json":       `{"redownloaded": true}`,
		"IT.json":       `{}`,
		"manifest.json": `{"CH": {"result": "Schweiz", "custom": [1, 2]}}`,
	})
	source := &fakeSource{records: map[string]string{
		"CH": `{"result": "Switzerland"}`,
		"IT": `{"result": "Italy"}`,
	}}

	_, err := newReconciler(dir, source, false).Reconcile(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"IT"}, source.calls)

	manifest := readManifest(t, dir)
	require.Equal(t, map[string]any{"result": "Schweiz", "custom": []any{1.0, 2.0}}, manifest["CH"])
}

func TestReconcileFallsBackToCode(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"US-CA.json": `{}`,
		"XX.json":    `{}`,
	})
	source := &fakeSource{records: map[string]string{
		// a record without a result is not usable
		"XX": `{"bounds": {}}`,
	}}

	result, err := newReconciler(dir, source, false).Reconcile(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"US-CA", "XX"}, result.Fallback)

	require.Equal(t, map[string]any{"US-CA": "US-CA", "XX": "XX"}, readManifest(t, dir))
}

func TestReconcilePreservesNonASCII(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"CH-ZH.json": `{}`})
	source := &fakeSource{records: map[string]string{
		"CH-ZH": `{"result": "Zürich"}`,
	}}

	_, err := newReconciler(dir, source, false).Reconcile(context.Background())
	require.NoError(t, err)

	contents, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	require.Contains(t, string(contents), "Zürich")
	require.Contains(t, string(contents), "\n  \"CH-ZH\": {\n")
}

func TestReconcileUnescapesNonASCII(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"CH-ZH.json": `{}`})
	source := &fakeSource{records: map[string]string{
		"CH-ZH": `{"result": "Z\u00fcrich", "note": "a \"quoted\" \u0026 <b>", "area": 1729.0}`,
	}}

	_, err := newReconciler(dir, source, false).Reconcile(context.Background())
	require.NoError(t, err)

	contents, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	require.Contains(t, string(contents), `"result": "Zürich"`)
	require.Contains(t, string(contents), `"note": "a \"quoted\" & <b>"`)
	require.Contains(t, string(contents), `"area": 1729.0`)
	require.NotContains(t, string(contents), `\u00fc`)

	region, ok := readBack(t, dir).Region("CH-ZH")
	require.True(t, ok)
	require.Equal(t, "Zürich", region.Name)
}

func readBack(t testing.TB, dir string) Manifest {
	m, _, err := Load(filepath.Join(dir, FileName))
	require.NoError(t, err)
	return m
}

func TestReconcileErrors(t *testing.T) {
	source := &fakeSource{}

	t.Run("missing api key", func(t *testing.T) {
		reconciler := NewReconciler(ReconcilerOptions{Dir: t.TempDir(), Source: source}, &telemetry.RecordingAPI{})
		_, err := reconciler.Reconcile(context.Background())
		require.ErrorIs(t, err, config.ErrMissingAPIKey)
	})

	t.Run("missing directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nope")
		_, err := newReconciler(dir, source, false).Reconcile(context.Background())
		require.ErrorIs(t, err, ErrDirNotFound)
		require.NoFileExists(t, filepath.Join(dir, FileName))
	})

	t.Run("no region files", func(t *testing.T) {
		dir := t.TempDir()
		result, err := newReconciler(dir, source, false).Reconcile(context.Background())
		require.NoError(t, err)
		require.Zero(t, result.Files)
		require.False(t, result.Written)
		require.NoFileExists(t, filepath.Join(dir, FileName))
	})

	require.Empty(t, source.calls)
}

func TestReconcileMalformedManifest(t *testing.T) {
	malformed := `{"CH": "Switzerland",`

	t.Run("fails loudly by default", func(t *testing.T) {
		dir := t.TempDir()
		writeFiles(t, dir, map[string]string{"CH.json": `{}`, FileName: malformed})
		source := &fakeSource{}

		_, err := newReconciler(dir, source, false).Reconcile(context.Background())
		require.ErrorIs(t, err, ErrMalformedManifest)
		require.Empty(t, source.calls)

		contents, err := os.ReadFile(filepath.Join(dir, FileName))
		require.NoError(t, err)
		require.Equal(t, malformed, string(contents))
	})

	t.Run("reset when asked", func(t *testing.T) {
		dir := t.TempDir()
		writeFiles(t, dir, map[string]string{"CH.json": `{}`, FileName: malformed})
		source := &fakeSource{records: map[string]string{"CH": `{"result": "Switzerland"}`}}

		result, err := newReconciler(dir, source, true).Reconcile(context.Background())
		require.NoError(t, err)
		require.True(t, result.Written)
		require.Equal(t, map[string]any{"CH": map[string]any{"result": "Switzerland"}}, readManifest(t, dir))
	})
}

func TestReconcileUnreadableManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	// a directory in place of the manifest cannot be read as a file
	require.NoError(t, os.Mkdir(path, 0755))

	_, err := newReconciler(dir, &fakeSource{}, false).load(path)
	require.ErrorIs(t, err, ErrUnreadableManifest)

	manifest, err := newReconciler(dir, &fakeSource{}, true).load(path)
	require.NoError(t, err)
	require.Empty(t, manifest)
}

func TestRegionFiles(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"FR.json":             `{}`,
		"CH.json":             `{}`,
		"manifest.json":       `{}`,
		"notes.txt":           "",
		".CH.json.123.tmp":    "",
		".hidden.json":        "",
		"US-NY-061.json":      `{}`,
		"regions.json.backup": "",
	})
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.json"), 0755))

	codes, err := RegionFiles(dir)
	require.NoError(t, err)
	require.Equal(t, []string{"CH", "FR", "US-NY-061"}, codes)
}

func TestRenderRegions(t *testing.T) {
	m := Manifest{}
	m.SetInfo("CH", json.RawMessage(`{"result": "Switzerland", "type": "country"}`))
	m.SetFallback("FR")

	out := &bytes.Buffer{}
	RenderRegions(out, m)
	require.Contains(t, out.String(), "Switzerland")
	require.Contains(t, out.String(), "country")
	require.Contains(t, out.String(), "FR")
}
