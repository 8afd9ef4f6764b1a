package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)

	m, exists, err := Load(path)
	require.NoError(t, err)
	require.False(t, exists)
	require.Empty(t, m)

	require.NoError(t, os.WriteFile(path, []byte(`null`), 0644))
	m, exists, err = Load(path)
	require.NoError(t, err)
	require.True(t, exists)
	require.NotNil(t, m)

	require.NoError(t, os.WriteFile(path, []byte(`["CH"]`), 0644))
	_, _, err = Load(path)
	require.ErrorIs(t, err, ErrMalformedManifest)
}

func TestRegion(t *testing.T) {
	m := Manifest{}
	m.SetInfo("CH", json.RawMessage(`{"result": "Switzerland"}`))
	m.SetInfo("US-CA", json.RawMessage(`{"result": "California", "type": "subnational1"}`))
	m.SetInfo("ODD", json.RawMessage(`{"result": 42}`))
	m.SetFallback("FR")

	table := []struct {
		code     string
		expected Region
	}{
		{code: "CH", expected: Region{Code: "CH", Name: "Switzerland", Type: "region"}},
		{code: "US-CA", expected: Region{Code: "US-CA", Name: "California", Type: "subnational1"}},
		{code: "ODD", expected: Region{Code: "ODD", Name: "ODD", Type: "region"}},
		{code: "FR", expected: Region{Code: "FR", Name: "FR", Type: "region"}},
	}
	for _, row := range table {
		region, ok := m.Region(row.code)
		require.True(t, ok)
		require.Equal(t, row.expected, region)
	}

	_, ok := m.Region("DE")
	require.False(t, ok)

	require.Equal(t, []string{"CH", "FR", "ODD", "US-CA"}, m.Codes())
	require.Len(t, m.Regions(), 4)
	require.Equal(t, "CH", m.Regions()[0].Code)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)

	m := Manifest{}
	m.SetFallback("FR")
	m.SetInfo("CH", json.RawMessage(`{"result":"Switzerland"}`))
	require.NoError(t, m.Save(path))

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "{\n  \"CH\": {\n    \"result\": \"Switzerland\"\n  },\n  \"FR\": \"FR\"\n}\n", string(contents))
}

func TestSetInfoUnescapes(t *testing.T) {
	table := []struct {
		raw      string
		expected string
	}{
		{raw: `{"result":"Z\u00fcrich"}`, expected: `{"result":"Zürich"}`},
		{raw: `{"r\u00e9gion":"x","n":[1.50,2e3]}`, expected: `{"région":"x","n":[1.50,2e3]}`},
		{raw: `{"result":"tab\tand \"quote\" \\ \u003c"}`, expected: `{"result":"tab\tand \"quote\" \\ <"}`},
		{raw: `{"result":"plain"}`, expected: `{"result":"plain"}`},
		{raw: `{"result":"Z\u00fc`, expected: `{"result":"Z\u00fc`},
	}
	for _, row := range table {
		m := Manifest{}
		m.SetInfo("CH", json.RawMessage(row.raw))
		require.Equal(t, row.expected, string(m["CH"]), row.raw)
	}
}
