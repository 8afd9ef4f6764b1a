package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"ebird-barchart/lib/fsutil"
)

const FileName = "manifest.json"

// Manifest maps a region code to either its full region info record or, if
// the record couldn't be fetched, the region code itself as a JSON string.
type Manifest map[string]json.RawMessage

// Region is how consumers of the manifest see an entry.
type Region struct {
	Code string
	Name string
	Type string
}

// Load reads a manifest, a missing file yields an empty manifest and
// exists = false.
func Load(path string) (manifest Manifest, exists bool, err error) {
	contents, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Manifest{}, false, nil
	}
	if err != nil {
		return nil, true, fmt.Errorf("%w: %v", ErrUnreadableManifest, err)
	}

	manifest = Manifest{}
	err = json.Unmarshal(contents, &manifest)
	if err != nil {
		return nil, true, fmt.Errorf("%w: %s: %v", ErrMalformedManifest, path, err)
	}
	// a literal `null` decodes into a nil map
	if manifest == nil {
		manifest = Manifest{}
	}
	return manifest, true, nil
}

func (m Manifest) Save(path string) error {
	return fsutil.WriteJSON(path, m)
}

func (m Manifest) Has(code string) bool {
	_, ok := m[code]
	return ok
}

// SetInfo stores a full region info record. Escaped non-ASCII characters
// are written out as is, numbers and field order are kept.
func (m Manifest) SetInfo(code string, raw json.RawMessage) {
	m[code] = unescape(raw)
}

// unescape re-encodes every string literal of a JSON value so that \u
// escapes of printable characters are written out as is. Anything outside
// of string literals is left untouched, invalid JSON is returned unchanged.
func unescape(raw json.RawMessage) json.RawMessage {
	if !json.Valid(raw) || !bytes.Contains(raw, []byte(`\u`)) {
		return raw
	}

	out := &bytes.Buffer{}
	encoder := json.NewEncoder(out)
	encoder.SetEscapeHTML(false)

	for i := 0; i < len(raw); i++ {
		if raw[i] != '"' {
			out.WriteByte(raw[i])
			continue
		}
		end := i + 1
		for raw[end] != '"' {
			if raw[end] == '\\' {
				end++
			}
			end++
		}

		var value string
		err := json.Unmarshal(raw[i:end+1], &value)
		if err != nil {
			return raw
		}
		err = encoder.Encode(value)
		if err != nil {
			return raw
		}
		// Encode terminates every value with a newline
		out.Truncate(out.Len() - 1)
		i = end
	}
	return out.Bytes()
}
