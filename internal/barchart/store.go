package barchart

import (
	"path/filepath"

	"ebird-barchart/lib/fsutil"
)

// Store is a directory of bar chart datasets, one `<region>.json` per region.
type Store struct {
	Dir string
}

func (s Store) Path(regionCode string) string {
	return filepath.Join(s.Dir, regionCode+".json")
}

func (s Store) Exists(regionCode string) bool {
	return fsutil.Exists(s.Path(regionCode))
}

// Write replaces the dataset of a region, creating the directory if needed.
func (s Store) Write(regionCode string, dataset any) error {
	return fsutil.WriteJSON(s.Path(regionCode), dataset)
}
