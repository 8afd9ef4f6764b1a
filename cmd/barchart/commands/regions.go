package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadRegions reads region codes from a file with one code per line. Blank
// lines and lines starting with '#' are ignored.
func LoadRegions(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file %s not found", path)
		}
		return nil, fmt.Errorf("error reading file %s: %w", path, err)
	}
	defer f.Close()

	var regions []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		regions = append(regions, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading file %s: %w", path, err)
	}
	return regions, nil
}
