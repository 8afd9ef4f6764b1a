package barchartweb

import (
	"bufio"
	"bytes"
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
)

// PeriodsPerYear is the amount of columns in a bar chart, each month is split into 4 weeks.
const PeriodsPerYear = 48

// Species is a single row of a bar chart.
type Species struct {
	Name    string `json:"name"`
	SciName string `json:"sciName,omitempty"`
	// Frequencies is the fraction of checklists reporting the species in each period.
	Frequencies []float64 `json:"frequencies"`
}

// Dataset is the bar chart of a single region.
type Dataset struct {
	Region string `json:"region"`
	// SampleSizes is the amount of checklists submitted in each period.
	SampleSizes []float64 `json:"sampleSizes"`
	Species     []Species `json:"species"`
}

var speciesNameRegex = regexp.MustCompile(`^(.*?)\s*\(<em class="sci">(.*?)</em>\)\s*$`)

func splitSpeciesName(raw string) (name string, sciName string) {
	groups := speciesNameRegex.FindStringSubmatch(raw)
	if len(groups) < 3 {
		return html.UnescapeString(strings.TrimSpace(raw)), ""
	}
	return html.UnescapeString(groups[1]), html.UnescapeString(groups[2])
}

func parseFloats(fields []string) ([]float64, error) {
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		value, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, value)
	}
	return out, nil
}

// splitRow splits a tab separated row and drops the empty trailing cells eBird leaves behind.
func splitRow(line string) []string {
	fields := strings.Split(line, "\t")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	for len(fields) > 0 && fields[len(fields)-1] == "" {
		fields = fields[:len(fields)-1]
	}
	return fields
}

// ParseBarchart parses eBird's tab separated bar chart export. Header lines
// that aren't the sample size row or a species row are ignored.
func ParseBarchart(regionCode string, body []byte) (Dataset, error) {
	dataset := Dataset{
		Region:  regionCode,
		Species: []Species{},
	}
	foundSampleSize := false

	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := splitRow(scanner.Text())
		if len(fields) < 2 {
			continue
		}

		if strings.HasPrefix(fields[0], "Sample Size") {
			sizes, err := parseFloats(fields[1:])
			if err != nil {
				return Dataset{}, fmt.Errorf("line %d: sample size: %w", lineNo, err)
			}
			if len(sizes) != PeriodsPerYear {
				return Dataset{}, fmt.Errorf("line %d: expected %d sample sizes, got %d", lineNo, PeriodsPerYear, len(sizes))
			}
			dataset.SampleSizes = sizes
			foundSampleSize = true
			continue
		}

		// only rows after the sample size are species
		if !foundSampleSize {
			continue
		}

		frequencies, err := parseFloats(fields[1:])
		if err != nil {
			return Dataset{}, fmt.Errorf("line %d: frequencies of '%s': %w", lineNo, fields[0], err)
		}
		if len(frequencies) != PeriodsPerYear {
			return Dataset{}, fmt.Errorf("line %d: expected %d frequencies for '%s', got %d", lineNo, PeriodsPerYear, fields[0], len(frequencies))
		}
		name, sciName := splitSpeciesName(fields[0])
		dataset.Species = append(dataset.Species, Species{
			Name:        name,
			SciName:     sciName,
			Frequencies: frequencies,
		})
	}
	if err := scanner.Err(); err != nil {
		return Dataset{}, err
	}

	if !foundSampleSize {
		return Dataset{}, fmt.Errorf("no sample size row found, is this a bar chart export?")
	}
	return dataset, nil
}
