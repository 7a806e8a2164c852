package csvparser

import (
	"os"
)

// ParseFile parses a legacy export file. See ParseLegacyRows.
func ParseFile(path string, maxRows int) ([]LegacyRow, error) {

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ParseLegacyRows(f, maxRows)
}
