package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// LoadCSVFile loads a CSV file with a header row. See LoadCSV.
func LoadCSVFile(path string, nonFeature ...string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return LoadCSV(f, nonFeature...)
}

// LoadCSV reads a CSV stream with a header row. Columns named in nonFeature
// are kept as strings; every other column is parsed as a float feature, with
// empty cells read as NaN.
func LoadCSV(r io.Reader, nonFeature ...string) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyDataset
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	keep := make(map[string]bool, len(nonFeature))
	for _, name := range nonFeature {
		keep[name] = true
	}

	var featureNames []string
	var featureIdx []int
	columns := make(map[string][]string)
	for i, name := range header {
		name = strings.TrimSpace(name)
		header[i] = name
		if keep[name] {
			columns[name] = nil
			continue
		}
		featureNames = append(featureNames, name)
		featureIdx = append(featureIdx, i)
	}
	for _, name := range nonFeature {
		if _, ok := columns[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, name)
		}
	}
	if len(featureNames) == 0 {
		return nil, fmt.Errorf("no feature columns in header")
	}

	var data []float64
	rows := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", rows+1, err)
		}

		for _, col := range featureIdx {
			v, err := parseFeature(record[col])
			if err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", rows+1, header[col], err)
			}
			data = append(data, v)
		}
		for i, name := range header {
			if keep[name] {
				columns[name] = append(columns[name], strings.TrimSpace(record[i]))
			}
		}
		rows++
	}
	if rows == 0 {
		return nil, ErrEmptyDataset
	}

	return New(featureNames, mat.NewDense(rows, len(featureNames), data), columns)
}

func parseFeature(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") || s == "?" {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid numeric value %q", s)
	}
	return v, nil
}
