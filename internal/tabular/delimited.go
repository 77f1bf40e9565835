package tabular

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/csimplestring/go-csv/detector"
)

// sniffBytes bounds how much of the input the delimiter detector samples.
const sniffBytes = 64 << 10

// preferredDelimiters breaks ties when several characters occur with a
// consistent frequency on every sampled line.
var preferredDelimiters = []string{"\t", ",", ";", "|"}

// DetectDelimiter returns the most likely field separator of a CSV-like
// sample. When detection is inconclusive a tab wins over a comma if the
// first line contains one.
func DetectDelimiter(sample []byte) rune {
	d := detector.New()
	found := d.DetectDelimiter(bytes.NewReader(sample), '"')
	for _, want := range preferredDelimiters {
		if slices.Contains(found, want) {
			return rune(want[0])
		}
	}
	if len(found) > 0 && found[0] != "" {
		return rune(found[0][0])
	}
	first, _, _ := bytes.Cut(sample, []byte("\n"))
	if bytes.IndexByte(first, '\t') >= 0 {
		return '\t'
	}
	return ','
}

// ReadDelimited parses delimited text into a header-first row matrix. The
// delimiter is detected from the content. Short rows are padded to the
// header width; blank trailing lines are dropped.
func ReadDelimited(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	return ReadDelimitedWith(bytes.NewReader(data), DetectDelimiter(data[:min(len(data), sniffBytes)]))
}

// ReadDelimitedWith parses delimited text using a known separator.
func ReadDelimitedWith(r io.Reader, delim rune) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse delimited: %w", err)
	}
	return normalizeRows(rows), nil
}

func normalizeRows(rows [][]string) [][]string {
	for len(rows) > 0 && isBlankRow(rows[len(rows)-1]) {
		rows = rows[:len(rows)-1]
	}
	if len(rows) == 0 {
		return nil
	}
	width := len(rows[0])
	for i, row := range rows {
		if len(row) < width {
			padded := make([]string, width)
			copy(padded, row)
			rows[i] = padded
		}
	}
	return rows
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
