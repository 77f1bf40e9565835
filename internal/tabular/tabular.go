// Package tabular reads and writes the row matrices exchanged with metadata
// tables: delimited text (optionally gzip or zstd compressed) and legacy
// Excel workbooks.
package tabular

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path"
	"strings"
)

// Format identifies the container a file is parsed as.
type Format string

const (
	FormatDelimited Format = "delimited"
	FormatXLS       Format = "xls"
)

// FormatFor infers the format from a file name, ignoring compression suffixes.
func FormatFor(name string) Format {
	if strings.EqualFold(path.Ext(StripCompressionExt(name)), ".xls") {
		return FormatXLS
	}
	return FormatDelimited
}

// Read decompresses r when needed and parses it according to the format
// implied by name. Workbooks use their first sheet.
func Read(r io.Reader, name string) ([][]string, error) {
	rc, _, err := Decompress(r)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	if FormatFor(name) == FormatXLS {
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, err
		}
		return ReadXLS(bytes.NewReader(data), 0)
	}
	return ReadDelimited(rc)
}

// WriteTSV writes rows as tab-separated text through the codec c.
func WriteTSV(w io.Writer, rows [][]string, c Compression) error {
	cw, err := NewWriter(w, c)
	if err != nil {
		return err
	}
	tw := csv.NewWriter(cw)
	tw.Comma = '\t'
	if err := tw.WriteAll(rows); err != nil {
		_ = cw.Close()
		return fmt.Errorf("write tsv: %w", err)
	}
	return cw.Close()
}
