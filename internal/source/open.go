package source

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/spark-map/atlas-cli/internal/config"
)

// decodeReader wraps r to transcode a legacy encoding (e.g. "latin1" in
// older census extracts) into UTF-8. An empty or utf-8 encoding passes
// through untouched.
func decodeReader(r io.Reader, encoding string) (io.Reader, error) {
	if encoding == "" || strings.EqualFold(encoding, "utf-8") || strings.EqualFold(encoding, "utf8") {
		return r, nil
	}
	enc, err := htmlindex.Get(encoding)
	if err != nil {
		return nil, eris.Wrapf(err, "source: unsupported encoding %q", encoding)
	}
	return enc.NewDecoder().Reader(r), nil
}

// openCSV opens a delimited file and reads its header, returning the
// reader positioned at the first data row plus the column index.
func openCSV(cfg config.SourceConfig) (*csv.Reader, io.Closer, map[string]int, error) {
	f, err := os.Open(cfg.Path)
	if err != nil {
		return nil, nil, nil, eris.Wrapf(err, "source: open %s", cfg.Path)
	}

	dec, err := decodeReader(f, cfg.Encoding)
	if err != nil {
		f.Close()
		return nil, nil, nil, err
	}

	reader := csv.NewReader(dec)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1 // allow variable fields
	if cfg.Delimiter != "" {
		reader.Comma = rune(cfg.Delimiter[0])
	}

	header, err := reader.Read()
	if err != nil {
		f.Close()
		return nil, nil, nil, eris.Wrapf(err, "source: read header of %s", cfg.Path)
	}

	return reader, f, mapColumns(header), nil
}

// requireCols errors when any of the named key columns is missing from
// the header; metric columns are allowed to be absent.
func requireCols(colIdx map[string]int, name string, cols ...string) error {
	var missing []string
	for _, c := range cols {
		if !hasCol(colIdx, c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return eris.Errorf("%s: missing key columns %s", name, strings.Join(missing, ", "))
	}
	return nil
}
