package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/JonMunkholm/asvimport/internal/importerr"
)

// Options controls how a source file is read.
type Options struct {
	// Encoding is an IANA or WHATWG label such as "utf-8", "latin1" or
	// "mac-roman". Empty means UTF-8.
	Encoding string

	// Delimiter separates fields. Zero means tab, or comma for .csv files.
	Delimiter rune

	// RawHeaders keeps header names as written instead of normalizing them.
	RawHeaders bool
}

// encodingAliases covers spellings that neither index knows.
var encodingAliases = map[string]string{
	"mac-roman": "macintosh",
	"mac_roman": "macintosh",
	"macroman":  "macintosh",
	"latin-1":   "iso-8859-1",
	"utf8":      "utf-8",
}

// Decoding returns the encoding registered under label.
func Decoding(label string) (encoding.Encoding, error) {
	name := strings.ToLower(strings.TrimSpace(label))
	if name == "" {
		return unicode.UTF8, nil
	}
	if alias, ok := encodingAliases[name]; ok {
		name = alias
	}
	if enc, err := htmlindex.Get(name); err == nil {
		return enc, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("unsupported encoding %q", label)
	}
	return enc, nil
}

// Load reads the delimited file at path. Any failure to open, decode or
// parse the file is a SourceUnavailable error naming the path.
func Load(path string, opts Options) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, importerr.Wrap(err, importerr.SourceUnavailable, "open", path)
	}
	defer f.Close()

	if opts.Delimiter == 0 && strings.EqualFold(filepath.Ext(path), ".csv") {
		opts.Delimiter = ','
	}

	t, err := Read(f, opts)
	if err != nil {
		return nil, importerr.Wrap(err, importerr.SourceUnavailable, "read", path)
	}
	t.Name = filepath.Base(path)
	return t, nil
}

// Read parses delimited text from r. The first non-blank record is the
// header. Errors are returned uncategorized; [Load] attaches the kind.
func Read(r io.Reader, opts Options) (*Table, error) {
	enc, err := Decoding(opts.Encoding)
	if err != nil {
		return nil, err
	}
	delim := opts.Delimiter
	if delim == 0 {
		delim = '\t'
	}

	cr := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(enc.NewDecoder())))
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var header []string
	for header == nil {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil, errors.New("no header row")
		}
		if err != nil {
			return nil, fmt.Errorf("parse header: %w", err)
		}
		if !isEmptyRow(rec) {
			header = rec
		}
	}

	names := make([]string, len(header))
	for i, h := range header {
		if opts.RawHeaders {
			names[i] = CleanHeader(h)
		} else {
			names[i] = Canonical(h)
		}
	}
	t := New("", uniqueHeaders(names))

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse: %w", err)
		}
		if isEmptyRow(rec) {
			continue
		}
		if len(rec) > len(names) {
			if !isEmptyRow(rec[len(names):]) {
				line, _ := cr.FieldPos(0)
				return nil, fmt.Errorf("line %d: %d fields, header has %d", line, len(rec), len(names))
			}
			rec = rec[:len(names)]
		}
		row := make(Row, len(rec))
		for i, v := range rec {
			row[i] = ParseCell(v)
		}
		t.Append(row)
	}
	return t, nil
}

func isEmptyRow(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
