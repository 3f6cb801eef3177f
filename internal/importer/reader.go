package importer

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"github.com/cleared-dev/tally/internal/format"
)

// Record is one data row read from a statement, or the reason it could not
// be read.
type Record struct {
	Num int // 1-based data row number
	Row format.Row
	Err *RowError
}

// Decode converts data from the given encoding to UTF-8 and drops a leading
// byte order mark. An empty encoding means UTF-8.
func Decode(data []byte, encoding string) ([]byte, error) {
	enc := strings.ToLower(strings.TrimSpace(encoding))
	if enc != "" && enc != "utf-8" && enc != "utf8" {
		e, err := htmlindex.Get(enc)
		if err != nil {
			return nil, fmt.Errorf("unsupported encoding %q: %w", encoding, err)
		}
		out, _, err := transform.Bytes(e.NewDecoder(), data)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", encoding, err)
		}
		data = out
	}
	return bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")), nil
}

// ReadRecords decodes data per cfg, skips the preamble and resolves the
// header. Column references are checked against a header read from the
// file. Records whose cells are all blank are ignored.
func ReadRecords(cfg *format.FormatConfig, data []byte) (*format.Header, []Record, error) {
	text, err := Decode(data, cfg.Encoding)
	if err != nil {
		return nil, nil, err
	}

	br := bufio.NewReader(bytes.NewReader(text))
	for i := 0; i < cfg.HeaderSkipLines; i++ {
		if _, err := br.ReadString('\n'); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, nil, fmt.Errorf("file has fewer than %d preamble lines", cfg.HeaderSkipLines)
			}
			return nil, nil, fmt.Errorf("skipping preamble: %w", err)
		}
	}

	cr := csv.NewReader(br)
	cr.Comma = cfg.Delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = false

	var header *format.Header
	if cfg.Header != nil {
		header = format.NewHeader(cfg.Header)
	} else {
		names, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil, nil, errors.New("file has no header row")
		}
		if err != nil {
			return nil, nil, fmt.Errorf("reading header: %w", err)
		}
		header = format.NewHeader(names)
		if err := cfg.CheckHeader(header); err != nil {
			return nil, nil, err
		}
	}

	var records []Record
	num := 0
	for {
		cells, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				return nil, nil, fmt.Errorf("reading CSV: %w", err)
			}
			num++
			records = append(records, Record{Num: num, Err: &RowError{Row: num, Reason: MalformedRow, Detail: pe.Err.Error()}})
			continue
		}
		if blank(cells) {
			continue
		}
		num++
		records = append(records, Record{Num: num, Row: format.Row{Header: header, Cells: cells}})
	}
	return header, records, nil
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
