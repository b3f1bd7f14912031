package importer

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Row maps lower-cased column names to trimmed values.
type Row map[string]string

// Record is a Row along with the 1-based line it starts at in the source.
type Record struct {
	Line int
	Row  Row
}

// Table is the parsed form of an import file.
type Table struct {
	Header  []string // lower-cased, blank cells dropped
	Records []Record
}

// Rows returns the rows of the table, in input order.
func (t Table) Rows() []Row {
	rows := make([]Row, 0, len(t.Records))
	for _, rec := range t.Records {
		rows = append(rows, rec.Row)
	}
	return rows
}

var (
	ErrNoRows            = errors.New("file contains no data rows")
	ErrNoSheets          = errors.New("workbook has no worksheet")
	ErrUnterminatedQuote = errors.New("unterminated quoted field")
)

// ParseError is a fatal error: the input cannot be tokenized into rows.
type ParseError struct {
	Line int // 0 if unknown
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse error on line %d: %v", e.Line, e.Err)
	}
	return "parse error: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse parses comma separated text whose first record is the header.
func Parse(text string) ([]Row, error) {
	return ParseReader(strings.NewReader(text))
}

func ParseReader(r io.Reader) ([]Row, error) {
	tbl, err := ParseTable(r)
	if err != nil {
		return nil, err
	}
	return tbl.Rows(), nil
}

// ParseTable reads comma separated text. A leading byte order mark is dropped
// (UTF-16 input carrying one is decoded), "" escapes a quote inside a quoted field,
// and LF or CRLF end a record. Unterminated quotes yield a *ParseError.
// Empty or whitespace-only input yields an empty Table.
func ParseTable(r io.Reader) (Table, error) {
	decoder := transform.Chain(unicode.BOMOverride(unicode.UTF8.NewDecoder()), norm.NFC)
	rr := newRecordReader(transform.NewReader(r, decoder))

	var b tableBuilder
	for {
		fields, line, err := rr.read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Table{}, &ParseError{Line: line, Err: err}
		}
		b.add(line, fields)
	}
	return b.tbl, nil
}

// recordReader splits comma separated text into records.
// Blanks between a closing quote and the next delimiter are allowed, text after them is
// kept as is, and a quote inside an unquoted field is a literal character.
type recordReader struct {
	r    *bufio.Reader
	line int // newlines consumed so far
	done bool
}

func newRecordReader(r io.Reader) *recordReader {
	return &recordReader{r: bufio.NewReader(r)}
}

func (rr *recordReader) peek() byte {
	b, err := rr.r.Peek(1)
	if err != nil {
		return 0
	}
	return b[0]
}

// read returns the next record and the line it starts on, or io.EOF once the input is consumed.
func (rr *recordReader) read() ([]string, int, error) {
	if rr.done {
		return nil, 0, io.EOF
	}
	start := rr.line + 1

	var (
		fields []string
		field  strings.Builder
		quoted bool
	)
	leading := true // only blanks read so far in this field
	empty := true   // nothing read for this record
	for {
		c, _, err := rr.r.ReadRune()
		if err == io.EOF {
			rr.done = true
			if quoted {
				return nil, start, ErrUnterminatedQuote
			}
			if empty {
				return nil, 0, io.EOF
			}
			return append(fields, field.String()), start, nil
		}
		if err != nil {
			return nil, start, err
		}
		empty = false

		if quoted {
			switch {
			case c == '"' && rr.peek() == '"':
				_, _, _ = rr.r.ReadRune()
				field.WriteRune('"')
			case c == '"':
				quoted = false
			case c == '\r' && rr.peek() == '\n':
				// CRLF inside quotes is read as LF
			case c == '\n':
				rr.line++
				field.WriteRune(c)
			default:
				field.WriteRune(c)
			}
			continue
		}

		switch {
		case c == ',':
			fields = append(fields, field.String())
			field.Reset()
			leading = true
		case c == '\n':
			rr.line++
			return append(fields, field.String()), start, nil
		case c == '\r' && rr.peek() == '\n':
			// the LF ends the record
		case c == '"' && leading:
			field.Reset()
			quoted = true
			leading = false
		case c == ' ' || c == '\t':
			field.WriteRune(c)
		default:
			field.WriteRune(c)
			leading = false
		}
	}
}

// ParseXLSX reads the first worksheet of an xlsx workbook with the same header and row rules as ParseTable.
func ParseXLSX(r io.Reader) (Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Table{}, &ParseError{Err: err}
	}
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return Table{}, &ParseError{Err: ErrNoSheets}
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return Table{}, &ParseError{Err: err}
	}

	var b tableBuilder
	for i, cells := range rows {
		for j := range cells {
			cells[j] = norm.NFC.String(cells[j])
		}
		b.add(i+1, cells)
	}
	return b.tbl, nil
}

type tableBuilder struct {
	tbl  Table
	keys []string // column index -> header name; "" for ignored columns
	seen bool     // header read
}

func (b *tableBuilder) add(line int, fields []string) {
	if isBlank(fields) {
		return
	}
	if !b.seen {
		b.seen = true
		b.keys = make([]string, len(fields))
		b.tbl.Header = make([]string, 0, len(fields))
		taken := make(map[string]bool, len(fields))
		for i, f := range fields {
			key := strings.ToLower(strings.TrimSpace(f))
			if key == "" || taken[key] {
				continue
			}
			taken[key] = true
			b.keys[i] = key
			b.tbl.Header = append(b.tbl.Header, key)
		}
		return
	}

	row := make(Row, len(b.tbl.Header))
	for _, key := range b.tbl.Header {
		row[key] = ""
	}
	for i, f := range fields {
		if i >= len(b.keys) {
			break
		}
		if key := b.keys[i]; key != "" {
			row[key] = strings.TrimSpace(f)
		}
	}
	b.tbl.Records = append(b.tbl.Records, Record{Line: line, Row: row})
}

func isBlank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// WriteCSV writes header and rows in the format read by ParseTable.
func WriteCSV(w io.Writer, header []string, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return errors.Wrap(err, "writing header")
	}
	record := make([]string, len(header))
	for _, row := range rows {
		for i, key := range header {
			record[i] = row[strings.ToLower(key)]
		}
		if err := cw.Write(record); err != nil {
			return errors.Wrap(err, "writing row")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flushing csv")
}
