package core

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Reader streams the records of one input file. Each call to Records reopens
// the file, so a Reader can be iterated more than once.
type Reader struct {
	Kind    Kind
	Path    string
	Columns []string

	// Progress, when set, receives the percentage of the file consumed after
	// each record.
	Progress func(pct int)
}

// NewReader returns a reader for def's file under dir.
func NewReader(dir string, def EntityDefinition) *Reader {
	return &Reader{
		Kind:    def.Kind,
		Path:    resolvePath(dir, def.File),
		Columns: def.Columns(),
	}
}

// Records yields every non-blank data row in file order. Iteration stops after
// the first error; the error is yielded with a zero Record.
func (r *Reader) Records(ctx context.Context) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		f, err := os.Open(r.Path)
		if err != nil {
			yield(Record{}, r.malformed(0, 0, "cannot open input file", err))
			return
		}
		defer f.Close()

		var size int64
		if info, err := f.Stat(); err == nil {
			size = info.Size()
		}
		src := newCountingSource(f, size)

		cr := csv.NewReader(src)
		cr.FieldsPerRecord = -1 // column count is checked per row for a better error
		cr.LazyQuotes = true

		header, err := r.readHeader(cr)
		if err != nil {
			yield(Record{}, err)
			return
		}

		row := 0
		for {
			if err := ctx.Err(); err != nil {
				yield(Record{}, err)
				return
			}

			cells, err := cr.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				var line int
				var pe *csv.ParseError
				if errors.As(err, &pe) {
					line = pe.Line
				}
				yield(Record{}, r.malformed(row+1, line, "invalid csv", err))
				return
			}
			line, _ := cr.FieldPos(0)
			if isBlankRow(cells) {
				continue
			}

			row++
			if len(cells) != len(header) {
				yield(Record{}, &MalformedRecordError{
					Kind:   r.Kind,
					File:   r.Path,
					Row:    row,
					Line:   line,
					Reason: fmt.Sprintf("expected %d columns, found %d", len(header), len(cells)),
				})
				return
			}

			fields := make(map[string]string, len(header))
			for i, col := range header {
				fields[col] = sanitizeCell(cells[i])
			}

			if r.Progress != nil {
				r.Progress(src.Percent())
			}
			if !yield(Record{Row: row, Line: line, Fields: fields}, nil) {
				return
			}
		}
	}
}

// readHeader reads the first non-blank row and checks it names the expected
// columns in order. Matching ignores case and surrounding whitespace.
func (r *Reader) readHeader(cr *csv.Reader) ([]string, error) {
	for {
		cells, err := cr.Read()
		if err == io.EOF {
			return nil, r.malformed(0, 0, "file has no header row", nil)
		}
		if err != nil {
			return nil, r.malformed(0, 0, "invalid csv header", err)
		}
		if isBlankRow(cells) {
			continue
		}

		if len(cells) != len(r.Columns) {
			return nil, r.malformed(0, 0, fmt.Sprintf("header has %d columns, expected %s",
				len(cells), strings.Join(r.Columns, ",")), nil)
		}
		for i, want := range r.Columns {
			if !strings.EqualFold(strings.TrimSpace(cells[i]), want) {
				return nil, r.malformed(0, 0, fmt.Sprintf("header column %d is %q, expected %q",
					i+1, cells[i], want), nil)
			}
		}
		return r.Columns, nil
	}
}

func (r *Reader) malformed(row, line int, reason string, err error) error {
	return &MalformedRecordError{
		Kind:   r.Kind,
		File:   r.Path,
		Row:    row,
		Line:   line,
		Reason: reason,
		Err:    err,
	}
}

func isBlankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// sanitizeCell trims whitespace and replaces invalid UTF-8, which the store
// would otherwise reject at insert time.
func sanitizeCell(s string) string {
	return strings.ToValidUTF8(strings.TrimSpace(s), "\uFFFD")
}

func resolvePath(dir, file string) string {
	if filepath.IsAbs(file) || dir == "" {
		return file
	}
	return filepath.Join(dir, file)
}
