// Package catalog loads the semicolon-delimited product dataset.
package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Row is one raw catalog record as read from the dataset file. All fields are
// strings; price parsing happens during corpus build, where rows with an
// unparseable price are dropped.
type Row struct {
	Name        string
	Description string
	Category    string
	Price       string
	Link        string
}

// columns are the required dataset columns. Column order in the file does not
// matter; the header decides the mapping.
var columns = []string{"name", "description", "category", "price", "link"}

// MalformedRowError reports a dataset row or header that does not match the
// expected schema. It is fatal to a corpus build.
type MalformedRowError struct {
	Line int
	Err  error
}

func (e *MalformedRowError) Error() string {
	return fmt.Sprintf("malformed catalog row at line %d: %v", e.Line, e.Err)
}

func (e *MalformedRowError) Unwrap() error { return e.Err }

// LoadFile reads catalog rows from the dataset file at path.
func LoadFile(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return ParseReader(f)
}

// ParseReader reads catalog rows from r. The first record is the header and
// must contain the name, description, category, price and link columns.
// Records with a column count different from the header produce a
// MalformedRowError.
func ParseReader(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.Comma = ';'

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &MalformedRowError{Line: 1, Err: errors.New("dataset is empty")}
	}
	if err != nil {
		return nil, &MalformedRowError{Line: 1, Err: err}
	}

	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, col := range columns {
		if _, ok := index[col]; !ok {
			return nil, &MalformedRowError{Line: 1, Err: fmt.Errorf("missing column %q", col)}
		}
	}

	var rows []Row
	line := 1
	for {
		record, err := cr.Read()
		line++
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &MalformedRowError{Line: line, Err: err}
		}
		rows = append(rows, Row{
			Name:        record[index["name"]],
			Description: record[index["description"]],
			Category:    record[index["category"]],
			Price:       record[index["price"]],
			Link:        record[index["link"]],
		})
	}
	return rows, nil
}

// WriteRows writes rows to w in the dataset format, header first.
func WriteRows(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	if err := cw.Write(columns); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{r.Name, r.Description, r.Category, r.Price, r.Link}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
