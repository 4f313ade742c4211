package core

// preview.go summarizes a selected CSV so the operator can check it is the
// right export before sending it. A preview never rejects a file: content
// that does not parse as CSV simply has no preview.

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
)

// maxPreviewRows is how many data rows a preview keeps.
const maxPreviewRows = 5

// Preview is the header and first rows of a CSV file.
type Preview struct {
	Columns   []string   `json:"columns"`
	Rows      [][]string `json:"rows"`
	TotalRows int        `json:"total_rows"`
	Delimiter string     `json:"delimiter"`
}

// BuildPreview parses content as CSV. The first record is the header; Excel
// exports from Spanish locales use ';' so the delimiter is sniffed from it.
// Empty content yields an empty preview.
func BuildPreview(content []byte) (*Preview, error) {
	content = bytes.TrimPrefix(content, bomUTF8)

	delim := sniffDelimiter(content)
	r := csv.NewReader(bytes.NewReader(content))
	r.Comma = delim
	r.FieldsPerRecord = -1

	p := &Preview{Delimiter: string(delim)}
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if p.Columns == nil {
			p.Columns = rec
			continue
		}
		p.TotalRows++
		if len(p.Rows) < maxPreviewRows {
			p.Rows = append(p.Rows, rec)
		}
	}
	return p, nil
}

// sniffDelimiter picks ';' when the first line has more semicolons than
// commas, ',' otherwise.
func sniffDelimiter(content []byte) rune {
	line := content
	if i := bytes.IndexByte(content, '\n'); i >= 0 {
		line = content[:i]
	}
	if bytes.Count(line, []byte{';'}) > bytes.Count(line, []byte{','}) {
		return ';'
	}
	return ','
}
