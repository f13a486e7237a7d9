package parser

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/KaramelBytes/dashloom-cli/internal/table"
)

type csvParser struct{}

func (csvParser) CanParse(filename string) bool {
	name := strings.ToLower(filename)
	return strings.HasSuffix(name, ".csv") || strings.HasSuffix(name, ".tsv")
}

func (csvParser) Parse(filename string, r io.Reader) ([]table.RawTable, error) {
	var delim rune
	if strings.HasSuffix(strings.ToLower(filename), ".tsv") {
		delim = '\t'
	}
	t, err := ParseCSV(r, tableName(filename), delim)
	if err != nil {
		return nil, err
	}
	return []table.RawTable{t}, nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseCSV reads delimited text into one RawTable. A zero delim is sniffed from
// the first non-blank line. Cells are trimmed and blank lines dropped.
func ParseCSV(r io.Reader, name string, delim rune) (table.RawTable, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	data, err := io.ReadAll(br)
	if err != nil {
		return table.RawTable{}, fmt.Errorf("read csv: %w", err)
	}
	if delim == 0 {
		delim = sniffDelimiter(data)
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	cr.Comma = delim

	grid := make([][]string, 0)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return table.RawTable{}, fmt.Errorf("read csv: %w", err)
		}
		row := trimCells(rec)
		if len(row) == 1 && row[0] == "" {
			continue
		}
		grid = append(grid, row)
	}
	return table.RawTable{ID: "csv-" + uuid.NewString(), Name: name, Grid: grid}, nil
}

// sniffDelimiter picks the most frequent of , ; and tab outside quotes on the
// first non-blank line. Ties and no hits fall back to comma.
func sniffDelimiter(data []byte) rune {
	line := ""
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) != "" {
			line = sc.Text()
			break
		}
	}
	counts := map[rune]int{}
	inQuote := false
	for _, c := range line {
		switch {
		case c == '"':
			inQuote = !inQuote
		case !inQuote && (c == ',' || c == ';' || c == '\t'):
			counts[c]++
		}
	}
	best := ','
	for _, c := range []rune{';', '\t'} {
		if counts[c] > counts[best] {
			best = c
		}
	}
	return best
}
