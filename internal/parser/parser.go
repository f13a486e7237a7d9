// Package parser decodes uploaded spreadsheet files into raw string grids.
package parser

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/dashloom-cli/internal/table"
)

// Parser decodes one file format into one or more raw tables.
type Parser interface {
	CanParse(filename string) bool
	Parse(filename string, r io.Reader) ([]table.RawTable, error)
}

var registry []Parser

// Register adds a parser implementation to the registry.
func Register(p Parser) {
	registry = append(registry, p)
}

// ErrUnsupported indicates no registered parser handles the file extension.
var ErrUnsupported = errors.New("unsupported file format")

// ParseFile opens path and decodes it with the first parser that accepts its name.
func ParseFile(path string) ([]table.RawTable, error) {
	p := lookup(path)
	if p == nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrUnsupported)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()
	return p.Parse(filepath.Base(path), f)
}

// ParseReader decodes r, choosing the parser from filename.
func ParseReader(filename string, r io.Reader) ([]table.RawTable, error) {
	p := lookup(filename)
	if p == nil {
		return nil, fmt.Errorf("%s: %w", filename, ErrUnsupported)
	}
	return p.Parse(filepath.Base(filename), r)
}

// Supported reports whether some parser accepts filename.
func Supported(filename string) bool { return lookup(filename) != nil }

func lookup(filename string) Parser {
	for _, p := range registry {
		if p.CanParse(filename) {
			return p
		}
	}
	return nil
}

// tableName strips the extension from a file base name.
func tableName(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func trimCells(row []string) []string {
	out := make([]string, len(row))
	for i, c := range row {
		out[i] = strings.TrimSpace(c)
	}
	return out
}

func init() {
	Register(csvParser{})
	Register(xlsxParser{})
}
