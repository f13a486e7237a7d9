package table

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind tags the dynamic type held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindText
	KindNumber
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	default:
		return "null"
	}
}

// Value is one cell of a merged or typed row set: null, text, or a finite number.
// The zero Value is null.
type Value struct {
	kind Kind
	text string
	num  float64
}

// Null returns the null Value.
func Null() Value { return Value{} }

// Text wraps a string cell.
func Text(s string) Value { return Value{kind: KindText, text: s} }

// Number wraps a numeric cell.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsBlank reports whether v is null or text that trims to nothing.
func (v Value) IsBlank() bool {
	switch v.kind {
	case KindNull:
		return true
	case KindText:
		return strings.TrimSpace(v.text) == ""
	}
	return false
}

// String renders the value the way join keys and group keys compare it.
// Numbers use the shortest decimal form, so Number(5) and Text("5") agree.
func (v Value) String() string {
	switch v.kind {
	case KindText:
		return v.text
	case KindNumber:
		return FormatNumber(v.num)
	}
	return ""
}

// Float returns the numeric reading of v. Text is parsed with ParseNumber.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindText:
		return ParseNumber(v.text)
	}
	return 0, false
}

// FloatOrZero is Float with non-numeric and null values read as 0.
func (v Value) FloatOrZero() float64 {
	f, ok := v.Float()
	if !ok {
		return 0
	}
	return f
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindText:
		return json.Marshal(v.text)
	case KindNumber:
		return json.Marshal(v.num)
	}
	return []byte("null"), nil
}

func (v *Value) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*v = Null()
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = Text(s)
	case 't', 'f':
		var x bool
		if err := json.Unmarshal(b, &x); err != nil {
			return err
		}
		*v = Text(strconv.FormatBool(x))
	default:
		var f float64
		if err := json.Unmarshal(b, &f); err != nil {
			return fmt.Errorf("cell value: %w", err)
		}
		*v = Number(f)
	}
	return nil
}

// ParseNumber reads s as a finite number. Surrounding whitespace is ignored;
// blank input, NaN and infinities are rejected. 0x/0o/0b integer literals are
// accepted.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		if !hasRadixPrefix(s) {
			return 0, false
		}
		n, ierr := strconv.ParseInt(s, 0, 64)
		if ierr != nil {
			return 0, false
		}
		f = float64(n)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func hasRadixPrefix(s string) bool {
	if len(s) < 3 || s[0] != '0' {
		return false
	}
	switch s[1] {
	case 'x', 'X', 'o', 'O', 'b', 'B':
		return true
	}
	return false
}

// FormatNumber renders f in its shortest round-tripping decimal form, switching
// to exponent notation only for very large or very small magnitudes.
func FormatNumber(f float64) string {
	abs := math.Abs(f)
	if abs != 0 && (abs >= 1e21 || abs < 1e-6) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
