package join

import "strings"

// Kind selects which unmatched rows a join step keeps.
type Kind string

const (
	Inner Kind = "INNER"
	Left  Kind = "LEFT"
	Right Kind = "RIGHT"
	Full  Kind = "FULL"
)

// Kinds lists the join kinds in display order.
var Kinds = []Kind{Inner, Left, Right, Full}

// ParseKind reads a join kind case-insensitively. "outer" and "full_outer" are
// accepted for FULL; anything unrecognised is INNER.
func ParseKind(s string) Kind {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LEFT", "LEFT_OUTER":
		return Left
	case "RIGHT", "RIGHT_OUTER":
		return Right
	case "FULL", "OUTER", "FULL_OUTER":
		return Full
	default:
		return Inner
	}
}

func (k *Kind) UnmarshalText(b []byte) error {
	*k = ParseKind(string(b))
	return nil
}

func (k Kind) keepsLeft() bool  { return k == Left || k == Full }
func (k Kind) keepsRight() bool { return k == Right || k == Full }

// Spec configures one step of the join fold. LeftKey may be qualified
// ("orders.id") or bare, in which case it binds to LeftTableID's table.
type Spec struct {
	ID           string `json:"id"`
	LeftTableID  string `json:"leftTableId"`
	RightTableID string `json:"rightTableId"`
	LeftKey      string `json:"leftKey"`
	RightKey     string `json:"rightKey"`
	Kind         Kind   `json:"type"`
}

// ResolveLeftKey returns key verbatim when it already names a table, otherwise
// qualifies it with tableName.
func ResolveLeftKey(tableName, key string) string {
	if strings.Contains(key, ".") {
		return key
	}
	return Qualify(tableName, key)
}

// Qualify builds the merged column name for column of tableName.
func Qualify(tableName, column string) string {
	return tableName + "." + column
}
