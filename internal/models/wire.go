package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ID is an identifier as the foundation API emits it: sometimes a JSON number,
// sometimes a string. Numeric IDs are written back as numbers.
type ID string

// UnmarshalJSON accepts numbers, strings and null
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("invalid id: %w", err)
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON emits integer IDs as JSON numbers and everything else as strings
func (id ID) MarshalJSON() ([]byte, error) {
	if id.numeric() {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id ID) numeric() bool {
	if id == "" {
		return false
	}
	// Only canonical integers go out bare; "0042" or "+5" are not JSON numbers
	n, err := strconv.ParseInt(string(id), 10, 64)
	return err == nil && strconv.FormatInt(n, 10) == string(id)
}

// String returns the identifier text
func (id ID) String() string {
	return string(id)
}

// IsZero reports whether the identifier is unset
func (id ID) IsZero() bool {
	return id == ""
}

// Flag is a boolean stored as true/false, 0/1 or "0"/"1" depending on the
// backing database.
type Flag bool

// UnmarshalJSON accepts booleans, numbers and numeric or boolean strings
func (f *Flag) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	switch strings.ToLower(s) {
	case "", "null", "0", "false":
		*f = false
		return nil
	case "1", "true":
		*f = true
		return nil
	}
	return fmt.Errorf("invalid flag value %q", s)
}

// Amount is a stored price. The API returns prices as numbers, numeric
// strings, null, or occasionally free text; only numeric values define a price.
type Amount struct {
	raw string
	set bool
}

// AmountOf builds an Amount from its stored text form
func AmountOf(raw string) Amount {
	return Amount{raw: strings.TrimSpace(raw), set: true}
}

// Decimal returns the parsed price; ok is false when the amount is absent,
// null or not numeric.
func (a Amount) Decimal() (decimal.Decimal, bool) {
	if !a.set || a.raw == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(a.raw)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// Raw returns the stored text form
func (a Amount) Raw() string {
	return a.raw
}

// UnmarshalJSON keeps the raw text of numbers and strings
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = Amount{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("invalid amount: %w", err)
		}
		*a = AmountOf(s)
		return nil
	}
	*a = AmountOf(string(data))
	return nil
}

// MarshalJSON writes numeric amounts as numbers, other text as strings and
// absent amounts as null.
func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.set {
		return []byte("null"), nil
	}
	if d, ok := a.Decimal(); ok {
		return []byte(d.String()), nil
	}
	return json.Marshal(a.raw)
}
