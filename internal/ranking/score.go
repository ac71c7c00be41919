package ranking

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxScore is the largest score a NUMERIC(3,1) column holds, in tenths.
const MaxScore Score = 999

var maxScore = decimal.New(int64(MaxScore), -1)

// Score is a fixed-point rating with one fractional digit, stored in tenths.
type Score int64

// RawScore keeps the score exactly as it appeared in the input document so that
// normalization errors surface as malformed records rather than decode failures.
type RawScore string

// UnmarshalJSON accepts numbers, strings, and null.
func (r *RawScore) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*r = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode score string: %w", err)
		}
		*r = RawScore(s)
	default:
		*r = RawScore(data)
	}
	return nil
}

// MarshalJSON emits the raw text as a JSON string, or null when absent.
func (r RawScore) MarshalJSON() ([]byte, error) {
	if r == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(r))
}

// ParseScore normalizes a raw score. Empty input and the literal "null" are zero;
// anything else must be a decimal in [0, 99.9], rounded half away from zero to tenths.
func ParseScore(raw string) (Score, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "null") {
		return 0, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("unparsable score %q: %w", raw, err)
	}
	if d.Sign() < 0 {
		return 0, fmt.Errorf("score %q is negative", raw)
	}
	d = d.Round(1)
	if d.Cmp(maxScore) > 0 {
		return 0, fmt.Errorf("score %q out of range", raw)
	}
	return Score(d.Shift(1).IntPart()), nil
}

// Float64 returns the score as a float.
func (s Score) Float64() float64 {
	return float64(s) / 10
}

// String formats the score with exactly one fractional digit.
func (s Score) String() string {
	sign := ""
	v := int64(s)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return sign + strconv.FormatInt(v/10, 10) + "." + strconv.FormatInt(v%10, 10)
}

// MarshalJSON emits the score as a JSON number.
func (s Score) MarshalJSON() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalJSON accepts a JSON number or string.
func (s *Score) UnmarshalJSON(data []byte) error {
	var raw RawScore
	if err := raw.UnmarshalJSON(data); err != nil {
		return err
	}
	v, err := ParseScore(string(raw))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
