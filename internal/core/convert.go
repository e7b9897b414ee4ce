package core

// convert.go converts source text to PostgreSQL values.
//
// Survey sheets are exported from spreadsheets by hand, so the converters
// accept the common spellings for dates, timestamps and booleans. Numbers
// are read strictly: a decimal comma or unit suffix is rejected rather than
// guessed at.
//
// All ToPg* functions return pgtype values with Valid=false for empty or
// unparsable input. Coerce turns an unparsable non-empty value into an error.

import (
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// numericRegex matches integers, decimals and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would land more than this many years in the future are
// moved to the previous century.
var TwoDigitYearPivot = 20

// Date layouts split by year format for proper 2-digit year handling.
// ISO comes first; sampling dates are most often written that way.
var (
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02", "20060102",
		"2/1/2006", "02/01/2006", "2.1.2006", "02.01.2006", "2-1-2006", "02-01-2006",
		"Jan 2, 2006", "2 Jan 2006",
	}
	twoDigitYearLayouts = []string{
		"2/1/06", "02/01/06", "2.1.06", "02.01.06",
	}
	timestampLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04:05Z07:00",
		"2006-01-02T15:04",
		"2006-01-02 15:04",
	}
)

// ToPgText converts a string to pgtype.Text.
// Returns invalid if the string is empty or only whitespace.
func ToPgText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// ToPgDate converts a string to pgtype.Date.
// A full timestamp is accepted and truncated to its date.
func ToPgDate(s string) pgtype.Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Date{Valid: false}
	}

	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return pgtype.Date{Time: t, Valid: true}
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return pgtype.Date{Time: t, Valid: true}
		}
	}

	if ts, ok := parseTimestamp(s); ok {
		y, m, d := ts.Date()
		return pgtype.Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), Valid: true}
	}
	return pgtype.Date{Valid: false}
}

// ToPgTimestamp converts a string to pgtype.Timestamp. A bare date is
// midnight. Zone offsets are applied and the result stored as UTC wall time.
func ToPgTimestamp(s string) pgtype.Timestamp {
	s = strings.TrimSpace(s)
	if t, ok := parseTimestamp(s); ok {
		return pgtype.Timestamp{Time: t.UTC(), Valid: true}
	}
	if d := ToPgDate(s); d.Valid {
		return pgtype.Timestamp{Time: d.Time, Valid: true}
	}
	return pgtype.Timestamp{Valid: false}
}

// ToPgTimestamptz converts a string to pgtype.Timestamptz. Values without a
// zone are taken as UTC.
func ToPgTimestamptz(s string) pgtype.Timestamptz {
	ts := ToPgTimestamp(s)
	return pgtype.Timestamptz{Time: ts.Time, Valid: ts.Valid}
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ToPgNumeric converts a string to pgtype.Numeric.
func ToPgNumeric(s string) pgtype.Numeric {
	s = strings.TrimSpace(s)
	if !numericRegex.MatchString(s) {
		return pgtype.Numeric{Valid: false}
	}
	if strings.ContainsAny(s, "eE") {
		// Numeric.Scan takes plain decimals only.
		f, ok := new(big.Float).SetString(s)
		if !ok {
			return pgtype.Numeric{Valid: false}
		}
		s = f.Text('f', -1)
	}
	var n pgtype.Numeric
	if err := n.Scan(s); err != nil {
		return pgtype.Numeric{Valid: false}
	}
	return n
}

// ToPgInt8 converts a string to pgtype.Int8. Integral decimals such as
// "12.0" are accepted; spreadsheets write counts that way.
func ToPgInt8(s string) pgtype.Int8 {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return pgtype.Int8{Int64: n, Valid: true}
	}
	if !numericRegex.MatchString(s) {
		return pgtype.Int8{Valid: false}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int64(f)) {
		return pgtype.Int8{Valid: false}
	}
	return pgtype.Int8{Int64: int64(f), Valid: true}
}

// ToPgFloat8 converts a string to pgtype.Float8.
func ToPgFloat8(s string) pgtype.Float8 {
	s = strings.TrimSpace(s)
	if !numericRegex.MatchString(s) {
		return pgtype.Float8{Valid: false}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return pgtype.Float8{Valid: false}
	}
	return pgtype.Float8{Float64: f, Valid: true}
}

// ToPgBool converts a string to pgtype.Bool.
// Accepts various representations: true/false, yes/no, t/f, y/n, 1/0.
func ToPgBool(s string) pgtype.Bool {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "true", "t", "yes", "y", "1":
		return pgtype.Bool{Bool: true, Valid: true}
	case "false", "f", "no", "n", "0":
		return pgtype.Bool{Bool: false, Valid: true}
	default:
		return pgtype.Bool{Valid: false}
	}
}

// ToPgUUID converts a string to pgtype.UUID.
// Returns invalid if the string is empty or not a valid UUID.
func ToPgUUID(s string) pgtype.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return pgtype.UUID{Valid: false}
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}
}
