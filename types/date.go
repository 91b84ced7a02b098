package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar day without a time-of-day or zone component.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar day t falls on in loc.
func DateOf(t time.Time, loc *time.Location) Date {
	if loc != nil {
		t = t.In(loc)
	}
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate accepts "2006-01-02" or an RFC 3339 timestamp. Timestamps are
// converted to loc before the calendar day is taken.
func ParseDate(value string, loc *time.Location) (Date, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Date{}, errors.New("empty date")
	}
	if t, err := time.Parse(dateLayout, value); err == nil {
		return DateOf(t, nil), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q", value)
	}
	return DateOf(t, loc), nil
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// Time returns midnight UTC of d.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// Before reports whether d is an earlier calendar day than other.
func (d Date) Before(other Date) bool {
	return d.Time().Before(other.Time())
}

// After reports whether d is a later calendar day than other.
func (d Date) After(other Date) bool {
	return d.Time().After(other.Time())
}

// AddDays returns the calendar day n days after d.
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n), time.UTC)
}

func (d Date) String() string {
	return d.Time().Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseDate(raw, time.UTC)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value stores the date as a SQL DATE.
func (d Date) Value() (driver.Value, error) {
	return d.Time(), nil
}

// Scan reads a SQL DATE. lib/pq returns DATE columns as time.Time at midnight UTC.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*d = DateOf(v, time.UTC)
		return nil
	case string:
		parsed, err := ParseDate(v, time.UTC)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case []byte:
		return d.Scan(string(v))
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
}
