package model

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// dateLayouts are the accepted input formats, tried in order.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Date is a point in time that accepts both full timestamps and plain
// calendar dates ("2024-01-01") in JSON. It is always rendered as RFC 3339.
type Date struct {
	time.Time
}

// NewDate wraps t, normalized to UTC.
func NewDate(t time.Time) *Date {
	return &Date{Time: t.UTC()}
}

// Now returns the current time as a *Date.
func Now() *Date {
	return NewDate(time.Now())
}

// ParseDate parses s using any of the accepted layouts.
func ParseDate(s string) (Date, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Date{Time: t.UTC()}, nil
		}
	}
	return Date{}, fmt.Errorf("invalid date %q", s)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Time.UTC().Format(time.RFC3339Nano))
}

// UnmarshalJSON reads an empty string as the zero Date. Normalize on the
// owning record turns zero dates into nil.
func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if strings.TrimSpace(s) == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// present returns nil for a missing or zero date.
func present(d *Date) *Date {
	if d == nil || d.IsZero() {
		return nil
	}
	return d
}

func cloneDate(d *Date) *Date {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

// Value stores the date as a UTC timestamp.
func (d Date) Value() (driver.Value, error) {
	return d.Time.UTC(), nil
}

// Scan reads DATETIME columns, which the driver may hand back as
// time.Time or as text depending on how the value was written.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		d.Time = v.UTC()
		return nil
	case string:
		parsed, err := ParseDate(v)
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
