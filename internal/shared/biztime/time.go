// Package biztime centralizes time handling. All storage and transport use
// UTC; the only non-UTC concern is the gateway password timestamp, which is
// generated in the gateway's local timezone (Nairobi).
package biztime

import (
	"fmt"
	"sync"
	"time"
)

const (
	// GatewayTimezone is the timezone the gateway expects password
	// timestamps to be generated in.
	GatewayTimezone = "Africa/Nairobi"
)

var (
	gwLocation     *time.Location
	gwLocationOnce sync.Once
	initErr        error
)

// Init loads the gateway timezone. Called once at startup; subsequent calls
// are no-ops.
func Init(tz string) error {
	gwLocationOnce.Do(func() {
		if tz == "" {
			tz = GatewayTimezone
		}
		gwLocation, initErr = time.LoadLocation(tz)
	})
	return initErr
}

// GatewayLocation returns the gateway timezone location, auto-initializing
// with the default if Init was never called.
func GatewayLocation() *time.Location {
	if gwLocation == nil {
		if err := Init(""); err != nil {
			panic(fmt.Sprintf("biztime: failed to load gateway timezone: %v", err))
		}
	}
	return gwLocation
}

// NowUTC returns current time in UTC.
func NowUTC() time.Time {
	return time.Now().UTC()
}

// ToUTC converts a time (any timezone) to UTC.
func ToUTC(t time.Time) time.Time {
	return t.UTC()
}

// FormatMetadataTime formats a UTC time for storage in metadata using RFC3339.
func FormatMetadataTime(t time.Time) string {
	return t.Format(time.RFC3339)
}

// ParseMetadataTime parses a timestamp from metadata string (RFC3339 format).
func ParseMetadataTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid metadata timestamp format %q: %w", s, err)
	}
	return t, nil
}
