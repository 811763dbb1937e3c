package daraja

import (
	"encoding/base64"
	"time"

	"github.com/pesaflow/pesaflow/internal/shared/biztime"
)

// timestampLayout is the gateway's expected format: fixed-width,
// second-resolution, zero-padded calendar timestamp (YYYYMMDDHHmmss).
const timestampLayout = "20060102150405"

// Timestamp formats an instant in the gateway's timezone as the 14-character
// password timestamp.
func Timestamp(t time.Time) string {
	return t.In(biztime.GatewayLocation()).Format(timestampLayout)
}

// ParseTimestamp parses a password timestamp back into an instant in the
// gateway timezone. Useful for verification; the gateway never sends one.
func ParseTimestamp(s string) (time.Time, error) {
	return time.ParseInLocation(timestampLayout, s, biztime.GatewayLocation())
}

// Password derives the per-request authentication material for the push
// endpoint: base64 of shortcode+passkey+timestamp. Pure function of its
// inputs, no hidden state.
func Password(shortcode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortcode + passkey + timestamp))
}
