package domain

import "time"

// Well-known setting keys.
const (
	// SettingServiceEnabled gates whether the delivery worker may send.
	// Ingestion keeps filling the queue regardless of this flag.
	SettingServiceEnabled = "service_enabled"

	// SettingLastCleanupAt marks the janitor's last successful run
	// (RFC 3339, UTC).
	SettingLastCleanupAt = "last_cleanup_at"
)

// Setting is a single operator-controlled key/value pair.
type Setting struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}
