package events

// Device types stored on page views and sessions.
const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
)

// Defaults used when a classifier input is missing or unrecognized.
const (
	UnknownBrowser = "Unknown"
	UnknownOS      = "Unknown"
	UnknownCountry = "Unknown"
)

// MaxPagePathLength bounds stored paths; longer paths are truncated.
const MaxPagePathLength = 2048
