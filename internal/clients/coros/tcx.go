package coros

import "regexp"

// COROS TCX exports carry a bare <Speed> inside <Extensions>; Garmin expects
// the ns3:TPX wrapping. The rewrite is idempotent: already-wrapped extensions
// no longer match the bare pattern.
var tcxSpeedPattern = regexp.MustCompile(`<Extensions>\s*<Speed>([^<]+)</Speed>\s*</Extensions>`)

// FixTCXExtensions rewrites bare speed extensions into the namespaced form
// the sink accepts. Non-TCX payloads pass through unchanged because the
// pattern cannot occur in them.
func FixTCXExtensions(content []byte) []byte {
	return tcxSpeedPattern.ReplaceAll(content, []byte(`<Extensions><ns3:TPX><ns3:Speed>$1</ns3:Speed></ns3:TPX></Extensions>`))
}
