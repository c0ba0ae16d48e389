package translator

import "regexp"

var timestampTypePattern = regexp.MustCompile(`\bTIMESTAMP_?(?:NTZ|LTZ|TZ)?\b`)

const timezoneTimestampType = "TIMESTAMP_TZ"

// RewriteTimestampTypes maps every upper-case TIMESTAMP family type to
// TIMESTAMP_TZ. Lower-case identifiers are left alone. Applying it to its own
// output changes nothing.
func RewriteTimestampTypes(sql string) string {
	return timestampTypePattern.ReplaceAllString(sql, timezoneTimestampType)
}
