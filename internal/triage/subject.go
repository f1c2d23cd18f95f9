package triage

import "regexp"

// listPrefixes matches the run of bracketed tags mailing lists prepend to a
// subject, e.g. "[PATCH v2 3/5] " or "[libcamera-devel] [PATCH] ".
var listPrefixes = regexp.MustCompile(`^(\[.*?\] *)+`)

// NormalizeSubject strips leading bracketed list and patch tags so the rest
// can be matched against commit titles.
func NormalizeSubject(subject string) string {
	return listPrefixes.ReplaceAllString(subject, "")
}
