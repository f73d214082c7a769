package utils

import (
	"regexp"
	"strings"
)

var dsnPasswordRegex = regexp.MustCompile(`(:)([^:@]+)(@)`)

func MaskDSN(dsn string) string {
	return dsnPasswordRegex.ReplaceAllString(dsn, ":***@")
}

// MaskEmail keeps enough of an address to identify the principal in logs
// without reproducing it verbatim.
func MaskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok {
		return Mask(email)
	}
	return Mask(local) + "@" + domain
}

// Mask shows at most the first two characters of a secret-ish value.
func Mask(v string) string {
	if len(v) <= 2 {
		return "***"
	}
	return v[:2] + "***"
}
