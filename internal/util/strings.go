package util

// redactPrefixLength is how much of a credential survives in log output
const redactPrefixLength = 8

// RedactToken returns a log-safe form of a token or authorization code. Long values keep a short prefix so
// log lines can be correlated with storage; values too short to hide a
// remainder are replaced entirely.
func RedactToken(token string) string {
	switch {
	case token == "":
		return ""
	case len(token) <= 2*redactPrefixLength:
		return "[redacted]"
	}
	return token[:redactPrefixLength] + "..."
}
