package health

import "regexp"

// Rules applied by sanitizeErrorMessage, in order. URLs go before paths
// since they contain paths.
var sanitizeRules = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(?i)(password|token|secret|credential|key)[^a-zA-Z\s]*[:=][^,\s}]+`), "[REDACTED]"},
	{regexp.MustCompile(`(?i)\b(?:https?|wss?|nats)://[^\s]+`), "[URL]"},
	{regexp.MustCompile(`/[a-zA-Z0-9/_.-]+`), "[PATH]"},
	{regexp.MustCompile(`[A-Z]:\\[^:\s]+`), "[PATH]"},
	{regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`), "[IP]"},
	{regexp.MustCompile(`:\d{2,5}\b`), "[PORT]"},
}

// sanitizeErrorMessage strips URLs, paths, IP addresses, ports and
// credentials from err. /healthz is readable by anyone who reaches the
// gateway.
func sanitizeErrorMessage(err string) string {
	for _, rule := range sanitizeRules {
		err = rule.re.ReplaceAllString(err, rule.repl)
	}
	return err
}
