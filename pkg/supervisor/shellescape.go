package supervisor

import "strings"

// ShellEscape wraps s in single quotes, escaping any interior single
// quote as '\''. Every field interpolated into a detached-spawn shell
// command must be passed through this — the unescaped path is an
// injection bug (see the fixed two-copy discrepancy this is grounded on).
func ShellEscape(s string) string {
	if s == "" {
		return "''"
	}
	escaped := strings.ReplaceAll(s, "'", `'\''`)
	return "'" + escaped + "'"
}
