package email

import "regexp"

// addressPattern matches local-part@domain.tld, where the top-level segment
// is at least two letters. Anchored at both ends, so trailing junk after a
// valid-looking prefix is rejected.
var addressPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// IsValidAddress reports whether s looks like an email address. This is a
// syntax check only. No DNS lookups, no mailbox checks.
func IsValidAddress(s string) bool {
	return addressPattern.MatchString(s)
}

// InvalidAddresses returns the members of addrs that fail IsValidAddress, in
// their original order.
func InvalidAddresses(addrs ...string) []string {
	var bad []string
	for _, a := range addrs {
		if !IsValidAddress(a) {
			bad = append(bad, a)
		}
	}
	return bad
}
