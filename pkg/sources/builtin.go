package sources

import (
	"strings"

	"github.com/cuemby/hostsaccel/pkg/types"
)

// RemediationTarget is the CDN host the watchdog keeps reachable
const RemediationTarget = "objects.githubusercontent.com"

// Builtin returns the last-resort set used when every remote source and the
// emergency cache fail. It never contains the remediation target.
func Builtin() types.DomainIPSet {
	return types.DomainIPSet{
		"github.com":            {"20.205.243.166", "140.82.113.4"},
		"assets-cdn.github.com": {"185.199.108.153", "185.199.109.153"},
	}
}

// BuiltinAddresses returns the known addresses for one domain, including
// the remediation target
func BuiltinAddresses(domain string) []string {
	domain = strings.ToLower(domain)
	if domain == RemediationTarget {
		return []string{"185.199.111.133", "185.199.108.133", "185.199.110.133"}
	}
	return append([]string(nil), Builtin()[domain]...)
}
