package sources

import (
	"bufio"
	"net"
	"strings"

	"github.com/cuemby/hostsaccel/pkg/types"
)

// ParseHosts extracts (address, domain) pairs from hosts-format text.
//
// A line is an entry when it is non-empty, does not start with '#', has at
// least two whitespace-separated fields and its second field contains
// keyword, compared case-insensitively. The first field must parse as an IP
// address. Domains are lowercased and duplicate addresses dropped; address
// order follows the text.
func ParseHosts(text, keyword string) types.DomainIPSet {
	set := make(types.DomainIPSet)
	keyword = strings.ToLower(keyword)

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		domain := strings.ToLower(fields[1])
		if !strings.Contains(domain, keyword) {
			continue
		}
		ip := net.ParseIP(fields[0])
		if ip == nil {
			continue
		}

		set.Add(domain, ip.String())
	}

	return set
}

// exclude returns set without the listed domains
func exclude(set types.DomainIPSet, domains []string) types.DomainIPSet {
	if len(domains) == 0 {
		return set
	}
	out := make(types.DomainIPSet, len(set))
	for domain, addrs := range set {
		if excluded(domain, domains) {
			continue
		}
		out[domain] = addrs
	}
	return out
}

func excluded(domain string, domains []string) bool {
	for _, d := range domains {
		if strings.Contains(domain, strings.ToLower(d)) {
			return true
		}
	}
	return false
}
