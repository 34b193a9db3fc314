package hosts

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cuemby/hostsaccel/pkg/types"
)

const (
	// StartMarker opens the managed block
	StartMarker = "# GitHubAccelerator Block"

	// EndMarker closes the managed block
	EndMarker = "# End Block"

	// addressColumn is the width the address is padded to in a block line
	addressColumn = 16
)

// blockSpans returns the [start, end) offsets of every managed block. Each
// end marker closes the nearest start marker before it, so a stray start
// marker never pulls the lines after it into the following block.
func blockSpans(content string) [][2]int {
	var spans [][2]int
	pos := 0
	for {
		end := strings.Index(content[pos:], EndMarker)
		if end < 0 {
			return spans
		}
		end += pos

		start := strings.LastIndex(content[pos:end], StartMarker)
		if start >= 0 {
			spans = append(spans, [2]int{pos + start, end + len(EndMarker)})
		}
		pos = end + len(EndMarker)
	}
}

// ExtractManagedBlock removes every managed block from content and trims
// trailing whitespace. Content without a block is only trimmed.
func ExtractManagedBlock(content string) string {
	var b strings.Builder
	last := 0
	for _, span := range blockSpans(content) {
		b.WriteString(content[last:span[0]])
		last = span[1]
	}
	b.WriteString(content[last:])
	return strings.TrimRightFunc(b.String(), unicode.IsSpace)
}

// ManagedBlock returns the first managed block in content, markers included
func ManagedBlock(content string) (string, bool) {
	spans := blockSpans(content)
	if len(spans) == 0 {
		return "", false
	}
	return content[spans[0][0]:spans[0][1]], true
}

// RenderBlock generates the managed block for set. Domains are emitted in
// lexical order and addresses in rank order, so equal sets render identically.
func RenderBlock(set types.RankedIPSet) string {
	var sb strings.Builder
	sb.WriteString(StartMarker)
	sb.WriteString("\n")

	for _, domain := range set.Domains() {
		for _, addr := range set[domain] {
			sb.WriteString(fmt.Sprintf("%-*s %s\n", addressColumn-1, addr, domain))
		}
	}

	sb.WriteString(EndMarker)
	return sb.String()
}

// ParseBlock reads the (address, domain) pairs back out of a managed block
func ParseBlock(block string) types.RankedIPSet {
	set := types.RankedIPSet{}
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		for _, domain := range fields[1:] {
			set[domain] = append(set[domain], fields[0])
		}
	}
	return set
}

// Compose joins an already stripped prefix and a rendered block into a full
// hosts file
func Compose(prefix, block string) string {
	if prefix == "" {
		return block + "\n"
	}
	return prefix + "\n\n" + block + "\n"
}

// RemoveDomainEntries drops unmanaged lines that map domain, leaving every
// other line untouched
func RemoveDomainEntries(content, domain string) string {
	lines := strings.Split(content, "\n")
	kept := lines[:0]
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && !strings.HasPrefix(trimmed, "#") {
			fields := strings.Fields(trimmed)
			if len(fields) == 2 && strings.EqualFold(fields[1], domain) {
				continue
			}
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
