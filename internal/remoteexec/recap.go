package remoteexec

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// ErrNoRecap is returned when the engine output carries no PLAY RECAP block.
var ErrNoRecap = errors.New("no PLAY RECAP in ansible output")

const recapHeader = "PLAY RECAP"

var recapLine = regexp.MustCompile(`^(\S+)\s*:\s*ok=(\d+)\s+changed=(\d+)\s+unreachable=(\d+)\s+failed=(\d+)\s+skipped=(\d+)\s+rescued=(\d+)\s+ignored=(\d+)`)

// ParseRecap extracts per-host counters from ansible-playbook output. Only
// lines after the last PLAY RECAP header are considered. A recap without any
// recognisable host line yields an empty result, not an error. When a host
// is listed more than once the last line wins.
func ParseRecap(output string) ([]HostSummary, error) {
	idx := strings.LastIndex(output, recapHeader)
	if idx < 0 {
		return nil, ErrNoRecap
	}

	lines := strings.Split(output[idx:], "\n")
	byHost := make(map[string]int)
	var summaries []HostSummary
	for _, line := range lines[1:] {
		m := recapLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		s := HostSummary{
			Host:        m[1],
			OK:          atoi(m[2]),
			Changed:     atoi(m[3]),
			Unreachable: atoi(m[4]),
			Failed:      atoi(m[5]),
			Skipped:     atoi(m[6]),
			Rescued:     atoi(m[7]),
			Ignored:     atoi(m[8]),
		}
		if i, ok := byHost[s.Host]; ok {
			summaries[i] = s
			continue
		}
		byHost[s.Host] = len(summaries)
		summaries = append(summaries, s)
	}
	return summaries, nil
}

// atoi only sees \d+ matches; overflow saturates rather than failing.
func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return int(^uint(0) >> 1)
	}
	return n
}
