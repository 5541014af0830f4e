package progress

import (
	"regexp"
	"strconv"
	"strings"
)

// "Receiving objects:  45% (9/20), 1.20 MiB | 2.00 MiB/s"
// "remote: Enumerating objects: 5, done."
var progressLine = regexp.MustCompile(`^(?:remote:\s*)?([A-Za-z][A-Za-z ]*?):\s+(?:(\d+)%\s*\((\d+)/(\d+)\)|(\d+))`)

//nolint:gochecknoglobals // lookup table
var stageByPhrase = map[string]Stage{
	"enumerating objects": StageEnumerating,
	"counting objects":    StageCounting,
	"compressing objects": StageCompressing,
	"receiving objects":   StageReceiving,
	"resolving deltas":    StageResolving,
	"writing objects":     StageWriting,
	"updating files":      StageUpdating,
	"checking out files":  StageUpdating,
}

// ParseLine recognizes one line of git --progress output. It returns false
// for lines that carry no progress information.
func ParseLine(line string) (Stage, Counters, bool) {
	m := progressLine.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return "", Counters{}, false
	}
	stage, ok := stageByPhrase[strings.ToLower(strings.TrimSpace(m[1]))]
	if !ok {
		return "", Counters{}, false
	}

	var c Counters
	if m[2] != "" {
		c.Percent, _ = strconv.Atoi(m[2])
		c.Current, _ = strconv.ParseInt(m[3], 10, 64)
		c.Total, _ = strconv.ParseInt(m[4], 10, 64)
	} else {
		c.Current, _ = strconv.ParseInt(m[5], 10, 64)
	}
	return stage, c, true
}
