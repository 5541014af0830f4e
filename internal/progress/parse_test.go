package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		line  string
		stage Stage
		c     Counters
		ok    bool
	}{
		{"Receiving objects:  45% (9/20), 1.20 MiB | 2.00 MiB/s", StageReceiving, Counters{Current: 9, Total: 20, Percent: 45}, true},
		{"Resolving deltas: 100% (4/4), done.", StageResolving, Counters{Current: 4, Total: 4, Percent: 100}, true},
		{"remote: Enumerating objects: 5, done.", StageEnumerating, Counters{Current: 5}, true},
		{"remote: Counting objects:  50% (1/2)", StageCounting, Counters{Current: 1, Total: 2, Percent: 50}, true},
		{"remote: Compressing objects: 100% (2/2), done.", StageCompressing, Counters{Current: 2, Total: 2, Percent: 100}, true},
		{"Writing objects:  33% (1/3)", StageWriting, Counters{Current: 1, Total: 3, Percent: 33}, true},
		{"Updating files:  80% (8/10)", StageUpdating, Counters{Current: 8, Total: 10, Percent: 80}, true},
		{"remote: Total 3 (delta 0), reused 0 (delta 0)", "", Counters{}, false},
		{"From github.com:o/r", "", Counters{}, false},
		{"Unpacking something: 10", "", Counters{}, false},
		{"", "", Counters{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			stage, c, ok := ParseLine(tt.line)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.stage, stage)
			assert.Equal(t, tt.c, c)
		})
	}
}
