package transcript

import (
	"strings"
	"time"

	"github.com/ethereum-optimism/infra/op-shunit/types"
)

const lineTerminator = "\n"

// Join glues fragments into logical lines. A line ends after a fragment that ends
// with a newline, or at the last fragment of the input. Each line carries the
// timestamp of its first fragment. Fragments are concatenated byte for byte.
func Join(fragments []types.LogLine) []types.JoinedLine {
	if len(fragments) == 0 {
		return nil
	}

	var (
		lines   []types.JoinedLine
		buf     strings.Builder
		first   time.Time
		pending bool
	)
	for i, fragment := range fragments {
		if !pending {
			first = fragment.Timestamp
			pending = true
		}
		buf.WriteString(fragment.Text)

		if strings.HasSuffix(fragment.Text, lineTerminator) || i == len(fragments)-1 {
			lines = append(lines, types.JoinedLine{Timestamp: first, Text: buf.String()})
			buf.Reset()
			pending = false
		}
	}
	return lines
}

// Text concatenates lines verbatim, terminators included.
func Text(lines []types.JoinedLine) string {
	var sb strings.Builder
	for _, line := range lines {
		sb.WriteString(line.Text)
	}
	return sb.String()
}

// Build returns the chronological transcript of a process's two streams.
func Build(stdout, stderr []types.LogLine) string {
	return Text(Join(Merge(stdout, stderr)))
}

// Concat returns the raw text of a single stream.
func Concat(fragments []types.LogLine) string {
	var sb strings.Builder
	for _, fragment := range fragments {
		sb.WriteString(fragment.Text)
	}
	return sb.String()
}
