package types

import "time"

// LogLine is a fragment of output read from one of a script's streams in a single
// read. It is not guaranteed to be a whole line: a read may return a partial line
// or a line may span two reads.
type LogLine struct {
	Timestamp time.Time // When the read completed
	Text      string
}

// JoinedLine is a logical line reassembled from one or more fragments. Its timestamp
// is the capture time of the first fragment that contributed to it.
type JoinedLine struct {
	Timestamp time.Time
	Text      string
}
