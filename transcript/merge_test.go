package transcript

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-shunit/types"
)

func TestMergeStdoutFirstOnTies(t *testing.T) {
	ts := at(0)
	merged := Merge(
		[]types.LogLine{{Timestamp: ts, Text: "x"}},
		[]types.LogLine{{Timestamp: ts, Text: "y"}},
	)

	require.Equal(t, []types.LogLine{
		{Timestamp: ts, Text: "x"},
		{Timestamp: ts, Text: "y"},
	}, merged)
}

func TestMergeOrdersByTimestamp(t *testing.T) {
	stdout := []types.LogLine{
		{Timestamp: at(1), Text: "o1"},
		{Timestamp: at(3), Text: "o3"},
	}
	stderr := []types.LogLine{
		{Timestamp: at(0), Text: "e0"},
		{Timestamp: at(2), Text: "e2"},
		{Timestamp: at(3), Text: "e3"},
	}

	merged := Merge(stdout, stderr)

	var texts []string
	for _, l := range merged {
		texts = append(texts, l.Text)
	}
	require.Equal(t, []string{"e0", "o1", "e2", "o3", "e3"}, texts)
}

func TestMergeDoesNotModifyInputs(t *testing.T) {
	stdout := []types.LogLine{{Timestamp: at(5), Text: "late"}}
	stderr := []types.LogLine{{Timestamp: at(1), Text: "early"}}

	_ = Merge(stdout, stderr)

	require.Equal(t, "late", stdout[0].Text)
	require.Equal(t, "early", stderr[0].Text)
}

func TestMergeEmpty(t *testing.T) {
	require.Empty(t, Merge(nil, nil))

	only := []types.LogLine{{Timestamp: at(0), Text: "a"}}
	require.Equal(t, only, Merge(only, nil))
	require.Equal(t, only, Merge(nil, only))
}

func TestMergeTimestampsAreNonDecreasing(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	stream := func(n int) []types.LogLine {
		var lines []types.LogLine
		ts := base
		for i := 0; i < n; i++ {
			ts = ts.Add(time.Duration(rng.Intn(3)) * time.Millisecond)
			lines = append(lines, types.LogLine{Timestamp: ts, Text: "l"})
		}
		return lines
	}

	for i := 0; i < 50; i++ {
		stdout := stream(rng.Intn(40))
		stderr := stream(rng.Intn(40))

		merged := Merge(stdout, stderr)

		require.Len(t, merged, len(stdout)+len(stderr))
		for j := 1; j < len(merged); j++ {
			require.False(t, merged[j].Timestamp.Before(merged[j-1].Timestamp),
				"timestamps must not decrease at index %d", j)
		}
	}
}
