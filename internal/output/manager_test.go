package output

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerSummary(t *testing.T) {
	var buf bytes.Buffer
	m := newManagerTo(&buf)

	ok := m.RegisterTask("a.bin")
	bad := m.RegisterTask("b.bin")
	m.SetProgress(ok, 512, 1024)
	m.Complete(ok, "")
	m.ReportError(bad, errors.New("connection reset"))

	m.ShowSummary()
	out := buf.String()
	assert.Contains(t, out, "Completed 1 of 2")
	assert.Contains(t, out, "Failed 1 of 2")
	assert.Contains(t, out, "connection reset")
	assert.Contains(t, out, "b.bin")
}

func TestManagerSortTasks(t *testing.T) {
	m := newManagerTo(&bytes.Buffer{})
	waiting := m.RegisterTask("w")
	running := m.RegisterTask("r")
	done := m.RegisterTask("d")
	m.SetMessage(running, "Downloading r")
	m.Complete(done, "")

	active, pending, completed := m.sortTasks()
	require.Len(t, active, 1)
	require.Len(t, pending, 1)
	require.Len(t, completed, 1)
	assert.Equal(t, running, active[0].ID)
	assert.Equal(t, waiting, pending[0].ID)
	assert.Equal(t, done, completed[0].ID)
}

func TestManagerProgressLine(t *testing.T) {
	m := newManagerTo(&bytes.Buffer{})
	id := m.RegisterTask("x")
	m.SetProgress(id, 1000, 2000)
	require.Len(t, m.outputs[id].StreamLines, 1)
	assert.Contains(t, m.outputs[id].StreamLines[0], "50.0%")
	assert.Contains(t, m.outputs[id].StreamLines[0], "1.0 kB / 2.0 kB")
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "0 B/s", FormatSpeed(100, 0))
	assert.Equal(t, "1.0 kB/s", FormatSpeed(2000, 2))
	assert.InDelta(t, 100.0, Percent(0, 0), 0.001)
	assert.InDelta(t, 25.0, Percent(1, 4), 0.001)
}
