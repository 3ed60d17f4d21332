package sftp

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandleFormatIsFixedWidthDecimal(t *testing.T) {
	var h handleTable
	f, err := os.CreateTemp(t.TempDir(), "h")
	require.NoError(t, err)
	defer f.Close()

	handle := h.allocFile(f)
	require.Len(t, handle, maxHandleDigits)
	for _, c := range handle {
		require.True(t, c >= '0' && c <= '9')
	}
	i, ok := parseHandle(handle)
	require.True(t, ok)
	require.GreaterOrEqual(t, i+1, 1)
	require.LessOrEqual(t, i+1, maxHandles)
}

func TestHandleRejectedOnMalformedInput(t *testing.T) {
	var h handleTable
	f, err := os.CreateTemp(t.TempDir(), "h")
	require.NoError(t, err)
	defer f.Close()
	valid := h.allocFile(f)
	_ = valid

	cases := []string{
		"1",    // wrong length
		"1a",   // non-digit
		"00",   // value 0
		"999",  // wrong length (and > maxHandles)
		"100",  // > maxHandles once parsed as 3 digits (also wrong length)
		"98",   // in-range but never allocated -> Free slot
	}
	for _, c := range cases {
		_, ok := parseHandle(c)
		// Only "98" parses as a slot index; every other case is rejected.
		require.Equal(t, c == "98", ok, "parseHandle(%q)", c)
		// "98" must still resolve to nothing useful because the slot is Free.
		require.Nil(t, h.file(c))
	}
}

func TestHandleExhaustion(t *testing.T) {
	var h handleTable
	dir := t.TempDir()
	var files []*os.File
	for i := 0; i < maxHandles; i++ {
		f, err := os.CreateTemp(dir, "h")
		require.NoError(t, err)
		files = append(files, f)
		handle := h.allocFile(f)
		require.NotEqual(t, "", handle)
	}
	extra, err := os.CreateTemp(dir, "h")
	require.NoError(t, err)
	defer extra.Close()
	handle := h.allocFile(extra)
	require.Equal(t, "", handle, "table should be exhausted")

	for _, f := range files {
		_ = f.Close()
	}
}

func TestReleaseFreesSlotEvenOnCloseError(t *testing.T) {
	var h handleTable
	f, err := os.CreateTemp(t.TempDir(), "h")
	require.NoError(t, err)
	handle := h.allocFile(f)
	require.NoError(t, f.Close()) // closing early makes the slot's Close error
	found, _ := h.release(handle)
	require.True(t, found)
	require.Nil(t, h.file(handle))
}

func TestReleaseOfInvalidHandleReportsNotFound(t *testing.T) {
	var h handleTable
	found, err := h.release("00")
	require.False(t, found)
	require.NoError(t, err)
}
