package main

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTurnsFromLines(t *testing.T) {
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	lines := linesFromSlice([]string{"q1\ta1", "", "  \tignored", "q2"})

	docs := slices.Collect(turnsFromLines(lines, "u1", "s1", start))
	require.Len(t, docs, 2)
	assert.Equal(t, "q1", docs[0].Question)
	assert.Equal(t, "a1", docs[0].Content)
	assert.Equal(t, "q2", docs[1].Question)
	assert.Empty(t, docs[1].Content)
	assert.Equal(t, start.Add(time.Second), docs[1].Timestamp)
	assert.NotEqual(t, docs[0].ID, docs[1].ID)
}

func TestLinesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "turns.tsv")
	require.NoError(t, os.WriteFile(path, []byte("a\tb\nc\td\n"), 0644))

	seq, err := linesFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a\tb", "c\td"}, slices.Collect(seq))

	_, err = linesFromFile(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestSeedCommand(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "", "seed", "--user", "u1", "--session", "s1", "--batch-size", "4")
	require.NoError(t, err)
	assert.Contains(t, out, "Seeded 18 turns for u1/s1")

	out, err = h.run(t, "", "history", "--user", "u1", "--session", "s1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Question: What is the capital of France?\n"))

	_, err = h.run(t, "", "seed", "--batch-size", "0")
	assert.Error(t, err)
}
