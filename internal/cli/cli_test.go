package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/randalmurphal/chanreplay/pkg/chanreplay/checkpoint"
	"github.com/randalmurphal/chanreplay/pkg/chanreplay/history"
	"github.com/randalmurphal/chanreplay/pkg/chanreplay/transfer"
)

// run executes the root command with args and returns its stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRoot()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeArtifact(t *testing.T, path string, source string, seqs ...int64) {
	t.Helper()
	envs := make([]transfer.Envelope, 0, len(seqs))
	for _, s := range seqs {
		envs = append(envs, transfer.NewEnvelope(source, "out", s, []byte("payload")))
	}
	require.NoError(t, checkpoint.WriteArtifact(afero.NewOsFs(), path, envs))
}

func TestRoot_Subcommands(t *testing.T) {
	root := NewRoot()
	for _, name := range []string{"status", "replay", "remove", "history"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
		assert.NotNil(t, cmd.RunE)
		assert.NotEmpty(t, cmd.Short)
	}
}

func TestRoot_UnknownOutput(t *testing.T) {
	_, err := run(t, "status", "-d", t.TempDir(), "-o", "xml", "v1")
	assert.ErrorContains(t, err, "unknown output format")
}

func TestStatus(t *testing.T) {
	dir := t.TempDir()
	layout := checkpoint.NewLayout(afero.NewOsFs(), dir)
	writeArtifact(t, layout.Path("done", checkpoint.ArtifactFinal), "done", 1)
	writeArtifact(t, layout.SegmentPath("half", 0), "half", 1)

	out, err := run(t, "status", "-d", dir, "-o", "json", "done", "half", "none")
	require.NoError(t, err)

	var got []StatusOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, []StatusOutput{
		{Vertex: "done", State: "complete", Complete: true},
		{Vertex: "half", State: "partial", Partial: true},
		{Vertex: "none", State: "absent"},
	}, got)
}

func TestStatus_InvalidVertex(t *testing.T) {
	_, err := run(t, "status", "-d", t.TempDir(), "../etc")
	assert.ErrorIs(t, err, checkpoint.ErrInvalidVertexName)
}

func TestReplay_RecordsHistory(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(t.TempDir(), "history.db")
	layout := checkpoint.NewLayout(afero.NewOsFs(), dir)
	writeArtifact(t, layout.Path("v1", checkpoint.ArtifactFinal), "v1", 1, 2)
	writeArtifact(t, layout.SegmentPath("v2", 0), "v2", 7)

	out, err := run(t, "replay", "-d", dir, "--history", db, "-o", "yaml", "--timeout", "5s", "v1", "v2")
	require.NoError(t, err)

	var got []EnvelopeOutput
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	assert.ElementsMatch(t, []EnvelopeOutput{
		{Source: "v1", Channel: "out", Sequence: 1, Bytes: 7},
		{Source: "v1", Channel: "out", Sequence: 2, Bytes: 7},
		{Source: "v2", Channel: "out", Sequence: 7, Bytes: 7},
	}, got)

	out, err = run(t, "history", "--history", db, "-o", "json", "v1")
	require.NoError(t, err)
	var entries []history.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, history.StatusStarted, entries[0].Status)
	assert.Equal(t, history.StatusFinished, entries[1].Status)
	assert.True(t, entries[0].Complete)

	_, err = run(t, "history", "--history", db, "--clear", "v1")
	require.NoError(t, err)
	out, err = run(t, "history", "--history", db, "-o", "json", "v1")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)
}

func TestHistory_NotConfigured(t *testing.T) {
	_, err := run(t, "history", "v1")
	assert.ErrorIs(t, err, ErrNoHistory)
}

func TestRemove(t *testing.T) {
	dir := t.TempDir()
	fs := afero.NewOsFs()
	layout := checkpoint.NewLayout(fs, dir)
	writeArtifact(t, layout.Path("v1", checkpoint.ArtifactFinal), "v1", 1)
	writeArtifact(t, layout.SegmentPath("v1", 0), "v1", 1)

	out, err := run(t, "remove", "-d", dir, "-o", "json", "v1")
	require.NoError(t, err)

	var got []RemoveOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)
	assert.Equal(t, []string{"final"}, got[0].Removed)
	assert.False(t, layout.HasComplete("v1"))
	assert.True(t, layout.HasPartial("v1"))
}

func TestRemove_InvalidVertex(t *testing.T) {
	_, err := run(t, "remove", "-d", t.TempDir(), "a/b")
	assert.ErrorIs(t, err, checkpoint.ErrInvalidVertexName)
}
