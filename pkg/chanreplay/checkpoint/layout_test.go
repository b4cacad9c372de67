package checkpoint_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/randalmurphal/chanreplay/pkg/chanreplay/checkpoint"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDir = "/checkpoints"

// touch creates an empty artifact for vertex.
func touch(t *testing.T, fs afero.Fs, layout *checkpoint.Layout, vertex string, a checkpoint.Artifact) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, layout.Path(vertex, a), nil, 0o644))
}

func newLayout(t *testing.T) (afero.Fs, *checkpoint.Layout) {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll(testDir, 0o755))
	return fs, checkpoint.NewLayout(fs, testDir)
}

func TestNewLayout_Defaults(t *testing.T) {
	layout := checkpoint.NewLayout(nil, "")

	assert.Equal(t, os.TempDir(), layout.Dir())
	assert.IsType(t, &afero.OsFs{}, layout.FS())
}

func TestLayout_Paths(t *testing.T) {
	layout := checkpoint.NewLayout(afero.NewMemMapFs(), testDir)

	tests := []struct {
		artifact checkpoint.Artifact
		want     string
	}{
		{checkpoint.ArtifactFinal, "checkpoint_V1_final"},
		{checkpoint.ArtifactSegment0, "checkpoint_V1_0"},
		{checkpoint.ArtifactPart, "checkpoint_V1_part"},
	}

	for _, tt := range tests {
		t.Run(tt.artifact.String(), func(t *testing.T) {
			assert.Equal(t, filepath.Join(testDir, tt.want), layout.Path("V1", tt.artifact))
		})
	}

	assert.Equal(t, filepath.Join(testDir, "checkpoint_V1_3"), layout.SegmentPath("V1", 3))
	assert.Equal(t, layout.Path("V1", checkpoint.ArtifactSegment0), layout.SegmentPath("V1", 0))
}

func TestValidateVertexName(t *testing.T) {
	tests := []struct {
		name    string
		vertex  string
		wantErr bool
	}{
		{"plain", "V1", false},
		{"hex", "9f86d081884c7d659a2feaa0c55ad015", false},
		{"empty", "", true},
		{"slash", "a/b", true},
		{"backslash", `a\b`, true},
		{"dotdot", "..", true},
		{"nul", "a\x00b", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkpoint.ValidateVertexName(tt.vertex)
			if tt.wantErr {
				assert.ErrorIs(t, err, checkpoint.ErrInvalidVertexName)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLayout_HasComplete(t *testing.T) {
	fs, layout := newLayout(t)

	assert.False(t, layout.HasComplete("V1"))

	touch(t, fs, layout, "V1", checkpoint.ArtifactFinal)
	assert.True(t, layout.HasComplete("V1"))

	// No caching: removal is observed immediately.
	require.NoError(t, fs.Remove(layout.Path("V1", checkpoint.ArtifactFinal)))
	assert.False(t, layout.HasComplete("V1"))
}

func TestLayout_HasPartial(t *testing.T) {
	tests := []struct {
		name      string
		artifacts []checkpoint.Artifact
		want      bool
	}{
		{"none", nil, false},
		{"segment0 only", []checkpoint.Artifact{checkpoint.ArtifactSegment0}, true},
		{"part only", []checkpoint.Artifact{checkpoint.ArtifactPart}, true},
		{"both", []checkpoint.Artifact{checkpoint.ArtifactSegment0, checkpoint.ArtifactPart}, true},
		{"final only", []checkpoint.Artifact{checkpoint.ArtifactFinal}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs, layout := newLayout(t)
			for _, a := range tt.artifacts {
				touch(t, fs, layout, "V1", a)
			}
			assert.Equal(t, tt.want, layout.HasPartial("V1"))
		})
	}
}

func TestLayout_Classify(t *testing.T) {
	fs, layout := newLayout(t)

	assert.Equal(t, checkpoint.StateAbsent, layout.Classify("V1"))

	touch(t, fs, layout, "V1", checkpoint.ArtifactPart)
	assert.Equal(t, checkpoint.StatePartial, layout.Classify("V1"))

	touch(t, fs, layout, "V1", checkpoint.ArtifactFinal)
	assert.Equal(t, checkpoint.StateComplete, layout.Classify("V1"))

	// Other vertices are unaffected.
	assert.Equal(t, checkpoint.StateAbsent, layout.Classify("V2"))
}

func TestLayout_InaccessibleCountsAsAbsent(t *testing.T) {
	layout := checkpoint.NewLayout(afero.NewMemMapFs(), "/does/not/exist")

	assert.False(t, layout.HasComplete("V1"))
	assert.False(t, layout.HasPartial("V1"))
	assert.False(t, layout.Exists("../V1", checkpoint.ArtifactFinal))
}

func TestLayout_OnDisk(t *testing.T) {
	dir := t.TempDir()
	layout := checkpoint.NewLayout(nil, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "checkpoint_V1_final"), nil, 0o644))
	assert.True(t, layout.HasComplete("V1"))
	assert.False(t, layout.HasPartial("V1"))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "absent", checkpoint.StateAbsent.String())
	assert.Equal(t, "partial", checkpoint.StatePartial.String())
	assert.Equal(t, "complete", checkpoint.StateComplete.String())
	assert.Equal(t, "unknown", checkpoint.State(42).String())
	assert.Equal(t, "unknown", checkpoint.Artifact(42).String())
}
