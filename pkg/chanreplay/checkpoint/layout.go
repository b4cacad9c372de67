// Package checkpoint implements the on-disk naming convention for channel
// checkpoints and the queries and cleanup built on it.
//
// Every artifact of a vertex lives directly in one configured directory and
// is named checkpoint_<vertex>_<suffix>:
//
//	checkpoint_<vertex>_final   complete checkpoint
//	checkpoint_<vertex>_0       first published segment of a partial checkpoint
//	checkpoint_<vertex>_<n>     later published segments
//	checkpoint_<vertex>_part    segment currently being written
//
// Writers publish a segment by writing the part file and renaming it to the
// next segment number, so a numbered segment is always fully written.
package checkpoint

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// MetadataPrefix is the fixed prefix of every checkpoint artifact name.
const MetadataPrefix = "checkpoint"

// ErrInvalidVertexName indicates a vertex renders to a name that cannot be
// embedded in a file name.
var ErrInvalidVertexName = errors.New("invalid vertex name for checkpoint artifact")

// Artifact identifies one of the classified checkpoint files of a vertex.
type Artifact int

const (
	// ArtifactFinal marks a fully materialized checkpoint.
	ArtifactFinal Artifact = iota
	// ArtifactSegment0 is the first published segment of a partial checkpoint.
	ArtifactSegment0
	// ArtifactPart is the in-progress segment marker.
	ArtifactPart
)

// String returns the artifact's file name suffix.
func (a Artifact) String() string {
	switch a {
	case ArtifactFinal:
		return "final"
	case ArtifactSegment0:
		return "0"
	case ArtifactPart:
		return "part"
	default:
		return "unknown"
	}
}

// State is the completeness classification of a vertex's artifacts.
type State int

const (
	// StateAbsent means no classified artifact exists.
	StateAbsent State = iota
	// StatePartial means a segment-0 or part artifact exists but no final one.
	StatePartial
	// StateComplete means the final artifact exists.
	StateComplete
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StatePartial:
		return "partial"
	case StateComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Layout resolves checkpoint artifact paths under one directory.
// It holds no mutable state and is safe for concurrent use.
type Layout struct {
	fs  afero.Fs
	dir string
}

// NewLayout creates a layout rooted at dir on fs.
// A nil fs selects the OS filesystem; an empty dir selects os.TempDir().
func NewLayout(fs afero.Fs, dir string) *Layout {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if dir == "" {
		dir = os.TempDir()
	}
	return &Layout{fs: fs, dir: dir}
}

// Dir returns the checkpoint directory.
func (l *Layout) Dir() string {
	return l.dir
}

// FS returns the filesystem artifacts are read from.
func (l *Layout) FS() afero.Fs {
	return l.fs
}

// ValidateVertexName reports whether name can be embedded in an artifact
// file name.
func ValidateVertexName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty", ErrInvalidVertexName)
	case strings.ContainsAny(name, `/\`+"\x00"):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidVertexName, name)
	case strings.Contains(name, ".."):
		return fmt.Errorf("%w: %q contains ..", ErrInvalidVertexName, name)
	}
	return nil
}

// Name returns the artifact file name for vertex with the given suffix.
func Name(vertex, suffix string) string {
	return MetadataPrefix + "_" + vertex + "_" + suffix
}

// Path returns the full path of artifact a for vertex.
func (l *Layout) Path(vertex string, a Artifact) string {
	return filepath.Join(l.dir, Name(vertex, a.String()))
}

// SegmentPath returns the full path of the n-th published segment.
func (l *Layout) SegmentPath(vertex string, n int) string {
	return filepath.Join(l.dir, Name(vertex, strconv.Itoa(n)))
}

// Exists reports whether artifact a exists for vertex. Any error while
// checking, including an unusable vertex name, counts as absence.
func (l *Layout) Exists(vertex string, a Artifact) bool {
	if ValidateVertexName(vertex) != nil {
		return false
	}
	return l.exists(l.Path(vertex, a))
}

func (l *Layout) exists(path string) bool {
	ok, err := afero.Exists(l.fs, path)
	return err == nil && ok
}

// HasComplete reports whether the final artifact exists for vertex.
func (l *Layout) HasComplete(vertex string) bool {
	return l.Exists(vertex, ArtifactFinal)
}

// HasPartial reports whether the segment-0 or part artifact exists for
// vertex. It does not look at the final artifact.
func (l *Layout) HasPartial(vertex string) bool {
	return l.Exists(vertex, ArtifactSegment0) || l.Exists(vertex, ArtifactPart)
}

// Classify returns the three-way state for vertex. Complete takes
// precedence over partial.
func (l *Layout) Classify(vertex string) State {
	switch {
	case l.HasComplete(vertex):
		return StateComplete
	case l.HasPartial(vertex):
		return StatePartial
	default:
		return StateAbsent
	}
}
