package checkpoint

import "errors"

// RemoveOutcome records what happened to one artifact during Remove.
type RemoveOutcome struct {
	Artifact Artifact
	Path     string
	// Err is nil when the artifact was deleted.
	Err error
}

// RemoveResult reports a best-effort removal. Only artifacts that were
// found and attempted appear in Outcomes.
type RemoveResult struct {
	Vertex   string
	Outcomes []RemoveOutcome
}

// Removed returns the artifacts that were deleted.
func (r RemoveResult) Removed() []Artifact {
	var out []Artifact
	for _, o := range r.Outcomes {
		if o.Err == nil {
			out = append(out, o.Artifact)
		}
	}
	return out
}

// Failed returns the number of attempted deletions that failed.
func (r RemoveResult) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}

// Err joins every per-artifact failure, or returns nil.
func (r RemoveResult) Err() error {
	var errs []error
	for _, o := range r.Outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return errors.Join(errs...)
}

// Remove deletes the checkpoint artifacts of vertex.
//
// If the final artifact exists only it is deleted and the partial
// artifacts are left untouched. Otherwise the segment-0 and part
// artifacts are each deleted if present. Missing files are not an error
// and failures never stop the remaining deletions.
func (l *Layout) Remove(vertex string) RemoveResult {
	result := RemoveResult{Vertex: vertex}
	if err := ValidateVertexName(vertex); err != nil {
		result.Outcomes = append(result.Outcomes, RemoveOutcome{Artifact: ArtifactFinal, Err: err})
		return result
	}

	if l.Exists(vertex, ArtifactFinal) {
		result.Outcomes = append(result.Outcomes, l.remove(vertex, ArtifactFinal))
		return result
	}
	for _, a := range []Artifact{ArtifactSegment0, ArtifactPart} {
		if l.Exists(vertex, a) {
			result.Outcomes = append(result.Outcomes, l.remove(vertex, a))
		}
	}
	return result
}

func (l *Layout) remove(vertex string, a Artifact) RemoveOutcome {
	path := l.Path(vertex, a)
	return RemoveOutcome{Artifact: a, Path: path, Err: l.fs.Remove(path)}
}
