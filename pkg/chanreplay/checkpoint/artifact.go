package checkpoint

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/randalmurphal/chanreplay/pkg/chanreplay/transfer"
	"github.com/spf13/afero"
)

// ErrVersionMismatch indicates an envelope was written with an
// incompatible format version.
var ErrVersionMismatch = errors.New("checkpoint envelope version mismatch")

// WriteArtifact writes envs to path as JSON lines, replacing any existing
// file. Missing parent directories are created.
func WriteArtifact(fs afero.Fs, path string, envs []transfer.Envelope) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create checkpoint directory: %w", err)
	}

	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("create artifact: %w", err)
	}

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for i, env := range envs {
		if env.Version == 0 {
			env.Version = transfer.EnvelopeVersion
		}
		if err := enc.Encode(&env); err != nil {
			f.Close()
			return fmt.Errorf("encode envelope %d: %w", i, err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flush artifact: %w", err)
	}
	return f.Close()
}

// DecodeArtifact reads JSON-lines envelopes from r and calls fn for each
// in order. Decoding stops at the first error from fn.
func DecodeArtifact(r io.Reader, fn func(transfer.Envelope) error) error {
	dec := json.NewDecoder(bufio.NewReader(r))
	for n := 0; ; n++ {
		var env transfer.Envelope
		err := dec.Decode(&env)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("decode envelope %d: %w", n, err)
		}
		if env.Version != transfer.EnvelopeVersion {
			return fmt.Errorf("%w: envelope %d has version %d, want %d",
				ErrVersionMismatch, n, env.Version, transfer.EnvelopeVersion)
		}
		if err := fn(env); err != nil {
			return err
		}
	}
}

// ReadArtifact opens path on fs and decodes it with DecodeArtifact.
func ReadArtifact(fs afero.Fs, path string, fn func(transfer.Envelope) error) error {
	f, err := fs.Open(path)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()
	return DecodeArtifact(f, fn)
}
