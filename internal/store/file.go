package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/loykin/frpdeck/internal/profile"
)

// ReadSetFile decodes a profile set from a JSON document in the config.json
// layout. A missing file yields an empty set.
func ReadSetFile(path string) (profile.Set, error) {
	// #nosec G304 path is operator configuration
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return profile.Set{}, nil
		}
		return profile.Set{}, fmt.Errorf("%w: read %s: %w", ErrIO, path, err)
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return profile.Set{}, nil
	}
	var set profile.Set
	if err := json.Unmarshal(b, &set); err != nil {
		return profile.Set{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return set, nil
}

// WriteSetFile writes set as indented JSON through a temp file and rename so
// readers never observe a partial document.
func WriteSetFile(path string, set profile.Set) error {
	if set.Servers == nil {
		set.Servers = []profile.Profile{}
	}
	data, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	tmpPath := tmp.Name()
	_, werr := tmp.Write(append(data, '\n'))
	cerr := tmp.Close()
	if werr == nil {
		werr = cerr
	}
	if werr == nil {
		werr = os.Chmod(tmpPath, 0o600)
	}
	if werr == nil {
		werr = os.Rename(tmpPath, path)
	}
	if werr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: write %s: %w", ErrIO, path, werr)
	}
	return nil
}

// Export writes the stored set to path.
func Export(ctx context.Context, st Store, path string) error {
	set, err := st.Load(ctx)
	if err != nil {
		return err
	}
	return WriteSetFile(path, set)
}

// Import replaces the stored set with the document at path after validation.
// A missing file is an error here, unlike ReadSetFile.
func Import(ctx context.Context, st Store, path string) (profile.Set, error) {
	if _, err := os.Stat(path); err != nil {
		return profile.Set{}, fmt.Errorf("%w: %w", ErrIO, err)
	}
	set, err := ReadSetFile(path)
	if err != nil {
		return profile.Set{}, err
	}
	if err := set.Validate(); err != nil {
		return profile.Set{}, err
	}
	if err := st.Save(ctx, set); err != nil {
		return profile.Set{}, err
	}
	return set, nil
}
