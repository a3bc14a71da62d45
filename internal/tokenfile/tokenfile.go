// Package tokenfile reads and writes the credential cache. The cache is a
// single JSON file holding the OAuth2 tokens together with the client
// credentials, so a later run can resume without re-supplying secrets.
// This is a leaf package: it knows nothing about OAuth2 flows.
package tokenfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// FilePerms restricts the cache file to owner-only read/write.
const FilePerms = 0o600

// DirPerms is used when creating the cache directory.
const DirPerms = 0o700

// Credential is the cached token state. ValidUntil has whole-second precision
// because the file stores it as epoch seconds.
type Credential struct {
	AccessToken  string
	RefreshToken string
	ValidUntil   time.Time
	ClientID     string
	ClientSecret string
}

// HasToken reports whether an access token was recovered.
func (c *Credential) HasToken() bool {
	return c != nil && c.AccessToken != ""
}

// file is the on-disk format.
type file struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ValidUntil   int64  `json:"valid_until"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// FileAccessError reports a cache file that could not be read, decoded,
// written, or restricted to owner-only permissions.
type FileAccessError struct {
	Op   string
	Path string
	Err  error
}

func (e *FileAccessError) Error() string {
	return fmt.Sprintf("tokenfile: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileAccessError) Unwrap() error {
	return e.Err
}

// Load reads the cache at path. Returns (nil, nil) if the file does not exist.
// Permissions are tightened to FilePerms before the file is read, so a cache
// created by hand with looser permissions is fixed on first use. Missing keys
// decode to zero values.
func Load(path string) (*Credential, error) {
	if err := os.Chmod(path, FilePerms); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil //nolint:nilnil // sentinel for "not found"
		}

		return nil, &FileAccessError{Op: "chmod", Path: path, Err: err}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &FileAccessError{Op: "read", Path: path, Err: err}
	}

	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, &FileAccessError{Op: "decode", Path: path, Err: err}
	}

	cred := &Credential{
		AccessToken:  f.AccessToken,
		RefreshToken: f.RefreshToken,
		ClientID:     f.ClientID,
		ClientSecret: f.ClientSecret,
	}

	if f.ValidUntil != 0 {
		cred.ValidUntil = time.Unix(f.ValidUntil, 0)
	}

	return cred, nil
}

// Save writes the cache atomically (write-to-temp + rename) and then enforces
// FilePerms on the final path. Never logs token values.
func Save(path string, cred Credential) error {
	f := file{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		ClientID:     cred.ClientID,
		ClientSecret: cred.ClientSecret,
	}

	if !cred.ValidUntil.IsZero() {
		f.ValidUntil = cred.ValidUntil.Unix()
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return &FileAccessError{Op: "encode", Path: path, Err: err}
	}

	dir := filepath.Dir(path)
	if mkErr := os.MkdirAll(dir, DirPerms); mkErr != nil {
		return &FileAccessError{Op: "mkdir", Path: dir, Err: mkErr}
	}

	// Same directory guarantees same filesystem for rename(2).
	tmp, err := os.CreateTemp(dir, ".token-*.tmp")
	if err != nil {
		return &FileAccessError{Op: "create", Path: path, Err: err}
	}

	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, FilePerms); err != nil {
		tmp.Close()
		return &FileAccessError{Op: "chmod", Path: tmpPath, Err: err}
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return &FileAccessError{Op: "write", Path: tmpPath, Err: err}
	}

	// Flush before rename so a crash cannot leave an empty file at path.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return &FileAccessError{Op: "sync", Path: tmpPath, Err: err}
	}

	if err := tmp.Close(); err != nil {
		return &FileAccessError{Op: "close", Path: tmpPath, Err: err}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return &FileAccessError{Op: "rename", Path: path, Err: err}
	}

	success = true

	if err := os.Chmod(path, FilePerms); err != nil {
		return &FileAccessError{Op: "chmod", Path: path, Err: err}
	}

	return nil
}

// Remove deletes the cache at path. A missing file is not an error.
func Remove(path string) error {
	err := os.Remove(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	return &FileAccessError{Op: "remove", Path: path, Err: err}
}
