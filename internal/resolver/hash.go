package resolver

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/loomworks/loom/internal/canon"
)

// hashTree computes the revision of a directory tree: a canonical object
// mapping slash-separated relative paths to per-file digests plus the
// executable bit, hashed under the revision domain.
//
// The walk order never matters: entries are sorted before
// canonicalization, so the revision is a pure function of tree content.
func hashTree(root string, excludes []string) (string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("content root is not a directory: %s", root)
	}

	files := map[string]any{}
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if excluded(rel, excludes) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		// Symlinks hash by target path, not target content, so a link
		// into an external store does not pull that store's bytes into
		// the revision.
		if d.Type()&fs.ModeSymlink != 0 {
			target, err := os.Readlink(path)
			if err != nil {
				return err
			}
			files[rel] = map[string]any{"link": target}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		digest, err := hashFile(path)
		if err != nil {
			return err
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		files[rel] = map[string]any{
			"hash": digest,
			"exec": fi.Mode()&0o111 != 0,
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	return canon.Hash(canon.DomainRevision, files)
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func excluded(rel string, patterns []string) bool {
	for _, pat := range patterns {
		if ok, err := doublestar.Match(pat, rel); err == nil && ok {
			return true
		}
	}
	return false
}
