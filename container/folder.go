package container

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jdum/odfdo-sub004/parts"
)

// isDirName reports whether a part name is a directory placeholder.
func isDirName(name string) bool {
	return strings.HasSuffix(name, "/")
}

// folderBackend serves parts from an expanded directory tree, one file
// per part. Unlike a ZIP source, a folder is a live view: cached bytes
// go stale when the backing file's mtime changes.
type folderBackend struct {
	root string
}

// Fetch reads the named part's file and its mtime in whole seconds.
// Directory placeholder names yield empty bytes. A file that does not
// exist maps to the ErrNotFound sentinel, same as a zip member miss,
// so callers can dispatch on it without caring about the packaging.
func (b *folderBackend) Fetch(name string) ([]byte, int64, error) {
	full := filepath.Join(b.root, filepath.FromSlash(name))
	info, err := os.Stat(full)
	if os.IsNotExist(err) {
		return nil, 0, errors.Wrapf(ErrNotFound, "part %s", name)
	}
	if err != nil {
		return nil, 0, errors.Wrapf(err, "part %s", name)
	}
	if isDirName(name) || info.IsDir() {
		return nil, info.ModTime().Unix(), nil
	}
	data, err := os.ReadFile(full)
	if os.IsNotExist(err) {
		return nil, 0, errors.Wrapf(ErrNotFound, "part %s", name)
	}
	if err != nil {
		return nil, 0, errors.Wrapf(err, "part %s", name)
	}
	return data, info.ModTime().Unix(), nil
}

// Fresh compares the cached mtime against the file's current one. A
// file that cannot be stat'ed anymore is reported fresh: the cache is
// all we have left, and only an observed change invalidates it.
func (b *folderBackend) Fresh(name string, mtime int64) bool {
	info, err := os.Stat(filepath.Join(b.root, filepath.FromSlash(name)))
	if err != nil {
		return true
	}
	return info.ModTime().Unix() == mtime
}

// List walks the tree and returns every part name. Dotfiles are
// skipped. A directory appears itself (with a trailing slash) only
// when nothing was listed beneath it; a directory with descendants is
// implicit in their names.
func (b *folderBackend) List() ([]string, error) {
	var names []string
	if err := b.walk("", &names); err != nil {
		return nil, err
	}
	return names, nil
}

func (b *folderBackend) walk(dir string, names *[]string) error {
	entries, err := os.ReadDir(filepath.Join(b.root, filepath.FromSlash(dir)))
	if err != nil {
		return errors.Wrapf(err, "walking %s", b.root)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		rel := path.Join(dir, e.Name())
		if !e.IsDir() {
			*names = append(*names, rel)
			continue
		}
		before := len(*names)
		if err := b.walk(rel, names); err != nil {
			return err
		}
		if len(*names) == before {
			*names = append(*names, rel+"/")
		}
	}
	return nil
}

// writeFolder serializes every live part below root, one file per
// part. The target is always written from scratch; Save has already
// moved or removed anything that was there before.
func (c *Container) writeFolder(root string) error {
	for _, name := range c.parts.Names() {
		if c.parts.State(name) != parts.Loaded {
			continue
		}
		full := filepath.Join(root, filepath.FromSlash(name))
		if isDirName(name) {
			if err := os.MkdirAll(full, 0777); err != nil {
				return errors.Wrapf(err, "part %s", name)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(full), 0777); err != nil {
			return errors.Wrapf(err, "part %s", name)
		}
		if err := os.WriteFile(full, c.parts.Bytes(name), 0666); err != nil {
			return errors.Wrapf(err, "part %s", name)
		}
		if err := os.Chmod(full, 0666); err != nil {
			return errors.Wrapf(err, "part %s", name)
		}
	}
	return nil
}

// backupAside renames an existing target out of the way as
// "<stem>.backup<suffix>". Failure to clear a previous backup or to
// rename is downgraded to a warning; the save itself goes on.
func backupAside(target string) {
	ext := filepath.Ext(target)
	bak := strings.TrimSuffix(target, ext) + ".backup" + ext
	if err := os.RemoveAll(bak); err != nil {
		log.Warn().Str("path", bak).Err(err).Msg("cannot remove previous backup")
	}
	if err := os.Rename(target, bak); err != nil {
		log.Warn().Str("path", target).Err(err).Msg("cannot move target to backup")
	}
}
