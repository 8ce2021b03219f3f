package container

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// SaveOptions adjust a Save call. The zero value keeps the container's
// current packaging and takes no backup.
type SaveOptions struct {
	// Packaging selects the output form; empty keeps the packaging
	// the container was opened with.
	Packaging Packaging

	// Backup moves an existing target aside as <stem>.backup<suffix>
	// instead of overwriting it.
	Backup bool
}

// Save writes the package to target. An empty target reuses the
// container's source location. Saving may change packaging: a
// container opened as a folder can be saved as a zip and vice versa,
// in which case every part is materialized into memory first.
//
// A zip target is a single file named target. A folder target is a
// directory named target + ".folder"; a trailing ".folder" already on
// the target is stripped first, so re-saving a folder container to its
// own source does not stack suffixes.
func (c *Container) Save(target string, opts *SaveOptions) error {
	var o SaveOptions
	if opts != nil {
		o = *opts
	}
	pk := c.packaging
	if o.Packaging != "" {
		pk = o.Packaging
	}
	if _, err := ParsePackaging(string(pk)); err != nil {
		return err
	}
	if err := c.materialize(); err != nil {
		return err
	}
	if target == "" {
		target = c.path
	}
	if target == "" {
		return errors.Wrap(ErrNoTarget, "container has no source location")
	}
	target = strings.TrimRight(target, "/"+string(os.PathSeparator))
	target = strings.TrimSuffix(target, ".folder")

	if pk == Folder {
		return c.saveFolder(target, o.Backup)
	}
	return c.saveZip(target, o.Backup)
}

// WriteZip serializes the package to w as a ZIP archive. This is the
// stream-target form of Save; folder packaging has no stream form.
func (c *Container) WriteZip(w io.Writer) error {
	if err := c.materialize(); err != nil {
		return err
	}
	return c.writeZip(w)
}

func (c *Container) saveZip(target string, backup bool) error {
	if _, err := os.Stat(target); err == nil && backup {
		backupAside(target)
	}
	f, err := os.Create(target)
	if err != nil {
		return errors.Wrapf(err, "saving %s", target)
	}
	werr := c.writeZip(f)
	cerr := f.Close()
	if werr != nil {
		return werr
	}
	return errors.Wrapf(cerr, "saving %s", target)
}

func (c *Container) saveFolder(target string, backup bool) error {
	root := target + ".folder"
	if _, err := os.Stat(root); err == nil {
		if backup {
			backupAside(root)
		} else if err := os.RemoveAll(root); err != nil {
			// a partial overwrite is still better than no save
			log.Warn().Str("path", root).Err(err).Msg("cannot clear folder target")
		}
	}
	return c.writeFolder(root)
}
