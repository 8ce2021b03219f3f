// Package container reads and writes ODF packages. An ODF package is a
// collection of named byte parts ("content.xml", "Pictures/a.jpg", ...)
// serialized either as a ZIP archive or as an expanded directory tree.
// A Container tracks the parts of one package, fetching them lazily
// from its source where possible, and can write the package back out
// in either form regardless of how it was opened.
//
// Mutations (SetPart, DeletePart) only ever touch the in-memory part
// table; the source is never written until Save. A Container is not
// safe for concurrent use.
package container

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jdum/odfdo-sub004/parts"
)

// Part names every ODF package is expected to carry.
const (
	MimetypeName = "mimetype"
	ContentName  = "content.xml"
	MetaName     = "meta.xml"
	SettingsName = "settings.xml"
	StylesName   = "styles.xml"
	ManifestName = "META-INF/manifest.xml"
)

var (
	// ErrNotFound means the named part is not present in the package.
	ErrNotFound = errors.New("part not found")

	// ErrDeleted means the named part was explicitly deleted from
	// this container.
	ErrDeleted = errors.New("part deleted")

	// ErrNoMimetype means the package has no usable mimetype part.
	ErrNoMimetype = errors.New("missing mimetype part")

	// ErrUnknownMimetype means the package's mimetype is not a
	// recognized ODF media type.
	ErrUnknownMimetype = errors.New("unknown ODF mimetype")

	// ErrBadPackaging means a packaging other than zip or folder was
	// requested.
	ErrBadPackaging = errors.New("unsupported packaging")

	// ErrNotPackage means the source is neither a ZIP archive nor a
	// directory.
	ErrNotPackage = errors.New("not an ODF package")

	// ErrNoTarget means Save was called with no target on a container
	// that has no source location.
	ErrNoTarget = errors.New("no save target")
)

// Packaging tells how a container is serialized on disk.
type Packaging string

const (
	// Zip packaging is a single ZIP archive, the normal ODF form.
	Zip Packaging = "zip"

	// Folder packaging is an expanded directory tree with one file
	// per part.
	Folder Packaging = "folder"
)

// ParsePackaging parses a packaging name. Anything but "zip" and
// "folder" is an error.
func ParsePackaging(s string) (Packaging, error) {
	switch Packaging(s) {
	case Zip:
		return Zip, nil
	case Folder:
		return Folder, nil
	default:
		return "", errors.Wrapf(ErrBadPackaging, "%q", s)
	}
}

// backend is a container's packaging-specific part source, bound at
// open time. A freshly built in-memory container has none.
type backend interface {
	// Fetch returns the bytes of the named part along with the
	// source file's modification time in whole seconds (zero when
	// the source has no meaningful per-part time).
	Fetch(name string) ([]byte, int64, error)

	// List enumerates the part names currently present at the
	// source.
	List() ([]string, error)

	// Fresh reports whether bytes cached at mtime are still current.
	// ZIP sources are immutable once opened and always report true;
	// folder sources compare against the file's current mtime.
	Fresh(name string, mtime int64) bool
}

// Container is one ODF package: a part table plus at most one source
// backend.
type Container struct {
	parts     *parts.Store
	backend   backend
	path      string // bound source location, "" for in-memory
	packaging Packaging
}

// New returns an empty in-memory container with no source. It has no
// parts at all, not even a mimetype; callers building a document from
// scratch must supply one before a zip save will succeed.
func New() *Container {
	return &Container{
		parts:     parts.NewStore(),
		packaging: Zip,
	}
}

// Open opens the ODF package at name, which may be a ZIP file or an
// expanded directory. The package's mimetype must be one of the
// recognized ODF media types.
func Open(name string) (*Container, error) {
	abs, err := filepath.Abs(name)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", name)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", name)
	}
	if info.IsDir() {
		return openFolder(abs)
	}
	iszip, err := zipShaped(abs)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", name)
	}
	if !iszip {
		return nil, errors.Wrapf(ErrNotPackage, "%s", name)
	}
	c := &Container{
		parts:     parts.NewStore(),
		backend:   &zipBackend{path: abs},
		path:      abs,
		packaging: Zip,
	}
	return c, c.checkMimetype()
}

// OpenReader opens an ODF package from an in-memory source. The whole
// archive is read eagerly: r is never consulted again once OpenReader
// returns, so the container is fully self-contained. A corrupt archive
// is a hard error here, unlike the per-part soft failures of a
// path-bound container.
func OpenReader(r io.Reader) (*Container, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading package stream")
	}
	if !bytes.HasPrefix(data, zipMagic) {
		return nil, errors.Wrap(ErrNotPackage, "stream")
	}
	c := New()
	if err := c.loadZipBytes(data); err != nil {
		return nil, err
	}
	return c, c.checkMimetype()
}

// openFolder binds a container to an expanded directory tree. The
// mimetype part is read up front; if it cannot be read the container
// falls back to a plain text document mimetype with a warning rather
// than failing, since a folder under construction may not have one
// yet.
func openFolder(abs string) (*Container, error) {
	c := &Container{
		parts:     parts.NewStore(),
		backend:   &folderBackend{root: abs},
		path:      abs,
		packaging: Folder,
	}
	data, mtime, err := c.backend.Fetch(MimetypeName)
	if err != nil {
		log.Warn().Str("path", abs).Err(err).
			Msg("cannot read mimetype part, assuming text document")
		data = []byte(MimetypeText)
		mtime = time.Now().Unix()
	}
	c.parts.Load(MimetypeName, data, mtime)
	return c, c.checkMimetype()
}

// checkMimetype validates the freshly opened container's media type.
func (c *Container) checkMimetype() error {
	data, err := c.Part(MimetypeName)
	if err != nil {
		return errors.Wrap(ErrNoMimetype, c.path)
	}
	if !KnownMimetype(string(data)) {
		return errors.Wrapf(ErrUnknownMimetype, "%q", string(data))
	}
	return nil
}

// Part returns the bytes of the named part.
//
// ZIP sources are treated as immutable: once a part is cached it is
// returned as-is, and a miss is fetched by reopening the archive for
// just that member. Folder sources are a live view: a cached part is
// re-read whenever the backing file's mtime has changed. A value
// stored with SetPart always wins over the source. Reading a part
// removed with DeletePart fails with ErrDeleted; an untracked,
// unfetchable part fails with ErrNotFound.
func (c *Container) Part(name string) ([]byte, error) {
	name = parts.Normalize(name)
	switch c.parts.State(name) {
	case parts.Deleted:
		return nil, errors.Wrapf(ErrDeleted, "part %s", name)

	case parts.Loaded:
		data := c.parts.Bytes(name)
		mtime, fromSource := c.parts.Mtime(name)
		if !fromSource || c.backend == nil || c.backend.Fresh(name, mtime) {
			return data, nil
		}
		// stale folder part; refresh bytes and timestamp
		data, mtime, err := c.backend.Fetch(name)
		if err != nil {
			return nil, err
		}
		c.parts.Load(name, data, mtime)
		return data, nil

	default: // parts.Absent
		if c.backend == nil {
			return nil, errors.Wrapf(ErrNotFound, "part %s", name)
		}
		data, mtime, err := c.backend.Fetch(name)
		if err != nil {
			return nil, err
		}
		c.parts.Load(name, data, mtime)
		return data, nil
	}
}

// SetPart stores data as the part's bytes. Only the in-memory table is
// touched; the source is unchanged until Save.
func (c *Container) SetPart(name string, data []byte) {
	c.parts.Set(parts.Normalize(name), data)
}

// DeletePart tombstones the named part. Subsequent reads fail with
// ErrDeleted and Save skips the part entirely.
func (c *Container) DeletePart(name string) {
	c.parts.Delete(parts.Normalize(name))
}

// Parts enumerates the package's part names. A container bound to a
// source re-lists the source (the ZIP member list, or a fresh walk of
// the folder tree), so the result reflects the source's current
// membership. An in-memory container lists its part table, tombstones
// included.
func (c *Container) Parts() ([]string, error) {
	if c.backend == nil || c.path == "" {
		return c.parts.Names(), nil
	}
	return c.backend.List()
}

// Mimetype returns the package's media type as a string.
func (c *Container) Mimetype() (string, error) {
	data, err := c.Part(MimetypeName)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SetMimetype replaces the package's media type. No validation is
// done here; unknown types are only rejected at open time.
func (c *Container) SetMimetype(m string) {
	c.SetPart(MimetypeName, []byte(m))
}

// Clone returns a deep, independent copy of the container. Every part
// is materialized first, then the part table is structurally copied,
// and the clone's source binding is cleared so that saving the clone
// can never overwrite the original's source.
func (c *Container) Clone() (*Container, error) {
	if err := c.materialize(); err != nil {
		return nil, err
	}
	return &Container{
		parts:     c.parts.Clone(),
		packaging: c.packaging,
	}, nil
}

// materialize forces every part the source currently lists into
// memory. Needed before any operation that detaches the container
// from its source (Clone, cross-format Save, stream Save). A part the
// source lists but cannot deliver is skipped with a warning.
func (c *Container) materialize() error {
	if c.backend == nil {
		return nil
	}
	names, err := c.Parts()
	if err != nil {
		return err
	}
	for _, name := range names {
		name = parts.Normalize(name)
		if c.parts.State(name) != parts.Absent {
			continue
		}
		if _, err := c.Part(name); err != nil {
			if errors.Cause(err) == ErrNotFound {
				log.Warn().Str("part", name).Msg("unreadable part skipped")
				continue
			}
			return err
		}
	}
	return nil
}
