package container

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jdum/odfdo-sub004/parts"
)

// zipMagic is the ZIP local file header signature. An ODF zip package
// always starts with one, since the mimetype member comes first and is
// never preceded by a self-extractor stub.
var zipMagic = []byte{'P', 'K', 0x03, 0x04}

// zipShaped reports whether the file at name starts with the ZIP
// magic. Only the first four bytes are read.
func zipShaped(name string) (bool, error) {
	f, err := os.Open(name)
	if err != nil {
		return false, err
	}
	defer f.Close()
	header := make([]byte, len(zipMagic))
	if _, err := io.ReadFull(f, header); err != nil {
		// a file shorter than the magic is simply not a zip
		return false, nil
	}
	return bytes.Equal(header, zipMagic), nil
}

// zipBackend serves parts from a ZIP archive on disk. The archive is
// reopened for every call rather than holding a file handle for the
// container's lifetime.
type zipBackend struct {
	path string
}

// Fetch reads the one named member out of the archive. A corrupt
// archive is reported as ErrNotFound for the part rather than as a
// failure of the whole container; the archive was already validated
// once at open time.
func (b *zipBackend) Fetch(name string) ([]byte, int64, error) {
	zr, err := zip.OpenReader(b.path)
	if err != nil {
		return nil, 0, errors.Wrapf(ErrNotFound, "part %s", name)
	}
	defer zr.Close()
	for _, f := range zr.File {
		if parts.Normalize(f.Name) != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, 0, errors.Wrapf(err, "part %s", name)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, 0, errors.Wrapf(err, "part %s", name)
		}
		return data, 0, nil
	}
	return nil, 0, errors.Wrapf(ErrNotFound, "part %s", name)
}

// List returns the archive's member list, normalized.
func (b *zipBackend) List() ([]string, error) {
	zr, err := zip.OpenReader(b.path)
	if err != nil {
		return nil, errors.Wrapf(err, "listing %s", b.path)
	}
	defer zr.Close()
	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, parts.Normalize(f.Name))
	}
	return names, nil
}

// Fresh always reports true: a ZIP source is treated as immutable for
// the container's lifetime, so cached bytes never go stale.
func (b *zipBackend) Fresh(string, int64) bool {
	return true
}

// loadZipBytes reads every member of the archive held in data into the
// part table. Used for stream sources, which cannot be re-read later.
func (c *Container) loadZipBytes(data []byte) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return errors.Wrap(err, "reading package")
	}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return errors.Wrapf(err, "part %s", f.Name)
		}
		b, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return errors.Wrapf(err, "part %s", f.Name)
		}
		c.parts.Load(parts.Normalize(f.Name), b, 0)
	}
	return nil
}

// writeZip serializes every live part to w as an ODF zip package.
// The member order is fixed: mimetype first and uncompressed, then the
// canonical XML parts, then everything else sorted by name, then the
// manifest last. Tombstoned parts are skipped. A missing mimetype is
// fatal, since the result would not be an ODF file at all; other
// missing structural parts only warn, because a document under
// construction is a legitimate thing to save.
func (c *Container) writeZip(w io.Writer) error {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.DefaultCompression)
	})
	now := time.Now()

	if c.parts.State(MimetypeName) != parts.Loaded {
		zw.Close()
		return errors.Wrap(ErrNoMimetype, "zip save")
	}
	if err := writeMember(zw, MimetypeName, c.parts.Bytes(MimetypeName), zip.Store, now); err != nil {
		return err
	}

	written := map[string]bool{MimetypeName: true, ManifestName: true}
	for _, name := range []string{ContentName, MetaName, SettingsName, StylesName} {
		written[name] = true
		if c.parts.State(name) != parts.Loaded {
			log.Warn().Str("part", name).Msg("part missing, not saved in zip")
			continue
		}
		if err := writeMember(zw, name, c.parts.Bytes(name), zip.Deflate, now); err != nil {
			return err
		}
	}

	for _, name := range c.parts.Names() {
		if written[name] || c.parts.State(name) != parts.Loaded {
			continue
		}
		if err := writeMember(zw, name, c.parts.Bytes(name), zip.Deflate, now); err != nil {
			return err
		}
	}

	if c.parts.State(ManifestName) == parts.Loaded {
		if err := writeMember(zw, ManifestName, c.parts.Bytes(ManifestName), zip.Deflate, now); err != nil {
			return err
		}
	} else {
		log.Warn().Str("part", ManifestName).Msg("part missing, not saved in zip")
	}

	return zw.Close()
}

// writeMember writes one part into the archive. A name with a trailing
// slash is a directory placeholder and gets an empty STORE entry.
func writeMember(zw *zip.Writer, name string, data []byte, method uint16, mod time.Time) error {
	header := &zip.FileHeader{
		Name:     name,
		Method:   method,
		Modified: mod,
	}
	if isDirName(name) {
		header.Method = zip.Store
	}
	out, err := zw.CreateHeader(header)
	if err != nil {
		return errors.Wrapf(err, "part %s", name)
	}
	if isDirName(name) || len(data) == 0 {
		return nil
	}
	_, err = out.Write(data)
	return errors.Wrapf(err, "part %s", name)
}
