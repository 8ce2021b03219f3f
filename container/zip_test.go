package container

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// readZipNames returns the member names of a serialized package in
// archive order.
func readZipNames(t *testing.T, data []byte) []string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatal(err)
	}
	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return names
}

func TestWriteZipOrdering(t *testing.T) {
	c, err := OpenReader(bytes.NewReader(minimalZip(t, MimetypeText)))
	if err != nil {
		t.Fatal(err)
	}
	c.SetPart("Thumbnails/thumbnail.png", []byte("png bytes"))

	var buf bytes.Buffer
	if err := c.WriteZip(&buf); err != nil {
		t.Fatal(err)
	}

	want := []string{
		"mimetype",
		"content.xml",
		"meta.xml",
		"settings.xml",
		"styles.xml",
		"Pictures/a.jpg",
		"Thumbnails/thumbnail.png",
		"META-INF/manifest.xml",
	}
	if diff := cmp.Diff(want, readZipNames(t, buf.Bytes())); diff != "" {
		t.Errorf("member order mismatch (-want +got):\n%s", diff)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatal(err)
	}
	first := zr.File[0]
	if first.Name != "mimetype" {
		t.Errorf("first member is %q, expected mimetype", first.Name)
	}
	if first.Method != zip.Store {
		t.Errorf("mimetype member method = %d, expected Store", first.Method)
	}
	for _, f := range zr.File[1:] {
		if f.Method != zip.Deflate {
			t.Errorf("member %s method = %d, expected Deflate", f.Name, f.Method)
		}
	}
}

func TestWriteZipNoMimetype(t *testing.T) {
	c := New()
	c.SetPart("content.xml", []byte("<x/>"))
	err := c.WriteZip(new(bytes.Buffer))
	if !errors.Is(err, ErrNoMimetype) {
		t.Errorf("err = %v, expected ErrNoMimetype", err)
	}

	c.SetMimetype(MimetypeText)
	c.DeletePart("mimetype")
	err = c.WriteZip(new(bytes.Buffer))
	if !errors.Is(err, ErrNoMimetype) {
		t.Errorf("deleted mimetype: err = %v, expected ErrNoMimetype", err)
	}
}

func TestWriteZipPartialDocument(t *testing.T) {
	// a document under construction may lack the canonical XML parts
	// and the manifest; saving warns about each but still succeeds
	c := New()
	c.SetMimetype(MimetypeText)
	c.SetPart("content.xml", []byte("<office:document-content/>"))

	var buf bytes.Buffer
	if err := c.WriteZip(&buf); err != nil {
		t.Fatal(err)
	}
	want := []string{"mimetype", "content.xml"}
	if diff := cmp.Diff(want, readZipNames(t, buf.Bytes())); diff != "" {
		t.Errorf("member set mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteZipSkipsDeleted(t *testing.T) {
	c, err := OpenReader(bytes.NewReader(minimalZip(t, MimetypeText)))
	if err != nil {
		t.Fatal(err)
	}
	c.DeletePart("Pictures/a.jpg")

	var buf bytes.Buffer
	if err := c.WriteZip(&buf); err != nil {
		t.Fatal(err)
	}
	for _, name := range readZipNames(t, buf.Bytes()) {
		if name == "Pictures/a.jpg" {
			t.Errorf("deleted part was written to the archive")
		}
	}
}

func TestRoundTrip(t *testing.T) {
	src := minimalZipFile(t, MimetypeText)
	c1, err := Open(src)
	if err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(t.TempDir(), "copy.odt")
	if err := c1.Save(dst, nil); err != nil {
		t.Fatal(err)
	}

	c2, err := Open(dst)
	if err != nil {
		t.Fatal(err)
	}
	mt, err := c2.Mimetype()
	if err != nil {
		t.Fatal(err)
	}
	if mt != MimetypeText {
		t.Errorf("mimetype = %q after round trip", mt)
	}
	for _, name := range []string{"content.xml", "meta.xml", "styles.xml", "settings.xml"} {
		b1, err := c1.Part(name)
		if err != nil {
			t.Fatal(err)
		}
		b2, err := c2.Part(name)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(b1, b2) {
			t.Errorf("part %s changed across a round trip", name)
		}
	}
}

func TestSaveBackup(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "doc.odt")

	c, err := OpenReader(bytes.NewReader(minimalZip(t, MimetypeText)))
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Save(target, nil); err != nil {
		t.Fatal(err)
	}
	c.SetPart("content.xml", []byte("<second/>"))
	if err := c.Save(target, &SaveOptions{Backup: true}); err != nil {
		t.Fatal(err)
	}

	bak := filepath.Join(dir, "doc.backup.odt")
	if _, err := os.Stat(bak); err != nil {
		t.Fatalf("backup file missing: %v", err)
	}
	old, err := Open(bak)
	if err != nil {
		t.Fatal(err)
	}
	data, err := old.Part("content.xml")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "<office:document-content/>" {
		t.Errorf("backup holds the new content, not the old")
	}
}

func TestSaveBadPackaging(t *testing.T) {
	c := New()
	c.SetMimetype(MimetypeText)
	err := c.Save(filepath.Join(t.TempDir(), "x"), &SaveOptions{Packaging: "tarball"})
	if !errors.Is(err, ErrBadPackaging) {
		t.Errorf("err = %v, expected ErrBadPackaging", err)
	}
}

func TestCorruptArchiveSoftFetch(t *testing.T) {
	// open a valid package, then corrupt the file on disk: the next
	// uncached fetch reports the part missing instead of failing the
	// whole container
	src := minimalZipFile(t, MimetypeText)
	c, err := Open(src)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(src, []byte("PK\x03\x04 scrambled"), 0666); err != nil {
		t.Fatal(err)
	}
	_, err = c.Part("styles.xml")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, expected ErrNotFound", err)
	}
	// the already-cached mimetype is still served
	mt, err := c.Mimetype()
	if err != nil || mt != MimetypeText {
		t.Errorf("cached mimetype unavailable after corruption: %q, %v", mt, err)
	}
}
