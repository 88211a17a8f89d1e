package roi

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ReadFile loads regions from an ImageJ RoiSet (.zip) or a single .roi file.
func ReadFile(path string) (*Collection, error) {
	if strings.EqualFold(filepath.Ext(path), ".roi") {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read roi file: %w", err)
		}
		r, err := Decode(data, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
		return NewCollection(r), nil
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open roi set: %w", err)
	}
	defer zr.Close()
	return readArchive(&zr.Reader)
}

// ReadArchive decodes a RoiSet zip held in memory.
func ReadArchive(r io.ReaderAt, size int64) (*Collection, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to open roi set: %w", err)
	}
	return readArchive(zr)
}

func readArchive(zr *zip.Reader) (*Collection, error) {
	c := NewCollection()
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !strings.EqualFold(filepath.Ext(f.Name), ".roi") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open entry %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read entry %s: %w", f.Name, err)
		}
		base := filepath.Base(f.Name)
		r, err := Decode(data, strings.TrimSuffix(base, filepath.Ext(base)))
		if err != nil {
			return nil, fmt.Errorf("failed to decode entry %s: %w", f.Name, err)
		}
		c.Append(r)
	}
	return c, nil
}

// WriteFile stores the collection as an ImageJ RoiSet zip at path.
func WriteFile(path string, c *Collection) error {
	var buf bytes.Buffer
	if err := WriteArchive(&buf, c); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write roi set: %w", err)
	}
	return nil
}

// WriteArchive writes the collection as a RoiSet zip, one <name>.roi entry per
// region in order. Duplicate names get a -1, -2, ... suffix.
func WriteArchive(w io.Writer, c *Collection) error {
	zw := zip.NewWriter(w)
	used := make(map[string]bool)
	for i := 0; i < c.Len(); i++ {
		r := c.Get(i)
		data, err := Encode(r)
		if err != nil {
			return fmt.Errorf("failed to encode roi %d: %w", i, err)
		}
		entry, err := zw.Create(uniqueName(entryName(r, i), used) + ".roi")
		if err != nil {
			return fmt.Errorf("failed to add roi %d: %w", i, err)
		}
		if _, err := entry.Write(data); err != nil {
			return fmt.Errorf("failed to write roi %d: %w", i, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish roi set: %w", err)
	}
	return nil
}

func entryName(r *Region, i int) string {
	name := strings.NewReplacer("/", "_", "\\", "_").Replace(r.Name)
	if name == "" {
		name = fmt.Sprintf("%04d", i+1)
	}
	return name
}

func uniqueName(name string, used map[string]bool) string {
	candidate := name
	for n := 1; used[candidate]; n++ {
		candidate = fmt.Sprintf("%s-%d", name, n)
	}
	used[candidate] = true
	return candidate
}
