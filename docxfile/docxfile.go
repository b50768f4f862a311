// Package docxfile reads and writes the DOCX zip container. Only the main
// document part is ever modified; every other archive entry is copied
// through byte for byte.
package docxfile

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
)

// MainPart is the archive entry holding the document body.
const MainPart = "word/document.xml"

// Document is an opened DOCX archive.
type Document struct {
	// Path is the file the archive was read from.
	Path string
	// MainXML is the content of word/document.xml.
	MainXML string

	source []byte
}

// Open reads a DOCX file. It fails when the file is not a zip archive or
// has no word/document.xml entry.
func Open(path string) (*Document, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	zr, err := zip.NewReader(bytes.NewReader(source), int64(len(source)))
	if err != nil {
		return nil, fmt.Errorf("%s is not a DOCX archive: %w", path, err)
	}

	var main *zip.File
	for _, f := range zr.File {
		if f.Name == MainPart {
			main = f
			break
		}
	}
	if main == nil {
		return nil, fmt.Errorf("%s is not a DOCX file: missing %s", path, MainPart)
	}

	xml, err := readEntry(main)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", MainPart, err)
	}

	return &Document{
		Path:    path,
		MainXML: string(xml),
		source:  source,
	}, nil
}

// Parts returns the names of all archive entries in archive order.
func (d *Document) Parts() ([]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(d.source), int64(len(d.source)))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return names, nil
}

// Save writes a new archive to outPath with mainXML as the document body.
// All other entries of the source archive are copied without recompression,
// preserving their headers.
func (d *Document) Save(mainXML, outPath string) error {
	zr, err := zip.NewReader(bytes.NewReader(d.source), int64(len(d.source)))
	if err != nil {
		return fmt.Errorf("re-reading source archive: %w", err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, f := range zr.File {
		if f.Name == MainPart {
			header := f.FileHeader
			w, err := zw.CreateHeader(&header)
			if err != nil {
				return fmt.Errorf("creating %s: %w", f.Name, err)
			}
			if _, err := w.Write([]byte(mainXML)); err != nil {
				return fmt.Errorf("writing %s: %w", f.Name, err)
			}
			continue
		}
		if err := zw.Copy(f); err != nil {
			return fmt.Errorf("copying %s: %w", f.Name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalizing archive: %w", err)
	}
	if err := os.WriteFile(outPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", outPath, err)
	}
	return nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(rc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
