package archive

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/ramonehamilton/commander-vault/internal/deck"
	"github.com/ramonehamilton/commander-vault/internal/manifest"
)

// fixedZipTime keeps packed archives byte-for-byte reproducible
// (1980-01-01 UTC).
var fixedZipTime = time.Unix(315532800, 0).UTC()

// maxEntrySize bounds a single decompressed entry.
const maxEntrySize = 64 << 20

// Pack writes the archive as a zip container, one deflated entry per file
// in sorted path order.
func Pack(a *Archive) ([]byte, error) {
	if a == nil || a.Manifest == nil {
		return nil, fmt.Errorf("%w: missing %s", ErrCorruptArchive, ManifestFile)
	}

	files := map[string][]byte{}

	m, err := manifest.Encode(a.Manifest)
	if err != nil {
		return nil, err
	}
	files[ManifestFile] = m

	maybeboard := a.Maybeboard
	if maybeboard == nil {
		maybeboard = deck.NewMaybeboard()
	}
	mb, err := json.MarshalIndent(maybeboard, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode maybeboard: %w", err)
	}
	files[MaybeboardFile] = mb

	for branch, versions := range a.Versions {
		for name, content := range versions {
			files[branch+"/"+name] = []byte(content)
		}
	}
	for branch, content := range a.Stashes {
		files[branch+"/"+StashFile] = []byte(content)
	}

	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range paths {
		h := &zip.FileHeader{Name: p, Method: zip.Deflate}
		h.SetMode(0o644)
		h.Modified = fixedZipTime
		w, err := zw.CreateHeader(h)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", p, err)
		}
		if _, err := w.Write(files[p]); err != nil {
			return nil, fmt.Errorf("write %s: %w", p, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return buf.Bytes(), nil
}

// Unpack reads a zip container. Branch structure is taken purely from
// entry paths ("<branch>/<file>"). A manifest without a versioning scheme
// reads as semantic; the stored copy is only upgraded on the next Pack.
func Unpack(data []byte) (*Archive, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptArchive, err)
	}

	a := &Archive{
		Versions: map[string]map[string]string{},
		Stashes:  map[string]string{},
	}
	var manifestData, maybeboardData []byte

	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		content, err := readEntry(f)
		if err != nil {
			return nil, err
		}

		name := path.Clean(strings.TrimLeft(f.Name, "/"))
		switch name {
		case ManifestFile:
			manifestData = content
			continue
		case MaybeboardFile:
			maybeboardData = content
			continue
		}

		branch, file, ok := strings.Cut(name, "/")
		if !ok || branch == "" || branch == ".." || strings.Contains(file, "/") {
			continue
		}
		if file == StashFile {
			a.Stashes[branch] = string(content)
			continue
		}
		if a.Versions[branch] == nil {
			a.Versions[branch] = map[string]string{}
		}
		a.Versions[branch][file] = string(content)
	}

	if manifestData == nil {
		return nil, fmt.Errorf("%w: missing %s", ErrCorruptArchive, ManifestFile)
	}
	if maybeboardData == nil {
		return nil, fmt.Errorf("%w: missing %s", ErrCorruptArchive, MaybeboardFile)
	}

	m, err := manifest.Decode(manifestData)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptArchive, err)
	}
	for branch, content := range a.Stashes {
		if s, ok := m.Stashes[branch]; ok {
			s.Content = content
			m.Stashes[branch] = s
		}
	}
	a.Manifest = m

	var mb deck.Maybeboard
	if err := json.Unmarshal(maybeboardData, &mb); err != nil {
		return nil, fmt.Errorf("%w: decode maybeboard: %v", ErrCorruptArchive, err)
	}
	if mb.Categories == nil {
		mb.Categories = map[string][]deck.Card{}
	}
	a.Maybeboard = &mb

	return a, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrCorruptArchive, f.Name, err)
	}
	defer rc.Close()

	content, err := io.ReadAll(io.LimitReader(rc, maxEntrySize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrCorruptArchive, f.Name, err)
	}
	if len(content) > maxEntrySize {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrCorruptArchive, f.Name, maxEntrySize)
	}
	return content, nil
}
