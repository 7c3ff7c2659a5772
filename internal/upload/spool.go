package upload

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	fileutil "dirupload/internal/file"
	"dirupload/internal/nftstorage"
)

// spoolFiles copies every incoming file into dir and returns the spooled set
// in selection order.
func spoolFiles(dir string, incoming []Incoming) ([]File, error) {
	if err := fileutil.EnsureDir(dir); err != nil {
		return nil, err
	}
	files := make([]File, 0, len(incoming))
	for i, in := range incoming {
		spooled, err := spoolOne(dir, i, in)
		if err != nil {
			return nil, err
		}
		files = append(files, spooled)
	}
	return files, nil
}

func spoolOne(dir string, index int, in Incoming) (File, error) {
	if in.Open == nil {
		return File{}, fmt.Errorf("file %q has no content", in.Name)
	}
	content, err := in.Open()
	if err != nil {
		return File{}, fmt.Errorf("open %q: %w", in.Name, err)
	}
	defer func() { _ = content.Close() }()

	blobPath := filepath.Join(dir, fmt.Sprintf("%05d.blob", index))
	size, err := fileutil.CopyAtomic(blobPath, content)
	if err != nil {
		return File{}, fmt.Errorf("spool %q: %w", in.Name, err)
	}
	return File{
		Name:         in.Name,
		RelativePath: in.RelativePath,
		Path:         in.Path,
		Size:         size,
		BlobPath:     blobPath,
	}, nil
}

// directoryEntries repackages spooled files as named blobs for the storer.
func directoryEntries(files []File) []nftstorage.File {
	entries := make([]nftstorage.File, len(files))
	for i, f := range files {
		name := f.UploadPath()
		if name == "" {
			name = fallbackUploadPath(i)
		}
		blobPath := f.BlobPath
		entries[i] = nftstorage.File{
			Name: name,
			Open: func() (io.ReadCloser, error) { return os.Open(blobPath) }, //nolint:gosec // spool path owned by the app
		}
	}
	return entries
}
