package upload

import (
	"context"
	"io"
	"time"

	"dirupload/internal/nftstorage"
)

type Status string

const (
	StatusIdle      Status = "idle"
	StatusUploading Status = "uploading"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Text is the status line shown to the user. Idle has none.
func (s Status) Text() string {
	switch s {
	case StatusUploading:
		return "Uploading..."
	case StatusSucceeded:
		return "Upload Successful"
	case StatusFailed:
		return "Upload Failed"
	default:
		return ""
	}
}

// IsFailure reports whether the status should be rendered as an error.
func (s Status) IsFailure() bool { return s == StatusFailed }

// File is one selected file, already spooled to disk.
type File struct {
	Name         string `json:"name"`
	RelativePath string `json:"relative_path,omitempty"`
	Path         string `json:"path,omitempty"`
	Size         int64  `json:"size"`
	BlobPath     string `json:"blob_path"`
}

// Selection is the current file set of a session. Each replacement gets a new ID.
type Selection struct {
	ID    string `json:"id,omitempty"`
	Files []File `json:"files"`
}

func (s Selection) clone() Selection {
	files := make([]File, len(s.Files))
	copy(files, s.Files)
	return Selection{ID: s.ID, Files: files}
}

// Session holds the state behind one upload page.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Status    Status    `json:"status"`
	Selection Selection `json:"selection"`
	ResultURL string    `json:"result_url,omitempty"`
	CID       string    `json:"cid,omitempty"`
}

// CanUpload reports whether the upload trigger should be enabled.
func (s Session) CanUpload() bool {
	return len(s.Selection.Files) > 0 && s.Status != StatusUploading
}

// Incoming describes a file the user picked, before it is spooled.
type Incoming struct {
	Name         string
	RelativePath string
	Path         string
	Open         func() (io.ReadCloser, error)
}

// Storer stores a directory of named blobs and returns its content identifier.
type Storer interface {
	StoreDirectory(ctx context.Context, files []nftstorage.File) (string, error)
}

// StorerFunc adapts a function to Storer.
type StorerFunc func(ctx context.Context, files []nftstorage.File) (string, error)

func (f StorerFunc) StoreDirectory(ctx context.Context, files []nftstorage.File) (string, error) {
	return f(ctx, files)
}

type Options struct {
	DataDir     string
	GatewayHost string
	// UploadTimeout bounds a single upload; zero waits indefinitely.
	UploadTimeout time.Duration
	Storer        Storer
}

const defaultDataDir = "data"
