package upload

import "errors"

var (
	ErrNoFiles          = errors.New("no files selected")
	ErrSessionNotFound  = errors.New("session not found")
	ErrUploadInProgress = errors.New("upload already in progress")
)
