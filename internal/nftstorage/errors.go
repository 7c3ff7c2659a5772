package nftstorage

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyDirectory = errors.New("no files to store")
	ErrInvalidCID     = errors.New("invalid cid in response")
)

// APIError is a non-successful answer from the pinning service.
type APIError struct {
	StatusCode int
	Name       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("nft.storage: http %d: %s: %s", e.StatusCode, e.Name, e.Message)
	}
	return fmt.Sprintf("nft.storage: http %d: %s", e.StatusCode, e.Message)
}
