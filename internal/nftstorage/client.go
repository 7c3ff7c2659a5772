package nftstorage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultBaseURL is the public nft.storage API.
	DefaultBaseURL = "https://api.nft.storage"

	uploadPath     = "/upload"
	fileFieldName  = "file"
	maxErrorBodyKB = 64
)

// File is one named blob of a directory upload. Name is the slash-separated
// path the blob gets inside the uploaded directory.
type File struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// Client stores directories on nft.storage.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type uploadResponse struct {
	OK    bool `json:"ok"`
	Value struct {
		CID string `json:"cid"`
	} `json:"value"`
	Error *struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewClient builds a client. An empty token is accepted; the service rejects
// the first request instead.
func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		// no client-level timeout: callers bound uploads through the context
		httpClient = &http.Client{}
	}
	return &Client{baseURL: baseURL, token: opts.Token, httpClient: httpClient}
}

// StoreDirectory uploads files as a single directory and returns the root CID.
func (c *Client) StoreDirectory(ctx context.Context, files []File) (string, error) {
	if len(files) == 0 {
		return "", ErrEmptyDirectory
	}

	body, contentType := c.multipartBody(files)
	defer func() { _ = body.Close() }()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+uploadPath, body)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	httpResponse, err := c.httpClient.Do(req)
	if err != nil {
		log.Warn().Err(err).Int("files", len(files)).Msg("nft.storage request failed")
		return "", fmt.Errorf("upload request: %w", err)
	}
	defer func() { _ = httpResponse.Body.Close() }()

	return decodeUploadResponse(httpResponse)
}

// multipartBody streams the form through a pipe so blobs are never held in memory.
func (c *Client) multipartBody(files []File) (io.ReadCloser, string) {
	pipeReader, pipeWriter := io.Pipe()
	formWriter := multipart.NewWriter(pipeWriter)

	go func() {
		err := writeParts(formWriter, files)
		if err == nil {
			err = formWriter.Close()
		}
		_ = pipeWriter.CloseWithError(err)
	}()

	return pipeReader, formWriter.FormDataContentType()
}

func writeParts(formWriter *multipart.Writer, files []File) error {
	for _, f := range files {
		if err := writePart(formWriter, f); err != nil {
			return err
		}
	}
	return nil
}

func writePart(formWriter *multipart.Writer, f File) error {
	if f.Open == nil {
		return fmt.Errorf("file %q has no content", f.Name)
	}
	content, err := f.Open()
	if err != nil {
		return fmt.Errorf("open %q: %w", f.Name, err)
	}
	defer func() { _ = content.Close() }()

	partWriter, err := formWriter.CreateFormFile(fileFieldName, f.Name)
	if err != nil {
		return fmt.Errorf("create part %q: %w", f.Name, err)
	}
	if _, err := io.Copy(partWriter, content); err != nil {
		return fmt.Errorf("write part %q: %w", f.Name, err)
	}
	return nil
}

func decodeUploadResponse(httpResponse *http.Response) (string, error) {
	raw, err := io.ReadAll(io.LimitReader(httpResponse.Body, maxErrorBodyKB<<10))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var decoded uploadResponse
	decodeErr := json.Unmarshal(raw, &decoded)

	if httpResponse.StatusCode < 200 || httpResponse.StatusCode >= 300 || !decoded.OK {
		apiErr := &APIError{StatusCode: httpResponse.StatusCode}
		switch {
		case decodeErr == nil && decoded.Error != nil:
			apiErr.Name = decoded.Error.Name
			apiErr.Message = decoded.Error.Message
		default:
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		log.Warn().Int("status", apiErr.StatusCode).Str("error_name", apiErr.Name).Msg("nft.storage rejected upload")
		return "", apiErr
	}
	if decodeErr != nil {
		return "", fmt.Errorf("decode response: %w", decodeErr)
	}

	// The CID is only checked; the link keeps the encoding the service chose.
	if _, err := cid.Decode(decoded.Value.CID); err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrInvalidCID, decoded.Value.CID, err)
	}
	return decoded.Value.CID, nil
}

// IsAuthError reports whether err is a rejection of the API token.
func IsAuthError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
}
