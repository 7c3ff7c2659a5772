package nftstorage

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multibase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCID = "bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi"

func stringFile(name, content string) File {
	return File{
		Name: name,
		Open: func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader(content)), nil },
	}
}

// receivedParts reads the raw filenames and contents of every file part.
// It runs on the server goroutine, so failures are reported with t.Errorf.
func receivedParts(t *testing.T, r *http.Request) map[string]string {
	parts := map[string]string{}
	reader, err := r.MultipartReader()
	if err != nil {
		t.Errorf("multipart reader: %v", err)
		return parts
	}
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return parts
		}
		if err != nil {
			t.Errorf("next part: %v", err)
			return parts
		}
		_, params, err := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
		if err != nil {
			t.Errorf("content disposition: %v", err)
			return parts
		}
		assert.Equal(t, "file", params["name"])
		body, err := io.ReadAll(part)
		if err != nil {
			t.Errorf("read part: %v", err)
			return parts
		}
		parts[params["filename"]] = string(body)
	}
}

func TestStoreDirectorySendsTreeAndReturnsCID(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/upload", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		got = receivedParts(t, r)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok":true,"value":{"cid":"`+sampleCID+`"}}`)
	}))
	defer srv.Close()

	client := NewClient(Options{BaseURL: srv.URL + "/", Token: "secret"})
	contentID, err := client.StoreDirectory(context.Background(), []File{
		stringFile("photos/a.txt", "alpha"),
		stringFile("b.txt", "beta"),
	})
	require.NoError(t, err)
	assert.Equal(t, sampleCID, contentID)
	assert.Equal(t, map[string]string{"photos/a.txt": "alpha", "b.txt": "beta"}, got)
}

func TestStoreDirectoryAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"ok":false,"error":{"name":"HTTPError","message":"API Key is missing"}}`)
	}))
	defer srv.Close()

	_, err := NewClient(Options{BaseURL: srv.URL}).StoreDirectory(context.Background(), []File{stringFile("a.txt", "a")})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "API Key is missing", apiErr.Message)
	assert.True(t, IsAuthError(err))
}

func TestStoreDirectoryNonJSONFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(Options{BaseURL: srv.URL}).StoreDirectory(context.Background(), []File{stringFile("a.txt", "a")})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "bad gateway")
	assert.False(t, IsAuthError(err))
}

func TestStoreDirectoryKeepsServiceCIDEncoding(t *testing.T) {
	parsed, err := cid.Decode(sampleCID)
	require.NoError(t, err)
	base36 := parsed.Encode(multibase.MustNewEncoder(multibase.Base36))
	require.NotEqual(t, sampleCID, base36)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		_, _ = io.WriteString(w, `{"ok":true,"value":{"cid":"`+base36+`"}}`)
	}))
	defer srv.Close()

	contentID, err := NewClient(Options{BaseURL: srv.URL}).StoreDirectory(context.Background(), []File{stringFile("a.txt", "a")})
	require.NoError(t, err)
	assert.Equal(t, base36, contentID)
}

func TestStoreDirectoryRejectsMalformedCID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		_, _ = io.WriteString(w, `{"ok":true,"value":{"cid":"not-a-cid"}}`)
	}))
	defer srv.Close()

	_, err := NewClient(Options{BaseURL: srv.URL}).StoreDirectory(context.Background(), []File{stringFile("a.txt", "a")})
	assert.ErrorIs(t, err, ErrInvalidCID)
}

func TestStoreDirectoryOpenFailureAbortsRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		_, _ = io.WriteString(w, `{"ok":true,"value":{"cid":"`+sampleCID+`"}}`)
	}))
	defer srv.Close()

	broken := File{Name: "gone.txt", Open: func() (io.ReadCloser, error) { return nil, errors.New("vanished") }}
	_, err := NewClient(Options{BaseURL: srv.URL}).StoreDirectory(context.Background(), []File{broken})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vanished")
}

func TestStoreDirectoryEmpty(t *testing.T) {
	_, err := NewClient(Options{}).StoreDirectory(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyDirectory)
}

func TestGatewayURL(t *testing.T) {
	assert.Equal(t, "https://nftstorage.link/ipfs/bafy123", GatewayURL("nftstorage.link", "bafy123"))
	assert.Equal(t, "https://nftstorage.link/ipfs/cidXYZ", GatewayURL("", "cidXYZ"))
	assert.Equal(t, "https://w3s.link/ipfs/x", GatewayURL("w3s.link/", "x"))
}
