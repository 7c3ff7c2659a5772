package api

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"dirupload/internal/upload"
)

const (
	filesFormField = "files"
	pathsFormField = "paths"
)

type createSessionResponse struct {
	SessionID string        `json:"session_id"`
	Status    upload.Status `json:"status"`
}

type fileResponse struct {
	Name       string `json:"name"`
	UploadPath string `json:"upload_path"`
	Size       int64  `json:"size"`
}

type sessionResponse struct {
	ID         string         `json:"id"`
	Status     upload.Status  `json:"status"`
	StatusText string         `json:"status_text,omitempty"`
	CreatedAt  string         `json:"created_at"`
	Files      []fileResponse `json:"files"`
	CanUpload  bool           `json:"can_upload"`
	ResultURL  string         `json:"result_url,omitempty"`
	CID        string         `json:"cid,omitempty"`
}

type API struct {
	uploads *upload.Manager
}

func NewAPI(uploads *upload.Manager) *API {
	return &API{uploads: uploads}
}

// RegisterRoutes registers API routes on the provided gin engine
func (a *API) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.POST("/sessions", a.CreateSession)
		api.GET("/sessions/:id", a.GetSession)
		api.PUT("/sessions/:id/files", a.SelectFiles)
		api.POST("/sessions/:id/upload", a.StartUpload)
	}
}

// CreateSession opens a new upload session
func (a *API) CreateSession(c *gin.Context) {
	session := a.uploads.CreateSession()
	log.Info().Str("session_id", session.ID).Time("created_at", session.CreatedAt).Msg("session created")
	c.JSON(http.StatusCreated, createSessionResponse{SessionID: session.ID, Status: session.Status})
}

// GetSession returns selection, status and result link
func (a *API) GetSession(c *gin.Context) {
	id := c.Param("id")
	session, ok := a.uploads.GetSession(id)
	if !ok {
		log.Warn().Str("session_id", id).Msg("session not found on get")
		c.JSON(http.StatusNotFound, gin.H{"error": upload.ErrSessionNotFound.Error()})
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(session))
}

// SelectFiles replaces the session's selection with the uploaded multipart files
func (a *API) SelectFiles(c *gin.Context) {
	id := c.Param("id")
	incoming, err := incomingFiles(c)
	if err != nil {
		log.Warn().Str("session_id", id).Err(err).Msg("invalid selection request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}
	session, err := a.uploads.SetSelection(id, incoming)
	if err != nil {
		a.writeError(c, id, err)
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(session))
}

// StartUpload begins uploading the current selection. The response already
// reports the uploading status; poll GetSession for the outcome.
func (a *API) StartUpload(c *gin.Context) {
	id := c.Param("id")
	session, _, err := a.uploads.Upload(id)
	if err != nil {
		a.writeError(c, id, err)
		return
	}
	c.JSON(http.StatusAccepted, toSessionResponse(session))
}

func (a *API) writeError(c *gin.Context, sessionID string, err error) {
	switch {
	case errors.Is(err, upload.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, upload.ErrNoFiles):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, upload.ErrUploadInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		log.Error().Str("session_id", sessionID).Err(err).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func toSessionResponse(session upload.Session) sessionResponse {
	files := make([]fileResponse, 0, len(session.Selection.Files))
	for _, f := range session.Selection.Files {
		files = append(files, fileResponse{Name: f.Name, UploadPath: f.UploadPath(), Size: f.Size})
	}
	return sessionResponse{
		ID:         session.ID,
		Status:     session.Status,
		StatusText: session.Status.Text(),
		CreatedAt:  session.CreatedAt.UTC().Format(time.RFC3339),
		Files:      files,
		CanUpload:  session.CanUpload(),
		ResultURL:  session.ResultURL,
		CID:        session.CID,
	}
}

// incomingFiles reads the picked files from a multipart request. An optional
// "paths" field, one value per file, carries filesystem paths.
func incomingFiles(c *gin.Context) ([]upload.Incoming, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, fmt.Errorf("parse multipart form: %w", err)
	}
	headers := form.File[filesFormField]
	paths := form.Value[pathsFormField]
	incoming := make([]upload.Incoming, 0, len(headers))
	for i, fh := range headers {
		header := fh
		in := upload.Incoming{
			Name:         header.Filename,
			RelativePath: relativePath(header),
			Open:         func() (io.ReadCloser, error) { return header.Open() },
		}
		if len(paths) == len(headers) {
			in.Path = strings.TrimSpace(paths[i])
		}
		incoming = append(incoming, in)
	}
	return incoming, nil
}

// relativePath returns the directory-relative name a browser sent for a file
// picked from a folder. multipart strips directories from Filename, so the
// raw Content-Disposition is consulted.
func relativePath(fh *multipart.FileHeader) string {
	_, params, err := mime.ParseMediaType(fh.Header.Get("Content-Disposition"))
	if err != nil {
		return ""
	}
	raw := params["filename"]
	if !strings.ContainsAny(raw, `/\`) {
		return ""
	}
	return raw
}
