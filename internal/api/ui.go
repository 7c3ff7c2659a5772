package api

import (
	"embed"
	"errors"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"dirupload/internal/upload"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

var uiTemplates = template.Must(template.ParseFS(templatesFS, "templates/*.tmpl"))

const (
	sessionCookie     = "dirupload_session"
	sessionContextKey = "session_id"
	// one week; the session itself lives as long as the data dir.
	sessionCookieMaxAge = 7 * 24 * 60 * 60
)

// pageView is everything the upload page renders.
type pageView struct {
	StatusText string
	Failed     bool
	Uploading  bool
	ResultURL  string
	Files      []upload.File
	CanUpload  bool
	Error      string
}

// RegisterUIRoutes registers the single-page upload form. It works without JS.
func (a *API) RegisterUIRoutes(router *gin.Engine) {
	router.SetHTMLTemplate(uiTemplates)
	router.GET("/", a.UIHome)
	router.POST("/ui/selection", a.UISelectFiles)
	router.POST("/ui/upload", a.UIUpload)
}

// UIHome renders the upload page for the browser's session. A browser
// without a session gets the idle page; nothing is stored for it.
func (a *API) UIHome(c *gin.Context) {
	session, _ := a.lookupSession(c)
	c.HTML(http.StatusOK, "home", toPageView(session))
}

// UISelectFiles replaces the selection with the picked files and redirects home.
// This is where a browser's session is first created.
func (a *API) UISelectFiles(c *gin.Context) {
	incoming, err := incomingFiles(c)
	if err != nil {
		session, _ := a.lookupSession(c)
		log.Warn().Str("session_id", session.ID).Err(err).Msg("invalid selection form")
		a.renderError(c, http.StatusBadRequest, session, "could not read the selected files")
		return
	}
	session := a.ensureSession(c)
	if _, err := a.uploads.SetSelection(session.ID, incoming); err != nil {
		log.Error().Str("session_id", session.ID).Err(err).Msg("store selection failed")
		a.renderError(c, http.StatusInternalServerError, session, "could not store the selected files")
		return
	}
	c.Redirect(http.StatusFound, "/")
}

// UIUpload starts the upload and redirects home, where the status is shown.
// Pressing upload with nothing selected or while uploading changes nothing.
func (a *API) UIUpload(c *gin.Context) {
	session, ok := a.lookupSession(c)
	if !ok {
		c.Redirect(http.StatusFound, "/")
		return
	}
	_, _, err := a.uploads.Upload(session.ID)
	switch {
	case err == nil, errors.Is(err, upload.ErrNoFiles), errors.Is(err, upload.ErrUploadInProgress):
		c.Redirect(http.StatusFound, "/")
	default:
		a.renderError(c, http.StatusInternalServerError, session, "could not start the upload")
	}
}

func (a *API) renderError(c *gin.Context, code int, session upload.Session, msg string) {
	if current, ok := a.uploads.GetSession(session.ID); ok {
		session = current
	}
	view := toPageView(session)
	view.Error = msg
	c.HTML(code, "home", view)
}

// lookupSession resolves the session named by the cookie.
func (a *API) lookupSession(c *gin.Context) (upload.Session, bool) {
	id, err := c.Cookie(sessionCookie)
	if err != nil || id == "" {
		return upload.Session{}, false
	}
	session, ok := a.uploads.GetSession(id)
	if ok {
		c.Set(sessionContextKey, session.ID)
	}
	return session, ok
}

// ensureSession resolves the cookie session, starting a new one when the
// cookie is missing or unknown.
func (a *API) ensureSession(c *gin.Context) upload.Session {
	if session, ok := a.lookupSession(c); ok {
		return session
	}
	session := a.uploads.CreateSession()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, session.ID, sessionCookieMaxAge, "/", "", false, true)
	c.Set(sessionContextKey, session.ID)
	return session
}

func toPageView(session upload.Session) pageView {
	return pageView{
		StatusText: session.Status.Text(),
		Failed:     session.Status.IsFailure(),
		Uploading:  session.Status == upload.StatusUploading,
		ResultURL:  session.ResultURL,
		Files:      session.Selection.Files,
		CanUpload:  session.CanUpload(),
	}
}
