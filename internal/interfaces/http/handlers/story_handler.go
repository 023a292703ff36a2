package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/KinKeep/internal/application/family"
)

// StoryHandler serves story import and the export downloads.
type StoryHandler struct {
	svc family.Service
}

func NewStoryHandler(svc family.Service) *StoryHandler {
	return &StoryHandler{svc: svc}
}

// ImportRequest is the body of POST /import/story.
type ImportRequest struct {
	Story string `json:"story"`
}

// Import handles POST /import/story.
func (h *StoryHandler) Import(c *gin.Context) {
	var req ImportRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.svc.ImportStory(c.Request.Context(), req.Story)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, res)
}

// Download handles GET /export?format=json|xlsx as a file attachment.
func (h *StoryHandler) Download(c *gin.Context) {
	format, err := family.ParseExportFormat(c.Query("format"))
	if err != nil {
		respondError(c, err)
		return
	}
	exp, err := h.svc.Export(c.Request.Context(), format)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+exp.Filename+`"`)
	c.Data(http.StatusOK, exp.ContentType, exp.Data)
}

// Publish handles POST /export?format=json|xlsx, storing the export in
// object storage and returning its link.
func (h *StoryHandler) Publish(c *gin.Context) {
	format, err := family.ParseExportFormat(c.Query("format"))
	if err != nil {
		respondError(c, err)
		return
	}
	pub, err := h.svc.PublishExport(c.Request.Context(), format)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, pub)
}
