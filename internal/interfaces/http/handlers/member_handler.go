package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/KinKeep/internal/application/family"
	"github.com/turtacn/KinKeep/internal/domain/member"
)

// MemberHandler serves the member record and its views.
type MemberHandler struct {
	svc family.Service
}

// NewMemberHandler creates a MemberHandler over svc.
func NewMemberHandler(svc family.Service) *MemberHandler {
	return &MemberHandler{svc: svc}
}

// MemoryRequest is the body of POST /members/:id/memories.
type MemoryRequest struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Date    string `json:"date"`
}

// List handles GET /members?q=&gender=&view=.
func (h *MemberHandler) List(c *gin.Context) {
	res, err := h.svc.List(c.Request.Context(), &family.ListInput{
		Term:   c.Query("q"),
		Gender: c.Query("gender"),
		View:   c.Query("view"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, res)
}

// Timeline handles GET /timeline, the member list ordered by birth date.
func (h *MemberHandler) Timeline(c *gin.Context) {
	res, err := h.svc.List(c.Request.Context(), &family.ListInput{
		Term:   c.Query("q"),
		Gender: c.Query("gender"),
		View:   string(family.ViewTimeline),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, res)
}

// Get handles GET /members/:id.
func (h *MemberHandler) Get(c *gin.Context) {
	m, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, m)
}

// Create handles POST /members.
func (h *MemberHandler) Create(c *gin.Context) {
	var draft member.Draft
	if !bindJSON(c, &draft) {
		return
	}
	m, err := h.svc.Create(c.Request.Context(), draft)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Location", "/api/v1/members/"+m.ID)
	respond(c, http.StatusCreated, m)
}

// Update handles PUT /members/:id. The body replaces every editable field.
func (h *MemberHandler) Update(c *gin.Context) {
	var draft member.Draft
	if !bindJSON(c, &draft) {
		return
	}
	m, err := h.svc.Update(c.Request.Context(), c.Param("id"), draft)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, m)
}

// Delete handles DELETE /members/:id.
func (h *MemberHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Relatives handles GET /members/:id/relatives.
func (h *MemberHandler) Relatives(c *gin.Context) {
	rel, err := h.svc.Relatives(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, rel)
}

// Candidates handles GET /candidates?member_id=. Without member_id the
// choices are those for a new member.
func (h *MemberHandler) Candidates(c *gin.Context) {
	cands, err := h.svc.Candidates(c.Request.Context(), c.Query("member_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, cands)
}

// AddMemory handles POST /members/:id/memories.
func (h *MemberHandler) AddMemory(c *gin.Context) {
	var req MemoryRequest
	if !bindJSON(c, &req) {
		return
	}
	m, err := h.svc.AddMemory(c.Request.Context(), c.Param("id"), &family.MemoryInput{
		Kind:    req.Type,
		Title:   req.Title,
		Content: req.Content,
		Date:    req.Date,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, m)
}

// RemoveMemory handles DELETE /members/:id/memories/:memoryId.
func (h *MemberHandler) RemoveMemory(c *gin.Context) {
	m, err := h.svc.RemoveMemory(c.Request.Context(), c.Param("id"), c.Param("memoryId"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, m)
}
