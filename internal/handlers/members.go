package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gymstack/gymstack/internal/services"
	appErrors "github.com/gymstack/gymstack/pkg/errors"
	"github.com/gymstack/gymstack/pkg/response"
)

// MemberHandler exposes the member directory.
type MemberHandler struct {
	members *services.MemberService
}

// NewMemberHandler constructs a MemberHandler.
func NewMemberHandler(members *services.MemberService) *MemberHandler {
	return &MemberHandler{members: members}
}

type registerMemberRequest struct {
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"first_name" validate:"omitempty,max=128"`
	LastName  string `json:"last_name" validate:"omitempty,max=128"`
}

// POST /api/members
func (h *MemberHandler) Register(c *gin.Context) {
	var req registerMemberRequest
	if !bindAndValidate(c, &req) {
		return
	}

	member, err := h.members.Register(requestContext(c), services.RegisterMemberInput{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		response.Error(c, mapMemberError(err))
		return
	}

	response.Success(c, http.StatusCreated, member)
}

// GET /api/members
func (h *MemberHandler) List(c *gin.Context) {
	members, err := h.members.List(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, gin.H{"members": members},
		&response.Meta{Count: len(members)})
}

// GET /api/members/:id
func (h *MemberHandler) Get(c *gin.Context) {
	member, err := h.members.Get(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, mapMemberError(err))
		return
	}
	response.Success(c, http.StatusOK, member)
}

// DELETE /api/members/:id
func (h *MemberHandler) Deactivate(c *gin.Context) {
	if err := h.members.Deactivate(requestContext(c), c.Param("id")); err != nil {
		response.Error(c, mapMemberError(err))
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deactivated": true})
}

func mapMemberError(err error) error {
	switch {
	case errors.Is(err, services.ErrMemberNotFound):
		return appErrors.ErrMemberNotFound
	case errors.Is(err, services.ErrMemberEmailTaken):
		return appErrors.ErrMemberEmailTaken
	default:
		return err
	}
}
