package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"cms-tags/helper"
	"cms-tags/repositories"
	"cms-tags/services"
	"cms-tags/site"
)

// sendServiceError maps domain errors onto the response envelope.
func sendServiceError(h *helper.HTTPHelper, c *gin.Context, err error) {
	switch {
	case errors.Is(err, repositories.ErrTagNotFound), errors.Is(err, repositories.ErrEntityNotFound):
		h.SendNotFoundError(c, err.Error(), h.EmptyJsonMap())
	case errors.Is(err, services.ErrTagExists):
		h.SendConflictError(c, err.Error(), h.EmptyJsonMap())
	case errors.Is(err, services.ErrBlankTitle),
		errors.Is(err, services.ErrUnknownKind),
		errors.Is(err, services.ErrKindType),
		errors.Is(err, site.ErrNoSite):
		h.SendBadRequest(c, err.Error(), h.EmptyJsonMap())
	default:
		h.SendDatabaseError(c, "Error ", err.Error())
	}
}
