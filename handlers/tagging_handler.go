package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cms-tags/helper"
	"cms-tags/middleware"
	"cms-tags/models"
	"cms-tags/services"
)

type TaggingHandler struct {
	tagService services.TagService
	Helper     *helper.HTTPHelper
	logger     *zap.Logger
}

func NewTaggingHandler(tagService services.TagService, h *helper.HTTPHelper, logger *zap.Logger) *TaggingHandler {
	return &TaggingHandler{tagService: tagService, Helper: h, logger: logger}
}

func (h *TaggingHandler) Apply(c *gin.Context) {
	var req models.TaggingRequest
	if !h.Helper.BindAndValidate(c, &req) {
		return
	}

	created, err := h.tagService.Apply(c.Request.Context(), req.TagID, req.Entity, middleware.ActorID(c))
	if err != nil {
		sendServiceError(h.Helper, c, err)
		return
	}

	h.Helper.SendSuccess(c, "Tag applied", gin.H{"created": created})
}

func (h *TaggingHandler) Remove(c *gin.Context) {
	var req models.TaggingRequest
	if !h.Helper.BindAndValidate(c, &req) {
		return
	}

	removed, err := h.tagService.Remove(c.Request.Context(), req.TagID, req.Entity, middleware.ActorID(c))
	if err != nil {
		sendServiceError(h.Helper, c, err)
		return
	}

	h.Helper.SendSuccess(c, "Tag removed", gin.H{"removed": removed})
}

// TagEntity applies a tag list to an entity, creating missing tags.
func (h *TaggingHandler) TagEntity(c *gin.Context) {
	var req models.TagEntityRequest
	if !h.Helper.BindAndValidate(c, &req) {
		return
	}

	tags, err := h.tagService.TagEntity(c.Request.Context(), req.Entity, req.List, middleware.ActorID(c))
	if err != nil {
		sendServiceError(h.Helper, c, err)
		return
	}

	h.Helper.SendSuccess(c, "Entity tagged", tags)
}

// EntityTags lists the tags on an entity, weighted for display.
func (h *TaggingHandler) EntityTags(c *gin.Context) {
	ref, ok := h.entityRef(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	tags, err := h.tagService.AttachedTagsOf(ctx, ref)
	if err != nil {
		sendServiceError(h.Helper, c, err)
		return
	}

	tags, err = h.tagService.EnsurePopularity(ctx, tags)
	if err != nil {
		sendServiceError(h.Helper, c, err)
		return
	}

	h.Helper.SendSuccess(c, "Success", tags)
}

// RemoveEntity drops every tagging of an entity deleted by the host application.
func (h *TaggingHandler) RemoveEntity(c *gin.Context) {
	ref, ok := h.entityRef(c)
	if !ok {
		return
	}

	n, err := h.tagService.RemoveEntity(c.Request.Context(), ref)
	if err != nil {
		sendServiceError(h.Helper, c, err)
		return
	}

	h.Helper.SendSuccess(c, "Taggings removed", gin.H{"removed": n})
}

func (h *TaggingHandler) entityRef(c *gin.Context) (models.EntityRef, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		h.Helper.SendBadRequest(c, "Invalid entity ID", h.Helper.EmptyJsonMap())
		return models.EntityRef{}, false
	}
	ref := models.EntityRef{Kind: c.Param("kind"), ID: uint(id)}
	if err := h.Helper.Validate.Struct(ref); err != nil {
		h.Helper.SendBadRequest(c, "Invalid entity", err.Error())
		return models.EntityRef{}, false
	}
	return ref, true
}
