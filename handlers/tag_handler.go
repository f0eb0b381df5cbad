package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cms-tags/helper"
	"cms-tags/middleware"
	"cms-tags/models"
	"cms-tags/services"
)

type TagHandler struct {
	tagService services.TagService
	Helper     *helper.HTTPHelper
	logger     *zap.Logger
	cloudLimit int
}

func NewTagHandler(tagService services.TagService, h *helper.HTTPHelper, cloudLimit int, logger *zap.Logger) *TagHandler {
	return &TagHandler{tagService: tagService, Helper: h, logger: logger, cloudLimit: cloudLimit}
}

func (h *TagHandler) CreateTag(c *gin.Context) {
	var req models.CreateTagRequest
	if !h.Helper.BindAndValidate(c, &req) {
		return
	}

	tag, err := h.tagService.CreateTag(c.Request.Context(), req, middleware.ActorID(c))
	if err != nil {
		sendServiceError(h.Helper, c, err)
		return
	}

	h.logger.Info("Tag created", zap.Uint("tag_id", tag.ID), zap.String("title", tag.Title))
	h.Helper.SendSuccess(c, "Tag created successfully", tag)
}

func (h *TagHandler) GetTags(c *gin.Context) {
	tags, err := h.tagService.GetTags(c.Request.Context())
	if err != nil {
		sendServiceError(h.Helper, c, err)
		return
	}

	h.Helper.SendSuccess(c, "Success", tags)
}

func (h *TagHandler) GetTag(c *gin.Context) {
	id, ok := h.tagID(c)
	if !ok {
		return
	}

	tag, err := h.tagService.GetTag(c.Request.Context(), id)
	if err != nil {
		sendServiceError(h.Helper, c, err)
		return
	}

	h.Helper.SendSuccess(c, "Success", tag)
}

func (h *TagHandler) UpdateTag(c *gin.Context) {
	id, ok := h.tagID(c)
	if !ok {
		return
	}

	var req models.UpdateTagRequest
	if !h.Helper.BindAndValidate(c, &req) {
		return
	}

	tag, err := h.tagService.UpdateTag(c.Request.Context(), id, req, middleware.ActorID(c))
	if err != nil {
		sendServiceError(h.Helper, c, err)
		return
	}

	h.Helper.SendSuccess(c, "Tag updated successfully", tag)
}

func (h *TagHandler) DeleteTag(c *gin.Context) {
	id, ok := h.tagID(c)
	if !ok {
		return
	}

	if err := h.tagService.DeleteTag(c.Request.Context(), id, middleware.ActorID(c)); err != nil {
		sendServiceError(h.Helper, c, err)
		return
	}

	h.logger.Info("Tag deleted", zap.Uint("tag_id", id))
	h.Helper.SendSuccess(c, "Tag deleted successfully", h.Helper.EmptyJsonMap())
}

// Cloud returns the weighted tag cloud. ?limit=0 includes every used tag and
// ?weighting=band|size overrides the configured weighting.
func (h *TagHandler) Cloud(c *gin.Context) {
	params := models.CloudParams{Limit: h.cloudLimit}
	if err := c.ShouldBindQuery(&params); err != nil {
		h.Helper.SendBadRequest(c, "Invalid query", err.Error())
		return
	}

	var weighting services.Weighting
	if params.Weighting != "" {
		w, err := services.ParseWeighting(params.Weighting)
		if err != nil {
			h.Helper.SendBadRequest(c, err.Error(), h.Helper.EmptyJsonMap())
			return
		}
		weighting = w
	}

	tags, err := h.tagService.Cloud(c.Request.Context(), params.Limit, weighting)
	if err != nil {
		sendServiceError(h.Helper, c, err)
		return
	}

	h.Helper.SendSuccess(c, "Success", tags)
}

func (h *TagHandler) Popular(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(h.cloudLimit)))
	if err != nil {
		h.Helper.SendBadRequest(c, "Invalid limit", h.Helper.EmptyJsonMap())
		return
	}

	tags, err := h.tagService.MostPopular(c.Request.Context(), limit)
	if err != nil {
		sendServiceError(h.Helper, c, err)
		return
	}

	h.Helper.SendSuccess(c, "Success", tags)
}

// Coincident lists the tags sharing at least one entity with the tag.
func (h *TagHandler) Coincident(c *gin.Context) {
	id, ok := h.tagID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	tag, err := h.tagService.GetTag(ctx, id)
	if err != nil {
		sendServiceError(h.Helper, c, err)
		return
	}

	tags, err := h.tagService.CoincidentWithOne(ctx, *tag)
	if err != nil {
		sendServiceError(h.Helper, c, err)
		return
	}

	h.Helper.SendSuccess(c, "Success", tags)
}

// CoincidentWithAll lists the tags found on entities carrying every tag in ?ids=1,2.
func (h *TagHandler) CoincidentWithAll(c *gin.Context) {
	ids, err := parseIDs(c.Query("ids"))
	if err != nil {
		h.Helper.SendBadRequest(c, "Invalid tag ids", err.Error())
		return
	}

	ctx := c.Request.Context()
	tags := make([]models.Tag, 0, len(ids))
	for _, id := range ids {
		tag, err := h.tagService.GetTag(ctx, id)
		if err != nil {
			sendServiceError(h.Helper, c, err)
			return
		}
		tags = append(tags, *tag)
	}

	coincident, err := h.tagService.CoincidentWithAll(ctx, tags)
	if err != nil {
		sendServiceError(h.Helper, c, err)
		return
	}

	h.Helper.SendSuccess(c, "Success", coincident)
}

// ParseList resolves a tag list. Unknown titles are created only when create is true.
func (h *TagHandler) ParseList(c *gin.Context) {
	var req models.ParseTagsRequest
	if !h.Helper.BindAndValidate(c, &req) {
		return
	}

	create := req.Create != nil && *req.Create
	tags, err := h.tagService.ParseList(c.Request.Context(), req.List, create, middleware.ActorID(c))
	if err != nil {
		sendServiceError(h.Helper, c, err)
		return
	}

	h.Helper.SendSuccess(c, "Success", tags)
}

// RelatedEntities loads the entities of :kind tagged with the tag.
func (h *TagHandler) RelatedEntities(c *gin.Context) {
	id, ok := h.tagID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	kind := c.Param("kind")
	items, err := h.tagService.RelatedEntities(ctx, id, kind)
	if err != nil {
		sendServiceError(h.Helper, c, err)
		return
	}

	count, err := h.tagService.CountOfType(ctx, id, kind)
	if err != nil {
		sendServiceError(h.Helper, c, err)
		return
	}

	h.Helper.SendSuccess(c, "Success", map[string]interface{}{
		"count": count,
		"items": items,
	})
}

func (h *TagHandler) tagID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		h.Helper.SendBadRequest(c, "Invalid tag ID", h.Helper.EmptyJsonMap())
		return 0, false
	}
	return uint(id), true
}

func parseIDs(raw string) ([]uint, error) {
	var ids []uint
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return nil, err
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}
