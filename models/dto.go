package models

type CreateTagRequest struct {
	Title string `json:"title" validate:"required,min=1,max=255"`
}

type UpdateTagRequest struct {
	Title string `json:"title" validate:"required,min=1,max=255"`
}

type ParseTagsRequest struct {
	List   string `json:"list" validate:"max=4096"`
	Create *bool  `json:"create"`
}

type TaggingRequest struct {
	TagID  uint      `json:"tag_id" validate:"required,min=1"`
	Entity EntityRef `json:"entity"`
}

type TagEntityRequest struct {
	Entity EntityRef `json:"entity"`
	List   string    `json:"list" validate:"max=4096"`
}

type CloudParams struct {
	Limit     int    `form:"limit"`
	Weighting string `form:"weighting"`
}
