package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"cms-tags/config"
	"cms-tags/middleware"
	"cms-tags/models"
	"cms-tags/repositories"
	"cms-tags/services"
	"cms-tags/site"
)

var testSecret = []byte("test-secret")

type envelope struct {
	Code        int             `json:"code"`
	CodeMessage json.RawMessage `json:"code_message"`
	CodeType    string          `json:"code_type"`
	Data        json.RawMessage `json:"data"`
}

type TagHandlerTestSuite struct {
	suite.Suite
	db     *gorm.DB
	router *gin.Engine
	pages  repositories.PageRepository
	token  string
	writer string
}

func (suite *TagHandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Discard,
	})
	suite.Require().NoError(err)
	sqlDB, err := db.DB()
	suite.Require().NoError(err)
	sqlDB.SetMaxOpenConns(1)
	suite.Require().NoError(config.Migrate(db))
	suite.db = db

	logger := zap.NewNop()
	suite.pages = repositories.NewPageRepository(db)
	registry := services.NewRegistry()
	services.RegisterKind(registry, models.KindPage, suite.pages.GetByIDs)

	tagService := services.NewTagService(
		repositories.NewTagRepository(db, repositories.TagRepositoryOptions{
			SiteScoped: true,
			Sites:      site.ContextResolver{},
		}, logger),
		repositories.NewTaggingRepository(db, logger),
		registry,
		nil,
		services.DefaultCloudOptions(),
		logger,
	)

	suite.router = NewRouter(tagService, RouterOptions{JWTSecret: testSecret, CloudLimit: 10}, logger)
	suite.token = suite.signToken(1, models.RoleAdmin)
	suite.writer = suite.signToken(2, models.RoleWriter)
}

func (suite *TagHandlerTestSuite) TearDownTest() {
	sqlDB, _ := suite.db.DB()
	sqlDB.Close()
}

func (suite *TagHandlerTestSuite) signToken(userID uint, role models.UserRole) string {
	claims := &middleware.Claims{
		UserID:   userID,
		Username: fmt.Sprintf("user%d", userID),
		Role:     string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	suite.Require().NoError(err)
	return token
}

func (suite *TagHandlerTestSuite) request(method, path, token, siteID string, payload interface{}) (*httptest.ResponseRecorder, envelope) {
	var body bytes.Buffer
	if payload != nil {
		suite.Require().NoError(json.NewEncoder(&body).Encode(payload))
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if siteID != "" {
		req.Header.Set(middleware.SiteHeader, siteID)
	}

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	var resp envelope
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w, resp
}

func (suite *TagHandlerTestSuite) admin(method, path string, payload interface{}) (*httptest.ResponseRecorder, envelope) {
	return suite.request(method, path, suite.token, "1", payload)
}

func (suite *TagHandlerTestSuite) createTag(title string) models.Tag {
	w, resp := suite.admin(http.MethodPost, "/api/v1/admin/tags", models.CreateTagRequest{Title: title})
	suite.Require().Equal(http.StatusOK, w.Code, string(resp.CodeMessage))

	var tag models.Tag
	suite.Require().NoError(json.Unmarshal(resp.Data, &tag))
	return tag
}

func (suite *TagHandlerTestSuite) page(title string) models.EntityRef {
	p := &models.Page{SiteID: 1, Title: title, Slug: title}
	suite.Require().NoError(suite.pages.Create(context.Background(), p))
	return models.EntityRef{Kind: models.KindPage, ID: p.ID}
}

func (suite *TagHandlerTestSuite) tagEntity(ref models.EntityRef, list string) []models.Tag {
	w, resp := suite.admin(http.MethodPost, "/api/v1/admin/entities/tag", models.TagEntityRequest{Entity: ref, List: list})
	suite.Require().Equal(http.StatusOK, w.Code, string(resp.CodeMessage))

	var tags []models.Tag
	suite.Require().NoError(json.Unmarshal(resp.Data, &tags))
	return tags
}

func decodeTags(suite *TagHandlerTestSuite, resp envelope) []models.Tag {
	var tags []models.Tag
	suite.Require().NoError(json.Unmarshal(resp.Data, &tags))
	return tags
}

func tagTitles(tags []models.Tag) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, t.Title)
	}
	return out
}

func (suite *TagHandlerTestSuite) TestHealth() {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	suite.Equal(http.StatusOK, w.Code)
}

func (suite *TagHandlerTestSuite) TestRequiresToken() {
	w, resp := suite.request(http.MethodGet, "/api/v1/admin/tags", "", "1", nil)
	suite.Equal(http.StatusUnauthorized, w.Code)
	suite.Equal("unAuthorized", resp.CodeType)
}

func (suite *TagHandlerTestSuite) TestRequiresSite() {
	w, _ := suite.request(http.MethodGet, "/api/v1/admin/tags", suite.token, "", nil)
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *TagHandlerTestSuite) TestCreateAndGetTag() {
	tag := suite.createTag("golang")
	suite.Equal("golang", tag.Title)
	suite.Equal(uint(1), tag.SiteID)
	suite.Require().NotNil(tag.CreatedByID)
	suite.Equal(uint(1), *tag.CreatedByID)

	w, resp := suite.admin(http.MethodGet, fmt.Sprintf("/api/v1/admin/tags/%d", tag.ID), nil)
	suite.Equal(http.StatusOK, w.Code)

	var got models.Tag
	suite.NoError(json.Unmarshal(resp.Data, &got))
	suite.Equal(tag.ID, got.ID)
	suite.Zero(got.UseCount)
}

func (suite *TagHandlerTestSuite) TestCreateDuplicateConflicts() {
	suite.createTag("golang")

	w, resp := suite.admin(http.MethodPost, "/api/v1/admin/tags", models.CreateTagRequest{Title: "golang"})
	suite.Equal(http.StatusConflict, w.Code)
	suite.Equal("conflict", resp.CodeType)
}

func (suite *TagHandlerTestSuite) TestCreateValidation() {
	w, resp := suite.admin(http.MethodPost, "/api/v1/admin/tags", models.CreateTagRequest{})
	suite.Equal(http.StatusBadRequest, w.Code)
	suite.Equal("validationError", resp.CodeType)

	var messages map[string][]string
	suite.NoError(json.Unmarshal(resp.CodeMessage, &messages))
	suite.Contains(messages, "title")
}

func (suite *TagHandlerTestSuite) TestWriterCannotCreate() {
	w, resp := suite.request(http.MethodPost, "/api/v1/admin/tags", suite.writer, "1", models.CreateTagRequest{Title: "x"})
	suite.Equal(http.StatusForbidden, w.Code)
	suite.Equal("forbidden", resp.CodeType)
}

func (suite *TagHandlerTestSuite) TestWriterCannotCreateThroughLists() {
	create := true
	w, _ := suite.request(http.MethodPost, "/api/v1/admin/tags/parse", suite.writer, "1",
		models.ParseTagsRequest{List: "sneaky", Create: &create})
	suite.Equal(http.StatusForbidden, w.Code)

	ref := suite.page("a")
	w, _ = suite.request(http.MethodPost, "/api/v1/admin/entities/tag", suite.writer, "1",
		models.TagEntityRequest{Entity: ref, List: "sneaky, other"})
	suite.Equal(http.StatusForbidden, w.Code)

	w, resp := suite.request(http.MethodGet, "/api/v1/admin/tags", suite.writer, "1", nil)
	suite.Equal(http.StatusOK, w.Code)
	suite.Empty(decodeTags(suite, resp))
}

func (suite *TagHandlerTestSuite) TestWriterCannotChangeTaggings() {
	tag := suite.createTag("go")
	ref := suite.page("a")

	w, _ := suite.request(http.MethodPost, "/api/v1/admin/taggings", suite.writer, "1",
		models.TaggingRequest{TagID: tag.ID, Entity: ref})
	suite.Equal(http.StatusForbidden, w.Code)

	w, _ = suite.request(http.MethodDelete, "/api/v1/admin/taggings", suite.writer, "1",
		models.TaggingRequest{TagID: tag.ID, Entity: ref})
	suite.Equal(http.StatusForbidden, w.Code)

	w, resp := suite.request(http.MethodGet, fmt.Sprintf("/api/v1/admin/entities/page/%d/tags", ref.ID), suite.writer, "1", nil)
	suite.Equal(http.StatusOK, w.Code)
	suite.Empty(decodeTags(suite, resp))
}

func (suite *TagHandlerTestSuite) TestSitesAreIsolated() {
	suite.createTag("golang")

	w, resp := suite.request(http.MethodGet, "/api/v1/admin/tags", suite.token, "2", nil)
	suite.Equal(http.StatusOK, w.Code)
	suite.Empty(decodeTags(suite, resp))

	w, _ = suite.request(http.MethodPost, "/api/v1/admin/tags", suite.token, "2", models.CreateTagRequest{Title: "golang"})
	suite.Equal(http.StatusOK, w.Code)
}

func (suite *TagHandlerTestSuite) TestUpdateAndDelete() {
	tag := suite.createTag("golang")
	path := fmt.Sprintf("/api/v1/admin/tags/%d", tag.ID)

	w, resp := suite.admin(http.MethodPut, path, models.UpdateTagRequest{Title: "go"})
	suite.Equal(http.StatusOK, w.Code)
	var updated models.Tag
	suite.NoError(json.Unmarshal(resp.Data, &updated))
	suite.Equal("go", updated.Title)

	w, _ = suite.admin(http.MethodDelete, path, nil)
	suite.Equal(http.StatusOK, w.Code)

	w, resp = suite.admin(http.MethodGet, path, nil)
	suite.Equal(http.StatusNotFound, w.Code)
	suite.Equal("notFound", resp.CodeType)
}

func (suite *TagHandlerTestSuite) TestInvalidTagID() {
	w, _ := suite.admin(http.MethodGet, "/api/v1/admin/tags/abc/coincident", nil)
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *TagHandlerTestSuite) TestCloudAndPopular() {
	suite.tagEntity(suite.page("a"), "go, sql")
	suite.tagEntity(suite.page("b"), "go, web")
	suite.tagEntity(suite.page("c"), "go")
	suite.createTag("unused")

	w, resp := suite.admin(http.MethodGet, "/api/v1/admin/tags/popular?limit=2", nil)
	suite.Equal(http.StatusOK, w.Code)
	popular := decodeTags(suite, resp)
	suite.Equal([]string{"go", "sql"}, tagTitles(popular))
	suite.Equal(3, popular[0].UseCount)

	w, resp = suite.admin(http.MethodGet, "/api/v1/admin/tags/cloud", nil)
	suite.Equal(http.StatusOK, w.Code)
	cloud := decodeTags(suite, resp)
	suite.Equal([]string{"go", "sql", "web"}, tagTitles(cloud))
	suite.Equal("1.00", cloud[0].CloudSize)
	suite.Equal("0.78", cloud[1].CloudSize)
	suite.Equal("0.40", cloud[2].CloudSize)

	w, resp = suite.admin(http.MethodGet, "/api/v1/admin/tags/cloud?weighting=band", nil)
	suite.Equal(http.StatusOK, w.Code)
	cloud = decodeTags(suite, resp)
	suite.Require().NotNil(cloud[0].CloudBand)
	suite.Equal(2, *cloud[0].CloudBand)
	suite.Empty(cloud[0].CloudSize)

	w, _ = suite.admin(http.MethodGet, "/api/v1/admin/tags/cloud?weighting=font", nil)
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *TagHandlerTestSuite) TestCoincident() {
	suite.tagEntity(suite.page("a"), "go, sql")
	suite.tagEntity(suite.page("b"), "go, web, sql")
	tags := suite.tagEntity(suite.page("c"), "rust, web")

	var goID, sqlID uint
	w, resp := suite.admin(http.MethodGet, "/api/v1/admin/tags", nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	for _, t := range decodeTags(suite, resp) {
		switch t.Title {
		case "go":
			goID = t.ID
		case "sql":
			sqlID = t.ID
		}
	}

	w, resp = suite.admin(http.MethodGet, fmt.Sprintf("/api/v1/admin/tags/%d/coincident", goID), nil)
	suite.Equal(http.StatusOK, w.Code)
	suite.Equal([]string{"sql", "web"}, tagTitles(decodeTags(suite, resp)))

	w, resp = suite.admin(http.MethodGet, fmt.Sprintf("/api/v1/admin/tags/coincident?ids=%d,%d", goID, sqlID), nil)
	suite.Equal(http.StatusOK, w.Code)
	suite.Equal([]string{"web"}, tagTitles(decodeTags(suite, resp)))

	w, resp = suite.admin(http.MethodGet, "/api/v1/admin/tags/coincident?ids=", nil)
	suite.Equal(http.StatusOK, w.Code)
	suite.Empty(decodeTags(suite, resp))

	w, _ = suite.admin(http.MethodGet, fmt.Sprintf("/api/v1/admin/tags/coincident?ids=%d,999", tags[0].ID), nil)
	suite.Equal(http.StatusNotFound, w.Code)
}

func (suite *TagHandlerTestSuite) TestParseList() {
	suite.createTag("go")

	create := false
	w, resp := suite.admin(http.MethodPost, "/api/v1/admin/tags/parse", models.ParseTagsRequest{List: "go; sql, go ,", Create: &create})
	suite.Equal(http.StatusOK, w.Code)
	suite.Equal([]string{"go"}, tagTitles(decodeTags(suite, resp)))

	create = true
	w, resp = suite.admin(http.MethodPost, "/api/v1/admin/tags/parse", models.ParseTagsRequest{List: "go; sql, go ,", Create: &create})
	suite.Equal(http.StatusOK, w.Code)
	suite.Equal([]string{"go", "sql"}, tagTitles(decodeTags(suite, resp)))
}

func (suite *TagHandlerTestSuite) TestApplyRemoveAndEntityTags() {
	ref := suite.page("a")
	tag := suite.createTag("go")
	suite.tagEntity(suite.page("b"), "go, sql")

	w, resp := suite.admin(http.MethodPost, "/api/v1/admin/taggings", models.TaggingRequest{TagID: tag.ID, Entity: ref})
	suite.Equal(http.StatusOK, w.Code)
	suite.JSONEq(`{"created":true}`, string(resp.Data))

	w, resp = suite.admin(http.MethodPost, "/api/v1/admin/taggings", models.TaggingRequest{TagID: tag.ID, Entity: ref})
	suite.Equal(http.StatusOK, w.Code)
	suite.JSONEq(`{"created":false}`, string(resp.Data))

	w, resp = suite.admin(http.MethodGet, fmt.Sprintf("/api/v1/admin/entities/page/%d/tags", ref.ID), nil)
	suite.Equal(http.StatusOK, w.Code)
	attached := decodeTags(suite, resp)
	suite.Equal([]string{"go"}, tagTitles(attached))
	suite.Equal(2, attached[0].UseCount)
	suite.Equal("0.40", attached[0].CloudSize)

	w, resp = suite.admin(http.MethodDelete, "/api/v1/admin/taggings", models.TaggingRequest{TagID: tag.ID, Entity: ref})
	suite.Equal(http.StatusOK, w.Code)
	suite.JSONEq(`{"removed":true}`, string(resp.Data))

	w, resp = suite.admin(http.MethodGet, fmt.Sprintf("/api/v1/admin/entities/page/%d/tags", ref.ID), nil)
	suite.Equal(http.StatusOK, w.Code)
	suite.Empty(decodeTags(suite, resp))
}

func (suite *TagHandlerTestSuite) TestApplyUnknownKind() {
	tag := suite.createTag("go")

	w, _ := suite.admin(http.MethodPost, "/api/v1/admin/taggings", models.TaggingRequest{
		TagID:  tag.ID,
		Entity: models.EntityRef{Kind: "video", ID: 1},
	})
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *TagHandlerTestSuite) TestApplyValidation() {
	w, resp := suite.admin(http.MethodPost, "/api/v1/admin/taggings", models.TaggingRequest{TagID: 1})
	suite.Equal(http.StatusBadRequest, w.Code)
	suite.Equal("validationError", resp.CodeType)
}

func (suite *TagHandlerTestSuite) TestRelatedEntities() {
	a := suite.page("a")
	suite.page("b")
	tags := suite.tagEntity(a, "go")

	w, resp := suite.admin(http.MethodGet, fmt.Sprintf("/api/v1/admin/tags/%d/entities/page", tags[0].ID), nil)
	suite.Equal(http.StatusOK, w.Code)

	var related struct {
		Count int64         `json:"count"`
		Items []models.Page `json:"items"`
	}
	suite.NoError(json.Unmarshal(resp.Data, &related))
	suite.Equal(int64(1), related.Count)
	suite.Require().Len(related.Items, 1)
	suite.Equal(a.ID, related.Items[0].ID)

	w, _ = suite.admin(http.MethodGet, fmt.Sprintf("/api/v1/admin/tags/%d/entities/video", tags[0].ID), nil)
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *TagHandlerTestSuite) TestRemoveEntity() {
	ref := suite.page("a")
	suite.tagEntity(ref, "go, sql")

	w, resp := suite.admin(http.MethodDelete, fmt.Sprintf("/api/v1/admin/entities/page/%d/taggings", ref.ID), nil)
	suite.Equal(http.StatusOK, w.Code)
	suite.JSONEq(`{"removed":2}`, string(resp.Data))
}

func TestTagHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(TagHandlerTestSuite))
}
