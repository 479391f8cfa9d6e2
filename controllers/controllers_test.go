package controllers_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vnkhanh/e-course-backend/models"
	"github.com/vnkhanh/e-course-backend/routes"
	"github.com/vnkhanh/e-course-backend/services"
	"github.com/vnkhanh/e-course-backend/services/servicestest"
	"github.com/vnkhanh/e-course-backend/store"
	"github.com/vnkhanh/e-course-backend/utils"
	"github.com/vnkhanh/e-course-backend/wizard"
	"github.com/vnkhanh/e-course-backend/ws"
)

type testApp struct {
	t      *testing.T
	router *gin.Engine
	db     *servicestest.Database
	st     *servicestest.Storage
	drafts *wizard.Registry
	token  string
}

func newApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)
	utils.SetJWTSecret("controller-secret")

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	require.NoError(t, err)

	db := servicestest.NewDatabase()
	st := servicestest.NewStorage()
	hub := ws.NewHub(nil)
	cache := store.NewCache(db, st, nil)
	cache.OnChange = hub.BroadcastCourseListChanged
	drafts := wizard.NewRegistry()

	r := routes.SetupRouter(gin.New(), routes.Deps{
		DB:           db,
		Cache:        cache,
		Drafts:       drafts,
		Publisher:    services.NewPublisher(db, st, "course-content", nil),
		Hub:          hub,
		ItemsPerPage: 10,
		MaxUploadMB:  1,
		AdminEmail:   "admin@example.com",
		AdminHash:    string(hash),
	})

	token, err := utils.GenerateToken("admin@example.com", "admin")
	require.NoError(t, err)
	return &testApp{t: t, router: r, db: db, st: st, drafts: drafts, token: token}
}

func (a *testApp) do(method, path string, body any) (int, map[string]any) {
	a.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.token)
	return a.serve(req)
}

func (a *testApp) serve(req *http.Request) (int, map[string]any) {
	a.t.Helper()
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	out := map[string]any{}
	if w.Header().Get("Content-Type") != "" && bytes.HasPrefix(w.Body.Bytes(), []byte("{")) {
		require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w.Code, out
}

// dig walks nested JSON objects by key.
func dig(m map[string]any, keys ...string) any {
	var cur any = m
	for _, k := range keys {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = obj[k]
	}
	return cur
}

func TestLogin(t *testing.T) {
	app := newApp(t)

	code, body := app.do(http.MethodPost, "/api/auth/login", map[string]string{"email": "Admin@Example.com", "password": "hunter22"})
	require.Equal(t, http.StatusOK, code)
	claims, err := utils.VerifyToken(body["token"].(string))
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Role)

	code, body = app.do(http.MethodPost, "/api/auth/login", map[string]string{"email": "admin@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Email hoặc mật khẩu không đúng", body["error"])
}

func TestAdminRoutesNeedToken(t *testing.T) {
	app := newApp(t)
	app.token = ""
	code, _ := app.do(http.MethodGet, "/api/admin/courses", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestDraftToPublishedCourse(t *testing.T) {
	app := newApp(t)

	code, body := app.do(http.MethodPost, "/api/admin/drafts", nil)
	require.Equal(t, http.StatusCreated, code)
	id := dig(body, "draft", "id").(string)
	base := "/api/admin/drafts/" + id

	set := func(target wizard.Target, field string, value any) {
		t.Helper()
		code, body := app.do(http.MethodPatch, base+"/fields", map[string]any{"target": target, "field": field, "value": value})
		require.Equal(t, http.StatusOK, code, body)
	}
	set(wizard.Target{Kind: wizard.KindCourse}, "title", "Soil 101")
	set(wizard.Target{Kind: wizard.KindInstructor}, "name", "A. Farmer")

	code, body = app.do(http.MethodPost, base+"/lists", map[string]any{
		"target": wizard.Target{Kind: wizard.KindCourse}, "field": "requirements", "op": "append", "value": "a spade",
	})
	require.Equal(t, http.StatusOK, code, body)

	code, body = app.do(http.MethodPost, base+"/modules", nil)
	require.Equal(t, http.StatusCreated, code)
	moduleID := dig(body, "module", "id").(string)
	set(wizard.Target{Kind: wizard.KindModule, ModuleID: moduleID}, "title", "Intro")

	code, body = app.do(http.MethodPost, base+"/modules/"+moduleID+"/lessons", nil)
	require.Equal(t, http.StatusCreated, code)
	lessonID := dig(body, "lesson", "id").(string)
	set(wizard.Target{Kind: wizard.KindLesson, ModuleID: moduleID, LessonID: lessonID}, "title", "Welcome")

	code, body = app.do(http.MethodPost, base+"/quizzes", nil)
	require.Equal(t, http.StatusCreated, code)
	quizID := dig(body, "quiz", "id").(string)
	set(wizard.Target{Kind: wizard.KindQuiz, QuizID: quizID}, "title", "Soil Basics")

	code, _ = app.do(http.MethodPost, base+"/link", map[string]any{
		"target": wizard.Target{Kind: wizard.KindQuiz, QuizID: quizID}, "module_id": moduleID,
	})
	require.Equal(t, http.StatusOK, code)

	code, body = app.do(http.MethodPost, base+"/quizzes/"+quizID+"/questions", map[string]string{"type": "true-false"})
	require.Equal(t, http.StatusCreated, code)
	questionID := dig(body, "question", "id").(string)

	// true/false options are fixed
	code, _ = app.do(http.MethodPost, base+"/lists", map[string]any{
		"target": wizard.Target{Kind: wizard.KindQuestion, QuizID: quizID, QuestionID: questionID},
		"field":  "options",
		"op":     "remove",
		"index":  0,
	})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = app.do(http.MethodPost, base+"/steps", map[string]string{"action": "goto", "section": "settings"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, dig(body, "steps", "is_final"))
	assert.Equal(t, false, dig(body, "steps", "show_next"))

	code, body = app.do(http.MethodPost, base+"/submit", nil)
	require.Equal(t, http.StatusCreated, code, body)
	assert.Equal(t, float64(1), dig(body, "result", "counts", "lessons"))
	assert.Equal(t, float64(1), dig(body, "result", "counts", "questions"))
	assert.Empty(t, dig(body, "result", "warnings"))

	var courses []models.Course
	app.db.Rows(services.TableCourses, &courses)
	require.Len(t, courses, 1)
	assert.Equal(t, "soil-101", courses[0].Slug)
	assert.Equal(t, []string{"a spade"}, []string(courses[0].Requirements))

	var quizzes []models.Quiz
	app.db.Rows(services.TableQuizzes, &quizzes)
	require.Len(t, quizzes, 1)
	require.NotNil(t, quizzes[0].ModuleID)

	code, _ = app.do(http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, body = app.do(http.MethodGet, "/api/admin/courses", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["total"])
}

func TestSubmitInvalidDraftKeepsIt(t *testing.T) {
	app := newApp(t)
	id := app.drafts.Create(wizard.ModeCreate)
	base := "/api/admin/drafts/" + id.String()

	code, body := app.do(http.MethodPost, base+"/submit", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Len(t, body["missing"], 4)

	code, _ = app.do(http.MethodGet, base, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestSubmitStepFailureReportsStep(t *testing.T) {
	app := newApp(t)
	app.db.FailInsert[services.TableModules] = 1

	form := wizard.NewForm(wizard.ModeCreate)
	form.Course.Title, form.Course.Slug = "Soil 101", "soil-101"
	form.Instructor.Name = "A. Farmer"
	form.AddModule().Title = "Intro"
	id := app.drafts.Put(form)

	code, body := app.do(http.MethodPost, "/api/admin/drafts/"+id.String()+"/submit", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "insert module 1", body["step"])
	assert.Zero(t, app.db.Count(services.TableCourses))
	assert.Equal(t, 1, app.drafts.Len())
}

func TestUploadFileIsKeptUntilSubmit(t *testing.T) {
	app := newApp(t)
	form := wizard.NewForm(wizard.ModeCreate)
	form.Course.Title, form.Course.Slug = "Soil 101", "soil-101"
	form.Instructor.Name = "A. Farmer"
	form.AddModule().Title = "Intro"
	id := app.drafts.Put(form)
	base := "/api/admin/drafts/" + id.String()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("kind", "course"))
	fw, err := mw.CreateFormFile("file", "cover.png")
	require.NoError(t, err)
	_, err = fw.Write([]byte("png-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, base+"/files", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+app.token)
	code, body := app.serve(req)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "cover.png", dig(body, "file", "name"))
	assert.Empty(t, app.st.Objects())

	code, body = app.do(http.MethodPost, base+"/submit", nil)
	require.Equal(t, http.StatusCreated, code, body)
	assert.Len(t, app.st.Objects(), 1)
}

func seedCourses(app *testApp) {
	base := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	app.db.Seed(services.TableCourses,
		models.Course{Title: "Soil 101", Slug: "soil-101", Status: models.StatusDraft, Category: "Science", CreatedAt: base},
		models.Course{Title: "Rocks", Slug: "rocks", Status: models.StatusPublished, Category: "Geology", Price: 15, CreatedAt: base.Add(time.Hour)},
		models.Course{Title: "Soil 201", Slug: "soil-201", Status: models.StatusPublished, Category: "Science", Price: 30, CreatedAt: base.Add(2 * time.Hour)},
	)
	app.db.Seed(services.TableInstructors, models.Instructor{CourseID: 1, Name: "A. Farmer"})
	app.db.Seed(services.TableCategories, models.Category{Name: "Science", Slug: "science"})
}

func TestListCoursesQuery(t *testing.T) {
	app := newApp(t)
	seedCourses(app)

	code, body := app.do(http.MethodGet, "/api/admin/courses?search=soil&status=published", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["total"])
	assert.Equal(t, false, body["cached"])

	code, body = app.do(http.MethodGet, "/api/admin/courses?sort_by=price&sort_order=asc&limit=2&page=2", nil)
	require.Equal(t, http.StatusOK, code)
	data := body["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, "Soil 201", data[0].(map[string]any)["title"])
	assert.Equal(t, true, body["cached"])

	code, body = app.do(http.MethodGet, "/api/admin/courses?search=farmer", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["total"])

	code, body = app.do(http.MethodGet, "/api/admin/instructors", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{"A. Farmer"}, body["data"])
}

func TestCourseStatusAndDelete(t *testing.T) {
	app := newApp(t)
	seedCourses(app)

	code, body := app.do(http.MethodPatch, "/api/admin/courses/1/toggle-status", nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "published", body["status"])

	code, _ = app.do(http.MethodPatch, "/api/admin/courses/2/unpublish", nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = app.do(http.MethodPatch, "/api/admin/courses/999/publish", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = app.do(http.MethodPatch, "/api/admin/courses/abc/publish", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = app.do(http.MethodPut, "/api/admin/courses/3", map[string]any{"title": "Soil 301", "price": 0})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "Soil 301", dig(body, "course", "title"))

	code, _ = app.do(http.MethodDelete, "/api/admin/courses/3", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2, app.db.Count(services.TableCourses))

	code, body = app.do(http.MethodGet, "/api/admin/courses?status=published", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["total"])
}

func TestAddAndLoadCourse(t *testing.T) {
	app := newApp(t)

	code, body := app.do(http.MethodPost, "/api/admin/courses", map[string]any{"title": "Growing Tomatoes", "price": 12})
	require.Equal(t, http.StatusCreated, code, body)
	assert.Equal(t, "growing-tomatoes", dig(body, "course", "slug"))

	code, body = app.do(http.MethodGet, "/api/admin/courses/1", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "edit", dig(body, "course", "mode"))

	code, body = app.do(http.MethodPost, "/api/admin/courses/1/draft", nil)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "Growing Tomatoes", dig(body, "draft", "form", "course", "title"))

	code, _ = app.do(http.MethodGet, "/api/admin/courses/7", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestExportCourses(t *testing.T) {
	app := newApp(t)
	seedCourses(app)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/courses/export?category=Science", nil)
	req.Header.Set("Authorization", "Bearer "+app.token)
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "spreadsheetml")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "courses-")
	// xlsx is a zip archive
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")))
}

func TestHealthAndMetrics(t *testing.T) {
	app := newApp(t)

	code, body := app.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])

	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	teacher, err := utils.GenerateToken("t@example.com", "teacher")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Bearer "+teacher)
	w = httptest.NewRecorder()
	app.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Bearer "+app.token)
	w = httptest.NewRecorder()
	app.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "course_cache_fetches_total")
}
