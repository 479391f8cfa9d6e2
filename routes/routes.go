package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vnkhanh/e-course-backend/controllers"
	"github.com/vnkhanh/e-course-backend/middleware"
	"github.com/vnkhanh/e-course-backend/services"
	"github.com/vnkhanh/e-course-backend/store"
	"github.com/vnkhanh/e-course-backend/wizard"
	"github.com/vnkhanh/e-course-backend/ws"
)

// Deps là các thành phần đã khởi tạo trong main.
type Deps struct {
	DB           services.Database
	Cache        *store.Cache
	Drafts       *wizard.Registry
	Publisher    *services.Publisher
	Hub          *ws.Hub
	Log          *zap.Logger
	ItemsPerPage int
	MaxUploadMB  int
	AdminEmail   string
	AdminHash    string
}

func SetupRouter(r *gin.Engine, d Deps) *gin.Engine {
	courses := controllers.NewCourseHandler(d.Cache, d.DB, d.ItemsPerPage, d.Log)
	drafts := controllers.NewDraftHandler(d.Drafts, d.Publisher, d.DB, d.Cache, d.MaxUploadMB, d.Log)
	auth := controllers.NewAuthHandler(d.AdminEmail, d.AdminHash)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})
	r.GET("/health", controllers.HealthCheck(d.DB, d.Hub))
	r.GET("/metrics", middleware.RequireRoles("admin"), gin.WrapH(promhttp.Handler()))
	r.GET("/ws/dashboard", ws.HandleDashboard(d.Hub, d.Cache, d.ItemsPerPage, d.Log))

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/login", auth.Login)
	}

	admin := api.Group("/admin")
	{
		admin.Use(middleware.RequireRoles("admin", "teacher"))

		// Quản lý khoá học
		admin.GET("/courses", courses.ListCourses)
		admin.GET("/courses/export", courses.ExportCourses)
		admin.POST("/courses/refresh", courses.RefreshCourses)
		admin.GET("/courses/:id", courses.GetCourse)
		admin.POST("/courses", courses.AddCourse)
		admin.PUT("/courses/:id", courses.UpdateCourse)
		admin.PATCH("/courses/:id/publish", courses.PublishCourse)
		admin.PATCH("/courses/:id/unpublish", courses.UnpublishCourse)
		admin.PATCH("/courses/:id/toggle-status", courses.ToggleCourseStatus)
		admin.DELETE("/courses/:id", courses.DeleteCourse)
		admin.GET("/categories", courses.GetCategories)
		admin.GET("/instructors", courses.GetInstructors)

		// Form nhiều bước (bản nháp)
		admin.POST("/drafts", drafts.CreateDraft)
		admin.POST("/courses/:id/draft", drafts.EditCourseDraft)
		admin.GET("/drafts/:id", drafts.GetDraft)
		admin.DELETE("/drafts/:id", drafts.DeleteDraft)
		admin.PATCH("/drafts/:id/fields", drafts.SetField)
		admin.POST("/drafts/:id/lists", drafts.UpdateList)
		admin.POST("/drafts/:id/modules", drafts.AddModule)
		admin.DELETE("/drafts/:id/modules/:moduleID", drafts.RemoveModule)
		admin.POST("/drafts/:id/modules/:moduleID/lessons", drafts.AddLesson)
		admin.DELETE("/drafts/:id/modules/:moduleID/lessons/:lessonID", drafts.RemoveLesson)
		admin.POST("/drafts/:id/quizzes", drafts.AddQuiz)
		admin.DELETE("/drafts/:id/quizzes/:quizID", drafts.RemoveQuiz)
		admin.POST("/drafts/:id/quizzes/:quizID/questions", drafts.AddQuestion)
		admin.DELETE("/drafts/:id/quizzes/:quizID/questions/:questionID", drafts.RemoveQuestion)
		admin.POST("/drafts/:id/assignments", drafts.AddAssignment)
		admin.DELETE("/drafts/:id/assignments/:assignmentID", drafts.RemoveAssignment)
		admin.POST("/drafts/:id/link", drafts.LinkModule)
		admin.POST("/drafts/:id/files", drafts.UploadFile)
		admin.POST("/drafts/:id/steps", drafts.Step)
		admin.POST("/drafts/:id/submit", drafts.SubmitDraft)
	}

	return r
}
