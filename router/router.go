package router

import (
	"github.com/gin-gonic/gin"
	"github.com/taskhive/taskhive-app/controllers"
	"github.com/taskhive/taskhive-app/middlewares"
	"github.com/taskhive/taskhive-app/services"
	"gorm.io/gorm"
)

func SetupRouter(db *gorm.DB, worker *services.NotificationWorker, push *services.PushService) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.LoggerMiddleware())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddlewares())

	userCtrl := controllers.NewUserController(db)
	projectCtrl := controllers.NewProjectController(db)
	taskCtrl := controllers.NewTaskController(db)
	notifCtrl := controllers.NewNotificationController(db, worker)
	prefCtrl := controllers.NewPreferenceController(db)
	pushCtrl := controllers.NewPushController(db, push)

	api := r.Group("/api")

	auth := api.Group("/auth")
	auth.Use(middlewares.NewStrictRateLimiter())
	{
		auth.POST("/register", userCtrl.Register)
		auth.POST("/login", userCtrl.Login)
	}

	authorized := api.Group("")
	authorized.Use(middlewares.AuthMiddleware())
	{
		authorized.GET("/profile", userCtrl.GetProfile)
		authorized.POST("/logout", userCtrl.Logout)

		authorized.GET("/projects", projectCtrl.GetAllProjects)
		authorized.POST("/projects", projectCtrl.CreateProject)
		authorized.PATCH("/projects/:project_id", projectCtrl.UpdateProject)
		authorized.DELETE("/projects/:project_id", projectCtrl.DeleteProject)

		authorized.GET("/tasks", taskCtrl.GetAllTasks)
		authorized.POST("/tasks", taskCtrl.CreateTask)
		authorized.GET("/tasks/:task_id", taskCtrl.GetTaskByID)
		authorized.PATCH("/tasks/:task_id", taskCtrl.UpdateTask)
		authorized.DELETE("/tasks/:task_id", taskCtrl.DeleteTask)
		authorized.PATCH("/tasks/:task_id/complete", taskCtrl.CompleteTask)
		authorized.PATCH("/tasks/:task_id/reopen", taskCtrl.ReopenTask)
		authorized.PATCH("/tasks/:task_id/snooze-reminder", taskCtrl.SnoozeReminder)

		authorized.GET("/notifications", notifCtrl.GetMyNotifications)
		authorized.POST("/notifications/check-now", notifCtrl.CheckNow)
		authorized.PATCH("/notifications/read-all", notifCtrl.MarkAllRead)
		authorized.PATCH("/notifications/:notif_id/read", notifCtrl.MarkRead)
		authorized.PATCH("/notifications/:notif_id/dismiss", notifCtrl.Dismiss)
		authorized.POST("/notifications", middlewares.AdminOnly(), notifCtrl.CreateNotification)

		authorized.GET("/preferences", prefCtrl.GetMyPreferences)
		authorized.PUT("/preferences", prefCtrl.UpdateMyPreferences)

		authorized.GET("/push/public-key", pushCtrl.GetPublicKey)
		authorized.POST("/push/subscribe", pushCtrl.Subscribe)
		authorized.DELETE("/push/subscribe", pushCtrl.Unsubscribe)
	}

	// WebSocket: token lewat query string
	ws := r.Group("/ws")
	ws.Use(middlewares.WebSocketAuthMiddleware())
	{
		ws.GET("", controllers.EventsHandler)
	}

	return r
}
