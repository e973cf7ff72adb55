package app

import (
	"eduquiz_backend/docs"
	"eduquiz_backend/internal/config"
	"eduquiz_backend/internal/middleware"
	"eduquiz_backend/internal/model"
	"eduquiz_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
	}

	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg), middleware.ActivityMiddleware(repos.user))
	{
		authGroup.GET("/profile", c.auth.GetProfile)

		authGroup.GET("/quizzes", c.quiz.ListQuizzes)
		authGroup.GET("/quizzes/:id", c.quiz.GetQuizForStudent)
		authGroup.POST("/quizzes/:id/attempts", c.attempt.StartAttempt)

		authGroup.POST("/attempts/:id/answers", c.attempt.SubmitAnswer)
		authGroup.POST("/attempts/:id/submit", c.attempt.Submit)
		authGroup.GET("/attempts/:id/result", c.attempt.GetResult)
		authGroup.POST("/attempts/:id/retry", c.attempt.RequestRetry)
		authGroup.GET("/attempts/:id/ws", c.attempt.Watch)

		teacher := authGroup.Group("/teacher")
		teacher.Use(middleware.RoleMiddleware(model.Teacher))
		{
			teacher.POST("/quizzes", c.quiz.CreateQuiz)
			teacher.GET("/quizzes/:id", c.quiz.GetQuiz)
			teacher.PUT("/quizzes/:id", c.quiz.UpdateQuiz)
			teacher.DELETE("/quizzes/:id", c.quiz.DeleteQuiz)
			teacher.GET("/quizzes/:id/attempts", c.attempt.ListAttempts)
		}
	}
}
