package router

import (
	"support-lab/internal/handler"
	"support-lab/internal/service"

	"github.com/gin-gonic/gin"
)

func SetupRouter(svc *service.ServiceContext) *gin.Engine {
	r := gin.Default()

	// CORS
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// 上传的截图
	r.Static("/uploads", svc.Uploads.Dir())

	supportHandler := handler.NewSupportHandler(svc.SupportService, svc.Uploads)
	testLogHandler := handler.NewTestLogHandler(svc.TestLogService)
	sapienceHandler := handler.NewSapienceHandler(svc.SapienceService)
	integrationHandler := handler.NewIntegrationHandler(svc.IntegrationService)

	api := r.Group("/api")
	{
		// 工单
		tickets := api.Group("/support/tickets")
		{
			tickets.POST("", supportHandler.SubmitTicket)
			tickets.GET("", supportHandler.ListTickets)
			tickets.POST("/refresh", supportHandler.RefreshTickets)
			tickets.GET("/:id", supportHandler.GetTicket)
		}
		api.POST("/uploads", supportHandler.UploadImage)

		// 测试记录
		testLogs := api.Group("/test-logs")
		{
			testLogs.GET("", testLogHandler.ListTestLogs)
			testLogs.POST("", testLogHandler.CreateTestLog)
			testLogs.POST("/bulk", testLogHandler.BulkCreateTestLogs)
			testLogs.PUT("/:id", testLogHandler.UpdateTestLog)
			testLogs.DELETE("/:id", testLogHandler.DeleteTestLog)
		}
		api.GET("/dashboard", testLogHandler.Dashboard)

		sapience := api.Group("/sapience")
		{
			sapience.GET("/presets", sapienceHandler.ListPresets)
			sapience.POST("/run", sapienceHandler.RunTest)
			sapience.GET("/results", sapienceHandler.RecentResults)
			sapience.POST("/results", sapienceHandler.SaveResult)
		}

		integrations := api.Group("/integrations")
		{
			integrations.POST("/llm", integrationHandler.InvokeLLM)
			integrations.POST("/image", integrationHandler.GenerateImage)
			integrations.POST("/email", integrationHandler.SendEmail)
			integrations.POST("/upload", integrationHandler.UploadFile)
		}
	}

	return r
}
