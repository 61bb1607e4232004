// HTTP сервер операционного дашборда: поиск, здоровье источников, алерты
package monitorserver

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"dropalert/configs"
	"dropalert/internal/monitor_server/handlers"
)

// MonitorServer - сервер операционного дашборда
type MonitorServer struct {
	httpServer *http.Server
	router     *gin.Engine
	config     *configs.ServerConfig
	Handler    *handlers.MonitorHandler
}

// Конструктор для сервера
func NewMonitorServer(config *configs.ServerConfig, handler *handlers.MonitorHandler) (*MonitorServer, error) {
	router := gin.Default()
	if err := router.SetTrustedProxies(nil); err != nil {
		return nil, err
	}

	// Добавляем middleware для проброса request id в контекст
	router.Use(func(c *gin.Context) {
		ctx := context.WithValue(c.Request.Context(), "request_id", c.GetHeader("X-Request-ID"))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})

	router.Use(CORSMiddleware([]string{"http://localhost:8080"}))

	return &MonitorServer{
		router:  router,
		config:  config,
		Handler: handler,
	}, nil
}

// Метод для маршрутизации сервера
func (s *MonitorServer) SetUpRoutes() {
	s.router.GET("/hello", s.Handler.EchoMonitorServer)          // тестовый ендпоинт
	s.router.POST("/search", s.Handler.ProcessSearchRequest)     // поиск товара по всем доступным источникам
	s.router.GET("/health", s.Handler.GetHealthSummary)          // сводка здоровья всех источников
	s.router.GET("/health/sources/:id", s.Handler.GetSourceHealth) // метрика конкретного источника
	s.router.GET("/health/issues", s.Handler.GetTrendingIssues)  // тренды проблем по тегам
	s.router.GET("/alerts/recent", s.Handler.GetRecentAlerts)    // недавние алерты здоровья
	s.router.GET("/dispatch/queue", s.Handler.GetQueueStats)     // насыщенность очереди отправки
}

// Метод для запуска сервера
func (s *MonitorServer) Run() error {
	s.SetUpRoutes()

	s.httpServer = &http.Server{
		Addr:    s.config.Addr(),
		Handler: s.router,
	}

	log.Printf("Server is running on %s", s.config.Addr())
	return s.httpServer.ListenAndServe()
}

// Метод для graceful shutdown
func (s *MonitorServer) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}

	log.Println("Server shutdown completed")
	return nil
}
