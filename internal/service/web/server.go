// Package web 以只读 HTTP 服务发布最近一次筛选的结果。
package web

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"nodesieve/internal/shared/logger"
	"nodesieve/internal/shared/types"
)

const shutdownTimeout = 5 * time.Second

// Server 发布节点列表与质量报告。文件在每次请求时重新读取，
// 因此筛选任务可以在服务运行期间覆盖输出。
type Server struct {
	listen string
	engine *gin.Engine
}

// NewServer 创建服务。[web] 中 user 与 password 都配置时，除 /health 外的接口需要 Basic Auth。
func NewServer(cfg *types.Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	h := NewHandler(cfg.OutputConf)

	// 健康检查（公开）
	r.GET("/health", h.Health)

	protected := r.Group("/")
	if cfg.WebConf.User != "" && cfg.WebConf.Password != "" {
		protected.Use(gin.BasicAuth(gin.Accounts{cfg.WebConf.User: cfg.WebConf.Password}))
	}
	{
		protected.GET("/sub", h.Subscription)
		protected.GET("/api/report", h.Report)
	}

	return &Server{listen: cfg.Listen, engine: r}
}

// Handler 返回底层 http.Handler，便于测试。
func (s *Server) Handler() http.Handler { return s.engine }

// Run 监听并服务，ctx 结束时优雅关闭。
func (s *Server) Run(ctx context.Context) error {
	l := logger.WithComponent("WebServer")

	listener, err := net.Listen("tcp", s.listen)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()
	l.Info().Str("addr", listener.Addr().String()).Msg("Result server is listening.")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	l.Info().Msg("Result server stopped.")
	return nil
}

func requestLogger() gin.HandlerFunc {
	l := logger.WithComponent("WebServer")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		l.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Str("client", c.ClientIP()).
			Dur("took", time.Since(start)).
			Msg("Request served.")
	}
}
