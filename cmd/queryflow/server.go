package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/queryflow/api/handlers"
	"github.com/BaSui01/queryflow/config"
	"github.com/BaSui01/queryflow/conversation"
	"github.com/BaSui01/queryflow/database"
	"github.com/BaSui01/queryflow/flows"
	"github.com/BaSui01/queryflow/internal/metrics"
	"github.com/BaSui01/queryflow/internal/server"
	"github.com/BaSui01/queryflow/internal/telemetry"
	"github.com/BaSui01/queryflow/llm"
	"github.com/BaSui01/queryflow/orchestrator"
	"github.com/BaSui01/queryflow/workflow"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 QueryFlow 的主服务器
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	// 服务器管理器
	httpManager    *server.Manager
	metricsManager *server.Manager

	// 核心组件
	db           *gorm.DB
	store        conversation.Store
	redisStore   *conversation.RedisStore
	provider     llm.Provider
	registry     *workflow.Registry
	orchestrator *orchestrator.Orchestrator

	// Handlers
	healthHandler       *handlers.HealthHandler
	chatHandler         *handlers.ChatHandler
	flowsHandler        *handlers.FlowsHandler
	conversationHandler *handlers.ConversationHandler

	// 指标收集器
	metricsCollector *metrics.Collector

	// 遥测
	otelProviders *telemetry.Providers
}

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, logger *zap.Logger, otelProviders *telemetry.Providers) *Server {
	return &Server{
		cfg:           cfg,
		logger:        logger,
		otelProviders: otelProviders,
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 启动所有服务
func (s *Server) Start() error {
	// 1. 初始化指标收集器
	s.metricsCollector = metrics.NewCollector("queryflow", s.logger)

	// 2. 装配核心组件（数据库、对话存储、补全端口、工作流）
	if err := s.initComponents(); err != nil {
		return fmt.Errorf("failed to init components: %w", err)
	}

	// 3. 初始化 Handlers
	s.initHandlers()

	// 4. 启动 HTTP 服务器
	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	// 5. 启动 Metrics 服务器
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
	)

	return nil
}

// =============================================================================
// 🔧 初始化方法
// =============================================================================

// initComponents 装配数据库、对话存储、补全端口、工作流注册表与编排器
func (s *Server) initComponents() error {
	// 业务数据库
	db, err := database.Open(s.cfg.Database, s.logger)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	s.db = db

	executor := database.NewGormExecutor(db, s.cfg.Database.MaxRows, s.logger)
	schema := database.NewMetadata(db, s.cfg.Database.SchemaCacheTTL, s.logger)

	// 对话存储：配置了 Redis 地址走 Redis，否则退化为进程内存
	if s.cfg.Redis.Addr != "" {
		redisStore := conversation.NewRedisStore(s.cfg.Redis, s.cfg.Conversation, s.logger)
		s.redisStore = redisStore
		s.store = redisStore
		s.logger.Info("Conversation store: redis", zap.String("addr", s.cfg.Redis.Addr))
	} else {
		s.store = conversation.NewMemoryStore(s.cfg.Conversation.MaxMessages)
		s.logger.Info("Conversation store: in-memory")
	}

	window := conversation.NewContextWindow(
		s.cfg.Conversation.ContextTokenBudget, "cl100k_base", s.logger)

	// 补全端口
	s.provider = llm.NewOpenAIProvider(s.cfg.LLM, s.logger)

	// 工作流注册表：显式构造，显式注册
	s.registry = workflow.NewRegistry()
	if err := flows.RegisterAll(s.registry, flows.Deps{
		LLM:                     s.provider,
		DB:                      executor,
		Schema:                  schema,
		Logger:                  s.logger,
		SQLRetryLimit:           s.cfg.Workflow.SQLRetryLimit,
		TableApprovalRetryLimit: s.cfg.Workflow.TableApprovalRetryLimit,
	}); err != nil {
		return fmt.Errorf("failed to register flows: %w", err)
	}

	engine := workflow.NewEngine(s.logger,
		workflow.WithMaxSteps(s.cfg.Workflow.MaxSteps),
		workflow.WithObserver(s.metricsCollector),
	)

	s.orchestrator = orchestrator.New(s.registry, engine, s.provider, s.store, s.logger,
		orchestrator.WithRunTimeout(s.cfg.Workflow.RunTimeout),
		orchestrator.WithContextWindow(window),
	)

	return nil
}

// initHandlers 初始化所有 handlers
func (s *Server) initHandlers() {
	s.healthHandler = handlers.NewHealthHandler(Version, s.logger)
	s.chatHandler = handlers.NewChatHandler(s.orchestrator, s.logger)
	s.flowsHandler = handlers.NewFlowsHandler(s.registry, s.logger)
	s.conversationHandler = handlers.NewConversationHandler(s.store, s.logger)

	// 就绪检查：业务数据库连接
	s.healthHandler.RegisterCheck(handlers.CheckFunc{
		CheckName: "database",
		Fn: func(ctx context.Context) error {
			sqlDB, err := s.db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	})

	// 就绪检查：Redis（仅在启用时）
	if s.redisStore != nil {
		s.healthHandler.RegisterCheck(handlers.CheckFunc{
			CheckName: "redis",
			Fn:        s.redisStore.Ping,
		})
	}

	s.logger.Info("Handlers initialized")
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

// startHTTPServer 启动 HTTP 服务器
func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	// 健康检查端点
	mux.HandleFunc("GET /healthz", s.healthHandler.HandleHealthz)
	mux.HandleFunc("GET /readyz", s.healthHandler.HandleReady)

	// API 路由
	mux.HandleFunc("POST /api/v1/chat", s.chatHandler.HandleChat)
	mux.HandleFunc("GET /api/v1/flows", s.flowsHandler.HandleList)
	mux.HandleFunc("GET /api/v1/conversations/{session}", s.conversationHandler.HandleHistory)
	mux.HandleFunc("DELETE /api/v1/conversations/{session}", s.conversationHandler.HandleClear)

	// 构建中间件链
	handler := Chain(mux,
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		OTelTracing(),
		MetricsMiddleware(s.metricsCollector),
	)

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout, // 2x ReadTimeout
		MaxHeaderBytes:  1 << 20,                      // 1 MB
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)

	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

// startMetricsServer 启动 Metrics 服务器
func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)

	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("Metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown 等待关闭信号并优雅关闭
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}

	s.Shutdown()
}

// Shutdown 优雅关闭所有服务
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	ctx := context.Background()

	// 1. 关闭 HTTP 服务器
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	// 2. 关闭 Metrics 服务器
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}

	// 3. 关闭 Redis 连接
	if s.redisStore != nil {
		if err := s.redisStore.Close(); err != nil {
			s.logger.Error("Redis close error", zap.Error(err))
		}
	}

	// 4. 关闭数据库连接
	if s.db != nil {
		if sqlDB, err := s.db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				s.logger.Error("Database close error", zap.Error(err))
			}
		}
	}

	// 5. 关闭遥测
	if s.otelProviders != nil {
		if err := s.otelProviders.Shutdown(ctx); err != nil {
			s.logger.Error("Telemetry shutdown error", zap.Error(err))
		}
	}

	s.logger.Info("Graceful shutdown completed")
}
