package handler

import (
	"net/http"

	"loans-service/internal/handler/api"
	"loans-service/internal/handler/middleware"
	"loans-service/internal/pkg/config"

	"github.com/gin-gonic/gin"
)

type route struct {
	Method  string
	Path    string
	Handler gin.HandlerFunc
	Mw      []gin.HandlerFunc
}

func NewRouter(engine *gin.Engine, cfg config.Config, loanHandler *api.LoanHandler) {
	setupMiddleware(engine, cfg)
	setupRoutes(engine, loanHandler)
}

func setupMiddleware(engine *gin.Engine, cfg config.Config) {
	// Recovery must be first (outermost) to catch panics from all other middleware
	engine.Use(middleware.CustomRecovery())
	engine.Use(middleware.NewCORSMiddleware(cfg.CORS))
	engine.Use(middleware.LoggingMiddleware(nil, cfg.Log))
}

func setupRoutes(engine *gin.Engine, loanHandler *api.LoanHandler) {
	engine.GET("/health", healthCheck)

	apiGroup := engine.Group("/api")
	{
		loans := apiGroup.Group("/loans")
		{
			addRoutes(loans, []route{
				{Method: http.MethodPost, Path: "", Handler: loanHandler.CreateLoan},
				{Method: http.MethodGet, Path: "", Handler: loanHandler.ListLoans},
				{Method: http.MethodGet, Path: "/active", Handler: loanHandler.ListActiveLoans},
				{Method: http.MethodGet, Path: "/pending", Handler: loanHandler.ListPendingLoans},
				{Method: http.MethodGet, Path: "/strategy", Handler: loanHandler.StrategyStatus},
				{Method: http.MethodGet, Path: "/:id", Handler: loanHandler.GetLoan},
				{Method: http.MethodPost, Path: "/:id/return", Handler: loanHandler.ReturnLoan},
			})
		}
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"message": "Service is healthy",
	})
}

func addRoutes(g *gin.RouterGroup, rs []route) {
	for _, r := range rs {
		h := r.Handler
		if len(r.Mw) > 0 {
			h = chainHandlers(append(r.Mw, r.Handler)...)
		}
		switch r.Method {
		case http.MethodGet:
			g.GET(r.Path, h)
		case http.MethodPost:
			g.POST(r.Path, h)
		case http.MethodPut:
			g.PUT(r.Path, h)
		case http.MethodPatch:
			g.PATCH(r.Path, h)
		case http.MethodDelete:
			g.DELETE(r.Path, h)
		default:
			g.Any(r.Path, h)
		}
	}
}

func chainHandlers(hs ...gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, h := range hs {
			h(c)
			if c.IsAborted() {
				return
			}
		}
	}
}
