package http

import (
	"fmt"
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/auth"
	"github.com/vovakirdan/roomchat/internal/config"
	"github.com/vovakirdan/roomchat/internal/gateway"
	"github.com/vovakirdan/roomchat/internal/roomview"
)

// NewServer builds the HTTP server. /ws is served next to the gin router, not through it.
func NewServer(gw *gateway.Gateway, authService *auth.Service, cfg *config.Config, logger *zerolog.Logger) (*stdhttp.Server, error) {
	opts, err := ViewOptions(cfg)
	if err != nil {
		return nil, err
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), MetricsMiddleware(), LoggerMiddleware(logger))

	router.GET("/health", healthHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiHandlers := NewAPIHandlers(authService, logger)
	roomHandlers := NewRoomHandlers(gw, opts, logger)

	api := router.Group("/api")
	api.POST("/register", apiHandlers.Register)
	api.POST("/login", apiHandlers.Login)
	api.GET("/rooms/:room/messages", roomHandlers.ListMessages)
	api.POST("/rooms/:room/messages", AuthMiddleware(authService, logger), roomHandlers.PostMessage)

	// The WebSocket handler hijacks the connection, which gin's response
	// writer refuses once Accept has written the upgrade header.
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(gw, authService, opts, logger))
	mux.Handle("/", router)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}, nil
}

// ViewOptions derives room view options from configuration.
func ViewOptions(cfg *config.Config) (roomview.Options, error) {
	loc, err := cfg.Location()
	if err != nil {
		return roomview.Options{}, fmt.Errorf("timezone %q: %w", cfg.Timezone, err)
	}
	return roomview.Options{
		MaxLength:     cfg.MaxMessageLength,
		AlertDuration: cfg.AlertDuration,
		LoginPath:     cfg.LoginPath,
		HomePath:      cfg.HomePath,
		Location:      loc,
	}, nil
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
