package server

import (
	"net/http"

	"github.com/Tyrowin/chatline/internal/config"
	"github.com/julienschmidt/httprouter"
)

// SetupRoutes returns the router with every application route.
func SetupRoutes(hub *Hub, cfg config.Config) *httprouter.Router {
	router := httprouter.New()
	router.HandlerFunc(http.MethodGet, "/", HealthHandler)
	router.HandlerFunc(http.MethodGet, "/ws", WebSocketHandler(hub, cfg))
	router.HandlerFunc(http.MethodGet, "/test", TestPageHandler)
	router.GET("/api/presence", PresenceHandler(hub))
	router.GET("/api/messages", MessagesHandler(hub))
	return router
}
