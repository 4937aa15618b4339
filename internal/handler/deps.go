package handler

import (
	"context"

	"linechat/internal/app/chat"
	"linechat/internal/configs"
	"linechat/internal/pkg/limiter"
)

// AppDeps holds the collaborators shared by the HTTP handlers.
type AppDeps struct {
	// Server runs sessions for upgraded WebSocket connections.
	Server *chat.Server

	// Registry answers the online user queries.
	Registry *chat.Registry

	// Config holds the application's read-only configuration settings.
	Config *configs.AppConfig

	// Limiter throttles WebSocket upgrades per IP. Nil disables throttling.
	Limiter *limiter.IPRateLimiter

	// BaseContext is handed to sessions started over WebSocket.
	BaseContext context.Context
}
