/*
Package handler provides the HTTP handler function for WebSocket connection upgrading.

This file contains HandleWebSocket, which upgrades the request and hands the
connection to the chat server as a line channel. The client then goes through
the same handshake as a TCP client.
*/
package handler

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"

	"linechat/internal/app/chat"
	"linechat/internal/pkg/logx"
)

// HandleWebSocket creates an HTTP HandlerFunc that runs a chat session over WebSocket.
func HandleWebSocket(deps *AppDeps, upgrader websocket.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		logx.Info("WebSocket connection established.", "remote_ip", logx.AnonymizeIP(r.RemoteAddr))

		ctx := deps.BaseContext
		if ctx == nil {
			ctx = context.Background()
		}

		deps.Server.ServeConn(ctx, chat.NewWSConn(conn))
	}
}
