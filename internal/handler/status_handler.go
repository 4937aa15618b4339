package handler

import (
	"net/http"

	"linechat/internal/pkg/resp"
)

// OnlineUsers is the payload of GET /api/online.
type OnlineUsers struct {
	// Count is the number of joined users.
	Count int `json:"count"`

	// Connections counts open connections, including those still in the handshake.
	Connections int `json:"connections"`

	Users []string `json:"users"`
}

// HandleOnlineUsers reports the users currently joined to the chat.
func HandleOnlineUsers(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, OnlineUsers{
			Count:       deps.Registry.Count(),
			Connections: deps.Server.ConnCount(),
			Users:       deps.Registry.Usernames(),
		})
	}
}
