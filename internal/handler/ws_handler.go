/*
Package handler provides the HTTP handlers and routing setup for the presence server.

This file contains the HandleWebSocket function, which rate limits and upgrades
incoming connections, assigns each one a fresh identity, delivers that identity to
the client, and runs the client read loop until disconnect.
*/
package handler

import (
	"net"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/cucfkpoesie/CrystalMed/internal/app/presence"
	"github.com/cucfkpoesie/CrystalMed/internal/app/session"
	"github.com/cucfkpoesie/CrystalMed/internal/pkg/errs"
	"github.com/cucfkpoesie/CrystalMed/internal/pkg/limiter"
	"github.com/cucfkpoesie/CrystalMed/internal/pkg/logx"
	"github.com/cucfkpoesie/CrystalMed/internal/pkg/resp"
)

// HandleWebSocket creates an HTTP HandlerFunc that turns a request into a live
// presence connection.
func HandleWebSocket(upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}

		if ip == "" {
			ip = "unknown_ip"
		}

		if !rateLimiter.GetLimiter(ip).Allow() {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", ip)
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		identity := deps.Registry.AssignIdentity()

		client := session.NewClient(deps.Hub, conn, identity, deps.Registry, deps.Relay)

		go client.WritePump()

		deps.Hub.Register(client)

		// The client needs its identity before it can join or be addressed.
		if err := client.Send(presence.EventUserID, identity); err != nil {
			logx.Error(err, "Failed to deliver identity to new connection", "identity", string(identity))
		}

		logx.Info("WebSocket connection established", "identity", string(identity))

		client.ReadPump()
	}
}
