package ws

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/zaqqye/applytrack/internal/middleware"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins; rely on JWT auth.
		return true
	},
}

// SnapshotHandler upgrades the request and subscribes the signed-in user to
// their live application snapshot. Closing the socket unsubscribes.
func SnapshotHandler(feed *Feed) gin.HandlerFunc {
	return func(c *gin.Context) {
		if feed == nil || feed.Hub == nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "realtime not available"})
			return
		}
		user, ok := middleware.CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		cl := newClient(feed.Hub, conn, user.UserID)
		if !feed.Hub.add(cl) {
			conn.Close()
			return
		}

		go cl.writePump()
		feed.Publish(context.WithoutCancel(c.Request.Context()), user.UserID)
		cl.readPump()
	}
}
