package realtime

import (
	"github.com/gin-gonic/gin"

	"github.com/lumen-church/backend/pkg/response"
)

// StatusHandler serves GET /realtime/status.
func StatusHandler(m *Manager, hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		tables := m.Tables()
		clients := make(map[string]int, len(tables))
		for _, t := range tables {
			clients[t] = hub.ClientCount(t)
		}
		response.OK(c, gin.H{
			"status":      m.Status(),
			"tables":      tables,
			"activity":    m.Activity().Snapshot(),
			"last_update": m.Activity().LastUpdate(),
			"clients":     clients,
		})
	}
}
