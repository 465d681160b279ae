package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"

	"github.com/mossy-p/call-signaling/internal/models"
	"github.com/mossy-p/call-signaling/internal/signaling"
)

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Status reports registry sizes.
func Status(hub *signaling.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, hub.Status())
	}
}

// Presence answers whether a single user currently holds a connection.
func Presence(hub *signaling.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("userId")
		if userID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
			return
		}
		c.JSON(http.StatusOK, models.Presence{UserID: userID, Online: hub.IsOnline(userID)})
	}
}

func ICEServers(servers []webrtc.ICEServer) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"iceServers": servers})
	}
}
