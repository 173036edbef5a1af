package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"presencehub/internal/identity"
	"presencehub/internal/types"
	"presencehub/pkg/protocol"
)

// handleTestNotification emits a synthetic notification to one user,
// useful for verifying a dashboard's delivery path end to end.
func (s *Server) handleTestNotification(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return
	}

	s.router.Dispatch(types.Notification{
		Notification: gin.H{
			"id":        uuid.New().String(),
			"type":      "test",
			"title":     "Test Notification",
			"message":   "This is a test notification!",
			"createdAt": time.Now(),
		},
		TargetUserID: userID,
	})

	c.JSON(http.StatusOK, gin.H{"success": true, "sentTo": userID})
}

// handleEmit lets back-end services that hold no persistent connection
// push a notification. The payload is forwarded verbatim; at most one
// target descriptor is honored, user > role > branch > everyone.
func (s *Server) handleEmit(c *gin.Context) {
	var req types.Notification
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Notification == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "notification required"})
		return
	}

	sent := s.router.Dispatch(req)
	s.log.Info("emit",
		zap.Any("targetUserId", req.TargetUserID),
		zap.String("targetRole", req.TargetRole),
		zap.String("targetBranch", req.TargetBranch),
		zap.Int("recipients", sent),
	)

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type reportPresenceRequest struct {
	Status        string `json:"status"`
	ClientType    string `json:"clientType"`
	ClientTypeAlt string `json:"client_type"`
}

// handleReportPresence is the HTTP presence-update path for identities
// that cannot hold a persistent connection. Unlike the websocket
// report path, a status outside the enum rejects the whole call.
func (s *Server) handleReportPresence(c *gin.Context) {
	claims := claimsFrom(c)

	var req reportPresenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if !protocol.ValidStatus(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be one of active, idle, on_call"})
		return
	}

	rec := s.store.Set(claims.UserID, req.Status, claims.Name, claims.Branch)
	entry := types.PresenceEntry{UserID: claims.UserID, PresenceRecord: rec}
	s.publishPresence(entry)

	clientType := req.ClientType
	if clientType == "" {
		clientType = req.ClientTypeAlt
	}
	if identity.IsApp(clientType) {
		appRec := s.store.SetApp(claims.UserID, req.Status, claims.Name, claims.Branch)
		s.publishAppPresence(types.PresenceEntry{UserID: claims.UserID, PresenceRecord: appRec})
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "presence": entry})
}

// handleAppPresenceSnapshot returns the full app-only presence table.
func (s *Server) handleAppPresenceSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"presence": s.store.SnapshotApp()})
}

func (s *Server) handleStats(c *gin.Context) {
	connections, groupCount := s.registry.Stats()
	c.JSON(http.StatusOK, gin.H{
		"connections": connections,
		"groups":      groupCount,
		"presence":    len(s.store.Snapshot()),
		"appPresence": len(s.store.SnapshotApp()),
	})
}
