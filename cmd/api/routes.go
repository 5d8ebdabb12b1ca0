package main

import (
	"database/sql"
	"net/http"
	"time"

	"call-router/internal/audit"
	"call-router/internal/auth"
	"call-router/internal/carrier"
	"call-router/internal/directory"
	"call-router/internal/httpapi"
	"call-router/internal/messaging"
	"call-router/internal/rbac"
	"call-router/internal/reporting"
	"call-router/internal/telephony"
	"call-router/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const (
	webhookPrefix     = "/webhooks/twilio"
	recordingPath     = webhookPrefix + "/voice/recording"
	messageStatusPath = webhookPrefix + "/messages/status"
)

// deps carries everything the routes need. Built once in main.
type deps struct {
	auth   *auth.Manager
	authMW gin.HandlerFunc

	db  *sql.DB
	rdb *redis.Client

	agents   directory.Store
	presence directory.PresenceStore
	carrier  carrier.Client
	voice    *auth.VoiceTokenIssuer

	webhooks telephony.TwilioWebhookHandler
	sender   *messaging.Sender
	reports  *reporting.Service
	audit    *audit.Service
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, d deps) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		out := gin.H{"status": "ok"}
		if d.db != nil {
			if err := utils.PingPostgres(c.Request.Context(), d.db, 2*time.Second); err != nil {
				out["db"] = err.Error()
			}
		}
		if d.rdb != nil {
			if err := d.rdb.Ping(c.Request.Context()).Err(); err != nil {
				out["redis"] = err.Error()
			}
		}
		if len(out) > 1 {
			out["status"] = "degraded"
			c.JSON(http.StatusServiceUnavailable, out)
			return
		}
		c.JSON(http.StatusOK, out)
	})

	// Carrier webhooks (public). Callers are checked against the configured
	// AccountSid/ApplicationSid; request signature validation belongs to the edge.
	d.webhooks.Register(r.Group(webhookPrefix))

	h := httpapi.Handlers{
		Auth:      d.auth,
		Presence:  d.presence,
		Directory: d.agents,
		Voice:     d.voice,
		Carrier:   d.carrier,
		Sender:    d.sender,
		Reports:   d.reports,
		Audit:     d.audit,
	}

	r.POST("/v1/auth/login", h.Login)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(d.authMW, rbac.RequireUser(), h.TouchPresence())
	{
		v1.GET("/me", func(c *gin.Context) {
			uid, _ := auth.UserID(c.Request.Context())
			role, _ := auth.Role(c.Request.Context())
			c.JSON(http.StatusOK, gin.H{"user_id": uid, "role": role})
		})
		v1.POST("/auth/logout", h.Logout)

		voice := v1.Group("/voice")
		voice.Use(rbac.RequireAnyRole(rbac.RoleAgent, rbac.RoleSystemManager))
		{
			voice.POST("/token", h.VoiceToken)
			voice.GET("/status", h.VoiceStatus)
		}

		// Only system_manager (and administrator) may touch carrier-wide resources.
		manager := rbac.RequireAnyRole(rbac.RoleSystemManager)

		v1.GET("/carrier/numbers", manager, h.PhoneNumbers)
		v1.POST("/messages/bulk", manager, h.SendBulk)

		reports := v1.Group("/reports")
		reports.Use(manager)
		{
			reports.GET("/calls", h.CallsReport)
			reports.GET("/messages", h.MessagesReport)
		}
	}
}
