package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"call-router/internal/audit"
	"call-router/internal/auth"
	"call-router/internal/carrier"
	"call-router/internal/directory"
	"call-router/internal/messaging"
	"call-router/internal/rbac"
	"call-router/internal/reporting"
	"call-router/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth      *auth.Manager
	Presence  directory.PresenceStore
	Directory directory.Store

	// Voice is nil when the carrier is disabled.
	Voice   *auth.VoiceTokenIssuer
	Carrier carrier.Client
	Sender  *messaging.Sender
	Reports *reporting.Service

	// Audit is optional; failures to record never fail the request.
	Audit *audit.Service

	// Now is overridable in tests.
	Now func() time.Time
}

func (h Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// --- Auth ---

type loginRequest struct {
	UserID string `json:"user_id"`

	// Role is optional; when present it must match the directory entry.
	Role string `json:"role"`
}

// Login issues a JWT token pair for a user known to the directory and marks
// them present. The role in the tokens always comes from the directory.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil || h.Directory == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id required"})
		return
	}

	agent, err := h.Directory.AgentByID(c.Request.Context(), req.UserID)
	if errors.Is(err, directory.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
		return
	}
	if err != nil {
		logger.FromGin(c).Error("login: directory lookup failed", "user_id", req.UserID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "directory_unavailable"})
		return
	}
	role := agent.Role
	if role == "" {
		role = rbac.RoleAgent
	}
	if !rbac.Known(role) {
		logger.FromGin(c).Warn("login: stored role is not recognised", "user_id", agent.ID, "role", role)
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "role not permitted"})
		return
	}
	if req.Role != "" && req.Role != role {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "role not permitted"})
		return
	}

	pair, err := h.Auth.IssuePair(h.now(), agent.ID, role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	h.touch(c, agent.ID)
	h.record(c, func(a audit.Actor) error { return h.Audit.LogLogin(c.Request.Context(), a) }, audit.Actor{UserID: agent.ID, Role: role})
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken, "role": role})
}

// Logout drops the caller's live session so inbound calls stop ringing their softphone.
func (h Handlers) Logout(c *gin.Context) {
	uid, _ := auth.UserID(c.Request.Context())
	if h.Presence != nil && uid != "" {
		if err := h.Presence.Clear(c.Request.Context(), uid); err != nil {
			logger.FromGin(c).Warn("presence clear failed", "user_id", uid, "err", err)
		}
	}
	c.Status(http.StatusNoContent)
}

// TouchPresence refreshes the caller's session on every authenticated request.
// Must run after auth.RequireAccessToken.
func (h Handlers) TouchPresence() gin.HandlerFunc {
	return func(c *gin.Context) {
		if uid, err := auth.UserID(c.Request.Context()); err == nil {
			h.touch(c, uid)
		}
		c.Next()
	}
}

func (h Handlers) touch(c *gin.Context, userID string) {
	if h.Presence == nil {
		return
	}
	if err := h.Presence.Touch(c.Request.Context(), userID); err != nil {
		logger.FromGin(c).Warn("presence touch failed", "user_id", userID, "err", err)
	}
}

// record appends an audit event for the actor. Missing actor fields are
// filled from the request identity.
func (h Handlers) record(c *gin.Context, fn func(audit.Actor) error, a audit.Actor) {
	if h.Audit == nil {
		return
	}
	if a.UserID == "" {
		a.UserID, _ = auth.UserID(c.Request.Context())
	}
	if a.Role == "" {
		a.Role, _ = auth.Role(c.Request.Context())
	}
	a.IP = c.ClientIP()
	if err := fn(a); err != nil {
		logger.FromGin(c).Warn("audit append failed", "user_id", a.UserID, "err", err)
	}
}

// --- Voice ---

// VoiceToken issues a device access token for the caller.
func (h Handlers) VoiceToken(c *gin.Context) {
	log := logger.FromGin(c)
	if h.Voice == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": "voice_disabled"})
		return
	}
	uid, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_id required"})
		return
	}

	number, err := h.callerNumber(c, uid)
	if err != nil {
		log.Error("voice token: directory lookup failed", "user_id", uid, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "directory_unavailable"})
		return
	}

	tok, err := h.Voice.Issue(h.now(), number, uid)
	if errors.Is(err, auth.ErrIdentityMissing) {
		log.Debug("voice token: no number mapped", "user_id", uid)
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
			"ok":     false,
			"error":  auth.ErrIdentityMissing.Error(),
			"detail": "Phone number is not mapped to the caller",
		})
		return
	}
	if err != nil {
		log.Error("voice token issuance failed", "user_id", uid, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "token_issuance_failed"})
		return
	}
	h.record(c, func(a audit.Actor) error { return h.Audit.LogVoiceToken(c.Request.Context(), a, tok.Identity) }, audit.Actor{})
	c.JSON(http.StatusOK, gin.H{"token": tok.Token, "identity": tok.Identity, "expires_at": tok.ExpiresAt})
}

// VoiceStatus tells the client whether to start its softphone.
func (h Handlers) VoiceStatus(c *gin.Context) {
	uid, _ := auth.UserID(c.Request.Context())
	enabled := false
	if h.Voice != nil && uid != "" {
		number, err := h.callerNumber(c, uid)
		if err != nil {
			logger.FromGin(c).Warn("voice status: directory lookup failed", "user_id", uid, "err", err)
		}
		enabled = number != ""
	}
	c.JSON(http.StatusOK, gin.H{"enabled": enabled})
}

func (h Handlers) callerNumber(c *gin.Context, uid string) (string, error) {
	if h.Directory == nil {
		return "", directory.ErrNotConfigured
	}
	return directory.NumberForUser(c.Request.Context(), h.Directory, uid)
}

// --- Carrier ---

func (h Handlers) PhoneNumbers(c *gin.Context) {
	if h.Carrier == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "carrier not configured"})
		return
	}
	numbers, err := h.Carrier.PhoneNumbers(c.Request.Context())
	if err != nil {
		h.carrierFailure(c, "list numbers", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"numbers": numbers})
}

// --- Messages ---

// SendBulk dispatches one WhatsApp message per recipient and reports the
// recipients the carrier rejected.
func (h Handlers) SendBulk(c *gin.Context) {
	if h.Sender == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "messaging not configured"})
		return
	}
	var req messaging.BulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	res, err := h.Sender.SendBulk(c.Request.Context(), req)
	switch {
	case err == nil:
		h.record(c, func(a audit.Actor) error {
			return h.Audit.LogBulkSend(c.Request.Context(), a, req.ReferenceType, req.ReferenceID, audit.BulkSendSummary{
				From:   req.From,
				Sent:   len(res.Sent),
				Failed: res.Failed,
			})
		}, audit.Actor{})
		c.JSON(http.StatusOK, res)
	case errors.Is(err, messaging.ErrInvalidArgument), errors.Is(err, messaging.ErrUnsupportedMedia):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.carrierFailure(c, "bulk send", err)
	}
}

func (h Handlers) carrierFailure(c *gin.Context, op string, err error) {
	log := logger.FromGin(c)
	if carrier.IsConfiguration(err) {
		log.Warn(op+": carrier unavailable", "err", err)
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "carrier not configured"})
		return
	}
	log.Error(op+" failed", "err", err)
	c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "carrier request failed"})
}

// --- Reports ---

func (h Handlers) CallsReport(c *gin.Context) {
	if h.Reports == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reporting not configured"})
		return
	}
	r, ok := parseRange(c)
	if !ok {
		return
	}
	out, err := h.Reports.CallsSummary(c.Request.Context(), reporting.CallsSummaryRequest{Range: r, Direction: c.Query("direction")})
	h.writeReport(c, out, err)
}

func (h Handlers) MessagesReport(c *gin.Context) {
	if h.Reports == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reporting not configured"})
		return
	}
	r, ok := parseRange(c)
	if !ok {
		return
	}
	out, err := h.Reports.MessagesSummary(c.Request.Context(), reporting.MessagesSummaryRequest{Range: r, ReferenceType: c.Query("reference_type")})
	h.writeReport(c, out, err)
}

func (h Handlers) writeReport(c *gin.Context, out any, err error) {
	if errors.Is(err, reporting.ErrInvalidRequest) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		logger.FromGin(c).Error("report failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "report failed"})
		return
	}
	c.JSON(http.StatusOK, out)
}

// parseRange reads RFC3339 from/to query params.
func parseRange(c *gin.Context) (reporting.TimeRange, bool) {
	from, err1 := time.Parse(time.RFC3339, c.Query("from"))
	to, err2 := time.Parse(time.RFC3339, c.Query("to"))
	if err1 != nil || err2 != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from and to must be RFC3339 timestamps"})
		return reporting.TimeRange{}, false
	}
	return reporting.TimeRange{From: from, To: to}, true
}

// Convenience middleware bundles.

func RequireUserAndAnyRole(roles ...string) []gin.HandlerFunc {
	return []gin.HandlerFunc{rbac.RequireUser(), rbac.RequireAnyRole(roles...)}
}
