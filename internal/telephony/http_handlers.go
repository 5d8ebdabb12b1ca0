package telephony

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"call-router/internal/calls"
	"call-router/internal/directory"
	"call-router/internal/identity"
	"call-router/internal/messaging"
	"call-router/internal/routing"
	"call-router/pkg/logger"

	"github.com/gin-gonic/gin"
)

// TwilioWebhookHandler converts Twilio webhooks to typed forms, verifies
// them, and delegates to routing, the response builder and the record
// services.
//
// Voice webhooks never answer with a raw error once verified: anything that
// goes wrong is logged and the caller hears the unavailable message.
type TwilioWebhookHandler struct {
	// Enabled mirrors the carrier configuration. When false every webhook is
	// refused and no routing is attempted.
	Enabled bool

	Verifier Verifier
	Router   routing.Router
	Builder  *ResponseBuilder

	// Directory resolves the caller number for device-originated calls.
	Directory directory.Store

	Calls    *calls.Service
	Messages *messaging.Service
}

// Register mounts the webhook routes on g.
func (h TwilioWebhookHandler) Register(g gin.IRoutes) {
	g.POST("/voice/incoming", h.HandleInboundCall)
	g.POST("/voice/outgoing", h.HandleOutgoingCall)
	g.POST("/voice/status", h.HandleCallStatus)
	g.POST("/voice/recording", h.HandleRecording)
	g.POST("/messages/status", h.HandleMessageStatus)
	g.POST("/messages/incoming", h.HandleInboundMessage)
}

func (h TwilioWebhookHandler) HandleInboundCall(c *gin.Context) {
	log := logger.FromGin(c)
	if !h.Enabled {
		log.Error("inbound call while carrier disabled")
		h.writeInstruction(c, log, h.Builder.Fallback())
		return
	}

	form, ok := h.voiceForm(c, log)
	if !ok {
		return
	}
	log = log.With("call_sid", form.CallSid, "from", form.From, "to", form.To)

	h.openCall(c.Request.Context(), log, calls.NewCall{
		ID:        form.CallSid,
		Direction: calls.DirectionInbound,
		From:      form.From,
		To:        form.To,
		Status:    form.CallStatus,
	})

	router := h.Router
	if router == nil {
		router = routing.NewNoopRouter()
	}
	d := router.Route(c.Request.Context(), form.To)
	log.Info("inbound call routed", "agent_id", d.AgentID, "channel", d.Channel, "reason", d.Reason)

	h.writeInstruction(c, log, h.Builder.Build(d, form.From))
}

func (h TwilioWebhookHandler) HandleOutgoingCall(c *gin.Context) {
	log := logger.FromGin(c)
	if !h.Enabled {
		log.Error("outgoing call while carrier disabled")
		h.writeInstruction(c, log, h.Builder.Fallback())
		return
	}

	form, ok := h.voiceForm(c, log)
	if !ok {
		return
	}
	log = log.With("call_sid", form.CallSid, "caller", form.Caller, "to", form.To)

	from, ok := h.callerNumber(c.Request.Context(), log, form.Caller)
	if !ok {
		h.writeInstruction(c, log, h.Builder.Fallback())
		return
	}

	h.openCall(c.Request.Context(), log, calls.NewCall{
		ID:        form.CallSid,
		Direction: calls.DirectionOutbound,
		From:      from,
		To:        form.To,
		Status:    form.CallStatus,
	})

	h.writeInstruction(c, log, h.Builder.BuildDial(from, form.To))
}

func (h TwilioWebhookHandler) HandleCallStatus(c *gin.Context) {
	log := logger.FromGin(c)
	if !h.ready(c, h.Calls != nil) {
		return
	}

	form, err := ParseCallStatusForm(c.Request)
	if err != nil {
		h.rejectForm(c, log, err)
		return
	}
	if err := h.Verifier.VerifyAccount(form.AccountSid); err != nil {
		h.rejectForm(c, log, err)
		return
	}

	out, err := h.Calls.ApplyStatus(c.Request.Context(), form.CallSid, form.CallStatus, form.CallDuration)
	h.writeCallOutcome(c, log.With("call_sid", form.CallSid, "call_status", form.CallStatus), out, err)
}

func (h TwilioWebhookHandler) HandleRecording(c *gin.Context) {
	log := logger.FromGin(c)
	if !h.ready(c, h.Calls != nil) {
		return
	}

	form, err := ParseRecordingForm(c.Request)
	if err != nil {
		h.rejectForm(c, log, err)
		return
	}
	if err := h.Verifier.VerifyAccount(form.AccountSid); err != nil {
		h.rejectForm(c, log, err)
		return
	}
	log = log.With("call_sid", form.CallSid, "recording_sid", form.RecordingSid)

	if !form.Completed() {
		log.Debug("recording not complete, skipping", "recording_status", form.RecordingStatus)
		c.JSON(http.StatusOK, gin.H{"outcome": calls.OutcomeIgnored})
		return
	}

	ctx := c.Request.Context()
	out, err := h.Calls.AttachRecording(ctx, form.CallSid, form.RecordingURL)
	if err == nil {
		// The recording usually lands after the final status; fill in a
		// missing duration from the carrier.
		if rec, gerr := h.Calls.Get(ctx, form.CallSid); gerr == nil && rec.Duration == nil {
			if _, serr := h.Calls.SyncFromCarrier(ctx, form.CallSid); serr != nil {
				log.Warn("call sync after recording failed", "err", serr)
			}
		}
	}
	h.writeCallOutcome(c, log, out, err)
}

func (h TwilioWebhookHandler) HandleMessageStatus(c *gin.Context) {
	log := logger.FromGin(c)
	if !h.ready(c, h.Messages != nil) {
		return
	}

	form, err := ParseMessageStatusForm(c.Request)
	if err != nil {
		h.rejectForm(c, log, err)
		return
	}
	if err := h.Verifier.VerifyAccount(form.AccountSid); err != nil {
		h.rejectForm(c, log, err)
		return
	}
	log = log.With("message_sid", form.MessageSid, "message_status", form.Status)
	if form.ErrorCode != "" {
		log.Warn("carrier reported message error", "error_code", form.ErrorCode)
	}

	out, err := h.Messages.ApplyStatus(c.Request.Context(), form.MessageSid, form.Status)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"outcome": out})
	case errors.Is(err, messaging.ErrUnknownStatus):
		log.Warn("unknown message status", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
	case errors.Is(err, messaging.ErrNotFound):
		// Status for a message this service never sent; nothing to update.
		log.Info("status for unknown message ignored")
		c.JSON(http.StatusOK, gin.H{"outcome": messaging.OutcomeIgnored})
	default:
		log.Error("message status update failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
	}
}

func (h TwilioWebhookHandler) HandleInboundMessage(c *gin.Context) {
	log := logger.FromGin(c)
	if !h.ready(c, h.Messages != nil) {
		return
	}

	form, err := ParseInboundMessageForm(c.Request)
	if err != nil {
		h.rejectForm(c, log, err)
		return
	}
	if err := h.Verifier.VerifyAccount(form.AccountSid); err != nil {
		h.rejectForm(c, log, err)
		return
	}

	_, created, err := h.Messages.RecordInbound(c.Request.Context(), messaging.InboundMessage{
		Sid:         form.MessageSid,
		From:        form.From,
		To:          form.To,
		Body:        form.Body,
		ProfileName: form.ProfileName,
		MediaURL:    form.MediaURL,
	})
	if err != nil {
		log.Error("inbound message not recorded", "message_sid", form.MessageSid, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "record failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"created": created})
}

func (h TwilioWebhookHandler) voiceForm(c *gin.Context, log *slog.Logger) (VoiceForm, bool) {
	form, err := ParseVoiceForm(c.Request)
	if err != nil {
		h.rejectForm(c, log, err)
		return VoiceForm{}, false
	}
	if err := h.Verifier.VerifyVoice(form); err != nil {
		h.rejectForm(c, log, err)
		return VoiceForm{}, false
	}
	return form, true
}

// callerNumber maps "client:<identity>" to the agent's carrier number.
func (h TwilioWebhookHandler) callerNumber(ctx context.Context, log *slog.Logger, caller string) (string, bool) {
	user, ok := identity.FromCaller(caller)
	if !ok {
		log.Warn("outgoing call without client identity")
		return "", false
	}
	if h.Directory == nil {
		log.Error("outgoing call: directory not configured")
		return "", false
	}
	number, err := directory.NumberForUser(ctx, h.Directory, user)
	if err != nil {
		log.Error("outgoing call: caller number lookup failed", "user", user, "err", err)
		return "", false
	}
	if number == "" {
		log.Info("outgoing call: no number mapped to caller", "user", user)
		return "", false
	}
	return number, true
}

func (h TwilioWebhookHandler) openCall(ctx context.Context, log *slog.Logger, in calls.NewCall) {
	if h.Calls == nil {
		return
	}
	if _, _, err := h.Calls.Open(ctx, in); err != nil {
		// Routing goes ahead; the status callbacks will miss this call.
		log.Error("call record not created", "err", err)
	}
}

func (h TwilioWebhookHandler) writeInstruction(c *gin.Context, log *slog.Logger, in Instruction) {
	xml, err := Render(in)
	if err != nil {
		log.Error("twiml render failed", "kind", in.Kind, "err", err)
		if xml, err = Render(h.Builder.Fallback()); err != nil {
			xml = fallbackTwiML
		}
	}
	c.Header("Content-Type", "application/xml")
	c.String(http.StatusOK, xml)
}

func (h TwilioWebhookHandler) writeCallOutcome(c *gin.Context, log *slog.Logger, out calls.Outcome, err error) {
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"outcome": out})
	case errors.Is(err, calls.ErrUnknownStatus), errors.Is(err, calls.ErrInvalidArgument):
		log.Warn("call callback rejected", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, calls.ErrNotFound):
		log.Info("callback for unknown call ignored")
		c.JSON(http.StatusOK, gin.H{"outcome": calls.OutcomeIgnored})
	default:
		log.Error("call update failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
	}
}

func (h TwilioWebhookHandler) rejectForm(c *gin.Context, log *slog.Logger, err error) {
	var ve *ValidationError
	if errors.As(err, &ve) && (ve.Field == "AccountSid" || ve.Field == "ApplicationSid") {
		log.Warn("twilio webhook rejected", "err", err)
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	log.Warn("twilio webhook parse failed", "err", err)
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
}

func (h TwilioWebhookHandler) ready(c *gin.Context, wired bool) bool {
	if !h.Enabled {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "carrier disabled"})
		return false
	}
	if !wired {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "handler not configured"})
		return false
	}
	return true
}
