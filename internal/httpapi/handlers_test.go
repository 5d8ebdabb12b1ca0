package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"call-router/internal/audit"
	"call-router/internal/auth"
	"call-router/internal/calls"
	"call-router/internal/carrier"
	"call-router/internal/config"
	"call-router/internal/directory"
	"call-router/internal/messaging"
	"call-router/internal/rbac"
	"call-router/internal/reporting"
)

type stubCarrier struct {
	failTo map[string]bool
	n      int
}

func (s *stubCarrier) FetchCall(ctx context.Context, sid string) (carrier.CallInfo, error) {
	return carrier.CallInfo{}, errors.New("not used")
}

func (s *stubCarrier) SendMessage(ctx context.Context, msg carrier.OutboundMessage) (carrier.SentMessage, error) {
	if s.failTo[strings.TrimPrefix(msg.To, messaging.WhatsAppPrefix)] {
		return carrier.SentMessage{}, &carrier.Error{Op: "send_message", Code: 63016, Err: errors.New("outside window")}
	}
	s.n++
	return carrier.SentMessage{Sid: fmt.Sprintf("SM%d", s.n), Status: "queued"}, nil
}

func (s *stubCarrier) PhoneNumbers(ctx context.Context) ([]string, error) {
	return []string{"+15550001", "+15550002"}, nil
}

type env struct {
	router   *gin.Engine
	auth     *auth.Manager
	sessions *directory.MemorySessions
	msgRepo  *messaging.MemoryRepo
	callRepo *calls.MemoryRepo
	audit    *audit.MemoryRepo
}

func newEnv(t *testing.T, c carrier.Client, voice bool) env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m, err := auth.NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Hour, RefreshTokenTTL: 2 * time.Hour})
	if err != nil {
		t.Fatalf("auth: %v", err)
	}
	store := directory.NewMemoryStore(
		directory.Agent{ID: "agent@example.com", Number: "+15550001", Device: directory.DeviceComputer},
		directory.Agent{ID: "nonumber@example.com", Device: directory.DeviceComputer},
		directory.Agent{ID: "manager@example.com", Device: directory.DeviceComputer, Role: rbac.RoleSystemManager},
	)
	sessions := directory.NewMemorySessions()
	msgRepo := messaging.NewMemoryRepo()
	callRepo := calls.NewMemoryRepo()
	auditRepo := audit.NewMemoryRepo()

	h := Handlers{
		Auth:      m,
		Presence:  sessions,
		Directory: store,
		Carrier:   c,
		Sender:    messaging.NewSender(c, messaging.NewService(msgRepo, nil), messaging.SenderConfig{}, nil),
		Reports:   reporting.NewService(reporting.RecordsRepo{Calls: callRepo, Messages: msgRepo}),
		Audit:     audit.NewService(auditRepo),
	}
	if voice {
		h.Voice, err = auth.NewVoiceTokenIssuer(config.TwilioConfig{
			Enabled: true, AccountSID: "AC1", AuthToken: "t", APIKey: "SK1", APISecret: "s", ApplicationSID: "AP1",
		})
		if err != nil {
			t.Fatalf("voice issuer: %v", err)
		}
	}

	r := gin.New()
	r.POST("/v1/auth/login", h.Login)
	v1 := r.Group("/v1", auth.RequireAccessToken(m), h.TouchPresence())
	v1.POST("/auth/logout", h.Logout)
	v1.POST("/voice/token", h.VoiceToken)
	v1.GET("/voice/status", h.VoiceStatus)
	mgr := v1.Group("", RequireUserAndAnyRole(rbac.RoleSystemManager)...)
	mgr.GET("/carrier/numbers", h.PhoneNumbers)
	mgr.POST("/messages/bulk", h.SendBulk)
	mgr.GET("/reports/calls", h.CallsReport)
	mgr.GET("/reports/messages", h.MessagesReport)

	return env{router: r, auth: m, sessions: sessions, msgRepo: msgRepo, callRepo: callRepo, audit: auditRepo}
}

func (e env) do(t *testing.T, method, path, user, role string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		pair, err := e.auth.IssuePair(time.Now(), user, role)
		if err != nil {
			t.Fatalf("issue: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func present(t *testing.T, s *directory.MemorySessions, user string) bool {
	t.Helper()
	got, err := s.ActiveUsers(context.Background(), []string{user})
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	return got[user]
}

func TestLogin_IssuesTokensAndMarksPresence(t *testing.T) {
	e := newEnv(t, &stubCarrier{}, true)

	w := e.do(t, http.MethodPost, "/v1/auth/login", "", "", gin.H{"user_id": "agent@example.com", "role": rbac.RoleAgent})
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "access_token") {
		t.Fatalf("unexpected login response %d %s", w.Code, w.Body.String())
	}
	if !present(t, e.sessions, "agent@example.com") {
		t.Fatalf("login must mark the user present")
	}
	if evs := e.audit.Events(); len(evs) != 1 || evs[0].Type != audit.EventTypeLogin {
		t.Fatalf("expected login audit event, got %+v", evs)
	}
}

func TestLogin_RoleComesFromDirectory(t *testing.T) {
	e := newEnv(t, &stubCarrier{}, true)

	w := e.do(t, http.MethodPost, "/v1/auth/login", "", "", gin.H{"user_id": "manager@example.com"})
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected login response %d %s", w.Code, w.Body.String())
	}
	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	claims, err := e.auth.Verify(body.AccessToken, auth.TokenTypeAccess, time.Now())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "manager@example.com" || claims.Role != rbac.RoleSystemManager {
		t.Fatalf("expected stored role in token, got %+v", claims)
	}
}

func TestLogin_RejectsUnknownUserAndAssertedRole(t *testing.T) {
	e := newEnv(t, &stubCarrier{}, true)

	w := e.do(t, http.MethodPost, "/v1/auth/login", "", "", gin.H{"user_id": "intruder@example.com", "role": rbac.RoleAgent})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown user, got %d", w.Code)
	}

	w = e.do(t, http.MethodPost, "/v1/auth/login", "", "", gin.H{"user_id": "agent@example.com", "role": rbac.RoleAdministrator})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for self-asserted administrator, got %d", w.Code)
	}

	w = e.do(t, http.MethodPost, "/v1/auth/login", "", "", gin.H{"role": rbac.RoleAgent})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without user_id, got %d", w.Code)
	}

	if present(t, e.sessions, "intruder@example.com") || present(t, e.sessions, "agent@example.com") {
		t.Fatalf("rejected logins must not mark presence")
	}
	if evs := e.audit.Events(); len(evs) != 0 {
		t.Fatalf("rejected logins must not be audited as logins, got %+v", evs)
	}
}

func TestLogout_ClearsPresence(t *testing.T) {
	e := newEnv(t, &stubCarrier{}, true)

	w := e.do(t, http.MethodPost, "/v1/auth/logout", "agent@example.com", rbac.RoleAgent, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if present(t, e.sessions, "agent@example.com") {
		t.Fatalf("logout must clear presence")
	}
}

func TestVoiceToken_IssuedForMappedUser(t *testing.T) {
	e := newEnv(t, &stubCarrier{}, true)

	w := e.do(t, http.MethodPost, "/v1/voice/token", "agent@example.com", rbac.RoleAgent, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", w.Code, w.Body.String())
	}
	var out struct {
		Token    string `json:"token"`
		Identity string `json:"identity"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Token == "" || out.Identity == "" {
		t.Fatalf("expected token and identity, got %+v", out)
	}
	if !present(t, e.sessions, "agent@example.com") {
		t.Fatalf("authenticated request must refresh presence")
	}
}

func TestVoiceToken_IdentityMissing(t *testing.T) {
	e := newEnv(t, &stubCarrier{}, true)

	w := e.do(t, http.MethodPost, "/v1/voice/token", "nonumber@example.com", rbac.RoleAgent, nil)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out["ok"] != false || out["error"] != "caller_phone_identity_missing" {
		t.Fatalf("unexpected body %v", out)
	}
	if _, ok := out["token"]; ok {
		t.Fatalf("no token may be returned")
	}
}

func TestVoiceToken_DisabledCarrier(t *testing.T) {
	e := newEnv(t, carrier.NewDisabledClient(), false)

	w := e.do(t, http.MethodPost, "/v1/voice/token", "agent@example.com", rbac.RoleAgent, nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	w = e.do(t, http.MethodGet, "/v1/voice/status", "agent@example.com", rbac.RoleAgent, nil)
	if !strings.Contains(w.Body.String(), `"enabled":false`) {
		t.Fatalf("expected voice disabled, got %s", w.Body.String())
	}
}

func TestVoiceStatus_RequiresNumber(t *testing.T) {
	e := newEnv(t, &stubCarrier{}, true)

	w := e.do(t, http.MethodGet, "/v1/voice/status", "agent@example.com", rbac.RoleAgent, nil)
	if !strings.Contains(w.Body.String(), `"enabled":true`) {
		t.Fatalf("expected voice enabled, got %s", w.Body.String())
	}
	w = e.do(t, http.MethodGet, "/v1/voice/status", "nonumber@example.com", rbac.RoleAgent, nil)
	if !strings.Contains(w.Body.String(), `"enabled":false`) {
		t.Fatalf("expected voice disabled for unmapped user, got %s", w.Body.String())
	}
}

func TestPhoneNumbers_ManagerOnly(t *testing.T) {
	e := newEnv(t, &stubCarrier{}, true)

	if w := e.do(t, http.MethodGet, "/v1/carrier/numbers", "agent@example.com", rbac.RoleAgent, nil); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for agent, got %d", w.Code)
	}
	w := e.do(t, http.MethodGet, "/v1/carrier/numbers", "boss@example.com", rbac.RoleSystemManager, nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "+15550002") {
		t.Fatalf("unexpected numbers response %d %s", w.Code, w.Body.String())
	}
}

func TestPhoneNumbers_DisabledCarrier(t *testing.T) {
	e := newEnv(t, carrier.NewDisabledClient(), false)

	w := e.do(t, http.MethodGet, "/v1/carrier/numbers", "boss@example.com", rbac.RoleSystemManager, nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestSendBulk_ReportsFailedRecipients(t *testing.T) {
	e := newEnv(t, &stubCarrier{failTo: map[string]bool{"+2": true}}, true)

	w := e.do(t, http.MethodPost, "/v1/messages/bulk", "boss@example.com", rbac.RoleSystemManager, gin.H{
		"from":       "+15550001",
		"recipients": []string{"+1", "+2", "+3"},
		"body":       "hello",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", w.Code, w.Body.String())
	}
	var out messaging.BulkResult
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Failed) != 1 || out.Failed[0] != "+2" || len(out.Sent) != 2 {
		t.Fatalf("unexpected result %+v", out)
	}

	evs := e.audit.ByType(audit.EventTypeBulkSend)
	if len(evs) != 1 || evs[0].ActorUserID != "boss@example.com" {
		t.Fatalf("expected one bulk send audit event, got %+v", evs)
	}
}

func TestSendBulk_Validation(t *testing.T) {
	e := newEnv(t, &stubCarrier{}, true)

	w := e.do(t, http.MethodPost, "/v1/messages/bulk", "boss@example.com", rbac.RoleSystemManager, gin.H{
		"from":       "+15550001",
		"recipients": []string{"+1"},
		"body":       "hi",
		"media_url":  "https://cdn.example.com/file.exe",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestSendBulk_DisabledCarrier(t *testing.T) {
	e := newEnv(t, carrier.NewDisabledClient(), false)

	w := e.do(t, http.MethodPost, "/v1/messages/bulk", "boss@example.com", rbac.RoleSystemManager, gin.H{
		"from":       "+15550001",
		"recipients": []string{"+1"},
		"body":       "hi",
	})
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d %s", w.Code, w.Body.String())
	}
}

func TestReports(t *testing.T) {
	e := newEnv(t, &stubCarrier{}, true)
	now := time.Now().UTC()
	_, _ = e.callRepo.Create(context.Background(), calls.CallRecord{ID: "CA1", Direction: calls.DirectionInbound, Status: calls.StatusCompleted, CreatedAt: now})

	q := "?from=" + now.Add(-time.Hour).Format(time.RFC3339) + "&to=" + now.Add(time.Hour).Format(time.RFC3339)
	w := e.do(t, http.MethodGet, "/v1/reports/calls"+q, "boss@example.com", rbac.RoleSystemManager, nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"completed_calls":1`) {
		t.Fatalf("unexpected calls report %d %s", w.Code, w.Body.String())
	}

	w = e.do(t, http.MethodGet, "/v1/reports/messages"+q, "boss@example.com", rbac.RoleSystemManager, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected messages report %d", w.Code)
	}

	w = e.do(t, http.MethodGet, "/v1/reports/calls?from=yesterday", "boss@example.com", rbac.RoleSystemManager, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad range, got %d", w.Code)
	}
}
