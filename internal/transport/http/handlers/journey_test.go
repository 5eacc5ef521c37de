package handlers_test

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"kpireview/internal/app/server"
	"kpireview/internal/domain/notifications"
	"kpireview/internal/platform/config"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   any             `json:"error"`
}

func testConfig(dbURL string) config.Config {
	return config.Config{
		DatabaseURL:        dbURL,
		JWTSecret:          "test-secret",
		FrontendDir:        "frontend/dist",
		Environment:        "test",
		SeedAdminEmail:     "admin@test.local",
		SeedAdminPassword:  "ChangeMe123!",
		EmailFrom:          "no-reply@test.local",
		RunMigrations:      true,
		MigrationsDir:      "../../../../migrations",
		RunSeed:            true,
		MaxBodyBytes:       1048576,
		RateLimitPerMinute: 1000,
		StalenessWindow:    30 * 24 * time.Hour,
		HeartbeatInterval:  30 * time.Second,
		EventBufferSize:    50,
		CounterDebounce:    500 * time.Millisecond,
		MetricsEnabled:     true,
	}
}

func TestEvaluationLifecycleJourney(t *testing.T) {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	cfg := testConfig(dbURL)
	app, err := server.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to start app: %v", err)
	}
	defer app.Close()

	ts := httptest.NewServer(app.Router)
	defer ts.Close()
	client := ts.Client()

	adminToken := login(t, client, ts.URL, cfg.SeedAdminEmail, cfg.SeedAdminPassword)

	suffix := fmt.Sprintf("%d", time.Now().UnixNano())
	managerEmail := "manager-" + suffix + "@test.local"
	subjectEmail := "subject-" + suffix + "@test.local"

	managerUserID := createUser(t, client, ts.URL, adminToken, managerEmail, "manager")
	subjectUserID := createUser(t, client, ts.URL, adminToken, subjectEmail, "employee")

	managerEmpID := createEmployee(t, client, ts.URL, adminToken, managerUserID, "Morgan Manager", "")
	subjectEmpID := createEmployee(t, client, ts.URL, adminToken, subjectUserID, "Sam Subject", managerEmpID)

	templateID := createTemplate(t, client, ts.URL, adminToken)
	evaluationID := createEvaluation(t, client, ts.URL, adminToken, subjectEmpID, templateID)

	subjectToken := login(t, client, ts.URL, subjectEmail, "Password123!")
	managerToken := login(t, client, ts.URL, managerEmail, "Password123!")

	if count := pendingCount(t, client, ts.URL, subjectToken); count != 1 {
		t.Fatalf("subject should have 1 pending evaluation, got %d", count)
	}

	scores := listScores(t, client, ts.URL, subjectToken, evaluationID)
	if len(scores) != 2 {
		t.Fatalf("expected 2 score rows from the template, got %d", len(scores))
	}

	// Self stage rejects advancement until every item is scored.
	resp := postJSON(t, client, ts.URL+"/api/v1/evaluations/"+evaluationID+"/self", subjectToken, nil)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 before self scores, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	saveScore(t, client, ts.URL, subjectToken, scores[0].ID, "self", 40)
	saveScore(t, client, ts.URL, subjectToken, scores[1].ID, "self", 35)
	status := advanceStage(t, client, ts.URL, subjectToken, evaluationID, "self")
	if status != "self_evaluated" {
		t.Fatalf("expected self_evaluated, got %s", status)
	}

	saveScore(t, client, ts.URL, managerToken, scores[0].ID, "manager", 42)
	saveScore(t, client, ts.URL, managerToken, scores[1].ID, "manager", 30)
	status = advanceStage(t, client, ts.URL, managerToken, evaluationID, "manager")
	if status != "manager_evaluated" {
		t.Fatalf("expected manager_evaluated, got %s", status)
	}

	status = advanceStage(t, client, ts.URL, adminToken, evaluationID, "hr")
	if status != "pending_confirm" {
		t.Fatalf("expected pending_confirm, got %s", status)
	}

	status = advanceStage(t, client, ts.URL, subjectToken, evaluationID, "confirm")
	if status != "completed" {
		t.Fatalf("expected completed, got %s", status)
	}

	eval := getEvaluation(t, client, ts.URL, subjectToken, evaluationID)
	if eval.TotalScore != 72 {
		t.Fatalf("expected confirmed total 72, got %v", eval.TotalScore)
	}

	// Confirm is one-shot.
	resp = postJSON(t, client, ts.URL+"/api/v1/evaluations/"+evaluationID+"/confirm", subjectToken, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 on second confirm, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	recent := recentEvents(t, client, ts.URL, subjectToken)
	statusChanges := 0
	for _, event := range recent {
		if event.Type == notifications.TypeEvaluationStatusChanged {
			statusChanges++
		}
	}
	if statusChanges < 4 {
		t.Fatalf("expected at least 4 status change events, got %d", statusChanges)
	}

	pdfResp := get(t, client, ts.URL+"/api/v1/reports/evaluations/"+evaluationID+"/pdf", subjectToken)
	defer pdfResp.Body.Close()
	if pdfResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for pdf export, got %d", pdfResp.StatusCode)
	}
	pdfBytes, _ := io.ReadAll(pdfResp.Body)
	if !bytes.HasPrefix(pdfBytes, []byte("%PDF")) {
		t.Fatal("pdf export did not return a PDF document")
	}
}

func TestInvitationJourney(t *testing.T) {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	cfg := testConfig(dbURL)
	app, err := server.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to start app: %v", err)
	}
	defer app.Close()

	ts := httptest.NewServer(app.Router)
	defer ts.Close()
	client := ts.Client()

	adminToken := login(t, client, ts.URL, cfg.SeedAdminEmail, cfg.SeedAdminPassword)

	suffix := fmt.Sprintf("%d", time.Now().UnixNano())
	managerEmail := "inv-manager-" + suffix + "@test.local"
	subjectEmail := "inv-subject-" + suffix + "@test.local"
	peerEmail := "inv-peer-" + suffix + "@test.local"

	managerUserID := createUser(t, client, ts.URL, adminToken, managerEmail, "manager")
	subjectUserID := createUser(t, client, ts.URL, adminToken, subjectEmail, "employee")
	peerUserID := createUser(t, client, ts.URL, adminToken, peerEmail, "employee")

	managerEmpID := createEmployee(t, client, ts.URL, adminToken, managerUserID, "Inv Manager", "")
	subjectEmpID := createEmployee(t, client, ts.URL, adminToken, subjectUserID, "Inv Subject", managerEmpID)
	peerEmpID := createEmployee(t, client, ts.URL, adminToken, peerUserID, "Inv Peer", managerEmpID)

	templateID := createTemplate(t, client, ts.URL, adminToken)
	evaluationID := createEvaluation(t, client, ts.URL, adminToken, subjectEmpID, templateID)

	managerToken := login(t, client, ts.URL, managerEmail, "Password123!")
	peerToken := login(t, client, ts.URL, peerEmail, "Password123!")

	// The subject cannot be invited to score themselves.
	resp := postJSON(t, client, ts.URL+"/api/v1/invitations", managerToken, map[string]any{
		"evaluationId": evaluationID,
		"inviteeId":    subjectEmpID,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 inviting the subject, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	invitationID := createInvitation(t, client, ts.URL, managerToken, evaluationID, peerEmpID)

	if count := invitationPendingCount(t, client, ts.URL, peerToken); count != 1 {
		t.Fatalf("peer should have 1 pending invitation, got %d", count)
	}

	status := invitationAction(t, client, ts.URL, peerToken, invitationID, "accept")
	if status != "accepted" {
		t.Fatalf("expected accepted, got %s", status)
	}

	invScores := listInvitedScores(t, client, ts.URL, peerToken, invitationID)
	if len(invScores) != 2 {
		t.Fatalf("expected 2 invited score rows, got %d", len(invScores))
	}
	saveInvitedScore(t, client, ts.URL, peerToken, invScores[0].ID, 38)

	// Only the invitee may act on an accepted invitation.
	resp = postJSON(t, client, ts.URL+"/api/v1/invitations/"+invitationID+"/complete", managerToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 when inviter completes, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	status = invitationAction(t, client, ts.URL, peerToken, invitationID, "complete")
	if status != "completed" {
		t.Fatalf("expected completed, got %s", status)
	}

	// Terminal: cancel after completion must fail.
	resp = postJSON(t, client, ts.URL+"/api/v1/invitations/"+invitationID+"/cancel", managerToken, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 cancelling a completed invitation, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestEventStreamDeliversConnectedEvent(t *testing.T) {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	cfg := testConfig(dbURL)
	app, err := server.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to start app: %v", err)
	}
	defer app.Close()

	ts := httptest.NewServer(app.Router)
	defer ts.Close()
	client := ts.Client()

	adminToken := login(t, client, ts.URL, cfg.SeedAdminEmail, cfg.SeedAdminPassword)

	// EventSource-style: token in the query string, no Authorization header.
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/v1/events/stream?token="+adminToken, nil)
	req.Header.Set("Accept", "text/event-stream")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req = req.WithContext(ctx)

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("stream request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from stream, got %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		event, err := notifications.Decode([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data:"))))
		if err != nil {
			t.Fatalf("malformed stream event: %v", err)
		}
		if event.Type != notifications.TypeConnected {
			t.Fatalf("expected connected event first, got %s", event.Type)
		}
		return
	}
	t.Fatal("stream closed before delivering the connected event")
}

type scoreRow struct {
	ID string `json:"id"`
}

type evaluationRow struct {
	ID         string  `json:"id"`
	Status     string  `json:"status"`
	TotalScore float64 `json:"totalScore"`
}

func login(t *testing.T, client *http.Client, baseURL, email, password string) string {
	t.Helper()
	resp := postJSON(t, client, baseURL+"/api/v1/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed for %s: status %d", email, resp.StatusCode)
	}
	var payload struct {
		Token string `json:"token"`
	}
	decodeData(t, resp.Body, &payload)
	return payload.Token
}

func createUser(t *testing.T, client *http.Client, baseURL, token, email, role string) string {
	t.Helper()
	resp := postJSON(t, client, baseURL+"/api/v1/users", token, map[string]string{
		"email":    email,
		"password": "Password123!",
		"role":     role,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create user failed: status %d", resp.StatusCode)
	}
	return decodeID(t, resp.Body)
}

func createEmployee(t *testing.T, client *http.Client, baseURL, token, userID, name, managerID string) string {
	t.Helper()
	resp := postJSON(t, client, baseURL+"/api/v1/employees", token, map[string]string{
		"userId":    userID,
		"name":      name,
		"managerId": managerID,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create employee failed: status %d", resp.StatusCode)
	}
	return decodeID(t, resp.Body)
}

func createTemplate(t *testing.T, client *http.Client, baseURL, token string) string {
	t.Helper()
	resp := postJSON(t, client, baseURL+"/api/v1/kpi-templates", token, map[string]any{
		"name":   "Quarterly Review",
		"period": "quarterly",
		"items": []map[string]any{
			{"name": "Delivery", "maxScore": 50},
			{"name": "Quality", "maxScore": 50},
		},
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create template failed: status %d", resp.StatusCode)
	}
	return decodeID(t, resp.Body)
}

func createEvaluation(t *testing.T, client *http.Client, baseURL, token, employeeID, templateID string) string {
	t.Helper()
	resp := postJSON(t, client, baseURL+"/api/v1/evaluations", token, map[string]any{
		"employeeId": employeeID,
		"templateId": templateID,
		"period":     "quarterly",
		"year":       2026,
		"quarter":    1,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create evaluation failed: status %d", resp.StatusCode)
	}
	var eval evaluationRow
	decodeData(t, resp.Body, &eval)
	return eval.ID
}

func listScores(t *testing.T, client *http.Client, baseURL, token, evaluationID string) []scoreRow {
	t.Helper()
	resp := get(t, client, baseURL+"/api/v1/evaluations/"+evaluationID+"/scores", token)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list scores failed: status %d", resp.StatusCode)
	}
	var scores []scoreRow
	decodeData(t, resp.Body, &scores)
	return scores
}

func saveScore(t *testing.T, client *http.Client, baseURL, token, scoreID, variant string, value float64) {
	t.Helper()
	resp := putJSON(t, client, baseURL+"/api/v1/evaluations/scores/"+scoreID, token, map[string]any{
		"variant": variant,
		"value":   value,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save %s score failed: status %d", variant, resp.StatusCode)
	}
}

func advanceStage(t *testing.T, client *http.Client, baseURL, token, evaluationID, stage string) string {
	t.Helper()
	resp := postJSON(t, client, baseURL+"/api/v1/evaluations/"+evaluationID+"/"+stage, token, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("%s stage failed: status %d", stage, resp.StatusCode)
	}
	var eval evaluationRow
	decodeData(t, resp.Body, &eval)
	return eval.Status
}

func getEvaluation(t *testing.T, client *http.Client, baseURL, token, evaluationID string) evaluationRow {
	t.Helper()
	resp := get(t, client, baseURL+"/api/v1/evaluations/"+evaluationID, token)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get evaluation failed: status %d", resp.StatusCode)
	}
	var eval evaluationRow
	decodeData(t, resp.Body, &eval)
	return eval
}

func pendingCount(t *testing.T, client *http.Client, baseURL, token string) int {
	t.Helper()
	resp := get(t, client, baseURL+"/api/v1/evaluations/pending-count", token)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pending count failed: status %d", resp.StatusCode)
	}
	var payload struct {
		Count int `json:"count"`
	}
	decodeData(t, resp.Body, &payload)
	return payload.Count
}

func invitationPendingCount(t *testing.T, client *http.Client, baseURL, token string) int {
	t.Helper()
	resp := get(t, client, baseURL+"/api/v1/invitations/pending-count", token)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("invitation pending count failed: status %d", resp.StatusCode)
	}
	var payload struct {
		Count int `json:"count"`
	}
	decodeData(t, resp.Body, &payload)
	return payload.Count
}

func createInvitation(t *testing.T, client *http.Client, baseURL, token, evaluationID, inviteeID string) string {
	t.Helper()
	resp := postJSON(t, client, baseURL+"/api/v1/invitations", token, map[string]string{
		"evaluationId": evaluationID,
		"inviteeId":    inviteeID,
		"message":      "please score this review",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create invitation failed: status %d", resp.StatusCode)
	}
	var payload struct {
		ID string `json:"id"`
	}
	decodeData(t, resp.Body, &payload)
	return payload.ID
}

func invitationAction(t *testing.T, client *http.Client, baseURL, token, invitationID, action string) string {
	t.Helper()
	resp := postJSON(t, client, baseURL+"/api/v1/invitations/"+invitationID+"/"+action, token, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("invitation %s failed: status %d", action, resp.StatusCode)
	}
	var payload struct {
		Status string `json:"status"`
	}
	decodeData(t, resp.Body, &payload)
	return payload.Status
}

func listInvitedScores(t *testing.T, client *http.Client, baseURL, token, invitationID string) []scoreRow {
	t.Helper()
	resp := get(t, client, baseURL+"/api/v1/invitations/"+invitationID+"/scores", token)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list invited scores failed: status %d", resp.StatusCode)
	}
	var scores []scoreRow
	decodeData(t, resp.Body, &scores)
	return scores
}

func saveInvitedScore(t *testing.T, client *http.Client, baseURL, token, invitedScoreID string, value float64) {
	t.Helper()
	resp := putJSON(t, client, baseURL+"/api/v1/invitations/scores/"+invitedScoreID, token, map[string]any{
		"value": value,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save invited score failed: status %d", resp.StatusCode)
	}
}

func recentEvents(t *testing.T, client *http.Client, baseURL, token string) []notifications.Event {
	t.Helper()
	resp := get(t, client, baseURL+"/api/v1/events/recent", token)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("recent events failed: status %d", resp.StatusCode)
	}
	var events []notifications.Event
	decodeData(t, resp.Body, &events)
	return events
}

func postJSON(t *testing.T, client *http.Client, url, token string, payload any) *http.Response {
	t.Helper()
	return doJSON(t, client, http.MethodPost, url, token, payload)
}

func putJSON(t *testing.T, client *http.Client, url, token string, payload any) *http.Response {
	t.Helper()
	return doJSON(t, client, http.MethodPut, url, token, payload)
}

func doJSON(t *testing.T, client *http.Client, method, url, token string, payload any) *http.Response {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	return resp
}

func get(t *testing.T, client *http.Client, url, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	return resp
}

func decodeData(t *testing.T, body io.Reader, out any) {
	t.Helper()
	var env envelope
	if err := json.NewDecoder(body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

func decodeID(t *testing.T, body io.Reader) string {
	t.Helper()
	var payload struct {
		ID string `json:"id"`
	}
	decodeData(t, body, &payload)
	return payload.ID
}
