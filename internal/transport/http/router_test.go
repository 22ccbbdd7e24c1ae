package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/bank"
	"live-quiz-service/internal/infra/memory"
	"live-quiz-service/internal/session"
)

type harness struct {
	server   *httptest.Server
	registry *app.Registry
}

func newHarness(t *testing.T, cfg session.Config) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	questions := app.NewQuestionSource(memory.NewQuestionRepository(bank.NewLoader(""), time.Minute), 15)
	registry := app.NewRegistry(memory.NewParticipantStore())
	leaderboard := app.NewLeaderboardService(registry, nil, logger)
	recorder := app.NewCompletionRecorder(registry, logger, app.WithListener(leaderboard))
	engine := session.NewEngine(cfg, questions, recorder, logger)

	handler := NewRouter(Deps{
		Questions:   questions,
		Registry:    registry,
		Recorder:    recorder,
		Leaderboard: leaderboard,
		Engine:      engine,
		Sessions:    memory.NewSessionTracker(),
		Logger:      logger,
	})
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return &harness{server: server, registry: registry}
}

func (h *harness) do(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, h.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, data
}

func (h *harness) register(t *testing.T, name, handle string) string {
	t.Helper()
	status, body := h.do(t, http.MethodPost, "/register", map[string]string{"name": name, "contactHandle": handle})
	if status != http.StatusCreated {
		t.Fatalf("register %s: status %d body %s", handle, status, body)
	}
	var resp registerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode register: %v", err)
	}
	if resp.ParticipantID == "" {
		t.Fatalf("expected participant id")
	}
	return resp.ParticipantID
}

func (h *harness) wsURL(path string) string {
	return "ws" + strings.TrimPrefix(h.server.URL, "http") + path
}

func TestRegistrationAndIdempotentCompletion(t *testing.T) {
	h := newHarness(t, session.Config{})
	id := h.register(t, "Alice", "alice1")

	status, body := h.do(t, http.MethodPost, "/register", map[string]string{"name": "Alice again", "contactHandle": "alice1"})
	if status != http.StatusBadRequest {
		t.Fatalf("duplicate register: expected 400, got %d %s", status, body)
	}

	status, body = h.do(t, http.MethodGet, "/user/"+id, nil)
	if status != http.StatusOK || strings.TrimSpace(string(body)) != `{"completed":false}` {
		t.Fatalf("status before completion: %d %s", status, body)
	}

	status, body = h.do(t, http.MethodPost, "/quiz/"+id+"/complete", map[string]any{"score": 12, "totalTimeSeconds": 80})
	var first completeResponse
	if err := json.Unmarshal(body, &first); err != nil || status != http.StatusOK {
		t.Fatalf("first completion: %d %s", status, body)
	}
	if !first.Success || first.AlreadyRecorded {
		t.Fatalf("first completion should be newly recorded: %+v", first)
	}

	status, body = h.do(t, http.MethodPost, "/quiz/"+id+"/complete", map[string]any{"score": 5, "totalTimeSeconds": 10})
	var second completeResponse
	if err := json.Unmarshal(body, &second); err != nil || status != http.StatusOK {
		t.Fatalf("second completion: %d %s", status, body)
	}
	if !second.Success || !second.AlreadyRecorded {
		t.Fatalf("second completion should be flagged as already recorded: %+v", second)
	}

	status, body = h.do(t, http.MethodGet, "/user/"+id, nil)
	if status != http.StatusOK || strings.TrimSpace(string(body)) != `{"completed":true}` {
		t.Fatalf("status after completion: %d %s", status, body)
	}

	var lb domain.Leaderboard
	_, body = h.do(t, http.MethodGet, "/results", nil)
	if err := json.Unmarshal(body, &lb); err != nil {
		t.Fatalf("decode results: %v", err)
	}
	if len(lb.Results) != 1 || lb.Results[0].Score != 12 || lb.Results[0].TotalTimeSeconds != 80 {
		t.Fatalf("stored result should keep the first completion: %+v", lb.Results)
	}
}

func TestQuestionsNeverExposeAnswerKey(t *testing.T) {
	h := newHarness(t, session.Config{})
	status, body := h.do(t, http.MethodGet, "/questions", nil)
	if status != http.StatusOK {
		t.Fatalf("questions: %d %s", status, body)
	}
	if bytes.Contains(body, []byte("correctOption")) {
		t.Fatalf("answer key leaked: %s", body)
	}

	var resp struct {
		Questions []map[string]any `json:"questions"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Questions) != 15 {
		t.Fatalf("expected 15 questions, got %d", len(resp.Questions))
	}
	seen := map[any]bool{}
	for _, q := range resp.Questions {
		if len(q) != 3 {
			t.Fatalf("unexpected fields %v", q)
		}
		if seen[q["id"]] {
			t.Fatalf("duplicate question %v", q["id"])
		}
		seen[q["id"]] = true
	}
}

func TestResultsOrderingAndStats(t *testing.T) {
	h := newHarness(t, session.Config{})
	fast := h.register(t, "Fast", "fast")
	slow := h.register(t, "Slow", "slow")
	low := h.register(t, "Low", "low")
	h.register(t, "Idle", "idle")

	h.do(t, http.MethodPost, "/quiz/"+slow+"/complete", map[string]any{"score": 10, "totalTimeSeconds": 20})
	h.do(t, http.MethodPost, "/quiz/"+low+"/complete", map[string]any{"score": 8, "totalTimeSeconds": 5})
	h.do(t, http.MethodPost, "/quiz/"+fast+"/complete", map[string]any{"score": 10, "totalTimeSeconds": 15})

	var lb domain.Leaderboard
	_, body := h.do(t, http.MethodGet, "/results", nil)
	if err := json.Unmarshal(body, &lb); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []string{"Fast", "Slow", "Low", "Idle"}
	if len(lb.Results) != len(want) {
		t.Fatalf("expected %d results, got %+v", len(want), lb.Results)
	}
	for i, name := range want {
		if lb.Results[i].Name != name || lb.Results[i].Rank != i+1 {
			t.Fatalf("position %d: expected %s, got %+v", i, name, lb.Results[i])
		}
	}
	if lb.Results[3].Completed {
		t.Fatalf("idle participant should be in progress")
	}
	if lb.Stats.TotalParticipants != 4 || lb.Stats.CompletedParticipants != 3 {
		t.Fatalf("unexpected counts %+v", lb.Stats)
	}
	if lb.Stats.AverageScore != 7 || lb.Stats.AverageTime != 10 {
		t.Fatalf("unexpected averages %+v", lb.Stats)
	}
}

func TestBoundaryErrors(t *testing.T) {
	h := newHarness(t, session.Config{})
	id := h.register(t, "Bob", "bob")
	unknown := "6f1c2a9e-3b7d-4c5e-9a8b-1d2e3f4a5b6c"

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"missing handle", http.MethodPost, "/register", map[string]string{"name": "x"}, http.StatusBadRequest},
		{"unknown status", http.MethodGet, "/user/" + unknown, nil, http.StatusNotFound},
		{"malformed id", http.MethodPost, "/quiz/not-an-id/complete", map[string]any{"score": 1}, http.StatusBadRequest},
		{"unknown complete", http.MethodPost, "/quiz/" + unknown + "/complete", map[string]any{"score": 1}, http.StatusNotFound},
		{"negative score", http.MethodPost, "/quiz/" + id + "/complete", map[string]any{"score": -1}, http.StatusBadRequest},
		{"wrong method", http.MethodGet, "/register", nil, http.StatusMethodNotAllowed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := h.do(t, tc.method, tc.path, tc.body)
			if status != tc.want {
				t.Fatalf("expected %d, got %d %s", tc.want, status, body)
			}
		})
	}

	status, _ := h.do(t, http.MethodGet, "/user/"+id, nil)
	if status != http.StatusOK {
		t.Fatalf("failed completion must not touch the record, status %d", status)
	}
}

func TestMalformedBodyIsRejected(t *testing.T) {
	h := newHarness(t, session.Config{})
	resp, err := http.Post(h.server.URL+"/register", "application/json", strings.NewReader("{"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

type wsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func readUntil(t *testing.T, conn *websocket.Conn, kind string) json.RawMessage {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %q: %v", kind, err)
		}
		if msg.Type == kind {
			return msg.Payload
		}
	}
}

func TestHostedSessionCompletesNaturally(t *testing.T) {
	h := newHarness(t, session.Config{QuestionCount: 3, QuestionSeconds: 5, Tick: 200 * time.Millisecond})
	id := h.register(t, "Carol", "carol")

	conn, _, err := websocket.DefaultDialer.Dial(h.wsURL("/ws/quiz/"+id), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	for i := 0; i < 3; i++ {
		var ev session.Event
		if err := json.Unmarshal(readUntil(t, conn, "question"), &ev); err != nil {
			t.Fatalf("decode question: %v", err)
		}
		if ev.Question == nil || ev.Index != i || ev.Total != 3 {
			t.Fatalf("unexpected question event %+v", ev)
		}
		answer := map[string]any{"type": "answer", "payload": map[string]string{"option": ev.Question.Options[0]}}
		if err := conn.WriteJSON(answer); err != nil {
			t.Fatalf("write answer: %v", err)
		}
	}

	var done session.Event
	if err := json.Unmarshal(readUntil(t, conn, "completed"), &done); err != nil {
		t.Fatalf("decode completed: %v", err)
	}
	if done.Outcome == nil || done.Outcome.Trigger != session.TriggerNatural || done.Outcome.AlreadyRecorded {
		t.Fatalf("unexpected outcome %+v", done.Outcome)
	}
	if len(done.Outcome.Completion.Answers) != 3 {
		t.Fatalf("expected 3 answer records, got %+v", done.Outcome.Completion)
	}

	status, body := h.do(t, http.MethodGet, "/user/"+id, nil)
	if status != http.StatusOK || strings.TrimSpace(string(body)) != `{"completed":true}` {
		t.Fatalf("expected completed participant: %d %s", status, body)
	}
}

func TestHostedSessionBlockedAfterCompletion(t *testing.T) {
	h := newHarness(t, session.Config{QuestionCount: 3})
	id := h.register(t, "Dan", "dan")
	h.do(t, http.MethodPost, "/quiz/"+id+"/complete", map[string]any{"score": 3, "totalTimeSeconds": 9})

	conn, _, err := websocket.DefaultDialer.Dial(h.wsURL("/ws/quiz/"+id), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	readUntil(t, conn, "blocked")
}

func TestHostedSessionRejectsConcurrentSession(t *testing.T) {
	h := newHarness(t, session.Config{QuestionCount: 3, QuestionSeconds: 5, Tick: time.Second})
	id := h.register(t, "Eve", "eve")

	first, _, err := websocket.DefaultDialer.Dial(h.wsURL("/ws/quiz/"+id), nil)
	if err != nil {
		t.Fatalf("dial first: %v", err)
	}
	defer first.Close()
	readUntil(t, first, "question")

	_, resp, err := websocket.DefaultDialer.Dial(h.wsURL("/ws/quiz/"+id), nil)
	if err == nil {
		t.Fatalf("expected second session to be refused")
	}
	if resp == nil || resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %+v", resp)
	}
}

func TestHostedSessionDisconnectForcesCompletion(t *testing.T) {
	h := newHarness(t, session.Config{QuestionCount: 3, QuestionSeconds: 5, Tick: time.Second})
	id := h.register(t, "Frank", "frank")

	conn, _, err := websocket.DefaultDialer.Dial(h.wsURL("/ws/quiz/"+id), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	readUntil(t, conn, "question")
	conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		participants, err := h.registry.All(context.Background())
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(participants) == 1 && participants[0].Completed {
			if participants[0].Score != 0 || participants[0].TotalTimeSeconds != 15 {
				t.Fatalf("abandoned session without answers should record defaults, got %+v", participants[0])
			}
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("disconnect did not force a completion")
}

func TestResultsFeedPushesNewCompletions(t *testing.T) {
	h := newHarness(t, session.Config{})
	id := h.register(t, "Grace", "grace")

	conn, _, err := websocket.DefaultDialer.Dial(h.wsURL("/ws/results"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var lb domain.Leaderboard
	if err := json.Unmarshal(readUntil(t, conn, "leaderboard"), &lb); err != nil {
		t.Fatalf("decode initial: %v", err)
	}
	if lb.Stats.CompletedParticipants != 0 {
		t.Fatalf("unexpected initial stats %+v", lb.Stats)
	}

	h.do(t, http.MethodPost, "/quiz/"+id+"/complete", map[string]any{"score": 7, "totalTimeSeconds": 30})
	if err := json.Unmarshal(readUntil(t, conn, "leaderboard"), &lb); err != nil {
		t.Fatalf("decode update: %v", err)
	}
	if lb.Stats.CompletedParticipants != 1 || lb.Results[0].Score != 7 {
		t.Fatalf("expected pushed completion, got %+v", lb)
	}
}

func TestHealthz(t *testing.T) {
	h := newHarness(t, session.Config{})
	status, body := h.do(t, http.MethodGet, "/healthz", nil)
	if status != http.StatusOK || string(body) != "ok" {
		t.Fatalf("healthz: %d %s", status, body)
	}
}
