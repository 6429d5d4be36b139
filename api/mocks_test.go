package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/slack-go/slack"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"standupbot/db"
	"standupbot/standup"
	"standupbot/utils"
	"standupbot/worker"
)

const testSecret = "s3cr3t"

type scheduledMessage struct {
	ID          string `json:"id"`
	Channel     string `json:"channel_id"`
	PostAt      int64  `json:"post_at"`
	DateCreated int64  `json:"date_created"`
	Text        string `json:"text"`
}

// fakeSlack answers the Web API methods the bot calls and records each call.
type fakeSlack struct {
	mu        sync.Mutex
	calls     []string
	forms     map[string][]map[string][]string
	members   [][]string
	scheduled []scheduledMessage
	fail      map[string]string
	nextTS    int
	nextQ     int
}

func newFakeSlack(t *testing.T) (*fakeSlack, *httptest.Server) {
	f := &fakeSlack{forms: map[string][]map[string][]string{}, fail: map[string]string{}}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeSlack) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := strings.TrimPrefix(r.URL.Path, "/")
	_ = r.ParseForm()

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, method)
	f.forms[method] = append(f.forms[method], r.Form)

	w.Header().Set("Content-Type", "application/json")
	if reason, ok := f.fail[method]; ok {
		fmt.Fprintf(w, `{"ok":false,"error":%q}`, reason)
		return
	}

	var resp any
	switch method {
	case "users.info":
		id := r.Form.Get("user")
		tz := "America/Denver"
		if id == "U2" {
			tz = "Europe/Helsinki"
		}
		resp = map[string]any{"ok": true, "user": map[string]any{
			"id": id, "name": strings.ToLower(id), "tz": tz,
			"profile": map[string]any{"display_name": "user-" + id},
		}}
	case "chat.postMessage":
		f.nextTS++
		resp = map[string]any{"ok": true, "channel": r.Form.Get("channel"), "ts": fmt.Sprintf("1603212312.%06d", f.nextTS)}
	case "chat.update":
		resp = map[string]any{"ok": true, "channel": r.Form.Get("channel"), "ts": r.Form.Get("ts"), "text": ""}
	case "chat.scheduleMessage":
		f.nextQ++
		postAt, _ := strconv.ParseInt(r.Form.Get("post_at"), 10, 64)
		msg := scheduledMessage{
			ID:          fmt.Sprintf("Q%010d", f.nextQ),
			Channel:     r.Form.Get("channel"),
			PostAt:      postAt,
			DateCreated: 1603200000 + int64(f.nextQ),
			Text:        r.Form.Get("text"),
		}
		f.scheduled = append(f.scheduled, msg)
		// The real reply carries scheduled_message_id and no ts.
		resp = map[string]any{"ok": true, "channel": msg.Channel, "scheduled_message_id": msg.ID, "post_at": r.Form.Get("post_at")}
	case "chat.scheduledMessages.list":
		oldest, _ := strconv.ParseInt(r.Form.Get("oldest"), 10, 64)
		latest, _ := strconv.ParseInt(r.Form.Get("latest"), 10, 64)
		listed := []scheduledMessage{}
		for _, m := range f.scheduled {
			if m.Channel == r.Form.Get("channel") && m.PostAt >= oldest && m.PostAt <= latest {
				listed = append(listed, m)
			}
		}
		resp = map[string]any{"ok": true, "scheduled_messages": listed, "response_metadata": map[string]any{"next_cursor": ""}}
	case "chat.deleteScheduledMessage":
		resp = map[string]any{"ok": false, "error": "invalid_scheduled_message_id"}
		for i, m := range f.scheduled {
			if m.ID == r.Form.Get("scheduled_message_id") {
				f.scheduled = append(f.scheduled[:i], f.scheduled[i+1:]...)
				resp = map[string]any{"ok": true}
				break
			}
		}
	case "chat.postEphemeral":
		resp = map[string]any{"ok": true, "message_ts": "1603212312.999999"}
	case "views.open":
		resp = map[string]any{"ok": true, "view": map[string]any{"id": "V1"}}
	case "conversations.members":
		page := []string{}
		cursor := ""
		idx := 0
		if c := r.Form.Get("cursor"); c != "" {
			fmt.Sscanf(c, "page%d", &idx)
		}
		if idx < len(f.members) {
			page = f.members[idx]
		}
		if idx+1 < len(f.members) {
			cursor = fmt.Sprintf("page%d", idx+1)
		}
		resp = map[string]any{"ok": true, "members": page, "response_metadata": map[string]any{"next_cursor": cursor}}
	default:
		resp = map[string]any{"ok": false, "error": "unknown_method"}
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func (f *fakeSlack) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == method {
			n++
		}
	}
	return n
}

func (f *fakeSlack) lastForm(t *testing.T, method string) map[string][]string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	forms := f.forms[method]
	require.NotEmpty(t, forms, "no %s call", method)
	return forms[len(forms)-1]
}

// captureInvoker keeps invocations instead of sending them.
type captureInvoker struct {
	mu          sync.Mutex
	invocations []worker.Invocation
	err         error
}

func (c *captureInvoker) Invoke(_ context.Context, inv worker.Invocation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.invocations = append(c.invocations, inv)
	return nil
}

type testServer struct {
	slack    *fakeSlack
	invoker  *captureInvoker
	statuses *db.Statuses
	lots     *db.ParkingLots
	router   http.Handler
	signer   *utils.Signer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := zaptest.NewLogger(t)

	gdb, err := db.Open("sqlite", filepath.Join(t.TempDir(), "standup.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	t.Cleanup(func() { _ = db.Close(gdb) })

	fake, srv := newFakeSlack(t)
	platform := NewSlackPlatform("xoxb-test", log, slack.OptionAPIURL(srv.URL+"/"))
	statuses := db.NewStatuses(db.NewGormBackend(gdb, db.StatusKind), log)
	lots := db.NewParkingLots(db.NewGormBackend(gdb, db.ParkingLotKind), log)
	orch := standup.NewOrchestrator(platform, statuses, lots, log)

	invoker := &captureInvoker{}
	signer := utils.NewSigner(testSecret)
	h := NewHandler(orch, signer, invoker, log)

	r := chi.NewRouter()
	r.Get("/health", h.Health)
	r.Group(func(r chi.Router) {
		r.Use(VerifySignature(testSecret, log))
		r.Post("/slack/events", h.Events)
		r.Post("/slack/commands", h.Commands)
		r.Post("/slack/interactions", h.Interactions)
		r.Post(worker.EventsPath, h.WorkerEvents)
	})

	return &testServer{slack: fake, invoker: invoker, statuses: statuses, lots: lots, router: r, signer: signer}
}

// post sends body to path signed the way Slack signs it.
func (s *testServer) post(t *testing.T, path, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	headers := s.signer.Resign(http.Header{"Content-Type": {contentType}}, body)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header = headers
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}
