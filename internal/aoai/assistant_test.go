package aoai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magicman/marv/internal/imaging"
)

// fakeAssistants serves the thread/run endpoints from canned run statuses.
type fakeAssistants struct {
	mu       sync.Mutex
	statuses []string
	gets     int
	message  threadMessage
	runBody  map[string]string
	uploads  int
	calls    []string
	messages string
	deleted  []string
	keepFile bool
}

func (f *fakeAssistants) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, r.Method+" "+r.URL.Path)

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/openai/files":
		f.uploads++
		_, _ = w.Write([]byte(`{"id":"file-` + string(rune('0'+f.uploads)) + `"}`))
	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/openai/files/"):
		if f.keepFile {
			http.Error(w, "locked", http.StatusConflict)
			return
		}
		f.deleted = append(f.deleted, strings.TrimPrefix(r.URL.Path, "/openai/files/"))
		_, _ = w.Write([]byte(`{"deleted":true}`))
	case r.Method == http.MethodPost && r.URL.Path == "/openai/threads":
		_, _ = w.Write([]byte(`{"id":"thread_1"}`))
	case r.Method == http.MethodPost && r.URL.Path == "/openai/threads/thread_1/messages":
		_ = json.NewDecoder(r.Body).Decode(&f.message)
		_, _ = w.Write([]byte(`{"id":"msg_user"}`))
	case r.Method == http.MethodPost && r.URL.Path == "/openai/threads/thread_1/runs":
		_ = json.NewDecoder(r.Body).Decode(&f.runBody)
		_, _ = w.Write([]byte(`{"id":"run_1","thread_id":"thread_1","status":"queued"}`))
	case r.Method == http.MethodGet && r.URL.Path == "/openai/threads/thread_1/runs/run_1":
		s := f.statuses[len(f.statuses)-1]
		if f.gets < len(f.statuses) {
			s = f.statuses[f.gets]
		}
		f.gets++
		_, _ = w.Write([]byte(`{"id":"run_1","status":"` + s + `"}`))
	case r.Method == http.MethodGet && r.URL.Path == "/openai/threads/thread_1/messages":
		if r.URL.Query().Get("order") != "desc" {
			http.Error(w, "order", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(f.messages))
	default:
		http.NotFound(w, r)
	}
}

const assistantReply = `{"data":[
 {"id":"msg_2","role":"assistant","content":[
   {"type":"text","text":{"value":"DECISION: NOT_REPAIRABLE"}},
   {"type":"text","text":{"value":"CONFIDENCE: 0.9"}}]},
 {"id":"msg_1","role":"user","content":[{"type":"text","text":{"value":"assess"}}]}]}`

func newAssistant(t *testing.T, f *fakeAssistants, timeout time.Duration) *AssistantInvoker {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	clk := &fakeClock{t: time.Unix(0, 0)}
	return &AssistantInvoker{
		Client:      NewClient(Options{Endpoint: srv.URL, APIKey: "k", APIVersion: "2024-05-01-preview"}),
		AssistantID: "asst_9",
		Poller:      clk.poller(time.Second, timeout),
	}
}

func TestAssistantInvoke(t *testing.T) {
	f := &fakeAssistants{statuses: []string{"queued", "in_progress", "in_progress", "completed"}, messages: assistantReply}
	a := newAssistant(t, f, time.Minute)

	res, err := a.Invoke(context.Background(), Request{
		Prompt: "assess",
		Images: []imaging.Reference{
			{URL: "data:image/png;base64,AAAA", MimeType: "image/png", Filename: "a.png", Bytes: []byte{1}},
			{URL: "https://blob/b.jpg", Detail: "high"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "DECISION: NOT_REPAIRABLE\nCONFIDENCE: 0.9", res.Text)
	assert.Equal(t, ModeThreadRun, res.Invocation.Mode)
	assert.Equal(t, "thread_1", res.Invocation.ThreadID)
	assert.Equal(t, "run_1", res.Invocation.RunID)
	assert.Equal(t, Completed, res.Invocation.State)
	assert.Equal(t, 4, res.Invocation.Polls)
	assert.Equal(t, 4, f.gets)

	assert.Equal(t, "asst_9", f.runBody["assistant_id"])
	assert.Equal(t, 1, f.uploads)
	require.Len(t, f.message.Content, 3)
	assert.Equal(t, "user", f.message.Role)
	assert.Equal(t, "text", f.message.Content[0].Type)
	assert.Equal(t, "image_file", f.message.Content[1].Type)
	assert.Equal(t, "file-1", f.message.Content[1].ImageFile.FileID)
	assert.Equal(t, "auto", f.message.Content[1].ImageFile.Detail)
	assert.Equal(t, "image_url", f.message.Content[2].Type)
	assert.Equal(t, "high", f.message.Content[2].ImageURL.Detail)

	// uploads happen before the thread message is posted
	assert.Equal(t, "POST /openai/threads", f.calls[0])
	assert.Equal(t, "POST /openai/files", f.calls[1])
	assert.True(t, strings.HasSuffix(f.calls[2], "/messages"))

	// uploaded photos are removed once the answer is read
	assert.Equal(t, []string{"file-1"}, f.deleted)
	assert.Equal(t, "DELETE /openai/files/file-1", f.calls[len(f.calls)-1])
}

func TestAssistantInvokeDeletesFilesOnFailure(t *testing.T) {
	f := &fakeAssistants{statuses: []string{"failed"}, messages: assistantReply}
	a := newAssistant(t, f, time.Minute)

	_, err := a.Invoke(context.Background(), Request{
		Prompt: "assess",
		Images: []imaging.Reference{
			{URL: "data:image/png;base64,AAAA", MimeType: "image/png", Filename: "a.png", Bytes: []byte{1}},
			{URL: "data:image/png;base64,BBBB", MimeType: "image/png", Filename: "b.png", Bytes: []byte{2}},
		},
	})
	require.Error(t, err)
	assert.Equal(t, []string{"file-1", "file-2"}, f.deleted)
}

func TestAssistantInvokeIgnoresCleanupErrors(t *testing.T) {
	f := &fakeAssistants{statuses: []string{"completed"}, messages: assistantReply, keepFile: true}
	a := newAssistant(t, f, time.Minute)

	res, err := a.Invoke(context.Background(), Request{
		Prompt: "assess",
		Images: []imaging.Reference{{URL: "data:image/png;base64,AAAA", MimeType: "image/png", Filename: "a.png", Bytes: []byte{1}}},
	})
	require.NoError(t, err)
	assert.Equal(t, Completed, res.Invocation.State)
	assert.Empty(t, f.deleted)
	assert.Equal(t, "DELETE /openai/files/file-1", f.calls[len(f.calls)-1])
}

func TestAssistantInvokeWithoutUploadsSkipsCleanup(t *testing.T) {
	f := &fakeAssistants{statuses: []string{"completed"}, messages: assistantReply}
	a := newAssistant(t, f, time.Minute)

	_, err := a.Invoke(context.Background(), Request{Prompt: "assess", Images: []imaging.Reference{{URL: "https://blob/b.jpg"}}})
	require.NoError(t, err)
	for _, c := range f.calls {
		assert.False(t, strings.HasPrefix(c, "DELETE"), c)
	}
}

func TestAssistantInvokeTimeout(t *testing.T) {
	f := &fakeAssistants{statuses: []string{"in_progress"}, messages: assistantReply}
	a := newAssistant(t, f, 3*time.Second)

	res, err := a.Invoke(context.Background(), Request{Prompt: "assess"})
	var te *TimeoutError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, TimedOut, res.Invocation.State)
	assert.Equal(t, 3, res.Invocation.Polls)
	for _, c := range f.calls {
		assert.NotEqual(t, "GET /openai/threads/thread_1/messages", c)
	}
}

func TestAssistantInvokeFailedRun(t *testing.T) {
	f := &fakeAssistants{statuses: []string{"failed"}, messages: assistantReply}
	a := newAssistant(t, f, time.Minute)

	res, err := a.Invoke(context.Background(), Request{Prompt: "assess"})
	var re *RunError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "failed", re.Status)
	assert.Equal(t, Failed, res.Invocation.State)
	assert.Empty(t, res.Text)
}

func TestAssistantInvokeNoAssistantMessage(t *testing.T) {
	f := &fakeAssistants{statuses: []string{"completed"}, messages: `{"data":[{"id":"m","role":"user","content":[]}]}`}
	a := newAssistant(t, f, time.Minute)

	res, err := a.Invoke(context.Background(), Request{Prompt: "assess"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no assistant message")
	assert.Equal(t, Completed, res.Invocation.State)
}
