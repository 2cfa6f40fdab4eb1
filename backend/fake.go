package backend

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
)

// FakeServer is an in-process stand-in for the assistant backend, used by
// tests and the headless test mode.
type FakeServer struct {
	*httptest.Server

	mu         sync.Mutex
	replies    []string
	transcript string
	profile    string
	draft      *Draft
	failures   map[string]int
	requests   map[string][]map[string]any
	block      map[string]chan struct{}
}

func NewFakeServer() *FakeServer {
	f := &FakeServer{
		failures: make(map[string]int),
		requests: make(map[string][]map[string]any),
		block:    make(map[string]chan struct{}),
		draft:    &Draft{Subject: "Patient Alert", Body: "Dear Dr. Patel,\n\nPlease advise."},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", f.handleChat)
	mux.HandleFunc("POST /api/transcribe", f.handleTranscribe)
	mux.HandleFunc("POST /api/get-profile", f.handleProfile)
	mux.HandleFunc("POST /api/generate-email-draft", f.handleDraft)
	mux.HandleFunc("POST /api/send-email", f.handleSend)
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		if f.intercept(w, r) {
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	f.Server = httptest.NewServer(mux)
	return f
}

// QueueReplies sets the assistant replies returned in order. When the queue
// is empty the fake echoes the message back.
func (f *FakeServer) QueueReplies(replies ...string) {
	f.mu.Lock()
	f.replies = append(f.replies, replies...)
	f.mu.Unlock()
}

func (f *FakeServer) SetTranscript(text string) {
	f.mu.Lock()
	f.transcript = text
	f.mu.Unlock()
}

// SetProfile sets the JSON document returned by get-profile.
func (f *FakeServer) SetProfile(doc string) {
	f.mu.Lock()
	f.profile = doc
	f.mu.Unlock()
}

func (f *FakeServer) SetDraft(d Draft) {
	f.mu.Lock()
	f.draft = &d
	f.mu.Unlock()
}

// Fail makes every request to path answer with code. Zero clears it.
func (f *FakeServer) Fail(path string, code int) {
	f.mu.Lock()
	if code == 0 {
		delete(f.failures, path)
	} else {
		f.failures[path] = code
	}
	f.mu.Unlock()
}

// Block holds requests to path until the returned func is called.
func (f *FakeServer) Block(path string) (release func()) {
	ch := make(chan struct{})
	f.mu.Lock()
	f.block[path] = ch
	f.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.block, path)
			f.mu.Unlock()
			close(ch)
		})
	}
}

func (f *FakeServer) Calls(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests[path])
}

// LastRequest returns the decoded body of the latest request to path.
func (f *FakeServer) LastRequest(path string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	reqs := f.requests[path]
	if len(reqs) == 0 {
		return nil
	}
	return reqs[len(reqs)-1]
}

func (f *FakeServer) intercept(w http.ResponseWriter, r *http.Request) bool {
	body := map[string]any{}
	if data, err := io.ReadAll(r.Body); err == nil && len(data) > 0 {
		json.Unmarshal(data, &body)
	}

	f.mu.Lock()
	f.requests[r.URL.Path] = append(f.requests[r.URL.Path], body)
	code := f.failures[r.URL.Path]
	wait := f.block[r.URL.Path]
	f.mu.Unlock()

	if wait != nil {
		select {
		case <-wait:
		case <-r.Context().Done():
			return true
		}
	}
	if code != 0 {
		writeJSON(w, code, map[string]any{"error": "injected failure"})
		return true
	}
	return false
}

func (f *FakeServer) handleChat(w http.ResponseWriter, r *http.Request) {
	if f.intercept(w, r) {
		return
	}
	msg, _ := f.LastRequest("/api/chat")["message"].(string)
	f.mu.Lock()
	reply := msg
	if len(f.replies) > 0 {
		reply = f.replies[0]
		f.replies = f.replies[1:]
	}
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"response": reply})
}

func (f *FakeServer) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if f.intercept(w, r) {
		return
	}
	f.mu.Lock()
	text := f.transcript
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"transcription": text, "status": "success"})
}

func (f *FakeServer) handleProfile(w http.ResponseWriter, r *http.Request) {
	if f.intercept(w, r) {
		return
	}
	f.mu.Lock()
	doc := f.profile
	f.mu.Unlock()
	if doc == "" {
		id, _ := f.LastRequest("/api/get-profile")["patient_id"].(string)
		nf, _ := json.Marshal(map[string]any{"status": "not_found", "patient_id": id})
		doc = string(nf)
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "profile": doc})
}

func (f *FakeServer) handleDraft(w http.ResponseWriter, r *http.Request) {
	if f.intercept(w, r) {
		return
	}
	f.mu.Lock()
	d := f.draft
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "draft": d})
}

func (f *FakeServer) handleSend(w http.ResponseWriter, r *http.Request) {
	if f.intercept(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "message": "Email sent"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
