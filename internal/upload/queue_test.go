package upload_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Ravenshaw3/recollect/internal/adventure"
	"github.com/Ravenshaw3/recollect/internal/remote"
	"github.com/Ravenshaw3/recollect/internal/store"
	"github.com/Ravenshaw3/recollect/internal/stream"
	"github.com/Ravenshaw3/recollect/internal/upload"
)

type remoteRecorder struct {
	mu       sync.Mutex
	paths    []string
	failPath string
	delay    map[string]time.Duration
	nextID   int64
}

func (r *remoteRecorder) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.mu.Lock()
		r.paths = append(r.paths, req.URL.Path)
		fail := r.failPath != "" && strings.HasPrefix(req.URL.Path, r.failPath)
		delay := r.delay[req.URL.Path]
		r.mu.Unlock()

		if delay > 0 {
			time.Sleep(delay)
		}
		if fail {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		if req.URL.Path == "/api/adventures" && req.Method == http.MethodPost {
			r.mu.Lock()
			r.nextID++
			id := r.nextID
			r.mu.Unlock()
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"success":true,"id":` + strconv.FormatInt(id, 10) + `}`))
			return
		}
		w.WriteHeader(http.StatusOK)
	})
}

func (r *remoteRecorder) requested() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

type fixture struct {
	store  *store.Store
	queue  *upload.Queue
	hub    *stream.Hub
	rec    *remoteRecorder
	status *stream.Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "recollect.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	rec := &remoteRecorder{delay: map[string]time.Duration{}}
	srv := httptest.NewServer(rec.handler())
	t.Cleanup(srv.Close)

	hub := stream.NewHub()
	status := hub.Register(stream.TopicUpload)
	q := upload.NewQueue(st, remote.NewClient(srv.URL, 0), hub)
	t.Cleanup(q.Close)

	return &fixture{store: st, queue: q, hub: hub, rec: rec, status: status}
}

// drainUntilComplete collects status messages through the terminal
// "upload complete" line and returns them all.
func drainUntilComplete(t *testing.T, client *stream.Client) []string {
	t.Helper()
	var msgs []string
	deadline := time.After(5 * time.Second)
	for {
		select {
		case msg := <-client.Send:
			msgs = append(msgs, string(msg))
			if strings.HasPrefix(string(msg), "upload complete") {
				return msgs
			}
		case <-deadline:
			t.Fatalf("timeout waiting for completion, got %v", msgs)
		}
	}
}

func seedAdventure(t *testing.T, st *store.Store, name string, waypoints, notes int) adventure.Adventure {
	t.Helper()
	ctx := context.Background()
	adv := adventure.Adventure{Name: name}
	if err := st.SaveAdventure(ctx, &adv); err != nil {
		t.Fatalf("SaveAdventure() error = %v", err)
	}
	base := time.Now().Add(-time.Hour)
	for i := 0; i < waypoints; i++ {
		wp := adventure.Waypoint{AdventureID: adv.ID, Lat: float64(i), Lng: 0, Timestamp: base.Add(time.Duration(i) * time.Minute)}
		if err := st.SaveWaypoint(ctx, &wp); err != nil {
			t.Fatalf("SaveWaypoint() error = %v", err)
		}
	}
	for i := 0; i < notes; i++ {
		n := adventure.Note{AdventureID: adv.ID, Title: "n", Content: "c", Timestamp: base.Add(time.Duration(i) * time.Minute)}
		if err := st.SaveNote(ctx, &n); err != nil {
			t.Fatalf("SaveNote() error = %v", err)
		}
	}
	return adv
}

func TestWholeAdventureUpload(t *testing.T) {
	f := newFixture(t)
	adv := seedAdventure(t, f.store, "Trail", 2, 1)

	if _, err := f.queue.EnqueueAdventure(adv.ID); err != nil {
		t.Fatalf("EnqueueAdventure() error = %v", err)
	}
	msgs := drainUntilComplete(t, f.status)
	last := msgs[len(msgs)-1]
	if last != "upload complete: 3 item(s), 0 failed" {
		t.Fatalf("unexpected terminal status %q", last)
	}

	paths := f.rec.requested()
	if paths[0] != "/api/adventures" {
		t.Fatalf("expected adventure create first, got %v", paths)
	}

	// remote id recorded locally
	got, _, err := f.store.AdventureByID(context.Background(), adv.ID)
	if err != nil {
		t.Fatalf("AdventureByID() error = %v", err)
	}
	if got.RemoteID == 0 {
		t.Fatalf("expected recorded remote id")
	}
}

func TestReuploadDoesNotRecreateRemoteAdventure(t *testing.T) {
	f := newFixture(t)
	adv := seedAdventure(t, f.store, "Twice", 1, 0)

	if _, err := f.queue.EnqueueAdventure(adv.ID); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	drainUntilComplete(t, f.status)
	if _, err := f.queue.EnqueueAdventure(adv.ID); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	drainUntilComplete(t, f.status)

	creates := 0
	for _, p := range f.rec.requested() {
		if p == "/api/adventures" {
			creates++
		}
	}
	if creates != 1 {
		t.Fatalf("expected a single remote create, got %d", creates)
	}
}

func TestJobsRunInEnqueueOrderDespiteSlowFirstJob(t *testing.T) {
	f := newFixture(t)
	a := seedAdventure(t, f.store, "Slow", 1, 0)
	b := seedAdventure(t, f.store, "Fast", 1, 0)

	f.rec.mu.Lock()
	f.rec.delay["/api/waypoints"] = 50 * time.Millisecond
	f.rec.mu.Unlock()

	if _, err := f.queue.EnqueueAdventure(a.ID); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := f.queue.EnqueueAdventure(b.ID); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	var order []string
	for len(order) < 2 {
		for _, m := range drainUntilComplete(t, f.status) {
			if strings.HasPrefix(m, "uploading '") {
				order = append(order, m)
			}
		}
	}
	if !strings.Contains(order[0], "Slow") || !strings.Contains(order[1], "Fast") {
		t.Fatalf("jobs out of order: %v", order)
	}
}

func TestSelectionNotesOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	adv := seedAdventure(t, f.store, "NotesOnly", 2, 3)

	file := filepath.Join(t.TempDir(), "p.jpg")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	m := adventure.MediaItem{AdventureID: adv.ID, FilePath: file, Kind: adventure.MediaPhoto}
	if err := f.store.SaveMediaItem(ctx, &m); err != nil {
		t.Fatalf("SaveMediaItem() error = %v", err)
	}

	sel := upload.Selection{Notes: true}
	if _, err := f.queue.EnqueueSelection(adv.ID, sel); err != nil {
		t.Fatalf("EnqueueSelection() error = %v", err)
	}
	msgs := drainUntilComplete(t, f.status)
	if msgs[len(msgs)-1] != "upload complete: 3 item(s), 0 failed" {
		t.Fatalf("unexpected terminal status %q", msgs[len(msgs)-1])
	}
	for _, p := range f.rec.requested() {
		if strings.HasPrefix(p, "/api/media") || p == "/api/waypoints" {
			t.Fatalf("unselected category uploaded: %s", p)
		}
	}
}

func TestItemFailureDoesNotAbortJob(t *testing.T) {
	f := newFixture(t)
	adv := seedAdventure(t, f.store, "Flaky", 3, 0)

	f.rec.mu.Lock()
	f.rec.failPath = "/api/waypoints"
	f.rec.mu.Unlock()

	if _, err := f.queue.EnqueueAdventure(adv.ID); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	msgs := drainUntilComplete(t, f.status)
	last := msgs[len(msgs)-1]
	if last != "upload complete: 0 item(s), 3 failed" {
		t.Fatalf("unexpected terminal status %q", last)
	}
}

func TestOffloadedMediaIsSkipped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	adv := seedAdventure(t, f.store, "Skipper", 0, 0)

	m := adventure.MediaItem{AdventureID: adv.ID, FilePath: "", Kind: adventure.MediaPhoto}
	if err := f.store.SaveMediaItem(ctx, &m); err != nil {
		t.Fatalf("SaveMediaItem() error = %v", err)
	}

	if _, err := f.queue.EnqueueSelection(adv.ID, upload.Selection{Photos: true}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	msgs := drainUntilComplete(t, f.status)
	if msgs[len(msgs)-1] != "upload complete: 0 item(s), 0 failed" {
		t.Fatalf("unexpected terminal status %q", msgs[len(msgs)-1])
	}
}

func TestOnCompleteRunsOnlyOnCleanJobs(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "recollect.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer st.Close()

	rec := &remoteRecorder{delay: map[string]time.Duration{}, failPath: "/api/waypoints"}
	srv := httptest.NewServer(rec.handler())
	defer srv.Close()

	hub := stream.NewHub()
	status := hub.Register(stream.TopicUpload)
	q := upload.NewQueue(st, remote.NewClient(srv.URL, 0), hub)
	defer q.Close()

	completed := make(chan upload.Result, 1)
	q.OnComplete(func(r upload.Result) { completed <- r })

	adv := seedAdventure(t, st, "Dirty", 1, 0)
	if _, err := q.EnqueueAdventure(adv.ID); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	drainUntilComplete(t, status)

	select {
	case <-completed:
		t.Fatalf("hook must not run for failed jobs")
	case <-time.After(50 * time.Millisecond):
	}
}
