package upload

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/Ravenshaw3/recollect/internal/adventure"
	"github.com/Ravenshaw3/recollect/internal/remote"
	"github.com/Ravenshaw3/recollect/internal/store"
	"github.com/Ravenshaw3/recollect/internal/stream"
)

// ErrQueueFull is returned when the job buffer is saturated; enqueuing never
// blocks the caller.
var ErrQueueFull = errors.New("upload queue full")

// Selection picks which categories a job uploads; each toggle is independent.
type Selection struct {
	Waypoints bool `json:"waypoints"`
	Notes     bool `json:"notes"`
	Photos    bool `json:"photos"`
	Videos    bool `json:"videos"`
	Audio     bool `json:"audio"`
}

func AllSelected() Selection {
	return Selection{Waypoints: true, Notes: true, Photos: true, Videos: true, Audio: true}
}

func (s Selection) wantsKind(kind adventure.MediaKind) bool {
	switch kind {
	case adventure.MediaPhoto:
		return s.Photos
	case adventure.MediaVideo:
		return s.Videos
	case adventure.MediaAudio:
		return s.Audio
	default:
		return false
	}
}

// Job is one unit of synchronization work.
type Job struct {
	ID          string    `json:"id"`
	AdventureID int64     `json:"adventure_id"`
	Selection   Selection `json:"selection"`

	// OffloadAfter asks for a media offload once the job finishes with
	// zero failures. The queue itself only carries the flag; the
	// OnComplete hook acts on it.
	OffloadAfter bool `json:"offload_after"`
}

// Result summarizes a finished job.
type Result struct {
	Job      Job
	Uploaded int
	Failed   int
}

// Queue drains upload jobs on a single background worker, strictly in
// enqueue order, and reports progress as human-readable status strings on
// the upload topic. A failed item is reported and skipped; the worker never
// retries and never aborts the rest of the job.
type Queue struct {
	store  *store.Store
	client *remote.Client
	hub    *stream.Hub

	jobs chan Job
	done chan struct{}

	closeOnce sync.Once

	// onComplete, when set, runs on the worker goroutine after a job
	// finishes with zero failures. The server layer uses it to chain an
	// opted-in offload.
	onComplete func(Result)
}

func NewQueue(st *store.Store, client *remote.Client, hub *stream.Hub) *Queue {
	q := &Queue{
		store:  st,
		client: client,
		hub:    hub,
		jobs:   make(chan Job, 64),
		done:   make(chan struct{}),
	}
	go q.work()
	return q
}

// OnComplete registers the post-job hook. Call before the first enqueue.
func (q *Queue) OnComplete(fn func(Result)) {
	q.onComplete = fn
}

// EnqueueAdventure queues a whole-adventure upload.
func (q *Queue) EnqueueAdventure(adventureID int64) (Job, error) {
	return q.enqueue(Job{ID: uuid.NewString(), AdventureID: adventureID, Selection: AllSelected()})
}

// EnqueueSelection queues an upload of the selected categories only.
func (q *Queue) EnqueueSelection(adventureID int64, sel Selection) (Job, error) {
	return q.enqueue(Job{ID: uuid.NewString(), AdventureID: adventureID, Selection: sel})
}

// EnqueueJob queues a caller-built job, assigning an id when it has none.
func (q *Queue) EnqueueJob(job Job) (Job, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	return q.enqueue(job)
}

func (q *Queue) enqueue(job Job) (Job, error) {
	select {
	case q.jobs <- job:
		return job, nil
	default:
		return Job{}, ErrQueueFull
	}
}

// Close stops accepting jobs, drains what is already queued and waits for
// the worker to exit.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.jobs)
	})
	<-q.done
}

func (q *Queue) work() {
	defer close(q.done)
	for job := range q.jobs {
		q.run(job)
	}
}

func (q *Queue) run(job Job) {
	ctx := context.Background()

	adv, ok, err := q.store.AdventureByID(ctx, job.AdventureID)
	if err != nil || !ok {
		q.status("upload failed: adventure %d not available locally", job.AdventureID)
		return
	}
	q.status("uploading '%s'", adv.Name)

	remoteID, err := q.ensureRemoteAdventure(ctx, &adv)
	if err != nil {
		q.status("upload failed: '%s' could not be created remotely", adv.Name)
		return
	}

	uploaded, failed := 0, 0

	if job.Selection.Waypoints {
		for i, wp := range adv.Waypoints {
			if err := q.client.AddWaypoint(ctx, remoteID, wp); err != nil {
				failed++
				q.status("waypoint %d/%d failed", i+1, len(adv.Waypoints))
				continue
			}
			uploaded++
		}
		q.status("waypoints done (%d)", len(adv.Waypoints))
	}

	if job.Selection.Notes {
		notes, err := q.store.NotesByAdventure(ctx, adv.ID)
		if err != nil {
			q.status("notes unavailable locally")
		} else {
			// stored newest-first; upload in capture order
			for i := len(notes) - 1; i >= 0; i-- {
				if err := q.client.AddNote(ctx, remoteID, notes[i]); err != nil {
					failed++
					q.status("note '%s' failed", notes[i].Title)
					continue
				}
				uploaded++
			}
			q.status("notes done (%d)", len(notes))
		}
	}

	if job.Selection.Photos || job.Selection.Videos || job.Selection.Audio {
		items, err := q.store.MediaByAdventure(ctx, adv.ID)
		if err != nil {
			q.status("media unavailable locally")
		} else {
			sent := 0
			for i := len(items) - 1; i >= 0; i-- {
				m := items[i]
				if m.FilePath == "" {
					// already offloaded
					continue
				}
				if !job.Selection.wantsKind(m.Kind) {
					continue
				}
				if err := q.client.UploadMedia(ctx, remoteID, m); err != nil {
					failed++
					q.status("%s '%s' failed", m.Kind, m.Caption)
					continue
				}
				uploaded++
				sent++
			}
			q.status("media done (%d)", sent)
		}
	}

	q.status("upload complete: %d item(s), %d failed", uploaded, failed)

	if failed == 0 && q.onComplete != nil {
		q.onComplete(Result{Job: job, Uploaded: uploaded, Failed: failed})
	}
}

// ensureRemoteAdventure creates the adventure remotely on first upload and
// records the assigned id locally so re-running a job does not duplicate the
// remote row.
func (q *Queue) ensureRemoteAdventure(ctx context.Context, adv *adventure.Adventure) (int64, error) {
	if adv.RemoteID != 0 {
		return adv.RemoteID, nil
	}
	id, err := q.client.CreateAdventure(ctx, *adv)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		// remote gave no id back; fall back to the local one
		id = adv.ID
	}
	adv.RemoteID = id
	if err := q.store.SaveAdventure(ctx, adv); err != nil {
		log.Printf("upload: persisting remote id: %v", err)
	}
	return id, nil
}

func (q *Queue) status(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if q.hub != nil {
		q.hub.Broadcast(stream.TopicUpload, []byte(msg))
	}
}
