package upload

import (
	"context"
	"io"
	"mime"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle stage of a session.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StatePaused    State = "paused"
	StateCompleted State = "completed"
	StateCanceled  State = "canceled"
	StateFailed    State = "failed"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCanceled || s == StateFailed
}

// File is the readable source of an upload.
type File interface {
	io.ReaderAt
	io.Closer
}

// Request describes one file to upload.
type Request struct {
	Key         string
	ContentType string
	Size        int64
	LocalPath   string
	Open        func() (File, error)

	// UserID owns the upload; it tags the journal record.
	UserID int64
}

// FromPath builds a request uploading the local file at path as key.
func FromPath(path, key string) (Request, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return Request{}, err
	}
	if fi.IsDir() {
		return Request{}, &os.PathError{Op: "upload", Path: path, Err: os.ErrInvalid}
	}

	ct := mime.TypeByExtension(filepath.Ext(path))
	if ct == "" {
		ct = "application/octet-stream"
	}

	return Request{
		Key:         key,
		ContentType: ct,
		Size:        fi.Size(),
		LocalPath:   path,
		Open:        func() (File, error) { return os.Open(path) },
	}, nil
}

// Status is a point-in-time copy of a session.
type Status struct {
	ID        string
	Key       string
	State     State
	Uploaded  int64
	Size      int64
	Percent   int
	Multipart bool
	Err       error
}

// Session tracks one file upload. Its mutable fields are guarded by mu; cond
// wakes a paused upload loop on resume or cancel.
type Session struct {
	id        string
	req       Request
	multipart bool
	started   time.Time

	mu       sync.Mutex
	cond     *sync.Cond
	state    State
	paused   bool
	canceled bool
	uploaded int64
	uploadID string
	cancel   context.CancelFunc
	err      error
}

func newSession(req Request, multipart bool) *Session {
	s := &Session{
		id:        uuid.NewString(),
		req:       req,
		multipart: multipart,
		started:   time.Now(),
		state:     StatePending,
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		ID:        s.id,
		Key:       s.req.Key,
		State:     s.state,
		Uploaded:  s.uploaded,
		Size:      s.req.Size,
		Percent:   Progress(s.uploaded, s.req.Size),
		Multipart: s.multipart,
		Err:       s.err,
	}
}

// begin attaches the request cancel func and marks the session running. It
// returns false when the session was canceled while pending.
func (s *Session) begin(cancel context.CancelFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancel = cancel
	if s.canceled {
		return false
	}
	if s.paused {
		s.state = StatePaused
	} else {
		s.state = StateRunning
	}
	return true
}

func (s *Session) pause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.canceled || s.state.Terminal() {
		return
	}
	s.paused = true
	if s.state == StateRunning {
		s.state = StatePaused
	}
}

func (s *Session) resume() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.paused = false
	if s.state == StatePaused {
		s.state = StateRunning
	}
	s.cond.Broadcast()
}

// markCanceled flags the session, aborts the in-flight request and wakes a
// paused loop so it can exit.
func (s *Session) markCanceled() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.canceled = true
	if s.cancel != nil {
		s.cancel()
	}
	s.cond.Broadcast()
}

func (s *Session) isCanceled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canceled
}

// waitRunnable blocks while the session is paused. It returns false once the
// session is canceled.
func (s *Session) waitRunnable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.paused && !s.canceled {
		s.cond.Wait()
	}
	return !s.canceled
}

// advanceTo records n uploaded bytes. Progress never moves backwards.
func (s *Session) advanceTo(n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > s.uploaded {
		s.uploaded = n
	}
}

func (s *Session) setUploadID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploadID = id
}

func (s *Session) finish(state State, err error) Status {
	s.mu.Lock()
	s.state = state
	s.err = err
	if state == StateCompleted {
		s.uploaded = s.req.Size
	}
	s.mu.Unlock()
	return s.Status()
}
