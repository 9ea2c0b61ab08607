// Package upload runs file uploads against the storage backend.
//
// Files up to the chunk size go out as one request. Larger files use the
// multipart protocol: initiate, strictly sequential parts, then complete, or
// abort on cancel and failure. Independent files upload concurrently up to a
// configured limit. Sessions can be paused between parts, resumed from the
// same offset and canceled at any time.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/client/models"
	"github.com/dmitrijs2005/gophdrive/internal/logging"
	"github.com/samber/lo"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"
)

var (
	ErrUnknownSession = errors.New("unknown upload session")
	ErrNotPausable    = errors.New("single request uploads cannot be paused")
	ErrCanceled       = errors.New("upload canceled")
)

const abortTimeout = 30 * time.Second

// Transport is the backend side of an upload.
type Transport interface {
	// Upload sends size bytes from r as key in one request. progress receives
	// the number of bytes sent so far.
	Upload(ctx context.Context, key, contentType string, r io.Reader, size int64, progress func(int64)) error

	InitiateMultipart(ctx context.Context, key, contentType string) (uploadID string, err error)
	UploadPart(ctx context.Context, key, uploadID string, part int32, r io.Reader, size int64) (etag string, err error)
	CompleteMultipart(ctx context.Context, key, uploadID string) error
	AbortMultipart(ctx context.Context, key, uploadID string) error
}

// Journal persists multipart sessions while they are open so that sessions
// left behind by a crash can be aborted later. Records are kept per user.
type Journal interface {
	Save(ctx context.Context, rec models.UploadRecord) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, userID int64) ([]models.UploadRecord, error)
}

// Notifier receives the final status of every session.
type Notifier func(Status)

type Config struct {
	ChunkSize    int64
	MaxParallel  int
	PartAttempts uint64
	RetryBase    time.Duration
}

func (c Config) withDefaults() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.MaxParallel <= 0 {
		c.MaxParallel = 4
	}
	if c.PartAttempts == 0 {
		c.PartAttempts = 3
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 500 * time.Millisecond
	}
	return c
}

// Orchestrator owns the set of active sessions.
type Orchestrator struct {
	transport Transport
	journal   Journal
	log       logging.Logger
	cfg       Config

	mu     sync.Mutex
	active map[string]*Session
	// running holds every session whose upload loop has not returned yet,
	// including canceled ones still releasing their multipart upload.
	running map[string]struct{}
	notify  Notifier

	wg sync.WaitGroup
}

// New returns an orchestrator. journal may be nil.
func New(t Transport, j Journal, log logging.Logger, cfg Config) *Orchestrator {
	return &Orchestrator{
		transport: t,
		journal:   j,
		log:       log,
		cfg:       cfg.withDefaults(),
		active:    make(map[string]*Session),
		running:   make(map[string]struct{}),
	}
}

// SetNotifier installs the callback invoked when a session ends.
func (o *Orchestrator) SetNotifier(n Notifier) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.notify = n
}

// Start registers the requests and uploads them in the background. The
// returned statuses carry the session ids usable with Pause, Resume and
// Cancel.
func (o *Orchestrator) Start(ctx context.Context, reqs []Request) []Status {
	sessions := o.register(reqs)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		_, _ = o.runBatch(context.WithoutCancel(ctx), sessions)
	}()

	return lo.Map(sessions, func(s *Session, _ int) Status { return s.Status() })
}

// UploadAll uploads the requests and waits for all of them. A failing file
// does not stop the others; the returned error joins every failure.
func (o *Orchestrator) UploadAll(ctx context.Context, reqs []Request) ([]Status, error) {
	return o.runBatch(ctx, o.register(reqs))
}

// Wait blocks until every batch launched by Start has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Sessions returns the active sessions, oldest first.
func (o *Orchestrator) Sessions() []Status {
	o.mu.Lock()
	sessions := lo.Values(o.active)
	o.mu.Unlock()

	sort.Slice(sessions, func(i, j int) bool { return sessions[i].started.Before(sessions[j].started) })
	return lo.Map(sessions, func(s *Session, _ int) Status { return s.Status() })
}

// Pause stops the session before its next part. The part in flight, if any,
// completes normally.
func (o *Orchestrator) Pause(id string) error {
	s, err := o.lookup(id)
	if err != nil {
		return err
	}
	if !s.multipart {
		return ErrNotPausable
	}
	s.pause()
	return nil
}

// Resume continues a paused session from the offset it stopped at.
func (o *Orchestrator) Resume(id string) error {
	s, err := o.lookup(id)
	if err != nil {
		return err
	}
	s.resume()
	return nil
}

// Cancel removes the session from the active set and interrupts its request.
// The upload loop then releases the server-side multipart upload.
func (o *Orchestrator) Cancel(id string) error {
	o.mu.Lock()
	s, ok := o.active[id]
	delete(o.active, id)
	o.mu.Unlock()

	if !ok {
		return ErrUnknownSession
	}
	s.markCanceled()
	return nil
}

// CancelAll cancels every active session and returns how many there were.
func (o *Orchestrator) CancelAll() int {
	o.mu.Lock()
	sessions := lo.Values(o.active)
	clear(o.active)
	o.mu.Unlock()

	for _, s := range sessions {
		s.markCanceled()
	}
	return len(sessions)
}

// Recover aborts the journaled multipart uploads of userID that no session of
// this process owns, and returns how many were released. A record whose abort
// fails is kept for the next attempt.
func (o *Orchestrator) Recover(ctx context.Context, userID int64) (int, error) {
	if o.journal == nil {
		return 0, nil
	}

	recs, err := o.journal.List(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("list upload journal: %w", err)
	}

	o.mu.Lock()
	stale := lo.Filter(recs, func(rec models.UploadRecord, _ int) bool {
		_, live := o.running[rec.ID]
		return !live
	})
	o.mu.Unlock()

	n := 0
	for _, rec := range stale {
		if err := o.transport.AbortMultipart(ctx, rec.ObjectKey, rec.UploadID); err != nil {
			o.log.Warn(ctx, "abort of stale upload failed", "key", rec.ObjectKey, "upload_id", rec.UploadID, "error", err)
			continue
		}
		n++
		if err := o.journal.Delete(ctx, rec.ID); err != nil {
			return n, fmt.Errorf("delete journal record: %w", err)
		}
	}
	return n, nil
}

func (o *Orchestrator) lookup(id string) (*Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	s, ok := o.active[id]
	if !ok {
		return nil, ErrUnknownSession
	}
	return s, nil
}

func (o *Orchestrator) register(reqs []Request) []*Session {
	o.mu.Lock()
	defer o.mu.Unlock()

	sessions := make([]*Session, 0, len(reqs))
	for _, r := range reqs {
		s := newSession(r, r.Size > o.cfg.ChunkSize)
		o.active[s.id] = s
		o.running[s.id] = struct{}{}
		sessions = append(sessions, s)
	}
	return sessions
}

func (o *Orchestrator) runBatch(ctx context.Context, sessions []*Session) ([]Status, error) {
	results := make([]Status, len(sessions))

	var g errgroup.Group
	g.SetLimit(o.cfg.MaxParallel)
	for i, s := range sessions {
		g.Go(func() error {
			results[i] = o.run(ctx, s)
			return nil
		})
	}
	_ = g.Wait()

	errs := lo.FilterMap(results, func(st Status, _ int) (error, bool) {
		return st.Err, st.Err != nil
	})
	return results, errors.Join(errs...)
}

func (o *Orchestrator) run(ctx context.Context, s *Session) Status {
	log := o.log.With("session", s.id, "key", s.req.Key)

	err := o.upload(ctx, s, log)

	o.mu.Lock()
	delete(o.active, s.id)
	delete(o.running, s.id)
	notify := o.notify
	o.mu.Unlock()

	var st Status
	switch {
	case s.isCanceled():
		st = s.finish(StateCanceled, nil)
		log.Info(ctx, "upload canceled")
	case err != nil:
		st = s.finish(StateFailed, fmt.Errorf("upload %s: %w", s.req.Key, err))
		log.Error(ctx, "upload failed", "error", err)
	default:
		st = s.finish(StateCompleted, nil)
		log.Info(ctx, "upload completed", "size", s.req.Size)
	}

	if notify != nil {
		notify(st)
	}
	return st
}

func (o *Orchestrator) upload(ctx context.Context, s *Session, log logging.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if !s.begin(cancel) {
		return ErrCanceled
	}

	f, err := s.req.Open()
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	if !s.multipart {
		r := io.NewSectionReader(f, 0, s.req.Size)
		return o.transport.Upload(ctx, s.req.Key, s.req.ContentType, r, s.req.Size, s.advanceTo)
	}
	return o.multipart(ctx, s, f, log)
}

func (o *Orchestrator) multipart(ctx context.Context, s *Session, f File, log logging.Logger) error {
	uploadID, err := o.transport.InitiateMultipart(ctx, s.req.Key, s.req.ContentType)
	if err != nil {
		return fmt.Errorf("initiate multipart: %w", err)
	}
	s.setUploadID(uploadID)
	o.record(ctx, s, uploadID, 1, 0, log)

	for _, c := range PlanChunks(s.req.Size, o.cfg.ChunkSize) {
		if !s.waitRunnable() {
			o.abort(ctx, s, uploadID, log)
			return ErrCanceled
		}

		err := o.sendPart(ctx, s, f, uploadID, c, log)

		// A response arriving after cancel is ignored.
		if s.isCanceled() {
			o.abort(ctx, s, uploadID, log)
			return ErrCanceled
		}
		if err != nil {
			o.abort(ctx, s, uploadID, log)
			return fmt.Errorf("part %d: %w", c.PartNumber, err)
		}

		s.advanceTo(c.End())
		o.record(ctx, s, uploadID, c.PartNumber+1, c.End(), log)
		log.Debug(ctx, "part uploaded", "part", c.PartNumber, "offset", c.End())
	}

	if err := o.transport.CompleteMultipart(ctx, s.req.Key, uploadID); err != nil {
		o.abort(ctx, s, uploadID, log)
		return fmt.Errorf("complete multipart: %w", err)
	}
	o.forget(ctx, s, log)
	return nil
}

func (o *Orchestrator) sendPart(ctx context.Context, s *Session, f File, uploadID string, c Chunk, log logging.Logger) error {
	b := retry.WithMaxRetries(o.cfg.PartAttempts-1, retry.NewExponential(o.cfg.RetryBase))

	return retry.Do(ctx, b, func(ctx context.Context) error {
		r := io.NewSectionReader(f, c.Offset, c.Length)
		_, err := o.transport.UploadPart(ctx, s.req.Key, uploadID, c.PartNumber, r, c.Length)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || s.isCanceled() {
			return err
		}
		log.Warn(ctx, "part upload failed", "part", c.PartNumber, "error", err)
		return retry.RetryableError(err)
	})
}

// abort releases the server-side upload. It runs even when ctx is already
// canceled.
func (o *Orchestrator) abort(ctx context.Context, s *Session, uploadID string, log logging.Logger) {
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), abortTimeout)
	defer cancel()

	if err := o.transport.AbortMultipart(actx, s.req.Key, uploadID); err != nil {
		log.Warn(actx, "abort multipart failed", "upload_id", uploadID, "error", err)
		return
	}
	o.forget(actx, s, log)
}

func (o *Orchestrator) record(ctx context.Context, s *Session, uploadID string, part int32, offset int64, log logging.Logger) {
	if o.journal == nil {
		return
	}
	rec := models.UploadRecord{
		ID:         s.id,
		UserID:     s.req.UserID,
		ObjectKey:  s.req.Key,
		UploadID:   uploadID,
		LocalPath:  s.req.LocalPath,
		Size:       s.req.Size,
		PartNumber: part,
		Offset:     offset,
		UpdatedAt:  time.Now().UTC(),
	}
	if err := o.journal.Save(context.WithoutCancel(ctx), rec); err != nil {
		log.Warn(ctx, "upload journal save failed", "error", err)
	}
}

func (o *Orchestrator) forget(ctx context.Context, s *Session, log logging.Logger) {
	if o.journal == nil {
		return
	}
	if err := o.journal.Delete(context.WithoutCancel(ctx), s.id); err != nil {
		log.Warn(ctx, "upload journal delete failed", "error", err)
	}
}
