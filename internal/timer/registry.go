package timer

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "bumpbot/pkg/logx"
)

// Task is a unit of scheduled work. Errors are logged by the registry and
// never propagate to other jobs.
type Task func(ctx context.Context) error

type jobKind int

const (
	kindRepeating jobKind = iota
	kindOnce
)

// job is the tagged variant stored in the registry map: a repeating job
// carries its cron entry, a one-shot job carries its timer. The generation
// counter distinguishes a live one-shot from a replacement registered under
// the same id.
type job struct {
	kind  jobKind
	entry cron.EntryID
	timer *time.Timer
	gen   uint64
}

type Registry struct {
	log    logx.Logger
	parser cron.Parser

	mu      sync.Mutex
	c       *cron.Cron
	jobs    map[string]*job
	baseCtx context.Context
	gen     uint64
}

func New(log logx.Logger) *Registry {
	return &Registry{
		log:    log,
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		jobs:   map[string]*job{},
	}
}

// Start brings up the cron runner. ctx is handed to every task invocation;
// cancelling it signals tasks to wind down but does not stop the registry.
func (r *Registry) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.c != nil {
		return
	}
	r.baseCtx = ctx
	r.c = cron.New(cron.WithParser(r.parser))
	r.c.Start()
	r.log.Debug("timer registry started")
}

// RegisterRepeating installs a recurring job. An existing job under the same
// id (either kind) is stopped and replaced.
func (r *Registry) RegisterRepeating(id, spec string, task Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.c == nil {
		return errors.New("timer registry not started")
	}
	r.cancelLocked(id)
	entry, err := r.c.AddFunc(spec, func() { r.run(id, task) })
	if err != nil {
		return err
	}
	r.jobs[id] = &job{kind: kindRepeating, entry: entry}
	return nil
}

// RegisterOnce installs a one-shot job firing after delay. Delays <= 0 clamp
// to "as soon as possible". An existing job under the same id is replaced.
func (r *Registry) RegisterOnce(id string, delay time.Duration, task Task) {
	if delay < 0 {
		delay = 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registerOnceLocked(id, delay, task)
}

func (r *Registry) registerOnceLocked(id string, delay time.Duration, task Task) {
	r.cancelLocked(id)
	r.gen++
	gen := r.gen
	j := &job{kind: kindOnce, gen: gen}
	j.timer = time.AfterFunc(delay, func() { r.fireOnce(id, gen, task) })
	r.jobs[id] = j
}

// fireOnce removes the one-shot entry before running the task body, so a task
// that re-registers its own id is not treated as replacing a still-pending job.
// The entry may already be gone: a Cancel or replacing registration can win
// the race against an expired timer whose goroutine has not locked yet. Whoever
// removed the entry owns the id, and the expired timer must not run.
func (r *Registry) fireOnce(id string, gen uint64, task Task) {
	r.mu.Lock()
	cur, ok := r.jobs[id]
	mine := ok && cur.kind == kindOnce && cur.gen == gen
	if mine {
		delete(r.jobs, id)
	}
	r.mu.Unlock()
	if !mine {
		return
	}
	r.run(id, task)
}

// Cancel stops and removes a job of either kind. It reports whether a job was
// registered under id.
func (r *Registry) Cancel(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelLocked(id)
}

func (r *Registry) cancelLocked(id string) bool {
	j, ok := r.jobs[id]
	if !ok {
		return false
	}
	delete(r.jobs, id)
	switch j.kind {
	case kindRepeating:
		if r.c != nil {
			r.c.Remove(j.entry)
		}
	case kindOnce:
		j.timer.Stop()
	}
	return true
}

// StopAll cancels every job and shuts the cron runner down. Process shutdown
// only; the registry cannot be restarted afterwards.
func (r *Registry) StopAll() {
	r.mu.Lock()
	c := r.c
	r.c = nil
	for id, j := range r.jobs {
		if j.kind == kindOnce {
			j.timer.Stop()
		}
		delete(r.jobs, id)
	}
	r.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
	r.log.Debug("timer registry stopped")
}

func (r *Registry) run(id string, task Task) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("job panicked",
				logx.String("job", id),
				logx.Any("panic", p),
				logx.Stack(string(debug.Stack())),
			)
		}
	}()

	r.mu.Lock()
	ctx := r.baseCtx
	r.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := task(ctx); err != nil {
		r.log.Warn("job failed", logx.String("job", id), logx.Err(err))
	}
}
