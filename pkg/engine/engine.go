package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/valyala/bytebufferpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"atelier/pkg/generate"
	"atelier/pkg/logger"
	"atelier/pkg/models"
	"atelier/pkg/store"
	"atelier/pkg/telemetry"
	"atelier/pkg/utils"
)

var (
	// ErrQueueFull is returned by Submit when a project's queue is at
	// capacity.
	ErrQueueFull = errors.New("generation queue full")
	// ErrClosed is returned by Submit after Close has begun.
	ErrClosed = errors.New("engine closed")
)

// maxPooledBuffer caps prompt buffers returned to the pool so a single huge
// submit does not pin memory for the process lifetime.
var maxPooledBuffer = 256 * 1024

// SetMaxPooledBuffer overrides the pooled-buffer cap (bytes).
func SetMaxPooledBuffer(n int) {
	if n > 0 {
		maxPooledBuffer = n
	}
}

// turn is one queued generation request. Prompt bytes live in a pooled
// buffer that is released when the turn reaches a terminal state.
type turn struct {
	project string
	msgID   string
	prompt  []byte
	buf     *bytebufferpool.ByteBuffer
	once    sync.Once
}

func (t *turn) done() {
	t.once.Do(func() {
		if t.buf != nil {
			if cap(t.buf.B) <= maxPooledBuffer {
				bytebufferpool.Put(t.buf)
			}
			t.buf = nil
		}
		t.prompt = nil
	})
}

// Engine runs the asynchronous generation lifecycle: Triggered -> Running ->
// Completed or Failed. Each project owns one bounded queue drained by a
// single goroutine, so at most one turn per project is ever Running and
// turns complete in submit order. Every accepted turn appends exactly one
// ASSISTANT message, even on generator error or panic.
type Engine struct {
	gen      generate.Generator
	capacity int

	mu     sync.Mutex
	queues map[string]chan *turn
	closed bool

	grp    *errgroup.Group
	runCtx context.Context
}

// New builds an engine around the given generation capability. capacity
// bounds each project's pending-turn queue.
func New(gen generate.Generator, capacity int) *Engine {
	if capacity <= 0 {
		capacity = 256
	}
	grp, ctx := errgroup.WithContext(context.Background())
	return &Engine{
		gen:      gen,
		capacity: capacity,
		queues:   make(map[string]chan *turn),
		grp:      grp,
		runCtx:   ctx,
	}
}

// Submit enqueues one generation turn for the given user message. It
// returns once the turn is accepted (Triggered); generation completes
// asynchronously. Exactly one ASSISTANT message is appended per accepted
// turn. The lock is held across the enqueue so a concurrent Close cannot
// close the queue under a pending send; the select never blocks.
func (e *Engine) Submit(projectID, userMsgID, text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	q, ok := e.queues[projectID]
	if !ok {
		q = make(chan *turn, e.capacity)
		e.queues[projectID] = q
		e.grp.Go(func() error {
			e.drain(projectID, q)
			return nil
		})
	}

	bb := bytebufferpool.Get()
	bb.B = append(bb.B[:0], text...)
	t := &turn{project: projectID, msgID: userMsgID, prompt: bb.B, buf: bb}

	select {
	case q <- t:
		telemetry.QueueDepth.Inc()
		logger.Log.Info("generation_triggered",
			zap.String("project", projectID), zap.String("user_msg", userMsgID))
		return nil
	default:
		t.done()
		return ErrQueueFull
	}
}

// drain is the single writer for one project's timeline. It processes turns
// strictly in submit order.
func (e *Engine) drain(projectID string, q chan *turn) {
	for t := range q {
		telemetry.QueueDepth.Dec()
		e.process(t)
		t.done()
	}
}

// process runs one turn to a terminal state. The terminal guarantee lives
// here: whatever the generator or the store does, exactly one assistant
// message is appended before process returns.
func (e *Engine) process(t *turn) {
	start := time.Now()
	var reply generate.Reply
	var genErr error

	func() {
		defer func() {
			if r := recover(); r != nil {
				genErr = fmt.Errorf("generation panicked: %v", r)
				logger.Log.Error("generation_panic",
					zap.String("project", t.project), zap.Any("panic", r))
			}
		}()
		history, err := store.ListMessages(t.project)
		if err != nil {
			// degrade to the queued prompt alone; the turn still gets its reply
			logger.Log.Warn("history_load_failed",
				zap.String("project", t.project), zap.Error(err))
			history = nil
		}
		// the queued prompt bytes are the authoritative user turn; append
		// them when the fetched history does not carry the triggering message
		if !containsMessage(history, t.msgID) {
			history = append(history, models.Message{
				ID:      t.msgID,
				Project: t.project,
				Role:    models.RoleUser,
				Type:    models.TypeResult,
				Content: string(t.prompt),
				TS:      time.Now().UTC().UnixNano(),
			})
		}
		reply, genErr = e.gen.Generate(e.runCtx, generate.Request{
			ProjectID: t.project,
			History:   history,
		})
	}()

	telemetry.GenerationDuration.Observe(time.Since(start).Seconds())

	var msg models.Message
	switch {
	case genErr != nil:
		msg = e.errorMessage(t.project, genErr)
		telemetry.Generations.WithLabelValues("error").Inc()
	default:
		msg = models.Message{
			ID:      utils.GenMessageID(),
			Project: t.project,
			Role:    models.RoleAssistant,
			Type:    models.TypeResult,
			Content: reply.Text,
			TS:      time.Now().UTC().UnixNano(),
		}
		if reply.Artifact != nil {
			msg.Fragment = &models.Fragment{
				ID:         utils.GenFragmentID(),
				Message:    msg.ID,
				Title:      reply.Artifact.Title,
				Files:      reply.Artifact.Files,
				SandboxURL: reply.Artifact.SandboxURL,
				TS:         msg.TS,
			}
			telemetry.Generations.WithLabelValues("fragment").Inc()
		} else {
			telemetry.Generations.WithLabelValues("text").Inc()
		}
	}

	if err := store.AppendMessage(msg); err != nil {
		logger.Log.Error("append_assistant_failed",
			zap.String("project", t.project), zap.Error(err))
		// the timeline must still get its terminal turn; retry without the
		// fragment payload as a degraded error reply
		fallback := e.errorMessage(t.project, fmt.Errorf("persist reply: %w", err))
		if err2 := store.AppendMessage(fallback); err2 != nil {
			logger.Log.Error("append_terminal_failed",
				zap.String("project", t.project), zap.Error(err2))
		}
		return
	}

	logger.Log.Info("generation_completed",
		zap.String("project", t.project),
		zap.String("msg_id", msg.ID),
		zap.String("type", string(msg.Type)),
		zap.Bool("fragment", msg.Fragment != nil),
		zap.Duration("took", time.Since(start)))
}

func containsMessage(msgs []models.Message, id string) bool {
	for _, m := range msgs {
		if m.ID == id {
			return true
		}
	}
	return false
}

func (e *Engine) errorMessage(projectID string, cause error) models.Message {
	return models.Message{
		ID:      utils.GenMessageID(),
		Project: projectID,
		Role:    models.RoleAssistant,
		Type:    models.TypeError,
		Content: "Something went wrong while generating a reply: " + cause.Error(),
		TS:      time.Now().UTC().UnixNano(),
	}
}

// PendingTurns reports queued turns for a project (testing and monitoring).
func (e *Engine) PendingTurns(projectID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if q, ok := e.queues[projectID]; ok {
		return len(q)
	}
	return 0
}

// Close stops accepting new turns, drains every project queue to its
// terminal state and waits for the workers to exit. After Close returns the
// store sees a terminal assistant message for every accepted submit.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	for _, q := range e.queues {
		close(q)
	}
	e.mu.Unlock()
	return e.grp.Wait()
}
