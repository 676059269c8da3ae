package stt

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/discord-voice-bridge/internal/logging"
	"github.com/discord-voice-bridge/internal/metrics"
	"github.com/google/uuid"
)

var (
	// ErrTimeout is returned when the worker does not answer a request
	// within the configured deadline. A late response is dropped on arrival.
	ErrTimeout = errors.New("recognition timeout")
	// ErrWorkerCrashed is returned for requests pending when the worker
	// process exits unexpectedly. The next call re-spawns the process.
	ErrWorkerCrashed = errors.New("recognition worker exited unexpectedly")
	// ErrWorkerStopped is returned for requests pending when Stop is called.
	ErrWorkerStopped = errors.New("recognition worker stopped")
)

// Transcriber converts an audio reference to text. Implementations must
// treat an empty string as a valid result meaning "no speech recognized".
type Transcriber interface {
	Transcribe(ctx context.Context, wavPath string) (string, error)
	Stop()
}

type request struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

type response struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Error string `json:"error"`
}

type result struct {
	text string
	err  error
}

// Worker manages one long-lived recognition subprocess speaking
// line-delimited JSON over stdin/stdout: request {"id","path"}, response
// {"id","text"} or {"id","error"}. The process is spawned lazily on first
// use and re-spawned after an unexpected exit.
type Worker struct {
	cmdline  []string
	extraEnv []string
	timeout  time.Duration

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	pending map[string]chan result
	gen     uint64

	writeMu sync.Mutex
}

// NewWorker builds a client for a recognition worker process. cmdline is the
// argv of the process; extraEnv entries are appended to the inherited
// environment. timeout is the per-request deadline.
func NewWorker(cmdline []string, extraEnv []string, timeout time.Duration) *Worker {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Worker{
		cmdline:  cmdline,
		extraEnv: extraEnv,
		timeout:  timeout,
		pending:  make(map[string]chan result),
	}
}

// ensureStarted spawns the worker process if it is not running.
func (w *Worker) ensureStarted() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cmd != nil {
		return nil
	}
	if len(w.cmdline) == 0 {
		return fmt.Errorf("no recognition worker command configured")
	}

	cmd := exec.Command(w.cmdline[0], w.cmdline[1:]...)
	cmd.Env = append(os.Environ(), w.extraEnv...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("worker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("worker stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("worker stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start recognition worker: %w", err)
	}

	w.gen++
	gen := w.gen
	w.cmd = cmd
	w.stdin = stdin
	metrics.WorkerStarts.Inc()
	logging.Infow("recognition worker started", "cmd", w.cmdline[0], "pid", cmd.Process.Pid)

	go w.readLoop(stdout)
	go w.drainStderr(stderr)
	go func() {
		err := cmd.Wait()
		w.failAll(gen, ErrWorkerCrashed)
		if err != nil {
			logging.Warnw("recognition worker exited", "err", err)
		}
	}()
	return nil
}

func (w *Worker) readLoop(r io.Reader) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var resp response
		if err := json.Unmarshal(line, &resp); err != nil {
			logging.Warnw("failed parsing recognition worker output", "err", err)
			continue
		}
		res := result{text: resp.Text}
		if resp.Error != "" {
			res = result{err: fmt.Errorf("recognition failed: %s", resp.Error)}
		}
		w.resolve(resp.ID, res)
	}
}

func (w *Worker) drainStderr(r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if line := sc.Text(); line != "" {
			logging.Warnw("recognition worker stderr", "line", line)
		}
	}
}

// resolve delivers a response to its waiting request. Responses whose id is
// no longer pending (timed out or cancelled) are dropped.
func (w *Worker) resolve(id string, res result) {
	w.mu.Lock()
	ch, ok := w.pending[id]
	if ok {
		delete(w.pending, id)
	}
	w.mu.Unlock()
	if !ok {
		logging.Debugw("dropping stray recognition response", "id", id)
		return
	}
	ch <- res
}

// failAll fails every pending request and clears the process handle. gen
// guards against a stale exit reaper racing a Stop or restart.
func (w *Worker) failAll(gen uint64, err error) {
	w.mu.Lock()
	if w.gen != gen {
		w.mu.Unlock()
		return
	}
	pending := w.pending
	w.pending = make(map[string]chan result)
	w.cmd = nil
	w.stdin = nil
	w.mu.Unlock()
	for _, ch := range pending {
		ch <- result{err: err}
	}
}

// Transcribe sends one request and awaits the correlated response. The
// returned text is trimmed by the worker; empty means no speech recognized.
func (w *Worker) Transcribe(ctx context.Context, wavPath string) (string, error) {
	if err := w.ensureStarted(); err != nil {
		return "", err
	}

	id := uuid.NewString()
	ch := make(chan result, 1)
	w.mu.Lock()
	w.pending[id] = ch
	stdin := w.stdin
	w.mu.Unlock()
	if stdin == nil {
		w.unregister(id)
		return "", ErrWorkerCrashed
	}

	payload, err := json.Marshal(request{ID: id, Path: wavPath})
	if err != nil {
		w.unregister(id)
		return "", err
	}
	payload = append(payload, '\n')

	w.writeMu.Lock()
	_, err = stdin.Write(payload)
	w.writeMu.Unlock()
	if err != nil {
		w.unregister(id)
		return "", fmt.Errorf("write recognition request: %w", err)
	}

	timer := time.NewTimer(w.timeout)
	defer timer.Stop()
	select {
	case res := <-ch:
		return res.text, res.err
	case <-timer.C:
		w.unregister(id)
		return "", ErrTimeout
	case <-ctx.Done():
		w.unregister(id)
		return "", ctx.Err()
	}
}

func (w *Worker) unregister(id string) {
	w.mu.Lock()
	delete(w.pending, id)
	w.mu.Unlock()
}

// PendingCount reports the number of in-flight requests.
func (w *Worker) PendingCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Stop terminates the worker process and fails all pending requests with
// ErrWorkerStopped. Idempotent; a later Transcribe re-spawns the process.
func (w *Worker) Stop() {
	w.mu.Lock()
	cmd := w.cmd
	stdin := w.stdin
	pending := w.pending
	w.pending = make(map[string]chan result)
	w.cmd = nil
	w.stdin = nil
	w.gen++ // invalidate the exit reaper for the old process
	w.mu.Unlock()

	for _, ch := range pending {
		ch <- result{err: ErrWorkerStopped}
	}
	if stdin != nil {
		_ = stdin.Close()
	}
	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Signal(syscall.SIGTERM)
		logging.Infow("recognition worker stopped", "pid", cmd.Process.Pid)
	}
}
