// Package scheduler runs scans as supervised subprocesses: the
// Scheduler re-execs the current binary with a hidden subcommand,
// streams its newline-delimited JSON progress over a stdout pipe, and
// tears it down with SIGTERM-then-SIGKILL on cancellation (spec.md
// §4.6). Grounded on the ticker-driven loop, mutex-protected maps, and
// zerolog/log.WithComponent style of cuemby-warren's
// pkg/scheduler/scheduler.go and pkg/worker/worker.go, generalized from
// gRPC-connected container supervision to local subprocess supervision.
package scheduler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuemby/disktree/pkg/catalog"
	"github.com/cuemby/disktree/pkg/config"
	"github.com/cuemby/disktree/pkg/dtmetrics"
	"github.com/cuemby/disktree/pkg/events"
	"github.com/cuemby/disktree/pkg/log"
	"github.com/cuemby/disktree/pkg/types"
)

// WorkerSubcommand is the hidden cobra subcommand name the Scheduler
// re-execs itself with. cmd/disktree registers a command under this
// name that simply calls RunWorkerProcess.
const WorkerSubcommand = "__scan-worker"

const killGrace = 5 * time.Second

type job struct {
	id        string
	rootURI   types.URI
	startedAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}
}

// Scheduler owns the lifecycle of scan jobs: one-active-scan-per-root
// coalescing, a concurrency cap, and progress fan-out via an
// events.Broker.
type Scheduler struct {
	cfg    *config.Config
	cat    *catalog.Catalog
	broker *events.Broker
	logger zerolog.Logger

	mu     sync.Mutex
	jobs   map[string]*job
	byRoot map[types.URI]string

	sem chan struct{}
}

// New returns a Scheduler. cfg.MaxConcurrentScans<=0 selects
// runtime.NumCPU() concurrent scan subprocesses.
func New(cfg *config.Config, cat *catalog.Catalog, broker *events.Broker) *Scheduler {
	workers := cfg.MaxConcurrentScans
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Scheduler{
		cfg:    cfg,
		cat:    cat,
		broker: broker,
		logger: log.WithComponent("scheduler"),
		jobs:   make(map[string]*job),
		byRoot: make(map[types.URI]string),
		sem:    make(chan struct{}, workers),
	}
}

// StartScan launches a scan of root, or returns the ID of an
// already-running scan of the same root (spec.md §4.6 coalescing).
func (s *Scheduler) StartScan(root types.URI) (string, error) {
	root = root.Canonical()

	s.mu.Lock()
	if id, ok := s.byRoot[root]; ok {
		s.mu.Unlock()
		return id, nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	j := &job{
		id:        uuid.NewString(),
		rootURI:   root,
		startedAt: time.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	s.jobs[j.id] = j
	s.byRoot[root] = j.id
	s.mu.Unlock()

	if err := s.cat.PutProgress(&types.ScanProgress{
		ID:        j.id,
		RootURI:   root,
		StartedAt: j.startedAt,
		Status:    types.ScanPending,
	}); err != nil {
		s.logger.Error().Err(err).Str("scan_id", j.id).Msg("failed to record pending scan progress")
	}

	go s.runJob(ctx, j)
	return j.id, nil
}

// CancelScan requests termination of a running job; it is a no-op if
// the job is not found (already terminated).
func (s *Scheduler) CancelScan(jobID string) error {
	s.mu.Lock()
	j, ok := s.jobs[jobID]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	j.cancel()
	return nil
}

// RunningScans returns the progress rows of every currently active scan.
func (s *Scheduler) RunningScans() ([]*types.ScanProgress, error) {
	return s.cat.ListProgress()
}

// ScanStatus returns the progress row for a job. Once the job has
// terminated its row is removed and ok is false.
func (s *Scheduler) ScanStatus(jobID string) (*types.ScanProgress, bool, error) {
	return s.cat.GetProgress(jobID)
}

func (s *Scheduler) runJob(ctx context.Context, j *job) {
	defer close(j.done)
	defer func() {
		s.mu.Lock()
		delete(s.jobs, j.id)
		if s.byRoot[j.rootURI] == j.id {
			delete(s.byRoot, j.rootURI)
		}
		s.mu.Unlock()
		if err := s.cat.DeleteProgress(j.id); err != nil {
			s.logger.Warn().Err(err).Str("scan_id", j.id).Msg("failed to clear progress row")
		}
	}()

	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	case <-ctx.Done():
		s.finish(j, types.ScanCancelled, nil, nil)
		return
	}

	exePath, err := os.Executable()
	if err != nil {
		s.finish(j, types.ScanFailed, nil, err)
		return
	}

	args := []string{
		WorkerSubcommand,
		"--root", string(j.rootURI),
		"--blob-dir", s.cfg.BlobPath(),
		"--follow-symlinks", strconv.FormatBool(s.cfg.FollowSymlinks),
		"--dedupe-by-inode", strconv.FormatBool(s.cfg.DedupeByInode),
		"--sample-error-paths", strconv.Itoa(s.cfg.SampleErrorPaths),
		"--progress-tick", s.cfg.ProgressTick.String(),
	}
	if len(s.cfg.ProbeExcludeGlobs) > 0 {
		args = append(args, "--exclude-globs", strings.Join(s.cfg.ProbeExcludeGlobs, ","))
	}

	cmd := exec.Command(exePath, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		s.finish(j, types.ScanFailed, nil, err)
		return
	}
	cmd.Stderr = os.Stderr

	dtmetrics.ScansRunning.Inc()
	defer dtmetrics.ScansRunning.Dec()

	if err := cmd.Start(); err != nil {
		s.finish(j, types.ScanFailed, nil, err)
		return
	}

	killed := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			cmd.Process.Signal(syscall.SIGTERM)
			select {
			case <-killed:
			case <-time.After(killGrace):
				cmd.Process.Kill()
			}
		case <-killed:
		}
	}()

	var result *workerMessage
	var failMsg string
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var msg workerMessage
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			continue
		}
		switch msg.Kind {
		case msgProgress:
			s.reportProgress(j, msg)
		case msgResult:
			m := msg
			result = &m
		case msgFailed:
			failMsg = msg.Error
		}
	}

	waitErr := cmd.Wait()
	close(killed)

	if ctx.Err() != nil {
		s.finish(j, types.ScanCancelled, nil, nil)
		return
	}
	if waitErr != nil || result == nil {
		if failMsg == "" {
			if waitErr != nil {
				failMsg = waitErr.Error()
			} else {
				failMsg = "worker exited without a result"
			}
		}
		s.finish(j, types.ScanFailed, nil, fmt.Errorf("%s", failMsg))
		return
	}

	s.finish(j, types.ScanCompleted, result, nil)
}

func (s *Scheduler) reportProgress(j *job, msg workerMessage) {
	p := &types.ScanProgress{
		ID:          j.id,
		RootURI:     j.rootURI,
		StartedAt:   j.startedAt,
		ItemsFound:  msg.ItemsFound,
		ErrorCount:  msg.ErrorCount,
		Status:      types.ScanRunning,
		ItemsPerSec: itemsPerSec(msg.ItemsFound, j.startedAt),
	}
	if err := s.cat.PutProgress(p); err != nil {
		s.logger.Warn().Err(err).Str("scan_id", j.id).Msg("failed to persist progress")
	}
	s.broker.Publish(&events.Frame{
		JobID:      j.id,
		ItemsFound: msg.ItemsFound,
		ErrorCount: msg.ErrorCount,
		Status:     string(types.ScanRunning),
	})
}

func (s *Scheduler) finish(j *job, status types.ScanStatus, result *workerMessage, failErr error) {
	s.broker.Publish(&events.Frame{
		JobID:  j.id,
		Status: string(status),
	})

	switch status {
	case types.ScanCompleted:
		rec := &types.ScanRecord{
			ID:            j.id,
			RootURI:       j.rootURI,
			CompletedAt:   time.Now().UTC(),
			BlobID:        result.BlobID,
			RootSize:      result.RootSize,
			RootNChildren: result.RootNChildren,
			RootNDesc:     result.RootNDesc,
			ErrorCount:    result.ErrorCount,
			ErrorPaths:    result.ErrorPaths,
		}
		if err := s.cat.PutScan(rec); err != nil {
			s.logger.Error().Err(err).Str("scan_id", j.id).Msg("failed to persist completed scan")
		}
		dtmetrics.ScanDuration.Observe(time.Since(j.startedAt).Seconds())
		dtmetrics.ScanItemsFound.Observe(float64(result.RootNDesc + 1))
		if result.ErrorCount > 0 {
			dtmetrics.ScanErrorsTotal.Add(float64(result.ErrorCount))
		}
		dtmetrics.ScansCompletedTotal.WithLabelValues("completed").Inc()
		s.logger.Info().Str("scan_id", j.id).Str("root_uri", string(j.rootURI)).Msg("scan completed")
	case types.ScanFailed:
		dtmetrics.ScansCompletedTotal.WithLabelValues("failed").Inc()
		s.logger.Error().Err(failErr).Str("scan_id", j.id).Str("root_uri", string(j.rootURI)).Msg("scan failed")
	case types.ScanCancelled:
		dtmetrics.ScansCompletedTotal.WithLabelValues("cancelled").Inc()
		s.logger.Warn().Str("scan_id", j.id).Str("root_uri", string(j.rootURI)).Msg("scan cancelled")
	}
}

func itemsPerSec(items int64, startedAt time.Time) float64 {
	elapsed := time.Since(startedAt).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(items) / elapsed
}
