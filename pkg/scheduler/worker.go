package scheduler

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/cuemby/disktree/pkg/aggregator"
	"github.com/cuemby/disktree/pkg/blobstore"
	"github.com/cuemby/disktree/pkg/probe"
	"github.com/cuemby/disktree/pkg/types"
)

// WorkerOptions configures one subprocess-side scan run. It is the
// flattened, flag-friendly form of probe.Options plus the handful of
// extra fields the worker needs to stand on its own (spec.md §4.6: the
// worker is a supervised subprocess, launched with no shared memory).
type WorkerOptions struct {
	Root             types.URI
	BlobDir          string
	ExcludeGlobs     []string
	FollowSymlinks   bool
	DedupeByInode    bool
	SampleErrorPaths int
	ProgressTick     time.Duration
}

// RunWorkerProcess runs a single Probe→Aggregator→BlobStore pipeline
// to completion, writing newline-delimited JSON progress and result
// frames to out as it goes. This is the body of the hidden
// WorkerSubcommand ("__scan-worker") a re-exec'd disktree binary runs; it never
// touches the Catalog — the parent Scheduler records the ScanRecord
// once it reads the final result frame (spec.md §4.6).
func RunWorkerProcess(ctx context.Context, opts WorkerOptions, out io.Writer) error {
	blobs, err := blobstore.New(opts.BlobDir)
	if err != nil {
		writeMsg(out, workerMessage{Kind: msgFailed, Error: err.Error()})
		return err
	}

	p := probe.ForScheme(opts.Root.Scheme(), nil)
	stream := p.Run(ctx, opts.Root, probe.Options{
		ExcludeGlobs:     opts.ExcludeGlobs,
		FollowSymlinks:   opts.FollowSymlinks,
		DedupeByInode:    opts.DedupeByInode,
		SampleErrorPaths: opts.SampleErrorPaths,
	})

	tick := opts.ProgressTick
	if tick <= 0 {
		tick = 2 * time.Second
	}
	stopProgress := make(chan struct{})
	var progressWG sync.WaitGroup
	progressWG.Add(1)
	go func() {
		defer progressWG.Done()
		ticker := time.NewTicker(tick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				writeMsg(out, workerMessage{
					Kind:       msgProgress,
					ItemsFound: stream.Progress.Items(),
					ErrorCount: int(stream.Progress.Errors()),
				})
			case <-stopProgress:
				return
			}
		}
	}()

	var errorPaths []string
	errDone := make(chan struct{})
	go func() {
		defer close(errDone)
		for e := range stream.Errors {
			errorPaths = append(errorPaths, string(e.URI))
		}
	}()

	snap, aggErr := aggregator.Aggregate(opts.Root, stream.Entries)
	<-errDone
	close(stopProgress)
	progressWG.Wait()

	if fatalErr := <-stream.Done; fatalErr != nil {
		writeMsg(out, workerMessage{Kind: msgFailed, Error: fatalErr.Error()})
		return fatalErr
	}
	if aggErr != nil {
		writeMsg(out, workerMessage{Kind: msgFailed, Error: aggErr.Error()})
		return aggErr
	}

	snap.CompletedAt = time.Now().UTC()
	snap.ErrorCount = int(stream.Progress.Errors())
	snap.ErrorPaths = errorPaths

	blobID, err := blobs.Put(snap)
	if err != nil {
		writeMsg(out, workerMessage{Kind: msgFailed, Error: err.Error()})
		return err
	}

	root, _ := snap.Root()
	writeMsg(out, workerMessage{
		Kind:          msgResult,
		BlobID:        blobID,
		RootSize:      root.Size,
		RootNChildren: root.NChildren,
		RootNDesc:     root.NDesc,
		ErrorCount:    snap.ErrorCount,
		ErrorPaths:    snap.ErrorPaths,
		RootKind:      root.Kind,
	})
	return nil
}

func writeMsg(out io.Writer, msg workerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	out.Write(data)
	out.Write([]byte("\n"))
}
