// Command spmcdemo drives a ring.Buffer with one writer and several
// busy-waiting readers so the throttling behavior described by the ring
// package can be watched rather than just tested. It is a demonstration
// harness, not part of the library: production code should not import it.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/FerroO2000/spmcring"
)

type message struct {
	seq uint64
}

func main() {
	var (
		capacity   = flag.Uint64("capacity", 1024, "ring buffer capacity (rounded up to a power of two)")
		numReaders = flag.Int("readers", 3, "number of reader goroutines")
		count      = flag.Uint64("count", 200_000, "number of messages to write")
		batch      = flag.Uint64("batch", 16, "messages written per Write call")
	)
	flag.Parse()

	log := newLogger()

	buf, err := ring.New[message](*capacity)
	if err != nil {
		log.Error("allocate buffer", "err", err)
		os.Exit(1)
	}
	buf.Touch()
	if buf.LockPages() {
		log.Info("locked buffer pages in physical memory")
	} else {
		log.Info("page-locking unavailable on this platform, continuing without it")
	}

	readers := make([]*ring.Reader[message], *numReaders)
	for i := range readers {
		readers[i] = ring.AttachReader(buf)
	}

	log.Info("starting demo",
		"capacity", buf.Capacity(),
		"readers", *numReaders,
		"count", *count,
		"batch", *batch,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	var violations atomic.Uint64

	for i, r := range readers {
		wg.Add(1)
		go runReader(ctx, log, &wg, i, r, *count, &violations)
	}

	wg.Add(1)
	go runWriter(ctx, log, &wg, buf, *count, *batch)

	wg.Wait()

	if violations.Load() > 0 {
		log.Error("stream integrity violations detected", "count", violations.Load())
		os.Exit(1)
	}
	log.Info("demo complete, no stream integrity violations observed")
}

func runWriter(ctx context.Context, log *slog.Logger, wg *sync.WaitGroup, buf *ring.Buffer[message], count, batch uint64) {
	defer wg.Done()

	src := make([]message, batch)
	var written uint64
	spins := 0

	for written < count {
		select {
		case <-ctx.Done():
			log.Warn("writer interrupted", "written", written)
			return
		default:
		}

		remaining := count - written
		n := batch
		if n > remaining {
			n = remaining
		}
		for i := uint64(0); i < n; i++ {
			src[i] = message{seq: written + i}
		}

		k, err := buf.Write(src[:n])
		if err != nil {
			log.Error("contract violation, aborting writer", "err", err)
			return
		}
		if k == 0 {
			spins++
			runtime.Gosched()
			continue
		}
		written += uint64(k)
	}

	log.Info("writer finished", "written", written, "spins", spins)
}

func runReader(ctx context.Context, log *slog.Logger, wg *sync.WaitGroup, id int, r *ring.Reader[message], count uint64, violations *atomic.Uint64) {
	defer wg.Done()

	var next uint64
	spins := 0
	start := time.Now()

	for next < count {
		select {
		case <-ctx.Done():
			log.Warn("reader interrupted", "id", id, "seen", next)
			return
		default:
		}

		seq := r.ReadAll()
		if seq.Size() == 0 {
			spins++
			runtime.Gosched()
			continue
		}

		for i := uint64(0); i < seq.Size(); i++ {
			got := seq.At(i).seq
			if got != next {
				violations.Add(1)
				log.Error("out-of-order element", "reader", id, "want", next, "got", got)
			}
			next++
		}
		seq.Release()
	}

	log.Info("reader finished", "id", id, "seen", next, "spins", spins, "elapsed", time.Since(start))
}

func newLogger() *slog.Logger {
	var w = os.Stdout
	if isatty.IsTerminal(w.Fd()) {
		return slog.New(tint.NewHandler(colorable.NewColorable(w), &tint.Options{
			Level:      slog.LevelInfo,
			TimeFormat: time.Kitchen,
		}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
