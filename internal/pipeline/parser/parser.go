package parser

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/errgroup"

	"github.com/yixin-zhu/yx-chatbot/internal/config"
	"github.com/yixin-zhu/yx-chatbot/internal/faults"
	"github.com/yixin-zhu/yx-chatbot/pkg/logger_i"
)

var logger = logger_i.NewLogger("StreamingParser")

// Parse extracts plain text from the document at path and emits it as parent
// chunks of roughly config.ParentChunkSize bytes, without materializing the
// whole document. The channel closes when extraction ends; callers must drain
// it and then check the group error.
func Parse(ctx context.Context, path string) (<-chan string, *errgroup.Group, error) {
	if err := checkMemoryPressure(); err != nil {
		return nil, nil, err
	}

	//content-based detection, the declared extension is not trusted
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: detecting file type: %v", faults.ErrInvalidInput, err)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	out := make(chan string, 1)
	sink := &emitter{ctx: groupCtx, out: out}

	group.Go(func() error {
		defer close(out)
		if err := extract(groupCtx, path, mtype, sink); err != nil {
			return err
		}
		return sink.finish()
	})

	return out, group, nil
}

// checkMemoryPressure is the pipeline's sole admission control: document size
// is unbounded, memory is not. One reclamation pass is attempted before
// refusing.
func checkMemoryPressure() error {
	ceiling := float64(config.MemoryCeilingBytes) * config.MemoryPressureThreshold

	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	if float64(stats.HeapAlloc) < ceiling {
		return nil
	}

	logger.Warn("Memory pressure high, attempting reclamation", "heapAlloc", stats.HeapAlloc)
	debug.FreeOSMemory()

	runtime.ReadMemStats(&stats)
	if float64(stats.HeapAlloc) < ceiling {
		return nil
	}
	return fmt.Errorf("%w: heap at %d bytes, refusing parse", faults.ErrResourceExhausted, stats.HeapAlloc)
}

// emitter accumulates extracted text and pushes a parent chunk whenever the
// buffer reaches the configured size.
type emitter struct {
	ctx context.Context
	out chan<- string
	buf strings.Builder
}

func (e *emitter) write(text string) error {
	e.buf.WriteString(text)
	if e.buf.Len() >= config.ParentChunkSize {
		return e.flush()
	}
	return nil
}

func (e *emitter) flush() error {
	if e.buf.Len() == 0 {
		return nil
	}
	select {
	case e.out <- e.buf.String():
		e.buf.Reset()
		return nil
	case <-e.ctx.Done():
		return e.ctx.Err()
	}
}

func (e *emitter) finish() error {
	return e.flush()
}
