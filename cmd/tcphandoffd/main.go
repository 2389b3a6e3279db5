// Command tcphandoffd is the composition root wiring a worker pool, a
// herder pool, and a loopback connection source together into a runnable
// process. The HTTP header parser and upstream forwarding are not
// implemented here; a single in-memory loopback socket is dispatched, and any
// events on it logged, so the readiness multiplexer and herder pool run end
// to end.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/jixianzhao/TCPHandoff/herder"
	"github.com/jixianzhao/TCPHandoff/internal/observability"
	"github.com/jixianzhao/TCPHandoff/socket"
	"github.com/jixianzhao/TCPHandoff/workerpool"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := observability.New(os.Stdout)

	workers := workerpool.NewPool(&workerpool.Config{
		Workers:   runtime.NumCPU(),
		QueueSize: 4096,
	})
	defer workers.Close()

	cpus := make([]int, runtime.NumCPU())
	for i := range cpus {
		cpus[i] = i
	}

	pool, err := herder.NewPool(ctx, workers,
		herder.WithCPUs(cpus),
		herder.WithLogger(log),
		herder.WithMaxEventsPerWait(1024),
		herder.WithDropWarningRateLimit(5),
		herder.WithEventHandler(func(job herder.EventJob) {
			log.Info("event", func(b *observability.Builder) *observability.Builder {
				return b.Str("events", fmt.Sprint(job.Events)).Int("cpu", job.CPU)
			})
		}),
	)
	if err != nil {
		log.Err("startup", err, nil)
		os.Exit(1)
	}

	log.Info("startup", func(b *observability.Builder) *observability.Builder {
		return b.Int("cpu_count", len(cpus))
	})

	if err := dispatchLoopbackMock(pool, 0x7f000001, 8080); err != nil {
		log.Err("dispatch", err, nil)
	}

	<-ctx.Done()

	log.Info("shutdown", nil)
	_ = pool.Close(context.Background())
}

// dispatchLoopbackMock registers a deterministic in-memory socket, standing
// in for the accept hook that would otherwise hand real accepted connections
// to Dispatch. It exists so the binary has something to run against without
// a real network stack.
func dispatchLoopbackMock(pool *herder.Pool, addr uint32, port uint16) error {
	sock := socket.NewMockSocket(addr, port)
	return pool.Dispatch(sock)
}
