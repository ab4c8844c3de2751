package fuzzrpc

import (
	"context"
	"sync/atomic"

	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/raresmith/branchfuzz/internal/fuzzone"
)

// Campaign implements FuzzerControlServer against a running driver's
// stats accessor and a pause flag the fuzzing loop is expected to poll.
type Campaign struct {
	StatsFn    func() fuzzone.Stats
	QueueLenFn func() int

	paused   atomic.Bool
	shutdown chan struct{}
}

// NewCampaign builds a Campaign control surface. statsFn and queueLenFn
// may be nil; Stats then reports zero counters.
func NewCampaign(statsFn func() fuzzone.Stats, queueLenFn func() int) *Campaign {
	return &Campaign{StatsFn: statsFn, QueueLenFn: queueLenFn, shutdown: make(chan struct{})}
}

// Paused reports whether the fuzzing loop should be idling. cmd/fuzzctl's
// loop checks this before each FuzzOne call and idles until Resume.
func (c *Campaign) Paused() bool { return c.paused.Load() }

// ShutdownRequested is closed once a client calls Shutdown.
func (c *Campaign) ShutdownRequested() <-chan struct{} { return c.shutdown }

func (c *Campaign) Stats(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	var st fuzzone.Stats
	if c.StatsFn != nil {
		st = c.StatsFn()
	}
	queueLen := 0
	if c.QueueLenFn != nil {
		queueLen = c.QueueLenFn()
	}
	return structpb.NewStruct(map[string]interface{}{
		"executions":  float64(st.Executions),
		"stageFinds":  float64(st.StageFinds),
		"stageCycles": float64(st.StageCycles),
		"queueLen":    float64(queueLen),
		"paused":      c.Paused(),
	})
}

func (c *Campaign) Pause(_ context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	c.paused.Store(true)
	return &emptypb.Empty{}, nil
}

func (c *Campaign) Resume(_ context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	c.paused.Store(false)
	return &emptypb.Empty{}, nil
}

func (c *Campaign) Shutdown(_ context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	select {
	case <-c.shutdown:
	default:
		close(c.shutdown)
	}
	return &emptypb.Empty{}, nil
}
