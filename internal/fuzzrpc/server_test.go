package fuzzrpc

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/raresmith/branchfuzz/internal/fuzzone"
)

func startTestServer(t *testing.T, c *Campaign) (FuzzerControlClient, func()) {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	srv := grpc.NewServer()
	RegisterFuzzerControlServer(srv, c)
	go srv.Serve(lis)

	conn, err := grpc.Dial(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatal(err)
	}

	return NewFuzzerControlClient(conn), func() {
		conn.Close()
		srv.Stop()
	}
}

func TestStatsReportsCounters(t *testing.T) {
	c := NewCampaign(
		func() fuzzone.Stats { return fuzzone.Stats{Executions: 5, StageFinds: 1, StageCycles: 2} },
		func() int { return 3 },
	)
	client, stop := startTestServer(t, c)
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, err := client.Stats(ctx, &emptypb.Empty{})
	if err != nil {
		t.Fatal(err)
	}
	fields := out.AsMap()
	if fields["executions"] != float64(5) {
		t.Fatalf("executions = %v, want 5", fields["executions"])
	}
	if fields["queueLen"] != float64(3) {
		t.Fatalf("queueLen = %v, want 3", fields["queueLen"])
	}
}

func TestPauseResumeRoundTrip(t *testing.T) {
	c := NewCampaign(nil, nil)
	client, stop := startTestServer(t, c)
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if c.Paused() {
		t.Fatal("campaign should start unpaused")
	}
	if _, err := client.Pause(ctx, &emptypb.Empty{}); err != nil {
		t.Fatal(err)
	}
	if !c.Paused() {
		t.Fatal("expected Paused() to be true after Pause RPC")
	}
	if _, err := client.Resume(ctx, &emptypb.Empty{}); err != nil {
		t.Fatal(err)
	}
	if c.Paused() {
		t.Fatal("expected Paused() to be false after Resume RPC")
	}
}

func TestShutdownClosesChannel(t *testing.T) {
	c := NewCampaign(nil, nil)
	client, stop := startTestServer(t, c)
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Shutdown(ctx, &emptypb.Empty{}); err != nil {
		t.Fatal(err)
	}
	select {
	case <-c.ShutdownRequested():
	case <-time.After(time.Second):
		t.Fatal("expected ShutdownRequested to be closed after Shutdown RPC")
	}

	// Shutdown must be idempotent: a second call must not panic by
	// closing an already-closed channel.
	if _, err := client.Shutdown(ctx, &emptypb.Empty{}); err != nil {
		t.Fatal(err)
	}
}
