package repl

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/raresmith/branchfuzz/internal/fuzzrpc"
	"github.com/raresmith/branchfuzz/internal/fuzzone"
)

func newTestREPL() (*REPL, *bytes.Buffer) {
	var buf bytes.Buffer
	campaign := fuzzrpc.NewCampaign(
		func() fuzzone.Stats { return fuzzone.Stats{Executions: 100, StageFinds: 4, StageCycles: 9} },
		func() int { return 12 },
	)
	return New(campaign, &buf), &buf
}

func TestCmdStatsPrintsCounters(t *testing.T) {
	r, buf := newTestREPL()
	r.cmdStats(context.Background())

	out := buf.String()
	for _, want := range []string{"executions", "100", "queue len", "12"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestCmdPauseThenResumeRoundTrip(t *testing.T) {
	r, buf := newTestREPL()

	r.cmdPause(context.Background())
	if !r.campaign.Paused() {
		t.Fatal("expected campaign to be paused after cmdPause")
	}
	if !strings.Contains(buf.String(), "paused") {
		t.Fatalf("expected confirmation output, got %q", buf.String())
	}

	buf.Reset()
	r.cmdResume(context.Background())
	if r.campaign.Paused() {
		t.Fatal("expected campaign to be unpaused after cmdResume")
	}
	if !strings.Contains(buf.String(), "resumed") {
		t.Fatalf("expected confirmation output, got %q", buf.String())
	}
}

func TestCmdShutdownClosesChannel(t *testing.T) {
	r, _ := newTestREPL()
	r.cmdShutdown(context.Background())

	select {
	case <-r.campaign.ShutdownRequested():
	default:
		t.Fatal("expected ShutdownRequested to be closed after cmdShutdown")
	}
}

func TestCompleterFiltersByPrefix(t *testing.T) {
	r, _ := newTestREPL()
	matches := r.completer("sh")
	if len(matches) != 1 || matches[0] != "shutdown" {
		t.Fatalf("completer(\"sh\") = %v, want [shutdown]", matches)
	}
}

func TestPrintHelpListsCommands(t *testing.T) {
	r, buf := newTestREPL()
	r.printHelp()
	for _, want := range []string{"stats", "pause", "resume", "shutdown", "exit"} {
		if !strings.Contains(buf.String(), want) {
			t.Fatalf("help output missing %q", want)
		}
	}
}
