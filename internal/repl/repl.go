// Package repl is the interactive operator console for a running
// fuzzing campaign: a liner-driven read-eval-print loop issuing the
// same pause/resume/stats/shutdown commands fuzzrpc exposes over gRPC,
// for an operator sitting at the same terminal as the fuzzer.
package repl

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/peterh/liner"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/raresmith/branchfuzz/internal/fuzzrpc"
)

var commands = []string{
	"stats", "pause", "resume", "shutdown",
	"help", "exit", "quit", "q", "clear", "cls",
}

// REPL is the interactive command loop, driven directly against a
// fuzzrpc.Campaign rather than by dialing a gRPC server — there is no
// network hop when the console runs in the same process as the fuzzer.
type REPL struct {
	campaign *fuzzrpc.Campaign
	out      io.Writer
	liner    *liner.State
}

// New builds a REPL over campaign, writing prompts and command output
// to out (normally os.Stdout).
func New(campaign *fuzzrpc.Campaign, out io.Writer) *REPL {
	return &REPL{campaign: campaign, out: out}
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".branchfuzz_history")
}

// Run starts the loop; it blocks until the operator quits or EOF.
func (r *REPL) Run(ctx context.Context) error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(r.completer)

	if f, err := os.Open(historyFile()); err == nil {
		r.liner.ReadHistory(f)
		f.Close()
	}

	fmt.Fprintln(r.out, "branchfuzz console. Type 'help' for available commands.")

	for {
		line, err := r.liner.Prompt("branchfuzz> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Fprintln(r.out, "\nBye!")
				break
			}
			return fmt.Errorf("repl: reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.liner.AppendHistory(line)

		cmd := strings.ToLower(strings.Fields(line)[0])
		switch cmd {
		case "exit", "quit", "q":
			r.saveHistory()
			return nil
		case "help", "?":
			r.printHelp()
		case "stats":
			r.cmdStats(ctx)
		case "pause":
			r.cmdPause(ctx)
		case "resume":
			r.cmdResume(ctx)
		case "shutdown":
			r.cmdShutdown(ctx)
		case "clear", "cls":
			fmt.Fprint(r.out, "\033[H\033[2J")
		default:
			fmt.Fprintf(r.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}

	r.saveHistory()
	return nil
}

func (r *REPL) saveHistory() {
	if path := historyFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			r.liner.WriteHistory(f)
			f.Close()
		}
	}
}

func (r *REPL) completer(line string) []string {
	var out []string
	lower := strings.ToLower(line)
	for _, c := range commands {
		if strings.HasPrefix(c, lower) {
			out = append(out, c)
		}
	}
	return out
}

func (r *REPL) printHelp() {
	fmt.Fprintln(r.out, "Commands:")
	fmt.Fprintln(r.out, "  stats                 Show execution/queue/pause counters")
	fmt.Fprintln(r.out, "  pause                 Pause the fuzzing loop")
	fmt.Fprintln(r.out, "  resume                Resume a paused fuzzing loop")
	fmt.Fprintln(r.out, "  shutdown              Request a graceful campaign shutdown")
	fmt.Fprintln(r.out, "  clear / cls           Clear the screen")
	fmt.Fprintln(r.out, "  help                  Show this help")
	fmt.Fprintln(r.out, "  exit / quit / q       Exit the console (does not stop the campaign)")
}

func (r *REPL) cmdStats(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	st, err := r.campaign.Stats(ctx, &emptypb.Empty{})
	if err != nil {
		fmt.Fprintf(r.out, "error: %v\n", err)
		return
	}
	fields := st.AsMap()
	fmt.Fprintf(r.out, "executions:   %v\n", fields["executions"])
	fmt.Fprintf(r.out, "stage finds:  %v\n", fields["stageFinds"])
	fmt.Fprintf(r.out, "stage cycles: %v\n", fields["stageCycles"])
	fmt.Fprintf(r.out, "queue len:    %v\n", fields["queueLen"])
	fmt.Fprintf(r.out, "paused:       %v\n", fields["paused"])
}

func (r *REPL) cmdPause(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if _, err := r.campaign.Pause(ctx, &emptypb.Empty{}); err != nil {
		fmt.Fprintf(r.out, "error: %v\n", err)
		return
	}
	fmt.Fprintln(r.out, "OK: paused")
}

func (r *REPL) cmdResume(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if _, err := r.campaign.Resume(ctx, &emptypb.Empty{}); err != nil {
		fmt.Fprintf(r.out, "error: %v\n", err)
		return
	}
	fmt.Fprintln(r.out, "OK: resumed")
}

func (r *REPL) cmdShutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if _, err := r.campaign.Shutdown(ctx, &emptypb.Empty{}); err != nil {
		fmt.Fprintf(r.out, "error: %v\n", err)
		return
	}
	fmt.Fprintln(r.out, "OK: shutdown requested")
}
