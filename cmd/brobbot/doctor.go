package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"brobbot/internal/config"
	"brobbot/internal/scripts"
	"brobbot/internal/transcript"
)

// report tallies doctor results and prints one line per check.
type report struct {
	out                    io.Writer
	passed, warned, failed int
}

func (r *report) pass(check, detail string) {
	r.passed++
	fmt.Fprintf(r.out, "  [PASS] %-20s %s\n", check, detail)
}

func (r *report) fail(check, detail string) {
	r.failed++
	fmt.Fprintf(r.out, "  [FAIL] %-20s %s\n", check, detail)
}

func (r *report) warn(check, detail string) {
	r.warned++
	fmt.Fprintf(r.out, "  [WARN] %-20s %s\n", check, detail)
}

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your brobbot installation",
		Long: `Verifies that the configuration, scripts, transcript database and
listening ports are usable. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "brobbot doctor v%s\n", version)
			fmt.Fprintf(out, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			rep := &report{out: out}
			runChecks(rep, resolveConfigPath())

			fmt.Fprintf(out, "\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			fmt.Fprintf(out, "Results: %d passed, %d warnings, %d failed\n", rep.passed, rep.warned, rep.failed)
			if rep.failed > 0 {
				return fmt.Errorf("%d check(s) failed", rep.failed)
			}
			return nil
		},
	}
}

func runChecks(rep *report, cfgPath string) {
	if _, err := os.Stat(cfgPath); err != nil {
		rep.fail("Config file", fmt.Sprintf("not found at %s (run 'brobbot init')", cfgPath))
		return
	}
	rep.pass("Config file", cfgPath)

	// Load also validates.
	cfg, err := config.Load(cfgPath)
	if err != nil {
		rep.fail("Config validation", err.Error())
		return
	}
	rep.pass("Config validation", fmt.Sprintf("adapter %s, name %s", cfg.Robot.Adapter, cfg.Robot.Name))

	if selected, err := scripts.Select(cfg.Robot.Scripts); err != nil {
		rep.fail("Built-in scripts", err.Error())
	} else {
		rep.pass("Built-in scripts", fmt.Sprint(scripts.Names(selected)))
	}

	if info, err := os.Stat(cfg.Robot.ScriptsDir); err != nil {
		rep.warn("Scripts dir", fmt.Sprintf("not found: %s", cfg.Robot.ScriptsDir))
	} else if !info.IsDir() {
		rep.fail("Scripts dir", fmt.Sprintf("not a directory: %s", cfg.Robot.ScriptsDir))
	} else {
		custom, err := scripts.LoadDirectory(cfg.Robot.ScriptsDir, logger)
		if err != nil {
			rep.fail("Scripts dir", err.Error())
		} else {
			rep.pass("Scripts dir", fmt.Sprintf("%s (%d scripts)", cfg.Robot.ScriptsDir, len(custom)))
		}
	}

	if cfg.Transcript.Enabled {
		if err := checkTranscript(cfg.Transcript.DBPath); err != nil {
			rep.fail("Transcript", err.Error())
		} else {
			rep.pass("Transcript", cfg.Transcript.DBPath)
		}
	}

	if cfg.HTTP.Enabled {
		checkPortInto(rep, "HTTP port", cfg.HTTP.Host, cfg.HTTP.Port)
	}
	if cfg.Robot.Adapter == "websocket" {
		checkPortInto(rep, "WebSocket port", cfg.Adapters.WebSocket.Host, cfg.Adapters.WebSocket.Port)
	}
}

// checkTranscript opens the store, which runs migrations, and writes one probe row.
func checkTranscript(dbPath string) error {
	store, err := transcript.Open(dbPath, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := store.Recent(ctx, "doctor", 1); err != nil {
		return fmt.Errorf("not readable: %w", err)
	}
	return nil
}

func checkPortInto(rep *report, check, host string, port int) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	if err := checkPort(addr); err != nil {
		rep.warn(check, fmt.Sprintf("%s may be in use: %v", addr, err))
		return
	}
	rep.pass(check, addr+" available")
}

func checkPort(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return ln.Close()
}
