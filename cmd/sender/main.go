// Sender — CLI entry point.
//
// Reads newline-delimited messages from stdin and delivers each one
// reliably to the target over UDP, retransmitting on timeout until
// acknowledged or the retry budget is exhausted. Point -target at a relay
// to test delivery over a degraded link.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"time"

	"github.com/pterm/pterm"

	"github.com/okabre/sawlink/internal/config"
	"github.com/okabre/sawlink/internal/protocol"
	"github.com/okabre/sawlink/internal/sender"
	"github.com/okabre/sawlink/internal/util"
)

var version = "dev"

func main() {
	// Root context — cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	target := flag.String("target", "", "Receiver (or relay) address, host:port")
	timeout := flag.Duration("timeout", 2*time.Second, "Per-attempt wait for an acknowledgment")
	retries := flag.Int("retries", 5, "Transmission attempts per message")
	debugMode := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *debugMode {
		util.EnableDebug()
	}

	pterm.Info.Println(fmt.Sprintf("sawlink sender — v%s", version))

	cfg := config.Sender{Target: *target, Timeout: *timeout, MaxRetries: *retries}
	if err := cfg.Validate(); err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}

	dest, err := net.ResolveUDPAddr("udp", cfg.Target)
	if err != nil {
		util.LogError("resolve %s: %v", cfg.Target, err)
		os.Exit(1)
	}

	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		util.LogError("socket: %v", err)
		os.Exit(1)
	}
	defer conn.Close()

	eng, err := sender.New(conn, dest, cfg)
	if err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}

	util.StartStatsReporter(ctx)
	util.LogInfo("sending to %s (timeout=%v, retries=%d)", dest, cfg.Timeout, cfg.MaxRetries)
	fmt.Println("Enter messages (Ctrl+D to quit):")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		payload := []byte(line)
		if len(payload) > protocol.MaxPayload {
			util.LogWarning("truncating %d-byte line to %d bytes", len(payload), protocol.MaxPayload)
			payload = payload[:protocol.MaxPayload]
		}

		err := eng.Send(ctx, payload)
		var failure *sender.Failure
		switch {
		case err == nil:
			fmt.Println("✓ delivered")
		case errors.As(err, &failure):
			fmt.Printf("✗ lost after %d attempts (seq=%d)\n", failure.Attempts, failure.Seq)
		case errors.Is(err, context.Canceled):
			util.LogInfo("sender interrupted")
			return
		default:
			util.LogError("send: %v", err)
		}
	}

	if err := scanner.Err(); err != nil {
		util.LogError("stdin: %v", err)
	}
	util.LogInfo("sender shutdown")
}
