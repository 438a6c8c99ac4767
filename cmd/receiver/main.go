// Receiver — CLI entry point.
//
// Binds a UDP socket, prints every delivered message to stdout and
// acknowledges it to the sender. Duplicates caused by lost acknowledgments
// are printed again; the tool does not deduplicate.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"

	"github.com/pterm/pterm"

	"github.com/okabre/sawlink/internal/config"
	"github.com/okabre/sawlink/internal/receiver"
	"github.com/okabre/sawlink/internal/util"
)

var version = "dev"

func main() {
	// Root context — cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	listen := flag.String("listen", "", "Bind address, host:port")
	debugMode := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *debugMode {
		util.EnableDebug()
	}

	pterm.Info.Println(fmt.Sprintf("sawlink receiver — v%s", version))

	cfg := config.Receiver{Listen: *listen}
	if err := cfg.Validate(); err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}

	laddr, err := net.ResolveUDPAddr("udp", cfg.Listen)
	if err != nil {
		util.LogError("resolve %s: %v", cfg.Listen, err)
		os.Exit(1)
	}

	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		util.LogError("bind %s: %v", laddr, err)
		os.Exit(1)
	}
	defer conn.Close()

	eng := receiver.New(conn, func(seq uint32, payload []byte) {
		fmt.Printf("Message (seq=%d): %s\n", seq, payload)
	})

	util.StartStatsReporter(ctx)
	util.LogInfo("listening on %s", conn.LocalAddr())
	fmt.Println("Press Ctrl+C to stop")

	if err := eng.Run(ctx); err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}
	util.LogInfo("receiver shutdown")
}
