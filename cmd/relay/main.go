// Relay — CLI entry point.
//
// Sits between a sender and a receiver and degrades the link: per
// direction, datagrams are dropped or held with configured probabilities.
// Policies come from flags or from a Lua profile file (-profile), which
// takes precedence. With -pcap every received datagram is also written to
// a capture file.
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
	"github.com/okabre/sawlink/internal/relay"
	"github.com/okabre/sawlink/internal/util"
)

var version = "dev"

func main() {
	// Root context — cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	listen := flag.String("listen", "", "Bind address, host:port")
	target := flag.String("target", "", "Far peer (receiver) address, host:port")

	nearDrop := flag.Int("near-drop", 0, "near→far drop probability, 0~100")
	nearDelay := flag.Int("near-delay", 0, "near→far delay probability, 0~100")
	nearDelayMin := flag.Int("near-delay-min", 0, "near→far minimum delay, ms")
	nearDelayMax := flag.Int("near-delay-max", 0, "near→far maximum delay, ms")
	farDrop := flag.Int("far-drop", 0, "far→near drop probability, 0~100")
	farDelay := flag.Int("far-delay", 0, "far→near delay probability, 0~100")
	farDelayMin := flag.Int("far-delay-min", 0, "far→near minimum delay, ms")
	farDelayMax := flag.Int("far-delay-max", 0, "far→near maximum delay, ms")

	profile := flag.String("profile", "", "Lua impairment profile (overrides the per-direction flags)")
	pcapFile := flag.String("pcap", "", "Write every received datagram to this pcap file")
	debugMode := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *debugMode {
		util.EnableDebug()
	}

	pterm.Info.Println(fmt.Sprintf("sawlink relay — v%s", version))

	cfg := config.Relay{
		Listen:   *listen,
		Target:   *target,
		Near:     config.PolicySpec{Drop: *nearDrop, Delay: *nearDelay, DelayMin: *nearDelayMin, DelayMax: *nearDelayMax},
		Far:      config.PolicySpec{Drop: *farDrop, Delay: *farDelay, DelayMin: *farDelayMin, DelayMax: *farDelayMax},
		PcapFile: *pcapFile,
	}

	if *profile != "" {
		p, err := config.LoadProfile(*profile)
		if err != nil {
			util.LogError("%v", err)
			os.Exit(1)
		}
		cfg.Near, cfg.Far = p.Near, p.Far
		util.LogInfo("loaded impairment profile %s", *profile)
	}

	if err := cfg.Validate(); err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}

	laddr, err := net.ResolveUDPAddr("udp", cfg.Listen)
	if err != nil {
		util.LogError("resolve %s: %v", cfg.Listen, err)
		os.Exit(1)
	}
	far, err := net.ResolveUDPAddr("udp", cfg.Target)
	if err != nil {
		util.LogError("resolve %s: %v", cfg.Target, err)
		os.Exit(1)
	}

	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		util.LogError("bind %s: %v", laddr, err)
		os.Exit(1)
	}
	defer conn.Close()

	var capture *relay.Capture
	if cfg.PcapFile != "" {
		f, err := os.Create(cfg.PcapFile)
		if err != nil {
			util.LogError("pcap %s: %v", cfg.PcapFile, err)
			os.Exit(1)
		}
		capture = relay.NewCapture(f)
		defer capture.Close()
		util.LogInfo("capturing datagrams to %s", cfg.PcapFile)
	}

	eng := relay.New(conn, far, cfg.Near.Policy(), cfg.Far.Policy(), capture)

	util.StartStatsReporter(ctx)
	util.LogInfo("relaying %s -> %s", conn.LocalAddr(), far)
	util.LogInfo("near->far: drop=%d%%, delay=%d%% (%d-%dms)",
		cfg.Near.Drop, cfg.Near.Delay, cfg.Near.DelayMin, cfg.Near.DelayMax)
	util.LogInfo("far->near: drop=%d%%, delay=%d%% (%d-%dms)",
		cfg.Far.Drop, cfg.Far.Delay, cfg.Far.DelayMin, cfg.Far.DelayMax)
	fmt.Println("Press Ctrl+C to stop")

	if err := eng.Run(ctx); err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}
	util.LogInfo("relay shutdown")
}
