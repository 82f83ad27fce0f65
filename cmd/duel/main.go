// Command duel is the single host binary for the networked duel core:
// it runs as the authoritative server, a swarm of scripted bots, or one
// interactive client, per §6's three-mode CLI.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"duelcore/internal/bot"
	"duelcore/internal/client"
	"duelcore/internal/config"
	"duelcore/internal/server"
	"duelcore/pkg/wire"
)

// wellKnownPort is the server's default bind port; the interactive
// client mode refuses to bind this port locally (§6).
const wellKnownPort = 7777

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	configPath := flag.String("config", "", "optional YAML tunables file")
	serverAddr := flag.String("server", fmt.Sprintf("127.0.0.1:%d", wellKnownPort), "server address to connect to")
	bindAddr := flag.String("addr", fmt.Sprintf(":%d", wellKnownPort), "address to bind (server mode)")

	mode := os.Args[1]
	if err := flag.CommandLine.Parse(os.Args[2:]); err != nil {
		os.Exit(2)
	}

	tun, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("duel: %v", err)
	}

	switch {
	case mode == "server":
		runServer(*bindAddr, tun)
	case mode == "npcs":
		n := flag.Arg(0)
		count, err := strconv.Atoi(n)
		if err != nil || count <= 0 {
			log.Fatalf("duel: npcs requires a positive count, got %q", n)
		}
		runNPCs(*serverAddr, count, tun)
	default:
		port, err := strconv.Atoi(mode)
		if err != nil {
			usage()
			os.Exit(2)
		}
		if port == wellKnownPort {
			log.Fatalf("duel: local port %d is the server's well-known port", wellKnownPort)
		}
		runInteractive(port, *serverAddr, tun)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: duel server [-addr host:port]")
	fmt.Fprintln(os.Stderr, "       duel npcs [-server host:port] <N>")
	fmt.Fprintln(os.Stderr, "       duel <local-port> [-server host:port]")
}

func runServer(addr string, tun config.Tunables) {
	s, err := server.NewServer(addr, tun)
	if err != nil {
		log.Fatalf("duel: server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("duel: shutting down")
		cancel()
	}()

	log.Println("========================================")
	log.Println(" duel server")
	log.Println("========================================")
	log.Printf("listening on %s", s.LocalAddr())
	log.Println("========================================")

	if err := s.Run(ctx); err != nil {
		log.Fatalf("duel: server: %v", err)
	}
}

// runNPCs spawns count scripted clients against addr, each driving
// itself at the tick rate with a bot.Controller, until interrupted.
func runNPCs(addr string, count int, tun config.Tunables) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	done := make(chan struct{})
	for i := 0; i < count; i++ {
		go runOneBot(ctx, addr, i, tun, done)
		time.Sleep(20 * time.Millisecond) // pace the connect burst
	}

	log.Printf("duel: %d npcs connecting to %s, press Ctrl+C to stop", count, addr)
	for i := 0; i < count; i++ {
		<-done
	}
}

func runOneBot(ctx context.Context, addr string, idx int, tun config.Tunables, done chan<- struct{}) {
	defer func() { done <- struct{}{} }()

	name := fmt.Sprintf("npc%d", idx)
	c, err := client.New("", addr, name, tun, client.NoopView{})
	if err != nil {
		log.Printf("duel: npc %d: %v", idx, err)
		return
	}
	defer c.Close()

	ctrl := bot.New(int64(idx) + time.Now().UnixNano())
	tick := time.NewTicker(time.Second / time.Duration(tun.TickHz))
	defer tick.Stop()
	dt := float32(1.0 / float64(tun.TickHz))

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			c.Update(dt, ctrl.Decide())
		}
	}
}

// runInteractive runs one client bound to localPort against addr. Real
// keyboard/mouse input is an out-of-scope external collaborator (§1);
// this mode drives the client with an idle input so the networking,
// prediction, and interpolation loop is still fully exercised and
// observable via logs.
func runInteractive(localPort int, addr string, tun config.Tunables) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	name := fmt.Sprintf("player%d", localPort)
	localAddr := fmt.Sprintf(":%d", localPort)
	c, err := client.New(localAddr, addr, name, tun, client.NoopView{})
	if err != nil {
		log.Fatalf("duel: client: %v", err)
	}
	defer c.Close()

	log.Printf("duel: connected to %s as %q (local %s)", addr, name, c.LocalAddr())

	tick := time.NewTicker(time.Second / time.Duration(tun.TickHz))
	defer tick.Stop()
	dt := float32(1.0 / float64(tun.TickHz))

	for {
		select {
		case <-ctx.Done():
			log.Println("duel: disconnecting")
			return
		case <-tick.C:
			c.Update(dt, wire.Input{})
		}
	}
}
