package server

import (
	"net"
	"testing"
	"time"

	"duelcore/internal/config"
	"duelcore/pkg/limits"
	"duelcore/pkg/wire"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := NewServer("127.0.0.1:0", config.Default())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { s.ep.Stop() })
	return s
}

func udpAddr(port int) *net.UDPAddr {
	return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port}
}

func TestHandleConnectAssignsFirstFreeSlot(t *testing.T) {
	s := newTestServer(t)
	s.ep.Start()

	addr := udpAddr(1)
	s.handleConnect(addr, wire.NewConnectRequest("p1"))

	idx, ok := s.byAddr[addr.String()]
	if !ok || idx != 0 {
		t.Fatalf("expected player 0, got idx=%d ok=%v", idx, ok)
	}
	if !s.slots[0].active() || s.slots[0].Player.Health != config.Default().StartingHealth {
		t.Fatalf("expected slot 0 active with full health, got %+v", s.slots[0].Player)
	}
}

func TestHandleConnectIgnoresRepeatFromSameAddress(t *testing.T) {
	s := newTestServer(t)
	s.ep.Start()

	addr := udpAddr(1)
	s.handleConnect(addr, wire.NewConnectRequest("p1"))
	s.handleConnect(addr, wire.NewConnectRequest("p1-again"))

	count := 0
	for i := range s.slots {
		if s.slots[i].active() {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one slot claimed, got %d", count)
	}
}

func TestHandleConnectRejectsWhenFull(t *testing.T) {
	s := newTestServer(t)
	s.ep.Start()

	for i := 0; i < limits.MaxPlayers; i++ {
		s.handleConnect(udpAddr(100+i), wire.NewConnectRequest("p"))
	}
	s.handleConnect(udpAddr(999), wire.NewConnectRequest("overflow"))

	if _, ok := s.byAddr[udpAddr(999).String()]; ok {
		t.Fatalf("expected the server-full connect to be dropped")
	}
}

func TestProcessInputsDropsStaleSequences(t *testing.T) {
	s := newTestServer(t)
	addr := udpAddr(1)
	s.handleConnect(addr, wire.NewConnectRequest("p1"))

	s.handleInput(addr, wire.Input{Sequence: 5, MoveZ: 1})
	s.processInputs(1.0 / 60)
	if s.slots[0].Player.LastProcessed != 5 {
		t.Fatalf("expected last_processed=5, got %d", s.slots[0].Player.LastProcessed)
	}

	s.handleInput(addr, wire.Input{Sequence: 3, MoveZ: 1})
	s.processInputs(1.0 / 60)
	if s.slots[0].Player.LastProcessed != 5 {
		t.Fatalf("stale sequence 3 should not move last_processed past 5, got %d", s.slots[0].Player.LastProcessed)
	}
}

func TestLagCompensatedShotUsesHistoricalPosition(t *testing.T) {
	s := newTestServer(t)
	addrA := udpAddr(1)
	addrB := udpAddr(2)
	s.handleConnect(addrA, wire.NewConnectRequest("a"))
	s.handleConnect(addrB, wire.NewConnectRequest("b"))

	s.slots[1].Player.Position.X = s.slots[0].Player.Position.X // in A's line of fire
	s.slots[1].Player.Position.Z = 10
	s.history.push(historyFrame{Timestamp: 1.0, Players: s.playerArray()})

	s.slots[1].Player.Position.Z = 20 // B has since moved
	s.slots[0].Player.Yaw = 0 // sim.LookDir(yaw=0, pitch=0) faces +Z

	s.resolveShot(0, wire.Input{ShotTime: 1.0})

	if s.slots[1].Player.Health != config.Default().StartingHealth-config.Default().BulletDamage {
		t.Fatalf("expected player B to take damage from the historical hit, got health %d", s.slots[1].Player.Health)
	}
}

func TestResolveShotTriggersRespawnTimerOnKill(t *testing.T) {
	s := newTestServer(t)
	addrA := udpAddr(1)
	addrB := udpAddr(2)
	s.handleConnect(addrA, wire.NewConnectRequest("a"))
	s.handleConnect(addrB, wire.NewConnectRequest("b"))

	s.slots[1].Player.Health = 5
	s.slots[1].Player.Position.X = s.slots[0].Player.Position.X // in A's line of fire
	s.slots[1].Player.Position.Z = 10
	s.history.push(historyFrame{Timestamp: 1.0, Players: s.playerArray()})

	s.resolveShot(0, wire.Input{ShotTime: 1.0})

	if s.slots[1].Player.Alive() {
		t.Fatalf("expected player B to die")
	}
	if s.slots[1].RespawnAt.IsZero() {
		t.Fatalf("expected a respawn timer to be scheduled")
	}
}

func TestAdvanceRespawnsRevivesAtFullHealth(t *testing.T) {
	s := newTestServer(t)
	addr := udpAddr(1)
	s.handleConnect(addr, wire.NewConnectRequest("a"))
	s.slots[0].Player.Health = 0
	s.slots[0].RespawnAt = time.Now().Add(-time.Millisecond)

	s.advanceRespawns(time.Now())

	if !s.slots[0].Player.Alive() || s.slots[0].Player.Health != config.Default().StartingHealth {
		t.Fatalf("expected full-health respawn, got %+v", s.slots[0].Player)
	}
	if !s.slots[0].RespawnAt.IsZero() {
		t.Fatalf("expected respawn timer to clear")
	}
}

func TestOnPeerRemovedDeactivatesSlot(t *testing.T) {
	s := newTestServer(t)
	addr := udpAddr(1)
	s.handleConnect(addr, wire.NewConnectRequest("a"))

	s.onPeerRemoved(addr)

	if s.slots[0].active() {
		t.Fatalf("expected slot to be deactivated after peer removal")
	}
	if _, ok := s.byAddr[addr.String()]; ok {
		t.Fatalf("expected address mapping to be cleared")
	}
}

func TestAcceptPolicyThrottlesRepeatedUnrecognizedSenders(t *testing.T) {
	s := newTestServer(t)
	s.tun.AcceptRatePerSec = 1
	s.tun.AcceptBurst = 1
	addr := udpAddr(1)

	if !s.acceptPolicy(addr) {
		t.Fatalf("first attempt should be allowed")
	}
	if s.acceptPolicy(addr) {
		t.Fatalf("second immediate attempt should be throttled")
	}
}
