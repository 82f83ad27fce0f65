// Package client implements the client side of §4.3: the three clocks,
// local prediction, snapshot-triggered reconciliation, and remote-entity
// interpolation with a dead-reckoning fallback. It hands the result of
// each frame to an injected ClientView so the whole loop is testable
// without a real renderer.
package client

import (
	"log"
	"math"
	"net"
	"time"

	"duelcore/internal/config"
	"duelcore/pkg/limits"
	"duelcore/pkg/sim"
	"duelcore/pkg/transport"
	"duelcore/pkg/wire"
	"duelcore/pkg/world"
)

// snapshotEntry is one received snapshot, timestamped by server_time.
type snapshotEntry struct {
	Timestamp float32
	Players   [limits.MaxPlayers]sim.Player
}

// snapshotRing is a fixed-capacity ring of the most recent snapshots,
// kept monotone non-decreasing in timestamp (§2 invariant 4).
type snapshotRing struct {
	buf   [limits.ClientSnapshots]snapshotEntry
	count int
	head  int // index of the oldest entry
}

func (r *snapshotRing) push(e snapshotEntry) {
	if newest, ok := r.newest(); ok && e.Timestamp < newest.Timestamp {
		return // a late, older snapshot is not added
	}
	idx := (r.head + r.count) % limits.ClientSnapshots
	r.buf[idx] = e
	if r.count < limits.ClientSnapshots {
		r.count++
	} else {
		r.head = (r.head + 1) % limits.ClientSnapshots
	}
}

func (r *snapshotRing) newest() (snapshotEntry, bool) {
	if r.count == 0 {
		return snapshotEntry{}, false
	}
	return r.buf[(r.head+r.count-1)%limits.ClientSnapshots], true
}

// bracket returns the two consecutive entries bracketing t, newest-first
// search since recent entries are far more likely to bracket render_time.
func (r *snapshotRing) bracket(t float32) (before, after snapshotEntry, ok bool) {
	for i := r.count - 1; i > 0; i-- {
		cur := r.buf[(r.head+i)%limits.ClientSnapshots]
		prev := r.buf[(r.head+i-1)%limits.ClientSnapshots]
		if prev.Timestamp <= t && t <= cur.Timestamp {
			return prev, cur, true
		}
	}
	return snapshotEntry{}, snapshotEntry{}, false
}

// pendingInput is one input still in the local history, kept for replay
// during reconciliation (§4.3 step 2-3).
type pendingInput struct {
	wire.Input
}

// ClientView receives the fully interpolated frame each tick (§4.3 step
// 5). Implementations outside this package own the actual rendering;
// NoopView is a default that discards everything.
type ClientView interface {
	Render(f Frame)
	PlayerLeft(idx int)
	PlayerDied(killerIdx, killedIdx int)
}

// NoopView implements ClientView by doing nothing, for tests and
// headless bot drivers.
type NoopView struct{}

func (NoopView) Render(Frame)       {}
func (NoopView) PlayerLeft(int)     {}
func (NoopView) PlayerDied(int, int) {}

// Frame is the hand-off to the renderer collaborator: the local player's
// predicted/reconciled state plus every other slot's interpolated state.
type Frame struct {
	RenderTime float32
	LocalIndex int
	Players    [limits.MaxPlayers]sim.Player
	Shots      []wire.QuantizedShot
}

// Client owns one player's connection to a server: the transport
// endpoint, the three clocks, prediction and reconciliation state, and
// the remote-entity interpolator. One value per connected player (or
// bot), never a file-scope global (§9 "single owned value" note).
type Client struct {
	ep         *transport.Endpoint
	serverAddr *net.UDPAddr
	tun        config.Tunables
	view       ClientView
	arena      world.Arena

	LocalIndex int
	connected  bool

	serverTime   float32
	renderTime   float32
	currentDelay float32
	targetDelay  float32

	nextSequence uint32
	history      [limits.ClientInputHistory]pendingInput
	historyHead  int
	historyCount int

	predicted  sim.Player
	lastRemote [limits.MaxPlayers]sim.Player

	snapshots snapshotRing
	dead      deadReckoner

	pendingShots []wire.QuantizedShot
}

// New binds a local endpoint at localAddr ("" picks any free port),
// sends CONNECT_REQUEST to serverAddr, and returns the Client; call
// Update in a loop to drive it.
func New(localAddr, serverAddr, name string, tun config.Tunables, view ClientView) (*Client, error) {
	ep, err := transport.NewEndpoint(localAddr)
	if err != nil {
		return nil, err
	}
	ep.PeerInactivityTimeout = time.Duration(tun.PeerInactivitySec * float64(time.Second))
	ep.MaxRetries = tun.ReliableRetryLimit
	ep.RetransmitFactor = tun.RetransmitFactor
	addr, err := net.ResolveUDPAddr("udp", serverAddr)
	if err != nil {
		return nil, err
	}
	if view == nil {
		view = NoopView{}
	}
	c := &Client{
		ep:           ep,
		serverAddr:   addr,
		tun:          tun,
		view:         view,
		arena:        world.Default(),
		LocalIndex:   sim.InactiveIndex,
		currentDelay: float32(tun.RenderDelayInitSec),
		targetDelay:  float32(tun.RenderDelayInitSec),
	}
	for i := range c.lastRemote {
		c.lastRemote[i].Index = sim.InactiveIndex
	}
	c.ep.Start()

	req := wire.NewConnectRequest(name)
	buf := make([]byte, 33)
	n := wire.EncodeConnectRequest(buf, req)
	if err := c.ep.SendReliable(c.serverAddr, wire.MsgConnectRequest, buf[:n]); err != nil {
		c.ep.Stop()
		return nil, err
	}
	return c, nil
}

// Close stops the underlying transport.
func (c *Client) Close() {
	c.ep.Stop()
}

// LocalAddr returns the bound local address of the underlying endpoint.
func (c *Client) LocalAddr() *net.UDPAddr {
	return c.ep.LocalAddr()
}

// Update runs one §4.3 "per frame" cycle: advance render_time, gather
// and predict the given input, drain the transport and reconcile, build
// the interpolated frame, and hand it to the view.
func (c *Client) Update(dt float32, in wire.Input) {
	c.advanceClocks(dt)

	in.Sequence = c.nextSequence
	c.nextSequence++
	in.Time = c.serverTime
	in.ShotTime = c.renderTime
	c.sendInput(in)
	c.recordHistory(in)
	c.predicted = c.predictLocal(in, dt)

	c.drainTransport()
	c.adaptDelay(dt)

	frame := c.buildFrame()
	c.view.Render(frame)
}

// advanceClocks implements §4.3 step 1: server_time advances by dt every
// frame (and is snapped to an arriving snapshot's stamp elsewhere, in
// onSnapshot); render_time advances by dt and then nudges toward
// server_time - current_delay.
func (c *Client) advanceClocks(dt float32) {
	c.serverTime += dt

	c.renderTime += dt
	target := c.serverTime - c.currentDelay
	errVal := target - c.renderTime
	abs := errVal
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs > 1.0:
		c.renderTime = target
	case abs > 0.001:
		k := float32(1.0)
		if abs > 0.1 {
			k = 4.0
		}
		c.renderTime += errVal * k * dt
	}
}

// delayChaseRate is the exponential rate (per second) at which
// current_delay chases target_delay; §4.3 names the chase as
// exponential but leaves its rate to the implementer.
const delayChaseRate = 5.0

// adaptDelay implements §4.3's adaptive delay: grow or shrink
// target_delay based on how much buffer remains ahead of render_time,
// then let current_delay exponentially chase it.
func (c *Client) adaptDelay(dt float32) {
	min := float32(c.tun.RenderDelayMinSec)
	max := float32(c.tun.RenderDelayMaxSec)

	newest, ok := c.snapshots.newest()
	if !ok {
		return
	}
	futureBuffer := newest.Timestamp - c.renderTime
	switch {
	case futureBuffer < min:
		c.targetDelay += 0.01
	case futureBuffer > max:
		c.targetDelay -= 0.01
	}
	if c.targetDelay < min {
		c.targetDelay = min
	}
	if c.targetDelay > max {
		c.targetDelay = max
	}
	c.currentDelay += (c.targetDelay - c.currentDelay) * delayChaseRate * dt
}

func (c *Client) sendInput(in wire.Input) {
	if !c.connected {
		return
	}
	buf := make([]byte, wire.InputPayloadSize)
	n := wire.EncodeInput(buf, in)
	_ = c.ep.SendUnreliable(c.serverAddr, wire.MsgInput, buf[:n])
}

func (c *Client) recordHistory(in wire.Input) {
	idx := (c.historyHead + c.historyCount) % limits.ClientInputHistory
	c.history[idx] = pendingInput{in}
	if c.historyCount < limits.ClientInputHistory {
		c.historyCount++
	} else {
		c.historyHead = (c.historyHead + 1) % limits.ClientInputHistory
	}
}

// inputsSince returns every buffered input with Sequence > lastProcessed,
// in ascending sequence order, for reconciliation replay.
func (c *Client) inputsSince(lastProcessed uint32) []wire.Input {
	out := make([]wire.Input, 0, c.historyCount)
	for i := 0; i < c.historyCount; i++ {
		in := c.history[(c.historyHead+i)%limits.ClientInputHistory].Input
		if in.Sequence > lastProcessed {
			out = append(out, in)
		}
	}
	return out
}

func (c *Client) predictLocal(in wire.Input, dt float32) sim.Player {
	base := c.predicted
	if base.Index == sim.InactiveIndex {
		base = c.localFromLastRemote()
	}
	base = sim.ApplyInput(base, in, dt)
	return sim.StepPhysics(base, dt, c.arena)
}

func (c *Client) localFromLastRemote() sim.Player {
	if c.LocalIndex == sim.InactiveIndex {
		return sim.Player{Index: sim.InactiveIndex}
	}
	p := c.lastRemote[c.LocalIndex]
	p.Active = true
	if p.Health == 0 {
		p.Health = c.tun.StartingHealth
	}
	return p
}

func (c *Client) drainTransport() {
	for {
		polled, ok := c.ep.Poll()
		if !ok {
			return
		}
		msg, err := wire.Decode(polled.Payload)
		c.ep.Release(polled)
		if err != nil {
			continue
		}

		switch m := msg.(type) {
		case wire.ConnectAccept:
			c.onConnectAccept(m)
		case wire.Snapshot:
			c.onSnapshot(m)
		case wire.PlayerLeft:
			c.view.PlayerLeft(int(m.PlayerIdx))
		case wire.PlayerDied:
			c.view.PlayerDied(int(m.KillerIdx), int(m.KilledIdx))
		default:
			// SNAPSHOT/PLAYER_LEFT/PLAYER_DIED/CONNECT_ACCEPT are the only
			// server->client types; anything else is unreachable here.
		}
	}
}

func (c *Client) onConnectAccept(m wire.ConnectAccept) {
	c.LocalIndex = int(m.PlayerIndex)
	c.serverTime = m.ServerTime
	c.renderTime = m.ServerTime - c.currentDelay
	c.connected = true
	log.Printf("client: connected as player %d, server_time=%.3f", c.LocalIndex, m.ServerTime)
}

// onSnapshot implements §4.3 step 1 (resync) and step 3 (reconcile) for
// the newly arrived snapshot.
func (c *Client) onSnapshot(snap wire.Snapshot) {
	if diff := snap.ServerTime - c.serverTime; diff > 0.1 || diff < -0.1 {
		c.serverTime = snap.ServerTime
	}

	var players [limits.MaxPlayers]sim.Player
	for i := 0; i < limits.MaxPlayers; i++ {
		players[i] = decodeQuantizedPlayer(i, snap.Players[i])
	}
	c.snapshots.push(snapshotEntry{Timestamp: snap.ServerTime, Players: players})
	c.lastRemote = players

	c.pendingShots = c.pendingShots[:0]
	for i := 0; i < int(snap.ShotCount) && i < limits.MaxShots; i++ {
		c.pendingShots = append(c.pendingShots, snap.Shots[i])
	}

	if c.LocalIndex == sim.InactiveIndex {
		return
	}
	authoritative := players[c.LocalIndex]
	c.reconcile(authoritative)
}

// reconcile implements §4.3 step 3's reconciliation: authoritative state
// is the base, every buffered input with sequence > last_processed is
// replayed on top, and a large divergence from the pre-reconcile
// prediction is logged (never acted on).
func (c *Client) reconcile(authoritative sim.Player) {
	prePredicted := c.predicted

	state := authoritative
	for _, in := range c.inputsSince(authoritative.LastProcessed) {
		state = sim.ApplyInput(state, in, fixedReplayDt)
		state = sim.StepPhysics(state, fixedReplayDt, c.arena)
	}
	c.predicted = state

	if prePredicted.Index != sim.InactiveIndex {
		d := prePredicted.Position.Sub(state.Position)
		dist := sqrtf(d.X*d.X + d.Y*d.Y + d.Z*d.Z)
		if dist > float32(c.tun.ReconcileWarnM) {
			log.Printf("client: reconciliation diverged by %.3fm", dist)
		}
	}
}

// fixedReplayDt is the per-input dt used when replaying buffered inputs
// during reconciliation. The server ticks inputs at a fixed rate, so
// replay uses that same fixed step rather than a wall-clock delta.
const fixedReplayDt = 1.0 / 60.0

func decodeQuantizedPlayer(idx int, q wire.QuantizedPlayer) sim.Player {
	return sim.Player{
		Index: idx,
		Position: world.Vec3{
			X: wire.DequantizePos(q.PosX),
			Y: wire.DequantizePos(q.PosY),
			Z: wire.DequantizePos(q.PosZ),
		},
		Velocity: world.Vec3{
			X: wire.DequantizeVel(q.VelX),
			Y: wire.DequantizeVel(q.VelY),
			Z: wire.DequantizeVel(q.VelZ),
		},
		Yaw:            wire.DequantizeYaw(q.Yaw),
		Pitch:          wire.DequantizePitch(q.Pitch),
		OnGround:       q.Flags&wire.FlagOnGround != 0,
		WallRunning:    q.Flags&wire.FlagWallRunning != 0,
		JumpsRemaining: wire.JumpsRemaining(q.Flags),
		Health:         int(q.Health),
		Active:         q.Flags&wire.FlagActive != 0,
		LastProcessed:  q.LastProcessed,
	}
}

func sqrtf(v float32) float32 {
	return float32(math.Sqrt(float64(v)))
}
