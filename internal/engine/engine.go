// Copyright 2026 The IPEngine Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package engine

import (
	"math/rand"
	"net"
	"time"

	"github.com/mdlayher/ethernet"

	"github.com/netlayer/ipengine/internal/log"
	"github.com/netlayer/ipengine/internal/serrors"
	"github.com/netlayer/ipengine/pkg/ipv4"
)

// Options carries the §6 configuration knobs.
type Options struct {
	TimeToLive              uint8
	MulticastTimeToLive     uint8
	FragmentTimeout         time.Duration
	ForceBroadcast          bool
	UseProxyARP             bool
	ReassemblySweepInterval time.Duration
	// FragmentsCarryFullPacket selects the §9 Open-Question behavior;
	// see ipv4.Reassembler.
	FragmentsCarryFullPacket bool
}

// DefaultOptions returns the §6 documented defaults.
func DefaultOptions() Options {
	return Options{
		TimeToLive:              64,
		MulticastTimeToLive:     1,
		FragmentTimeout:         ipv4.DefaultReassemblyTimeout,
		ForceBroadcast:          false,
		UseProxyARP:             true,
		ReassemblySweepInterval: 10 * time.Second,
	}
}

// Engine is the IPv4 network-layer core: ingress/egress pipeline,
// multicast forwarder, higher-layer ingress, and protocol demux (§2, §4).
// It holds no goroutine of its own; callers drive it synchronously
// (§5: "single-threaded cooperative event-driven"). loopback re-entry and
// IP-in-IP decapsulation push onto an internal work queue instead of
// recursing (§9 Design Notes, "Loopback reentry").
type Engine struct {
	opts Options

	ifaces InterfaceTable
	routes RoutingTable
	arp    ARP
	icmp   ICMP
	sink   Sink

	demux *ipv4.ProtocolTable
	reasm *ipv4.Reassembler

	metrics *Metrics

	running   bool
	nextIdent uint32

	lastPurge time.Time

	// pending holds ingress work items queued by a re-entrant producer
	// (loopback egress, tunnel decapsulation) instead of recursing into
	// ingress() directly.
	pending []pendingIngress

	// clock is the "now" of the event currently being processed; it is
	// set once at each external entry point that takes a time (FromQueue,
	// FromTransport) and reused by everything that entry point's work
	// fans out into, including items it pushes onto pending.
	clock time.Time

	// randFloat64 backs the probabilistic header-corruption check
	// (§4.E step 1); overridable in tests for determinism.
	randFloat64 func() float64
}

type pendingIngress struct {
	ifaceID     int
	d           *ipv4.Datagram
	hasBitError bool
}

// Collaborators bundles the external dependencies the engine is wired
// against at construction time. All fields are required, including
// Metrics: every call site increments or sets a collector unconditionally
// rather than guarding against a nil *Metrics.
type Collaborators struct {
	Interfaces InterfaceTable
	Routes     RoutingTable
	ARP        ARP
	ICMP       ICMP
	Sink       Sink
	Metrics    *Metrics
}

// New constructs an Engine. Call Up before feeding it any events.
func New(opts Options, c Collaborators) *Engine {
	reasm := ipv4.NewReassembler(opts.FragmentTimeout)
	reasm.FragmentsCarryFullPacket = opts.FragmentsCarryFullPacket
	return &Engine{
		opts:        opts,
		ifaces:      c.Interfaces,
		routes:      c.Routes,
		arp:         c.ARP,
		icmp:        c.ICMP,
		sink:        c.Sink,
		demux:       ipv4.NewProtocolTable(),
		reasm:       reasm,
		metrics:     c.Metrics,
		randFloat64: rand.Float64,
	}
}

// Up marks the engine running (§6, lifecycle operation "Up"). The
// ingress queue must be empty at entry; Up fails with a configuration
// error if there is no loopback interface, since local delivery depends
// on one being present (§7: "Configuration faults... fatal").
func (e *Engine) Up() error {
	if len(e.pending) != 0 {
		return serrors.New("ingress queue not empty on Up", "pending", len(e.pending))
	}
	if _, ok := e.ifaces.Loopback(); !ok {
		return serrors.New("no loopback interface configured")
	}
	e.running = true
	e.lastPurge = time.Time{}
	log.Info("engine up")
	return nil
}

// Down marks the engine stopped, drops all subsequent messages, and
// flushes the pending ingress queue (§6, lifecycle operation "Down").
func (e *Engine) Down() {
	e.running = false
	e.pending = nil
	log.Info("engine down")
}

// Crash is Down with CRASH-stage semantics; the engine has no
// distinction beyond logging, since there is no pending timer to cancel
// beyond the ingress queue already flushed by Down.
func (e *Engine) Crash() {
	log.Error("engine crash")
	e.Down()
}

// IsRunning reports whether Up has been called without a matching
// Down/Crash since.
func (e *Engine) IsRunning() bool {
	return e.running
}

// Options returns the configuration the engine was constructed with.
func (e *Engine) Options() Options {
	return e.opts
}

// RegisterProtocol implements the §6 registration message: it maps
// protocol to the higher-layer egress slot, taking effect immediately
// (§5: "Protocol-registration events take effect before any subsequent
// non-registration event is processed" — guaranteed here simply by
// registration being a direct synchronous call, never queued).
func (e *Engine) RegisterProtocol(protocol uint8, egressSlot int) {
	e.demux.Register(protocol, egressSlot)
}

// nextIdentification returns the next value of the monotonic 16-bit
// identification counter used by HL ingress (§4.H), wrapping at 2^16.
func (e *Engine) nextIdentification() uint16 {
	id := uint16(e.nextIdent)
	e.nextIdent++
	return id
}

// maybeSweepReassembly implements the §5 lazy-sweep cadence: at most
// once per ReassemblySweepInterval of wall/sim time, opportunistically
// called during normal ingress processing rather than on a dedicated
// timer.
func (e *Engine) maybeSweepReassembly(now time.Time) {
	interval := e.opts.ReassemblySweepInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if e.lastPurge.IsZero() {
		e.lastPurge = now
		return
	}
	if now.Sub(e.lastPurge) < interval {
		return
	}
	e.lastPurge = now
	purged := e.reasm.PurgeStale(now)
	if purged > 0 {
		log.Debug("purged stale reassembly entries", "count", purged)
	}
	e.metrics.ReassemblyEntries.Set(float64(e.reasm.EntryCount()))
	e.metrics.ReassemblyBytes.Set(float64(e.reasm.Occupancy()))
}

// enqueueIngress schedules d for ingress processing as interface
// ifaceID without recursing into ingress() (§9 Design Notes). Internally
// produced re-entry (loopback egress, tunnel decapsulation) never
// carries a link-layer bit error, since it never touched a wire.
func (e *Engine) enqueueIngress(ifaceID int, d *ipv4.Datagram) {
	e.pending = append(e.pending, pendingIngress{ifaceID: ifaceID, d: d})
}

// drainPending runs every queued ingress item to completion, in FIFO
// order, bounding the loopback/tunnel-reinjection recursion to a work
// loop instead of the call stack.
func (e *Engine) drainPending() {
	for len(e.pending) > 0 {
		item := e.pending[0]
		e.pending = e.pending[1:]
		e.ingress(item.ifaceID, item.d, item.hasBitError)
	}
}

// FromQueue is the per-interface ingress gate (§6): a datagram arrived
// on the link attached to ifaceID. hasBitError models the link layer
// having flagged the frame as corrupted in transit (§4.E step 1).
func (e *Engine) FromQueue(ifaceID int, d *ipv4.Datagram, hasBitError bool, now time.Time) {
	if !e.running {
		log.Debug("dropping datagram, engine not running", "iface", ifaceID)
		return
	}
	e.clock = now
	e.maybeSweepReassembly(now)
	e.pending = append(e.pending, pendingIngress{ifaceID: ifaceID, d: d, hasBitError: hasBitError})
	e.drainPending()
}

// ResumeFromARP is the from-ARP ingress gate (§6): ARP has resolved (or
// the caller otherwise decided) the MAC for a previously pending frame.
// The engine re-dispatches directly to that interface's egress queue
// (§4.F), it does not re-run routing.
func (e *Engine) ResumeFromARP(pending *PendingFrame, mac net.HardwareAddr, ethType ethernet.EtherType) {
	if !e.running {
		return
	}
	frame := &LinkFrame{DstMAC: mac, EtherType: ethType}
	e.sink.EmitToInterface(pending.IfaceID, pending.Datagram, frame)
	e.drainPending()
}

func (e *Engine) dropped(reason string) {
	e.metrics.Dropped.WithLabelValues(reason).Inc()
}
