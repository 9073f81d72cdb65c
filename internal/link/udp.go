package link

import (
	"context"
	"io"

	"github.com/sandia-minimega/topoctl/internal/compute"
	"github.com/sandia-minimega/topoctl/internal/ctlerr"
	"github.com/sandia-minimega/topoctl/internal/minilog"
	"github.com/sandia-minimega/topoctl/internal/node"
)

var log = minilog.Named("link")

// UDPLink is the one link variant implemented today: a bidirectional UDP
// tunnel between two node ports, with rollback on partial failure and
// priority-based capture placement. This is the central algorithm of the
// controller core (§4.5 of SPEC_FULL.md).
type UDPLink struct {
	base

	created bool

	// nio holds each side's installed descriptor, kept for debug/export,
	// indexed the same as base.endpoints.
	nio []compute.NIODescriptor

	// captureEndpoint is the chosen capture side, or nil if no capture is
	// active. It always points at one of base.endpoints' entries.
	captureEndpoint *Endpoint
}

// NewUDP constructs an empty UDP link. Endpoints must be added with AddNode
// before Create is called.
func NewUDP(id, projectID string) *UDPLink {
	return &UDPLink{base: newBase(id, projectID)}
}

func (this *UDPLink) Created() bool { return this.created }

// Create negotiates subnet reachability, reserves a UDP port on each
// compute, and installs a matching pair of NIOs — rolling back the first
// leg if the second fails, per §4.5 steps 1-6.
func (this *UDPLink) Create(ctx context.Context) error {
	this.mu.Lock()
	defer this.mu.Unlock()

	if len(this.endpoints) != 2 {
		return ctlerr.BadRequest("link %s needs exactly 2 endpoints to create, has %d", this.id, len(this.endpoints))
	}

	e1, e2 := this.endpoints[0], this.endpoints[1]

	// Step 1: subnet negotiation.
	host1, host2, err := e1.Node.Compute.GetIPOnSameSubnet(ctx, e2.Node.Compute)
	if err != nil {
		return err
	}

	// Step 2: port reservation, one per side.
	port1, err := e1.Node.Compute.ReserveUDPPort(ctx, this.projectID)
	if err != nil {
		return err
	}

	port2, err := e2.Node.Compute.ReserveUDPPort(ctx, this.projectID)
	if err != nil {
		return err
	}

	// Step 3: install the tunnel on side A.
	nio1 := compute.NewUDPNIO(port1, host2, port2)
	if err := installNIO(ctx, e1, nio1); err != nil {
		return err
	}

	// Step 4: install the tunnel on side B.
	nio2 := compute.NewUDPNIO(port2, host1, port1)
	if err := installNIO(ctx, e2, nio2); err != nil {
		// Step 5: roll back side A. Best-effort; a NotFound here means the
		// node already vanished and there is nothing left to clean up.
		if rbErr := deleteNIO(ctx, e1); rbErr != nil && !ctlerr.IsNotFound(rbErr) {
			log.Error("rollback of link %s side A failed: %v", this.id, rbErr)
		}
		return err
	}

	this.nio = []compute.NIODescriptor{nio1, nio2}
	this.created = true

	log.Debug("link %s created: %s:%d <-> %s:%d", this.id, e1.Node.ID, e1.Port, e2.Node.ID, e2.Port)

	return nil
}

func nodePath(e Endpoint) string {
	return "/projects/" + e.Node.ProjectID + "/nodes/" + e.Node.ID
}

func installNIO(ctx context.Context, e Endpoint, nio compute.NIODescriptor) error {
	return e.Node.Compute.InstallNIO(ctx, nodePath(e), e.Adapter, e.Port, nio)
}

func deleteNIO(ctx context.Context, e Endpoint) error {
	return e.Node.Compute.DeleteNIO(ctx, nodePath(e), e.Adapter, e.Port)
}

// Delete idempotently tears down the tunnel. If the link was never created
// it returns immediately without issuing any HTTP call (§8 scenario 3). Once
// entered past that check it always runs to completion, per §5's
// "delete() itself is not cancellable".
func (this *UDPLink) Delete(ctx context.Context) {
	this.mu.Lock()
	defer this.mu.Unlock()

	if !this.created {
		return
	}

	ctx = context.WithoutCancel(ctx)

	for _, e := range this.endpoints {
		if err := deleteNIO(ctx, e); err != nil && !ctlerr.IsNotFound(err) {
			log.Error("deleting NIO for link %s on node %s: %v", this.id, e.Node.ID, err)
		}
	}

	this.created = false
	this.nio = nil
	this.captureEndpoint = nil
	this.deleteBase()
}

// DefaultCaptureFileName derives this link's default capture file name from
// its current endpoints.
func (this *UDPLink) DefaultCaptureFileName() string {
	return DefaultCaptureFileName(this.endpoints)
}

// StartCapture picks a capture side by priority class (see chooseCaptureSide)
// and starts the capture there.
func (this *UDPLink) StartCapture(ctx context.Context, dataLinkType, captureFileName string) error {
	this.mu.Lock()
	defer this.mu.Unlock()

	if captureFileName == "" {
		captureFileName = DefaultCaptureFileName(this.endpoints)
	}
	if dataLinkType == "" {
		dataLinkType = DefaultDataLinkType
	}

	ep, err := chooseCaptureSide(this.endpoints)
	if err != nil {
		return err
	}

	opts := compute.CaptureOptions{CaptureFileName: captureFileName, DataLinkType: dataLinkType}
	if err := ep.Node.Compute.StartCapture(ctx, nodePath(*ep), ep.Adapter, ep.Port, opts); err != nil {
		return err
	}

	this.captureEndpoint = ep
	this.startCapture(dataLinkType, captureFileName)

	log.Debug("link %s capturing on node %s adapter %d port %d", this.id, ep.Node.ID, ep.Adapter, ep.Port)

	return nil
}

// StopCapture stops any active capture. Idempotent.
func (this *UDPLink) StopCapture(ctx context.Context) {
	this.mu.Lock()
	defer this.mu.Unlock()

	this.stopCaptureLocked(ctx)
}

func (this *UDPLink) stopCaptureLocked(ctx context.Context) {
	if this.captureEndpoint != nil {
		ep := *this.captureEndpoint
		if err := ep.Node.Compute.StopCapture(ctx, nodePath(ep), ep.Adapter, ep.Port); err != nil {
			log.Error("stopping capture for link %s: %v", this.id, err)
		}
		this.captureEndpoint = nil
	}

	this.stopCapture()
}

// NodeUpdated auto-stops an active capture when the node it is running on
// is reported to have left the started state (§4.5, "live capture
// migration"). Restarting on a new endpoint is the caller's responsibility.
func (this *UDPLink) NodeUpdated(ctx context.Context, n *node.Node) {
	this.mu.Lock()
	defer this.mu.Unlock()

	if this.captureEndpoint == nil || this.captureEndpoint.Node != n {
		return
	}

	if n.Status != node.StatusStarted {
		this.stopCaptureLocked(ctx)
	}
}

// ReadPCAPFromSource returns a lazy byte stream of the active capture file
// from the capture node's compute, or nil if no capture is active.
func (this *UDPLink) ReadPCAPFromSource(ctx context.Context) (io.ReadCloser, error) {
	this.mu.Lock()
	ep := this.captureEndpoint
	capture := this.capture
	this.mu.Unlock()

	if ep == nil || capture == nil {
		return nil, nil
	}

	return ep.Node.Compute.StreamFile(ctx, this.projectID, "tmp/captures/"+capture.CaptureFileName)
}

// chooseCaptureSide implements the four-priority-class scan from §4.5: a
// higher-numbered tier is only consulted if no endpoint in any lower tier
// qualifies. Within a tier, endpoints are scanned in insertion order.
func chooseCaptureSide(endpoints []Endpoint) (*Endpoint, error) {
	qualifies := func(e Endpoint, requireLocal, requireAlwaysRunning bool) bool {
		if requireLocal && e.Node.Compute.ID != compute.LocalID {
			return false
		}
		if requireAlwaysRunning && !e.Node.IsAlwaysRunning() {
			return false
		}
		if e.Node.Status != node.StatusStarted {
			return false
		}
		if !requireAlwaysRunning && e.Node.NodeType == "" {
			return false
		}
		return true
	}

	tiers := []struct {
		requireLocal, requireAlwaysRunning bool
	}{
		{true, true},   // 1: local + always-running + started
		{false, true},  // 2: any compute + always-running + started
		{true, false},  // 3: local + started, any defined type
		{false, false}, // 4: any compute + started, any defined type
	}

	for _, tier := range tiers {
		for i := range endpoints {
			if qualifies(endpoints[i], tier.requireLocal, tier.requireAlwaysRunning) {
				return &endpoints[i], nil
			}
		}
	}

	return nil, ctlerr.Conflict("no running device on this link")
}
