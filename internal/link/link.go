// Package link implements the link abstract contract (C4) and its sole
// concrete variant, the UDP tunnel link (C5, in udp.go). Link is modeled as
// a small capability interface so a future transport (e.g. L2-over-TCP)
// could be added without touching the project contract; today UDPLink is
// the only implementation.
package link

import (
	"context"
	"fmt"
	"regexp"
	"sync"

	"github.com/sandia-minimega/topoctl/internal/ctlerr"
	"github.com/sandia-minimega/topoctl/internal/node"
)

// DefaultDataLinkType is the sentinel data link type used when the caller
// does not request one.
const DefaultDataLinkType = "DLT_EN10MB"

// Endpoint is one side of a link: a node port.
type Endpoint struct {
	Node    *node.Node
	Adapter int
	Port    int
}

// Equal reports whether e and o name the same node port.
func (e Endpoint) Equal(o Endpoint) bool {
	return e.Node == o.Node && e.Adapter == o.Adapter && e.Port == o.Port
}

// Capture describes an active packet capture on a link.
type Capture struct {
	CaptureFileName string
	DataLinkType    string
}

// Link is the capability contract every link variant satisfies.
type Link interface {
	ID() string
	AddNode(n *node.Node, adapter, port int) error
	Endpoints() []Endpoint
	Created() bool

	Create(ctx context.Context) error
	Delete(ctx context.Context)

	StartCapture(ctx context.Context, dataLinkType, captureFileName string) error
	StopCapture(ctx context.Context)
	Capturing() bool

	// NodeUpdated is called by the project coordinator whenever a member
	// node's status changes; a UDP link uses it to auto-stop a capture
	// when its capture node stops running.
	NodeUpdated(ctx context.Context, n *node.Node)
}

// base implements the parts of the contract common to every link variant:
// endpoint bookkeeping, capture metadata, default naming, and the per-link
// mutex the spec permits (§5, "implementations SHOULD serialize per-link")
// to guard concurrent create()/delete() on the same link.
type base struct {
	mu sync.Mutex

	id        string
	projectID string
	endpoints []Endpoint

	capture *Capture
}

func newBase(id, projectID string) base {
	return base{id: id, projectID: projectID}
}

func (this *base) ID() string { return this.id }

func (this *base) Endpoints() []Endpoint {
	out := make([]Endpoint, len(this.endpoints))
	copy(out, this.endpoints)
	return out
}

// AddNode appends an endpoint. Rejects a third endpoint or a duplicate of an
// existing one.
func (this *base) AddNode(n *node.Node, adapter, port int) error {
	this.mu.Lock()
	defer this.mu.Unlock()

	if len(this.endpoints) >= 2 {
		return ctlerr.BadRequest("link %s already has 2 endpoints", this.id)
	}

	ep := Endpoint{Node: n, Adapter: adapter, Port: port}
	for _, existing := range this.endpoints {
		if existing.Equal(ep) {
			return ctlerr.BadRequest("link %s already has an endpoint at %s adapter %d port %d", this.id, n.ID, adapter, port)
		}
	}

	this.endpoints = append(this.endpoints, ep)
	return nil
}

// Capturing reports whether a capture is currently active on this link.
func (this *base) Capturing() bool {
	this.mu.Lock()
	defer this.mu.Unlock()
	return this.capture != nil
}

// startCapture records the capture metadata; it does not itself talk to a
// compute. Concrete variants call this only after the compute-side
// start_capture call has already succeeded.
func (this *base) startCapture(dataLinkType, captureFileName string) {
	if dataLinkType == "" {
		dataLinkType = DefaultDataLinkType
	}
	this.capture = &Capture{CaptureFileName: captureFileName, DataLinkType: dataLinkType}
}

// stopCapture clears capture metadata. Idempotent.
func (this *base) stopCapture() {
	this.capture = nil
}

// deleteBase clears all endpoints and capture state. Concrete Delete
// implementations call this last, after their own compute-side teardown.
func (this *base) deleteBase() {
	this.endpoints = nil
	this.capture = nil
}

var filenameUnsafe = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// DefaultCaptureFileName derives a deterministic, filesystem-safe capture
// file name from a link's endpoints, e.g.
// "switch1_0-to-qemu1_1.pcap". Only each endpoint's node id and port number
// are used; the adapter number and the link id are not, so two links whose
// endpoints differ only in adapter number get the same name.
func DefaultCaptureFileName(endpoints []Endpoint) string {
	if len(endpoints) != 2 {
		return "capture.pcap"
	}

	a := fmt.Sprintf("%s_%d", endpoints[0].Node.ID, endpoints[0].Port)
	b := fmt.Sprintf("%s_%d", endpoints[1].Node.ID, endpoints[1].Port)

	name := a + "-to-" + b + ".pcap"
	return filenameUnsafe.ReplaceAllString(name, "_")
}
