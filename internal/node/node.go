// Package node implements the controller's in-memory handle for one virtual
// device placed on one compute (C3): it proxies operations to the owning
// compute and exposes the read-only geometry a link needs to wire it up.
package node

import (
	"context"
	"fmt"
	"time"

	"github.com/sandia-minimega/topoctl/internal/compute"
	"github.com/sandia-minimega/topoctl/internal/minilog"
)

var log = minilog.Named("node")

// Type enumerates the device kinds the compute fleet can instantiate.
type Type string

const (
	TypeCloud          Type = "cloud"
	TypeNAT            Type = "nat"
	TypeEthernetSwitch Type = "ethernet_switch"
	TypeEthernetHub    Type = "ethernet_hub"
	TypeVPCS           Type = "vpcs"
	TypeDynamips       Type = "dynamips"
	TypeIOU            Type = "iou"
	TypeQEMU           Type = "qemu"
	TypeDocker         Type = "docker"
	TypeVMware         Type = "vmware"
	TypeVirtualBox     Type = "virtualbox"
)

// AlwaysRunning is the set of device kinds with no user-visible start/stop:
// they never interrupt a capture running on them. Order doesn't matter here
// (it is a set), unlike the endpoint scan order in link's priority classes.
var AlwaysRunning = map[Type]bool{
	TypeCloud:          true,
	TypeNAT:            true,
	TypeEthernetSwitch: true,
	TypeEthernetHub:    true,
}

// Status is a node's lifecycle state.
type Status string

const (
	StatusStopped   Status = "stopped"
	StatusStarted   Status = "started"
	StatusSuspended Status = "suspended"
)

// Node is the controller-side handle for one device placed on one compute.
type Node struct {
	ID        string
	ProjectID string
	NodeType  Type
	Status    Status

	// Adapters is the number of network adapters this node exposes;
	// PortsPerAdapter bounds adapter_number/port_number pairs link
	// endpoints may reference.
	Adapters        int
	PortsPerAdapter int

	Compute *compute.Client

	created bool
}

// New constructs a node bound to compute c but does not yet materialize it;
// call Create to do that. Mirrors the teacher's project.addVM, which builds
// the VM object then immediately yields from vm.create().
func New(id, projectID string, c *compute.Client, nodeType Type, adapters, portsPerAdapter int) *Node {
	return &Node{
		ID:              id,
		ProjectID:       projectID,
		NodeType:        nodeType,
		Status:          StatusStopped,
		Adapters:        adapters,
		PortsPerAdapter: portsPerAdapter,
		Compute:         c,
	}
}

// path returns this node's URL scope on its compute.
func (this *Node) path() string {
	return fmt.Sprintf("/projects/%s/nodes/%s", this.ProjectID, this.ID)
}

// Create materializes the node on its compute.
func (this *Node) Create(ctx context.Context) error {
	body := map[string]interface{}{
		"node_id":           this.ID,
		"node_type":         this.NodeType,
		"adapters":          this.Adapters,
		"ports_per_adapter": this.PortsPerAdapter,
	}

	if _, err := this.Compute.Post(ctx, fmt.Sprintf("/projects/%s/nodes", this.ProjectID), body, 0); err != nil {
		return err
	}

	this.created = true
	log.Debug("created node %s (%s) on compute %s", this.ID, this.NodeType, this.Compute.ID)

	return nil
}

// Delete removes the node from its compute.
func (this *Node) Delete(ctx context.Context) error {
	if !this.created {
		return nil
	}

	_, err := this.Compute.Delete(ctx, this.path(), 0)
	this.created = false

	return err
}

// Post proxies a POST to relative, scoped under this node's URL.
func (this *Node) Post(ctx context.Context, relative string, body interface{}, timeout time.Duration) (compute.Response, error) {
	return this.Compute.Post(ctx, this.path()+relative, body, timeout)
}

// DeleteRelative proxies a DELETE to relative, scoped under this node's URL.
func (this *Node) DeleteRelative(ctx context.Context, relative string, timeout time.Duration) (compute.Response, error) {
	return this.Compute.Delete(ctx, this.path()+relative, timeout)
}

// IsAlwaysRunning reports whether this node's device kind never stops on its own.
func (this *Node) IsAlwaysRunning() bool {
	return AlwaysRunning[this.NodeType]
}

// SetStatus updates the node's reported lifecycle state. Called by the
// project coordinator when a compute reports a status change; the link
// package observes this through Link.NodeUpdated to drive capture migration.
func (this *Node) SetStatus(s Status) {
	this.Status = s
}
