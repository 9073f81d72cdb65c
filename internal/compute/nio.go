package compute

import (
	"context"
	"fmt"
)

// NIODescriptor is the compute-side descriptor of one end of a UDP tunnel
// (a "Network I/O endpoint"). This core only ever installs nio_udp NIOs.
type NIODescriptor struct {
	LPort int    `json:"lport"`
	RHost string `json:"rhost"`
	RPort int    `json:"rport"`
	Type  string `json:"type"`
}

// NewUDPNIO builds the descriptor for a UDP tunnel leg.
func NewUDPNIO(lport int, rhost string, rport int) NIODescriptor {
	return NIODescriptor{LPort: lport, RHost: rhost, RPort: rport, Type: "nio_udp"}
}

func adapterPortPath(adapter, port int, suffix string) string {
	return fmt.Sprintf("/adapters/%d/ports/%d/%s", adapter, port, suffix)
}

// InstallNIO installs nio on the given adapter/port of a node hosted by c,
// using the 120s tunnel-install timeout mandated by §4.1 of the spec.
func (this *Client) InstallNIO(ctx context.Context, nodePath string, adapter, port int, nio NIODescriptor) error {
	_, err := this.Post(ctx, nodePath+adapterPortPath(adapter, port, "nio"), nio, TunnelTimeout)
	return err
}

// DeleteNIO removes the NIO at adapter/port. Callers in delete paths should
// treat a NotFound error as success (the node may already be gone).
func (this *Client) DeleteNIO(ctx context.Context, nodePath string, adapter, port int) error {
	_, err := this.Delete(ctx, nodePath+adapterPortPath(adapter, port, "nio"), TunnelTimeout)
	return err
}

// CaptureOptions is the body posted to start a packet capture.
type CaptureOptions struct {
	CaptureFileName string `json:"capture_file_name"`
	DataLinkType    string `json:"data_link_type"`
}

// StartCapture begins a capture on the given adapter/port.
func (this *Client) StartCapture(ctx context.Context, nodePath string, adapter, port int, opts CaptureOptions) error {
	_, err := this.Post(ctx, nodePath+adapterPortPath(adapter, port, "start_capture"), opts, 0)
	return err
}

// StopCapture ends a capture on the given adapter/port.
func (this *Client) StopCapture(ctx context.Context, nodePath string, adapter, port int) error {
	_, err := this.Post(ctx, nodePath+adapterPortPath(adapter, port, "stop_capture"), nil, 0)
	return err
}
