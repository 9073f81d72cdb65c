package compute

import (
	"context"

	"github.com/mitchellh/mapstructure"

	"github.com/sandia-minimega/topoctl/internal/ctlerr"
)

// subnetPair is the generic shape of a subnet-negotiation response: whatever
// free-form JSON object the compute returns, decoded through mapstructure
// the same way the teacher's api/experiment package turns an untyped
// map[string]interface{} spec into a typed struct.
type subnetPair struct {
	SelfIP  string `mapstructure:"self_ip"`
	PeerIP  string `mapstructure:"peer_ip"`
}

// GetIPOnSameSubnet asks c to resolve a pair of IPs (selfIP, peerIP) such
// that a UDP packet from c reaches peer and vice versa. It returns a
// Conflict error if no mutually routable address exists.
//
// The result is memoized per peer compute id for a short TTL (§4.9 of
// SPEC_FULL.md); a Conflict result is never cached, since the absence of a
// route today says nothing about tomorrow.
func (this *Client) GetIPOnSameSubnet(ctx context.Context, peer *Client) (selfIP, peerIP string, err error) {
	cacheKey := peer.ID

	if cached, ok := this.subnetCache.Get(cacheKey); ok {
		pair := cached.(subnetPair)
		return pair.SelfIP, pair.PeerIP, nil
	}

	resp, err := this.Post(ctx, "/network/subnet", map[string]string{
		"peer_id":   peer.ID,
		"peer_host": peer.Host,
	}, 0)
	if err != nil {
		return "", "", err
	}

	var raw map[string]interface{}
	if err := resp.JSON(&raw); err != nil {
		return "", "", ctlerr.Transport(err, "decoding subnet negotiation response")
	}

	var pair subnetPair
	if err := mapstructure.Decode(raw, &pair); err != nil {
		return "", "", ctlerr.Transport(err, "decoding subnet negotiation response")
	}

	if pair.SelfIP == "" || pair.PeerIP == "" {
		return "", "", ctlerr.Conflict("no route between compute %s and compute %s", this.ID, peer.ID)
	}

	this.subnetCache.SetDefault(cacheKey, pair)

	return pair.SelfIP, pair.PeerIP, nil
}

// InvalidateSubnetCache drops any memoized subnet result for peer. Link
// teardown does not need this — the cache simply expires — but it is useful
// after an operator reconfigures a compute's network out of band.
func (this *Client) InvalidateSubnetCache(peer *Client) {
	this.subnetCache.Delete(peer.ID)
}
