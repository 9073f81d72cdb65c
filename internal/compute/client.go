// Package compute implements the controller's HTTP client to one remote
// compute server (C1): GET/POST/DELETE against its JSON API, subnet
// negotiation between two computes, UDP port reservation, and lazy file
// streaming. It is the only package in this module that speaks HTTP.
package compute

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	gocache "github.com/patrickmn/go-cache"

	"github.com/sandia-minimega/topoctl/internal/ctlerr"
	"github.com/sandia-minimega/topoctl/internal/minilog"
)

var log = minilog.Named("compute")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// LocalID is the reserved compute id denoting the in-process compute.
const LocalID = "local"

// defaultTimeout bounds ordinary calls; tunnel installs override it (see
// TunnelTimeout) per §4.1 of the spec.
const defaultTimeout = 30 * time.Second

// TunnelTimeout is the timeout NIO install/delete calls use.
const TunnelTimeout = 120 * time.Second

const subnetCacheTTL = 10 * time.Second

// Client is a reusable HTTP session to one compute server. One logical
// session is shared across all requests so calls can be issued concurrently.
type Client struct {
	ID   string
	Host string // e.g. "https://compute-a.example.net:8000"

	http *http.Client

	// subnetCache memoizes GetIPOnSameSubnet results per peer compute id for
	// a short TTL (§4.9 of SPEC_FULL.md). A Conflict is never cached.
	subnetCache *gocache.Cache
}

// New returns a Client for the compute identified by id, reachable at host.
func New(id, host string) *Client {
	return &Client{
		ID:          id,
		Host:        host,
		http:        &http.Client{Timeout: 0}, // per-request timeouts via context
		subnetCache: gocache.New(subnetCacheTTL, 2*subnetCacheTTL),
	}
}

// Response is the decoded result of a compute call.
type Response struct {
	Status int
	Body   []byte
}

// JSON decodes the response body into v.
func (this Response) JSON(v interface{}) error {
	if len(this.Body) == 0 {
		return nil
	}
	return json.Unmarshal(this.Body, v)
}

func (this *Client) do(ctx context.Context, method, path string, body interface{}, timeout time.Duration) (Response, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return Response{}, ctlerr.BadRequest("encoding request body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}

	url := this.Host + path

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return Response{}, ctlerr.Transport(err, "building request to compute %s", this.ID)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log.Debug("%s %s", method, url)

	resp, err := this.http.Do(req)
	if err != nil {
		if ctx.Err() == context.Canceled {
			return Response{}, ctlerr.Cancelled(err)
		}
		return Response{}, ctlerr.Transport(err, "%s %s", method, url)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, ctlerr.Transport(err, "reading response body from %s", url)
	}

	out := Response{Status: resp.StatusCode, Body: data}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return out, nil
	}

	return out, statusError(resp.StatusCode, method, path, data)
}

func statusError(status int, method, path string, body []byte) error {
	msg := fmt.Sprintf("%s %s: compute returned %d: %s", method, path, status, string(body))

	switch status {
	case http.StatusBadRequest:
		return ctlerr.BadRequest("%s", msg)
	case http.StatusNotFound:
		return ctlerr.NotFound("%s", msg)
	case http.StatusConflict:
		return ctlerr.Conflict("%s", msg)
	default:
		return ctlerr.Transport(fmt.Errorf("status %d", status), "%s", msg)
	}
}

// Get issues a GET to path.
func (this *Client) Get(ctx context.Context, path string) (Response, error) {
	return this.do(ctx, http.MethodGet, path, nil, 0)
}

// Post issues a POST to path with an optional JSON body and timeout (zero
// means defaultTimeout).
func (this *Client) Post(ctx context.Context, path string, body interface{}, timeout time.Duration) (Response, error) {
	return this.do(ctx, http.MethodPost, path, body, timeout)
}

// Delete issues a DELETE to path with an optional timeout.
func (this *Client) Delete(ctx context.Context, path string, timeout time.Duration) (Response, error) {
	return this.do(ctx, http.MethodDelete, path, nil, timeout)
}

// AddProject informs the compute that a project exists, POSTing its JSON
// projection. Idempotent on re-add.
func (this *Client) AddProject(ctx context.Context, project interface{}) error {
	_, err := this.Post(ctx, "/projects", project, 0)
	return err
}

// CloseProject, CommitProject, DeleteProject broadcast the matching
// lifecycle verb for pid.
func (this *Client) CloseProject(ctx context.Context, pid string) error {
	_, err := this.Post(ctx, fmt.Sprintf("/projects/%s/close", pid), nil, 0)
	return err
}

func (this *Client) CommitProject(ctx context.Context, pid string) error {
	_, err := this.Post(ctx, fmt.Sprintf("/projects/%s/commit", pid), nil, 0)
	return err
}

func (this *Client) DeleteProject(ctx context.Context, pid string) error {
	_, err := this.Delete(ctx, fmt.Sprintf("/projects/%s", pid), 0)
	return err
}

// ReserveUDPPort atomically reserves a UDP port on this compute for project
// pid, returning the allocated port.
func (this *Client) ReserveUDPPort(ctx context.Context, pid string) (int, error) {
	resp, err := this.Post(ctx, fmt.Sprintf("/projects/%s/ports/udp", pid), nil, 0)
	if err != nil {
		return 0, err
	}

	var body struct {
		UDPPort int `json:"udp_port"`
	}
	if err := resp.JSON(&body); err != nil {
		return 0, ctlerr.Transport(err, "decoding udp port reservation")
	}

	return body.UDPPort, nil
}

// StreamFile returns a lazy, finite byte stream from the compute's
// filesystem at "projects/<project>/files/<relativePath>". The caller must
// Close the returned stream.
func (this *Client) StreamFile(ctx context.Context, projectID, relativePath string) (io.ReadCloser, error) {
	path := fmt.Sprintf("/projects/%s/files/%s", projectID, relativePath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, this.Host+path, nil)
	if err != nil {
		return nil, ctlerr.Transport(err, "building stream request to compute %s", this.ID)
	}

	resp, err := this.http.Do(req)
	if err != nil {
		return nil, ctlerr.Transport(err, "streaming %s from compute %s", path, this.ID)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		return nil, statusError(resp.StatusCode, http.MethodGet, path, data)
	}

	return resp.Body, nil
}
