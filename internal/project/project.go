// Package project implements the project state coordinator (C6): the owner
// of a project's node/link/compute membership, the fan-out of lifecycle
// commands to every registered compute, and the notification pub/sub that
// broadcasts state changes to zero or more subscribers.
package project

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sandia-minimega/topoctl/internal/compute"
	"github.com/sandia-minimega/topoctl/internal/ctlerr"
	"github.com/sandia-minimega/topoctl/internal/idgen"
	"github.com/sandia-minimega/topoctl/internal/link"
	"github.com/sandia-minimega/topoctl/internal/minilog"
	"github.com/sandia-minimega/topoctl/internal/node"
	"github.com/sandia-minimega/topoctl/internal/notify"
)

var log = minilog.Named("project")

// Project owns a set of computes, a node map, a link map, and a set of
// active subscribers. All of its exported methods serialize through a
// single mutex, the Go stand-in for the "single logical executor" model
// described in §5 of SPEC_FULL.md: project state is never mutated from two
// goroutines at once, even though the compute calls those methods make are
// themselves concurrent (see Close/Commit/Delete).
type Project struct {
	mu sync.Mutex

	id        string
	name      string
	path      string
	temporary bool

	computes map[string]*compute.Client
	nodes    map[string]*node.Node
	links    map[string]link.Link

	subscribers map[*notify.Queue]bool
}

// New constructs a Project. projectID may be empty (a fresh v4 UUID is
// generated) or a caller-supplied v4 UUID string; anything else is a
// BadRequest.
func New(projectID, name, path string, temporary bool) (*Project, error) {
	id, err := idgen.OrNew(projectID)
	if err != nil {
		return nil, err
	}

	return &Project{
		id:          id,
		name:        name,
		path:        path,
		temporary:   temporary,
		computes:    make(map[string]*compute.Client),
		nodes:       make(map[string]*node.Node),
		links:       make(map[string]link.Link),
		subscribers: make(map[*notify.Queue]bool),
	}, nil
}

func (this *Project) ID() string      { return this.id }
func (this *Project) Name() string    { return this.name }
func (this *Project) Path() string    { return this.path }
func (this *Project) Temporary() bool { return this.temporary }

// projection is the project's JSON projection (§4.6): no node/link lists are
// inlined, they are discovered through their own endpoints.
type projection struct {
	Name      string `json:"name"`
	ProjectID string `json:"project_id"`
	Temporary bool   `json:"temporary"`
	Path      string `json:"path"`
}

// toProjection builds the wire projection sent to a compute on AddCompute.
func (this *Project) toProjection() projection {
	return projection{Name: this.name, ProjectID: this.id, Temporary: this.temporary, Path: this.path}
}

// AddCompute registers c and informs it this project exists. Idempotent on
// re-add.
func (this *Project) AddCompute(ctx context.Context, c *compute.Client) error {
	this.mu.Lock()
	defer this.mu.Unlock()

	if _, ok := this.computes[c.ID]; ok {
		return nil
	}

	if err := c.AddProject(ctx, this.toProjection()); err != nil {
		return err
	}

	this.computes[c.ID] = c
	log.Debug("project %s: registered compute %s", this.id, c.ID)

	return nil
}

// AddNode returns the existing node if nodeID is already present, otherwise
// constructs and materializes a new node on c.
func (this *Project) AddNode(ctx context.Context, c *compute.Client, nodeID string, typ node.Type, adapters, portsPerAdapter int) (*node.Node, error) {
	this.mu.Lock()
	defer this.mu.Unlock()

	if n, ok := this.nodes[nodeID]; ok {
		return n, nil
	}

	id, err := idgen.OrNew(nodeID)
	if err != nil {
		return nil, err
	}

	n := node.New(id, this.id, c, typ, adapters, portsPerAdapter)
	if err := n.Create(ctx); err != nil {
		return nil, err
	}

	this.nodes[id] = n
	return n, nil
}

// GetNode looks up a node by id, or returns NotFound.
func (this *Project) GetNode(id string) (*node.Node, error) {
	this.mu.Lock()
	defer this.mu.Unlock()

	n, ok := this.nodes[id]
	if !ok {
		return nil, ctlerr.NotFound("node %s doesn't exist", id)
	}
	return n, nil
}

// GetLink looks up a link by id, or returns NotFound.
func (this *Project) GetLink(id string) (link.Link, error) {
	this.mu.Lock()
	defer this.mu.Unlock()

	l, ok := this.links[id]
	if !ok {
		return nil, ctlerr.NotFound("link %s doesn't exist", id)
	}
	return l, nil
}

// AddLink constructs a new empty UDP link with a fresh id and registers it.
// The caller must add endpoints before calling Create.
func (this *Project) AddLink() link.Link {
	this.mu.Lock()
	defer this.mu.Unlock()

	l := link.NewUDP(idgen.New(), this.id)
	this.links[l.ID()] = l
	return l
}

// RemoveNode deletes n from its compute and drops it from the project.
func (this *Project) RemoveNode(ctx context.Context, id string) error {
	this.mu.Lock()
	defer this.mu.Unlock()

	n, ok := this.nodes[id]
	if !ok {
		return ctlerr.NotFound("node %s doesn't exist", id)
	}

	if err := n.Delete(ctx); err != nil {
		return err
	}

	delete(this.nodes, id)
	return nil
}

// RemoveLink tears down and drops a link from the project.
func (this *Project) RemoveLink(ctx context.Context, id string) error {
	this.mu.Lock()
	defer this.mu.Unlock()

	l, ok := this.links[id]
	if !ok {
		return ctlerr.NotFound("link %s doesn't exist", id)
	}

	l.Delete(ctx)
	delete(this.links, id)

	return nil
}

// broadcast fans a per-compute call out concurrently across every
// registered compute, using errgroup so one compute's failure never
// prevents the others from being called — the behavior the spec requires
// for close/commit/delete (§4.6, §7's Transport aggregation policy). Every
// leg's failure is collected and returned joined with errors.Join.
//
// This deliberately uses a plain errgroup.Group, not errgroup.WithContext:
// WithContext cancels its derived context the instant any one Go func
// returns an error, which would abort every other leg's in-flight HTTP call
// the moment one compute fails. Every leg gets the same detached ctx
// instead, so one leg's Transport failure can never cancel another's.
func (this *Project) broadcast(ctx context.Context, call func(ctx context.Context, c *compute.Client) error) error {
	computes := make([]*compute.Client, 0, len(this.computes))
	for _, c := range this.computes {
		computes = append(computes, c)
	}

	detached := context.WithoutCancel(ctx)

	var (
		g     errgroup.Group
		errMu sync.Mutex
		errs  []error
	)
	for _, c := range computes {
		c := c
		g.Go(func() error {
			if err := call(detached, c); err != nil {
				errMu.Lock()
				errs = append(errs, err)
				errMu.Unlock()
			}
			return nil
		})
	}

	g.Wait()
	return errors.Join(errs...)
}

// Close broadcasts a close to every registered compute.
func (this *Project) Close(ctx context.Context) error {
	this.mu.Lock()
	defer this.mu.Unlock()

	return this.broadcast(ctx, func(ctx context.Context, c *compute.Client) error {
		return c.CloseProject(ctx, this.id)
	})
}

// Commit broadcasts a commit to every registered compute.
func (this *Project) Commit(ctx context.Context) error {
	this.mu.Lock()
	defer this.mu.Unlock()

	return this.broadcast(ctx, func(ctx context.Context, c *compute.Client) error {
		return c.CommitProject(ctx, this.id)
	})
}

// Delete tears down every link, then every node, then broadcasts a delete to
// every compute, then drops the compute set. This order — links before
// nodes before compute associations — breaks the link-endpoint-to-node
// reference cycle before the node map is cleared (§9 of SPEC_FULL.md).
func (this *Project) Delete(ctx context.Context) error {
	this.mu.Lock()

	for id, l := range this.links {
		l.Delete(ctx)
		delete(this.links, id)
	}

	for id, n := range this.nodes {
		if err := n.Delete(ctx); err != nil && !ctlerr.IsNotFound(err) {
			log.Error("project %s: deleting node %s: %v", this.id, id, err)
		}
		delete(this.nodes, id)
	}

	err := this.broadcast(ctx, func(ctx context.Context, c *compute.Client) error {
		return c.DeleteProject(ctx, this.id)
	})

	this.computes = make(map[string]*compute.Client)
	this.mu.Unlock()

	return err
}

// NodeStatusChanged updates a node's reported status and propagates the
// change to every link it is a member of, so a UDP link can auto-stop a
// capture that was running on it (§4.5's live capture migration).
func (this *Project) NodeStatusChanged(ctx context.Context, nodeID string, status node.Status) error {
	this.mu.Lock()
	defer this.mu.Unlock()

	n, ok := this.nodes[nodeID]
	if !ok {
		return ctlerr.NotFound("node %s doesn't exist", nodeID)
	}

	n.SetStatus(status)

	for _, l := range this.links {
		l.NodeUpdated(ctx, n)
	}

	return nil
}

// Subscribe registers a fresh notification queue and returns it along with
// an unsubscribe function the caller must call exactly once (typically via
// defer), on every exit path including error — the Go realization of the
// teacher's @contextmanager-scoped queue().
func (this *Project) Subscribe() (*notify.Queue, func()) {
	this.mu.Lock()
	defer this.mu.Unlock()

	q := notify.New()
	this.subscribers[q] = true

	unsubscribe := func() {
		this.mu.Lock()
		defer this.mu.Unlock()
		delete(this.subscribers, q)
	}

	return q, unsubscribe
}

// Emit enqueues (action, payload, metadata) on every subscriber registered
// at call time. Non-blocking: no subscriber, however slow, can make emit
// wait.
func (this *Project) Emit(action string, payload interface{}, metadata map[string]interface{}) {
	this.mu.Lock()
	defer this.mu.Unlock()

	ev := notify.Event{Action: action, Payload: payload, Metadata: metadata}
	for q := range this.subscribers {
		q.PutNowait(ev)
	}
}

// SubscriberCount reports the number of active subscribers. Exists for
// tests verifying the subscriber-scope invariant (§8 of SPEC_FULL.md).
func (this *Project) SubscriberCount() int {
	this.mu.Lock()
	defer this.mu.Unlock()
	return len(this.subscribers)
}
