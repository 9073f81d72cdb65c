// Package controller is the process-wide registry of projects and computes
// (C7). The spec treats it as an external collaborator whose interface is
// only sketched (§1, §9: "the project must not reach out to it — it
// receives all dependencies through its constructor"), so this package stays
// deliberately thin: a registry, nothing more. All the interesting behavior
// lives in internal/project and internal/link.
package controller

import (
	"context"
	"sync"

	"github.com/sandia-minimega/topoctl/internal/compute"
	"github.com/sandia-minimega/topoctl/internal/ctlerr"
	"github.com/sandia-minimega/topoctl/internal/project"
)

// Controller owns the lifetime of computes and projects. Projects hold
// back-references to computes but never destroy them; only the controller
// does.
type Controller struct {
	mu sync.Mutex

	computes map[string]*compute.Client
	projects map[string]*project.Project
}

// New returns an empty Controller.
func New() *Controller {
	return &Controller{
		computes: make(map[string]*compute.Client),
		projects: make(map[string]*project.Project),
	}
}

// RegisterCompute adds c to the controller's compute set, keyed by its id.
func (this *Controller) RegisterCompute(c *compute.Client) {
	this.mu.Lock()
	defer this.mu.Unlock()
	this.computes[c.ID] = c
}

// Compute looks up a registered compute by id.
func (this *Controller) Compute(id string) (*compute.Client, error) {
	this.mu.Lock()
	defer this.mu.Unlock()

	c, ok := this.computes[id]
	if !ok {
		return nil, ctlerr.NotFound("compute %s doesn't exist", id)
	}
	return c, nil
}

// NewProject constructs and registers a project, generating or validating
// its id per the UUID discipline in internal/idgen.
func (this *Controller) NewProject(projectID, name, path string, temporary bool) (*project.Project, error) {
	p, err := project.New(projectID, name, path, temporary)
	if err != nil {
		return nil, err
	}

	this.mu.Lock()
	defer this.mu.Unlock()
	this.projects[p.ID()] = p

	return p, nil
}

// Project looks up a registered project by id.
func (this *Controller) Project(id string) (*project.Project, error) {
	this.mu.Lock()
	defer this.mu.Unlock()

	p, ok := this.projects[id]
	if !ok {
		return nil, ctlerr.NotFound("project %s doesn't exist", id)
	}
	return p, nil
}

// DeleteProject tears down the project (releasing its nodes, links, and
// compute associations) and removes it from the registry.
func (this *Controller) DeleteProject(ctx context.Context, id string) error {
	this.mu.Lock()
	p, ok := this.projects[id]
	if !ok {
		this.mu.Unlock()
		return ctlerr.NotFound("project %s doesn't exist", id)
	}
	delete(this.projects, id)
	this.mu.Unlock()

	return p.Delete(ctx)
}

// Projects returns a snapshot of currently registered projects.
func (this *Controller) Projects() []*project.Project {
	this.mu.Lock()
	defer this.mu.Unlock()

	out := make([]*project.Project, 0, len(this.projects))
	for _, p := range this.projects {
		out = append(out, p)
	}
	return out
}
