package controller

import (
	"context"
	"testing"

	"github.com/sandia-minimega/topoctl/internal/compute"
	"github.com/sandia-minimega/topoctl/internal/ctlerr"
)

func TestRegisterAndLookupCompute(t *testing.T) {
	ctl := New()
	c := compute.New("compute-a", "http://unused")
	ctl.RegisterCompute(c)

	got, err := ctl.Compute("compute-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != c {
		t.Fatal("expected to get back the same compute handle")
	}

	if _, err := ctl.Compute("nope"); !ctlerr.IsNotFound(err) {
		t.Fatalf("expected NotFound for unknown compute, got %v", err)
	}
}

func TestNewProjectAndDelete(t *testing.T) {
	ctl := New()

	p, err := ctl.NewProject("", "demo", "", true)
	if err != nil {
		t.Fatalf("NewProject: %v", err)
	}

	if _, err := ctl.Project(p.ID()); err != nil {
		t.Fatalf("expected project to be registered: %v", err)
	}

	if err := ctl.DeleteProject(context.Background(), p.ID()); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}

	if _, err := ctl.Project(p.ID()); !ctlerr.IsNotFound(err) {
		t.Fatalf("expected project to be gone after delete, got %v", err)
	}
}
