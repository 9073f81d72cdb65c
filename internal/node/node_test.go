package node

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sandia-minimega/topoctl/internal/compute"
)

func TestCreateAndDelete(t *testing.T) {
	var created, deleted bool

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/projects/proj-1/nodes":
			created = true
		case r.Method == http.MethodDelete && r.URL.Path == "/projects/proj-1/nodes/n1":
			deleted = true
		}
	}))
	defer srv.Close()

	c := compute.New("compute-a", srv.URL)
	n := New("n1", "proj-1", c, TypeQEMU, 1, 4)

	if err := n.Create(context.Background()); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !created {
		t.Fatal("expected a create POST")
	}

	if err := n.Delete(context.Background()); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !deleted {
		t.Fatal("expected a delete DELETE")
	}

	// Deleting again (already not created) must issue no HTTP call and not
	// error.
	deleted = false
	if err := n.Delete(context.Background()); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	if deleted {
		t.Fatal("second delete should be a no-op")
	}
}

func TestAlwaysRunning(t *testing.T) {
	c := compute.New("compute-a", "http://unused")

	sw := New("n1", "proj-1", c, TypeEthernetSwitch, 1, 1)
	if !sw.IsAlwaysRunning() {
		t.Fatal("expected ethernet_switch to be always-running")
	}

	qemu := New("n2", "proj-1", c, TypeQEMU, 1, 1)
	if qemu.IsAlwaysRunning() {
		t.Fatal("did not expect qemu to be always-running")
	}
}
