package project

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/sandia-minimega/topoctl/internal/compute"
	"github.com/sandia-minimega/topoctl/internal/ctlerr"
	"github.com/sandia-minimega/topoctl/internal/idgen"
	"github.com/sandia-minimega/topoctl/internal/notify"
)

func TestNewGeneratesV4WhenIDOmitted(t *testing.T) {
	p, err := New("", "demo", "", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := idgen.Validate(p.ID()); err != nil {
		t.Fatalf("generated project id %q is not a valid v4 UUID: %v", p.ID(), err)
	}
}

func TestNewRejectsNonV4ID(t *testing.T) {
	_, err := New("not-a-uuid", "demo", "", false)
	if err == nil {
		t.Fatal("expected BadRequest for a malformed project id")
	}
	if ce, ok := err.(*ctlerr.Error); !ok || ce.Kind() != ctlerr.KindBadRequest {
		t.Fatalf("expected *ctlerr.Error{Kind: BadRequest}, got %v (%T)", err, err)
	}
}

func TestSubscribeScopeRestoresCardinality(t *testing.T) {
	p, _ := New("", "demo", "", false)

	before := p.SubscriberCount()

	q, unsubscribe := p.Subscribe()
	if p.SubscriberCount() != before+1 {
		t.Fatalf("expected subscriber count to increase by 1")
	}

	q.PutNowait(notify.Event{Action: "ping"})
	unsubscribe()

	if p.SubscriberCount() != before {
		t.Fatalf("expected subscriber count to return to %d, got %d", before, p.SubscriberCount())
	}
}

func TestEmitFansOutToEverySubscriber(t *testing.T) {
	p, _ := New("", "demo", "", false)

	q1, unsub1 := p.Subscribe()
	defer unsub1()
	q2, unsub2 := p.Subscribe()
	defer unsub2()

	p.Emit("node.created", map[string]string{"id": "n1"}, nil)

	ctx := context.Background()

	ev1, err := q1.Get(ctx)
	if err != nil {
		t.Fatalf("q1.Get: %v", err)
	}
	ev2, err := q2.Get(ctx)
	if err != nil {
		t.Fatalf("q2.Get: %v", err)
	}

	if ev1.Action != "node.created" || ev2.Action != "node.created" {
		t.Fatalf("expected both subscribers to receive the event, got %q and %q", ev1.Action, ev2.Action)
	}
}

func TestCloseBroadcastsToAllComputesDespiteOneFailure(t *testing.T) {
	var calls int32

	goodHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	})
	badHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if strings.HasSuffix(r.URL.Path, "/close") {
			w.WriteHeader(http.StatusInternalServerError)
		}
	})

	srvA := httptest.NewServer(goodHandler)
	srvB := httptest.NewServer(badHandler)
	srvC := httptest.NewServer(goodHandler)
	defer srvA.Close()
	defer srvB.Close()
	defer srvC.Close()

	p, _ := New("", "demo", "", false)
	ctx := context.Background()

	for i, srv := range []*httptest.Server{srvA, srvB, srvC} {
		c := compute.New(idName(i), srv.URL)
		if err := p.AddCompute(ctx, c); err != nil {
			t.Fatalf("AddCompute: %v", err)
		}
	}

	err := p.Close(ctx)
	if err == nil {
		t.Fatal("expected Close to surface the aggregate failure")
	}

	if n := atomic.LoadInt32(&calls); n != 6 {
		// 3 AddCompute POSTs + 3 close POSTs
		t.Fatalf("expected every compute to receive its call despite one failing, got %d calls", n)
	}
}

func idName(i int) string {
	names := []string{"compute-a", "compute-b", "compute-c"}
	return names[i]
}
