package connector

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/d3sync/hl7proxy/internal/peerstream"
)

func freeLoopbackAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func TestPassiveAcceptsAndPublishesSlot(t *testing.T) {
	addr := freeLoopbackAddr(t)
	slot := peerstream.NewSlot()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	go func() {
		close(started)
		Passive(ctx, addr, slot, "analyzer", nil, zerolog.Nop(), func(ctx context.Context, s *peerstream.Stream) {
			<-ctx.Done()
		})
	}()
	<-started
	time.Sleep(50 * time.Millisecond)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for slot.Get() == nil && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if slot.Get() == nil {
		t.Fatal("slot was never populated after accept")
	}
}

func TestActiveRedialsOnFailureThenConnects(t *testing.T) {
	addr := freeLoopbackAddr(t) // nothing listening yet
	slot := peerstream.NewSlot()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Active(ctx, addr, slot, "lis", nil, zerolog.Nop(), func(ctx context.Context, s *peerstream.Stream) {
		<-ctx.Done()
	})

	time.Sleep(100 * time.Millisecond)
	if slot.Get() != nil {
		t.Fatal("slot populated before listener existed")
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			defer conn.Close()
			<-ctx.Done()
		}
	}()

	deadline := time.Now().Add(3 * time.Second)
	for slot.Get() == nil && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if slot.Get() == nil {
		t.Fatal("Active never connected after listener came up")
	}
}
