package grpc

import (
	"context"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/blockmgr/blockmanager/pkg/blockid"
	"github.com/blockmgr/blockmanager/pkg/transport"
)

type stubEndpoint struct {
	blocks   map[string][]byte
	uploaded map[string][]byte
}

func newStubEndpoint() *stubEndpoint {
	return &stubEndpoint{blocks: make(map[string][]byte), uploaded: make(map[string][]byte)}
}

func (s *stubEndpoint) HandleFetch(ctx context.Context, blockIDStr string) ([]byte, bool, error) {
	data, ok := s.blocks[blockIDStr]
	return data, ok, nil
}

func (s *stubEndpoint) HandleUpload(ctx context.Context, blockID blockid.BlockId, data []byte, level blockid.StorageLevel, tag string) error {
	s.uploaded[blockID.Name()] = data
	return nil
}

func startTestServer(t *testing.T, ep Endpoint) (addr string, stop func()) {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen failed: %v", err)
	}

	srv := NewGRPCServer()
	Register(srv, NewServer(ep))

	go srv.Serve(lis)
	return lis.Addr().String(), srv.Stop
}

func splitHostPort(t *testing.T, addr string) (string, int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("net.SplitHostPort failed: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("strconv.Atoi failed: %v", err)
	}
	return host, port
}

func TestFetchBlockSyncRoundTrip(t *testing.T) {
	ep := newStubEndpoint()
	ep.blocks["rdd_1_2"] = []byte("hello world")
	addr, stop := startTestServer(t, ep)
	defer stop()
	host, port := splitHostPort(t, addr)

	client := NewClient()
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	buf, err := client.FetchBlockSync(ctx, host, port, "exec-1", "rdd_1_2", nil)
	if err != nil {
		t.Fatalf("FetchBlockSync failed: %v", err)
	}
	if string(buf.Bytes) != "hello world" {
		t.Errorf("expected %q, got %q", "hello world", buf.Bytes)
	}
	if buf.Size != 11 {
		t.Errorf("expected size 11, got %d", buf.Size)
	}
}

func TestFetchBlockSyncNotFound(t *testing.T) {
	ep := newStubEndpoint()
	addr, stop := startTestServer(t, ep)
	defer stop()
	host, port := splitHostPort(t, addr)

	client := NewClient()
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.FetchBlockSync(ctx, host, port, "exec-1", "missing", nil)
	if !errors.Is(err, transport.ErrBlockNotAtPeer) {
		t.Errorf("expected ErrBlockNotAtPeer, got %v", err)
	}
}

func TestUploadBlockSyncRoundTrip(t *testing.T) {
	ep := newStubEndpoint()
	addr, stop := startTestServer(t, ep)
	defer stop()
	host, port := splitHostPort(t, addr)

	client := NewClient()
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	id := blockid.RDDBlockId{RDDID: 7, Partition: 1}
	err := client.UploadBlockSync(ctx, host, port, "exec-1", id, transport.ManagedBuffer{Bytes: []byte("payload")}, blockid.MemoryOnly, "")
	if err != nil {
		t.Fatalf("UploadBlockSync failed: %v", err)
	}
	if string(ep.uploaded[id.Name()]) != "payload" {
		t.Errorf("expected %q, got %q", "payload", ep.uploaded[id.Name()])
	}
}
