package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/blockmgr/blockmanager/pkg/blockid"
	"github.com/blockmgr/blockmanager/pkg/transport"
)

type fakeEndpoint struct {
	fetchResp transport.ManagedBuffer
	uploaded  []byte
}

func (f *fakeEndpoint) HandleFetch(ctx context.Context, blockIDStr string) (transport.ManagedBuffer, error) {
	return f.fetchResp, nil
}

func (f *fakeEndpoint) HandleUpload(ctx context.Context, blockID blockid.BlockId, buf transport.ManagedBuffer, level blockid.StorageLevel, tag string) error {
	f.uploaded = buf.Bytes
	return nil
}

func TestFetchBlockSyncRoutesToRegisteredPeer(t *testing.T) {
	ctx := context.Background()
	net := NewNetwork()
	ep := &fakeEndpoint{fetchResp: transport.ManagedBuffer{Bytes: []byte("payload"), Size: 7}}
	net.Register("host-a", 7077, "exec-1", ep)

	tr := New(net)
	buf, err := tr.FetchBlockSync(ctx, "host-a", 7077, "exec-1", "rdd_1_2", nil)
	if err != nil {
		t.Fatalf("FetchBlockSync failed: %v", err)
	}
	if string(buf.Bytes) != "payload" {
		t.Errorf("expected %q, got %q", "payload", buf.Bytes)
	}
}

func TestFetchBlockSyncUnknownPeer(t *testing.T) {
	ctx := context.Background()
	tr := New(NewNetwork())
	_, err := tr.FetchBlockSync(ctx, "host-z", 1, "exec-z", "rdd_1_2", nil)
	if !errors.Is(err, ErrPeerNotFound) {
		t.Errorf("expected ErrPeerNotFound, got %v", err)
	}
}

func TestUploadBlockSyncRoutesBytes(t *testing.T) {
	ctx := context.Background()
	net := NewNetwork()
	ep := &fakeEndpoint{}
	net.Register("host-a", 7077, "exec-1", ep)

	tr := New(net)
	err := tr.UploadBlockSync(ctx, "host-a", 7077, "exec-1", blockid.RDDBlockId{RDDID: 1, Partition: 2},
		transport.ManagedBuffer{Bytes: []byte("abc")}, blockid.MemoryOnly, "")
	if err != nil {
		t.Fatalf("UploadBlockSync failed: %v", err)
	}
	if string(ep.uploaded) != "abc" {
		t.Errorf("expected %q, got %q", "abc", ep.uploaded)
	}
}

func TestUnregisterRemovesPeer(t *testing.T) {
	ctx := context.Background()
	net := NewNetwork()
	net.Register("host-a", 1, "exec-1", &fakeEndpoint{})
	net.Unregister("host-a", 1, "exec-1")

	tr := New(net)
	_, err := tr.FetchBlockSync(ctx, "host-a", 1, "exec-1", "x", nil)
	if !errors.Is(err, ErrPeerNotFound) {
		t.Errorf("expected ErrPeerNotFound, got %v", err)
	}
}
