// Package memory implements transport.Transport in-process, routing
// fetch/upload calls directly to sibling Network instances instead of a
// socket. It exists for tests and single-process deployments that want
// several BlockManagers wired together without a real network.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/blockmgr/blockmanager/pkg/blockid"
	"github.com/blockmgr/blockmanager/pkg/transport"
)

// ErrPeerNotFound is returned when no peer is registered at a requested
// host:port/executorID triple.
var ErrPeerNotFound = errors.New("transport/memory: peer not found")

// Endpoint is implemented by whatever owns the local block data a peer
// fetch or upload should be routed into: typically blockmgr.Manager.
type Endpoint interface {
	// HandleFetch serves a local synchronous fetch request for blockIDStr.
	HandleFetch(ctx context.Context, blockIDStr string) (transport.ManagedBuffer, error)

	// HandleUpload accepts a peer-initiated upload of blockID's bytes.
	HandleUpload(ctx context.Context, blockID blockid.BlockId, buf transport.ManagedBuffer, level blockid.StorageLevel, tag string) error
}

// Network is a shared in-process registry of Endpoints keyed by
// "host:port/executorID", standing in for the real network in tests.
type Network struct {
	mu        sync.RWMutex
	endpoints map[string]Endpoint
}

// NewNetwork returns an empty in-process network.
func NewNetwork() *Network {
	return &Network{endpoints: make(map[string]Endpoint)}
}

func key(host string, port int, executorID string) string {
	return fmt.Sprintf("%s:%d/%s", host, port, executorID)
}

// Register makes ep reachable at host:port/executorID.
func (n *Network) Register(host string, port int, executorID string, ep Endpoint) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.endpoints[key(host, port, executorID)] = ep
}

// Unregister removes a previously registered endpoint.
func (n *Network) Unregister(host string, port int, executorID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.endpoints, key(host, port, executorID))
}

func (n *Network) lookup(host string, port int, executorID string) (Endpoint, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	ep, ok := n.endpoints[key(host, port, executorID)]
	return ep, ok
}

// Transport is a transport.Transport that dispatches through a Network.
type Transport struct {
	network *Network
}

// New returns a Transport dispatching fetches/uploads through network.
func New(network *Network) *Transport {
	return &Transport{network: network}
}

// FetchBlockSync routes the fetch to the registered peer endpoint.
// tempFileManager is accepted for interface compatibility but unused: an
// in-process call never needs to spill a response to disk.
func (t *Transport) FetchBlockSync(ctx context.Context, host string, port int, executorID, blockIDStr string, tempFileManager transport.TempFileAllocator) (transport.ManagedBuffer, error) {
	ep, ok := t.network.lookup(host, port, executorID)
	if !ok {
		return transport.ManagedBuffer{}, ErrPeerNotFound
	}
	return ep.HandleFetch(ctx, blockIDStr)
}

// UploadBlockSync routes the upload to the registered peer endpoint.
func (t *Transport) UploadBlockSync(ctx context.Context, host string, port int, executorID string, blockID blockid.BlockId, buf transport.ManagedBuffer, level blockid.StorageLevel, tag string) error {
	ep, ok := t.network.lookup(host, port, executorID)
	if !ok {
		return ErrPeerNotFound
	}
	return ep.HandleUpload(ctx, blockID, buf, level, tag)
}
var _ transport.Transport = (*Transport)(nil)
