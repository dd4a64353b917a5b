package grpc

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/blockmgr/blockmanager/pkg/blockid"
	"github.com/blockmgr/blockmanager/pkg/transport"
)

// defaultMaxInMemoryResponseBytes is the spill threshold NewClient uses
// (2 MiB). It is independent of remotefetch.DefaultMaxRemoteBlockSizeFetchToMem;
// NewClientWithThreshold takes any other value.
const defaultMaxInMemoryResponseBytes = 2 << 20

// Client is a transport.Transport backed by real gRPC connections, dialed
// lazily per target and cached for reuse.
type Client struct {
	dialOpts         []gogrpc.DialOption
	conns            map[string]*gogrpc.ClientConn
	maxInMemoryBytes int64
}

// NewClient returns a Client. extraDialOpts are appended after the codec and
// insecure-transport defaults, letting callers add TLS credentials or
// interceptors.
func NewClient(extraDialOpts ...gogrpc.DialOption) *Client {
	return NewClientWithThreshold(defaultMaxInMemoryResponseBytes, extraDialOpts...)
}

// NewClientWithThreshold returns a Client that spills fetch responses larger
// than thresholdBytes to a temp file instead of buffering them.
func NewClientWithThreshold(thresholdBytes int64, extraDialOpts ...gogrpc.DialOption) *Client {
	opts := []gogrpc.DialOption{
		gogrpc.WithTransportCredentials(insecure.NewCredentials()),
		gogrpc.WithDefaultCallOptions(gogrpc.ForceCodec(codec{})),
	}
	opts = append(opts, extraDialOpts...)
	return &Client{dialOpts: opts, conns: make(map[string]*gogrpc.ClientConn), maxInMemoryBytes: thresholdBytes}
}

func (c *Client) connFor(host string, port int) (*gogrpc.ClientConn, error) {
	target := net.JoinHostPort(host, strconv.Itoa(port))
	if conn, ok := c.conns[target]; ok {
		return conn, nil
	}
	conn, err := gogrpc.NewClient(target, c.dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("grpc transport: dial %s: %w", target, err)
	}
	c.conns[target] = conn
	return conn, nil
}

// FetchBlockSync implements transport.Transport.
func (c *Client) FetchBlockSync(ctx context.Context, host string, port int, executorID, blockIDStr string, tempFileManager transport.TempFileAllocator) (transport.ManagedBuffer, error) {
	conn, err := c.connFor(host, port)
	if err != nil {
		return transport.ManagedBuffer{}, err
	}

	req := &fetchBlockRequest{BlockIDStr: blockIDStr}
	resp := new(fetchBlockResponse)
	if err := conn.Invoke(ctx, "/"+serviceName+"/FetchBlock", req, resp); err != nil {
		return transport.ManagedBuffer{}, fmt.Errorf("grpc transport: fetch %s from %s:%d: %w", blockIDStr, host, port, err)
	}
	if !resp.Found {
		return transport.ManagedBuffer{}, transport.ErrBlockNotAtPeer
	}

	if tempFileManager != nil && int64(len(resp.Bytes)) > c.maxInMemoryBytes {
		w, openForRead, err := tempFileManager.NewTempFile()
		if err != nil {
			return transport.ManagedBuffer{}, fmt.Errorf("grpc transport: allocate temp file: %w", err)
		}
		if _, err := w.Write(resp.Bytes); err != nil {
			w.Close()
			return transport.ManagedBuffer{}, fmt.Errorf("grpc transport: spill fetch response: %w", err)
		}
		if err := w.Close(); err != nil {
			return transport.ManagedBuffer{}, fmt.Errorf("grpc transport: close spilled fetch response: %w", err)
		}
		r, err := openForRead()
		if err != nil {
			return transport.ManagedBuffer{}, fmt.Errorf("grpc transport: reopen spilled fetch response: %w", err)
		}
		return transport.ManagedBuffer{File: r, Size: resp.Size}, nil
	}

	return transport.ManagedBuffer{Bytes: resp.Bytes, Size: resp.Size}, nil
}

// UploadBlockSync implements transport.Transport.
func (c *Client) UploadBlockSync(ctx context.Context, host string, port int, executorID string, blockID blockid.BlockId, buf transport.ManagedBuffer, level blockid.StorageLevel, tag string) error {
	conn, err := c.connFor(host, port)
	if err != nil {
		return err
	}

	wireID, err := blockid.Encode(blockID)
	if err != nil {
		return fmt.Errorf("grpc transport: encode block id: %w", err)
	}

	data := buf.Bytes
	if data == nil && buf.File != nil {
		data, err = io.ReadAll(buf.File)
		if err != nil {
			return fmt.Errorf("grpc transport: read spilled upload buffer: %w", err)
		}
	}

	req := &uploadBlockRequest{
		BlockIDWire: wireID,
		Bytes:       data,
		LevelFlags:  encodeLevelFlags(level.UseDisk, level.UseMemory, level.UseOffHeap, level.Deserialized),
		Replication: uint32(level.Replication),
		Tag:         tag,
	}
	resp := new(uploadBlockResponse)
	if err := conn.Invoke(ctx, "/"+serviceName+"/UploadBlock", req, resp); err != nil {
		return fmt.Errorf("grpc transport: upload %s to %s:%d: %w", blockID.Name(), host, port, err)
	}
	return nil
}

// Close tears down every cached connection.
func (c *Client) Close() error {
	var firstErr error
	for _, conn := range c.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ transport.Transport = (*Client)(nil)
