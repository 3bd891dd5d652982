// Package adminrpc implements the optional administrative surface: a
// small read-only gRPC service exposing reflection over a running
// agent (system status, the object catalogue, and suspended execution
// records) to an operator tool, distinct from the AMP datagram
// transport used for manager/agent traffic.
//
// Grounded in the teacher's coreengine/grpc/server.go: an EngineServer
// holding a mutex-guarded back-reference to the component it reflects
// over, one method per RPC, and a GracefulServer wrapping lifecycle
// management (Start/StartBackground/GracefulStop/ShutdownWithTimeout).
// The teacher's RPCs are defined against a generated protobuf package
// (coreengine/proto) that was never retrieved alongside this repo, so
// this package defines its own request/response structs and registers
// them against a hand-written grpc.ServiceDesc using a JSON codec
// (encoding.RegisterCodec) instead of depending on protoc-generated
// types.
package adminrpc

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"

	"github.com/dtn-amp/agent/internal/agent"
	"github.com/dtn-amp/agent/internal/ari"
	"github.com/dtn-amp/agent/internal/exec"
	"github.com/dtn-amp/agent/internal/store"
)

// SystemStatusResponse reports the running agent's operational counts,
// mirroring the ietf/dtnma-agent catalogue EDDs spec section 6.5 names.
type SystemStatusResponse struct {
	UptimeSeconds   float64 `json:"uptime_seconds"`
	MsgRx           int64   `json:"msg_rx"`
	MsgRxFailed     int64   `json:"msg_rx_failed"`
	MsgTx           int64   `json:"msg_tx"`
	ExecStarted     int64   `json:"exec_started"`
	ExecSucceeded   int64   `json:"exec_succeeded"`
	ExecFailed      int64   `json:"exec_failed"`
	AccessDenied    int64   `json:"access_denied"`
	PendingRecords  int     `json:"pending_records"`
}

// SystemStatusRequest carries no fields; GetSystemStatus always
// reports the whole agent.
type SystemStatusRequest struct{}

// ListObjectsRequest optionally narrows the listing to one namespace;
// an empty Org lists every registered namespace.
type ListObjectsRequest struct {
	Org   string `json:"org"`
	Model string `json:"model"`
}

// ObjectSummary is one catalogued object, rendered in text form so an
// operator tool needs no CBOR decoder of its own.
type ObjectSummary struct {
	Org      string `json:"org"`
	Model    string `json:"model"`
	Type     string `json:"type"`
	Name     string `json:"name"`
	NumParam int    `json:"num_param"`
}

// ListObjectsResponse is the full (possibly namespace-filtered) object
// catalogue.
type ListObjectsResponse struct {
	Objects []ObjectSummary `json:"objects"`
}

// GetExecutionRecordRequest identifies one execution record by its
// parent execution set's nonce (text form) and target index.
type GetExecutionRecordRequest struct {
	SetNonceText string `json:"set_nonce_text"`
	Index        int    `json:"index"`
}

// ExecutionRecordResponse reports one record's current state. Found is
// false if no record with that PID is currently tracked; the engine
// only retains records while they are suspended, per spec section 4.6,
// so a terminal or never-submitted PID reports Found=false rather than
// an error.
type ExecutionRecordResponse struct {
	Found      bool   `json:"found"`
	TargetText string `json:"target_text"`
	State      string `json:"state"`
	ResultText string `json:"result_text,omitempty"`
	ErrText    string `json:"err_text,omitempty"`
}

// Server implements AdminService against a running *agent.Agent,
// grounded in the teacher's EngineServer's logger field plus
// SetRunner/getRunner mutex-guarded back-reference.
type Server struct {
	mu    sync.RWMutex
	a     *agent.Agent
	start time.Time
}

// NewServer returns a Server bound to a. Unlike the teacher's
// SetRunner, which is set after construction so the gRPC server can
// start before the component it reflects exists, this package always
// has an agent at construction time: refda-agent builds the agent
// before it starts the optional admin listener.
func NewServer(a *agent.Agent) *Server {
	return &Server{a: a, start: time.Now()}
}

func (s *Server) agentRef() *agent.Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.a
}

// GetSystemStatus implements the AdminService RPC of the same name.
func (s *Server) GetSystemStatus(ctx context.Context, _ *SystemStatusRequest) (*SystemStatusResponse, error) {
	a := s.agentRef()
	return &SystemStatusResponse{
		UptimeSeconds:  time.Since(s.start).Seconds(),
		MsgRx:          a.Counters.MsgRx.Load(),
		MsgRxFailed:    a.Counters.MsgRxFailed.Load(),
		MsgTx:          a.Counters.MsgTx.Load(),
		ExecStarted:    a.Counters.ExecStarted.Load(),
		ExecSucceeded:  a.Counters.ExecSucceeded.Load(),
		ExecFailed:     a.Counters.ExecFailed.Load(),
		AccessDenied:   a.Counters.AccessDenied.Load(),
		PendingRecords: len(a.Exec.PendingRecords()),
	}, nil
}

// ListObjects implements the AdminService RPC of the same name.
func (s *Server) ListObjects(ctx context.Context, req *ListObjectsRequest) (*ListObjectsResponse, error) {
	a := s.agentRef()
	resp := &ListObjectsResponse{}
	for _, ns := range a.Store.Namespaces() {
		if req != nil && req.Org != "" && ns.OrgName != req.Org {
			continue
		}
		if req != nil && req.Model != "" && ns.ModelName != req.Model {
			continue
		}
		ns.Iterate(func(t ari.ObjType, obj *store.Object) {
			resp.Objects = append(resp.Objects, ObjectSummary{
				Org:      ns.OrgName,
				Model:    ns.ModelName,
				Type:     t.String(),
				Name:     obj.Name,
				NumParam: len(obj.Params),
			})
		})
	}
	return resp, nil
}

// GetExecutionRecord implements the AdminService RPC of the same name.
func (s *Server) GetExecutionRecord(ctx context.Context, req *GetExecutionRecordRequest) (*ExecutionRecordResponse, error) {
	a := s.agentRef()
	nonce, err := ari.ParseText(req.SetNonceText)
	if err != nil {
		return nil, fmt.Errorf("adminrpc: parsing set nonce %q: %w", req.SetNonceText, err)
	}
	pid := exec.PID{SetNonce: nonce, Index: req.Index}
	for _, rec := range a.Exec.PendingRecords() {
		if rec.PID.Index != pid.Index || !rec.PID.SetNonce.Equal(pid.SetNonce) {
			continue
		}
		resp := &ExecutionRecordResponse{Found: true, State: string(rec.State)}
		if text, err := ari.FormatText(rec.Target); err == nil {
			resp.TargetText = text
		}
		if rec.Err != nil {
			resp.ErrText = rec.Err.Error()
		} else if text, err := ari.FormatText(rec.Result); err == nil {
			resp.ResultText = text
		}
		return resp, nil
	}
	return &ExecutionRecordResponse{Found: false}, nil
}

// Lifecycle management below is grounded in the teacher's
// GracefulServer: a net.Listener, a *grpc.Server, and a shutdown path
// that tries GracefulStop before forcing Stop once a timeout elapses.

// GracefulServer wraps a gRPC server exposing AdminService with
// graceful shutdown support.
type GracefulServer struct {
	grpcServer *grpc.Server
	core       *Server
	address    string
	listener   net.Listener

	shutdownMu sync.Mutex
	isShutdown bool
}

// NewGracefulServer builds a GracefulServer bound to core, listening on
// address once Start or StartBackground is called.
func NewGracefulServer(core *Server, address string, opts ...grpc.ServerOption) *GracefulServer {
	grpcServer := grpc.NewServer(opts...)
	RegisterAdminServiceServer(grpcServer, core)
	return &GracefulServer{grpcServer: grpcServer, core: core, address: address}
}

// Start listens and serves, blocking until ctx is cancelled or the
// server errors; on cancellation it performs a graceful stop.
func (s *GracefulServer) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("adminrpc: listen %s: %w", s.address, err)
	}
	s.listener = lis

	errCh := make(chan error, 1)
	go func() {
		if err := s.grpcServer.Serve(lis); err != nil {
			errCh <- err
			return
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.GracefulStop()
		return ctx.Err()
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("adminrpc: serve: %w", err)
		}
		return nil
	}
}

// StartBackground listens and serves in a goroutine, returning
// immediately with a channel that receives the terminal serve error,
// if any.
func (s *GracefulServer) StartBackground() (<-chan error, error) {
	lis, err := net.Listen("tcp", s.address)
	if err != nil {
		return nil, fmt.Errorf("adminrpc: listen %s: %w", s.address, err)
	}
	s.listener = lis

	errCh := make(chan error, 1)
	go func() {
		if err := s.grpcServer.Serve(lis); err != nil {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh, nil
}

// GracefulStop stops accepting new connections and waits for
// in-flight RPCs to complete. Idempotent.
func (s *GracefulServer) GracefulStop() {
	s.shutdownMu.Lock()
	defer s.shutdownMu.Unlock()
	if s.isShutdown {
		return
	}
	s.isShutdown = true
	s.grpcServer.GracefulStop()
}

// ShutdownWithTimeout attempts a graceful stop, falling back to an
// immediate Stop if it does not complete within timeout.
func (s *GracefulServer) ShutdownWithTimeout(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		s.shutdownMu.Lock()
		s.isShutdown = true
		s.shutdownMu.Unlock()
		s.grpcServer.Stop()
	}
}

// Address returns the address the server was configured to listen on.
func (s *GracefulServer) Address() string { return s.address }
