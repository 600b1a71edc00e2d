// Package control defines the wire messages of the session manager's
// control channel (spec §6): OPEN, CLOSE, and SHUTDOWN requests and
// replies, encoded with XDR (RFC 4506) the way a kernel control device
// would marshal fixed-layout parameter blocks, plus a Dispatcher that
// drives internal/core from decoded messages.
package control

import (
	"bytes"
	"errors"
	"fmt"

	xdr "github.com/rasky/go-xdr/xdr2"

	"github.com/sessionfs/sessionfs/internal/core"
	"github.com/sessionfs/sessionfs/internal/hostfs"
	"github.com/sessionfs/sessionfs/internal/session"
)

// Status codes returned in OpenReply/CloseReply, mapping the session
// error taxonomy of spec §7 onto the wire. ShutdownReply carries no
// status; HandleShutdown reports refusal through its error result.
const (
	StatusOK = iota
	StatusInvalid
	StatusNoMem
	StatusBadFd
	StatusBusy
	StatusRetry
	StatusOwnerGone
	StatusShutdown
	StatusIOError
)

// OpenRequest is the OPEN control message.
type OpenRequest struct {
	Path  string
	Flags int32
	Mode  uint32
	Pid   int32
}

// OpenReply is the OPEN control reply.
type OpenReply struct {
	Fd     int32
	Status int32
}

// CloseRequest is the CLOSE control message.
type CloseRequest struct {
	Path string
	Fd   int32
	Pid  int32
}

// CloseReply is the CLOSE control reply.
type CloseReply struct {
	Status int32
}

// ShutdownReply is the SHUTDOWN control reply.
type ShutdownReply struct {
	ActiveCount int32
}

// Encode marshals v with XDR.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, v); err != nil {
		return nil, fmt.Errorf("control: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode unmarshals data with XDR into v.
func Decode(data []byte, v any) error {
	if _, err := xdr.Unmarshal(bytes.NewReader(data), v); err != nil {
		return fmt.Errorf("control: decode: %w", err)
	}
	return nil
}

func (r OpenRequest) Encode() ([]byte, error)  { return Encode(r) }
func (r *OpenRequest) Decode(b []byte) error   { return Decode(b, r) }
func (r OpenReply) Encode() ([]byte, error)    { return Encode(r) }
func (r *OpenReply) Decode(b []byte) error     { return Decode(b, r) }
func (r CloseRequest) Encode() ([]byte, error) { return Encode(r) }
func (r *CloseRequest) Decode(b []byte) error  { return Decode(b, r) }
func (r CloseReply) Encode() ([]byte, error)   { return Encode(r) }
func (r *CloseReply) Decode(b []byte) error    { return Decode(b, r) }
func (r ShutdownReply) Encode() ([]byte, error) {
	return Encode(r)
}
func (r *ShutdownReply) Decode(b []byte) error { return Decode(b, r) }

// statusFor maps a core/session error to its wire status code.
func statusFor(err error) int32 {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, session.ErrInvalid):
		return StatusInvalid
	case errors.Is(err, session.ErrNoMem):
		return StatusNoMem
	case errors.Is(err, session.ErrBadFd):
		return StatusBadFd
	case errors.Is(err, session.ErrBusy):
		return StatusBusy
	case errors.Is(err, session.ErrRetry):
		return StatusRetry
	case errors.Is(err, session.ErrOwnerGone):
		return StatusOwnerGone
	case errors.Is(err, session.ErrShutdown):
		return StatusShutdown
	default:
		return StatusIOError
	}
}

// Dispatcher drives a core.CoreState from decoded control messages.
type Dispatcher struct {
	core *core.CoreState
}

// NewDispatcher wraps core for control-channel dispatch.
func NewDispatcher(c *core.CoreState) *Dispatcher {
	return &Dispatcher{core: c}
}

// HandleOpen services an OpenRequest.
func (d *Dispatcher) HandleOpen(req OpenRequest) OpenReply {
	inc, err := d.core.Open(req.Path, hostfs.Flag(req.Flags), int(req.Pid), req.Mode)
	if err != nil {
		return OpenReply{Fd: -1, Status: statusFor(err)}
	}
	return OpenReply{Fd: int32(inc.Fd), Status: StatusOK}
}

// HandleClose services a CloseRequest. ErrOwnerGone is reported as
// StatusOwnerGone rather than swallowed: the incarnation is torn down
// either way, but the caller still needs to know the owner died.
func (d *Dispatcher) HandleClose(req CloseRequest) CloseReply {
	err := d.core.Close(req.Path, int(req.Fd), int(req.Pid))
	return CloseReply{Status: statusFor(err)}
}

// HandleShutdown services a SHUTDOWN request, returning the active
// incarnation count on refusal.
func (d *Dispatcher) HandleShutdown() (ShutdownReply, error) {
	err := d.core.Shutdown()
	if err != nil {
		return ShutdownReply{ActiveCount: int32(d.core.Sweep())}, err
	}
	return ShutdownReply{ActiveCount: 0}, nil
}
