// Package tcpctl implements the line-oriented TCP control protocol
// external collaborators use to drive and query blinds: one command
// per connection, read in a single shot and answered on the same
// connection for queries.
package tcpctl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/charmbracelet/log"

	"github.com/User65k/baos/internal/blind"
	"github.com/User65k/baos/internal/estimator"
)

// Core is the subset of internal/gateway.Gateway the control server
// drives.
type Core interface {
	SendGroupWrite(ctx context.Context, addr uint16, b byte) error
	MoveTo(ctx context.Context, id blind.Blind, pos blind.Pos, angle blind.Angle) error
	Snapshot() map[blind.Blind]estimator.Entry
}

// Server listens for control connections and dispatches each one's
// single command against core.
type Server struct {
	core Core
	log  *log.Logger
}

// New returns a Server driving core.
func New(core Core, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{core: core, log: logger}
}

// Serve accepts connections on ln until ctx is cancelled or the
// listener is closed. A single malformed or failing client command
// closes that connection and is logged; it never brings the listener
// down.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return fmt.Errorf("tcpctl: accept: %w", err)
		}
		go s.handle(ctx, conn)
	}
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	buf := make([]byte, 256)
	n, err := conn.Read(buf)
	if err != nil {
		s.log.Warn("control connection read failed", "remote", conn.RemoteAddr(), "err", err)
		return
	}
	if err := s.dispatch(ctx, conn, buf[:n]); err != nil {
		s.log.Warn("control command failed", "remote", conn.RemoteAddr(), "err", err)
	}
}

func (s *Server) dispatch(ctx context.Context, conn net.Conn, cmd []byte) error {
	fields := bytes.SplitN(cmd, []byte{' '}, 2)
	if len(fields) == 0 || len(fields[0]) == 0 {
		return errors.New("tcpctl: empty command")
	}
	target := string(fields[0])

	if len(fields) == 1 {
		return fmt.Errorf("tcpctl: missing action for target %q", target)
	}
	action := fields[1]

	targets, err := resolveTarget(target)
	if err != nil {
		return err
	}

	if len(action) == 2 && action[0]&0x80 == 0x80 {
		return s.handleMoveTo(ctx, targets, action[0]&0x7f, action[1])
	}

	if len(action) == 1 && action[0] == '?' {
		return s.handleQuery(conn)
	}

	singleStep, dir, err := parseSimpleAction(action)
	if err != nil {
		return err
	}
	for _, b := range targets {
		if err := s.core.SendGroupWrite(ctx, b.ToGroupAddr(singleStep), dirByte(dir)); err != nil {
			return fmt.Errorf("tcpctl: send to %s: %w", b, err)
		}
	}
	return nil
}

func parseSimpleAction(action []byte) (singleStep bool, dir blind.Direction, err error) {
	switch string(action) {
	case "1", "Z":
		return false, blind.Down, nil
	case "0", "A":
		return false, blind.Up, nil
	case "S", "D":
		return true, blind.Down, nil
	case "U":
		return true, blind.Up, nil
	}
	return false, 0, fmt.Errorf("tcpctl: unrecognized action %q", action)
}

func dirByte(d blind.Direction) byte {
	if d == blind.Up {
		return 0
	}
	return 1
}

func (s *Server) handleMoveTo(ctx context.Context, targets []blind.Blind, pos, angle byte) error {
	for _, b := range targets {
		if err := s.core.MoveTo(ctx, b, blind.Pos(pos), blind.Angle(angle)); err != nil {
			return fmt.Errorf("tcpctl: move %s: %w", b, err)
		}
	}
	return nil
}

// handleQuery writes, for every blind a..h, either (position,
// angle|moving-flags) if known or (255, 255) if unknown.
func (s *Server) handleQuery(conn net.Conn) error {
	snap := s.core.Snapshot()
	out := make([]byte, 0, 16)
	for c := byte('a'); c <= 'h'; c++ {
		id := blind.FromPort(c)
		entry, ok := snap[id]
		if !ok {
			out = append(out, 255, 255)
			continue
		}
		stat := byte(entry.Angle)
		if entry.Moving() {
			stat |= 0x20
			if entry.Direction == blind.Up {
				stat |= 0x10
			}
		}
		out = append(out, byte(entry.Position), stat)
	}
	_, err := conn.Write(out)
	return err
}
