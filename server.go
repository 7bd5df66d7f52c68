// SPDX-License-Identifier: GPL-3.0-or-later

package dnsstub

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/tevino/abool"
)

// DefaultSweepInterval is the default interval between sweeps of the
// expired pending queries.
const DefaultSweepInterval = time.Second

// Server is the UDP receive loop driving a [*Handler].
//
// Datagrams are handled one at a time, in the order in which they are
// received, by a single goroutine.
//
// Construct using [NewServer] or set the MANDATORY fields.
type Server struct {
	// Conn is the MANDATORY socket to read datagrams from.
	Conn net.PacketConn

	// Handler is the MANDATORY handler of the datagrams.
	Handler *Handler

	// Logger is the OPTIONAL logger, [slog.Default] when nil.
	Logger *slog.Logger

	// SweepInterval is the OPTIONAL interval between sweeps of the pending
	// queries and between checks of the context passed to [*Server.Serve].
	// When not positive, [DefaultSweepInterval] is used.
	SweepInterval time.Duration

	running abool.AtomicBool
}

// NewServer constructs a new [*Server] with safe defaults.
//
// The handler should write to the same conn, so that upstream responses
// come back to the socket we are reading from.
func NewServer(conn net.PacketConn, handler *Handler) *Server {
	return &Server{
		Conn:          conn,
		Handler:       handler,
		Logger:        slog.Default(),
		SweepInterval: DefaultSweepInterval,
	}
}

// Serve reads and handles datagrams until the context is done, in which
// case it returns nil, or until reading fails.
//
// Serve does not close the connection.
func (s *Server) Serve(ctx context.Context) error {
	if !s.running.SetToIf(false, true) {
		return ErrServerRunning
	}
	defer s.running.UnSet()

	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := s.SweepInterval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	logger.Info("dnsstub: serving", "addr", s.Conn.LocalAddr())
	buffer := make([]byte, MaxMessageSize)
	lastSweep := time.Now()

	for ctx.Err() == nil {
		if time.Since(lastSweep) >= interval {
			s.sweep(logger)
			lastSweep = time.Now()
		}

		if err := s.Conn.SetReadDeadline(time.Now().Add(interval)); err != nil {
			return err
		}
		count, source, err := s.Conn.ReadFrom(buffer)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				break
			}
			return err
		}

		if err := s.Handler.OnPacket(buffer[:count], source); err != nil {
			logger.Warn("dnsstub: failed to handle datagram", "source", source, "err", err)
		}
	}

	logger.Info("dnsstub: stopped serving", "addr", s.Conn.LocalAddr())
	return nil
}

func (s *Server) sweep(logger *slog.Logger) {
	if dropped := s.Handler.Sweep(); dropped > 0 {
		logger.Debug("dnsstub: swept expired pending queries", "dropped", dropped)
	}
}
