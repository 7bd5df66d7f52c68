// SPDX-License-Identifier: GPL-3.0-or-later

package dnsstub

import (
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/bluele/gcache"
	"github.com/hashicorp/go-multierror"
)

const (
	// DefaultPendingTTL is the default lifetime of a pending query.
	DefaultPendingTTL = 10 * time.Second

	// DefaultMaxPending is the default maximum number of pending queries.
	DefaultMaxPending = 4096
)

// PacketWriter sends a datagram to an address. [net.PacketConn] implements it.
type PacketWriter interface {
	WriteTo(p []byte, addr net.Addr) (int, error)
}

// HandlerConfig configures a [*Handler].
//
// Construct using [NewHandlerConfig] or set the MANDATORY fields.
type HandlerConfig struct {
	// Upstream is the OPTIONAL resolver receiving the forwarded questions.
	//
	// When nil, the handler answers every query locally with [StubAddress].
	Upstream net.Addr

	// PendingTTL is the MANDATORY lifetime of a pending query. A query
	// whose answers did not all arrive within this time is dropped
	// and the requester receives nothing.
	PendingTTL time.Duration

	// MaxPending is the MANDATORY maximum number of pending queries.
	MaxPending int

	// Logger is the OPTIONAL logger, [slog.Default] when nil.
	Logger *slog.Logger
}

// NewHandlerConfig returns a [*HandlerConfig] forwarding to upstream.
func NewHandlerConfig(upstream net.Addr) *HandlerConfig {
	return &HandlerConfig{
		Upstream:   upstream,
		PendingTTL: DefaultPendingTTL,
		MaxPending: DefaultMaxPending,
		Logger:     nil,
	}
}

// Handler forwards queries to the upstream resolver and reassembles the
// responses. It owns the table of pending queries.
//
// A Handler expects to be driven by a single goroutine, as [*Server] does.
type Handler struct {
	config  HandlerConfig
	writer  PacketWriter
	logger  *slog.Logger
	clock   gcache.Clock
	metrics *handlerMetrics
	pending *pendingTable
}

// NewHandler constructs a new [*Handler] sending datagrams using writer.
func NewHandler(writer PacketWriter, config *HandlerConfig) *Handler {
	return newHandler(writer, config, gcache.NewRealClock())
}

func newHandler(writer PacketWriter, config *HandlerConfig, clock gcache.Clock) *Handler {
	h := &Handler{
		config: *config,
		writer: writer,
		logger: config.Logger,
		clock:  clock,
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.config.MaxPending <= 0 {
		h.config.MaxPending = DefaultMaxPending
	}
	if h.config.PendingTTL <= 0 {
		h.config.PendingTTL = DefaultPendingTTL
	}
	h.metrics = newHandlerMetrics(h.Pending)
	h.pending = newPendingTable(h.config.MaxPending, h.config.PendingTTL, clock, h.dropped)
	return h
}

// Pending returns the number of pending queries.
func (h *Handler) Pending() int {
	return h.pending.count()
}

// Sweep drops the expired pending queries and returns how many were dropped.
func (h *Handler) Sweep() int {
	return h.pending.sweep()
}

func (h *Handler) dropped(id uint16, pq *pendingQuery) {
	h.metrics.dropped.Inc()
	h.logger.Warn("dnsstub: dropping unanswered query",
		"id", id,
		"source", pq.source,
		"answers", len(pq.response.Answers),
		"questions", len(pq.response.Questions),
	)
}

// OnPacket handles a datagram received from source.
//
// Queries are forwarded to the upstream resolver, one datagram per question.
// Responses are matched to the pending query with the same transaction ID
// and, once every question has been answered, the reassembled response
// is sent to the original requester. Responses with an unknown transaction
// ID, or not coming from the upstream resolver, are ignored.
//
// The returned error describes why a datagram was dropped or could not be
// (entirely) sent. It never affects the handling of subsequent datagrams.
func (h *Handler) OnPacket(data []byte, source net.Addr) error {
	msg, _, err := DecodeMessage(data)
	if err != nil {
		h.metrics.malformed.Inc()
		return fmt.Errorf("dropping datagram from %s: %w", source, err)
	}
	if !msg.Header.QR {
		return h.onQuery(msg, source)
	}
	return h.onResponse(msg, source)
}

func (h *Handler) onQuery(query *Message, source net.Addr) error {
	h.metrics.queries.Inc()
	h.logger.Debug("dnsstub: handling query",
		"id", query.Header.ID,
		"source", source,
		"questions", len(query.Questions),
	)

	if h.config.Upstream == nil {
		resp, err := BuildStubResponse(query)
		if err != nil {
			return fmt.Errorf("answering query %d from %s: %w", query.Header.ID, source, err)
		}
		return h.respond(resp, source)
	}

	// Nothing to forward: the query is trivially complete.
	if len(query.Questions) == 0 {
		resp := NewMessage(query.Header, nil, []Record{})
		resp.PrepareForResponse(true)
		return h.respond(resp, source)
	}

	id := query.Header.ID
	if old, found := h.pending.lookup(id); found {
		old.settled = true
		h.logger.Warn("dnsstub: replacing pending query with the same id",
			"id", id,
			"source", source,
			"previousSource", old.source,
		)
	}
	response := query.Clone()
	response.Answers = []Record{}
	response.AnswerSection = true
	pq := &pendingQuery{
		source:   source,
		response: response,
		answered: make([]bool, len(query.Questions)),
		created:  h.clock.Now(),
	}
	if err := h.pending.store(id, pq); err != nil {
		return fmt.Errorf("storing query %d: %w", id, err)
	}

	var result *multierror.Error
	for _, question := range query.Questions {
		header := query.Header
		header.QR = false
		header.Rcode = rcodeForOpcode(header.Opcode)
		forward := NewMessage(header, []Question{question}, nil)
		h.logger.Debug("dnsstub: forwarding question",
			"id", id,
			"name", question.Name,
			"upstream", h.config.Upstream,
		)
		if err := h.send(forward, h.config.Upstream); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		h.metrics.forwarded.Inc()
	}
	return result.ErrorOrNil()
}

func (h *Handler) onResponse(resp *Message, source net.Addr) error {
	id := resp.Header.ID
	if !sameAddr(source, h.config.Upstream) {
		h.metrics.unmatched.Inc()
		h.logger.Warn("dnsstub: ignoring response not coming from the upstream resolver",
			"id", id,
			"source", source,
			"upstream", h.config.Upstream,
		)
		return nil
	}
	pq, found := h.pending.lookup(id)
	if !found {
		h.metrics.unmatched.Inc()
		h.logger.Debug("dnsstub: ignoring response without pending query", "id", id, "source", source)
		return nil
	}
	if len(resp.Answers) == 0 {
		h.logger.Debug("dnsstub: ignoring response without answers", "id", id, "source", source)
		return nil
	}
	idx, found := pq.match(resp)
	if !found {
		h.metrics.unmatched.Inc()
		h.logger.Debug("dnsstub: ignoring response matching no unanswered question", "id", id, "source", source)
		return nil
	}

	pq.answered[idx] = true
	if err := pq.response.AddAnswer(resp.Answers[0]); err != nil {
		return fmt.Errorf("query %d: %w", id, err)
	}
	if !pq.response.AllQuestionsAnswered() {
		return nil
	}

	h.pending.remove(id)
	h.metrics.duration.Update(h.clock.Now().Sub(pq.created).Seconds())
	pq.response.PrepareForResponse(true)
	return h.respond(pq.response, pq.source)
}

// sameAddr compares addresses by network and string form, since
// [net.PacketConn] returns a fresh [net.Addr] for every datagram.
func sameAddr(x, y net.Addr) bool {
	if x == nil || y == nil {
		return false
	}
	return x.Network() == y.Network() && x.String() == y.String()
}

func (h *Handler) respond(resp *Message, dest net.Addr) error {
	if err := h.send(resp, dest); err != nil {
		return err
	}
	h.metrics.responses.Inc()
	h.logger.Debug("dnsstub: sent response",
		"id", resp.Header.ID,
		"dest", dest,
		"answers", len(resp.Answers),
	)
	return nil
}

func (h *Handler) send(msg *Message, dest net.Addr) error {
	raw, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("encoding message %d: %w", msg.Header.ID, err)
	}
	if len(raw) > MaxMessageSize {
		h.metrics.sendErrors.Inc()
		return fmt.Errorf("%w: %d bytes for %s", ErrMessageTooLarge, len(raw), dest)
	}
	if _, err := h.writer.WriteTo(raw, dest); err != nil {
		h.metrics.sendErrors.Inc()
		return fmt.Errorf("sending message %d to %s: %w", msg.Header.ID, dest, err)
	}
	return nil
}

// BuildStubResponse builds the response to a query answering every
// question locally with [StubAddress] and a zero TTL.
func BuildStubResponse(query *Message) (*Message, error) {
	answers := make([]Record, 0, len(query.Questions))
	for _, q := range query.Questions {
		rr := RecordFromQuestion(q)
		if err := rr.Resolve(); err != nil {
			return nil, err
		}
		answers = append(answers, rr)
	}
	return NewMessage(ResponseHeader(query.Header), query.Questions, answers), nil
}
