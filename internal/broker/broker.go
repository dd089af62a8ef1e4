// Package broker implements the session broker.
//
// The broker races the configured transports and returns a session bound
// to the first transport that becomes ready and manages to connect to the
// injector. Each call to [Broker.Connect] runs an independent arbitration
// round, with states Idle, Racing, and then one of Won, AllFailed and
// AllTimedOut. Every transport bootstraps concurrently under its own
// deadline, measured from the start of its own bootstrap. When a transport
// wins, the broker tears down all the other transports before returning.
package broker

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/ouinet-go/ouinet/internal/errorsx"
	"github.com/ouinet-go/ouinet/internal/model"
	"github.com/ouinet-go/ouinet/internal/readiness"
	"github.com/ouinet-go/ouinet/internal/transport"
)

// Broker races transports to obtain a session with the injector. The
// zero value is invalid; construct using [New]. A Broker is safe for
// concurrent use, since rounds do not share state.
type Broker struct {
	// PollInterval is the interval at which we poll the readiness
	// of each transport. When zero, we use readiness.DefaultInterval.
	PollInterval time.Duration

	logger     model.Logger
	transports []transport.Transport
}

// New creates a new [Broker] racing the given transports. The order of
// the transports breaks ties when more than one is ready at once.
func New(logger model.Logger, transports ...transport.Transport) *Broker {
	return &Broker{
		logger:     model.ValidLoggerOrDefault(logger),
		transports: append([]transport.Transport{}, transports...),
	}
}

// Transports returns the configuration of each transport.
func (b *Broker) Transports() (out []transport.Config) {
	for _, txp := range b.transports {
		out = append(out, txp.Config())
	}
	return
}

// Connect runs an arbitration round. On success, the returned session is
// bound to the winning transport and the caller owns it. Otherwise, the
// error is an *errorsx.ArbitrationError matching errorsx.ErrNoTransportAvailable
// and carrying exactly one failure per transport. When the context is
// cancelled, the failures are interrupted and the error also matches the
// context error.
func (b *Broker) Connect(ctx context.Context) (*transport.Session, error) {
	metricRoundsInflight.Inc()
	defer metricRoundsInflight.Dec()
	r := &round{
		ctx:      ctx,
		id:       uuid.Must(uuid.NewRandom()).String(),
		interval: b.PollInterval,
		outcomes: make(chan *message, len(b.transports)),
	}
	r.logger = model.NewPrefixLogger("broker: "+r.id[:8]+": ", b.logger)
	return r.run(b.transports)
}

// round is an arbitration round.
type round struct {
	ctx      context.Context
	id       string
	interval time.Duration
	logger   model.Logger
	outcomes chan *message
}

// handle is the broker's view of a transport during a round.
type handle struct {
	bootstrap transport.Bootstrap
	cancel    context.CancelFunc
	config    transport.Config
	ctx       context.Context
	index     int
	t0        time.Time
	txp       transport.Transport
}

// message is what a bootstrap goroutine sends to the broker.
type message struct {
	h       *handle
	outcome readiness.Outcome
}

func (r *round) run(transports []transport.Transport) (*transport.Session, error) {
	r.logger.Infof("racing %d transports", len(transports))
	var handles []*handle
	for idx, txp := range transports {
		config := txp.Config()
		ctx, cancel := context.WithTimeout(r.ctx, config.EffectiveReadyTimeout())
		h := &handle{
			cancel: cancel,
			config: config,
			ctx:    ctx,
			index:  idx,
			t0:     time.Now(),
			txp:    txp,
		}
		handles = append(handles, h)
		go r.bootstrap(h)
	}

	failures := make([]*errorsx.TransportFailure, len(handles))
	pending := len(handles)
	var sess *transport.Session
	for pending > 0 && sess == nil {
		batch := r.receive()
		pending -= len(batch)
		for _, m := range batch {
			if m.outcome.State != readiness.Ready {
				failures[m.h.index] = r.newFailure(m)
				continue
			}
			if sess != nil {
				// a tie that we lost against an earlier transport
				r.logger.Infof("%s: ready but lost the round", m.h.config.TransportName())
				m.h.bootstrap.Stop()
				continue
			}
			sess, failures[m.h.index] = r.openSession(m.h)
		}
	}

	if sess != nil {
		r.teardown(handles, pending)
		r.logger.Infof("%s: won the round", sess.Transport())
		metricRoundsCount.WithLabelValues(errorsx.OutcomeWon).Inc()
		return sess, nil
	}
	for _, h := range handles {
		h.cancel()
	}
	err := errorsx.NewArbitrationError(r.id, failures)
	r.logger.Warnf("%s", err.Error())
	metricRoundsCount.WithLabelValues(err.Outcome).Inc()
	return nil, err
}

// bootstrap bootstraps a single transport and sends its outcome to the
// broker. A bootstrap that does not become ready is stopped here.
func (r *round) bootstrap(h *handle) {
	name := h.config.TransportName()
	r.logger.Infof("%s: bootstrap with %s deadline", name, h.config.EffectiveReadyTimeout())
	b, err := h.txp.BeginBootstrap(h.ctx)
	if err != nil {
		r.outcomes <- &message{h: h, outcome: beginBootstrapOutcome(h, err)}
		return
	}
	h.bootstrap = b // published through the channel
	outcome := readiness.Watch(h.ctx, b, r.interval)
	metricBootstrapSeconds.WithLabelValues(name, outcome.State.String()).Observe(
		time.Since(h.t0).Seconds())
	r.logger.Infof("%s: %s in %s", name, outcome.State, outcome.Elapsed)
	if outcome.State != readiness.Ready {
		b.Stop()
	}
	r.outcomes <- &message{h: h, outcome: outcome}
}

// beginBootstrapOutcome maps a BeginBootstrap error to an outcome.
func beginBootstrapOutcome(h *handle, err error) readiness.Outcome {
	state := readiness.Failed
	if h.ctx.Err() != nil {
		state = readiness.Cancelled
		if h.ctx.Err() == context.DeadlineExceeded {
			state = readiness.TimedOut
		}
	}
	return readiness.Outcome{State: state, Reason: err, Elapsed: time.Since(h.t0)}
}

// receive blocks for the next outcome and then drains the outcomes that
// are already queued. The result is sorted in configuration order, so
// that simultaneous readiness is broken deterministically.
func (r *round) receive() (batch []*message) {
	batch = append(batch, <-r.outcomes)
	for {
		select {
		case m := <-r.outcomes:
			batch = append(batch, m)
		default:
			sort.SliceStable(batch, func(i, j int) bool {
				return batch[i].h.index < batch[j].h.index
			})
			return
		}
	}
}

// openSession opens a session with a ready transport within the deadline
// of that transport. A transport that fails to connect is stopped and not
// retried in this round.
func (r *round) openSession(h *handle) (*transport.Session, *errorsx.TransportFailure) {
	name := h.config.TransportName()
	conn, err := h.bootstrap.OpenSession(h.ctx)
	if err != nil {
		r.logger.Warnf("%s: ready but cannot connect: %s", name, err.Error())
		h.bootstrap.Stop()
		if r.ctx.Err() != nil {
			return nil, errorsx.NewTransportFailure(name, errorsx.ErrInterrupted, err, time.Since(h.t0))
		}
		return nil, errorsx.NewTransportFailure(name, errorsx.ErrConnectFailed, err, time.Since(h.t0))
	}
	// the session outlives the transport's bootstrap deadline
	h.cancel()
	return transport.NewSession(name, conn, h.bootstrap), nil
}

// newFailure maps a non-ready outcome to a failure. When the caller has
// interrupted the round, we do not blame the transport.
func (r *round) newFailure(m *message) *errorsx.TransportFailure {
	name := m.h.config.TransportName()
	elapsed := time.Since(m.h.t0)
	switch {
	case m.outcome.State == readiness.Failed:
		return errorsx.NewTransportFailure(name, errorsx.ErrTransportFailed, m.outcome.Reason, elapsed)
	case r.ctx.Err() != nil || m.outcome.State == readiness.Cancelled:
		return errorsx.NewTransportFailure(name, errorsx.ErrInterrupted, m.outcome.Reason, elapsed)
	default:
		return errorsx.NewTransportFailure(name, errorsx.ErrTimedOut, m.outcome.Reason, elapsed)
	}
}

// teardown cancels all the transports still racing and waits for their
// goroutines to send their outcome, stopping those that became ready in
// the meanwhile. Losers that did not become ready stop themselves.
func (r *round) teardown(handles []*handle, pending int) {
	for _, h := range handles {
		h.cancel()
	}
	for ; pending > 0; pending-- {
		m := <-r.outcomes
		if m.outcome.State == readiness.Ready {
			r.logger.Infof("%s: ready but lost the round", m.h.config.TransportName())
			m.h.bootstrap.Stop()
		}
	}
}
