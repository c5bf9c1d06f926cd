// Package ingest implements C7: the single-threaded cooperative loop that
// drives the multicast receiver, tracks the expected sequence number per
// session, and calls into the retransmission client on a gap.
package ingest

import (
	"io"

	"github.com/rs/zerolog"

	"github.com/marketdata/moldfeed/internal/protocol/mold"
	"github.com/marketdata/moldfeed/internal/protocol/render"
	"github.com/marketdata/moldfeed/internal/protocol/schema"
	"github.com/marketdata/moldfeed/internal/recovery"
)

// sanityCap bounds the auto-start recovery window regardless of how far
// past sequence 1 the first observed packet is, so a session that starts
// mid-stream at a very large sequence number cannot trigger an unbounded
// recovery request.
const sanityCap = 100000

// ExpectedState is the per-session sequence tracker. A zero value means no
// packet has been observed yet.
type ExpectedState struct {
	ExpectedSeq         uint64
	TotalMsgs           uint64
	InitialDone         bool
	DidAutoStartRecover bool
}

// Options configures one run of the ingest loop.
type Options struct {
	// StartSeq > 0 requests a bounded download starting at this sequence.
	StartSeq uint64
	// GapFill enables live-gap recovery beyond the bounded download.
	GapFill bool
	// MessageCap, if non-zero, stops the loop once TotalMsgs reaches it.
	MessageCap uint64
	Decode     mold.DecodeOptions
}

// Recoverer is the subset of *recovery.Client the loop depends on, so tests
// can substitute a stub peer.
type Recoverer interface {
	Recover(session [mold.SessionSize]byte, startSeq, count uint64, opt mold.DecodeOptions, cat *schema.Catalog, out *render.Buffer, write func([]byte) error) (uint64, recovery.Outcome)
}

// Batch is the subset of *mcast.Receiver the loop depends on.
type Batch interface {
	RecvBatch() (int, error)
	Datagram(i int) []byte
}

// Loop owns the sequence tracker and drives one receiver against one
// catalog, optionally backed by a retransmission client.
type Loop struct {
	recv     Batch
	cat      *schema.Catalog
	rec      Recoverer
	out      io.Writer
	buf      *render.Buffer
	log      zerolog.Logger
	opt      Options
	state    map[[mold.SessionSize]byte]*ExpectedState
	stop     bool
	stopFlag func() bool
}

// New builds a Loop. stopFlag is polled between datagrams; it is not
// consulted inside a Recover call, which runs all of its rounds before
// returning. A nil stopFlag never requests a stop.
func New(recv Batch, cat *schema.Catalog, rec Recoverer, out io.Writer, buf *render.Buffer, log zerolog.Logger, opt Options, stopFlag func() bool) *Loop {
	if stopFlag == nil {
		stopFlag = func() bool { return false }
	}
	return &Loop{
		recv:     recv,
		cat:      cat,
		rec:      rec,
		out:      out,
		buf:      buf,
		log:      log,
		opt:      opt,
		state:    make(map[[mold.SessionSize]byte]*ExpectedState),
		stopFlag: stopFlag,
	}
}

// Run drives the loop until the stop flag is observed or the message cap is
// reached, returning nil on a clean stop.
func (l *Loop) Run() error {
	for !l.stop && !l.stopFlag() {
		n, err := l.recv.RecvBatch()
		if err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			dg := l.recv.Datagram(i)
			if len(dg) == 0 {
				continue
			}
			l.handleDatagram(dg)
			if l.stop || l.stopFlag() {
				break
			}
		}
	}
	return nil
}

func (l *Loop) write(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	_, err := l.out.Write(b)
	return err
}

func (l *Loop) handleDatagram(dg []byte) {
	hdr, ok := mold.ParseHeader(dg)
	if !ok {
		return
	}

	st := l.state[hdr.Session]
	if st == nil {
		st = &ExpectedState{}
		if l.opt.StartSeq > 0 {
			st.ExpectedSeq = l.opt.StartSeq
		}
		l.state[hdr.Session] = st
	}

	if hdr.IsEndOfSession() {
		mold.Decode(dg, l.opt.Decode, l.cat, l.buf)
		_ = l.write(l.buf.Bytes())
		return
	}

	if l.syncInitial(st, hdr) {
		mold.Decode(dg, l.opt.Decode, l.cat, l.buf)
		_ = l.write(l.buf.Bytes())
		if l.opt.MessageCap > 0 && st.TotalMsgs >= l.opt.MessageCap {
			l.stop = true
		}
		return
	}

	if st.ExpectedSeq == 0 {
		st.ExpectedSeq = hdr.SequenceNumber
	}

	switch {
	case hdr.SequenceNumber > st.ExpectedSeq:
		gap := hdr.SequenceNumber - st.ExpectedSeq
		if l.opt.GapFill && l.rec != nil {
			budget, capped := l.remainingBudget(st)
			req := gap
			if capped && req > budget {
				req = budget
			}
			if req > 0 {
				recovered, outcome := l.rec.Recover(hdr.Session, st.ExpectedSeq, req, l.opt.Decode, l.cat, l.buf, l.write)
				st.TotalMsgs += recovered
				l.log.Info().
					Uint64("start_seq", st.ExpectedSeq).
					Uint64("gap", gap).
					Uint64("recovered", recovered).
					Str("outcome", outcome.String()).
					Msg("gap recovery")
			}
		} else {
			l.log.Warn().Uint64("start_seq", st.ExpectedSeq).Uint64("gap", gap).Msg("gap not recovered")
		}
		st.ExpectedSeq = hdr.SequenceNumber
	case hdr.SequenceNumber < st.ExpectedSeq:
		return // duplicate or stale
	}

	mold.Decode(dg, l.opt.Decode, l.cat, l.buf)
	_ = l.write(l.buf.Bytes())

	st.TotalMsgs += uint64(hdr.MessageCount)
	st.ExpectedSeq += uint64(hdr.MessageCount)

	if l.opt.MessageCap > 0 && st.TotalMsgs >= l.opt.MessageCap {
		l.stop = true
	}
}

// syncInitial implements the bounded-download and auto-start-recovery modes
// from the initial-sync algorithm. It mutates st and may emit a recovery
// round. It returns true when it has handled the first datagram of a
// bounded download itself, including its sequence and message-count
// accounting, telling the caller only to decode and write this datagram
// (and check the message cap) without also running the live gap-decision
// step.
func (l *Loop) syncInitial(st *ExpectedState, hdr mold.PacketHeader) bool {
	if l.opt.StartSeq > 0 && !st.InitialDone {
		if l.rec != nil && hdr.SequenceNumber > st.ExpectedSeq {
			gap := hdr.SequenceNumber - st.ExpectedSeq
			budget, capped := l.remainingBudget(st)
			req := gap
			if capped && req > budget {
				req = budget
			}
			if req > 0 {
				recovered, outcome := l.rec.Recover(hdr.Session, st.ExpectedSeq, req, l.opt.Decode, l.cat, l.buf, l.write)
				st.TotalMsgs += recovered
				l.log.Info().
					Uint64("start_seq", st.ExpectedSeq).
					Uint64("count", req).
					Uint64("recovered", recovered).
					Str("outcome", outcome.String()).
					Msg("bounded download recovery")
			}
		}
		st.ExpectedSeq = hdr.SequenceNumber
		st.InitialDone = true
		st.TotalMsgs += uint64(hdr.MessageCount)
		st.ExpectedSeq += uint64(hdr.MessageCount)
		if !l.opt.GapFill {
			l.stop = true
		}
		return true
	}

	if !st.DidAutoStartRecover && st.ExpectedSeq == 0 && hdr.SequenceNumber > 1 && l.rec != nil {
		st.DidAutoStartRecover = true
		count := hdr.SequenceNumber - 1
		budget, capped := l.remainingBudget(st)
		if capped && count > budget {
			count = budget
		}
		if sanityCap > 0 && count > sanityCap {
			count = sanityCap
		}
		if count > 0 {
			recovered, outcome := l.rec.Recover(hdr.Session, 1, count, l.opt.Decode, l.cat, l.buf, l.write)
			st.TotalMsgs += recovered
			l.log.Info().
				Uint64("start_seq", 1).
				Uint64("count", count).
				Uint64("recovered", recovered).
				Str("outcome", outcome.String()).
				Msg("auto-start recovery")
		}
	}
	return false
}

// remainingBudget reports how many more messages may be requested before
// MessageCap is hit, and whether a cap applies at all. A zero MessageCap
// means unbounded.
func (l *Loop) remainingBudget(st *ExpectedState) (uint64, bool) {
	if l.opt.MessageCap == 0 {
		return 0, false
	}
	if st.TotalMsgs >= l.opt.MessageCap {
		return 0, true
	}
	return l.opt.MessageCap - st.TotalMsgs, true
}
