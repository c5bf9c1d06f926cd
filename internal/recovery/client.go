// Package recovery implements C6: a best-effort retransmission client that
// requests a bounded range of missing sequence numbers from a known unicast
// peer and renders whatever comes back through the same decoder path as
// live multicast traffic.
package recovery

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/marketdata/moldfeed/internal/protocol/mold"
	"github.com/marketdata/moldfeed/internal/protocol/render"
	"github.com/marketdata/moldfeed/internal/protocol/schema"
	"github.com/marketdata/moldfeed/internal/protocol/wire"
)

const requestSize = 20 // 10-byte session + 8-byte seq + 2-byte count

// maxTimeoutsPerRound caps consecutive receive timeouts within one
// recovery round before that round is abandoned.
const maxTimeoutsPerRound = 3

// Outcome classifies how a single Recover call ended, for diagnostic
// logging; it never changes the returned count.
type Outcome int

const (
	OutcomeFull Outcome = iota
	OutcomePartial
	OutcomeStalled
	OutcomeUnavailable
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFull:
		return "full"
	case OutcomePartial:
		return "partial"
	case OutcomeStalled:
		return "stalled"
	default:
		return "unavailable"
	}
}

// Client is a unicast UDP connection to the retransmission peer.
type Client struct {
	conn          *net.UDPConn
	maxPerRequest uint16
	timeout       time.Duration
	log           zerolog.Logger
}

// Open dials the retransmission peer and configures its receive timeout.
func Open(addr string, port uint16, maxPerRequest uint16, rcvBufBytes int, timeout time.Duration, log zerolog.Logger) (*Client, error) {
	raddr := &net.UDPAddr{IP: net.ParseIP(addr), Port: int(port)}
	if raddr.IP == nil {
		return nil, fmt.Errorf("recovery: invalid peer address %q", addr)
	}
	conn, err := net.DialUDP("udp4", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("recovery: dial failed: %w", err)
	}
	if rcvBufBytes > 0 {
		_ = conn.SetReadBuffer(rcvBufBytes)
	}
	return &Client{
		conn:          conn,
		maxPerRequest: maxPerRequest,
		timeout:       timeout,
		log:           log,
	}, nil
}

// Close releases the underlying socket.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Recover requests [startSeq, startSeq+count) from the peer, decoding each
// response packet through mold.Decode and writing its rendered text via
// write. It returns the number of messages actually recovered, which may
// be less than count; a partial return is a normal, non-error outcome.
func (c *Client) Recover(session [mold.SessionSize]byte, startSeq, count uint64, opt mold.DecodeOptions, cat *schema.Catalog, out *render.Buffer, write func([]byte) error) (uint64, Outcome) {
	if count == 0 {
		return 0, OutcomeFull
	}

	var recovered uint64
	remaining := count
	cur := startSeq
	rxbuf := make([]byte, 65536)

	for remaining > 0 {
		req := remaining
		if req > uint64(c.maxPerRequest) {
			req = uint64(c.maxPerRequest)
		}

		if err := c.sendRequest(session, cur, uint16(req)); err != nil {
			c.log.Warn().Err(err).Uint64("start_seq", cur).Msg("recovery send failed")
			break
		}
		c.log.Debug().Uint64("start_seq", cur).Uint64("count", req).Msg("recovery request")

		got, err := c.drainRound(rxbuf, req, opt, cat, out, write)
		if err != nil {
			c.log.Warn().Err(err).Uint64("start_seq", cur).Msg("recovery receive failed")
		}

		if got == 0 {
			c.log.Warn().Uint64("start_seq", cur).Uint64("requested", req).Msg("recovery round stalled")
			return recovered, classify(recovered, count)
		}

		recovered += got
		cur += got
		if remaining > got {
			remaining -= got
		} else {
			remaining = 0
		}
	}

	return recovered, classify(recovered, count)
}

func classify(recovered, requested uint64) Outcome {
	if recovered >= requested {
		return OutcomeFull
	}
	if recovered == 0 {
		return OutcomeStalled
	}
	return OutcomePartial
}

func (c *Client) sendRequest(session [mold.SessionSize]byte, seq uint64, count uint16) error {
	var req [requestSize]byte
	copy(req[0:10], session[:])
	wire.PutU64BE(req[10:18], seq)
	wire.PutU16BE(req[18:20], count)
	_, err := c.conn.Write(req[:])
	return err
}

// drainRound reads responses for one request until `want` messages have
// been accounted for, up to maxTimeoutsPerRound consecutive timeouts.
func (c *Client) drainRound(rxbuf []byte, want uint64, opt mold.DecodeOptions, cat *schema.Catalog, out *render.Buffer, write func([]byte) error) (uint64, error) {
	var got uint64
	timeouts := 0

	for got < want {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.timeout))
		n, err := c.conn.Read(rxbuf)
		if err != nil {
			if isTimeout(err) {
				timeouts++
				if timeouts >= maxTimeoutsPerRound {
					break
				}
				continue
			}
			return got, err
		}
		timeouts = 0

		n2 := mold.Decode(rxbuf[:n], opt, cat, out)
		if n2 > 0 {
			if err := write(out.Bytes()); err != nil {
				return got, err
			}
		}

		hdr, ok := mold.ParseHeader(rxbuf[:n])
		if !ok || hdr.IsEndOfSession() {
			continue
		}
		got += uint64(hdr.MessageCount)
	}

	return got, nil
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
