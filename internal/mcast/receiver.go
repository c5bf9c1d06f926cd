// Package mcast implements C5: joining an ASM/SSM multicast group and
// delivering batches of datagrams up to a fixed vector length. The
// underlying join/batch-receive syscalls are treated as an external
// collaborator per spec.md §1 — this package is a thin, typed wrapper over
// golang.org/x/net/ipv4's PacketConn, which on Linux backs ReadBatch with
// recvmmsg(2).
package mcast

import (
	"fmt"
	"net"

	"golang.org/x/net/ipv4"
)

// OpenConfig names the join parameters for one channel.
type OpenConfig struct {
	Group         string // multicast group address
	Port          uint16
	InterfaceAddr string // local interface address to join on
	Source        string // "" => ASM, else SSM source address
	RecvBufBytes  int    // 0 => leave OS default
}

// Receiver is an open multicast socket delivering batches of datagrams.
type Receiver struct {
	pconn *ipv4.PacketConn
	udp   *net.UDPConn
	msgs  []ipv4.Message
}

// Open binds 0.0.0.0:port with net.ListenUDP, then joins ASM (Source empty)
// or SSM (Source set) on the given local interface. The wildcard bind does
// not set SO_REUSEADDR, so the port cannot be shared with another listener.
func Open(cfg OpenConfig, batchLen, slotBytes int) (*Receiver, error) {
	laddr := &net.UDPAddr{IP: net.IPv4zero, Port: int(cfg.Port)}
	udp, err := net.ListenUDP("udp4", laddr)
	if err != nil {
		return nil, fmt.Errorf("mcast: listen failed: %w", err)
	}

	if cfg.RecvBufBytes > 0 {
		_ = udp.SetReadBuffer(cfg.RecvBufBytes)
	}

	pconn := ipv4.NewPacketConn(udp)

	iface, err := interfaceForAddr(cfg.InterfaceAddr)
	if err != nil {
		udp.Close()
		return nil, fmt.Errorf("mcast: interface lookup failed: %w", err)
	}

	groupIP := net.ParseIP(cfg.Group)
	if groupIP == nil {
		udp.Close()
		return nil, fmt.Errorf("mcast: invalid group address %q", cfg.Group)
	}
	group := &net.UDPAddr{IP: groupIP}

	if cfg.Source != "" {
		sourceIP := net.ParseIP(cfg.Source)
		if sourceIP == nil {
			udp.Close()
			return nil, fmt.Errorf("mcast: invalid source address %q", cfg.Source)
		}
		source := &net.UDPAddr{IP: sourceIP}
		if err := pconn.JoinSourceSpecificGroup(iface, group, source); err != nil {
			udp.Close()
			return nil, fmt.Errorf("mcast: join source-specific group failed: %w", err)
		}
	} else {
		if err := pconn.JoinGroup(iface, group); err != nil {
			udp.Close()
			return nil, fmt.Errorf("mcast: join group failed: %w", err)
		}
	}

	return &Receiver{
		pconn: pconn,
		udp:   udp,
		msgs:  newMessages(batchLen, slotBytes),
	}, nil
}

func newMessages(batchLen, slotBytes int) []ipv4.Message {
	msgs := make([]ipv4.Message, batchLen)
	for i := range msgs {
		msgs[i].Buffers = [][]byte{make([]byte, slotBytes)}
	}
	return msgs
}

// SetRecvBuf adjusts the OS receive buffer size after open.
func (r *Receiver) SetRecvBuf(bytes int) error {
	return r.udp.SetReadBuffer(bytes)
}

// RecvBatch retrieves up to len(msgs) datagrams in one call and returns the
// count ready. A zero count with a nil error means no data arrived within
// the platform's receive timeout; the caller should loop back around.
func (r *Receiver) RecvBatch() (n int, err error) {
	return r.pconn.ReadBatch(r.msgs, 0)
}

// Datagram returns the i'th datagram's payload from the most recent
// RecvBatch call. The slice aliases the receiver's reused buffers and is
// invalidated by the next RecvBatch call.
func (r *Receiver) Datagram(i int) []byte {
	m := r.msgs[i]
	return m.Buffers[0][:m.N]
}

// Close releases the socket.
func (r *Receiver) Close() error {
	return r.udp.Close()
}

func interfaceForAddr(addr string) (*net.Interface, error) {
	if addr == "" {
		return nil, nil
	}
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	for i := range ifaces {
		addrs, err := ifaces[i].Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipNet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			if ipNet.IP.String() == addr {
				return &ifaces[i], nil
			}
		}
	}
	return nil, fmt.Errorf("no local interface with address %q", addr)
}
