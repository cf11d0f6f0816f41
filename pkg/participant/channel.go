package participant

import (
    "net"

    metrics "github.com/rcrowley/go-metrics"

    "github.com/felicpei/wasm-vogame-test/pkg/protocol"
    "github.com/felicpei/wasm-vogame-test/pkg/protocol/frame"
    "github.com/felicpei/wasm-vogame-test/pkg/transport"
    "github.com/felicpei/wasm-vogame-test/pkg/types"
)

// Channel is one connection with its protocol halves. Before it is handed to
// a Participant it can run the handshake through SendInit and RecvInit.
type Channel struct {
    cid     types.Cid
    conn    transport.Conn
    send    *protocol.SendProtocol
    recv    *protocol.RecvProtocol
    metrics *protocol.Metrics

    // owned by the participant run loop
    streams        int
    lastFrames     int64
    dead           bool
    remoteShutdown bool
}

// NewChannel wraps conn. Protocol counters are registered in reg under
// channel.<cid>, or in a private registry when reg is nil.
func NewChannel(cid types.Cid, conn transport.Conn, reg metrics.Registry) *Channel {
    m := protocol.NewMetrics(reg, cid)
    return &Channel{
        cid:     cid,
        conn:    conn,
        send:    protocol.NewSend(conn, m),
        recv:    protocol.NewRecv(conn, m),
        metrics: m,
    }
}

func (c *Channel) Cid() types.Cid                      { return c.cid }
func (c *Channel) SendInit(f frame.InitFrame) error     { return c.send.SendInit(f) }
func (c *Channel) RecvInit() (frame.InitFrame, error)   { return c.recv.RecvInit() }

// Close closes the connection and drops the channel's counters.
func (c *Channel) Close() error {
    c.metrics.Unregister()
    return c.conn.Close()
}

// ChannelInfo describes a live channel.
type ChannelInfo struct {
    Cid        types.Cid
    Kind       transport.Kind
    LocalAddr  net.Addr
    RemoteAddr net.Addr
}

func (c *Channel) info() ChannelInfo {
    return ChannelInfo{Cid: c.cid, Kind: c.conn.Kind(), LocalAddr: c.conn.LocalAddr(), RemoteAddr: c.conn.RemoteAddr()}
}

// framesOut is the number of frames written since the previous call.
func (c *Channel) framesOut() uint64 {
    total := c.metrics.FramesOut()
    d := total - c.lastFrames
    c.lastFrames = total
    return uint64(d)
}
