// Package frame implements the binary wire encoding of gamenet.
//
// Every frame starts with a one-byte tag followed by fixed-width little-endian
// fields. Handshake-phase frames (InitFrame) and post-handshake frames
// (OTFrame) use separate tag spaces.
//
//  Init frames                       OT frames
//  1 Handshake  magic[7] ver[3]u32   1 Shutdown
//  2 Init       pid[16] secret[16]   2 OpenStream  sid u64, prio u8, promises u8, bw u64
//  3 Raw        len u16, bytes       3 CloseStream sid u64
//                                    4 DataHeader  mid u64, sid u64, length u64
//                                    5 Data        mid u64, len u16, bytes
package frame

import (
    "encoding/binary"
    "errors"
    "fmt"
    "math"

    "github.com/felicpei/wasm-vogame-test/pkg/types"
)

var (
    // ErrIncomplete means the buffer holds a frame prefix; read more and retry.
    ErrIncomplete = errors.New("frame: incomplete")
    // ErrMalformed means the buffer can never become a valid frame.
    ErrMalformed = errors.New("frame: malformed")
)

// MaxDataLen is the largest payload a single Data or Raw frame can carry.
const MaxDataLen = math.MaxUint16

const (
    tagHandshake = 1
    tagInit      = 2
    tagRaw       = 3

    tagShutdown    = 1
    tagOpenStream  = 2
    tagCloseStream = 3
    tagDataHeader  = 4
    tagData        = 5
)

const (
    handshakeSize   = 1 + 7 + 12
    initSize        = 1 + 16 + 16
    rawHeadSize     = 1 + 2
    shutdownSize    = 1
    openStreamSize  = 1 + 8 + 1 + 1 + 8
    closeStreamSize = 1 + 8
    dataHeaderSize  = 1 + 8 + 8 + 8
    dataHeadSize    = 1 + 8 + 2
)

// InitFrame is one of Handshake, Init, Raw.
type InitFrame interface{ initFrame() }

type Handshake struct {
    MagicNumber [7]byte
    Version     [3]uint32
}

type Init struct {
    Pid    types.Pid
    Secret types.Secret
}

// Raw carries diagnostic text sent before an abnormal close.
type Raw struct {
    Data []byte
}

func (Handshake) initFrame() {}
func (Init) initFrame()      {}
func (Raw) initFrame()       {}

// OTFrame is one of Shutdown, OpenStream, CloseStream, DataHeader, Data.
type OTFrame interface{ otFrame() }

type Shutdown struct{}

type OpenStream struct {
    Sid                 types.Sid
    Prio                types.Prio
    Promises            types.Promises
    GuaranteedBandwidth types.Bandwidth
}

type CloseStream struct {
    Sid types.Sid
}

// DataHeader announces a message and its total length.
type DataHeader struct {
    Mid    types.Mid
    Sid    types.Sid
    Length uint64
}

// Data carries one chunk of the message announced under Mid.
type Data struct {
    Mid  types.Mid
    Data []byte
}

func (Shutdown) otFrame()    {}
func (OpenStream) otFrame()  {}
func (CloseStream) otFrame() {}
func (DataHeader) otFrame()  {}
func (Data) otFrame()        {}

// AppendInit appends the encoding of f to dst.
// Raw payloads longer than MaxDataLen are truncated.
func AppendInit(dst []byte, f InitFrame) []byte {
    switch f := f.(type) {
    case Handshake:
        dst = append(dst, tagHandshake)
        dst = append(dst, f.MagicNumber[:]...)
        for _, v := range f.Version { dst = binary.LittleEndian.AppendUint32(dst, v) }
    case Init:
        dst = append(dst, tagInit)
        dst = append(dst, f.Pid[:]...)
        dst = append(dst, f.Secret[:]...)
    case Raw:
        data := f.Data
        if len(data) > MaxDataLen { data = data[:MaxDataLen] }
        dst = append(dst, tagRaw)
        dst = binary.LittleEndian.AppendUint16(dst, uint16(len(data)))
        dst = append(dst, data...)
    default:
        panic(fmt.Sprintf("frame: unknown init frame %T", f))
    }
    return dst
}

// DecodeInit decodes one InitFrame from the front of buf and returns the number
// of bytes it occupied.
func DecodeInit(buf []byte) (InitFrame, int, error) {
    if len(buf) == 0 { return nil, 0, ErrIncomplete }
    switch buf[0] {
    case tagHandshake:
        if len(buf) < handshakeSize { return nil, 0, ErrIncomplete }
        var f Handshake
        copy(f.MagicNumber[:], buf[1:8])
        for i := range f.Version {
            f.Version[i] = binary.LittleEndian.Uint32(buf[8+4*i:])
        }
        return f, handshakeSize, nil
    case tagInit:
        if len(buf) < initSize { return nil, 0, ErrIncomplete }
        var f Init
        copy(f.Pid[:], buf[1:17])
        copy(f.Secret[:], buf[17:33])
        return f, initSize, nil
    case tagRaw:
        if len(buf) < rawHeadSize { return nil, 0, ErrIncomplete }
        n := int(binary.LittleEndian.Uint16(buf[1:3]))
        if len(buf) < rawHeadSize+n { return nil, 0, ErrIncomplete }
        data := make([]byte, n)
        copy(data, buf[rawHeadSize:rawHeadSize+n])
        return Raw{Data: data}, rawHeadSize + n, nil
    default:
        return nil, 0, fmt.Errorf("%w: init tag %d", ErrMalformed, buf[0])
    }
}

// AppendOT appends the encoding of f to dst. Data payloads must not exceed MaxDataLen.
func AppendOT(dst []byte, f OTFrame) []byte {
    switch f := f.(type) {
    case Shutdown:
        dst = append(dst, tagShutdown)
    case OpenStream:
        dst = append(dst, tagOpenStream)
        dst = binary.LittleEndian.AppendUint64(dst, uint64(f.Sid))
        dst = append(dst, byte(f.Prio), byte(f.Promises))
        dst = binary.LittleEndian.AppendUint64(dst, uint64(f.GuaranteedBandwidth))
    case CloseStream:
        dst = append(dst, tagCloseStream)
        dst = binary.LittleEndian.AppendUint64(dst, uint64(f.Sid))
    case DataHeader:
        dst = append(dst, tagDataHeader)
        dst = binary.LittleEndian.AppendUint64(dst, uint64(f.Mid))
        dst = binary.LittleEndian.AppendUint64(dst, uint64(f.Sid))
        dst = binary.LittleEndian.AppendUint64(dst, f.Length)
    case Data:
        if len(f.Data) > MaxDataLen {
            panic(fmt.Sprintf("frame: data chunk of %d bytes", len(f.Data)))
        }
        dst = append(dst, tagData)
        dst = binary.LittleEndian.AppendUint64(dst, uint64(f.Mid))
        dst = binary.LittleEndian.AppendUint16(dst, uint16(len(f.Data)))
        dst = append(dst, f.Data...)
    default:
        panic(fmt.Sprintf("frame: unknown ot frame %T", f))
    }
    return dst
}

// DecodeOT decodes one OTFrame from the front of buf and returns the number of
// bytes it occupied. Returned slices do not alias buf.
func DecodeOT(buf []byte) (OTFrame, int, error) {
    if len(buf) == 0 { return nil, 0, ErrIncomplete }
    switch buf[0] {
    case tagShutdown:
        return Shutdown{}, shutdownSize, nil
    case tagOpenStream:
        if len(buf) < openStreamSize { return nil, 0, ErrIncomplete }
        return OpenStream{
            Sid:                 types.Sid(binary.LittleEndian.Uint64(buf[1:9])),
            Prio:                types.Prio(buf[9]),
            Promises:            types.Promises(buf[10]),
            GuaranteedBandwidth: types.Bandwidth(binary.LittleEndian.Uint64(buf[11:19])),
        }, openStreamSize, nil
    case tagCloseStream:
        if len(buf) < closeStreamSize { return nil, 0, ErrIncomplete }
        return CloseStream{Sid: types.Sid(binary.LittleEndian.Uint64(buf[1:9]))}, closeStreamSize, nil
    case tagDataHeader:
        if len(buf) < dataHeaderSize { return nil, 0, ErrIncomplete }
        return DataHeader{
            Mid:    types.Mid(binary.LittleEndian.Uint64(buf[1:9])),
            Sid:    types.Sid(binary.LittleEndian.Uint64(buf[9:17])),
            Length: binary.LittleEndian.Uint64(buf[17:25]),
        }, dataHeaderSize, nil
    case tagData:
        if len(buf) < dataHeadSize { return nil, 0, ErrIncomplete }
        n := int(binary.LittleEndian.Uint16(buf[9:11]))
        if len(buf) < dataHeadSize+n { return nil, 0, ErrIncomplete }
        data := make([]byte, n)
        copy(data, buf[dataHeadSize:dataHeadSize+n])
        return Data{Mid: types.Mid(binary.LittleEndian.Uint64(buf[1:9])), Data: data}, dataHeadSize + n, nil
    default:
        return nil, 0, fmt.Errorf("%w: ot tag %d", ErrMalformed, buf[0])
    }
}
