package listener

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

type PacketSource interface {
	Packets() chan gopacket.Packet
}

var _ PacketSource = (*gopacket.PacketSource)(nil)

// pcapng files start with a section header block.
var pcapngMagic = []byte{0x0a, 0x0d, 0x0d, 0x0a}

type packetDataSource interface {
	gopacket.PacketDataSource
	LinkType() layers.LinkType
}

// NewPacketSource reads a pcap or pcapng capture from r.
func NewPacketSource(r io.Reader) (PacketSource, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(4)
	if err != nil {
		return nil, fmt.Errorf("read capture header: %w", err)
	}

	var src packetDataSource
	if bytes.Equal(magic, pcapngMagic) {
		src, err = pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
	} else {
		src, err = pcapgo.NewReader(br)
	}
	if err != nil {
		return nil, err
	}
	return gopacket.NewPacketSource(src, src.LinkType()), nil
}

// OpenFile opens a capture file. The returned close function releases it.
func OpenFile(name string) (PacketSource, func() error, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, nil, err
	}
	s, err := NewPacketSource(f)
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("%s: %w", name, err)
	}
	return s, f.Close, nil
}
