// Package httpassembly rebuilds HTTP request/response pairs from captured
// TCP packets.
package httpassembly

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/reassembly"

	"github.com/siegeai/autodoc/capture"
)

// Pair is one exchange on a connection. Bodies are read and decoded, the
// Body fields of Request and Response are drained.
type Pair struct {
	Request      *http.Request
	RequestBody  []byte
	Response     *http.Response
	ResponseBody []byte
	Seen         time.Time
}

type Handler interface {
	HandlePair(p *Pair)
}

type HandlerFunc func(p *Pair)

func (f HandlerFunc) HandlePair(p *Pair) {
	f(p)
}

type HttpAssembler struct {
	pool      *reassembly.StreamPool
	assembler *reassembly.Assembler
}

func NewAssembler(h Handler) *HttpAssembler {
	p := reassembly.NewStreamPool(&factory{handler: h})
	a := reassembly.NewAssembler(p)
	return &HttpAssembler{pool: p, assembler: a}
}

type assemblyContext struct {
	CaptureInfo gopacket.CaptureInfo
}

func (c *assemblyContext) GetCaptureInfo() gopacket.CaptureInfo {
	return c.CaptureInfo
}

// Assemble feeds one packet. Packets without a TCP layer are ignored.
func (a *HttpAssembler) Assemble(p gopacket.Packet) bool {
	tcp, ok := p.Layer(layers.LayerTypeTCP).(*layers.TCP)
	if !ok || p.NetworkLayer() == nil {
		return false
	}

	c := assemblyContext{CaptureInfo: p.Metadata().CaptureInfo}
	a.assembler.AssembleWithContext(p.NetworkLayer().NetworkFlow(), tcp, &c)
	return true
}

// FlushCloseOlderThan releases connections idle since t.
func (a *HttpAssembler) FlushCloseOlderThan(t time.Time) (flushed, closed int) {
	return a.assembler.FlushCloseOlderThan(t)
}

// FlushAll completes every open connection, e.g. at the end of a capture
// file.
func (a *HttpAssembler) FlushAll() int {
	return a.assembler.FlushAll()
}

type factory struct {
	handler Handler
}

func (f *factory) New(netFlow, tcpFlow gopacket.Flow, tcp *layers.TCP, ac reassembly.AssemblerContext) reassembly.Stream {
	return &stream{handler: f.handler, flow: netFlow.String() + " " + tcpFlow.String()}
}

type exchange struct {
	req  *http.Request
	body []byte
	seen time.Time
}

// stream buffers each direction of a connection until complete messages
// can be parsed. Requests wait in pending for their response.
type stream struct {
	handler Handler
	flow    string

	client  []byte
	server  []byte
	pending []exchange
}

func (s *stream) Accept(tcp *layers.TCP, ci gopacket.CaptureInfo, dir reassembly.TCPFlowDirection, nextSeq reassembly.Sequence, start *bool, ac reassembly.AssemblerContext) bool {
	// captures may begin in the middle of a connection
	*start = true
	return true
}

func (s *stream) ReassembledSG(sg reassembly.ScatterGather, ac reassembly.AssemblerContext) {
	dir, _, _, skip := sg.Info()
	if skip > 0 {
		slog.Debug("lost bytes, resetting stream", "flow", s.flow, "skip", skip)
		s.reset()
	}

	l, _ := sg.Lengths()
	if l == 0 {
		return
	}

	payload := sg.Fetch(l)
	if dir == reassembly.TCPDirClientToServer {
		s.client = append(s.client, payload...)
	} else {
		s.server = append(s.server, payload...)
	}
	s.drain(timestamp(ac), false)
}

func (s *stream) ReassemblyComplete(ac reassembly.AssemblerContext) bool {
	s.drain(timestamp(ac), true)
	if len(s.pending) > 0 {
		slog.Debug("connection closed with unanswered requests", "flow", s.flow, "pending", len(s.pending))
	}
	return true
}

// timestamp tolerates the nil context passed while flushing.
func timestamp(ac reassembly.AssemblerContext) time.Time {
	if ac == nil {
		return time.Time{}
	}
	return ac.GetCaptureInfo().Timestamp
}

func (s *stream) reset() {
	s.client = nil
	s.server = nil
	s.pending = nil
}

// drain parses every complete request, then matches complete responses to
// the oldest pending requests. closed allows bodies delimited by the end of
// the connection.
func (s *stream) drain(seen time.Time, closed bool) {
	for len(s.client) > 0 {
		req, body, n, err := readRequest(s.client)
		if errors.Is(err, errIncomplete) {
			break
		}
		if err != nil {
			slog.Warn("could not parse request", "flow", s.flow, "err", err)
			s.client = nil
			break
		}
		s.client = s.client[n:]
		s.pending = append(s.pending, exchange{req: req, body: body, seen: seen})
	}

	for len(s.pending) > 0 && len(s.server) > 0 {
		ex := s.pending[0]
		res, body, n, err := readResponse(s.server, ex.req, closed)
		if errors.Is(err, errIncomplete) {
			break
		}
		s.pending = s.pending[1:]
		if err != nil {
			slog.Warn("could not parse response", "flow", s.flow, "err", err)
			s.server = nil
			break
		}
		s.server = s.server[n:]
		s.handler.HandlePair(&Pair{
			Request:      ex.req,
			RequestBody:  body0(ex.body),
			Response:     res,
			ResponseBody: body,
			Seen:         ex.seen,
		})
	}
}

func body0(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}

var errIncomplete = errors.New("incomplete message")

func incomplete(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return errIncomplete
	}
	return err
}

// headerComplete reports whether b holds a whole header block. A block cut
// inside a header line does not parse as a truncated one.
func headerComplete(b []byte) bool {
	return bytes.Contains(b, []byte("\r\n\r\n")) || bytes.Contains(b, []byte("\n\n"))
}

func readRequest(b []byte) (*http.Request, []byte, int, error) {
	if !headerComplete(b) {
		return nil, nil, 0, errIncomplete
	}
	src := bytes.NewReader(b)
	br := bufio.NewReader(src)
	req, err := http.ReadRequest(br)
	if err != nil {
		return nil, nil, 0, incomplete(err)
	}
	raw, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, nil, 0, incomplete(err)
	}
	n := len(b) - src.Len() - br.Buffered()

	body, err := capture.ReadAllEncoded(req.Header.Get("Content-Encoding"), io.NopCloser(bytes.NewReader(raw)))
	if err != nil {
		return nil, nil, 0, err
	}
	req.Body = io.NopCloser(bytes.NewReader(raw))
	return req, body, n, nil
}

func readResponse(b []byte, req *http.Request, closed bool) (*http.Response, []byte, int, error) {
	if !headerComplete(b) {
		return nil, nil, 0, errIncomplete
	}
	src := bytes.NewReader(b)
	br := bufio.NewReader(src)
	res, err := http.ReadResponse(br, req)
	if err != nil {
		return nil, nil, 0, incomplete(err)
	}
	if res.ContentLength < 0 && len(res.TransferEncoding) == 0 && !closed && res.Body != http.NoBody {
		// body runs to the end of the connection
		return nil, nil, 0, errIncomplete
	}
	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, nil, 0, incomplete(err)
	}
	n := len(b) - src.Len() - br.Buffered()

	body, err := capture.ReadAllEncoded(res.Header.Get("Content-Encoding"), io.NopCloser(bytes.NewReader(raw)))
	if err != nil {
		return nil, nil, 0, err
	}
	res.Body = io.NopCloser(bytes.NewReader(raw))
	return res, body, n, nil
}
