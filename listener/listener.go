// Package listener replays captured HTTP traffic into a collector.
package listener

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/siegeai/autodoc/capture"
	"github.com/siegeai/autodoc/collector"
	"github.com/siegeai/autodoc/httpassembly"
	"github.com/siegeai/autodoc/infer"
	"github.com/siegeai/autodoc/route"
)

type Stats struct {
	Packets  int
	Pairs    int
	Captured int
	Failed   int
}

type Listener struct {
	hook    capture.Hook
	matcher *route.Matcher
	port    layers.TCPPort
	guess   bool

	ctx   context.Context
	stats Stats
}

type Option func(*Listener)

// WithMatcher resolves the route templates of replayed requests.
func WithMatcher(m *route.Matcher) Option {
	return func(l *Listener) {
		l.matcher = m
	}
}

// WithPort keeps only packets to or from port.
func WithPort(port int) Option {
	return func(l *Listener) {
		l.port = layers.TCPPort(port)
	}
}

// WithGuessedTemplates derives templates for requests no route matched
// instead of recording them as failed.
func WithGuessedTemplates(guess bool) Option {
	return func(l *Listener) {
		l.guess = guess
	}
}

func New(hook capture.Hook, opts ...Option) *Listener {
	l := &Listener{hook: hook}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run assembles every packet of source and captures the exchanges found,
// until the source is exhausted or ctx is done.
func (l *Listener) Run(ctx context.Context, source PacketSource) (Stats, error) {
	l.ctx = ctx
	l.stats = Stats{}

	assembler := httpassembly.NewAssembler(l)
	packets := source.Packets()
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			assembler.FlushAll()
			return l.stats, ctx.Err()

		case packet, ok := <-packets:
			if !ok {
				assembler.FlushAll()
				slog.Info("replay done", "packets", l.stats.Packets, "pairs", l.stats.Pairs,
					"captured", l.stats.Captured, "failed", l.stats.Failed)
				return l.stats, nil
			}
			if !l.accept(packet) {
				continue
			}
			if assembler.Assemble(packet) {
				l.stats.Packets++
			}

		case <-ticker.C:
			assembler.FlushCloseOlderThan(time.Now().Add(time.Minute * -2))
		}
	}
}

func (l *Listener) accept(p gopacket.Packet) bool {
	if l.port == 0 {
		return true
	}
	tcp, ok := p.Layer(layers.LayerTypeTCP).(*layers.TCP)
	return ok && (tcp.SrcPort == l.port || tcp.DstPort == l.port)
}

func (l *Listener) template(p *httpassembly.Pair) string {
	if l.matcher != nil {
		if t, ok := l.matcher.Template(p.Request); ok {
			return t
		}
	}
	if l.guess {
		return route.Guess(p.Request.URL.Path)
	}
	return ""
}

// HandlePair captures one reassembled exchange.
func (l *Listener) HandlePair(p *httpassembly.Pair) {
	l.stats.Pairs++
	slog.Debug("handling", "method", p.Request.Method, "uri", p.Request.RequestURI, "status", p.Response.StatusCode)

	payload, err := capture.ParsePayload(p.Request, p.RequestBody)
	if err != nil {
		slog.Debug("could not parse request payload", "uri", p.Request.RequestURI, "err", err)
	}

	res := infer.Response{
		Code:        p.Response.StatusCode,
		ContentType: p.Response.Header.Get("Content-Type"),
		Body:        p.ResponseBody,
	}
	obs := collector.NewObservation(p.Request, l.template(p), payload, res)

	ctx := l.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if err := l.hook.Capture(ctx, obs); err != nil {
		l.stats.Failed++
		slog.Warn("could not capture", "method", p.Request.Method, "uri", p.Request.RequestURI, "err", err)
		return
	}
	l.stats.Captured++
}
