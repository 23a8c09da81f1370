package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/siegeai/autodoc/apispec"
	"github.com/siegeai/autodoc/autodoctest"
	"github.com/siegeai/autodoc/capture"
	"github.com/siegeai/autodoc/collector"
	"github.com/siegeai/autodoc/config"
	"github.com/siegeai/autodoc/fakejsonserver"
	"github.com/siegeai/autodoc/listener"
	"github.com/siegeai/autodoc/metric"
	"github.com/siegeai/autodoc/route"
	"github.com/siegeai/autodoc/server"
	"github.com/siegeai/autodoc/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the published documentation",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	reg, err := metric.NewRegistry()
	if err != nil {
		return err
	}
	srv, err := server.New(s.cfg, s.backend, server.WithMetrics(reg.Metrics))
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", reg.Handler())
	mux.Handle("/", srv.Handler())
	hs := &http.Server{Addr: s.cfg.Listen, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", s.cfg.Listen, "environment", s.cfg.Environment, "visible", s.cfg.Visible())
		errc <- hs.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := hs.Shutdown(shutdown); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish the intermediate document of the last test run",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		coll, err := s.collector(nil)
		if err != nil {
			return err
		}
		return coll.Finalize(cmd.Context())
	},
}

var (
	showFormat    string
	showV3        bool
	showPublished bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the intermediate or the published document",
	Args:  cobra.NoArgs,
	RunE:  runShow,
}

func init() {
	showCmd.Flags().StringVarP(&showFormat, "format", "f", "json", "Output format (json|yaml)")
	showCmd.Flags().BoolVar(&showV3, "v3", false, "Convert to OpenAPI 3")
	showCmd.Flags().BoolVar(&showPublished, "published", false, "Show the published document instead of the intermediate one")
}

func runShow(cmd *cobra.Command, args []string) error {
	format, err := apispec.ParseFormat(showFormat)
	if err != nil {
		return err
	}
	s, err := openSession()
	if err != nil {
		return err
	}

	var bs []byte
	if showPublished {
		bs, err = s.backend.ReadPublished(cmd.Context())
		if errors.Is(err, storage.ErrNotFound) {
			return errors.New("nothing has been published yet")
		}
		if err != nil {
			return err
		}
		bs, err = apispec.EncodePublished(bs, format, showV3)
	} else {
		coll, cerr := s.collector(nil)
		if cerr != nil {
			return cerr
		}
		doc, derr := coll.Document(cmd.Context())
		if derr != nil {
			return derr
		}
		bs, err = apispec.Encode(doc, format, showV3)
	}
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(bs)
	return err
}

var (
	replayRoutes []string
	replayPort   int
	replayGuess  bool
)

var replayCmd = &cobra.Command{
	Use:   "replay <capture.pcap>...",
	Short: "Capture the HTTP exchanges of packet capture files",
	Long: `Replay reassembles the HTTP/1.x traffic of pcap or pcapng files and folds every
exchange into the intermediate document.

Examples:
  autodoc replay --route "GET /users/{id}" --route "POST /users" run.pcap
  autodoc replay --port 8080 --guess run.pcapng`,
	Args: cobra.MinimumNArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().StringArrayVarP(&replayRoutes, "route", "r", nil, `Route template, e.g. "GET /users/{id}"`)
	replayCmd.Flags().IntVarP(&replayPort, "port", "p", 0, "Only replay traffic to or from this port")
	replayCmd.Flags().BoolVar(&replayGuess, "guess", false, "Guess templates of unmatched paths from numeric and UUID segments")
}

func runReplay(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	coll, err := s.collector(nil)
	if err != nil {
		return err
	}

	opts := []listener.Option{listener.WithPort(replayPort), listener.WithGuessedTemplates(replayGuess)}
	if len(replayRoutes) > 0 {
		matcher, err := route.NewMatcher(replayRoutes)
		if err != nil {
			return err
		}
		opts = append(opts, listener.WithMatcher(matcher))
	}
	l := listener.New(coll, opts...)

	for _, name := range args {
		source, closeFile, err := listener.OpenFile(name)
		if err != nil {
			return err
		}
		stats, err := l.Run(cmd.Context(), source)
		_ = closeFile()
		if err != nil {
			return err
		}
		slog.Info("replayed", "file", name, "pairs", stats.Pairs, "captured", stats.Captured, "failed", stats.Failed)
	}
	return nil
}

var mergeCmd = &cobra.Command{
	Use:   "merge <document.json>...",
	Short: "Merge documents captured by parallel test runs into the intermediate document",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		coll, err := s.collector(nil)
		if err != nil {
			return err
		}
		for _, name := range args {
			bs, err := os.ReadFile(name)
			if err != nil {
				return err
			}
			doc, err := apispec.Unmarshal(bs)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			if err := coll.Merge(cmd.Context(), doc); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			slog.Info("merged", "file", name)
		}
		return nil
	},
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Document a scripted session against the built-in widget API",
	Args:  cobra.NoArgs,
	RunE:  runDemo,
}

func runDemo(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	cfg.Environment = config.TestingEnvironment
	cfg.Security = "jwt"
	cfg.Info.Title = "Widgets"
	backend := storage.NewMemory()

	coll, err := collector.New(cfg, backend, collector.WithDescriptors(fakejsonserver.Descriptors()))
	if err != nil {
		return err
	}
	api := fakejsonserver.New()
	api.Router().Use(capture.New().Handler)

	s := autodoctest.NewSession(coll, api.Router()).WithHeader("Authorization", "Bearer demo")
	steps := []func() (*http.Response, error){
		func() (*http.Response, error) { return s.Get("/widgets?search=g") },
		func() (*http.Response, error) { return s.Get("/widgets/1") },
		func() (*http.Response, error) { return s.Get("/widgets/404") },
		func() (*http.Response, error) {
			return s.JSON(http.MethodPost, "/widget", map[string]any{"title": "Sprocket", "quantity": 4})
		},
		func() (*http.Response, error) { return s.JSON(http.MethodPost, "/widget", map[string]any{}) },
		func() (*http.Response, error) {
			return s.Form(http.MethodPatch, "/widgets/3", map[string]string{"description": "shiny"})
		},
		func() (*http.Response, error) { return s.Delete("/widgets/3") },
	}
	for _, step := range steps {
		res, err := step()
		if err != nil {
			return err
		}
		_ = res.Body.Close()
	}
	if err := s.Finalize(cmd.Context()); err != nil {
		return err
	}

	bs, err := backend.ReadPublished(cmd.Context())
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(bs)
	return err
}
