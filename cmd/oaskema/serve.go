package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/reoring/oaskema/middleware"
	"github.com/reoring/oaskema/registry"
)

type serveFlags struct {
	spec     string
	listen   string
	upstream string
	watch    bool
}

func newServeCmd(a *app) *cobra.Command {
	f := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a validating reverse proxy",
		Long: `Proxies requests to --upstream after validating them against the document.
Invalid requests are answered with 400 and a JSON error payload. Prometheus
metrics are served on /metrics. With --watch (or watch: true in the config) the
document is reloaded when its file changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return a.runServe(ctx, f, cmd.Flags().Changed("watch"))
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.spec, "spec", "", "OpenAPI document (YAML or JSON)")
	fl.StringVar(&f.listen, "listen", ":8080", "listen address")
	fl.StringVar(&f.upstream, "upstream", "", "upstream base URL, e.g. http://localhost:9000")
	fl.BoolVar(&f.watch, "watch", false, "reload the document when the file changes")
	return cmd
}

func (a *app) runServe(ctx context.Context, f *serveFlags, watchSet bool) error {
	cfg, err := a.loadConfig(f.spec)
	if err != nil {
		return err
	}
	target, err := url.Parse(f.upstream)
	if err != nil || target.Scheme == "" || target.Host == "" {
		return fmt.Errorf("invalid --upstream %q", f.upstream)
	}
	watch := cfg.Watch
	if watchSet {
		watch = f.watch
	}

	reg, err := registry.Open(ctx, cfg.Spec, cfg.OpenAPIOptions(), registry.WithLogger(a.log))
	if err != nil {
		return err
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	opts := middleware.Options{
		ValidateParameters: cfg.Middleware.ValidateParameters,
		Metrics:            middleware.NewMetrics(promReg),
		Logger:             a.log,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if watch {
		go func() {
			if err := reg.Watch(ctx); err != nil {
				a.log.Error("watch stopped", "error", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              f.listen,
		Handler:           newProxyHandler(reg, target, promReg, opts, a.log),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	a.log.Info("serving", "listen", f.listen, "upstream", target.String(), "spec", cfg.Spec, "watch", watch)

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// newProxyHandler serves /metrics and forwards everything else to upstream
// once it passes validation.
func newProxyHandler(src middleware.DocumentSource, upstream *url.URL, g prometheus.Gatherer, opts middleware.Options, log *slog.Logger) http.Handler {
	proxy := httputil.NewSingleHostReverseProxy(upstream)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Error("upstream request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		w.WriteHeader(http.StatusBadGateway)
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	r.Group(func(r chi.Router) {
		r.Use(middleware.Validate(src, opts))
		r.Handle("/*", proxy)
	})
	return r
}
