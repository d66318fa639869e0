// Package feedback runs the human review checkpoint: a short-lived local
// HTTP server that accepts exactly one reviewer decision per batch.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/sprite-ai/reqevo/internal/catalog"
	"github.com/sprite-ai/reqevo/internal/model"
)

// Batch is what the reviewer sees for one iteration.
type Batch struct {
	RunID        string               `json:"run_id"`
	Domain       string               `json:"domain"`
	Iteration    int                  `json:"iteration"`
	VersionCount int                  `json:"version_count"`
	Records      []model.ChangeRecord `json:"records"`
	Reasons      []catalog.Entry      `json:"reasons"`
}

// PageFunc writes the review page for a batch. callbackURL is where the page posts decisions.
type PageFunc func(w io.Writer, b Batch, callbackURL string) error

// Gate blocks a workflow until the reviewer decides.
type Gate struct {
	host        string
	port        int
	openBrowser bool
	page        PageFunc
	notify      func(url string)
	logger      *slog.Logger
}

// Option configures a Gate.
type Option func(*Gate)

// WithAddress sets the listen host and port. Port 0 picks a free port.
func WithAddress(host string, port int) Option {
	return func(g *Gate) {
		g.host = host
		g.port = port
	}
}

// WithBrowser opens the review page in the default browser when the gate starts.
func WithBrowser(open bool) Option {
	return func(g *Gate) {
		g.openBrowser = open
	}
}

// WithPage replaces the review page renderer.
func WithPage(page PageFunc) Option {
	return func(g *Gate) {
		g.page = page
	}
}

// WithNotify is called with the review URL once the gate is listening.
func WithNotify(fn func(url string)) Option {
	return func(g *Gate) {
		g.notify = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

// NewGate returns a gate listening on 127.0.0.1 with a random port.
func NewGate(opts ...Option) *Gate {
	g := &Gate{
		host:   "127.0.0.1",
		page:   defaultPage,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// AwaitDecision serves b until one valid decision arrives or ctx ends.
// Cancellation yields an implicit Approve. The listener is closed before
// returning, so no later submission can reach the run.
func (g *Gate) AwaitDecision(ctx context.Context, b Batch) (model.Decision, error) {
	ln, err := net.Listen("tcp", net.JoinHostPort(g.host, strconv.Itoa(g.port)))
	if err != nil {
		return model.Decision{}, fmt.Errorf("feedback listener: %w", err)
	}

	url := "http://" + ln.Addr().String() + "/"
	sess := NewSession(b, url, g.page, g.logger)
	server := &http.Server{
		Handler:      sess.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	// Hijacked WebSocket connections are not closed by Shutdown.
	server.RegisterOnShutdown(sess.CloseConns)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(ln)
	}()

	g.logger.Info("waiting for review", "url", url, "records", len(b.Records), "iteration", b.Iteration)
	if g.notify != nil {
		g.notify(url)
	}
	if g.openBrowser {
		if err := OpenBrowser(url); err != nil {
			g.logger.Warn("could not open browser", "url", url, "error", err)
		}
	}

	var (
		decision model.Decision
		waitErr  error
	)
	select {
	case decision = <-sess.Decisions():
	case err := <-serveErr:
		waitErr = fmt.Errorf("feedback server: %w", err)
	case <-ctx.Done():
		decision = model.Approve()
		decision.Implicit = true
	}
	sess.Close()

	if decision.Implicit {
		// A submission acknowledged just before Close still wins.
		select {
		case d := <-sess.Decisions():
			decision = d
		default:
			g.logger.Info("review wait canceled, approving implicitly", "cause", ctx.Err())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		g.logger.Warn("feedback server shutdown", "error", err)
	}

	if waitErr != nil {
		return model.Decision{}, waitErr
	}
	g.logger.Info("review decision received", "action", decision.Action.String(), "corrections", decision.Corrections.Kind.String())
	return decision, nil
}
