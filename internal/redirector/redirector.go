// Package redirector runs the helper loop: one request line in, one reply
// line out.
package redirector

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/sqriak/sqriak/internal/config"
	"github.com/sqriak/sqriak/internal/metrics"
	"github.com/sqriak/sqriak/internal/riak"
	"github.com/sqriak/sqriak/internal/squid"
	"github.com/sqriak/sqriak/internal/statistics"
)

// Lookuper answers whether key exists in the store described by cfg.
type Lookuper interface {
	Exists(ctx context.Context, cfg *config.Config, key string) (bool, error)
}

type Redirector struct {
	in       *bufio.Reader
	out      *bufio.Writer
	holder   *config.Holder
	lookup   Lookuper
	metrics  *metrics.Metrics
	recorder *statistics.Recorder
}

// New wires a Redirector. m and rec may be nil.
func New(in io.Reader, out io.Writer, holder *config.Holder, lookup Lookuper, m *metrics.Metrics, rec *statistics.Recorder) *Redirector {
	return &Redirector{
		in:       bufio.NewReader(in),
		out:      bufio.NewWriter(out),
		holder:   holder,
		lookup:   lookup,
		metrics:  m,
		recorder: rec,
	}
}

type readResult struct {
	line string
	err  error
}

// Run answers lines until the input ends or ctx is done. A line is read
// only after the reply to the previous one has been flushed. Reaching the
// end of input is a normal stop and returns nil.
func (r *Redirector) Run(ctx context.Context) error {
	next := make(chan struct{})
	lines := make(chan readResult, 1)
	go r.readLoop(next, lines)
	defer close(next)

	for {
		// never ask for another line once cancelled
		if ctx.Err() != nil {
			return nil
		}
		select {
		case next <- struct{}{}:
		case <-ctx.Done():
			return nil
		}

		var res readResult
		select {
		case res = <-lines:
		case <-ctx.Done():
			return nil
		}

		if res.line != "" {
			if err := r.reply(r.Decide(ctx, res.line)); err != nil {
				return err
			}
		}

		switch {
		case errors.Is(res.err, io.EOF):
			slog.Info("input closed")
			return nil
		case res.err != nil:
			return fmt.Errorf("read request: %w", res.err)
		}
	}
}

// readLoop reads one line per token received on next.
func (r *Redirector) readLoop(next <-chan struct{}, lines chan<- readResult) {
	for range next {
		line, err := r.in.ReadString('\n')
		lines <- readResult{line: line, err: err}
		if err != nil {
			return
		}
	}
}

func (r *Redirector) reply(line string) error {
	if _, err := r.out.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("write reply: %w", err)
	}
	if err := r.out.Flush(); err != nil {
		return fmt.Errorf("flush reply: %w", err)
	}
	return nil
}

// Decide returns the reply for one input line: the redirect URL of the
// current configuration when the key is in the store, otherwise "".
// Every failure answers "".
func (r *Redirector) Decide(ctx context.Context, line string) string {
	cfg := r.holder.Load()

	req, ok := squid.ParseLine(line)
	if !ok {
		slog.Debug("invalid request line", slog.String("line", line))
		r.metrics.IncLine(metrics.LineInvalid)
		return ""
	}

	key, err := req.Key()
	if err != nil {
		slog.Debug("no lookup key", slog.Any("request", req), slog.Any("error", err))
		r.metrics.IncLine(metrics.LineInvalid)
		return ""
	}

	start := time.Now()
	found, err := r.lookup.Exists(ctx, cfg, key)
	r.metrics.ObserveLookup(outcome(found, err), start)
	if err != nil {
		found = false
		slog.Warn("lookup failed, passing request",
			slog.String("key", key),
			slog.String("endpoint", cfg.Endpoint()),
			slog.Any("error", err))
	}

	client := &statistics.ClientRecord{ClientIP: req.ClientIP, FQDN: req.FQDN, Lines: 1}
	if !found {
		slog.Debug("pass", slog.String("key", key), slog.Any("request", req))
		r.metrics.IncLine(metrics.LinePass)
		r.recorder.AddClient(client)
		return ""
	}

	slog.Info("redirect", slog.String("key", key), slog.Any("request", req))
	r.metrics.IncLine(metrics.LineRedirect)
	client.Redirects = 1
	r.recorder.AddClient(client)
	r.recorder.AddRedirect(&statistics.RedirectRecord{
		Key:      key,
		LastURL:  req.URL,
		LastUser: req.User,
	})
	return cfg.RedirectURL
}

func outcome(found bool, err error) string {
	switch {
	case errors.Is(err, riak.ErrBreakerOpen):
		return metrics.LookupBreakerOpen
	case err != nil:
		return metrics.LookupError
	case found:
		return metrics.LookupFound
	}
	return metrics.LookupAbsent
}
