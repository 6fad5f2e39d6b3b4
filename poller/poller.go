package poller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Dieterbe/go-metrics"
	"github.com/jpillora/backoff"
	log "github.com/sirupsen/logrus"

	"github.com/pollrelay/pollrelay/clock"
	"github.com/pollrelay/pollrelay/stats"
)

const backoffFactor = 1.5

// we only probe the upstream, we don't relay its payload.
// still read (a bounded amount of) the body so connections get reused.
const maxBodyBytes = 1 << 20

// Poller issues an HTTP GET against one upstream on every tick of a
// delay-after-work Interval. Because the interval re-bases on each
// request for the next tick, a dead upstream that makes requests
// block or retry for longer than the period can never cause a burst
// of catch-up polls when it comes back.
type Poller struct {
	clock    clock.Clock
	interval *clock.Interval
	url      string
	timeout  time.Duration
	retryMax int
	boffMin  time.Duration
	boffMax  time.Duration
	client   *http.Client

	mu     sync.Mutex
	status Status

	numOut         metrics.Counter
	numErrPoll     metrics.Counter
	numErrGaveUp   metrics.Counter
	durationPoll   metrics.Timer
	consecFailures metrics.Gauge
}

// Status is a snapshot of the poller's recent history, served by the
// web UI.
type Status struct {
	Polls            int64         `json:"polls"`
	LastTick         time.Time     `json:"last_tick"`
	LastSuccess      time.Time     `json:"last_success"`
	LastError        string        `json:"last_error,omitempty"`
	LastRoundtrip    time.Duration `json:"last_roundtrip_ns"`
	ConsecutiveFails int           `json:"consecutive_failures"`
}

// New returns a Poller that polls upstreamURL every period, starting
// one full period after construction. retryMax is the number of
// in-tick retries after a failed attempt; boffMin/boffMax bound the
// backoff between them.
func New(cl clock.Clock, upstreamURL string, period, timeout time.Duration, retryMax int, boffMin, boffMax time.Duration) (*Poller, error) {
	u, err := url.Parse(upstreamURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid upstream url %q", upstreamURL)
	}
	if period <= 0 {
		return nil, fmt.Errorf("poll period must be positive, got %s", period)
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("request timeout must be positive, got %s", timeout)
	}
	if retryMax < 0 {
		return nil, fmt.Errorf("retry budget cannot be negative, got %d", retryMax)
	}
	if boffMin <= 0 || boffMax < boffMin {
		return nil, fmt.Errorf("invalid backoff bounds [%s, %s]", boffMin, boffMax)
	}

	cleanHost := cleanKey(u.Host)
	return &Poller{
		clock:    cl,
		interval: clock.NewInterval(cl, period),
		url:      upstreamURL,
		timeout:  timeout,
		retryMax: retryMax,
		boffMin:  boffMin,
		boffMax:  boffMax,
		client:   &http.Client{},

		numOut:         stats.Counter("upstream=" + cleanHost + ".unit=Poll.direction=out"),
		numErrPoll:     stats.Counter("upstream=" + cleanHost + ".unit=Err.type=poll"),
		numErrGaveUp:   stats.Counter("upstream=" + cleanHost + ".unit=Err.type=gaveup"),
		durationPoll:   stats.Timer("upstream=" + cleanHost + ".what=durationPoll"),
		consecFailures: stats.Gauge("upstream=" + cleanHost + ".what=consecutiveFailures"),
	}, nil
}

// Run polls until ctx is canceled, which returns nil. A failure of
// the timer subsystem itself is returned as an error.
func (p *Poller) Run(ctx context.Context) error {
	defer p.interval.Stop()
	log.Infof("poller: polling %s every %s", p.url, p.interval.Period())
	for {
		due, err := p.interval.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				log.Infof("poller: shutting down: %s", err)
				return nil
			}
			return fmt.Errorf("poller: timer failed: %s", err)
		}
		p.poll(ctx, due)
	}
}

// Snapshot returns the current status. Safe to call from other
// goroutines while Run is active.
func (p *Poller) Snapshot() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// poll handles one tick: a fetch plus up to retryMax backed-off
// retries. The retry budget is per tick; once spent, the tick is
// abandoned and the next one comes from the interval as usual.
func (p *Poller) poll(ctx context.Context, due time.Time) {
	p.mu.Lock()
	p.status.Polls++
	p.status.LastTick = due
	p.mu.Unlock()

	boff := &backoff.Backoff{
		Min:    p.boffMin,
		Max:    p.boffMax,
		Factor: backoffFactor,
		Jitter: true,
	}
	for attempt := 0; ; attempt++ {
		rtt, err := p.fetch(ctx)
		if err == nil {
			p.numOut.Inc(1)
			p.durationPoll.Update(rtt)
			p.consecFailures.Update(0)
			p.mu.Lock()
			p.status.LastSuccess = p.clock.Now()
			p.status.LastRoundtrip = rtt
			p.status.LastError = ""
			p.status.ConsecutiveFails = 0
			p.mu.Unlock()
			log.Debugf("poller: upstream ok in %s", rtt)
			return
		}
		if ctx.Err() != nil {
			return
		}

		p.numErrPoll.Inc(1)
		p.mu.Lock()
		p.status.LastError = err.Error()
		p.status.ConsecutiveFails++
		fails := p.status.ConsecutiveFails
		p.mu.Unlock()
		p.consecFailures.Update(int64(fails))

		if attempt >= p.retryMax {
			p.numErrGaveUp.Inc(1)
			log.Warnf("poller: giving up on tick due %s after %d attempts: %s", due.Format(time.RFC3339), attempt+1, err)
			return
		}
		b := boff.Duration()
		log.Warnf("poller: %s - will try again in %s (this attempt took %s)", err, b, rtt)
		t := p.clock.NewTimer(p.clock.Now().Add(b))
		werr := t.Wait(ctx)
		t.Stop()
		if werr != nil {
			return
		}
	}
}

func (p *Poller) fetch(ctx context.Context) (time.Duration, error) {
	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, p.url, nil)
	if err != nil {
		return 0, err
	}
	pre := time.Now()
	resp, err := p.client.Do(req)
	rtt := time.Since(pre)
	if err != nil {
		return rtt, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
	if resp.StatusCode >= 300 {
		return rtt, fmt.Errorf("http %d from %s", resp.StatusCode, p.url)
	}
	return rtt, nil
}

func cleanKey(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
}
