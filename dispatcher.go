package authclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tvshows/authclient/internal/audit"
	"github.com/tvshows/authclient/internal/authapi"
	"github.com/tvshows/authclient/jwt"
	"github.com/tvshows/authclient/refresh"
	"github.com/tvshows/authclient/session"
)

// Outbound headers.
const (
	HeaderAuthorization = "Authorization"
	HeaderUsername      = "X-Auth-Username"
	HeaderRole          = "X-Auth-Role"
	HeaderMembership    = "X-Auth-Membership"
	HeaderRequestID     = "X-Request-ID"
	HeaderAPIVersion    = "X-API-Version"
)

// dispatcher attaches the current credentials to requests for the API origin
// and performs the single refresh-and-retry on 401.
type dispatcher struct {
	next        http.RoundTripper
	base        *url.URL
	apiVersion  string
	timeout     time.Duration
	earlyWindow time.Duration

	store     *session.Store
	refresher *refresh.Protocol
	api       *authapi.Client
	metrics   *Metrics
	audit     *audit.Dispatcher
	log       zerolog.Logger
	now       func() time.Time
}

func (d *dispatcher) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	getBody, err := replayableBody(req)
	if err != nil {
		return nil, fmt.Errorf("%w: read request body: %w", ErrTransport, err)
	}

	requestID := req.Header.Get(HeaderRequestID)
	if requestID == "" {
		requestID = requestIDFrom(ctx)
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}

	ours := d.sameOrigin(req.URL)
	authEndpoint := ours && d.api.IsAuthPath(req.URL.Path)

	var sent *session.Session
	if cur, ok := d.store.Current(); ok && ours {
		if !authEndpoint {
			cur = d.refreshEarly(ctx, cur)
		}
		sent = &cur
	}

	resp, err := d.send(req, sent, requestID, getBody)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || sent == nil || authEndpoint {
		return resp, nil
	}

	d.metrics.Inc(MetricRequestUnauthorized)
	drain(resp)

	next, err := d.renew(ctx, *sent, requestID)
	if err != nil {
		return nil, err
	}

	d.metrics.Inc(MetricRequestRetried)
	d.log.Debug().
		Str("request_id", requestID).
		Str("path", req.URL.Path).
		Msg("dispatch: retrying with refreshed credentials")
	return d.send(req, &next, requestID, getBody)
}

// renew obtains the session to retry with after a 401. A caller that gives up
// while waiting gets its context error and the session is kept. Any other
// failure clears the session the request was sent with and returns the
// refresh error.
func (d *dispatcher) renew(ctx context.Context, sent session.Session, requestID string) (session.Session, error) {
	next, err := d.refresher.Renew(ctx, sent)
	if err == nil {
		return next, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		d.log.Debug().
			Str("identity", sent.Identity).
			Str("request_id", requestID).
			Err(ctxErr).
			Msg("dispatch: caller left before refresh finished")
		return session.Session{}, d.classify(ctx, fmt.Errorf("waiting for refresh: %w", ctxErr))
	}

	cleared := d.store.ClearIf(ctx, func(cur session.Session) bool {
		return cur.Identity == sent.Identity && cur.RefreshCredential == sent.RefreshCredential
	})
	if !cleared {
		d.log.Debug().
			Str("identity", sent.Identity).
			Str("request_id", requestID).
			Err(err).
			Msg("dispatch: refresh failed for a session that is no longer current")
		return session.Session{}, err
	}

	d.metrics.Inc(MetricForcedLogout)
	d.audit.Emit(ctx, audit.Event{
		EventType: audit.EventForcedLogout,
		Identity:  sent.Identity,
		Role:      string(sent.Role),
		RequestID: requestID,
		Error:     err.Error(),
		Metadata:  map[string]string{"failure": refresh.KindOf(err).String()},
	})
	d.log.Warn().
		Str("identity", sent.Identity).
		Str("request_id", requestID).
		Err(err).
		Msg("dispatch: refresh failed, session cleared")
	return session.Session{}, err
}

func (d *dispatcher) refreshEarly(ctx context.Context, cur session.Session) session.Session {
	if d.earlyWindow <= 0 {
		return cur
	}
	exp, ok := jwt.PeekExpiry(cur.AccessCredential)
	if !ok || exp.Sub(d.now()) > d.earlyWindow {
		return cur
	}
	next, err := d.refresher.Refresh(ctx)
	if err != nil {
		d.log.Warn().Err(err).Str("identity", cur.Identity).Msg("dispatch: early refresh failed")
		return cur
	}
	d.metrics.Inc(MetricRefreshEarly)
	return next
}

func (d *dispatcher) send(req *http.Request, s *session.Session, requestID string, getBody func() (io.ReadCloser, error)) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(req.Context(), d.timeout)

	attempt := req.Clone(ctx)
	if getBody != nil {
		body, err := getBody()
		if err != nil {
			cancel()
			return nil, fmt.Errorf("%w: replay request body: %w", ErrTransport, err)
		}
		attempt.Body = body
		attempt.GetBody = getBody
	}
	decorate(attempt.Header, s, requestID, d.apiVersion)

	start := d.now()
	resp, err := d.next.RoundTrip(attempt)
	d.metrics.Inc(MetricRequestSent)
	d.metrics.Observe(MetricRequestLatency, d.now().Sub(start))
	if err != nil {
		err = d.classify(ctx, err)
		cancel()
		return nil, err
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

func decorate(h http.Header, s *session.Session, requestID, apiVersion string) {
	h.Set(HeaderRequestID, requestID)
	if h.Get(HeaderAPIVersion) == "" && apiVersion != "" {
		h.Set(HeaderAPIVersion, apiVersion)
	}
	if s == nil {
		return
	}
	h.Set(HeaderAuthorization, "Bearer "+s.AccessCredential)
	h.Set(HeaderUsername, s.Identity)
	h.Set(HeaderRole, string(s.Role))
	h.Set(HeaderMembership, string(s.EffectiveMembership()))
}

func (d *dispatcher) classify(ctx context.Context, err error) error {
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrTransport) {
		return err
	}
	var ne net.Error
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &ne) && ne.Timeout()) {
		d.metrics.Inc(MetricRequestTimeout)
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	d.metrics.Inc(MetricRequestTransportError)
	return fmt.Errorf("%w: %w", ErrTransport, err)
}

func (d *dispatcher) sameOrigin(u *url.URL) bool {
	return u != nil && u.Scheme == d.base.Scheme && u.Host == d.base.Host
}

// replayableBody returns a function yielding a fresh copy of the request body
// for every attempt, or nil when there is no body. The original body is
// consumed and closed.
func replayableBody(req *http.Request) (func() (io.ReadCloser, error), error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	if req.GetBody != nil {
		_ = req.Body.Close()
		return req.GetBody, nil
	}
	data, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, err
	}
	return func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}, nil
}

// maxDrain bounds how much of a discarded 401 body is read to allow
// connection reuse.
const maxDrain = 64 << 10

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))
	_ = resp.Body.Close()
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
