package backend

import (
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptrace"
	"time"

	"carechat/log"
)

// NetworkMetrics breaks one backend call into its connection phases.
type NetworkMetrics struct {
	DNS        time.Duration
	ConnWait   time.Duration
	TCP        time.Duration
	TLS        time.Duration
	ReqHeaders time.Duration
	ReqBody    time.Duration
	TTFB       time.Duration
	Download   time.Duration
	Total      time.Duration
	ConnReused bool
}

func (m *NetworkMetrics) Sum() time.Duration {
	return m.ConnWait + m.DNS + m.TCP + m.TLS + m.ReqHeaders + m.ReqBody + m.TTFB + m.Download
}

// TracedClient is the HTTP client behind every backend endpoint. Each call
// is timed phase by phase and logged to the diagnostics log under its path.
type TracedClient struct {
	client *http.Client
}

// NewTracedClient returns a client whose requests fail after timeout. Zero
// means no client-side limit.
func NewTracedClient(timeout time.Duration) *TracedClient {
	return &TracedClient{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        4,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		},
	}
}

type TracedResponse struct {
	Body       []byte
	StatusCode int
	Header     http.Header
	Metrics    *NetworkMetrics
}

// phaseClock collects the trace timestamps for a single request.
type phaseClock struct {
	m                                     *NetworkMetrics
	getConn, dns, tcp, tls                time.Time
	gotConn, wroteHeaders, wrote, firstRx time.Time
}

func (p *phaseClock) trace() *httptrace.ClientTrace {
	m := p.m
	return &httptrace.ClientTrace{
		GetConn: func(string) { p.getConn = time.Now() },
		GotConn: func(info httptrace.GotConnInfo) {
			p.gotConn = time.Now()
			m.ConnWait = p.gotConn.Sub(p.getConn)
			m.ConnReused = info.Reused
		},
		DNSStart:          func(httptrace.DNSStartInfo) { p.dns = time.Now() },
		DNSDone:           func(httptrace.DNSDoneInfo) { m.DNS = time.Since(p.dns) },
		ConnectStart:      func(_, _ string) { p.tcp = time.Now() },
		ConnectDone:       func(_, _ string, _ error) { m.TCP = time.Since(p.tcp) },
		TLSHandshakeStart: func() { p.tls = time.Now() },
		TLSHandshakeDone:  func(tls.ConnectionState, error) { m.TLS = time.Since(p.tls) },
		WroteHeaders: func() {
			p.wroteHeaders = time.Now()
			m.ReqHeaders = p.wroteHeaders.Sub(p.gotConn)
		},
		WroteRequest: func(httptrace.WroteRequestInfo) {
			p.wrote = time.Now()
			m.ReqBody = p.wrote.Sub(p.wroteHeaders)
		},
		GotFirstResponseByte: func() {
			p.firstRx = time.Now()
			m.TTFB = p.firstRx.Sub(p.wrote)
		},
	}
}

// Do sends req and reads the whole body. Completed exchanges, including
// non-2xx ones, are logged as request metrics; transport failures are
// logged as warnings with the time spent.
func (c *TracedClient) Do(req *http.Request) (*TracedResponse, error) {
	endpoint := req.URL.Path
	clock := &phaseClock{m: &NetworkMetrics{}}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), clock.trace()))
	start := time.Now()

	resp, err := c.client.Do(req)
	if err != nil {
		log.Warnf("%s %s failed after %v: %v", req.Method, endpoint, time.Since(start).Round(time.Millisecond), err)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Warnf("%s %s: reading body: %v", req.Method, endpoint, err)
		return nil, err
	}
	m := clock.m
	m.Download = time.Since(clock.firstRx)
	m.Total = time.Since(start)

	log.RequestMetrics(log.RequestMetricsData{
		Endpoint:   endpoint,
		Status:     resp.StatusCode,
		ConnReused: m.ConnReused,
		DNSMs:      float64(m.DNS.Milliseconds()),
		TLSMs:      float64(m.TLS.Milliseconds()),
		TTFBMs:     float64(m.TTFB.Milliseconds()),
		TotalMs:    float64(m.Total.Milliseconds()),
		BodyKB:     float64(len(body)) / 1024,
	})

	return &TracedResponse{
		Body:       body,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Metrics:    m,
	}, nil
}
