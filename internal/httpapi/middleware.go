package httpapi

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/MrEthical07/portalauth"
)

const (
	requestIDHeader = "X-Request-Id"
	maxBodyBytes    = 1 << 20
	maxRateClients  = 4096
)

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// logging tags the request with an id and the client address, then logs
// method, path, status and duration once the handler returns.
func logging(log logrus.FieldLogger, clients clientResolver, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		ip := clients.ip(r)
		r = r.WithContext(portalauth.WithClientIP(r.Context(), ip))

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, r)

		log.WithFields(logrus.Fields{
			"request_id": id,
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     sw.code,
			"ip":         ip,
			"duration":   time.Since(start),
		}).Info("request")
	})
}

func maxBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		next.ServeHTTP(w, r)
	})
}

// clientLimiter hands out one token bucket per client address. The least
// recently seen clients are forgotten once maxRateClients is reached.
type clientLimiter struct {
	limit   rate.Limit
	burst   int
	clients clientResolver
	buckets *lru.Cache[string, *rate.Limiter]
}

func newClientLimiter(perSecond float64, burst int, clients clientResolver) (*clientLimiter, error) {
	buckets, err := lru.New[string, *rate.Limiter](maxRateClients)
	if err != nil {
		return nil, err
	}
	return &clientLimiter{limit: rate.Limit(perSecond), burst: burst, clients: clients, buckets: buckets}, nil
}

func (l *clientLimiter) allow(ip string) bool {
	lim := rate.NewLimiter(l.limit, l.burst)
	if prev, ok, _ := l.buckets.PeekOrAdd(ip, lim); ok {
		lim = prev
	}
	return lim.Allow()
}

func (l *clientLimiter) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := l.clients.ip(r)
		if ip == "" {
			ip = "unknown"
		}
		if !l.allow(ip) {
			writeResponse(w, http.StatusTooManyRequests, messageTooMany)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientResolver finds the client address of a request. X-Forwarded-For is
// read only when the socket peer is a trusted proxy, and then the rightmost
// hop that is not itself a trusted proxy wins.
type clientResolver struct {
	trusted []netip.Prefix
}

func (c clientResolver) isTrusted(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range c.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func (c clientResolver) ip(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	peer, err := netip.ParseAddr(host)
	if err != nil || !c.isTrusted(peer) {
		return host
	}

	hops := strings.Split(strings.Join(r.Header.Values("X-Forwarded-For"), ","), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		addr, err := netip.ParseAddr(hop)
		if err != nil {
			break
		}
		if !c.isTrusted(addr) {
			return addr.Unmap().String()
		}
	}
	return host
}
