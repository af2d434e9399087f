package ipc

import (
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/odvcencio/livewidgets/pkg/telemetry"
)

// allowedOrigin is one parsed server.allowed_origins entry. An empty port
// means the entry named none.
type allowedOrigin struct {
	raw    string
	scheme string
	host   string
	port   string
}

// originPolicy decides which browser origins may call the API and open
// page sockets.
type originPolicy struct {
	wildcard bool
	entries  []allowedOrigin
}

func newOriginPolicy(origins []string) originPolicy {
	var p originPolicy
	for _, raw := range origins {
		raw = strings.TrimSpace(raw)
		switch raw {
		case "":
			continue
		case "*":
			p.wildcard = true
			continue
		}
		entry := allowedOrigin{raw: raw}
		if u, err := url.Parse(raw); err == nil && u.Scheme != "" && u.Host != "" {
			entry.scheme = strings.ToLower(u.Scheme)
			entry.host, entry.port = splitOriginHost(u.Host)
		}
		p.entries = append(p.entries, entry)
	}
	return p
}

// allows reports whether origin may make cross-origin calls. viaWildcard
// is set when only a "*" entry let it through.
func (p originPolicy) allows(origin string) (ok bool, viaWildcard bool) {
	origin = strings.TrimSpace(origin)
	u, err := url.Parse(origin)
	if origin == "" || err != nil || u.Scheme == "" || u.Host == "" {
		return false, false
	}
	scheme := strings.ToLower(u.Scheme)
	host, port := splitOriginHost(u.Host)
	if port == "" {
		port = defaultPort(scheme)
	}
	for _, e := range p.entries {
		if strings.EqualFold(e.raw, origin) || strings.EqualFold(e.raw, scheme+"://"+u.Host) {
			return true, false
		}
		if e.scheme == scheme && e.host != "" && strings.EqualFold(e.host, host) && e.portMatches(port) {
			return true, false
		}
	}
	return p.wildcard, p.wildcard
}

// portMatches treats an entry without a port as the scheme default, except
// for loopback hosts where any dev-server port is accepted.
func (e allowedOrigin) portMatches(port string) bool {
	if e.port != "" {
		return e.port == port
	}
	if isLoopbackHost(e.host) {
		return true
	}
	return port == defaultPort(e.scheme)
}

// allowsSocket accepts same-host and listed origins for page websockets.
// Clients that send no Origin are not browsers and are accepted.
func (p originPolicy) allowsSocket(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	if u, err := url.Parse(origin); err == nil && u.Host != "" && strings.EqualFold(u.Host, r.Host) {
		return true
	}
	ok, _ := p.allows(origin)
	return ok
}

func splitOriginHost(hostport string) (host, port string) {
	if h, p, err := net.SplitHostPort(hostport); err == nil {
		return h, p
	}
	return strings.TrimSuffix(strings.TrimPrefix(hostport, "["), "]"), ""
}

func isLoopbackHost(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func defaultPort(scheme string) string {
	if scheme == "https" || scheme == "wss" {
		return "443"
	}
	return "80"
}

// corsMiddleware answers preflights and echoes allowed origins.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		if origin := r.Header.Get("Origin"); origin != "" {
			if ok, _ := s.origins.allows(origin); ok {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}
		}
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

// metricsMiddleware records request latency by chi route pattern so page
// ids never become label values.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		telemetry.ObserveHTTP(route, r.Method, status, time.Since(start))
	})
}
