package http

import (
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/melih/lighthouse-runner/internal/core/domain"
	"github.com/melih/lighthouse-runner/internal/core/ports"
)

// ProxyHandler manages reverse proxying for subdomains.
type ProxyHandler struct {
	engine ports.ContainerEngine
	domain string
}

// NewProxyHandler creates a new proxy handler for hosts below baseDomain.
func NewProxyHandler(engine ports.ContainerEngine, baseDomain string) *ProxyHandler {
	return &ProxyHandler{engine: engine, domain: strings.ToLower(baseDomain)}
}

// ProxyRequest intercepts requests to subdomains (e.g., app-name.localhost)
// and routes them to the host port the matching container publishes.
func (h *ProxyHandler) ProxyRequest(c *fiber.Ctx) error {
	subdomain, ok := h.subdomain(c.Hostname())
	if !ok {
		return c.Next()
	}

	// 1. Find Container by Name (Subdomain)
	containers, err := h.engine.ListContainers(c.UserContext(), domain.ContainerFilter{Name: subdomain})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("Failed to list containers")
	}

	var target string
	for _, ctr := range containers {
		// Only proxy to running containers
		if ctr.Name != subdomain || ctr.State != domain.StateRunning {
			continue
		}
		details, err := h.engine.InspectContainer(c.UserContext(), ctr.ID)
		if err != nil || len(details.Ports) == 0 {
			continue
		}
		target = hostTarget(details.Ports[0])
		break
	}

	if target == "" {
		return c.Status(fiber.StatusNotFound).SendString(fmt.Sprintf("App '%s' not found or not running", subdomain))
	}

	// 2. Proxy the Request
	remote, err := url.Parse("http://" + target)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("Invalid target URL")
	}

	proxy := httputil.NewSingleHostReverseProxy(remote)

	// Rewrite Host header to target
	originalDirector := proxy.Director
	proxy.Director = func(req *http.Request) {
		originalDirector(req)
		req.Host = remote.Host
	}

	// Return standard BadGateway if connectivity fails
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprintf(w, "Proxy Info: target=%s error=%v", target, err)
	}

	// Fiber <-> Net/HTTP Adaptor
	return adaptor.HTTPHandler(proxy)(c)
}

// subdomain returns the leftmost label of host when host sits directly
// below the proxy domain.
func (h *ProxyHandler) subdomain(host string) (string, bool) {
	if h.domain == "" {
		return "", false
	}
	host = strings.ToLower(host)
	if hostOnly, _, err := net.SplitHostPort(host); err == nil {
		host = hostOnly
	}
	name, ok := strings.CutSuffix(host, "."+h.domain)
	if !ok || name == "" || name == "www" || strings.Contains(name, ".") {
		return "", false
	}
	return name, true
}

func hostTarget(b domain.PortBinding) string {
	ip := b.HostIP
	if ip == "" || ip == "0.0.0.0" || ip == "::" {
		ip = "127.0.0.1"
	}
	return net.JoinHostPort(ip, b.HostPort)
}
