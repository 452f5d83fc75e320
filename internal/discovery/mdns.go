package discovery

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/multy/internal/logging"
)

const (
	// ServiceType is the mDNS service type browsed for routers.
	// Multy routers advertise their web interface as "_http._tcp".
	ServiceType = "_http._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for router discovery
	DefaultScanTimeout = 5 * time.Second

	// DefaultPort is the default HTTP port advertised by routers
	DefaultPort = 80
)

// multyPattern matches Multy hostnames and instance names
// (e.g., "Multy-1A2B3C.local." or "Zyxel Multy X")
var multyPattern = regexp.MustCompile(`(?i)\bmulty\b`)

// modelPattern matches Multy model numbers carried in TXT records
var modelPattern = regexp.MustCompile(`(?i)^(WSQ|WSR)\d+`)

// Scanner handles mDNS router discovery
type Scanner struct {
	// Timeout is the maximum time to wait for router discovery
	Timeout time.Duration
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// Scan browses the local network until the timeout or ctx ends and returns
// every Multy router seen, one entry per address, sorted by IP.
func (s *Scanner) Scan(ctx context.Context) ([]*Router, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	found := make(chan []*Router, 1)
	go func() {
		seen := map[string]*Router{}
	loop:
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					break loop
				}
				if router := s.parseServiceEntry(entry); router != nil {
					seen[router.IP] = router
				}
			case <-ctx.Done():
				break loop
			}
		}
		out := make([]*Router, 0, len(seen))
		for _, r := range seen {
			out = append(out, r)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].IP < out[j].IP })
		found <- out
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	routers := <-found
	logging.Debug("mDNS scan finished", zap.Int("routers", len(routers)))
	return routers, nil
}

// parseServiceEntry converts a zeroconf service entry to a Router
// Returns nil if the entry is not a Multy router
func (s *Scanner) parseServiceEntry(entry *zeroconf.ServiceEntry) *Router {
	if entry == nil {
		return nil
	}

	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		// TXT records are in "key=value" format
		parts := strings.SplitN(txt, "=", 2)
		if len(parts) == 2 {
			metadata[parts[0]] = parts[1]
		} else {
			metadata[parts[0]] = ""
		}
	}
	model := metadata["model"]

	if !multyPattern.MatchString(entry.HostName) &&
		!multyPattern.MatchString(entry.Instance) &&
		!modelPattern.MatchString(model) {
		return nil
	}

	// Prefer IPv4
	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	return &Router{
		Instance:     entry.Instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         port,
		Model:        model,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}

// QuickScan performs a fast scan with a 3-second timeout
func QuickScan(ctx context.Context) ([]*Router, error) {
	scanner := NewScanner()
	scanner.Timeout = 3 * time.Second
	return scanner.Scan(ctx)
}
