// Package discovery finds Zyxel Multy routers on the local network using mDNS.
//
// Routers advertise their web interface as an "_http._tcp" service. An entry
// is treated as a Multy router when its hostname or instance name contains
// "Multy", or when its "model" TXT record carries a Multy model number
// (WSQ/WSR series).
//
// # Usage Example
//
//	routers, err := discovery.NewScanner().Scan(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, r := range routers {
//	    fmt.Printf("Found: %s, ZAPI at %s\n", r, r.ZAPIURL())
//	}
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Routers must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
