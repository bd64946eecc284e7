package internal

import (
	"context"
	"fmt"
	"net"
	"strings"
)

// Service is the location of a CalDAV/CardDAV service.
type Service struct {
	Host string
	Port int
	Path string
}

// Resolver looks up DNS records. It's implemented by *net.Resolver.
type Resolver interface {
	LookupSRV(ctx context.Context, service, proto, name string) (string, []*net.SRV, error)
	LookupTXT(ctx context.Context, name string) ([]string, error)
}

// Discover performs a DNS-based CalDAV/CardDAV service discovery as described
// in RFC 6764 section 6. Only secure services (caldavs, carddavs) are looked
// up, plaintext connections are insecure.
func Discover(ctx context.Context, r Resolver, service, domain string) (*Service, error) {
	if service != "caldav" && service != "carddav" {
		return nil, fmt.Errorf("carddav: service discovery of type %v not supported", service)
	}
	if r == nil {
		r = net.DefaultResolver
	}

	_, addrs, err := r.LookupSRV(ctx, service+"s", "tcp", domain)
	if dnsErr, ok := err.(*net.DNSError); ok {
		if dnsErr.IsTemporary {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	svc := &Service{Host: domain, Port: 443}
	if len(addrs) > 0 {
		target := strings.TrimSuffix(addrs[0].Target, ".")
		if target == "" {
			return nil, fmt.Errorf("carddav: service %v is not available at %v", service, domain)
		}
		svc.Host = target
		svc.Port = int(addrs[0].Port)

		// A TXT record may specify the context path
		txtRecs, err := r.LookupTXT(ctx, fmt.Sprintf("_%vs._tcp.%v", service, domain))
		if dnsErr, ok := err.(*net.DNSError); ok {
			if dnsErr.IsTemporary {
				return nil, err
			}
		} else if err != nil {
			return nil, err
		}

		for _, txtRec := range txtRecs {
			// This is not correct according to RFC 6763 sections 6.3 to 6.5,
			// but LookupTXT merges all constituent strings together
			for _, kv := range strings.Split(txtRec, " ") {
				if strings.HasPrefix(strings.ToLower(kv), "path=") {
					svc.Path = kv[5:]
					break
				}
			}
			if svc.Path != "" {
				break
			}
		}
	}

	// If we didn't get a path from TXT records, use the default well-known location
	if svc.Path == "" {
		svc.Path = "/.well-known/" + service
	}
	return svc, nil
}
