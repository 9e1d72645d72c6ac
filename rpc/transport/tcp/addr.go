package tcp

import (
	"fmt"
	"net"
	"strconv"

	"golang.org/x/sys/unix"
)

// resolveEndpoint converts "host:port" into a socket address and its family.
// An empty host means all IPv4 interfaces, host names are resolved and the
// first IPv4 address is preferred.
func resolveEndpoint(endpoint string) (unix.Sockaddr, int, error) {
	host, portStr, err := net.SplitHostPort(endpoint)
	if err != nil {
		return nil, 0, err
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port < 0 || port > 0xffff {
		return nil, 0, fmt.Errorf("invalid port %q", portStr)
	}

	var ip net.IP
	if host == "" {
		ip = net.IPv4zero
	} else if ip = net.ParseIP(host); ip == nil {
		ips, err := net.LookupIP(host)
		if err != nil {
			return nil, 0, err
		}
		if len(ips) == 0 {
			return nil, 0, fmt.Errorf("no address found for %s", host)
		}
		ip = ips[0]
		for _, candidate := range ips {
			if candidate.To4() != nil {
				ip = candidate
				break
			}
		}
	}

	if ip4 := ip.To4(); ip4 != nil {
		sa := &unix.SockaddrInet4{Port: port}
		copy(sa.Addr[:], ip4)
		return sa, unix.AF_INET, nil
	}

	sa := &unix.SockaddrInet6{Port: port}
	copy(sa.Addr[:], ip.To16())
	return sa, unix.AF_INET6, nil
}

// sockaddrString formats a socket address as "host:port"
func sockaddrString(sa unix.Sockaddr) string {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return net.JoinHostPort(net.IP(a.Addr[:]).String(), strconv.Itoa(a.Port))
	case *unix.SockaddrInet6:
		return net.JoinHostPort(net.IP(a.Addr[:]).String(), strconv.Itoa(a.Port))
	case nil:
		return "unknown"
	default:
		return fmt.Sprintf("%v", sa)
	}
}
