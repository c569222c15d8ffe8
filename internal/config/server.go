package config

import (
	"fmt"
	"net"
)

// Listen opens the TCP listener this node's gRPC server binds to. An empty
// Node.Host binds all interfaces; an explicit host is used as-is.
func (cfg *NodeConfig) Listen() (net.Listener, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	return lis, nil
}

// AdvertiseAddr returns the address this node should advertise to peers. A
// configured Host is used as-is; otherwise the actual port bound by lis is
// paired with an address picked from the local interfaces according to
// AdvertiseMode, since a wildcard bind's own address (0.0.0.0) is never
// reachable by another node.
func (cfg *NodeConfig) AdvertiseAddr(lis net.Listener) (string, error) {
	port := lis.Addr().(*net.TCPAddr).Port
	if cfg.Host != "" {
		return fmt.Sprintf("%s:%d", cfg.Host, port), nil
	}
	ip, err := pickIP(cfg.AdvertiseMode)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%d", ip, port), nil
}

// pickIP selects the first IPv4 address among the non-loopback, up
// interfaces that matches mode ("private" or "public").
func pickIP(mode string) (net.IP, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	for _, iface := range ifaces {
		if (iface.Flags&net.FlagUp) == 0 || (iface.Flags&net.FlagLoopback) != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			ip = ip.To4()
			if ip == nil || ip.IsLoopback() {
				continue
			}
			if mode == "private" && isPrivateIP(ip) {
				return ip, nil
			}
			if mode == "public" && !isPrivateIP(ip) {
				return ip, nil
			}
		}
	}
	return nil, fmt.Errorf("no suitable %s interface found", mode)
}

// isPrivateIP reports whether ip falls in one of the RFC1918 ranges.
func isPrivateIP(ip net.IP) bool {
	for _, block := range []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"} {
		_, cidr, _ := net.ParseCIDR(block)
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}
