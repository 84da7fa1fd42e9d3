package gateway

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// IPResolver определяет адрес клиента. X-Forwarded-For учитывается только
// если соединение пришло от доверенного прокси
type IPResolver struct {
	trusted []*net.IPNet
}

// NewIPResolver разбирает список доверенных прокси: CIDR или одиночные адреса
func NewIPResolver(proxies []string) (*IPResolver, error) {
	r := &IPResolver{}
	for _, p := range proxies {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !strings.Contains(p, "/") {
			if ip := net.ParseIP(p); ip != nil && ip.To4() != nil {
				p += "/32"
			} else {
				p += "/128"
			}
		}
		_, n, err := net.ParseCIDR(p)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", p, err)
		}
		r.trusted = append(r.trusted, n)
	}
	return r, nil
}

func (r *IPResolver) isTrusted(addr string) bool {
	if r == nil {
		return false
	}
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	for _, n := range r.trusted {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIP адрес клиента. Цепочка X-Forwarded-For читается справа налево
// и останавливается на первом адресе не из доверенных прокси
func (r *IPResolver) ClientIP(req *http.Request) string {
	remote := RemoteIP(req)
	if !r.isTrusted(remote) {
		return remote
	}
	hops := strings.Split(req.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if net.ParseIP(hop) == nil {
			break
		}
		if !r.isTrusted(hop) {
			return hop
		}
		remote = hop
	}
	return remote
}

// RemoteIP адрес непосредственного собеседника без порта
func RemoteIP(req *http.Request) string {
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}
