package admission

import (
	"errors"
	"net"
	"net/http"
)

var ErrEmptyAllowList = errors.New("allow-list has no ranges and no addresses")

// RejectStatus is written for every untrusted origin, whatever the route.
const RejectStatus = http.StatusGatewayTimeout

// Filter decides whether a source address may reach any handler.
// It is immutable after NewFilter and safe for concurrent use.
type Filter struct {
	ranges   []Range
	literals map[string]struct{}
}

func NewFilter(ranges []Range, literals []string) (*Filter, error) {
	if len(ranges) == 0 && len(literals) == 0 {
		return nil, ErrEmptyAllowList
	}

	f := &Filter{
		ranges:   append([]Range(nil), ranges...),
		literals: make(map[string]struct{}, len(literals)),
	}
	for _, lit := range literals {
		f.literals[lit] = struct{}{}
	}
	return f, nil
}

// Allow reports whether addr equals a trusted literal or falls inside a
// trusted range. Unparseable addresses are never allowed.
func (f *Filter) Allow(addr string) bool {
	if _, ok := f.literals[addr]; ok {
		return true
	}

	ip, err := ParseIPv4(addr)
	if err != nil {
		return false
	}

	for _, r := range f.ranges {
		if r.Contains(ip) {
			return true
		}
	}
	return false
}

// RejectFunc observes a rejected request. addr is the extracted source address.
type RejectFunc func(r *http.Request, addr string)

// Middleware runs the filter before next. Only the socket peer address is
// consulted; forwarding headers are ignored.
func Middleware(f *Filter, onReject RejectFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr := SourceAddress(r)
			if !f.Allow(addr) {
				if onReject != nil {
					onReject(r, addr)
				}
				http.Error(w, http.StatusText(RejectStatus), RejectStatus)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SourceAddress strips the port from r.RemoteAddr.
func SourceAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
