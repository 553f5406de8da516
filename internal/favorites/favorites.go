// internal/favorites/favorites.go
//
// Legacy favorites/history list for game servers: flat records of ip:port,
// kept outside the protocol core. The newline-delimited file format is a
// compatibility contract with existing installs.
package favorites

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// List selects which record list an operation targets.
type List int

const (
	Favorites List = iota + 1
	History
)

// Record is one stored game server endpoint.
type Record struct {
	IP   uint32
	Port uint16
}

// String renders the record in the legacy dotted form, network byte order
// first ("a.b.c.d:port").
func (r Record) String() string {
	return fmt.Sprintf("%d.%d.%d.%d:%d",
		byte(r.IP>>24), byte(r.IP>>16), byte(r.IP>>8), byte(r.IP), r.Port)
}

// ParseRecord reads a record back from its legacy line form.
func ParseRecord(s string) (Record, error) {
	host, portStr, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return Record{}, fmt.Errorf("malformed record %q", s)
	}
	parts := strings.Split(host, ".")
	if len(parts) != 4 {
		return Record{}, fmt.Errorf("malformed address in record %q", s)
	}
	var ip uint32
	for _, p := range parts {
		b, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			return Record{}, fmt.Errorf("malformed address in record %q: %w", s, err)
		}
		ip = ip<<8 | uint32(b)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return Record{}, fmt.Errorf("malformed port in record %q: %w", s, err)
	}
	return Record{IP: ip, Port: uint16(port)}, nil
}

// Store holds the favorites and history lists. Adds are idempotent; Add and
// Count return the list length so callers can report totals directly.
type Store interface {
	Count(ctx context.Context, list List) (int, error)
	Get(ctx context.Context, list List, i int) (Record, bool, error)
	Add(ctx context.Context, list List, r Record) (int, error)
	Remove(ctx context.Context, list List, r Record) (bool, error)
}
