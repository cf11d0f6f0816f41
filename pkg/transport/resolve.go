package transport

import (
    "context"
    "errors"
    "fmt"
    "net"
    "sort"
    "strconv"
    "strings"
)

// DefaultPort is used when an address carries no port.
const DefaultPort = 14004

// SplitAddress splits address into host and port, falling back to
// defaultPort. Bare and bracketed IPv6 literals are accepted.
func SplitAddress(address string, defaultPort uint16) (string, string, error) {
    address = strings.TrimSpace(address)
    if address == "" { return "", "", errors.New("transport: empty address") }
    if host, port, err := net.SplitHostPort(address); err == nil {
        if port == "" { port = strconv.Itoa(int(defaultPort)) }
        return host, port, nil
    }
    host := strings.TrimSuffix(strings.TrimPrefix(address, "["), "]")
    return host, strconv.Itoa(int(defaultPort)), nil
}

// Resolve turns address into the host:port candidates to try, in order.
// Literal IPs yield themselves; names are looked up and ordered IPv4 first,
// or IPv6 first with preferIPv6.
func Resolve(ctx context.Context, address string, defaultPort uint16, preferIPv6 bool) ([]string, error) {
    host, port, err := SplitAddress(address, defaultPort)
    if err != nil { return nil, err }
    if _, err := net.DefaultResolver.LookupPort(ctx, "tcp", port); err != nil {
        return nil, fmt.Errorf("resolve %q: %w", address, err)
    }
    if ip := net.ParseIP(host); ip != nil {
        return []string{net.JoinHostPort(ip.String(), port)}, nil
    }
    ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
    if err != nil { return nil, fmt.Errorf("resolve %q: %w", address, err) }
    if len(ips) == 0 { return nil, fmt.Errorf("resolve %q: no addresses", address) }
    sort.SliceStable(ips, func(i, j int) bool {
        return family(ips[i].IP, preferIPv6) < family(ips[j].IP, preferIPv6)
    })
    out := make([]string, 0, len(ips))
    for _, ip := range ips {
        out = append(out, net.JoinHostPort(ip.String(), port))
    }
    return out, nil
}

func family(ip net.IP, preferIPv6 bool) int {
    v4 := ip.To4() != nil
    if v4 != preferIPv6 { return 0 }
    return 1
}

// DialEach resolves address and tries every candidate in order until dial
// succeeds. All failures are joined into the returned error.
func DialEach(ctx context.Context, address string, defaultPort uint16, preferIPv6 bool, dial func(context.Context, string) (Conn, error)) (Conn, error) {
    cands, err := Resolve(ctx, address, defaultPort, preferIPv6)
    if err != nil { return nil, err }
    var errs []error
    for _, c := range cands {
        conn, err := dial(ctx, c)
        if err == nil { return conn, nil }
        errs = append(errs, fmt.Errorf("%s: %w", c, err))
        if ctx.Err() != nil { break }
    }
    return nil, errors.Join(errs...)
}
