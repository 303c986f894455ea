package collyfetcher

import (
	"bufio"
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/distro-catalog-crawler/internal/catalog"
	"github.com/JakeFAU/distro-catalog-crawler/internal/proxypool"
)

// fakeSOCKS4 accepts one CONNECT per connection and splices it to the target.
func fakeSOCKS4(t *testing.T, grant bool) (string, <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	targets := make(chan string, 8)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serveSOCKS4(conn, grant, targets)
		}
	}()
	return ln.Addr().String(), targets
}

func serveSOCKS4(conn net.Conn, grant bool, targets chan<- string) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	head := make([]byte, 8)
	if _, err := io.ReadFull(r, head); err != nil {
		return
	}
	if _, err := r.ReadBytes(0); err != nil {
		return
	}
	port := int(head[2])<<8 | int(head[3])
	host := net.IP(head[4:8]).String()
	if head[4] == 0 && head[5] == 0 && head[6] == 0 && head[7] != 0 {
		name, err := r.ReadBytes(0)
		if err != nil {
			return
		}
		host = string(name[:len(name)-1])
	}
	target := net.JoinHostPort(host, strconv.Itoa(port))
	targets <- target

	if !grant {
		_, _ = conn.Write([]byte{0, 0x5b, 0, 0, 0, 0, 0, 0})
		return
	}
	upstream, err := net.Dial("tcp", target)
	if err != nil {
		_, _ = conn.Write([]byte{0, 0x5b, 0, 0, 0, 0, 0, 0})
		return
	}
	defer upstream.Close()
	_, _ = conn.Write([]byte{0, 0x5a, 0, 0, 0, 0, 0, 0})
	go func() { _, _ = io.Copy(upstream, r) }()
	_, _ = io.Copy(conn, upstream)
}

func TestFetchViaSOCKS4(t *testing.T) {
	t.Parallel()

	origin := newOrigin(t, http.StatusOK, "over socks4")
	proxyAddr, targets := fakeSOCKS4(t, true)
	candidate := catalog.ProxyCandidate{Scheme: catalog.SchemeSOCKS4, Address: proxyAddr}

	resp, err := testFetcher().Fetch(context.Background(), catalog.FetchRequest{
		URL:     origin.URL,
		Proxies: proxypool.New([]catalog.ProxyCandidate{candidate}),
	})
	require.NoError(t, err)
	assert.Equal(t, candidate.String(), resp.Egress)
	assert.Equal(t, "over socks4", string(resp.Body))
	assert.Equal(t, origin.Listener.Addr().String(), <-targets)
}

func TestFetchSOCKS4RejectedFallsBackDirect(t *testing.T) {
	t.Parallel()

	origin := newOrigin(t, http.StatusOK, "direct")
	proxyAddr, targets := fakeSOCKS4(t, false)
	candidate := catalog.ProxyCandidate{Scheme: catalog.SchemeSOCKS4, Address: proxyAddr}

	resp, err := testFetcher().Fetch(context.Background(), catalog.FetchRequest{
		URL:     origin.URL,
		Proxies: proxypool.New([]catalog.ProxyCandidate{candidate}),
	})
	require.NoError(t, err)
	assert.Equal(t, egressDirect, resp.Egress)
	assert.Equal(t, 2, resp.Attempts)
	assert.Equal(t, origin.Listener.Addr().String(), <-targets)
}

func TestSOCKS4TransportSendsHostname(t *testing.T) {
	t.Parallel()

	proxyAddr, targets := fakeSOCKS4(t, false)
	transport, err := newHTTPTransport(&catalog.ProxyCandidate{Scheme: catalog.SchemeSOCKS4, Address: proxyAddr}, time.Second)
	require.NoError(t, err)

	_, err = transport.DialContext(context.Background(), "tcp", "distrowatch.com:443")
	require.Error(t, err)
	assert.Equal(t, "distrowatch.com:443", <-targets)
}

func TestSOCKS4TransportDeadProxy(t *testing.T) {
	t.Parallel()

	transport, err := newHTTPTransport(&catalog.ProxyCandidate{Scheme: catalog.SchemeSOCKS4, Address: deadAddress(t)}, time.Second)
	require.NoError(t, err)
	_, err = transport.DialContext(context.Background(), "tcp", "127.0.0.1:80")
	require.Error(t, err)
}
