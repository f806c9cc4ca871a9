// Package probe checks that a website answers before a browser is started.
//
// A Prober sends one GET request through the same proxy and with the same
// credentials the browser will use. A dead host, a wrong proxy or missing
// credentials are reported in seconds instead of after a render timeout.
//
// Supported proxies:
//   - host:port and http(s)://host:port (HTTP CONNECT proxies)
//   - socks5://host:port and socks5h://host:port
package probe
