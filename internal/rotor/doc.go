// Package rotor routes HTTP requests through the proxy gateway fleet.
//
// A Client wraps any Doer (an *http.Client satisfies it) and rewrites
// each outgoing request to travel via a randomly selected gateway
// endpoint: the URL is rebuilt against the gateway hostname's proxy
// stage and the original host, forwarded address, and user agent are
// folded into the routing headers the gateway integration re-maps
// server side. Pool construction happens lazily on the first request,
// never in the constructor.
package rotor
