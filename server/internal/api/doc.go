// Package api implements the HTTP surface of larkbridge.
//
// New(registry) returns an http.Handler that serves:
//
//	POST /webhook/alert/{hash}     Alertmanager webhook; 200 "Message(s) sent"
//	POST /webhook/callback/{hash}  Lark card callback; JSON reply
//	GET  /healthz                  always 200 "OK"
//	GET  /metrics                  Prometheus exposition
//
// Unknown hashes, and callbacks to providers without callback support, get
// 404 before any provider code runs. Webhook routes return 405 for non-POST
// methods, 400 "Invalid payload" for undecodable bodies, and a fixed 500 body
// on provider failure; details are only logged.
//
// Every response carries an X-Request-Id header. No external HTTP framework
// is used.
package api
