// Package httpmw holds the middleware wrapped around the content API.
//
// httpserver.NewHandler composes them outermost first: security headers,
// recover, request ID, client IP, rate limiting, tracing, content headers,
// metrics, request logger, then the chi router with route annotation and
// access logging. Query strings and user agents are left out of logs.
package httpmw
