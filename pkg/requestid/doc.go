// Package requestid tags every HTTP request with an ID that is echoed in
// the response header and attached to log records through LoggerExtractor.
package requestid
