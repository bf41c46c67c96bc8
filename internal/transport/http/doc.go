// Package http contains the chi handlers of the license server. The verify
// endpoint is the hot path polled by remote trading clients; the license,
// payment, and admin endpoints are the thin inbound surface called by the
// conversational layer on behalf of owners and admins.
package http
