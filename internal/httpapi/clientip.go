// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

package httpapi

import (
	"net"
	"net/http"
	"strings"
)

// clientIP returns the address rate limits are keyed on. Behind a trusted
// proxy it is the rightmost X-Forwarded-For hop, the one the proxy appended.
// Earlier hops are client supplied and never used.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
			last := xff[len(xff)-1]
			if i := strings.LastIndexByte(last, ','); i >= 0 {
				last = last[i+1:]
			}
			if ip := net.ParseIP(strings.TrimSpace(last)); ip != nil {
				return ip.String()
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
