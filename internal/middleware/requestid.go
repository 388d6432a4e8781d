package middleware

import (
	"context"
	"net/http"

	"github.com/rs/xid"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// maxRequestIDLen bounds an id accepted from an upstream proxy.
const maxRequestIDLen = 64

type ctxKey struct{}

// RequestID tags every request with an id, echoes it in the X-Request-ID
// response header and stores it in the request context.
//
// An incoming X-Request-ID (from a proxy that already assigned one) is kept
// when it is short and printable. Otherwise a fresh xid is generated: xids
// are 20 characters, sortable by time, and need no coordination.
//
// chi's middleware.RequestID is not used: it generates "host/prefix-000042"
// counters that restart with the process and collide across replicas, and it
// never echoes the id back to the client. xids stay unique across restarts
// and instances, and the frontend can quote the X-Request-ID it received.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if !validRequestID(id) {
			id = xid.New().String()
		}

		w.Header().Set(RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), ctxKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the id stored by RequestID, or "" outside a request.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if c := id[i]; c < 0x21 || c > 0x7e {
			return false
		}
	}
	return true
}
