package trace

import (
	"encoding/json"
	"net/http"
)

// Middleware continues the caller's trace from request headers, or starts one,
// and echoes the trace id in the response.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tc := Root()
		if id := r.Header.Get(TraceIDKey); id != "" {
			tc = Context{TraceID: id, SpanID: tc.SpanID, ParentSpanID: r.Header.Get(SpanIDKey)}
		}
		w.Header().Set(TraceIDKey, tc.TraceID)
		next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), tc)))
	})
}

// ExtractFromJSON reads the trace_id field of a websocket message.
// ok is false when the message has none.
func ExtractFromJSON(data []byte) (tc Context, ok bool) {
	var msg struct {
		TraceID string `json:"trace_id"`
	}
	if err := json.Unmarshal(data, &msg); err != nil || msg.TraceID == "" {
		return Context{}, false
	}
	return Context{TraceID: msg.TraceID, SpanID: newSpanID()}, true
}
