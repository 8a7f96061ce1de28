// Package redisstream mirrors xdispatch notifications into a Redis Stream so that other
// processes can audit dispatcher activity. Events themselves never leave the process; only
// their notifications are exported.
//
// Minimal config keys:
// - addr: "host:port" (default "127.0.0.1:6379")
// - stream: target stream (default "xdispatch:notifications")
// - max_len_approx: approximate MAXLEN trim (default 10000, 0 disables trimming)
// - codec: payload codec, "json" or "msgpack" (default "json")
// - timeout: per-write timeout (default 2s)
// - types: notification types to export (default: all)
//
// Example usage:
//
//	d, sink := redisstream.Use(redisstream.ConfigFromMap(map[string]any{
//	    "addr":   "localhost:6379",
//	    "stream": "orders:dispatch",
//	    "types":  []string{"handler_failed", "run_failed"},
//	}), redisstream.WithWorkerCount(8))
//	defer sink.Close()
//	defer d.Close(context.Background())
package redisstream
