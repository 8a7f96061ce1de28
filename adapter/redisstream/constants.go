package redisstream

// Field constants (avoid typos/allocs)
const (
	fieldType      = "type"
	fieldApp       = "app"
	fieldEventID   = "event_id"
	fieldEventType = "event_type"
	fieldWorker    = "worker"
	fieldErr       = "err"
	fieldCodec     = "codec"
	fieldPayload   = "payload" // raw []byte to reduce allocs (no base64)
	fieldAt        = "at"      // int64 ns
)
