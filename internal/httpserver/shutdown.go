package httpserver

import "time"

// ShutdownTimeout bounds the drain period on shutdown. Discovery and
// mutation requests finish well inside it; webhook deliveries that do not
// are retried by the video host.
const ShutdownTimeout = 10 * time.Second
