package protocol

import (
	"fmt"
	"runtime"
)

// FaultMessage reduces a fault (an error, a recovered panic value) to the
// one-line message sent to clients. Only the fault's own text is used,
// never a stack trace. Go runtime errors such as nil dereferences are
// replaced by fallback, as is an empty message.
func FaultMessage(fault any, fallback string) string {
	var msg string
	switch v := fault.(type) {
	case nil:
	case runtime.Error:
	case error:
		msg = v.Error()
	case string:
		msg = v
	default:
		msg = fmt.Sprint(v)
	}
	if msg == "" {
		return fallback
	}
	return msg
}
