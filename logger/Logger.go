// Package logger implements structured key/value progress logging.
// Values are accumulated with Logkv and emitted as a single record by
// Dumpkvs, so one training log line carries every statistic of the
// reporting interval.
package logger

import (
	"io"
	"math"
	"sort"

	"github.com/rs/zerolog"
)

// Logger accumulates key/value pairs and dumps them as one structured
// record
type Logger struct {
	log     zerolog.Logger
	pending map[string]interface{}
}

// New creates a Logger writing structured records to w
func New(w io.Writer) *Logger {
	return &Logger{
		log:     zerolog.New(w).With().Timestamp().Logger(),
		pending: make(map[string]interface{}),
	}
}

// NewNop creates a Logger that discards everything
func NewNop() *Logger {
	return &Logger{
		log:     zerolog.Nop(),
		pending: make(map[string]interface{}),
	}
}

// Logkv records a single key/value pair for the next Dumpkvs call.
// Recording the same key twice overwrites the earlier value.
func (l *Logger) Logkv(key string, value interface{}) {
	l.pending[key] = value
}

// Dumpkvs emits every recorded pair as one structured record and
// clears the pending set. NaN float values are emitted as nulls since
// they mark undefined statistics.
func (l *Logger) Dumpkvs() {
	if len(l.pending) == 0 {
		return
	}

	keys := make([]string, 0, len(l.pending))
	for key := range l.pending {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	event := l.log.Info()
	for _, key := range keys {
		switch v := l.pending[key].(type) {
		case int:
			event = event.Int(key, v)
		case int64:
			event = event.Int64(key, v)
		case float64:
			if math.IsNaN(v) {
				event = event.Interface(key, nil)
			} else {
				event = event.Float64(key, v)
			}
		case string:
			event = event.Str(key, v)
		case bool:
			event = event.Bool(key, v)
		default:
			event = event.Interface(key, v)
		}
	}
	event.Msg("train")

	l.pending = make(map[string]interface{})
}
