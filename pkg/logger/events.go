package logger

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"setupsync/pkg/progress"
)

// EventWriter turns zerolog JSON lines into log events for an observer. It
// never blocks on the observer; the sink decides what to drop.
type EventWriter struct {
	sink progress.Sink
}

// NewEventWriter forwards every log line written to it to sink.
func NewEventWriter(sink progress.Sink) *EventWriter {
	return &EventWriter{sink: sink}
}

var skipKeys = map[string]bool{
	zerolog.LevelFieldName:     true,
	zerolog.MessageFieldName:   true,
	zerolog.TimestampFieldName: true,
	"app":                      true,
}

// Write implements io.Writer. zerolog calls it once per event.
func (w *EventWriter) Write(p []byte) (int, error) {
	var entry map[string]interface{}
	if err := json.Unmarshal(p, &entry); err != nil {
		w.sink.Publish(progress.Event{Kind: progress.KindLog, Level: "info", Message: strings.TrimSpace(string(p))})
		return len(p), nil
	}

	level, _ := entry[zerolog.LevelFieldName].(string)
	msg, _ := entry[zerolog.MessageFieldName].(string)

	keys := make([]string, 0, len(entry))
	for k := range entry {
		if !skipKeys[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(msg)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, entry[k])
	}

	w.sink.Publish(progress.Event{Kind: progress.KindLog, Level: level, Message: b.String()})
	return len(p), nil
}
