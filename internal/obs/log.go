package obs

import (
	"encoding/json"
	"log"
	"os"
	"sync"
)

var (
	loggerOnce sync.Once
	logger     *log.Logger
)

// Logger returns the process-wide line logger. Output is one JSON object
// per line so collectors ingest it without a parse step.
func Logger() *log.Logger {
	loggerOnce.Do(func() {
		logger = log.New(os.Stdout, "", 0)
	})
	return logger
}

// LogJSON marshals v and writes it as a single log line. A value that
// cannot be marshaled produces a fallback error line instead of silence.
func LogJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		Logger().Println(`{"level":"error","msg":"log marshal failed"}`)
		return
	}
	Logger().Println(string(data))
}

// LogRequest emits the per-request access log entry.
func LogRequest(entry map[string]any) {
	LogJSON(entry)
}
