package log

import (
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

const defaultTimeFormat = "2006-01-02 15:04:05.000"

// patternFormatter renders entries from a pattern with the placeholders
// %time, %level, %msg, %field, %caller and %n (newline).
type patternFormatter struct {
	pattern string
	time    string
}

func newPatternFormatter(pattern, timeFormat string) *patternFormatter {
	if timeFormat == "" {
		timeFormat = defaultTimeFormat
	}
	return &patternFormatter{pattern: pattern, time: timeFormat}
}

func (f *patternFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	r := strings.NewReplacer(
		"%time", entry.Time.Format(f.time),
		"%level", strings.ToUpper(entry.Level.String()),
		"%msg", entry.Message,
		"%field", formatFields(entry.Data),
		"%caller", f.caller(),
		"%n", "\n",
	)
	out := r.Replace(f.pattern)
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return []byte(out), nil
}

// caller returns package/file.go:line of the call site that logged the entry:
// the first frame above logrus that is not the adapter.
func (f *patternFormatter) caller() string {
	if !strings.Contains(f.pattern, "%caller") {
		return ""
	}
	pcs := make([]uintptr, 32)
	frames := runtime.CallersFrames(pcs[:runtime.Callers(2, pcs)])
	seenLogrus := false
	for {
		fr, more := frames.Next()
		switch {
		case strings.Contains(fr.Function, "github.com/sirupsen/logrus."):
			seenLogrus = true
		case seenLogrus && !strings.Contains(fr.Function, adapterPrefix):
			// firestige.xyz/pcapfix/internal/pipeline.(*runner).emit → pipeline
			fn := fr.Function[strings.LastIndex(fr.Function, "/")+1:]
			pkg, _, _ := strings.Cut(fn, ".")
			return fmt.Sprintf("%s/%s:%d", pkg, filepath.Base(fr.File), fr.Line)
		}
		if !more {
			return "unknown"
		}
	}
}

// adapterPrefix matches the methods of logrusAdapter in runtime function names.
const adapterPrefix = "/internal/log.(*logrusAdapter)."

// formatFields renders fields as sorted key=value pairs.
func formatFields(data logrus.Fields) string {
	if len(data) == 0 {
		return ""
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		v := data[k]
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		parts[i] = fmt.Sprintf("%s=%v", k, v)
	}
	return strings.Join(parts, ",")
}
