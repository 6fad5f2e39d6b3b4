package logger

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
)

// TextFormatter renders logrus entries as
// "<timestamp> <LEVEL> <message> key=value ..."
type TextFormatter struct {
	TimestampFormat string
}

func (f *TextFormatter) Format(entry *log.Entry) ([]byte, error) {
	tsFormat := f.TimestampFormat
	if tsFormat == "" {
		tsFormat = "2006-01-02 15:04:05.000"
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "%s %s %s", entry.Time.Format(tsFormat), strings.ToUpper(entry.Level.String()), entry.Message)

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, entry.Data[k])
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}
