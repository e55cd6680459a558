package sealevel

import (
	"fmt"

	"k8s.io/klog/v2"
)

type Logger interface {
	Log(s string)
}

// LogRecorder keeps program logs in memory, in the order they were emitted.
type LogRecorder struct {
	Logs []string
}

func (r *LogRecorder) Log(s string) {
	klog.V(3).Info(s)
	r.Logs = append(r.Logs, s)
}

func programLogf(log Logger, format string, args ...interface{}) {
	if log == nil {
		return
	}
	log.Log("Program log: " + fmt.Sprintf(format, args...))
}
