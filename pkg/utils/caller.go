package utils

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/hhzhhzhhz/mirror-master/log"
)

// Caller short file:line of the frame skip levels up.
func Caller(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return ""
	}
	if i := strings.LastIndexByte(file, '/'); i >= 0 {
		file = file[i+1:]
	}
	return fmt.Sprintf("%s:%d", file, line)
}

// Recover must be deferred directly. Logs the panic with its stack.
func Recover(name string) {
	if err := recover(); err != nil {
		var buf [4096]byte
		n := runtime.Stack(buf[:], false)
		log.Logger().Error("%s panic cause=%v stack=%s", name, err, string(buf[:n]))
	}
}
