package util

import (
	"os"
	"strconv"
)

// DebugEnabled włącza poziom debug logów CLI (PARASUT_DEBUG).
func DebugEnabled() bool {
	return etb("PARASUT_DEBUG")
}

// HttpTraceEnabled włącza śledzenie żądań HTTP klienta (PARASUT_HTTP_TRACE).
func HttpTraceEnabled() bool {
	return etb("PARASUT_HTTP_TRACE")
}

func etb(envName string) bool {
	v, ok := os.LookupEnv(envName)
	if !ok {
		return false
	}

	bv, err := strconv.ParseBool(v)

	return err == nil && bv
}
