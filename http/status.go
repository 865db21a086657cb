package http

import nethttp "net/http"

// DefaultStatusCode is sent when no status code was set before the head is written.
const DefaultStatusCode = nethttp.StatusOK

// StatusText returns the reason phrase of code, or "Unknown".
func StatusText(code int) string {
	if text := nethttp.StatusText(code); text != "" {
		return text
	}
	return "Unknown"
}

func validStatusCode(code int) bool {
	return code >= 100 && code <= 999
}
