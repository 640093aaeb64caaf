package metadata

import (
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"tiptap/pkg/requestcontext"
)

// Device classes recorded on the request context.
const (
	DeviceMobile  = "mobile"
	DeviceDesktop = "desktop"
	DeviceBot     = "bot"
	DeviceUnknown = "unknown"
)

// ClientMetadata extracts client IP address and User-Agent from the request,
// classifies the device, and adds all three to the context.
// This middleware should be applied early in the chain.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIPFromRequest(r)
		userAgent := r.Header.Get("User-Agent")

		ctx := requestcontext.WithClientMetadata(r.Context(), ip, userAgent)
		ctx = requestcontext.WithDeviceClass(ctx, ClassifyDevice(userAgent))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClassifyDevice maps a User-Agent onto a coarse device class. Scanning
// terminals are phones running a browser, so "mobile" is the expected class.
func ClassifyDevice(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return DeviceUnknown
	}
	ua := useragent.New(userAgent)
	switch {
	case ua.Bot():
		return DeviceBot
	case ua.Mobile():
		return DeviceMobile
	case ua.OS() != "":
		return DeviceDesktop
	default:
		return DeviceUnknown
	}
}

// ClientIPFromRequest extracts the real client IP from the request, handling proxies and load balancers.
func ClientIPFromRequest(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs (client, proxy1, proxy2, ...)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// RemoteAddr is "ip:port"; IPv6 is "[::1]:port"
	if addr := r.RemoteAddr; addr != "" {
		if idx := strings.LastIndex(addr, ":"); idx != -1 {
			return addr[:idx]
		}
		return addr
	}

	return "unknown"
}
