package instance

import "os"

// ID names the running process in logs. MYGROS_INSTANCE_ID wins, then the
// platform DYNO, then the hostname.
func ID(service string) string {
	for _, key := range []string{"MYGROS_INSTANCE_ID", "DYNO"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return service + "@" + host
	}
	return service + "-0"
}
