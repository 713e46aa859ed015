package config

import "time"

type Realtime struct{}

var _ RealtimeConfig = Realtime{}

// GetRealtimeDriver selects the realtime transport: "memory" or "redis"
func (Realtime) GetRealtimeDriver() string {
	return GetEnv("REALTIME_DRIVER", "memory")
}

func (Realtime) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "localhost:6379")
}

func (Realtime) GetPerformanceInterval() time.Duration {
	return GetDuration("PERFORMANCE_INTERVAL", 15*time.Second)
}

func (Realtime) GetNotificationInterval() time.Duration {
	return GetDuration("NOTIFICATION_INTERVAL", 30*time.Second)
}
