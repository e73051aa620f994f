package cache

import "fmt"

// JobListKey caches a user's job list as fetched from the job system.
// Usernames are case-sensitive.
func JobListKey(username string) string {
	return fmt.Sprintf("jobs:list:%s", username)
}

func RateLimitKey(subject string) string {
	return fmt.Sprintf("ratelimit:%s", subject)
}
