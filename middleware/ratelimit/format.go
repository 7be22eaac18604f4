package ratelimit

import "strconv"

// formatInt64 formata contadores e timestamps (epoch em segundos) para os headers.
func formatInt64(v int64) string { return strconv.FormatInt(v, 10) }
