// Package ratelimit throttles requests sent to the portal with a continuously
// refilling token bucket.
package ratelimit
