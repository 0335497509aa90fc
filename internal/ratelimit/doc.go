// Package ratelimit provides per-ip token buckets for the application
// listener, with background eviction of idle entries.
//
// It is in-memory and per instance. It keeps one client from exhausting
// the process and does nothing against distributed floods, which belong to
// an upstream WAF or load balancer.
package ratelimit
