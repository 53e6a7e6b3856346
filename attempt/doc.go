// Package attempt counts failed login attempts per identity.
//
// [Cache] keeps counters in process, bounded by an LRU and expiring a fixed
// window after the last write. [RedisLimiter] stores the same counters in
// Redis for deployments with more than one instance.
package attempt
