// Package cache provides the storage policies for the simulation cache
// subsystem: a recency-ordered LRU cache, a TTL cache with lazy and eager
// expiry, and a grid-backed spatial cache with area invalidation.
//
// All policies implement the Cache management interface plus whichever
// capability interfaces (KeyInvalidator, AgeEvicter, RecencyEvicter,
// AreaInvalidator) their structure supports. Cross-cache coordination
// lives in the manager package; caches never reference each other.
package cache
