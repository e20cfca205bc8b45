// Package invalidation defines how cached values are retired: the
// triggers simulation systems submit, the rules that bind triggers to
// caches, the strategies that decide what inside a cache goes, the
// dependency graph that propagates an invalidation to dependent caches,
// and the priority queue of pending requests drained once per tick.
package invalidation
