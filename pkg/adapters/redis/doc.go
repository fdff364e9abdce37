// Package redis provides the Redis adapters: a session store with a sorted-set
// index, a distributed lock and a room inventory whose reservations are
// atomic Lua scripts.
package redis
