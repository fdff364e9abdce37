/*
Package session serializes access to stored conversations.

A Manager loads a session snapshot, resumes it on the engine, applies one
operation (start, reply or end) and saves the result, holding a per-session
lock for the whole read-modify-write. With a DistributedLocker the same
guarantee holds across replicas sharing a store.
*/
package session
