// Package session owns the in-memory registry of support sessions.
//
// A session pairs at most one technician connection with at most one
// customer connection under a short random id. The registry is the single
// source of truth for whether an id is live; it never performs I/O and is
// reset when the process restarts.
package session
