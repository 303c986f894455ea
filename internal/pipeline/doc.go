// Package pipeline runs one scrape: ranking discovery, a serial rate-limited
// detail loop, and snapshot persistence. Item-level failures are absorbed;
// only a failure of the primary snapshot store is returned to the caller.
package pipeline
