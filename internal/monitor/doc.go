// Package monitor implements the single-target change monitor: the poll
// scheduler and its generation-guarded state, the change detector, the
// keyword scanner, the bounded log journal, and the ports used by the
// fetch, extract, notify, archive and publish adapters.
package monitor
