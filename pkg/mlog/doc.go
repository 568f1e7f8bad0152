/*
Package mlog defines the logging contract that Mercury's engine packages
call against, and ships a default zerolog-backed sink.

The engine itself never imports zerolog directly — every package that logs
takes an mlog.Logger interface value (IsEnabled + Log), so an embedder can
swap in any sink without touching the core. Zerologger is the reference
implementation, structured the way the host application's own logger
usually is: component-scoped children, JSON or console output, level
filtering before formatting.

	logger := mlog.New(mlog.Config{Level: mlog.InfoLevel, JSONOutput: true})
	store := logger.WithComponent("mstore")
	if store.IsEnabled(mlog.WarnLevel) {
		store.Log(mlog.WarnLevel, "checkpoint retrying", "attempt", 3)
	}

A nil Logger is never passed around; callers that don't wire one get
mlog.Nop{}, which is enabled for nothing.
*/
package mlog
