// Package shutdown releases externally visible throttle state on exit.
//
// A process that dies without cleaning up leaves its entries in the shared
// registry, and every cooperating peer keeps pacing for a ghost until the
// entries age out. The coordinator closes that gap: register each throttle
// and tracker, call HandleSignals, and a SIGTERM or SIGINT releases their
// registry entries before the process goes away.
//
//	coord := shutdown.NewCoordinator(shutdown.DefaultConfig())
//	coord.RegisterFunc("throttle", func(ctx context.Context) error {
//		return th.Close()
//	})
//	coord.HandleSignals()
//
// Releasers run newest-first, mirroring a deferred cleanup stack.
package shutdown
