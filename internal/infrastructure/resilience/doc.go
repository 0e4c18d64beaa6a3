/*
Package resilience provides circuit breakers for upstream calls.

# Overview

The gateway relays messages to upstream engines it does not control.
When an engine goes down, every relayed call would otherwise burn a
full timeout before failing. A breaker per upstream target sheds that
load: after enough consecutive failures the circuit opens and calls
fail fast until a probe succeeds.

# Usage

	// One breaker per upstream target, shared config
	group := resilience.NewGroup(resilience.Config{
		TripThreshold: 5,
		OpenTimeout:   30 * time.Second,
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("breaker state change",
				zap.String("target", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	var result *WorkflowResult
	err := group.Execute("workflow", func() error {
		r, err := client.Trigger(ctx, name, params)
		if err != nil {
			return err
		}
		result = r
		return nil
	})

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                    [failure]
	                                           |
	                                           v
	                                         Open
*/
package resilience
