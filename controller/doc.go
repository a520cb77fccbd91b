// Package controller is a client for the FlexGui data interface of a robot controller.
//
// A Session is one TCP connection that multiplexes reads, writes and commands.
// Requests may be issued from any number of goroutines; each reply is matched
// to its request by correlation key, and requests sharing a key are answered
// in the order they were sent.
//
// A Monitor is a push subscription on a connection of its own. Notify builds
// on Read and Monitor to wait until a signal satisfies a condition.
//
// Key Features:
//   - Signal reads by name (address.AxisTheta, ...) for a 1-based mechanism id.
//   - Integer writes acknowledged by sequence id.
//   - Named commands (MoveX, selectMotorOn, ...) with result codes surfaced as *flexmsg.CommandError.
//   - Asynchronous controller notifications delivered to a NotificationHandler.
//   - Atomic connection metrics, exported to Prometheus by the metric package.
//
// Usage Example:
//
//	cfg, err := controller.NewConnectionConfig("192.168.0.10", 0,
//	    controller.WithReplyTimeout(2*time.Second),
//	)
//	// ... handle error ...
//
//	session, err := controller.Dial(ctx, cfg)
//	// ... handle error ...
//	defer session.Close()
//
//	angles, err := session.GetJointAngle(ctx, 1)
//	// ... handle error ...
//
//	_, err = session.MoveTo(ctx, [6]float64{500, 0, 400, 180, 0, 0}, controller.MovePositioning)
//	// ... handle error ...
//
//	// wait until the motors are confirmed on
//	err = session.NotifyMotorReady(ctx, true, controller.DefaultMonitorParams())
package controller
