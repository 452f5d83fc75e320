// Package eventstream serves the state cache to external consumers.
//
// Endpoints:
//
//	GET  /events                 WebSocket stream of change and availability events
//	GET  /snapshots              every current snapshot (JSON)
//	GET  /snapshots/{resource}   one snapshot, 404 when the resource was never read
//	GET  /history/{resource}     retained events of a resource, oldest first
//	GET  /status                 subscriber and drop counters
//	POST /commands/{name}        run a command with a JSON object of arguments
//
// The event stream sends one JSON Message per frame. The first frame is a
// hello carrying the subscriber id; every later frame carries an event.
// A subscriber that falls behind loses events rather than slowing the
// poller; the /status dropped counter reports how many.
//
// # Usage Example
//
//	srv, err := eventstream.New(&eventstream.Config{Port: 8765}, cache, facade)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Command errors map onto HTTP statuses: validation 400, device rejection
// 422, authentication and network failures 502, timeouts 504.
package eventstream
