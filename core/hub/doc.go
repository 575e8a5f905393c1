// Package hub is the websocket server and connection registry. It upgrades
// requests on a single path, hands each connection an id and re-emits the
// connection lifecycle as hub-level events. It also owns the root of the
// channel and group namespace used for broadcasting.
//
// # Basic Usage
//
//	h, err := hub.New(hub.DefaultConfig(), hub.WithLogger(log))
//	if err != nil {
//		return err
//	}
//
//	h.OnConnect(func(ctx context.Context, ev hub.ConnectEvent) error {
//		h.Channel("rooms/lobby").Join(ev.Conn)
//		return nil
//	})
//	h.OnMessage(func(ctx context.Context, ev hub.MessageEvent) error {
//		return h.Channel("rooms/lobby").Send(ev.Text())
//	})
//
//	g, ctx := errgroup.WithContext(ctx)
//	g.Go(h.Run(ctx))
//	return g.Wait()
//
// # Requests
//
// A request whose path differs from Config.Path gets 406 Not Acceptable. A
// request on the right path without an upgrade header gets 426 Upgrade
// Required. Neither registers a connection; both are counted in Stats.
//
// # Connection IDs
//
// Ids come from a running counter that starts at 2 and skips ids still in
// use, so an id is never shared by two live connections.
//
// # Membership
//
// Closing a connection removes it from the hub's table only. Channel and
// group membership is kept unless Config.AutoLeave is set, in which case the
// connection leaves the whole namespace before disconnect is emitted.
//
// # Rate Limiting
//
// With Config.RateLimitCapacity above zero each connection gets a token
// bucket keyed by its UUID. Messages over the limit are dropped before the
// message event and counted as hub.messages.dropped.
//
// # Metrics
//
// Each hub owns a go-metrics registry. Stats returns a snapshot and
// WriteMetrics dumps the registry as JSON.
package hub
