// Package websocket pushes dataset events to browsers. Clients are grouped
// by upload session so that a new upload only refreshes the dashboards of
// the session that made it.
//
//	hub := websocket.NewHub(logger, metrics)
//	hub.Start()
//	defer hub.Stop()
//
//	conn, _ := upgrader.Upgrade(w, r, nil)
//	websocket.Serve(hub, websocket.WrapConn(conn), sessionID, traceID, logger)
//
//	hub.PublishToSession(sessionID, "dataset.replaced", dataset)
package websocket
