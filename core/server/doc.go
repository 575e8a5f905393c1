// Package server wraps http.Server with explicit listening, optional TLS and
// graceful shutdown. The hub uses it to accept websocket upgrade requests.
//
// # Basic Usage
//
//	srv := server.New(":8080",
//		server.WithShutdownTimeout(10*time.Second),
//		server.WithLogger(log),
//	)
//
//	ln, err := srv.Listen()
//	if err != nil {
//		return err
//	}
//	go srv.Serve(ctx, ln, handler)
//	defer srv.Stop()
//
// Listen and Serve are split so callers learn bind errors synchronously and
// can read the actual port via Addr when binding ":0".
//
// # errgroup Integration
//
//	g, ctx := errgroup.WithContext(ctx)
//	g.Go(srv.Run(ctx, handler))
//
// # TLS
//
// TLS is enabled with WithTLS or, via NewFromConfig, when both
// TLSCertFile and TLSKeyFile are set. Certificates are loaded up front so a
// bad pair fails construction instead of the first handshake.
//
//	cfg, err := server.NewTLSConfig(server.WithTLSCertificate("cert.pem", "key.pem"))
//
// # Hijacked Connections
//
// Stop waits only for in-flight HTTP requests. Upgraded websocket
// connections are hijacked from http.Server and must be closed by their owner.
package server
