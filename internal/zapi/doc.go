// Package zapi implements a client for the ZAPI protocol spoken by Zyxel Multy
// mesh routers.
//
// ZAPI is a NETCONF-inspired JSON-RPC dialect served over self-signed HTTPS at
// a single endpoint (https://<router>/zapi). Every call is one POST carrying an
// envelope with an operation (get-config, edit-config, rpc, copy-config), a
// namespace URI, and an action root. Replies mirror the envelope under
// rpc-reply.data.
//
// # Components
//
// The package is layered, leaves first:
//   - Codec: Encode builds request envelopes from a CallSpec, Decode parses
//     replies and maps failures to typed errors
//   - Transport: a single HTTPS POST per call, accepting the router's
//     self-signed certificate
//   - Session: owns the login token and sysauth cookie, logs in lazily and
//     re-authenticates when the router reports an expired session
//   - Dispatcher: attaches the session, sends, decodes, classifies, retries
//     network failures with bounded backoff and serializes calls through a gate
//
// # Usage Example
//
//	transport := zapi.NewTransport("192.168.212.1")
//	session := zapi.NewSession(transport, zapi.LocalCredential{
//	    Username: "admin",
//	    Password: "secret",
//	})
//	dispatcher := zapi.NewDispatcher(transport, session, zapi.DefaultDispatcherConfig())
//	defer dispatcher.Close(context.Background())
//
//	reply, err := dispatcher.Call(ctx, zapi.GetConfig(zapi.NSNetworkDevice, "network-devices"))
//	if err != nil {
//	    log.Fatal(zapi.ShortMessage(err))
//	}
//	devices := reply.Output()
//
// # Error Taxonomy
//
// Every failure surfaced by the Dispatcher is a *Error with one of four kinds:
//   - KindNetwork: connect, TLS, or timeout failures; retried with backoff
//   - KindAuth: rejected credentials or an expired session; one re-login and
//     one retry, then surfaced
//   - KindDevice: the router rejected the operation with a structured code;
//     never retried
//   - KindProtocol: the reply did not have the expected envelope shape; never
//     retried and logged as a compatibility issue
//
// # Thread Safety
//
// Session and Dispatcher are safe for concurrent use. The Dispatcher admits at
// most Concurrency session-bound calls at once (default 1) because the router
// firmware rejects overlapping authenticated requests.
package zapi
