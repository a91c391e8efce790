// Package dataapi is the application-facing entry point for repository
// access.
//
// Every call builds a message.Request, hands it to a dispatcher.Transport
// and returns. The reply arrives later as exactly one publication on the
// bus, under the event name the caller chose:
//
//	b.Subscribe("sections", func(_ string, payload any) {
//		reply := payload.(message.Reply)
//		...
//	})
//	err := api.Get(ctx, "sections", network.Specifier{"type": "section"}, nil)
//
// Mistakes the caller can fix (a specifier without a type, an object that
// cannot be addressed) are returned synchronously as invalid errors and
// nothing is sent. Replies on the debug event are logged, not published.
package dataapi
