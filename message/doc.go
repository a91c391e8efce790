// Package message defines the request and reply envelopes exchanged between
// the DataAPI and the dispatcher.
//
// Both sides may live in different goroutines or processes, so every
// message is plain JSON: Encode and the Decode functions are the only way
// across a transport, and Clone gives the same copy semantics to the
// in-process worker. A request's Info is kept as raw JSON so it returns to
// the caller byte for byte.
//
//	req, _ := message.NewRequest("sections1", message.ActionGetByURL,
//	    []string{"/metadata/section/12"}, "tree-view")
//	reply := message.ReplyTo(req) // same id, event, action and info
//
// Reply implements HasError so the event bus can apply its error hook.
package message
