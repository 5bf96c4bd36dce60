// Package event emulates the load and error notifications a browser fires
// on a <link> or <script> element once its resource settles.
//
// The resource loader never lets the browser load a reference itself; it
// fetches the content and then tells whoever listens on the original node
// what happened:
//
//	events := event.NewEmulator(logger)
//	events.On(linkNode, func(ev event.Event) {
//		if ev.Type == event.Error {
//			// fall back
//		}
//	})
package event
