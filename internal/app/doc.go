// Package app provides micro app lifecycle management.
//
// Each Instance wraps one app in a container element:
//
//	<micro-app name="shop">
//	  <micro-app-head>...</micro-app-head>
//	  <micro-app-body>...</micro-app-body>
//	</micro-app>
//
// Mounting fetches the entry document, moves its head and body into the
// container, extracts stylesheet and script references, then loads them
// through the source package.
//
// Example Usage:
//
//	manager := app.NewManager(app.Options{Retriever: client, Scoper: scoper, Cache: cache})
//	inst, err := manager.Mount(ctx, app.MountRequest{Name: "shop", URL: "https://shop.example.com/"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	html, _ := manager.Render(inst.ID().String())
package app
