// Package scopecss confines app stylesheets to their container element.
//
//	body { margin: 0 }          ->  micro-app[name=shop]{margin:0;}
//	.btn, html .nav a { ... }   ->  micro-app[name=shop] .btn,micro-app[name=shop] .nav a{...}
//
// Selectors inside keyframes are left alone. Relative url() references are
// resolved against the style's data-origin-href, or the app URL for inline
// styles. Output can optionally be minified with tdewolff/minify.
package scopecss
