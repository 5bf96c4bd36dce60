package source

import (
	"fmt"
	"strings"

	"github.com/GriffinCanCode/microhost/internal/dom"
	"github.com/GriffinCanCode/microhost/internal/shared/id"
	"github.com/GriffinCanCode/microhost/internal/shared/paths"
	"golang.org/x/net/html"
)

// script types that are executed; anything else is data or a template
var scriptTypes = map[string]struct{}{
	"":                       {},
	"text/javascript":        {},
	"text/ecmascript":        {},
	"application/javascript": {},
	"application/ecmascript": {},
	"module":                 {},
	"systemjs-module":        {},
}

// ExtractScript registers a script found in an app's initial markup.
//
// External scripts are keyed by their absolute src, inline scripts by a
// generated inline key. Either way the element is replaced by a comment,
// which is returned. Scripts marked exclude are dropped; scripts marked
// ignore, with a non-JavaScript type or without content stay in place and
// nil is returned.
func ExtractScript(script *html.Node, app App) *html.Node {
	if dom.HasAttr(script, "ignore") {
		return nil
	}

	doc := app.Document()
	if dom.HasAttr(script, "exclude") {
		comment := dom.NewComment("script element with exclude attribute removed by micro-app")
		doc.Replace(comment, script)
		return comment
	}

	typ, _ := dom.Attr(script, "type")
	typ = strings.ToLower(strings.TrimSpace(typ))
	if _, ok := scriptTypes[typ]; !ok {
		return nil
	}
	module := typ == "module"

	var comment *html.Node
	if src, _ := dom.Attr(script, "src"); strings.TrimSpace(src) != "" {
		url := paths.ToAbsolute(src, app.URL())
		app.Source().Scripts.Set(url, &ScriptInfo{
			IsExternal: true,
			Async:      dom.HasAttr(script, "async"),
			Defer:      dom.HasAttr(script, "defer") || module,
			Module:     module,
			IsGlobal:   dom.HasAttr(script, GlobalAttr),
		})
		comment = dom.NewComment(fmt.Sprintf("script with src='%s' extract by micro-app", url))
	} else if code := doc.Text(script); code != "" {
		info := &ScriptInfo{Module: module}
		info.SetCode(code)
		app.Source().Scripts.Set(id.NewInlineKey(), info)
		comment = dom.NewComment("script extract by micro-app")
	} else {
		return nil
	}

	doc.Replace(comment, script)
	return comment
}

// CommitScript records a retrieved script. The descriptor receives code and,
// when the script is marked global, code is offered to the global script
// store. It reports whether the global store took it.
//
// This is the only place script text enters the global cache; the loader
// itself only reads from it.
func CommitScript(cache *GlobalCache, url string, info *ScriptInfo, code string) bool {
	info.SetCode(code)
	if !info.IsGlobal || code == "" {
		return false
	}
	return cache.Scripts.SetIfAbsent(url, code)
}
