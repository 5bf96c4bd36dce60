package scopecss

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/GriffinCanCode/microhost/internal/shared/paths"
	"github.com/GriffinCanCode/microhost/internal/source"
	"github.com/tdewolff/minify/v2"
	mincss "github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// ScopedAttr marks a style element whose rules were already rewritten
const ScopedAttr = "data-micro-app-scoped"

// html, body and :root at the start of a selector stand for the container
var rootSelector = regexp.MustCompile(`^(html[\s>~+]+body|html|body|:root)($|[\s>~+.#:\[])`)

// Options configures a Scoper
type Options struct {
	Enabled bool
	Minify  bool
	// Prefix is the container element name, "micro-app" by default
	Prefix string
	Logger *zap.Logger
}

// Scoper confines the rules of a style element to one app's container by
// prefixing every selector with micro-app[name=<app>]. Relative url()
// references are made absolute against the stylesheet's origin.
type Scoper struct {
	opts     Options
	minifier *minify.M
	logger   *zap.Logger
}

// New creates a Scoper
func New(opts Options) *Scoper {
	if opts.Prefix == "" {
		opts.Prefix = "micro-app"
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	m := minify.New()
	m.AddFunc("text/css", mincss.Minify)

	return &Scoper{
		opts:     opts,
		minifier: m,
		logger:   logger.Named("scopecss"),
	}
}

// Scope rewrites style in place. Empty styles and styles already scoped are
// returned untouched, so calling Scope twice is harmless. A stylesheet that
// fails to parse is left as it was.
func (s *Scoper) Scope(style *html.Node, app source.App) *html.Node {
	if !s.opts.Enabled {
		return style
	}

	doc := app.Document()
	if _, done := doc.Attr(style, ScopedAttr); done {
		return style
	}
	text := doc.Text(style)
	if strings.TrimSpace(text) == "" {
		return style
	}

	base := app.URL()
	if origin, ok := doc.Attr(style, source.OriginHrefAttr); ok && origin != "" {
		base = origin
	}

	out, err := s.Rewrite(text, s.SelectorPrefix(app.Name()), base)
	if err != nil {
		s.logger.Warn("failed to scope stylesheet",
			zap.String("app", app.Name()),
			zap.String("base", base),
			zap.Error(err),
		)
		return style
	}

	doc.SetText(style, out)
	doc.SetAttr(style, ScopedAttr, app.Name())
	return style
}

// SelectorPrefix returns the selector matching the container of appName
func (s *Scoper) SelectorPrefix(appName string) string {
	return fmt.Sprintf("%s[name=%s]", s.opts.Prefix, appName)
}

// Rewrite scopes every selector of cssText under prefix and resolves
// relative url() references against base.
func (s *Scoper) Rewrite(cssText, prefix, base string) (string, error) {
	p := css.NewParser(parse.NewInputString(cssText), false)

	var (
		sb strings.Builder
		// open at-rule blocks, innermost last
		atRules []string
	)

	for {
		gt, _, data := p.Next()
		switch gt {
		case css.ErrorGrammar:
			if errors.Is(p.Err(), io.EOF) {
				return s.finish(sb.String())
			}
			return "", fmt.Errorf("parse stylesheet: %w", p.Err())

		case css.QualifiedRuleGrammar, css.BeginRulesetGrammar:
			selector := strings.TrimSpace(joinTokens(p.Values(), ""))
			if !inKeyframes(atRules) {
				selector = scopeSelector(selector, prefix)
			}
			sb.WriteString(selector)
			if gt == css.QualifiedRuleGrammar {
				sb.WriteByte(',')
			} else {
				sb.WriteByte('{')
			}

		case css.DeclarationGrammar, css.CustomPropertyGrammar:
			sb.Write(data)
			sb.WriteByte(':')
			sb.WriteString(strings.TrimSpace(joinTokens(p.Values(), base)))
			sb.WriteByte(';')

		case css.BeginAtRuleGrammar:
			atRules = append(atRules, strings.ToLower(string(data)))
			writeAtRule(&sb, data, joinTokens(p.Values(), base))
			sb.WriteByte('{')

		case css.AtRuleGrammar:
			writeAtRule(&sb, data, joinTokens(p.Values(), base))
			sb.WriteByte(';')

		case css.EndAtRuleGrammar:
			if len(atRules) > 0 {
				atRules = atRules[:len(atRules)-1]
			}
			sb.WriteByte('}')

		case css.EndRulesetGrammar:
			sb.WriteByte('}')

		default:
			// comments and stray tokens
			sb.Write(data)
		}
	}
}

func (s *Scoper) finish(out string) (string, error) {
	if !s.opts.Minify {
		return out, nil
	}
	minified, err := s.minifier.String("text/css", out)
	if err != nil {
		return "", fmt.Errorf("minify stylesheet: %w", err)
	}
	return minified, nil
}

// scopeSelector prefixes one selector of a selector list
func scopeSelector(selector, prefix string) string {
	if selector == "" || strings.HasPrefix(selector, prefix) {
		return selector
	}
	if m := rootSelector.FindStringSubmatchIndex(selector); m != nil {
		return prefix + selector[m[3]:]
	}
	return prefix + " " + selector
}

// joinTokens concatenates tokens, resolving url() tokens against base when
// base is set
func joinTokens(tokens []css.Token, base string) string {
	var sb strings.Builder
	for _, t := range tokens {
		if base != "" && t.TokenType == css.URLToken {
			sb.WriteString(absoluteURLToken(string(t.Data), base))
			continue
		}
		sb.Write(t.Data)
	}
	return sb.String()
}

// absoluteURLToken rewrites url(ref) with ref made absolute
func absoluteURLToken(token, base string) string {
	open := strings.IndexByte(token, '(')
	if open < 0 || !strings.HasSuffix(token, ")") {
		return token
	}
	inner := strings.TrimSpace(token[open+1 : len(token)-1])
	quote := ""
	if len(inner) >= 2 && (inner[0] == '"' || inner[0] == '\'') && inner[len(inner)-1] == inner[0] {
		quote = inner[:1]
		inner = inner[1 : len(inner)-1]
	}
	if inner == "" || strings.HasPrefix(inner, "#") {
		return token
	}
	return "url(" + quote + paths.ToAbsolute(inner, base) + quote + ")"
}

func writeAtRule(sb *strings.Builder, name []byte, prelude string) {
	sb.Write(name)
	if prelude = strings.TrimSpace(prelude); prelude != "" {
		sb.WriteByte(' ')
		sb.WriteString(prelude)
	}
}

func inKeyframes(atRules []string) bool {
	for _, name := range atRules {
		if strings.HasSuffix(name, "keyframes") {
			return true
		}
	}
	return false
}
