package render

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pcileech-tools/donorgen/internal/errs"
)

// Eval renders tmpl against ctx using the bounded substitution language:
// variable expansion with an optional format spec (`key|hex:4`, `key|dec`,
// `key|lower`, `key|upper`), `{{#if key}}...{{#else}}...{{/if}}` blocks keyed
// on a boolean or key-presence test, and `{{#range bars 0 5 as i}}...{{/range}}`
// fixed-length iteration where occurrences of the literal substring "[i]"
// inside the loop body are substituted with the current index before key
// lookup.
func Eval(tmpl string, ctx *Context) (string, error) {
	return evalBlock(tmpl, ctx)
}

func evalBlock(tmpl string, ctx *Context) (string, error) {
	tmpl, err := expandRanges(tmpl, ctx)
	if err != nil {
		return "", err
	}
	tmpl, err = expandConditionals(tmpl, ctx)
	if err != nil {
		return "", err
	}
	return expandVariables(tmpl, ctx)
}

var rangeOpen = regexp.MustCompile(`\{\{#range\s+(\w+)\s+(\d+)\s+(\d+)\s+as\s+(\w+)\}\}`)

func expandRanges(tmpl string, ctx *Context) (string, error) {
	for {
		m := rangeOpen.FindStringSubmatchIndex(tmpl)
		if m == nil {
			return tmpl, nil
		}
		varName := tmpl[m[2*1]:m[2*1+1]]
		loLit := tmpl[m[2*2]:m[2*2+1]]
		hiLit := tmpl[m[2*3]:m[2*3+1]]
		loopVar := tmpl[m[2*4]:m[2*4+1]]
		_ = varName

		lo, _ := strconv.Atoi(loLit)
		hi, _ := strconv.Atoi(hiLit)

		closeTag := "{{/range}}"
		closeIdx := strings.Index(tmpl[m[1]:], closeTag)
		if closeIdx < 0 {
			return "", errs.New(errs.TemplateRenderError, "unterminated #range block")
		}
		body := tmpl[m[1] : m[1]+closeIdx]

		var sb strings.Builder
		for i := lo; i <= hi; i++ {
			iterBody := strings.ReplaceAll(body, "["+loopVar+"]", fmt.Sprintf("[%d]", i))
			iterBody = strings.ReplaceAll(iterBody, "{{"+loopVar+"}}", strconv.Itoa(i))
			sb.WriteString(iterBody)
		}

		tmpl = tmpl[:m[0]] + sb.String() + tmpl[m[1]+closeIdx+len(closeTag):]
	}
}

var ifOpen = regexp.MustCompile(`\{\{#if\s+([^\s}]+)\}\}`)

func expandConditionals(tmpl string, ctx *Context) (string, error) {
	for {
		m := ifOpen.FindStringSubmatchIndex(tmpl)
		if m == nil {
			return tmpl, nil
		}
		key := tmpl[m[2]:m[3]]

		closeTag := "{{/if}}"
		closeIdx := strings.Index(tmpl[m[1]:], closeTag)
		if closeIdx < 0 {
			return "", errs.New(errs.TemplateRenderError, "unterminated #if block")
		}
		body := tmpl[m[1] : m[1]+closeIdx]

		thenPart, elsePart := body, ""
		if elseIdx := strings.Index(body, "{{#else}}"); elseIdx >= 0 {
			thenPart = body[:elseIdx]
			elsePart = body[elseIdx+len("{{#else}}"):]
		}

		truthy, err := evalCondition(key, ctx)
		if err != nil {
			return "", err
		}

		chosen := elsePart
		if truthy {
			chosen = thenPart
		}

		tmpl = tmpl[:m[0]] + chosen + tmpl[m[1]+closeIdx+len(closeTag):]
	}
}

func evalCondition(key string, ctx *Context) (bool, error) {
	negate := strings.HasPrefix(key, "!")
	if negate {
		key = key[1:]
	}
	v, ok := ctx.Get(key)
	result := ok
	if ok {
		if b, isBool := v.(bool); isBool {
			result = b
		}
	}
	if negate {
		result = !result
	}
	return result, nil
}

var varTag = regexp.MustCompile(`\{\{([\w.\[\]]+)(\|[^}]+)?\}\}`)

func expandVariables(tmpl string, ctx *Context) (string, error) {
	var firstErr error
	out := varTag.ReplaceAllStringFunc(tmpl, func(match string) string {
		sub := varTag.FindStringSubmatch(match)
		key := sub[1]
		spec := strings.TrimPrefix(sub[2], "|")

		v, ok := ctx.Get(key)
		if !ok {
			if firstErr == nil {
				firstErr = errs.WithKey(errs.TemplateRenderError, "reference to undeclared render-context key", key)
			}
			return match
		}
		formatted, err := applyFormat(v, spec)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return formatted
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

func applyFormat(v any, spec string) (string, error) {
	if spec == "" {
		return fmt.Sprint(v), nil
	}

	switch {
	case strings.HasPrefix(spec, "hex:"):
		width, err := strconv.Atoi(strings.TrimPrefix(spec, "hex:"))
		if err != nil {
			return "", errs.Wrap(errs.TemplateRenderError, "invalid hex format spec", err)
		}
		n, err := toUint64(v)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%0*x", width, n), nil
	case spec == "dec":
		n, err := toUint64(v)
		if err != nil {
			return "", err
		}
		return strconv.FormatUint(n, 10), nil
	case spec == "lower":
		return strings.ToLower(fmt.Sprint(v)), nil
	case spec == "upper":
		return strings.ToUpper(fmt.Sprint(v)), nil
	default:
		return "", errs.Newf(errs.TemplateRenderError, "unknown format spec %q", spec)
	}
}

func toUint64(v any) (uint64, error) {
	switch n := v.(type) {
	case uint64:
		return n, nil
	case uint32:
		return uint64(n), nil
	case int:
		return uint64(n), nil
	case string:
		parsed, err := strconv.ParseUint(n, 0, 64)
		if err != nil {
			return 0, errs.Wrap(errs.TemplateRenderError, "value is not numeric", err)
		}
		return parsed, nil
	default:
		return 0, errs.Newf(errs.TemplateRenderError, "value %v is not numeric", v)
	}
}
