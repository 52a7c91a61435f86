package tools

import (
	"context"
	"fmt"
	"strings"
)

type contextKeyMinimums struct{}

// WithMinimums annotates the context with configured minimum version
// overrides keyed by tool id.
func WithMinimums(ctx context.Context, minimums map[string]string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(minimums) == 0 {
		return ctx
	}
	cleaned := make(map[string]string, len(minimums))
	for name, value := range minimums {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		cleaned[strings.ToLower(name)] = trimmed
	}
	if len(cleaned) == 0 {
		return ctx
	}
	return context.WithValue(ctx, contextKeyMinimums{}, cleaned)
}

func minimumOverride(ctx context.Context, tool string) string {
	if ctx == nil {
		return ""
	}
	overrides, ok := ctx.Value(contextKeyMinimums{}).(map[string]string)
	if !ok {
		return ""
	}
	return overrides[strings.ToLower(tool)]
}

// resolveMinimum applies a configured override. An override may raise the
// built-in minimum but never lower it.
func resolveMinimum(ctx context.Context, spec ToolSpec) (string, []string) {
	minimum := strings.TrimSpace(spec.Minimum)
	override := minimumOverride(ctx, spec.ID)
	if override == "" {
		return minimum, nil
	}
	if meetsMinimum(override, minimum) {
		if override != minimum {
			return override, []string{fmt.Sprintf("minimum overridden by config (%s)", override)}
		}
		return minimum, nil
	}
	return minimum, []string{fmt.Sprintf("config minimum %s ignored; default minimum %s is higher", override, minimum)}
}
