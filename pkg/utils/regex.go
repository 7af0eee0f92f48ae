package utils

import (
	"fmt"
	"regexp"
)

// CompileRegexPatterns compiles the configured pattern strings, skipping
// empties. A bad pattern fails the whole set with ErrConfigValidation.
func CompileRegexPatterns(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for i, pattern := range patterns {
		if pattern == "" {
			continue
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid regex pattern #%d ('%s'): %v", ErrConfigValidation, i+1, pattern, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}
