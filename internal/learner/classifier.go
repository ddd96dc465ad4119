package learner

import (
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/patternbank/internal/pattern"
)

// diffRule pairs a detector with the pattern type it assigns. Rules are
// evaluated in order; the first match wins, so broader rules sit later.
type diffRule struct {
	typ   pattern.Type
	match func(before, after string) bool
}

var (
	// Stems, not whole words: "sanitiz" covers sanitize/sanitized/sanitizing.
	securityRe = regexp.MustCompile(`(?i)\b(?:sanitiz|escap|validat|parameteriz|prepared\s+statement|csrf|xss|injection|crypto|hash|bcrypt|secret|token)`)
	perfRe     = regexp.MustCompile(`(?i)\b(?:cach(?:e|ing)|memoiz|lazy|batch|debounce|throttle|pool|index|concurren|parallel|async|await)`)
	readableRe = regexp.MustCompile(`(?i)\b(?:renam|readab|clarif|document|comment|jsdoc|docstring)`)
)

// classifyDiff assigns a pattern type to a before/after code pair using
// ordered heuristic checks. Detection order matters: refactoring and
// optimization are structural judgements about the diff itself, while the
// later checks look for topic keywords introduced by the change.
func classifyDiff(before, after string) pattern.Type {
	rules := []diffRule{
		{pattern.TypeRefactoring, isRefactoring},
		{pattern.TypeOptimization, isOptimization},
		{pattern.TypeSecurity, introduces(securityRe)},
		{pattern.TypePerformance, introduces(perfRe)},
		{pattern.TypeReadability, isReadability},
	}
	for _, r := range rules {
		if r.match(before, after) {
			return r.typ
		}
	}
	return pattern.TypeGeneral
}

// isRefactoring detects structural reshaping: function boundaries moved
// while the code shrank or held steady.
func isRefactoring(before, after string) bool {
	funcsBefore := countFunctions(before)
	funcsAfter := countFunctions(after)
	if funcsAfter > funcsBefore && len(after) <= len(before)*2 {
		// Logic extracted into more, smaller functions.
		return true
	}
	// Same function count but meaningfully reorganized and smaller.
	return funcsBefore == funcsAfter && funcsBefore > 0 &&
		len(after) < len(before)*8/10
}

// isOptimization detects nested loops or repeated scans collapsing.
func isOptimization(before, after string) bool {
	return loopDepth(before) > loopDepth(after) && loopDepth(before) >= 2
}

// introduces reports whether the after side matches the regex where the
// before side did not.
func introduces(re *regexp.Regexp) func(before, after string) bool {
	return func(before, after string) bool {
		return re.MatchString(after) && !re.MatchString(before)
	}
}

// isReadability detects comment or naming improvements with little
// structural change.
func isReadability(before, after string) bool {
	if readableRe.MatchString(after) && !readableRe.MatchString(before) {
		return true
	}
	return countComments(after) > countComments(before)
}

var funcRe = regexp.MustCompile(`(?m)\b(?:func|function|def|fn)\b|=>`)

func countFunctions(code string) int {
	return len(funcRe.FindAllString(code, -1))
}

var loopRe = regexp.MustCompile(`(?m)\b(?:for|while)\b`)

// loopDepth approximates nesting by counting loop keywords; two or more
// in one snippet usually means a nested or repeated scan.
func loopDepth(code string) int {
	return len(loopRe.FindAllString(code, -1))
}

func countComments(code string) int {
	count := 0
	for _, line := range strings.Split(code, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "#") ||
			strings.HasPrefix(trimmed, "/*") || strings.HasPrefix(trimmed, "*") {
			count++
		}
	}
	return count
}

// classifyComplexity buckets how the transformation changed code size.
func classifyComplexity(before, after string) pattern.Complexity {
	lb := lineCount(before)
	la := lineCount(after)
	switch {
	case la*10 < lb*8:
		return pattern.ComplexitySimplified
	case la*10 > lb*12:
		return pattern.ComplexityExpanded
	default:
		return pattern.ComplexitySimilar
	}
}

func lineCount(code string) int {
	if code == "" {
		return 0
	}
	return strings.Count(code, "\n") + 1
}

// linesChanged approximates the diff size as the number of lines present
// on one side but not the other.
func linesChanged(before, after string) int {
	beforeLines := make(map[string]int)
	for _, l := range strings.Split(before, "\n") {
		beforeLines[strings.TrimSpace(l)]++
	}
	changed := 0
	for _, l := range strings.Split(after, "\n") {
		key := strings.TrimSpace(l)
		if beforeLines[key] > 0 {
			beforeLines[key]--
		} else {
			changed++
		}
	}
	for _, n := range beforeLines {
		changed += n
	}
	return changed
}
