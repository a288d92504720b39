// Package classify detects what kind of question the user is asking so the
// prompt builder can pick a matching system preamble.
package classify

import "regexp"

// Kind is the detected query category.
type Kind string

const (
	// KindError is a compiler or runtime error the user wants diagnosed.
	KindError Kind = "error"
	// KindCode is a Swift/iOS development question.
	KindCode Kind = "code"
	// KindGeneral is everything else.
	KindGeneral Kind = "general"
)

var errorPatterns = compileAll(
	`error:`,
	`warning:`,
	`cannot find`,
	`value of type .* has no member`,
	`undeclared type`,
	`unexpectedly found nil`,
	`thread \d+: .* error`,
	`fatal error`,
	`unresolved identifier`,
	`expression was too complex`,
	`failed to build`,
)

var codePatterns = compileAll(
	`swift`,
	`xcode`,
	`ios`,
	`swiftui`,
	`uikit`,
	`cocoa`,
	`appkit`,
	`foundation`,
	`core data`,
	`watchkit`,
	`app clip`,
	`@state`,
	`@binding`,
	`@published`,
	`@environment`,
	`struct.*:.*view`,
	`func.*some view`,
)

func compileAll(patterns ...string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		res[i] = regexp.MustCompile(`(?i)` + p)
	}
	return res
}

// Classify returns the query kind. Error patterns win over code patterns;
// anything matching neither is general.
func Classify(query string) Kind {
	for _, re := range errorPatterns {
		if re.MatchString(query) {
			return KindError
		}
	}
	for _, re := range codePatterns {
		if re.MatchString(query) {
			return KindCode
		}
	}
	return KindGeneral
}
