// =============================================================================
// translate.go - Command Mode Verb Translation
// =============================================================================
//
// In command mode the user types short verbs ("cal 9", "accept", "stream
// 60"). translateCommand rewrites them into wire lines ("ET_CAL 9") that the
// protocol parser then validates exactly as it validates raw input, so both
// modes share one set of argument rules.
//
// Verb table:
//
//	cal <points> [eye]   -> ET_CAL          drift            -> ET_RCL
//	accept               -> ET_ACC          validate         -> ET_VLS
//	abort                -> ET_BRK          validate <x> <y> -> ET_VLX
//	param <p> [value]    -> ET_CPA          results          -> ET_RES
//	area <w> <h>         -> ET_CSZ          format <fmt...>  -> ET_FRM "<fmt>"
//	defaults             -> ET_DEF          stream [rate]    -> ET_STR
//	level <n>            -> ET_LEV          stop             -> ET_EST
//	point <n> <x> <y>    -> ET_PNT          rate             -> ET_SRT
//
// =============================================================================

package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/pyviewx/viewx/viewxprotocol"
)

// verbKeywords maps command mode verbs to protocol keywords.
//
// GO CONCEPT: Map Literals for Lookup Tables
// ------------------------------------------
// A map literal builds the whole table at package initialisation, so no
// init() function is needed. Aliases ("cal" and "calibrate") are simply two
// keys with the same value. Lookups use the comma-ok form:
//
//	keyword, ok := verbKeywords[verb]
//
// ok is false for a missing key, while keyword holds the zero value "".
var verbKeywords = map[string]string{
	"cal":       viewxprotocol.KeywordCalibrate,
	"calibrate": viewxprotocol.KeywordCalibrate,
	"accept":    viewxprotocol.KeywordAcceptPoint,
	"abort":     viewxprotocol.KeywordCancelCalibration,
	"param":     viewxprotocol.KeywordCalibrationParam,
	"area":      viewxprotocol.KeywordCalibrationArea,
	"defaults":  viewxprotocol.KeywordDefaultPoints,
	"level":     viewxprotocol.KeywordCheckLevel,
	"point":     viewxprotocol.KeywordCalibrationPoint,
	"drift":     viewxprotocol.KeywordDriftCorrection,
	"validate":  viewxprotocol.KeywordValidate,
	"results":   viewxprotocol.KeywordCalibrationResults,
	"format":    viewxprotocol.KeywordDataFormat,
	"stream":    viewxprotocol.KeywordStartStreaming,
	"stop":      viewxprotocol.KeywordStopStreaming,
	"rate":      viewxprotocol.KeywordSampleRate,
}

// maxSuggestionDistance is the largest edit distance offered as a suggestion.
const maxSuggestionDistance = 2

// isWireLine reports whether line already starts with a protocol keyword,
// letting command mode accept raw lines too.
func isWireLine(line string) bool {
	return len(line) >= 3 && strings.EqualFold(line[:3], "ET_")
}

// translateCommand turns a command mode line into a wire line.
//
// GO CONCEPT: Fields vs Slicing the Original String
// -------------------------------------------------
// strings.Fields splits on any run of whitespace, which suits numeric
// arguments. The format verb needs the user's exact spacing instead, so it
// slices the trimmed line past the verb:
//
//	rest := strings.TrimSpace(trimmed[len(fields[0]):])
//
// Slicing a string shares the underlying bytes; no copy is made.
func translateCommand(line string) (string, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return "", fmt.Errorf("empty command")
	}
	if isWireLine(trimmed) {
		return trimmed, nil
	}

	fields := strings.Fields(trimmed)
	verb := strings.ToLower(fields[0])
	args := fields[1:]

	keyword, ok := verbKeywords[verb]
	if !ok {
		return "", unknownVerbError(fields[0])
	}

	switch keyword {
	case viewxprotocol.KeywordValidate:
		if len(args) > 0 {
			keyword = viewxprotocol.KeywordValidatePoint
		}

	case viewxprotocol.KeywordDataFormat:
		// Keep the user's spacing inside the format string.
		rest := strings.TrimSpace(trimmed[len(fields[0]):])
		if rest == "" {
			return "", fmt.Errorf("format requires a format string, e.g. format %%TS %%SX %%SY")
		}
		if !strings.HasPrefix(rest, `"`) {
			rest = `"` + rest + `"`
		}
		return keyword + " " + rest, nil
	}

	return strings.Join(append([]string{keyword}, args...), " "), nil
}

func unknownVerbError(verb string) error {
	if s := suggestVerb(verb); s != "" {
		return fmt.Errorf("unknown command '%s' (did you mean '%s'?)", verb, s)
	}
	return fmt.Errorf("unknown command '%s'. Type .help for available commands", verb)
}

// suggestVerb returns the closest known verb, or "" if none is close enough.
//
// GO CONCEPT: Deterministic Iteration Over Maps
// ---------------------------------------------
// Ranging over a map visits keys in a different order on every run. The
// verbs are copied into a slice and sorted first, so when two verbs are
// equally close the alphabetically first one always wins and the
// suggestion does not change between runs.
//
// levenshtein.ComputeDistance counts the single-character insertions,
// deletions and substitutions between two strings ("acept" -> "accept" is
// 1). A suggestion must be within maxSuggestionDistance and closer than
// the word's own length, otherwise any short word would match something.
func suggestVerb(word string) string {
	word = strings.ToLower(word)

	verbs := make([]string, 0, len(verbKeywords))
	for v := range verbKeywords {
		verbs = append(verbs, v)
	}
	sort.Strings(verbs)

	best, bestDist := "", maxSuggestionDistance+1
	for _, v := range verbs {
		if d := levenshtein.ComputeDistance(word, v); d < bestDist {
			best, bestDist = v, d
		}
	}
	if bestDist >= len(word) {
		return ""
	}
	return best
}
