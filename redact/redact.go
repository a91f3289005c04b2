// Package redact masks secrets in text shown to users or sent to telemetry:
// diff content rendered by the CLI and error strings reported by the engine.
package redact

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/zricethezav/gitleaks/v8/detect"
)

// Placeholder replaces every detected secret.
const Placeholder = "REDACTED"

// candidatePattern matches token-like runs that may be secrets.
var candidatePattern = regexp.MustCompile(`[A-Za-z0-9/+_=-]{10,}`)

// entropyThreshold is the Shannon entropy above which a candidate is treated
// as a secret. API keys and tokens sit well above 5.0; identifiers and words
// stay below it.
const entropyThreshold = 4.5

var (
	detector     *detect.Detector
	detectorOnce sync.Once
)

func gitleaks() *detect.Detector {
	detectorOnce.Do(func() {
		d, err := detect.NewDetectorDefaultConfig()
		if err != nil {
			return
		}
		detector = d
	})
	return detector
}

type span struct{ start, end int }

// findSpans returns the merged, sorted byte ranges of s that hold secrets.
// A range is flagged by high entropy or by any gitleaks rule.
func findSpans(s string) []span {
	var spans []span

	for _, loc := range candidatePattern.FindAllStringIndex(s, -1) {
		if shannonEntropy(s[loc[0]:loc[1]]) > entropyThreshold {
			spans = append(spans, span{loc[0], loc[1]})
		}
	}

	if d := gitleaks(); d != nil {
		for _, finding := range d.DetectString(s) {
			if finding.Secret == "" {
				continue
			}
			for from := 0; ; {
				idx := strings.Index(s[from:], finding.Secret)
				if idx < 0 {
					break
				}
				start := from + idx
				spans = append(spans, span{start, start + len(finding.Secret)})
				from = start + len(finding.Secret)
			}
		}
	}

	if len(spans) < 2 {
		return spans
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	merged := spans[:1]
	for _, sp := range spans[1:] {
		last := &merged[len(merged)-1]
		switch {
		case sp.start > last.end:
			merged = append(merged, sp)
		case sp.end > last.end:
			last.end = sp.end
		}
	}
	return merged
}

// String replaces secrets in s with Placeholder. Adjacent or overlapping
// secrets collapse into one placeholder.
func String(s string) string {
	spans := findSpans(s)
	if len(spans) == 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	prev := 0
	for _, sp := range spans {
		b.WriteString(s[prev:sp.start])
		b.WriteString(Placeholder)
		prev = sp.end
	}
	b.WriteString(s[prev:])
	return b.String()
}

// Bytes is String for []byte content. The input slice is returned unchanged
// when nothing was redacted.
func Bytes(b []byte) []byte {
	s := string(b)
	out := String(s)
	if out == s {
		return b
	}
	return []byte(out)
}

// Count reports how many secrets String would replace in s.
func Count(s string) int {
	return len(findSpans(s))
}

// Error returns err's message with secrets removed, or "" for a nil error.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}

func shannonEntropy(s string) float64 {
	if len(s) == 0 {
		return 0
	}
	var freq [256]int
	for i := range len(s) {
		freq[s[i]]++
	}
	length := float64(len(s))
	var entropy float64
	for _, count := range freq {
		if count == 0 {
			continue
		}
		p := float64(count) / length
		entropy -= p * math.Log2(p)
	}
	return entropy
}
