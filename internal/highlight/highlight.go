package highlight

import (
	"log/slog"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/asheshgoplani/sessionseek/internal/logging"
)

var hlLog = logging.ForComponent(logging.CompHighlight)

// ContextType says where the highlighted text is displayed.
type ContextType string

const (
	ContextTitle   ContextType = "title"
	ContextMessage ContextType = "message"
	ContextSystem  ContextType = "system"
)

// HighlightType classifies a highlighted segment.
type HighlightType string

const (
	TypeExact   HighlightType = "exact"
	TypeWord    HighlightType = "word"
	TypeTitle   HighlightType = "title"
	TypePartial HighlightType = "partial"
)

func (t HighlightType) priority() int {
	switch t {
	case TypeExact:
		return 3
	case TypeWord:
		return 2
	case TypePartial:
		return 1
	default:
		return 0
	}
}

// Ellipsis marks text cut off by truncation.
const Ellipsis = "..."

// Segment is one piece of displayed text. Concatenating Text over all segments
// gives the displayed string.
type Segment struct {
	Text         string        `json:"text"`
	Highlighted  bool          `json:"highlighted"`
	Type         HighlightType `json:"type,omitempty"`
	OriginalTerm string        `json:"original_term,omitempty"`
}

// Options are the highlighter tunables. Widths are display-width units, see
// DisplayWidth.
type Options struct {
	CaseSensitive bool
	LeftContext   float64
	RightContext  float64
	MaxLength     float64
}

// DefaultOptions returns the default tunables.
func DefaultOptions() Options {
	return Options{
		LeftContext:  16,
		RightContext: 40,
		MaxLength:    56,
	}
}

// Highlighter splits text into segments around term occurrences.
type Highlighter struct {
	opts Options
}

// New creates a highlighter. Negative widths are treated as zero and a
// non-positive MaxLength falls back to the default.
func New(opts Options) *Highlighter {
	if opts.LeftContext < 0 {
		opts.LeftContext = 0
	}
	if opts.RightContext < 0 {
		opts.RightContext = 0
	}
	if opts.MaxLength <= 0 {
		opts.MaxLength = DefaultOptions().MaxLength
	}
	return &Highlighter{opts: opts}
}

// Options returns the effective tunables.
func (h *Highlighter) Options() Options {
	return h.opts
}

var defaultHighlighter = New(DefaultOptions())

// Highlight uses the default tunables.
func Highlight(text string, terms []string, ctxType ContextType) []Segment {
	return defaultHighlighter.Highlight(text, terms, ctxType)
}

// DisplayWidth is the weight of one character when sizing context windows:
// ideographs (Han, kana, Hangul) count 1, other letters and digits count 0.5
// and everything else (spaces, punctuation, symbols, emoji) counts 0.
func DisplayWidth(r rune) float64 {
	if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul) {
		return 1
	}
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return 0.5
	}
	return 0
}

// StringWidth sums DisplayWidth over s.
func StringWidth(s string) float64 {
	var w float64
	for _, r := range s {
		w += DisplayWidth(r)
	}
	return w
}

// Join concatenates segment texts.
func Join(segments []Segment) string {
	var b strings.Builder
	for _, s := range segments {
		b.WriteString(s.Text)
	}
	return b.String()
}

// span is a match range in rune offsets, end exclusive.
type span struct {
	start, end int
	typ        HighlightType
	terms      []int
}

// Highlight splits text into plain and highlighted segments. In title context
// the whole text is kept; otherwise it is cut to a window around the first
// match.
func (h *Highlighter) Highlight(text string, terms []string, ctxType ContextType) []Segment {
	if text == "" || len(terms) == 0 {
		return []Segment{{Text: text}}
	}

	runes := []rune(text)
	spans := merge(h.collect(text, terms))
	if len(spans) == 0 {
		logging.Aggregate(logging.CompHighlight, "no_occurrence_fallback",
			slog.String("context", string(ctxType)))
		if ctxType == ContextTitle {
			return []Segment{{Text: text}}
		}
		return []Segment{{Text: h.headTruncate(runes)}}
	}

	if ctxType == ContextTitle {
		return build(runes, spans, terms, "", "", TypeTitle)
	}

	start, end := h.window(runes, spans[0])
	var prefix, suffix string
	if start > 0 {
		prefix = Ellipsis
	}
	if end < len(runes) {
		suffix = Ellipsis
	}

	var kept []span
	for _, sp := range spans {
		if sp.end <= start || sp.start >= end {
			continue
		}
		if sp.start < start {
			sp.start = start
		}
		if sp.end > end {
			sp.end = end
		}
		sp.start -= start
		sp.end -= start
		kept = append(kept, sp)
	}
	hlLog.Debug("window",
		slog.Int("start", start),
		slog.Int("end", end),
		slog.Int("matches", len(kept)))
	return build(runes[start:end], kept, terms, prefix, suffix, "")
}

// Fold maps s to the form used for case-insensitive matching. It folds rune
// by rune, so the result has the same number of runes as s.
func Fold(s string) string {
	return strings.ToLower(s)
}

// collect finds every occurrence of every term, in rune offsets.
func (h *Highlighter) collect(text string, terms []string) []span {
	haystack := text
	if !h.opts.CaseSensitive {
		haystack = Fold(text)
	}
	offsets := runeOffsets(haystack)

	var spans []span
	for i, term := range terms {
		if strings.TrimSpace(term) == "" {
			continue
		}
		needle := term
		if !h.opts.CaseSensitive {
			needle = Fold(term)
		}
		typ := TypeWord
		if strings.ContainsFunc(term, unicode.IsSpace) {
			typ = TypeExact
		}
		for from := 0; from < len(haystack); {
			idx := strings.Index(haystack[from:], needle)
			if idx < 0 {
				break
			}
			start := from + idx
			end := start + len(needle)
			spans = append(spans, span{
				start: offsets[start],
				end:   offsets[end],
				typ:   typ,
				terms: []int{i},
			})
			from = end
		}
	}
	return spans
}

// merge sorts spans and folds overlapping or touching ones together. The
// merged type is the highest priority one; on equal priority the earlier
// registered term keeps its type.
func merge(spans []span) []span {
	if len(spans) == 0 {
		return nil
	}
	sort.SliceStable(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].terms[0] < spans[j].terms[0]
	})

	out := []span{spans[0]}
	for _, sp := range spans[1:] {
		cur := &out[len(out)-1]
		if sp.start > cur.end {
			out = append(out, sp)
			continue
		}
		if sp.end > cur.end {
			cur.end = sp.end
		}
		if sp.typ.priority() > cur.typ.priority() {
			cur.typ = sp.typ
		}
		cur.terms = addTerm(cur.terms, sp.terms[0])
	}
	return out
}

func addTerm(ids []int, id int) []int {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	ids = append(ids, id)
	sort.Ints(ids)
	return ids
}

// window expands around the first match until the context budgets run out.
func (h *Highlighter) window(runes []rune, first span) (int, int) {
	start, width := first.start, 0.0
	for start > 0 {
		w := DisplayWidth(runes[start-1])
		if width+w > h.opts.LeftContext {
			break
		}
		width += w
		start--
	}

	end, width := first.end, 0.0
	for end < len(runes) {
		w := DisplayWidth(runes[end])
		if width+w > h.opts.RightContext {
			break
		}
		width += w
		end++
	}
	return start, end
}

func (h *Highlighter) headTruncate(runes []rune) string {
	end, width := 0, 0.0
	for end < len(runes) {
		w := DisplayWidth(runes[end])
		if width+w > h.opts.MaxLength {
			break
		}
		width += w
		end++
	}
	if end == len(runes) {
		return string(runes)
	}
	return string(runes[:end]) + Ellipsis
}

// build emits segments over runes. A non-empty override replaces the type of
// every highlighted segment.
func build(runes []rune, spans []span, terms []string, prefix, suffix string, override HighlightType) []Segment {
	var segs []Segment
	pos := 0
	pending := prefix
	for _, sp := range spans {
		if sp.start > pos || pending != "" {
			segs = append(segs, Segment{Text: pending + string(runes[pos:sp.start])})
			pending = ""
		}
		typ := sp.typ
		if override != "" {
			typ = override
		}
		names := make([]string, len(sp.terms))
		for i, id := range sp.terms {
			names[i] = terms[id]
		}
		segs = append(segs, Segment{
			Text:         string(runes[sp.start:sp.end]),
			Highlighted:  true,
			Type:         typ,
			OriginalTerm: strings.Join(names, ", "),
		})
		pos = sp.end
	}
	if tail := string(runes[pos:]) + suffix; tail != "" {
		segs = append(segs, Segment{Text: tail})
	}
	return segs
}

// runeOffsets maps every byte offset of s (and len(s)) to the index of the
// rune containing it.
func runeOffsets(s string) []int {
	offsets := make([]int, len(s)+1)
	n := 0
	for i := 0; i < len(s); {
		_, w := utf8.DecodeRuneInString(s[i:])
		for j := i; j < i+w; j++ {
			offsets[j] = n
		}
		i += w
		n++
	}
	offsets[len(s)] = n
	return offsets
}
