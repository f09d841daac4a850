package mention

import "strings"

// Segment is a contiguous run of a markdown document classified as code
// (fenced block or inline code span) or prose.
type Segment struct {
	Text string
	Code bool
}

// fenceState tracks whether the scanner is inside a fenced code block.
type fenceState struct {
	open bool
	ch   byte
	n    int
}

// normalizeFenceLine strips leading indentation and blockquote markers so
// fences nested in quotes or lists are still recognised.
func normalizeFenceLine(line string) string {
	s := strings.TrimLeft(line, " \t")
	for strings.HasPrefix(s, ">") {
		s = strings.TrimLeft(s[1:], " \t")
	}
	return s
}

// parseFenceMarker reports whether line opens with a run of at least three
// backticks or tildes.
func parseFenceMarker(line string) (ch byte, n int, ok bool) {
	if len(line) < 3 {
		return 0, 0, false
	}
	ch = line[0]
	if ch != '`' && ch != '~' {
		return 0, 0, false
	}
	for n < len(line) && line[n] == ch {
		n++
	}
	if n < 3 {
		return 0, 0, false
	}
	return ch, n, true
}

// update advances the state for one line. It returns true when the line is
// itself an opening or closing fence.
func (fs *fenceState) update(line string) bool {
	ch, n, ok := parseFenceMarker(normalizeFenceLine(line))
	if !ok {
		return false
	}
	if !fs.open {
		fs.open, fs.ch, fs.n = true, ch, n
		return true
	}
	// A closing fence uses the same character and is at least as long.
	if ch == fs.ch && n >= fs.n {
		fs.open, fs.ch, fs.n = false, 0, 0
		return true
	}
	return false
}

// inlineCodeSpans returns the [start, end) byte ranges of inline code spans
// in a single line. A run of n backticks is closed by the next run of exactly
// n backticks; an unmatched run is ordinary text.
func inlineCodeSpans(line string) [][2]int {
	var spans [][2]int
	i := 0
	for i < len(line) {
		if line[i] != '`' {
			i++
			continue
		}
		start := i
		for i < len(line) && line[i] == '`' {
			i++
		}
		openLen := i - start

		for j := i; j < len(line); {
			if line[j] != '`' {
				j++
				continue
			}
			closeStart := j
			for j < len(line) && line[j] == '`' {
				j++
			}
			if j-closeStart == openLen {
				spans = append(spans, [2]int{start, j})
				i = j
				break
			}
		}
	}
	return spans
}

// segmenter accumulates byte ranges of the source, merging neighbours of the
// same class.
type segmenter struct {
	ranges []segRange
}

type segRange struct {
	start, end int
	code       bool
}

func (s *segmenter) emit(start, end int, code bool) {
	if start >= end {
		return
	}
	if n := len(s.ranges); n > 0 && s.ranges[n-1].code == code && s.ranges[n-1].end == start {
		s.ranges[n-1].end = end
		return
	}
	s.ranges = append(s.ranges, segRange{start: start, end: end, code: code})
}

// Segments splits markdown into alternating prose and code segments.
// Concatenating the Text of every segment reproduces the input exactly.
func Segments(markdown string) []Segment {
	s := &segmenter{}
	var fs fenceState

	offset := 0
	for offset < len(markdown) {
		lineEnd := strings.IndexByte(markdown[offset:], '\n')
		next := len(markdown)
		if lineEnd >= 0 {
			lineEnd += offset
			next = lineEnd + 1
		} else {
			lineEnd = len(markdown)
		}
		line := markdown[offset:lineEnd]

		if fs.update(line) || fs.open {
			s.emit(offset, next, true)
			offset = next
			continue
		}

		cursor := 0
		for _, span := range inlineCodeSpans(line) {
			s.emit(offset+cursor, offset+span[0], false)
			s.emit(offset+span[0], offset+span[1], true)
			cursor = span[1]
		}
		s.emit(offset+cursor, next, false)
		offset = next
	}

	out := make([]Segment, len(s.ranges))
	for i, r := range s.ranges {
		out[i] = Segment{Text: markdown[r.start:r.end], Code: r.code}
	}
	return out
}

// TransformProse applies fn to every prose segment and copies code segments
// verbatim.
func TransformProse(markdown string, fn func(string) string) string {
	var b strings.Builder
	b.Grow(len(markdown))
	for _, seg := range Segments(markdown) {
		if seg.Code {
			b.WriteString(seg.Text)
			continue
		}
		b.WriteString(fn(seg.Text))
	}
	return b.String()
}
