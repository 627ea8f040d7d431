// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package phonetic

import "strings"

// soundex is a simplified American Soundex: a letter followed by three
// digits from the {bfpv=1, cgjkqsxz=2, dt=3, l=4, mn=5, r=6} coding.
// Every uncoded letter, H and W included, separates repeated codes, so
// "Ashcraft" codes as A226 rather than the archival A261.
func soundex(letters string) string {
	if letters == "" {
		return ""
	}
	code := soundexCode(rune(letters[0]))
	out := []byte{letters[0]}
	last := code

	for i := 1; i < len(letters) && len(out) < 4; i++ {
		c := soundexCode(rune(letters[i]))
		if c == 0 {
			last = 0
			continue
		}
		if c != last {
			out = append(out, c)
		}
		last = c
	}
	for len(out) < 4 {
		out = append(out, '0')
	}
	return string(out)
}

func soundexCode(r rune) byte {
	switch r {
	case 'B', 'F', 'P', 'V':
		return '1'
	case 'C', 'G', 'J', 'K', 'Q', 'S', 'X', 'Z':
		return '2'
	case 'D', 'T':
		return '3'
	case 'L':
		return '4'
	case 'M', 'N':
		return '5'
	case 'R':
		return '6'
	default:
		return 0
	}
}

// metaphone is a simplified single-code Metaphone: it drops silent
// letters, collapses digraphs to their dominant sound, and otherwise
// maps each consonant to a coarse phonetic class. It favors recall over
// exact fidelity to the reference algorithm, which is acceptable here
// since it is only ever used as one vote among five in the consensus
// rule, never alone.
func metaphone(letters string) string {
	if letters == "" {
		return ""
	}
	s := letters
	var b strings.Builder

	i := 0
	n := len(s)
	isVowel := func(c byte) bool {
		return c == 'A' || c == 'E' || c == 'I' || c == 'O' || c == 'U'
	}

	// Keep an initial vowel; drop leading silent letter pairs.
	switch {
	case strings.HasPrefix(s, "KN"), strings.HasPrefix(s, "GN"), strings.HasPrefix(s, "PN"), strings.HasPrefix(s, "WR"), strings.HasPrefix(s, "AE"):
		i = 1
	case strings.HasPrefix(s, "X"):
		b.WriteByte('S')
		i = 1
	case strings.HasPrefix(s, "WH"):
		b.WriteByte('W')
		i = 2
	}

	for ; i < n && b.Len() < 6; i++ {
		c := s[i]
		if i > 0 && c == s[i-1] && c != 'C' {
			continue // skip doubled letters
		}
		switch c {
		case 'A', 'E', 'I', 'O', 'U':
			if i == 0 {
				b.WriteByte(c)
			}
		case 'B':
			if !(i == n-1 && i > 0 && s[i-1] == 'M') {
				b.WriteByte('B')
			}
		case 'C':
			switch {
			case i+2 < n && s[i+1] == 'I' && s[i+2] == 'A':
				b.WriteByte('X')
			case i+1 < n && s[i+1] == 'H':
				b.WriteByte('X')
				i++
			case i+1 < n && (s[i+1] == 'I' || s[i+1] == 'E' || s[i+1] == 'Y'):
				b.WriteByte('S')
			default:
				b.WriteByte('K')
			}
		case 'D':
			if i+2 < n && s[i+1] == 'G' && (s[i+2] == 'E' || s[i+2] == 'Y' || s[i+2] == 'I') {
				b.WriteByte('J')
				i += 2
			} else {
				b.WriteByte('T')
			}
		case 'G':
			switch {
			case i+1 < n && s[i+1] == 'H':
				i++
				fallthrough
			case i+1 < n && (s[i+1] == 'I' || s[i+1] == 'E' || s[i+1] == 'Y'):
				b.WriteByte('J')
			default:
				b.WriteByte('K')
			}
		case 'H':
			if i > 0 && isVowel(s[i-1]) && (i+1 >= n || !isVowel(s[i+1])) {
				continue
			}
			b.WriteByte('H')
		case 'J':
			b.WriteByte('J')
		case 'K':
			if !(i > 0 && s[i-1] == 'C') {
				b.WriteByte('K')
			}
		case 'P':
			if i+1 < n && s[i+1] == 'H' {
				b.WriteByte('F')
				i++
			} else {
				b.WriteByte('P')
			}
		case 'Q':
			b.WriteByte('K')
		case 'S':
			switch {
			case i+1 < n && s[i+1] == 'H':
				b.WriteByte('X')
				i++
			case i+2 < n && s[i+1] == 'I' && (s[i+2] == 'O' || s[i+2] == 'A'):
				b.WriteByte('X')
			default:
				b.WriteByte('S')
			}
		case 'T':
			switch {
			case i+1 < n && s[i+1] == 'H':
				b.WriteByte('0')
				i++
			case i+2 < n && s[i+1] == 'I' && (s[i+2] == 'O' || s[i+2] == 'A'):
				b.WriteByte('X')
			default:
				b.WriteByte('T')
			}
		case 'V':
			b.WriteByte('F')
		case 'W', 'Y':
			if i+1 < n && isVowel(s[i+1]) {
				b.WriteByte(c)
			}
		case 'X':
			b.WriteString("KS")
		case 'Z':
			b.WriteByte('S')
		case 'F', 'L', 'M', 'N', 'R':
			b.WriteByte(c)
		}
	}
	return b.String()
}

// doubleMetaphone returns a primary and, when the name admits an
// alternate pronunciation (leading consonant-cluster ambiguity, or a
// 'C'/'G' soft/hard split), a secondary metaphone-family code. This is
// a reduced implementation covering the ambiguities most relevant to
// the names this system classifies, not the full reference algorithm.
func doubleMetaphone(letters string) (primary, secondary string) {
	primary = metaphone(letters)
	if letters == "" {
		return "", ""
	}

	alt := letters
	switch {
	case strings.HasPrefix(letters, "C"):
		alt = "S" + letters[1:]
	case strings.HasPrefix(letters, "G"):
		alt = "J" + letters[1:]
	case strings.HasPrefix(letters, "CH"):
		alt = "K" + letters[2:]
	default:
		return primary, ""
	}

	secondaryCode := metaphone(alt)
	if secondaryCode == primary {
		return primary, ""
	}
	return primary, secondaryCode
}

// nysiis implements the New York State Identification and Intelligence
// System phonetic code: transliterate characteristic prefixes and
// digraphs, translate the remaining letters with NYSIIS's substitution
// table, then collapse runs of identical letters.
func nysiis(letters string) string {
	if letters == "" {
		return ""
	}
	s := letters

	switch {
	case strings.HasPrefix(s, "MAC"):
		s = "MCC" + s[3:]
	case strings.HasPrefix(s, "KN"):
		s = "NN" + s[2:]
	case strings.HasPrefix(s, "K"):
		s = "C" + s[1:]
	case strings.HasPrefix(s, "PH"), strings.HasPrefix(s, "PF"):
		s = "FF" + s[2:]
	case strings.HasPrefix(s, "SCH"):
		s = "SSS" + s[3:]
	}

	switch {
	case strings.HasSuffix(s, "EE"), strings.HasSuffix(s, "IE"):
		s = s[:len(s)-2] + "Y"
	case strings.HasSuffix(s, "DT"), strings.HasSuffix(s, "RT"), strings.HasSuffix(s, "RD"),
		strings.HasSuffix(s, "NT"), strings.HasSuffix(s, "ND"):
		s = s[:len(s)-2] + "D"
	}

	first := s[0]
	var b strings.Builder
	b.WriteByte(first)

	prev := first
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch c {
		case 'E', 'I', 'O', 'U':
			c = 'A'
		case 'Q':
			c = 'G'
		case 'Z':
			c = 'S'
		case 'M':
			c = 'N'
		case 'K':
			c = 'C'
		case 'V':
			c = 'F'
		}
		if i+1 < len(s) && c == 'S' && s[i+1] == 'H' {
			c = 'S'
			i++
		}
		if i+1 < len(s) && c == 'S' && s[i+1] == 'C' && i+2 < len(s) && s[i+2] == 'H' {
			c = 'S'
			i += 2
		}
		if c == prev {
			continue
		}
		b.WriteByte(c)
		prev = c
	}

	out := b.String()
	if len(out) > 1 {
		switch out[len(out)-1] {
		case 'S':
			out = out[:len(out)-1]
		}
	}
	if strings.HasSuffix(out, "AY") {
		out = out[:len(out)-2] + "Y"
	}
	if len(out) > 1 && out[len(out)-1] == 'A' {
		out = out[:len(out)-1]
	}
	if len(out) > 6 {
		out = out[:6]
	}
	return out
}

// jaroWinkler computes the Jaro-Winkler similarity of two strings,
// boosting the Jaro score for strings that share a common prefix.
func jaroWinkler(a, b string) float64 {
	if a == b {
		return 1
	}
	al, bl := len(a), len(b)
	if al == 0 || bl == 0 {
		return 0
	}

	matchDistance := max(al, bl)/2 - 1
	if matchDistance < 0 {
		matchDistance = 0
	}

	aMatches := make([]bool, al)
	bMatches := make([]bool, bl)

	matches := 0
	for i := 0; i < al; i++ {
		start := max(0, i-matchDistance)
		end := min(i+matchDistance+1, bl)
		for j := start; j < end; j++ {
			if bMatches[j] || a[i] != b[j] {
				continue
			}
			aMatches[i] = true
			bMatches[j] = true
			matches++
			break
		}
	}
	if matches == 0 {
		return 0
	}

	transpositions := 0
	k := 0
	for i := 0; i < al; i++ {
		if !aMatches[i] {
			continue
		}
		for !bMatches[k] {
			k++
		}
		if a[i] != b[k] {
			transpositions++
		}
		k++
	}
	transpositions /= 2

	m := float64(matches)
	jaro := (m/float64(al) + m/float64(bl) + (m-float64(transpositions))/m) / 3.0

	prefixLen := 0
	for i := 0; i < min(4, min(al, bl)); i++ {
		if a[i] != b[i] {
			break
		}
		prefixLen++
	}

	const scalingFactor = 0.1
	return jaro + float64(prefixLen)*scalingFactor*(1-jaro)
}
