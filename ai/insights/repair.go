// Copyright 2025 Poiesic Systems
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

package insights

import "strings"

// repairKeys restores the opening quote of object keys that lost it, a
// common defect in small-model output: `{summary": "x"}` becomes
// `{"summary": "x"}`. Only keys made of letters, underscores and spaces
// directly after '{' or ',' are considered.
func repairKeys(s string) string {
	in := []rune(s)
	out := make([]rune, 0, len(in)+16)

	for i := 0; i < len(in); {
		ch := in[i]
		out = append(out, ch)
		i++
		if ch != '{' && ch != ',' {
			continue
		}

		for i < len(in) && isSpace(in[i]) {
			out = append(out, in[i])
			i++
		}
		if i >= len(in) || !isLetter(in[i]) {
			continue
		}

		start := i
		for i < len(in) && isKeyRune(in[i]) {
			i++
		}
		key := strings.TrimRight(string(in[start:i]), " ")
		if i+1 < len(in) && in[i] == '"' && in[i+1] == ':' {
			// closing quote is still in the input at in[i]
			out = append(out, '"')
			out = append(out, []rune(key)...)
			continue
		}
		out = append(out, in[start:i]...)
	}

	return string(out)
}

// balanceBraces appends a closing brace for every unmatched opening brace.
// Braces inside strings are counted too; truncated responses rarely get that
// far and the parser rejects anything this makes worse.
func balanceBraces(s string) string {
	open := strings.Count(s, "{")
	closed := strings.Count(s, "}")
	if open <= closed {
		return s
	}
	return s + strings.Repeat("}", open-closed)
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isKeyRune(r rune) bool {
	return isLetter(r) || r == '_' || r == ' '
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}
