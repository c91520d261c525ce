// Copyright Consensys Software Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0
package lex

// NoMatch signals that a scanner did not accept any prefix of the input.
// Observe this is distinct from a zero-length match, which only the Eof
// scanner produces.
const NoMatch = -1

// Scanner accepts (or rejects) some prefix of the given input, returning the
// number of characters matched (or NoMatch).
type Scanner func(input []rune) int

// Char accepts exactly the given character.
func Char(c rune) Scanner {
	return func(input []rune) int {
		if len(input) != 0 && input[0] == c {
			return 1
		}
		// fail
		return NoMatch
	}
}

// Str accepts exactly the given sequence of characters.
func Str(s string) Scanner {
	return func(input []rune) int {
		runes := []rune(s)
		if len(input) < len(runes) {
			return NoMatch
		}
		//
		for i, c := range runes {
			if input[i] != c {
				return NoMatch
			}
		}
		// success
		return len(runes)
	}
}

// Range accepts any single character within the given (inclusive) range.
func Range(lowest rune, highest rune) Scanner {
	return func(input []rune) int {
		if len(input) != 0 && lowest <= input[0] && input[0] <= highest {
			return 1
		}
		// fail
		return NoMatch
	}
}

// Any accepts whatever the first succeeding scanner accepts, trying the given
// scanners in order.
func Any(scanners ...Scanner) Scanner {
	return func(input []rune) int {
		for _, scanner := range scanners {
			if n := scanner(input); n != NoMatch {
				return n
			}
		}
		// fail
		return NoMatch
	}
}

// Seq accepts what the given scanners accept when applied one after another,
// failing if any of them fails.
func Seq(scanners ...Scanner) Scanner {
	return func(input []rune) int {
		index := 0
		//
		for _, scanner := range scanners {
			n := scanner(input[index:])
			if n == NoMatch {
				return NoMatch
			}
			//
			index += n
		}
		// success
		return index
	}
}

// Star accepts zero or more repetitions of the given scanner.  Observe this
// never fails; on no match it accepts the empty prefix.  For that reason a
// bare Star must not be used as a top-level rule.
func Star(scanner Scanner) Scanner {
	return func(input []rune) int {
		index := 0
		//
		for index < len(input) {
			n := scanner(input[index:])
			if n == NoMatch || n == 0 {
				break
			}
			//
			index += n
		}
		// done
		return index
	}
}

// Plus accepts one or more repetitions of the given scanner.
func Plus(scanner Scanner) Scanner {
	return Seq(scanner, Star(scanner))
}

// Until accepts everything up to (but excluding) the given character, or the
// end of the input.
func Until(c rune) Scanner {
	return func(input []rune) int {
		index := 0
		//
		for index < len(input) && input[index] != c {
			index++
		}
		// done
		return index
	}
}

// Eof matches (with zero length) exactly at the end of the input.
func Eof() Scanner {
	return func(input []rune) int {
		if len(input) == 0 {
			return 0
		}
		//
		return NoMatch
	}
}
