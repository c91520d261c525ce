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
package source

// Span represents a contiguous slice of an original source string.  Instead of
// representing this as a string slice, it is useful to retain the physical
// indices, as these allow us to determine the enclosing line, etc.
type Span struct {
	// The first character of this span in the original string.
	start int
	// One past the final character of this span in the original string.
	end int
}

// NewSpan constructs a new span whilst checking the internal invariants are
// maintained.
func NewSpan(start int, end int) Span {
	if start > end {
		panic("invalid span")
	}
	//
	return Span{start, end}
}

// Join constructs the smallest span enclosing both this span and another.
func (p Span) Join(other Span) Span {
	return Span{min(p.start, other.start), max(p.end, other.end)}
}

// Start returns the starting index of this span in the original string.
func (p Span) Start() int {
	return p.start
}

// End returns one past the last index of this span in the original string.
func (p Span) End() int {
	return p.end
}

// Length returns the number of characters covered by this span in the
// original string.
func (p Span) Length() int {
	return p.end - p.start
}
