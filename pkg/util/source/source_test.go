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

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Source_01(t *testing.T) {
	span := NewSpan(2, 5)
	//
	require.Equal(t, 2, span.Start())
	require.Equal(t, 5, span.End())
	require.Equal(t, 3, span.Length())
}

func Test_Source_02(t *testing.T) {
	joined := NewSpan(2, 5).Join(NewSpan(4, 9))
	//
	require.Equal(t, NewSpan(2, 9), joined)
}

func Test_Source_03(t *testing.T) {
	require.Panics(t, func() { NewSpan(5, 2) })
}

func Test_Source_04(t *testing.T) {
	file := NewFile("test.tsl", []byte("first\nsecond\nthird"))
	// Span of "second".
	line := file.EnclosingLine(NewSpan(6, 12))
	//
	require.Equal(t, 2, line.Number())
	require.Equal(t, "second", line.String())
	require.Equal(t, 6, line.Start())
	require.Equal(t, 6, line.Length())
}

func Test_Source_05(t *testing.T) {
	// Positions beyond the end of the file resolve to the last line.
	file := NewFile("test.tsl", []byte("first\nsecond"))
	line := file.EnclosingLine(NewSpan(100, 100))
	//
	require.Equal(t, 2, line.Number())
	require.Equal(t, "second", line.String())
}

func Test_Source_06(t *testing.T) {
	file := NewFile("test.tsl", []byte("def main() {\n  var a = ;\n}"))
	// Span of the offending ";".
	err := file.SyntaxError(NewSpan(23, 24), "expected expression")
	//
	require.Equal(t, "test.tsl:2:11: expected expression", err.Error())
	//
	line := err.FirstEnclosingLine()
	require.Equal(t, 2, line.Number())
}
