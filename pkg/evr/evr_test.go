// Copyright 2025 Chainguard, Inc.
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

package evr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    EVR
		wantErr bool
	}{
		{in: "5.0-0", want: EVR{Version: "5.0", Release: "0"}},
		{in: "6:5.0-11", want: EVR{Epoch: 6, Version: "5.0", Release: "11"}},
		{in: "1.2", want: EVR{Version: "1.2"}},
		{in: "0:1.2", want: EVR{Version: "1.2"}},
		{in: "1.2-3-4", want: EVR{Version: "1.2-3", Release: "4"}},
		{in: " 2.0-1 ", want: EVR{Version: "2.0", Release: "1"}},
		{in: "", wantErr: true},
		{in: "   ", wantErr: true},
		{in: "x:1.0", wantErr: true},
		{in: ":1.0", wantErr: true},
		{in: "1:2:3", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)

			// second lookup is served from the cache
			again, err := Parse(tt.in)
			require.NoError(t, err)
			require.Equal(t, got, again)
		})
	}
}

func TestString(t *testing.T) {
	for _, s := range []string{"5.0-0", "6:5.0-11", "1.2", "3:4"} {
		assert.Equal(t, s, MustParse(s).String())
	}
	assert.Equal(t, "1.2", MustParse("0:1.2").String())
}

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0", "1.0", equal},
		{"1.0", "2.0", less},
		{"2.0", "1.0", greater},
		{"2.0.1", "2.0", greater},
		{"2.0", "2.0.1", less},
		{"2.0.1a", "2.0.1", greater},
		{"5.5p1", "5.5p2", less},
		{"5.5p10", "5.5p1", greater},
		{"10xyz", "10.1xyz", less},
		{"xyz10", "xyz10.1", less},
		{"xyz.4", "8", less},
		{"8", "xyz.4", greater},
		{"2a", "2.0", less},
		{"1.001", "1.1", equal},
		{"1.0", "1_0", equal},
		{"1.0~rc1", "1.0", less},
		{"1.0~rc1", "1.0~rc2", less},
		{"1.0~rc1~git1", "1.0~rc1", less},
		{"1.0^", "1.0", greater},
		{"1.0^git1", "1.0", greater},
		{"1.0^git1", "1.0.1", less},
		{"1.0^git1", "1.0~rc1", greater},
		{"1.0^git1", "1.0^git2", less},
		{"", "1", less},
		{"4.10", "4.9", greater},
	}
	for _, tt := range tests {
		t.Run(tt.a+" vs "+tt.b, func(t *testing.T) {
			require.Equal(t, tt.want, CompareVersions(tt.a, tt.b))
			require.Equal(t, -tt.want, CompareVersions(tt.b, tt.a))
		})
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"5.0-0", "5.0-0", equal},
		{"5.0-0", "6.0-0", less},
		{"6:5.0-11", "5.0-0", greater},
		{"1:1.0-1", "2.0-1", greater},
		{"2.0-1", "2.0-2", less},
		{"4-1", "4-0", greater},
	}
	for _, tt := range tests {
		t.Run(tt.a+" vs "+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, Compare(MustParse(tt.a), MustParse(tt.b)))
		})
	}

	assert.Equal(t, equal, CompareNoRelease(MustParse("2.0-1"), MustParse("2.0-7")))
}
