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

package storage

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalVector(t *testing.T) {
	tests := []struct {
		name string
		vec  []float32
	}{
		{"empty vector", []float32{}},
		{"single value", []float32{0.5}},
		{"mixed values", []float32{-1.25, 0, 3.5, 1e-7}},
		{"extremes", []float32{math.MaxFloat32, -math.MaxFloat32, math.SmallestNonzeroFloat32}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalVector(tt.vec)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalVector(data)
			require.NoError(t, err)
			assert.Equal(t, tt.vec, decoded)
		})
	}
}

func TestUnmarshalVector_Invalid(t *testing.T) {
	data := MarshalVector([]float32{1, 2, 3})

	tests := []struct {
		name string
		data []byte
	}{
		{"empty data", []byte{}},
		{"truncated values", data[:len(data)-2]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalVector(tt.data)
			assert.Error(t, err)
		})
	}
}

func TestMarshalUnmarshalIndex(t *testing.T) {
	header := IndexHeader{Version: IndexFormatVersion, Metric: MetricL2, Dimension: 3, Count: 2}
	values := []float32{1, 2, 3, 4.5, -5, 6}

	data, err := MarshalIndex(header, values)
	require.NoError(t, err)
	assert.Equal(t, IndexMagic, string(data[:4]))

	gotHeader, gotValues, err := UnmarshalIndex(data)
	require.NoError(t, err)
	assert.Equal(t, header, gotHeader)
	assert.Equal(t, values, gotValues)
}

func TestMarshalIndex_Empty(t *testing.T) {
	header := IndexHeader{Version: IndexFormatVersion, Metric: MetricL2, Dimension: 8}
	data, err := MarshalIndex(header, nil)
	require.NoError(t, err)

	gotHeader, gotValues, err := UnmarshalIndex(data)
	require.NoError(t, err)
	assert.Equal(t, 0, gotHeader.Count)
	assert.Empty(t, gotValues)
}

func TestMarshalIndex_InvalidHeader(t *testing.T) {
	_, err := MarshalIndex(IndexHeader{Version: 1, Metric: MetricL2, Dimension: 2, Count: 2}, []float32{1, 2, 3})
	assert.ErrorIs(t, err, ErrSerializationFailed)

	_, err = MarshalIndex(IndexHeader{Version: 1, Metric: MetricL2}, nil)
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestUnmarshalIndex_Invalid(t *testing.T) {
	valid, err := MarshalIndex(IndexHeader{Version: IndexFormatVersion, Metric: MetricL2, Dimension: 2, Count: 2}, []float32{1, 2, 3, 4})
	require.NoError(t, err)

	wrongVersion, err := MarshalIndex(IndexHeader{Version: 99, Metric: MetricL2, Dimension: 2, Count: 1}, []float32{1, 2})
	require.NoError(t, err)

	wrongMetric, err := MarshalIndex(IndexHeader{Version: IndexFormatVersion, Metric: "IP", Dimension: 2, Count: 1}, []float32{1, 2})
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", []byte{}},
		{"bad magic", append([]byte("XXXX"), valid[4:]...)},
		{"truncated body", valid[:len(valid)-4]},
		{"trailing bytes", append(append([]byte{}, valid...), 0, 0, 0, 0)},
		{"header only", valid[:6]},
		{"unsupported version", wrongVersion},
		{"unsupported metric", wrongMetric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := UnmarshalIndex(tt.data)
			assert.Error(t, err)
		})
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")

	require.NoError(t, WriteFileAtomic(path, []byte("first")))
	require.NoError(t, WriteFileAtomic(path, []byte("second")))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")

	err = WriteFileAtomic(filepath.Join(dir, "missing", "data.bin"), []byte("x"))
	assert.Error(t, err)
}
