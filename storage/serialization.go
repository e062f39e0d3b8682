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
	"fmt"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// Vector index file layout: the 4-byte magic, then varint version, metric
// name, dimension and count, then count*dimension raw float32 values.
const (
	IndexMagic         = "MNVX"
	IndexFormatVersion = 1
	MetricL2           = "L2"
)

// IndexHeader describes the contents of a vector index file.
type IndexHeader struct {
	Version   int
	Metric    string
	Dimension int
	Count     int
}

// MarshalVector serializes a vector as a varint length followed by raw float32 values.
func MarshalVector(vec []float32) []byte {
	size := varint.Int.Size(len(vec))
	for _, f := range vec {
		size += raw.Float32.Size(f)
	}
	buf := make([]byte, size)
	n := varint.Int.Marshal(len(vec), buf)
	for _, f := range vec {
		n += raw.Float32.Marshal(f, buf[n:])
	}
	return buf
}

// UnmarshalVector deserializes a vector written by MarshalVector.
func UnmarshalVector(data []byte) ([]float32, error) {
	length, n, err := varint.Int.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: vector length: %w", ErrSerializationFailed, err)
	}
	if length < 0 || (len(data)-n)/4 < length {
		return nil, fmt.Errorf("%w: vector of %d values in %d bytes", ErrTruncatedData, length, len(data)-n)
	}
	vec := make([]float32, length)
	for i := range vec {
		f, m, err := raw.Float32.Unmarshal(data[n:])
		if err != nil {
			return nil, fmt.Errorf("%w: value %d: %w", ErrSerializationFailed, i, err)
		}
		vec[i] = f
		n += m
	}
	return vec, nil
}

// MarshalIndex serializes a header and the flattened vector data that follows it.
// len(data) must equal h.Count*h.Dimension.
func MarshalIndex(h IndexHeader, data []float32) ([]byte, error) {
	if h.Dimension <= 0 || h.Count < 0 {
		return nil, fmt.Errorf("%w: invalid header %+v", ErrSerializationFailed, h)
	}
	if len(data) != h.Count*h.Dimension {
		return nil, fmt.Errorf("%w: header declares %d values, have %d", ErrSerializationFailed, h.Count*h.Dimension, len(data))
	}

	size := len(IndexMagic) +
		varint.Int.Size(h.Version) +
		ord.String.Size(h.Metric) +
		varint.Int.Size(h.Dimension) +
		varint.Int.Size(h.Count) +
		len(data)*4
	buf := make([]byte, size)

	n := copy(buf, IndexMagic)
	n += varint.Int.Marshal(h.Version, buf[n:])
	n += ord.String.Marshal(h.Metric, buf[n:])
	n += varint.Int.Marshal(h.Dimension, buf[n:])
	n += varint.Int.Marshal(h.Count, buf[n:])
	for _, f := range data {
		n += raw.Float32.Marshal(f, buf[n:])
	}
	return buf[:n], nil
}

// UnmarshalIndex parses a vector index file. The returned slice holds
// Count*Dimension values in ordinal order.
func UnmarshalIndex(data []byte) (IndexHeader, []float32, error) {
	var h IndexHeader
	if len(data) < len(IndexMagic) || string(data[:len(IndexMagic)]) != IndexMagic {
		return h, nil, fmt.Errorf("%w: bad magic", ErrSerializationFailed)
	}
	n := len(IndexMagic)

	var (
		m   int
		err error
	)
	if h.Version, m, err = varint.Int.Unmarshal(data[n:]); err != nil {
		return h, nil, fmt.Errorf("%w: version: %w", ErrTruncatedData, err)
	}
	n += m
	if h.Version != IndexFormatVersion {
		return h, nil, fmt.Errorf("%w: unsupported format version %d", ErrSerializationFailed, h.Version)
	}
	if h.Metric, m, err = ord.String.Unmarshal(data[n:]); err != nil {
		return h, nil, fmt.Errorf("%w: metric: %w", ErrTruncatedData, err)
	}
	n += m
	if h.Metric != MetricL2 {
		return h, nil, fmt.Errorf("%w: unsupported metric %q", ErrSerializationFailed, h.Metric)
	}
	if h.Dimension, m, err = varint.Int.Unmarshal(data[n:]); err != nil {
		return h, nil, fmt.Errorf("%w: dimension: %w", ErrTruncatedData, err)
	}
	n += m
	if h.Count, m, err = varint.Int.Unmarshal(data[n:]); err != nil {
		return h, nil, fmt.Errorf("%w: count: %w", ErrTruncatedData, err)
	}
	n += m

	if h.Dimension <= 0 || h.Count < 0 {
		return h, nil, fmt.Errorf("%w: invalid header %+v", ErrSerializationFailed, h)
	}
	body := data[n:]
	if len(body)%4 != 0 || len(body)/4/h.Dimension != h.Count || len(body)/4%h.Dimension != 0 {
		return h, nil, fmt.Errorf("%w: expected %d vectors of %d values in %d bytes", ErrTruncatedData, h.Count, h.Dimension, len(body))
	}

	values := make([]float32, len(body)/4)
	off := 0
	for i := range values {
		f, m, err := raw.Float32.Unmarshal(body[off:])
		if err != nil {
			return h, nil, fmt.Errorf("%w: value %d: %w", ErrSerializationFailed, i, err)
		}
		values[i] = f
		off += m
	}
	return h, values, nil
}
