package vector

import (
	"reflect"
	"testing"
)

func TestFloat32SliceToBytes(t *testing.T) {
	tests := []struct {
		name  string
		input []float32
	}{
		{
			name:  "empty slice",
			input: []float32{},
		},
		{
			name:  "single value",
			input: []float32{1.0},
		},
		{
			name:  "multiple values",
			input: []float32{1.0, 2.0, 3.0, 4.0, 5.0},
		},
		{
			name:  "negative values",
			input: []float32{-1.0, -2.0, -3.0, -4.0, -5.0},
		},
		{
			name:  "mixed values",
			input: []float32{-1.0, 0.0, 1.0, 3.14, -2.718},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			// Convert to bytes
			bytes, err := Float32SliceToBytes(test.input)
			if err != nil {
				t.Errorf("Float32SliceToBytes(%v) error: %v", test.input, err)
				return
			}

			// Convert back to float32 slice
			floats, err := BytesToFloat32Slice(bytes)
			if err != nil {
				t.Errorf("BytesToFloat32Slice(%v) error: %v", bytes, err)
				return
			}

			// Verify the result matches the input
			if !reflect.DeepEqual(test.input, floats) {
				t.Errorf("Expected %v, got %v", test.input, floats)
			}
		})
	}
}

func TestBytesToFloat32SliceTruncated(t *testing.T) {
	data, err := Float32SliceToBytes([]float32{1, 2, 3})
	if err != nil {
		t.Fatalf("Float32SliceToBytes error: %v", err)
	}

	if _, err := BytesToFloat32Slice(data[:len(data)-2]); err == nil {
		t.Error("Expected error for truncated payload, got nil")
	}
	if _, err := BytesToFloat32Slice(data[:2]); err == nil {
		t.Error("Expected error for missing length prefix, got nil")
	}
}

func TestSquaredL2Distance(t *testing.T) {
	tests := []struct {
		name     string
		a        []float32
		b        []float32
		expected float64
	}{
		{
			name:     "identical vectors",
			a:        []float32{1, 2, 3},
			b:        []float32{1, 2, 3},
			expected: 0,
		},
		{
			name:     "unit step",
			a:        []float32{0, 0},
			b:        []float32{1, 0},
			expected: 1,
		},
		{
			name:     "not square rooted",
			a:        []float32{0, 0},
			b:        []float32{3, 4},
			expected: 25,
		},
		{
			name:     "negative components",
			a:        []float32{-1, -1},
			b:        []float32{1, 1},
			expected: 8,
		},
		{
			name:     "empty vectors",
			a:        []float32{},
			b:        []float32{},
			expected: 0,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := SquaredL2Distance(test.a, test.b)
			if got != test.expected {
				t.Errorf("SquaredL2Distance(%v, %v) = %v, want %v", test.a, test.b, got, test.expected)
			}
		})
	}
}

func TestFloat64sToFloat32s(t *testing.T) {
	got := Float64sToFloat32s([]float64{0.5, -0.25, 1})
	want := []float32{0.5, -0.25, 1}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}
