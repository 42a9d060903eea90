// Package interleave converts between element-ordered bytes and byte planes.
//
// The TIFF floating-point predictor stores each row of N elements of size
// S as S planes of N bytes, most significant byte first:
//
//	Elements: [A0,A1,A2,A3, B0,B1,B2,B3]
//	Planes:   [A0,B0, A1,B1, A2,B2, A3,B3]
//
// where A0 is the most significant byte of element A.
package interleave

// ToPlanes splits data, an array of size-byte elements, into byte planes.
// Plane k holds byte k of every element. Trailing bytes that do not form a
// whole element are copied unchanged. If out is nil a buffer is allocated.
func ToPlanes(data []byte, size int, out []byte) []byte {
	if out == nil {
		out = make([]byte, len(data))
	}
	if size <= 1 {
		copy(out, data)
		return out
	}
	n := len(data) / size
	for k := 0; k < size; k++ {
		plane := out[k*n : (k+1)*n]
		for e := range plane {
			plane[e] = data[e*size+k]
		}
	}
	copy(out[n*size:], data[n*size:])
	return out
}

// FromPlanes reverses ToPlanes, gathering byte k of element e from plane k.
func FromPlanes(data []byte, size int, out []byte) []byte {
	if out == nil {
		out = make([]byte, len(data))
	}
	if size <= 1 {
		copy(out, data)
		return out
	}
	n := len(data) / size
	for k := 0; k < size; k++ {
		plane := data[k*n : (k+1)*n]
		for e, b := range plane {
			out[e*size+k] = b
		}
	}
	copy(out[n*size:], data[n*size:])
	return out
}

// FromPlanesInPlace reverses ToPlanes within data using scratch, which must
// be at least len(data) bytes.
func FromPlanesInPlace(data []byte, size int, scratch []byte) {
	if len(data) == 0 || size <= 1 {
		return
	}
	tmp := scratch[:len(data)]
	copy(tmp, data)
	FromPlanes(tmp, size, data)
}

// SwapElements reverses the byte order of every size-byte element of data.
func SwapElements(data []byte, size int) {
	if size <= 1 {
		return
	}
	for i := 0; i+size <= len(data); i += size {
		e := data[i : i+size]
		for l, r := 0, size-1; l < r; l, r = l+1, r-1 {
			e[l], e[r] = e[r], e[l]
		}
	}
}
