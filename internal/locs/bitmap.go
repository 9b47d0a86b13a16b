/*
 * Copyright 2022 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */


package locs

import (
    `bytes`
    `strings`
)

// BitmapBuilder is a growable bit vector. Bit i describes frame slot i of a
// safepoint, a set bit means the slot holds a tagged value.
type BitmapBuilder struct {
    N int
    B []byte
}

func (self *BitmapBuilder) grow(n int) {
    for n > len(self.B) * 8 {
        self.B = append(self.B, 0)
    }
}

func (self *BitmapBuilder) mark(i int, bv bool) {
    if bv {
        self.B[i / 8] |= 1 << (i % 8)
    } else {
        self.B[i / 8] &^= 1 << (i % 8)
    }
}

func (self *BitmapBuilder) Length() int {
    return self.N
}

// SetLength truncates or extends the bitmap, new bits are cleared.
func (self *BitmapBuilder) SetLength(n int) {
    if n < 0 {
        panic("bitmap: invalid length")
    }

    /* clear the bits being dropped, so extending again yields zeros */
    for i := n; i < self.N; i++ {
        self.mark(i, false)
    }

    /* update the length */
    self.grow(n)
    self.N = n
}

func (self *BitmapBuilder) Set(i int, bv bool) {
    if i < 0 {
        panic("bitmap: invalid bit position")
    }

    /* extend as needed */
    if i >= self.N {
        self.SetLength(i + 1)
    }

    /* set the bit */
    self.mark(i, bv)
}

func (self *BitmapBuilder) Get(i int) bool {
    if i < 0 || i >= self.N {
        return false
    } else {
        return self.B[i / 8] & (1 << (i % 8)) != 0
    }
}

func (self *BitmapBuilder) Append(bv bool) {
    self.Set(self.N, bv)
}

func (self *BitmapBuilder) Clone() *BitmapBuilder {
    ret := &BitmapBuilder { N: self.N }
    ret.B = append([]byte(nil), self.B[:(self.N + 7) / 8]...)
    return ret
}

func (self *BitmapBuilder) Equal(other *BitmapBuilder) bool {
    return self.N == other.N && bytes.Equal(self.B[:(self.N + 7) / 8], other.B[:(other.N + 7) / 8])
}

func (self *BitmapBuilder) String() string {
    var sb strings.Builder
    for i := 0; i < self.N; i++ {
        if self.Get(i) {
            sb.WriteByte('1')
        } else {
            sb.WriteByte('0')
        }
    }
    return sb.String()
}
