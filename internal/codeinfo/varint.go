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


package codeinfo

import (
    `fmt`
)

func toZigzag(v int) uint64 {
    return uint64(v << 1) ^ uint64(v >> 63)
}

func fromZigzag(v uint64) int {
    return int(v >> 1) ^ -int(v & 1)
}

func encodeValue(buf []byte, v int) []byte {
    return encodeVariant(buf, toZigzag(v))
}

func encodeVariant(buf []byte, v uint64) []byte {
    for v > 127 {
        buf = append(buf, byte(v & 0x7f) | 0x80)
        v >>= 7
    }
    return append(buf, byte(v))
}

// decoder reads values written by encodeValue.
type decoder struct {
    buf []byte
    pos int
}

func (self *decoder) more() bool {
    return self.pos < len(self.buf)
}

func (self *decoder) value() int {
    var s uint
    var v uint64

    /* 7 bits at a time, the high bit marks continuation */
    for {
        if self.pos >= len(self.buf) {
            panic(fmt.Sprintf("codeinfo: truncated value at offset %d", self.pos))
        }

        /* add the bits */
        b := self.buf[self.pos]
        v |= uint64(b & 0x7f) << s
        self.pos++

        /* check for the last byte */
        if b < 0x80 {
            return fromZigzag(v)
        } else if s += 7; s >= 64 {
            panic(fmt.Sprintf("codeinfo: value overflow at offset %d", self.pos))
        }
    }
}
