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
    `sort`
    `strings`

    `github.com/cloudwego/dbc/internal/locs`
)

// StackMap describes the tagged slots of a frame at a safepoint. The last
// SlowPathBitCount bits cover registers spilled by a slow path.
type StackMap struct {
    PcOffset         int
    Bitmap           *locs.BitmapBuilder
    SlowPathBitCount int
}

func (self *StackMap) String() string {
    return fmt.Sprintf("%04x %s (slow path %d)", self.PcOffset, self.Bitmap, self.SlowPathBitCount)
}

type StackMapsBuilder struct {
    entries []StackMap
}

func (self *StackMapsBuilder) AddEntry(pc int, bitmap *locs.BitmapBuilder, slowPathBitCount int) {
    if slowPathBitCount > bitmap.Length() {
        panic("codeinfo: slow path bits exceed the bitmap")
    } else {
        self.entries = append(self.entries, StackMap { pc, bitmap.Clone(), slowPathBitCount })
    }
}

// Finalize orders the entries by code offset. Equal bitmaps are stored once.
func (self *StackMapsBuilder) Finalize() *StackMaps {
    ret := new(StackMaps)
    ret.Entries = append([]StackMap(nil), self.entries...)

    /* sort by pc */
    sort.SliceStable(ret.Entries, func(i int, j int) bool {
        return ret.Entries[i].PcOffset < ret.Entries[j].PcOffset
    })

    /* one safepoint per pc */
    for i := 1; i < len(ret.Entries); i++ {
        if ret.Entries[i].PcOffset == ret.Entries[i - 1].PcOffset {
            panic(fmt.Sprintf("codeinfo: duplicated safepoint at %#x", ret.Entries[i].PcOffset))
        }
    }

    /* share the bitmaps */
    for i := range ret.Entries {
        ret.Entries[i].Bitmap = ret.intern(ret.Entries[i].Bitmap)
    }
    return ret
}

// StackMaps is the safepoint table of a function, sorted by code offset.
type StackMaps struct {
    Entries []StackMap
    Bitmaps []*locs.BitmapBuilder
}

func (self *StackMaps) intern(bm *locs.BitmapBuilder) *locs.BitmapBuilder {
    for _, v := range self.Bitmaps {
        if v.Equal(bm) {
            return v
        }
    }
    self.Bitmaps = append(self.Bitmaps, bm)
    return bm
}

func (self *StackMaps) Len() int {
    return len(self.Entries)
}

func (self *StackMaps) Lookup(pc int) (*StackMap, bool) {
    i := sort.Search(len(self.Entries), func(i int) bool { return self.Entries[i].PcOffset >= pc })
    if i < len(self.Entries) && self.Entries[i].PcOffset == pc {
        return &self.Entries[i], true
    } else {
        return nil, false
    }
}

func (self *StackMaps) String() string {
    var sb strings.Builder
    for i := range self.Entries {
        sb.WriteString(self.Entries[i].String())
        sb.WriteByte('\n')
    }
    return sb.String()
}
