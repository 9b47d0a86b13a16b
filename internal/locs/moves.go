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
    `strings`
)

// MoveOperands is a single move of a parallel move.
type MoveOperands struct {
    Src        Location
    Dst        Location
    eliminated bool
}

func NewMove(dst Location, src Location) *MoveOperands {
    return &MoveOperands { Src: src, Dst: dst }
}

// Blocks reports whether this move still needs the old value of loc, i.e. loc
// cannot be overwritten before this move is performed.
func (self *MoveOperands) Blocks(loc Location) bool {
    return !self.eliminated && self.Src.Equals(loc)
}

func (self *MoveOperands) IsEliminated() bool {
    return self.eliminated
}

func (self *MoveOperands) IsRedundant() bool {
    return self.eliminated || self.Dst.IsInvalid() || self.Src.Equals(self.Dst)
}

func (self *MoveOperands) Eliminate() {
    self.eliminated = true
}

func (self *MoveOperands) String() string {
    if self.eliminated {
        return "(" + self.Dst.String() + " <- " + self.Src.String() + ")"
    } else {
        return self.Dst.String() + " <- " + self.Src.String()
    }
}

// ParallelMove is a set of moves that logically happen at the same time.
type ParallelMove struct {
    Moves []*MoveOperands
}

func (self *ParallelMove) AddMove(dst Location, src Location) *MoveOperands {
    mv := NewMove(dst, src)
    self.Moves = append(self.Moves, mv)
    return mv
}

func (self *ParallelMove) NumMoves() int {
    return len(self.Moves)
}

func (self *ParallelMove) IsRedundant() bool {
    for _, mv := range self.Moves {
        if !mv.IsRedundant() {
            return false
        }
    }
    return true
}

func (self *ParallelMove) String() string {
    buf := make([]string, 0, len(self.Moves))
    for _, mv := range self.Moves { buf = append(buf, mv.String()) }
    return "{" + strings.Join(buf, ", ") + "}"
}
