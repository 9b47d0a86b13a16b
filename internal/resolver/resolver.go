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


package resolver

import (
    `github.com/cloudwego/dbc/internal/locs`
)

// MoveEmitter lowers the primitive operations chosen by the resolver to a
// target.
type MoveEmitter interface {
    // EmitMove copies src into dst. Special sources (constants and the
    // pseudo registers) are only ever passed here.
    EmitMove(dst locs.Location, src locs.Location)

    // EmitSwap exchanges the contents of dst and src. It is only called when
    // CanSwap returns true for the pair.
    EmitSwap(dst locs.Location, src locs.Location)

    // CanSwap reports whether the target can exchange the two locations.
    CanSwap(dst locs.Location, src locs.Location) bool

    // AcquireScratch returns a location not blocked by any pending move, to
    // be used as a temporary while breaking a cycle.
    AcquireScratch(blocked func(loc locs.Location) bool) (locs.Location, bool)

    // ReleaseScratch gives back a location returned by AcquireScratch.
    ReleaseScratch(loc locs.Location)

    // Bailout aborts the compilation. It never returns.
    Bailout(reason string)
}

type _Move struct {
    src  locs.Location
    dst  locs.Location
    idx  int
    done bool
}

func (self *_Move) blocks(loc locs.Location) bool {
    return !self.done && self.src.Equals(loc)
}

// ParallelMoveResolver serializes parallel moves. The registry of pending
// moves only lives during one EmitNativeCode call.
type ParallelMoveResolver struct {
    emitter MoveEmitter
    moves   []_Move
    special []_Move
    scratch []locs.Location
}

func New(emitter MoveEmitter) *ParallelMoveResolver {
    return &ParallelMoveResolver { emitter: emitter }
}

// EmitNativeCode emits code for the parallel move. The move itself is only
// read, so one graph may be compiled any number of times.
func (self *ParallelMoveResolver) EmitNativeCode(pm *locs.ParallelMove) {
    self.buildInitialMoveList(pm)

    /* resolve everything that reads a real location */
    for self.pending() != 0 {
        if !self.performReadyMoves() {
            self.breakCycle()
        }
    }

    /* special sources are never blocked and never block */
    for i := range self.special {
        self.emitter.EmitMove(self.special[i].dst, self.special[i].src)
    }

    /* release the scratch locations */
    for _, v := range self.scratch {
        self.emitter.ReleaseScratch(v)
    }

    /* reset the registry */
    self.moves = self.moves[:0]
    self.special = self.special[:0]
    self.scratch = self.scratch[:0]
}

func (self *ParallelMoveResolver) buildInitialMoveList(pm *locs.ParallelMove) {
    for i, mv := range pm.Moves {
        if mv.IsRedundant() {
            continue
        }

        /* constants and pseudo registers go last */
        if mv.Src.IsSpecialSource() {
            self.special = append(self.special, _Move { src: mv.Src, dst: mv.Dst, idx: i })
        } else {
            self.moves = append(self.moves, _Move { src: mv.Src, dst: mv.Dst, idx: i })
        }
    }
}

func (self *ParallelMoveResolver) pending() (n int) {
    for i := range self.moves {
        if !self.moves[i].done {
            n++
        }
    }
    return
}

func (self *ParallelMoveResolver) isBlocked(i int) bool {
    for j := range self.moves {
        if j != i && self.moves[j].blocks(self.moves[i].dst) {
            return true
        }
    }
    return false
}

func (self *ParallelMoveResolver) performReadyMoves() (progress bool) {
    for changed := true; changed; {
        changed = false
        for i := range self.moves {
            if !self.moves[i].done && !self.isBlocked(i) {
                self.emitMove(i)
                changed = true
                progress = true
            }
        }
    }
    return
}

func (self *ParallelMoveResolver) emitMove(i int) {
    mv := &self.moves[i]
    mv.done = true

    /* a swap may already have put the value in place */
    if !mv.src.Equals(mv.dst) {
        self.emitter.EmitMove(mv.dst, mv.src)
    }
}

// emitSwap performs move i with a swap and redirects every pending move that
// reads one of the two exchanged locations.
func (self *ParallelMoveResolver) emitSwap(i int) {
    mv := &self.moves[i]
    src, dst := mv.src, mv.dst

    /* the swap performs the move itself */
    self.emitter.EmitSwap(dst, src)
    mv.done = true

    /* the two locations changed places */
    for j := range self.moves {
        if other := &self.moves[j]; other.blocks(src) {
            other.src = dst
        } else if other.blocks(dst) {
            other.src = src
        }
    }
}

// breakCycle is called when every pending move is blocked, which means the
// pending moves form disjoint cycles.
func (self *ParallelMoveResolver) breakCycle() {
    sel := -1
    for i := range self.moves {
        mv := &self.moves[i]
        if mv.done || !self.emitter.CanSwap(mv.dst, mv.src) {
            continue
        }

        /* prefer register pairs */
        if sel = i; mv.src.IsRegisterClass() && mv.dst.IsRegisterClass() {
            break
        }
    }

    /* swap if possible */
    if sel >= 0 {
        self.emitSwap(sel)
        return
    }

    /* otherwise park one value in a scratch location */
    for i := range self.moves {
        if !self.moves[i].done {
            self.spill(i)
            return
        }
    }
    panic("unreachable")
}

func (self *ParallelMoveResolver) spill(i int) {
    self.releaseDeadScratch()
    dst := self.moves[i].dst
    tmp, ok := self.emitter.AcquireScratch(self.isLive)

    /* no scratch available */
    if !ok {
        self.emitter.Bailout("Unsupported move")
        panic("unreachable")
    }

    /* save the old value of the destination */
    self.scratch = append(self.scratch, tmp)
    self.emitter.EmitMove(tmp, dst)

    /* readers of the destination now read the scratch */
    for j := range self.moves {
        if self.moves[j].blocks(dst) {
            self.moves[j].src = tmp
        }
    }
}

func (self *ParallelMoveResolver) isLive(loc locs.Location) bool {
    for _, v := range self.scratch {
        if v.Equals(loc) {
            return true
        }
    }
    for i := range self.moves {
        if mv := &self.moves[i]; mv.dst.Equals(loc) || mv.blocks(loc) {
            return true
        }
    }
    for i := range self.special {
        if self.special[i].dst.Equals(loc) {
            return true
        }
    }
    return false
}

// releaseDeadScratch gives back the scratch locations no pending move reads
// from anymore.
func (self *ParallelMoveResolver) releaseDeadScratch() {
    p := 0
    for _, v := range self.scratch {
        if self.isRead(v) {
            self.scratch[p] = v
            p++
        } else {
            self.emitter.ReleaseScratch(v)
        }
    }
    self.scratch = self.scratch[:p]
}

func (self *ParallelMoveResolver) isRead(loc locs.Location) bool {
    for i := range self.moves {
        if self.moves[i].blocks(loc) {
            return true
        }
    }
    return false
}
