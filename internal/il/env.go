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


package il

import (
    `fmt`
    `strings`

    `github.com/cloudwego/dbc/internal/locs`
    `github.com/cloudwego/dbc/internal/object`
)

type EnvId int32

const (
    NoEnv EnvId = -1
)

// EnvValue is a value of an environment together with its location at the
// point the environment was captured.
type EnvValue struct {
    Value *Instr
    Loc   locs.Location
}

// Environment is the abstract interpreter state of one frame. Environments of
// inlined callees link to the environment of their caller.
type Environment struct {
    Values              []EnvValue
    FixedParameterCount int
    Function            *object.Function
    DeoptId             int
    Outer               EnvId
}

func (self *Environment) Length() int                    { return len(self.Values) }
func (self *Environment) ValueAt(i int) *Instr           { return self.Values[i].Value }
func (self *Environment) LocationAt(i int) locs.Location { return self.Values[i].Loc }

// EnvArena owns every environment of a flow graph. Environments are never
// modified after creation, truncation produces a new one.
type EnvArena struct {
    envs []Environment
}

func NewEnvArena() *EnvArena {
    return new(EnvArena)
}

func (self *EnvArena) New(fn *object.Function, deoptId int, fixedParams int, outer EnvId, values []EnvValue) EnvId {
    if fixedParams > len(values) {
        panic("il: environment has fewer values than fixed parameters")
    }

    /* outer environments must already exist */
    if outer != NoEnv && int(outer) >= len(self.envs) {
        panic("il: invalid outer environment")
    }

    /* add to the arena */
    self.envs = append(self.envs, Environment {
        Values              : values,
        FixedParameterCount : fixedParams,
        Function            : fn,
        DeoptId             : deoptId,
        Outer               : outer,
    })
    return EnvId(len(self.envs) - 1)
}

func (self *EnvArena) At(id EnvId) *Environment {
    if id == NoEnv {
        return nil
    } else {
        return &self.envs[id]
    }
}

func (self *EnvArena) Len() int {
    return len(self.envs)
}

// LengthWithoutArguments is the length of the environment once the last argc
// values, the arguments of a call, have been popped by the callee.
func (self *Environment) LengthWithoutArguments(argc int) int {
    if argc < 0 || argc > self.Length() - self.FixedParameterCount {
        panic("il: dropping more arguments than the environment holds")
    } else {
        return self.Length() - argc
    }
}

// Chain returns the environment and all its outer environments, innermost
// first.
func (self *EnvArena) Chain(id EnvId) []EnvId {
    var ret []EnvId
    for ; id != NoEnv; id = self.envs[id].Outer {
        ret = append(ret, id)
    }
    return ret
}

func (self *EnvArena) Outermost(id EnvId) EnvId {
    for id != NoEnv && self.envs[id].Outer != NoEnv {
        id = self.envs[id].Outer
    }
    return id
}

func (self *EnvArena) String(id EnvId) string {
    var sb strings.Builder
    for i, v := range self.Chain(id) {
        env := self.At(v)
        if i != 0 {
            sb.WriteString(" { ")
        }

        /* values with their locations */
        vals := make([]string, env.Length())
        for j, ev := range env.Values { vals[j] = fmt.Sprintf("%s@%s", ev.Value.ValueName(), ev.Loc) }
        fmt.Fprintf(&sb, "%s[%s]", env.Function.Name, strings.Join(vals, ", "))
    }

    /* close the nested ones */
    if n := len(self.Chain(id)); n > 1 {
        sb.WriteString(strings.Repeat(" }", n - 1))
    }
    return sb.String()
}
