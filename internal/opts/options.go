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


package opts

import (
    `fmt`
    `strings`

    `github.com/BurntSushi/toml`
    `github.com/pkg/errors`
    `github.com/sirupsen/logrus`
)

type Options struct {
    Target                          string `toml:"target"`
    OptimizationCounterThreshold    int    `toml:"optimization_counter_threshold"`
    ReoptimizationCounterThreshold  int    `toml:"reoptimization_counter_threshold"`
    OptimizationCounterScale        int    `toml:"optimization_counter_scale"`
    MinOptimizationCounterThreshold int    `toml:"min_optimization_counter_threshold"`
    UseOptimizingCompiler           bool   `toml:"use_optimizing_compiler"`
    Intrinsify                      bool   `toml:"intrinsify"`
    TrapOnDeoptimization            bool   `toml:"trap_on_deoptimization"`
    UnboxDoubles                    bool   `toml:"unbox_doubles"`
    UnboxMints                      bool   `toml:"unbox_mints"`
    ArgumentTypeChecks              bool   `toml:"argument_type_checks"`
    TraceCompilation                bool   `toml:"trace_compilation"`
    Concurrency                     int    `toml:"concurrency"`

    /* not loaded from files */
    Logger *logrus.Entry `toml:"-"`
}

// CanOptimize reports whether functions may be compiled by the optimizing
// compiler at all.
func (self *Options) CanOptimize() bool {
    return self.UseOptimizingCompiler && self.OptimizationCounterThreshold >= 0
}

func (self *Options) Log() *logrus.Entry {
    if self.Logger != nil {
        return self.Logger
    } else {
        return logrus.NewEntry(logrus.StandardLogger())
    }
}

func (self *Options) Validate() error {
    switch {
        case self.OptimizationCounterThreshold < 0    : return fmt.Errorf("dbc: invalid optimization counter threshold: %d", self.OptimizationCounterThreshold)
        case self.ReoptimizationCounterThreshold < 0  : return fmt.Errorf("dbc: invalid reoptimization counter threshold: %d", self.ReoptimizationCounterThreshold)
        case self.OptimizationCounterScale < 0        : return fmt.Errorf("dbc: invalid optimization counter scale: %d", self.OptimizationCounterScale)
        case self.MinOptimizationCounterThreshold < 0 : return fmt.Errorf("dbc: invalid min optimization counter threshold: %d", self.MinOptimizationCounterThreshold)
        case self.Concurrency <= 0                    : return fmt.Errorf("dbc: invalid concurrency: %d", self.Concurrency)
        default                                       : return nil
    }
}

// LoadFile overrides the options with the values of a TOML file. Unknown keys
// are rejected.
func (self *Options) LoadFile(path string) error {
    meta, err := toml.DecodeFile(path, self)
    if err != nil {
        return errors.Wrapf(err, "dbc: cannot load options from %s", path)
    }

    /* check for typos */
    if keys := meta.Undecoded(); len(keys) != 0 {
        names := make([]string, len(keys))
        for i, k := range keys { names[i] = k.String() }
        return errors.Errorf("dbc: unknown options in %s: %s", path, strings.Join(names, ", "))
    }

    /* check the values */
    return errors.Wrap(self.Validate(), path)
}

func GetDefaultOptions() Options {
    return Options {
        Target                          : "dbc64",
        OptimizationCounterThreshold    : OptimizationCounterThreshold,
        ReoptimizationCounterThreshold  : ReoptimizationCounterThreshold,
        OptimizationCounterScale        : OptimizationCounterScale,
        MinOptimizationCounterThreshold : MinOptimizationCounterThreshold,
        UseOptimizingCompiler           : UseOptimizingCompiler,
        Intrinsify                      : Intrinsify,
        TrapOnDeoptimization            : TrapOnDeoptimization,
        UnboxDoubles                    : UnboxDoubles,
        UnboxMints                      : UnboxMints,
        TraceCompilation                : TraceCompilation,
        Concurrency                     : Concurrency,
    }
}
