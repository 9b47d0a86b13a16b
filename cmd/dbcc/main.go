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


package main

import (
    `os`

    `github.com/cloudwego/dbc`
    `github.com/cloudwego/dbc/internal/arch`
    `github.com/fatih/color`
    `github.com/pkg/errors`
    `github.com/sirupsen/logrus`
    `github.com/spf13/cobra`
)

func newRootCommand() *cobra.Command {
    root := &cobra.Command {
        Use           : "dbcc",
        Short         : "Bytecode compiler for flow graphs",
        Long          : `dbcc compiles TOML flow graph descriptions into bytecode and dumps the deoptimization metadata`,
        SilenceUsage  : true,
        SilenceErrors : true,
    }

    /* global flags */
    root.PersistentFlags().String("config", "", "TOML file with compiler options")
    root.PersistentFlags().String("target", "", "target to compile for (dbc64|dbc32, x64 lowers moves only)")
    root.PersistentFlags().BoolP("verbose", "v", false, "log every compiled function")

    /* subcommands */
    root.AddCommand(newCompileCommand())
    root.AddCommand(newDisasmCommand())
    root.AddCommand(newDeoptCommand())
    root.AddCommand(newMovesCommand())
    return root
}

// compileOptions builds the compiler options from the global flags.
func compileOptions(cmd *cobra.Command) ([]dbc.Option, error) {
    var ret []dbc.Option
    flags := cmd.Root().PersistentFlags()

    /* the config file goes first, flags override it */
    if path, _ := flags.GetString("config"); path != "" {
        if opt, err := dbc.LoadConfig(path); err != nil {
            return nil, err
        } else {
            ret = append(ret, opt)
        }
    }

    /* the target must be known and run bytecode */
    if name, _ := flags.GetString("target"); name != "" {
        if !isTarget(name) {
            return nil, errUnknownTarget(name)
        } else if _, err := arch.BytecodeTarget(name); err != nil {
            return nil, errors.Errorf("target %q only lowers moves", name)
        }
        ret = append(ret, dbc.WithTarget(name))
    }

    /* logging goes to stderr */
    log := logrus.New()
    log.SetOutput(cmd.ErrOrStderr())
    if verbose, _ := flags.GetBool("verbose"); verbose {
        log.SetLevel(logrus.DebugLevel)
    }
    return append(ret, dbc.WithLogger(logrus.NewEntry(log))), nil
}

// compileFile loads and compiles a single graph file.
func compileFile(cmd *cobra.Command, path string) (*dbc.Code, error) {
    options, err := compileOptions(cmd)
    if err != nil {
        return nil, err
    }

    /* load the graph */
    graph, err := dbc.LoadGraph(path)
    if err != nil {
        return nil, err
    }
    return dbc.Compile(graph, options...)
}

func main() {
    if err := newRootCommand().Execute(); err != nil {
        color.New(color.FgRed, color.Bold).Fprint(os.Stderr, "error: ")
        os.Stderr.WriteString(err.Error() + "\n")
        os.Exit(1)
    }
}
