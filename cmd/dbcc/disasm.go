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
    `fmt`
    `strings`

    `github.com/cloudwego/dbc`
    `github.com/fatih/color`
    `github.com/spf13/cobra`
)

var (
    pcColor      = color.New(color.FgBlue)
    opColor      = color.New(color.FgYellow, color.Bold)
    commentColor = color.New(color.FgGreen)
    headerColor  = color.New(color.Bold)
)

func newDisasmCommand() *cobra.Command {
    cmd := &cobra.Command {
        Use   : "disasm [flags] FILE",
        Short : "Compile a flow graph and print the disassembly",
        Args  : cobra.ExactArgs(1),
        RunE  : runDisasm,
    }

    /* colors are on for terminals only */
    cmd.Flags().Bool("no-color", false, "disable colored output")
    return cmd
}

func runDisasm(cmd *cobra.Command, args []string) error {
    if off, _ := cmd.Flags().GetBool("no-color"); off {
        color.NoColor = true
    }

    /* compile the graph */
    code, err := compileFile(cmd, args[0])
    if err != nil {
        return err
    }

    /* print the code */
    printDisasm(cmd, code)
    return nil
}

func printDisasm(cmd *cobra.Command, code *dbc.Code) {
    out := cmd.OutOrStdout()
    headerColor.Fprintln(out, strings.SplitN(code.String(), "\n", 2)[0])

    /* one line per instruction */
    for _, v := range code.Disassemble() {
        op, operands := v.Instr.String(), ""
        if i := strings.IndexByte(op, ' '); i >= 0 {
            op, operands = op[:i], op[i:]
        }

        /* pc, mnemonic, operands and the comment */
        pcColor.Fprintf(out, "%04x  ", v.Pc)
        opColor.Fprint(out, op)
        fmt.Fprintf(out, "%-*s", 32 - len(op), operands)
        if v.Comment != "" {
            commentColor.Fprintf(out, " ; %s", v.Comment)
        }
        fmt.Fprintln(out)
    }
}
