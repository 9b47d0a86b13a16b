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

    `github.com/pkg/errors`
    `github.com/spf13/cobra`
)

func newCompileCommand() *cobra.Command {
    cmd := &cobra.Command {
        Use   : "compile [flags] FILE",
        Short : "Compile a flow graph",
        Long  : `Compile a flow graph and write the code as text, canonical CBOR or msgpack`,
        Args  : cobra.ExactArgs(1),
        RunE  : runCompile,
    }

    /* output flags */
    cmd.Flags().StringP("format", "f", "text", "output format (text|cbor|msgpack)")
    cmd.Flags().StringP("output", "o", "", "write to a file instead of stdout")
    return cmd
}

func runCompile(cmd *cobra.Command, args []string) error {
    format, _ := cmd.Flags().GetString("format")
    output, _ := cmd.Flags().GetString("output")

    /* compile the graph */
    code, err := compileFile(cmd, args[0])
    if err != nil {
        return err
    }

    /* encode the code */
    buf, err := code.Encode(format)
    if err != nil {
        return err
    }

    /* write to stdout or to the file */
    if output == "" {
        _, err = cmd.OutOrStdout().Write(buf)
        return err
    } else {
        return errors.Wrap(os.WriteFile(output, buf, 0644), "cannot write the output")
    }
}
