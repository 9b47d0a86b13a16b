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


package dbc

import (
    `fmt`

    `github.com/cloudwego/dbc/internal/compiler`
    `github.com/pkg/errors`
)

// BailoutError occures when the compiler gives up on a function. Optimized
// graphs may still be compiled unoptimized.
type BailoutError = compiler.BailoutError

// IsBailout reports whether err is, or wraps, a *BailoutError.
func IsBailout(err error) bool {
    var be *BailoutError
    return errors.As(err, &be)
}

// FormatError occures when encoding or decoding code in an unknown format.
type FormatError struct {
    Format string
}

func (self FormatError) Error() string {
    return fmt.Sprintf("FormatError(%s): not one of text, cbor or msgpack", self.Format)
}
