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
    `os`
    `path/filepath`
    `testing`

    `github.com/stretchr/testify/assert`
    `github.com/stretchr/testify/require`
)

func TestParseOrDefault(t *testing.T) {
    t.Setenv("DBC_TEST_VALUE", "")
    assert.Equal(t, 7, parseOrDefault("DBC_TEST_VALUE", 7, 0))
    t.Setenv("DBC_TEST_VALUE", "0x10")
    assert.Equal(t, 16, parseOrDefault("DBC_TEST_VALUE", 7, 0))
    t.Setenv("DBC_TEST_VALUE", "1")
    assert.PanicsWithValue(t, "dbc: value too small for DBC_TEST_VALUE", func() { parseOrDefault("DBC_TEST_VALUE", 7, 1) })
    t.Setenv("DBC_TEST_VALUE", "abc")
    assert.PanicsWithValue(t, "dbc: invalid value for DBC_TEST_VALUE", func() { parseBoolOrDefault("DBC_TEST_VALUE", true) })
    t.Setenv("DBC_TEST_VALUE", "false")
    assert.False(t, parseBoolOrDefault("DBC_TEST_VALUE", true))
}

func TestOptions_Defaults(t *testing.T) {
    o := GetDefaultOptions()
    require.NoError(t, o.Validate())
    assert.Equal(t, "dbc64", o.Target)
    assert.True(t, o.CanOptimize())
    assert.NotNil(t, o.Log())
}

func TestOptions_LoadFile(t *testing.T) {
    dir := t.TempDir()
    good := filepath.Join(dir, "good.toml")
    require.NoError(t, os.WriteFile(good, []byte("target = \"dbc32\"\noptimization_counter_threshold = 100\ntrap_on_deoptimization = true\n"), 0644))

    /* values in the file override the defaults */
    o := GetDefaultOptions()
    require.NoError(t, o.LoadFile(good))
    assert.Equal(t, "dbc32", o.Target)
    assert.Equal(t, 100, o.OptimizationCounterThreshold)
    assert.True(t, o.TrapOnDeoptimization)
    assert.Equal(t, ReoptimizationCounterThreshold, o.ReoptimizationCounterThreshold)

    /* unknown keys */
    bad := filepath.Join(dir, "bad.toml")
    require.NoError(t, os.WriteFile(bad, []byte("optimisation_threshold = 1\n"), 0644))
    err := o.LoadFile(bad)
    require.Error(t, err)
    assert.Contains(t, err.Error(), "optimisation_threshold")

    /* invalid values */
    neg := filepath.Join(dir, "neg.toml")
    require.NoError(t, os.WriteFile(neg, []byte("concurrency = 0\n"), 0644))
    assert.Error(t, o.LoadFile(neg))

    /* missing files */
    assert.Error(t, o.LoadFile(filepath.Join(dir, "missing.toml")))
}
