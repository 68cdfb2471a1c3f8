/*
 * Copyright 2024 caiflower Authors
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

package tools

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

type testConfig struct {
	Name  string        `yaml:"name" default:"test"`
	Age   int           `yaml:"age" default:"30"`
	Money float64       `yaml:"money" default:"1.5"`
	Sub   testSubConfig `yaml:"sub"`
}

type testSubConfig struct {
	Name1 string `yaml:"name" default:"test1"`
	Age   int    `yaml:"age" default:"30"`
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.yaml")
	assert.NoError(t, os.WriteFile(path, []byte("name: fromYaml\n"), 0o600))

	config := &testConfig{}
	assert.NoError(t, LoadConfig(path, config))

	assert.Equal(t, "fromYaml", config.Name)
	assert.Equal(t, 30, config.Age)
	assert.Equal(t, 1.5, config.Money)
	assert.Equal(t, "test1", config.Sub.Name1)
}

func TestLoadConfigMissingFile(t *testing.T) {
	config := &testConfig{}
	assert.Error(t, LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), config))
}
