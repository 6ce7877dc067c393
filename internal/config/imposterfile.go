// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/riftmock/rift/internal/riftkind"
)

// LoadImposterFile reads --configfile's contents and returns them as JSON
// bytes, regardless of whether the file is written as JSON or YAML. This
// keeps a single wire-decoding path in internal/admin: YAML configfiles are
// normalized to JSON here rather than taught to a second decoder.
func LoadImposterFile(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, riftkind.Wrap(riftkind.InvalidConfig, "read configfile", err)
	}

	if !isYAML(path, raw) {
		return raw, nil
	}

	var generic any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return nil, riftkind.Wrap(riftkind.InvalidConfig, "parse configfile as yaml", err)
	}
	out, err := json.Marshal(generic)
	if err != nil {
		return nil, riftkind.Wrap(riftkind.InvalidConfig, "normalize configfile to json", err)
	}
	return out, nil
}

func isYAML(path string, raw []byte) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	case ".json":
		return false
	}
	trimmed := strings.TrimSpace(string(raw))
	return !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "[")
}
