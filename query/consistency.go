// Copyright 2023 The CubeFS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

package query

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Consistency is the per-operation durability and visibility level
// requested from the store. The zero value is unset and lets the caller
// fall back to its default.
type Consistency uint16

const (
	Any = Consistency(iota + 1)
	One
	Two
	Three
	Quorum
	All
	LocalQuorum
	EachQuorum
	LocalOne
)

var consistencyNames = []string{"ANY", "ONE", "TWO", "THREE", "QUORUM", "ALL", "LOCAL_QUORUM", "EACH_QUORUM", "LOCAL_ONE"}

func (c Consistency) String() string {
	if c > 0 && int(c) <= len(consistencyNames) {
		return consistencyNames[c-1]
	}
	return fmt.Sprintf("CONSISTENCY(%d)", c)
}

// Or returns c, or def when c is unset.
func (c Consistency) Or(def Consistency) Consistency {
	if c == 0 {
		return def
	}
	return c
}

func ParseConsistency(s string) (Consistency, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, name := range consistencyNames {
		if name == s {
			return Consistency(i + 1), nil
		}
	}
	return 0, fmt.Errorf("invalid consistency %q", s)
}

func (c Consistency) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Consistency) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseConsistency(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
