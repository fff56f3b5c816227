/*
 * Copyright 2025 Rally Tactical Systems, Inc.
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

package discovery

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyIsDeterministic(t *testing.T) {
	key := Key("Zeroconf", "_magellan._tcp", "local", "gw-one")

	assert.Equal(t, "Zeroconf/_magellan._tcp/local/gw-one", key)
	assert.Equal(t, key, Key("Zeroconf", "_magellan._tcp", "local", "gw-one"))

	assert.NotEqual(t, key, Key("Ssdp", "_magellan._tcp", "local", "gw-one"),
		"keys are transport-scoped")
}

func TestFilterDetailJSON(t *testing.T) {
	detail := FilterDetail{
		ServiceType:    "_magellan._tcp",
		Implementation: "Zeroconf",
		Name:           "gw-one",
		HostName:       "gw1.local.",
	}

	var decoded map[string]string

	require.NoError(t, json.Unmarshal([]byte(detail.String()), &decoded))

	assert.Equal(t, map[string]string{
		"serviceType":    "_magellan._tcp",
		"implementation": "Zeroconf",
		"name":           "gw-one",
		"hostName":       "gw1.local.",
	}, decoded)
}
