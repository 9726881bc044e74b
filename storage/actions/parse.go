// Copyright 2023 Zilliz
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

package actions

import (
	"bytes"
	"encoding/json"

	"github.com/lbhm/delta-kernel-go/common/errors"
)

type envelope struct {
	Add        *Add        `json:"add"`
	Remove     *Remove     `json:"remove"`
	Metadata   *Metadata   `json:"metaData"`
	Protocol   *Protocol   `json:"protocol"`
	Txn        *Txn        `json:"txn"`
	CommitInfo *CommitInfo `json:"commitInfo"`
}

// ParseLine decodes one newline-delimited log entry. ok is false for blank lines and for actions
// this module does not track (cdc, domainMetadata, checkpointMetadata, sidecar).
func ParseLine(file string, line int, b []byte) (action Action, ok bool, err error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return Action{}, false, nil
	}
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Action{}, false, errors.NewParseError(file, line, "malformed action: %v", err)
	}

	n := 0
	if env.Add != nil {
		n++
		action = Action{Kind: KindAdd, Add: env.Add}
	}
	if env.Remove != nil {
		n++
		action = Action{Kind: KindRemove, Remove: env.Remove}
	}
	if env.Metadata != nil {
		n++
		action = Action{Kind: KindMetadata, Metadata: env.Metadata}
	}
	if env.Protocol != nil {
		n++
		action = Action{Kind: KindProtocol, Protocol: env.Protocol}
	}
	if env.Txn != nil {
		n++
		action = Action{Kind: KindTxn, Txn: env.Txn}
	}
	if env.CommitInfo != nil {
		n++
		action = Action{Kind: KindCommitInfo, CommitInfo: env.CommitInfo}
	}
	switch {
	case n == 0:
		return Action{}, false, nil
	case n > 1:
		return Action{}, false, errors.NewParseError(file, line, "entry holds %d actions", n)
	}
	if err := validate(action); err != nil {
		return Action{}, false, errors.NewParseError(file, line, "invalid %s action: %s", action.Kind, err.Error())
	}
	return action, true, nil
}

func validate(a Action) error {
	switch a.Kind {
	case KindAdd:
		if a.Add.Path == "" {
			return errors.New("missing path")
		}
		if a.Add.Size < 0 {
			return errors.New("negative size")
		}
		if a.Add.DeletionVector != nil {
			return a.Add.DeletionVector.Validate()
		}
	case KindRemove:
		if a.Remove.Path == "" {
			return errors.New("missing path")
		}
	case KindMetadata:
		if a.Metadata.ID == "" {
			return errors.New("missing id")
		}
		if a.Metadata.SchemaString == "" {
			return errors.New("missing schemaString")
		}
	case KindProtocol:
		if a.Protocol.MinReaderVersion < 1 || a.Protocol.MinWriterVersion < 1 {
			return errors.New("protocol versions must be positive")
		}
	case KindTxn:
		if a.Txn.AppID == "" {
			return errors.New("missing appId")
		}
	}
	return nil
}

// Marshal renders a as one log line, without the trailing newline.
func Marshal(a Action) ([]byte, error) {
	var env envelope
	switch a.Kind {
	case KindAdd:
		env.Add = a.Add
	case KindRemove:
		env.Remove = a.Remove
	case KindMetadata:
		env.Metadata = a.Metadata
	case KindProtocol:
		env.Protocol = a.Protocol
	case KindTxn:
		env.Txn = a.Txn
	case KindCommitInfo:
		env.CommitInfo = a.CommitInfo
	}
	return json.Marshal(struct {
		Add        *Add        `json:"add,omitempty"`
		Remove     *Remove     `json:"remove,omitempty"`
		Metadata   *Metadata   `json:"metaData,omitempty"`
		Protocol   *Protocol   `json:"protocol,omitempty"`
		Txn        *Txn        `json:"txn,omitempty"`
		CommitInfo *CommitInfo `json:"commitInfo,omitempty"`
	}(env))
}
