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

package status

import (
	"fmt"

	"github.com/lbhm/delta-kernel-go/common/errors"
)

type Code int32

const (
	KOk                 Code = 0
	kArrowError         Code = 1
	kInvalidArgument    Code = 2
	kInternalStateError Code = 3
	kResolutionError    Code = 4
	kParseError         Code = 5
	kProtocolError      Code = 6
	kStateError         Code = 7
	kPlanningError      Code = 8
	kDeletionVector     Code = 9
	kStorageError       Code = 10
)

// Status is the flat code plus message form of an error, for callers that cannot hold a Go error.
type Status struct {
	code Code
	msg  string
}

func NewStatus(code Code, msg string) *Status {
	return &Status{
		code: code,
		msg:  msg,
	}
}

func (s *Status) Code() Code {
	return s.code
}

func (s *Status) Msg() string {
	return s.msg
}

func (s Status) String() string {
	if s.code == KOk {
		return "OK"
	}
	return fmt.Sprintf("code=%d: %s", s.code, s.msg)
}

func OK() Status {
	return Status{
		code: KOk,
	}
}

func ArrowError(msg string) Status {
	return Status{
		code: kArrowError,
		msg:  msg,
	}
}

func InvalidArgument(msg string) Status {
	return Status{
		code: kInvalidArgument,
		msg:  msg,
	}
}

func InternalStateError(msg string) Status {
	return Status{
		code: kInternalStateError,
		msg:  msg,
	}
}

// FromError maps err onto a Status by its error kind. A nil err is OK.
func FromError(err error) Status {
	if err == nil {
		return OK()
	}
	var code Code
	switch errors.KindOf(err) {
	case errors.KindResolution:
		code = kResolutionError
	case errors.KindParse:
		code = kParseError
	case errors.KindProtocol:
		code = kProtocolError
	case errors.KindState:
		code = kStateError
	case errors.KindPlanning:
		code = kPlanningError
	case errors.KindDeletionVector:
		code = kDeletionVector
	case errors.KindStorage:
		code = kStorageError
	default:
		code = kInternalStateError
	}
	return Status{code: code, msg: err.Error()}
}

func (s *Status) IsOK() bool {
	return s.code == KOk
}

func (s *Status) IsArrowError() bool {
	return s.code == kArrowError
}

func (s *Status) IsInvalidArgument() bool {
	return s.code == kInvalidArgument
}

func (s *Status) IsInternalStateError() bool {
	return s.code == kInternalStateError
}

func (s *Status) IsResolutionError() bool {
	return s.code == kResolutionError
}

func (s *Status) IsParseError() bool {
	return s.code == kParseError
}

func (s *Status) IsProtocolError() bool {
	return s.code == kProtocolError
}

func (s *Status) IsStateError() bool {
	return s.code == kStateError
}

func (s *Status) IsPlanningError() bool {
	return s.code == kPlanningError
}

func (s *Status) IsDeletionVectorError() bool {
	return s.code == kDeletionVector
}

func (s *Status) IsStorageError() bool {
	return s.code == kStorageError
}
