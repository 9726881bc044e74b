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

package result

import (
	"github.com/lbhm/delta-kernel-go/common/status"
)

// Result carries either a value or a failed Status across a boundary that reports per-item outcomes.
type Result[T any] struct {
	value  *T
	status *status.Status
}

func NewResult[T any](value T) *Result[T] {
	return &Result[T]{value: &value}
}

func NewResultFromStatus[T any](status status.Status) *Result[T] {
	return &Result[T]{status: &status}
}

// Of converts a Go (value, error) pair.
func Of[T any](value T, err error) *Result[T] {
	if err != nil {
		return NewResultFromStatus[T](status.FromError(err))
	}
	return NewResult(value)
}

func (r *Result[T]) Ok() bool {
	return r.value != nil
}

func (r *Result[T]) HasValue() bool {
	return r.value != nil
}

func (r *Result[T]) Value() T {
	if r.value == nil {
		panic("value is nil")
	}
	return *r.value
}

func (r *Result[T]) Status() *status.Status {
	if r.status == nil {
		ok := status.OK()
		return &ok
	}
	return r.status
}
