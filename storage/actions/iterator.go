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
	"bufio"
	"bytes"
)

// Iterator is a single-consumer pull iterator over the actions of one log file, in file order.
type Iterator interface {
	Next() bool
	Action() Action
	Err() error
	Close() error
}

// LineIterator parses newline-delimited JSON lazily.
type LineIterator struct {
	file    string
	scanner *bufio.Scanner
	line    int
	cur     Action
	err     error
}

var _ Iterator = (*LineIterator)(nil)

func NewLineIterator(file string, content []byte) *LineIterator {
	s := bufio.NewScanner(bytes.NewReader(content))
	s.Buffer(make([]byte, 0, 64*1024), len(content)+1)
	return &LineIterator{file: file, scanner: s}
}

func (it *LineIterator) Next() bool {
	if it.err != nil {
		return false
	}
	for it.scanner.Scan() {
		it.line++
		a, ok, err := ParseLine(it.file, it.line, it.scanner.Bytes())
		if err != nil {
			it.err = err
			return false
		}
		if ok {
			it.cur = a
			return true
		}
	}
	it.err = it.scanner.Err()
	return false
}

func (it *LineIterator) Action() Action {
	return it.cur
}

func (it *LineIterator) Err() error {
	return it.err
}

func (it *LineIterator) Close() error {
	return nil
}

// SliceIterator replays already decoded actions.
type SliceIterator struct {
	actions []Action
	pos     int
}

var _ Iterator = (*SliceIterator)(nil)

func NewSliceIterator(actions []Action) *SliceIterator {
	return &SliceIterator{actions: actions}
}

func (it *SliceIterator) Next() bool {
	if it.pos >= len(it.actions) {
		return false
	}
	it.pos++
	return true
}

func (it *SliceIterator) Action() Action {
	return it.actions[it.pos-1]
}

func (it *SliceIterator) Err() error {
	return nil
}

func (it *SliceIterator) Close() error {
	it.actions = nil
	return nil
}
