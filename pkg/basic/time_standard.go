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

// Package basic holds small shared value types. Only the time formatting
// used by log output lives here; the JSON/XML/database marshaling the
// original type carried has no caller in a module with no persistence
// layer and was dropped.
package basic

import "time"

const TimeFormat = "2006-01-02 15:04:05"

// TimeStandard formats a time.Time the same way on every log line that
// reports one (cron next-run times, connection timestamps, ...).
type TimeStandard time.Time

func (t TimeStandard) Time() time.Time {
	return time.Time(t)
}

func (t TimeStandard) IsZero() bool {
	return t.Time().IsZero()
}

func (t TimeStandard) String() string {
	if t.IsZero() {
		return ""
	}
	return t.Time().Format(TimeFormat)
}
